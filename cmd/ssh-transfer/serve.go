package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tastythames/ssh-transfer/internal/logger"
	"github.com/tastythames/ssh-transfer/internal/metrics"
)

var (
	serveListen       string
	serveLogLevel     string
	serveDrainTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler and the status endpoint",
	Long: `Load the inventory, register every transfer and cleanup job and run them on
their schedules until SIGINT or SIGTERM. On shutdown no new runs start and
running ones are given --drain-timeout to finish.`,
	RunE: serveHandler,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "HTTP listen address (overrides service.listen)")
	serveCmd.Flags().StringVar(&serveLogLevel, "log-level", "", "log level (overrides logging.level)")
	serveCmd.Flags().DurationVar(&serveDrainTimeout, "drain-timeout", 10*time.Minute, "how long to wait for running jobs on shutdown")
}

func serveHandler(cmd *cobra.Command, _ []string) error {
	inv, err := loadInventory(inventoryPath)
	if err != nil {
		return err
	}
	log, err := newLogger(inv, serveLogLevel)
	if err != nil {
		return err
	}
	a, err := newApp(inv, log)
	if err != nil {
		log.Error("startup failed", err)
		return err
	}

	listen := inv.Service.Listen
	if serveListen != "" {
		listen = serveListen
	}
	srv := &http.Server{
		Addr:              listen,
		Handler:           metrics.NewRouter(a.registry, a.cache),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", logger.Field{Key: "addr", Value: listen})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	a.sched.Start()
	for _, e := range a.sched.Entries() {
		log.Info("job scheduled",
			logger.Field{Key: "job", Value: e.Name},
			logger.Field{Key: "trigger", Value: e.Trigger.String()})
	}

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown requested")
	case serveErr = <-errCh:
		log.Error("http server failed", serveErr)
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), serveDrainTimeout)
	defer cancel()
	if err := a.sched.Stop(drainCtx); err != nil {
		log.Warn("jobs still running at exit", logger.Field{Key: "error", Value: err.Error()})
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)

	if serveErr != nil {
		return fmt.Errorf("listen: %w", serveErr)
	}
	return nil
}
