package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/tastythames/ssh-transfer/internal/alert"
	"github.com/tastythames/ssh-transfer/internal/cache"
	"github.com/tastythames/ssh-transfer/internal/cleanup"
	"github.com/tastythames/ssh-transfer/internal/inventory"
	"github.com/tastythames/ssh-transfer/internal/logger"
	"github.com/tastythames/ssh-transfer/internal/metrics"
	"github.com/tastythames/ssh-transfer/internal/scheduler"
	"github.com/tastythames/ssh-transfer/internal/sshclient"
	"github.com/tastythames/ssh-transfer/internal/transfer"
)

const metricsNamespace = "ssh_transfer"

func getenv(k, fb string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return fb
}

// loadInventory loads and validates the inventory, joining every validation error.
func loadInventory(path string) (*inventory.Inventory, error) {
	inv, err := inventory.Load(path)
	if err != nil {
		return nil, err
	}
	if errs := inv.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid inventory %s: %w", path, errors.Join(errs...))
	}
	return inv, nil
}

// app is the wired service built from one inventory.
type app struct {
	inv      *inventory.Inventory
	log      *logger.Logger
	registry *prometheus.Registry
	cache    *cache.MemCache
	alerter  alert.Alerter
	runner   *scheduler.Runner
	sched    *scheduler.Scheduler
	jobs     []scheduler.Job
	cleanups []scheduler.CleanupJob
}

func newApp(inv *inventory.Inventory, log *logger.Logger) (*app, error) {
	for _, w := range inv.Warnings() {
		log.Warn("inventory", logger.Field{Key: "warning", Value: w})
	}

	loc, err := inv.Location()
	if err != nil {
		return nil, fmt.Errorf("timezone: %w", err)
	}
	resolver, err := inv.Resolver()
	if err != nil {
		return nil, err
	}
	alerter, err := newAlerter(inv, log)
	if err != nil {
		return nil, err
	}

	local := osfs.New("/")
	client, err := sshclient.New(inv.ApplySSH(sshclient.LoadConfig()), local)
	if err != nil {
		return nil, fmt.Errorf("ssh client init: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(metricsNamespace, reg)

	mgr := transfer.NewConnectionManager(
		func(target sshclient.Target, auth sshclient.Auth, protocol sshclient.Protocol) transfer.Session {
			return client.NewSession(target, auth, protocol)
		},
		log,
		inv.RetryOption(),
		transfer.WithObserver(func(protocol sshclient.Protocol, err error) {
			m.ConnectAttempt(protocol.String(), err)
		}),
	)
	cleaner := cleanup.New(local, log)
	c := cache.NewMemCache()

	runner := scheduler.NewRunner(scheduler.RunnerDeps{
		Connections: mgr,
		Dispatcher:  transfer.NewDispatcher(local, cleaner, log),
		Cleaner:     cleaner,
		Credentials: resolver,
		Logger:      log,
		Alerter:     alerter,
		Cache:       c,
		Metrics:     m,
	})

	jobs, cleanups, err := inv.Jobs()
	if err != nil {
		return nil, err
	}
	for _, j := range jobs {
		if !resolver.Has(j.Target.Host) {
			return nil, fmt.Errorf("job %s: no credentials for host %s", j.Name, j.Target.Host)
		}
	}
	for _, j := range cleanups {
		if cleanup.NeedsRemote(j.Targets) && !resolver.Has(j.Target.Host) {
			return nil, fmt.Errorf("job %s: no credentials for host %s", j.Name, j.Target.Host)
		}
	}

	a := &app{
		inv:      inv,
		log:      log,
		registry: reg,
		cache:    c,
		alerter:  alerter,
		runner:   runner,
		jobs:     jobs,
		cleanups: cleanups,
	}
	a.sched = scheduler.NewScheduler(scheduler.Options{
		Location: loc,
		Logger:   log,
		OnPanic:  a.onPanic,
	})
	if err := a.register(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) register() error {
	for _, j := range a.jobs {
		if err := a.sched.Register(j.Name, j.Trigger, a.runner.TransferJob(j)); err != nil {
			return err
		}
	}
	for _, j := range a.cleanups {
		if err := a.sched.Register(j.Name, j.Trigger, a.runner.CleanupCronJob(j)); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) onPanic(job string, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if aerr := a.alerter.Alert(ctx, job+": panic", err.Error()); aerr != nil {
		a.log.Warn("alert not delivered", logger.Field{Key: "error", Value: aerr.Error()})
	}
}

func newAlerter(inv *inventory.Inventory, log *logger.Logger) (alert.Alerter, error) {
	token, err := inv.TelegramToken()
	if err != nil {
		return nil, fmt.Errorf("telegram alerts: %w", err)
	}
	if token == "" {
		log.Info("alerts disabled")
		return alert.Nop{}, nil
	}
	tg, err := alert.NewTelegram(token, inv.Alerts.Telegram.ChatID)
	if err != nil {
		return nil, fmt.Errorf("telegram alerts: %w", err)
	}
	return tg, nil
}

func newLogger(inv *inventory.Inventory, level string) (*logger.Logger, error) {
	cfg := inv.LoggerConfig()
	if level != "" {
		cfg.Level = level
	}
	return logger.New(cfg)
}
