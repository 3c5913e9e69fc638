package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/tastythames/ssh-transfer/internal/alert"
	"github.com/tastythames/ssh-transfer/internal/cache"
	"github.com/tastythames/ssh-transfer/internal/cleanup"
	"github.com/tastythames/ssh-transfer/internal/logger"
	"github.com/tastythames/ssh-transfer/internal/metrics"
	"github.com/tastythames/ssh-transfer/internal/sshclient"
	"github.com/tastythames/ssh-transfer/internal/transfer"
)

// Credentials resolves a host's login for one run.
type Credentials interface {
	Resolve(host string) (sshclient.Auth, error)
}

// RunnerDeps are the collaborators of a Runner. Alerter, Cache and Metrics are optional.
type RunnerDeps struct {
	Connections *transfer.ConnectionManager
	Dispatcher  *transfer.Dispatcher
	Cleaner     *cleanup.Coordinator
	Credentials Credentials
	Logger      *logger.Logger
	Alerter     alert.Alerter
	Cache       cache.Cache
	Metrics     *metrics.Metrics
}

// Runner executes one firing of a job: it opens sessions as descriptors need
// them, runs descriptors in order, stops at the first failure and closes every
// session it opened before returning.
type Runner struct {
	RunnerDeps
}

func NewRunner(deps RunnerDeps) *Runner {
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.Alerter == nil {
		deps.Alerter = alert.Nop{}
	}
	if deps.Cache == nil {
		deps.Cache = cache.NewMemCache()
	}
	return &Runner{RunnerDeps: deps}
}

type run struct {
	id    string
	job   string
	host  string
	start time.Time
	log   *logger.Logger
	files int
	skips int
}

func (r *Runner) begin(job string, target sshclient.Target) *run {
	id := uuid.NewString()
	if r.Metrics != nil {
		r.Metrics.RunStarted(job)
	}
	return &run{
		id:    id,
		job:   job,
		host:  target.Host,
		start: time.Now(),
		log: r.Logger.With(
			logger.Field{Key: "run_id", Value: id},
			logger.Field{Key: "job", Value: job},
			logger.Field{Key: "host", Value: target.Host}),
	}
}

// finish records the outcome. A panic escaping the run is recorded and re-raised.
func (r *Runner) finish(ctx context.Context, ru *run, errp *error) {
	status := Classify(*errp)
	if p := recover(); p != nil {
		status = metrics.StatusPanic
		r.record(ru, status, fmt.Errorf("panic: %v", p))
		panic(p)
	}
	r.record(ru, status, *errp)

	if *errp == nil {
		ru.log.Info("run finished",
			logger.Field{Key: "files", Value: ru.files},
			logger.Field{Key: "skipped", Value: ru.skips},
			logger.Field{Key: "duration", Value: time.Since(ru.start).String()})
		return
	}
	ru.log.Error("run failed", *errp, logger.Field{Key: "status", Value: status})

	subject := fmt.Sprintf("%s: %s", ru.job, status)
	body := fmt.Sprintf("host %s, run %s\n%v", ru.host, ru.id, *errp)
	if err := r.Alerter.Alert(ctx, subject, body); err != nil {
		ru.log.Warn("alert not delivered", logger.Field{Key: "error", Value: err.Error()})
	}
}

func (r *Runner) record(ru *run, status string, err error) {
	d := time.Since(ru.start)
	res := cache.Result{
		At:       time.Now(),
		RunID:    ru.id,
		Host:     ru.host,
		Status:   status,
		Files:    ru.files,
		Skipped:  ru.skips,
		Duration: d,
	}
	if err != nil {
		res.Err = err.Error()
	}
	r.Cache.Set(ru.job, res)
	if r.Metrics != nil {
		r.Metrics.RunFinished(ru.job, status, d)
	}
}

// Classify maps a run error to its status label.
func Classify(err error) string {
	switch {
	case err == nil:
		return metrics.StatusOK
	case errors.Is(err, transfer.ErrConnection):
		return metrics.StatusConnectionFailure
	case errors.Is(err, cleanup.ErrCleanup):
		return metrics.StatusCleanupFailure
	default:
		return metrics.StatusTransferFailure
	}
}

func (r *Runner) sessions(target sshclient.Target, log *logger.Logger) *transfer.Sessions {
	return transfer.NewSessions(r.Connections, target, func() (sshclient.Auth, error) {
		return r.Credentials.Resolve(target.Host)
	}, log)
}

func closeSessions(sess *transfer.Sessions, log *logger.Logger) {
	n := sess.Open()
	if err := sess.Close(); err != nil {
		log.Warn("closing sessions", logger.Field{Key: "error", Value: err.Error()})
		return
	}
	log.Debug("sessions closed", logger.Field{Key: "sessions", Value: n})
}

// Execute runs job's descriptors in order and aborts at the first error.
func (r *Runner) Execute(ctx context.Context, job Job) (err error) {
	ru := r.begin(job.Name, job.Target)
	defer r.finish(ctx, ru, &err)

	ru.log.Info("run started", logger.Field{Key: "transfers", Value: len(job.Transfers)})

	sess := r.sessions(job.Target, ru.log)
	defer closeSessions(sess, ru.log)

	for i, d := range job.Transfers {
		res, derr := r.Dispatcher.Dispatch(ctx, sess, d)
		r.observe(d.Kind, res, derr)
		if derr != nil {
			return fmt.Errorf("descriptor %d/%d: %w", i+1, len(job.Transfers), derr)
		}
		ru.files += res.Files
		if res.Skipped {
			ru.skips++
		}
	}
	return nil
}

func (r *Runner) observe(kind transfer.Kind, res transfer.Result, err error) {
	if r.Metrics == nil {
		return
	}
	outcome := "done"
	switch {
	case err != nil:
		outcome = "failed"
	case res.Skipped:
		outcome = "skipped"
	}
	r.Metrics.Transfer(kind.String(), outcome, res.Files)
}

// ExecuteCleanup runs a cleanup job. A remote session is opened only when a
// target names a remote path.
func (r *Runner) ExecuteCleanup(ctx context.Context, job CleanupJob) (err error) {
	ru := r.begin(job.Name, job.Target)
	defer r.finish(ctx, ru, &err)

	ru.log.Info("cleanup started", logger.Field{Key: "targets", Value: len(job.Targets)})

	var remote cleanup.Remote
	if cleanup.NeedsRemote(job.Targets) {
		sess := r.sessions(job.Target, ru.log)
		defer closeSessions(sess, ru.log)
		s, gerr := sess.Get(ctx, sshclient.ProtocolSFTP)
		if gerr != nil {
			return gerr
		}
		remote = s
	}

	n, err := r.Cleaner.Targets(remote, job.Targets)
	ru.files = n
	return err
}

// TransferJob adapts job to the cron scheduler. Each firing gets its own context.
func (r *Runner) TransferJob(job Job) cron.Job {
	return cron.FuncJob(func() {
		_ = r.Execute(context.Background(), job)
	})
}

// CleanupCronJob adapts a cleanup job to the cron scheduler.
func (r *Runner) CleanupCronJob(job CleanupJob) cron.Job {
	return cron.FuncJob(func() {
		_ = r.ExecuteCleanup(context.Background(), job)
	})
}
