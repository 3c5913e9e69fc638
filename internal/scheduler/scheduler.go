package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tastythames/ssh-transfer/internal/logger"
)

// Scheduler fires named jobs on their triggers. A firing is skipped, not queued,
// while the previous firing of the same name is still running. Different names
// run concurrently on their own goroutines.
type Scheduler struct {
	cron    *cron.Cron
	log     *logger.Logger
	onPanic func(job string, err error)

	mu       sync.Mutex
	entries  map[string]cron.EntryID
	triggers map[string]Trigger
}

type Options struct {
	Location *time.Location
	Logger   *logger.Logger
	// OnPanic is called after a job's panic has been recovered and logged.
	OnPanic func(job string, err error)
}

func NewScheduler(opts Options) *Scheduler {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(opts.Location),
			cron.WithLogger(logger.CronLogger(opts.Logger)),
		),
		log:      opts.Logger,
		onPanic:  opts.OnPanic,
		entries:  make(map[string]cron.EntryID),
		triggers: make(map[string]Trigger),
	}
}

// Register schedules job under a unique name.
func (s *Scheduler) Register(name string, t Trigger, job cron.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[name]; exists {
		return fmt.Errorf("job %q already registered", name)
	}
	id := s.cron.Schedule(t, s.wrap(name, job))
	s.entries[name] = id
	s.triggers[name] = t

	s.log.Info("job registered",
		logger.Field{Key: "job", Value: name},
		logger.Field{Key: "trigger", Value: t.String()})
	return nil
}

// wrap applies the panic hook outside the non-reentrant guard.
func (s *Scheduler) wrap(name string, job cron.Job) cron.Job {
	return cron.NewChain(
		s.recoverHook(name),
		cron.SkipIfStillRunning(logger.CronLogger(s.log.With(logger.Field{Key: "job", Value: name}))),
	).Then(job)
}

func (s *Scheduler) recoverHook(name string) cron.JobWrapper {
	return func(j cron.Job) cron.Job {
		return cron.FuncJob(func() {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				err, ok := r.(error)
				if !ok {
					err = fmt.Errorf("%v", r)
				}
				s.log.Fatal("job escaped its run", err,
					logger.Field{Key: "job", Value: name},
					logger.Field{Key: "stack", Value: string(debug.Stack())})
				if s.onPanic != nil {
					s.onPanic(name, err)
				}
			}()
			j.Run()
		})
	}
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	n := len(s.entries)
	s.mu.Unlock()

	s.cron.Start()
	s.log.Info("scheduler started", logger.Field{Key: "jobs", Value: n})
}

// Stop halts new firings and waits for running jobs until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for running jobs: %w", ctx.Err())
	}
}

// Entry is a registered job and its next firing.
type Entry struct {
	Name    string
	Trigger Trigger
	Next    time.Time
}

// Entries lists registered jobs by name. Next is zero until the scheduler starts.
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, len(s.entries))
	for name, id := range s.entries {
		out = append(out, Entry{Name: name, Trigger: s.triggers[name], Next: s.cron.Entry(id).Next})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
