package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tastythames/ssh-transfer/internal/cache"
	"github.com/tastythames/ssh-transfer/internal/cleanup"
	"github.com/tastythames/ssh-transfer/internal/logger"
	"github.com/tastythames/ssh-transfer/internal/metrics"
	"github.com/tastythames/ssh-transfer/internal/sshclient"
	"github.com/tastythames/ssh-transfer/internal/transfer"
	"github.com/tastythames/ssh-transfer/internal/transfer/transfertest"
)

var target = sshclient.Target{Host: "10.1.1.20", Description: "warehouse"}

type credsFunc func(host string) (sshclient.Auth, error)

func (f credsFunc) Resolve(host string) (sshclient.Auth, error) { return f(host) }

func staticCreds(string) (sshclient.Auth, error) {
	return sshclient.Auth{User: "svc", Password: "pw"}, nil
}

type recordingAlerter struct{ subjects []string }

func (a *recordingAlerter) Alert(_ context.Context, subject, _ string) error {
	a.subjects = append(a.subjects, subject)
	return nil
}

type harness struct {
	local  billy.Filesystem
	srv    *transfertest.Server
	cache  *cache.MemCache
	alerts *recordingAlerter
	runner *Runner
}

func newHarness(t *testing.T, creds Credentials) *harness {
	t.Helper()
	h := &harness{
		local:  memfs.New(),
		cache:  cache.NewMemCache(),
		alerts: &recordingAlerter{},
	}
	h.srv = transfertest.NewServer(h.local)

	mgr := transfer.NewConnectionManager(func(_ sshclient.Target, _ sshclient.Auth, p sshclient.Protocol) transfer.Session {
		return h.srv.Session(p)
	}, logger.Nop(), transfer.WithRetry(transfer.DefaultRetries, 0))
	cleaner := cleanup.New(h.local, logger.Nop())

	h.runner = NewRunner(RunnerDeps{
		Connections: mgr,
		Dispatcher:  transfer.NewDispatcher(h.local, cleaner, logger.Nop()),
		Cleaner:     cleaner,
		Credentials: creds,
		Alerter:     h.alerts,
		Cache:       h.cache,
		Metrics:     metrics.New("test", prometheus.NewRegistry()),
	})
	return h
}

func (h *harness) writeLocal(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		require.NoError(t, util.WriteFile(h.local, p, []byte(p), 0o644))
	}
}

func threeUploads() Job {
	job := Job{Name: JobName(target), Target: target}
	for _, n := range []string{"a", "b", "c"} {
		job.Transfers = append(job.Transfers, transfer.Descriptor{
			Kind:       transfer.UploadFiles,
			LocalPath:  "/out/" + n,
			RemotePath: "/in/" + n,
		})
	}
	return job
}

func TestRunner_Execute(t *testing.T) {
	h := newHarness(t, credsFunc(staticCreds))
	h.writeLocal(t, "/out/a/1.txt", "/out/b/2.txt", "/out/c/3.txt")

	require.NoError(t, h.runner.Execute(context.Background(), threeUploads()))

	assert.Equal(t, []string{"upload:/in/a/1.txt", "upload:/in/b/2.txt", "upload:/in/c/3.txt"}, h.srv.Calls("upload"))
	assert.Equal(t, 1, h.srv.ConnectCalls(), "one session per protocol per run")
	assert.Equal(t, 0, h.srv.Active(), "sessions closed at run end")

	res := h.cache.Snapshot()["warehouse-10.1.1.20"]
	assert.Equal(t, metrics.StatusOK, res.Status)
	assert.Equal(t, 3, res.Files)
	assert.NotEmpty(t, res.RunID)
	assert.Empty(t, h.alerts.subjects)
}

func TestRunner_ExecuteStopsAtFirstFailure(t *testing.T) {
	h := newHarness(t, credsFunc(staticCreds))
	h.writeLocal(t, "/out/a/1.txt", "/out/b/2.txt", "/out/c/3.txt")
	h.srv.FailOn("upload", "/in/b/2.txt", errors.New("disk full"))

	err := h.runner.Execute(context.Background(), threeUploads())
	require.Error(t, err)
	assert.ErrorIs(t, err, transfer.ErrTransfer)
	assert.Contains(t, err.Error(), "descriptor 2/3")

	assert.Equal(t, "/out/a/1.txt", h.srv.ReadFile("/in/a/1.txt"))
	assert.Empty(t, h.srv.ReadFile("/in/c/3.txt"), "third descriptor never attempted")
	assert.Len(t, h.srv.Calls("upload"), 2)
	assert.Equal(t, 0, h.srv.Active())

	res := h.cache.Snapshot()["warehouse-10.1.1.20"]
	assert.Equal(t, metrics.StatusTransferFailure, res.Status)
	assert.Contains(t, res.Err, "disk full")
	assert.Equal(t, []string{"warehouse-10.1.1.20: transfer_failure"}, h.alerts.subjects)
}

func TestRunner_ExecuteConnectionFailure(t *testing.T) {
	h := newHarness(t, credsFunc(staticCreds))
	h.writeLocal(t, "/out/a/1.txt")
	h.srv.FailConnect(10)

	err := h.runner.Execute(context.Background(), threeUploads())
	require.Error(t, err)
	assert.ErrorIs(t, err, transfer.ErrConnection)
	assert.Equal(t, transfer.DefaultRetries+1, h.srv.ConnectCalls())
	assert.Empty(t, h.srv.Calls("upload"))

	assert.Equal(t, metrics.StatusConnectionFailure, h.cache.Snapshot()["warehouse-10.1.1.20"].Status)
}

func TestRunner_ExecuteMissingCredentials(t *testing.T) {
	h := newHarness(t, credsFunc(func(host string) (sshclient.Auth, error) {
		return sshclient.Auth{}, fmt.Errorf("no credentials for %s", host)
	}))
	h.writeLocal(t, "/out/a/1.txt")

	err := h.runner.Execute(context.Background(), threeUploads())
	assert.ErrorIs(t, err, transfer.ErrConnection)
	assert.Equal(t, 0, h.srv.ConnectCalls())
}

func TestRunner_ExecuteSkipsEmptySources(t *testing.T) {
	h := newHarness(t, credsFunc(staticCreds))

	require.NoError(t, h.runner.Execute(context.Background(), threeUploads()))
	assert.Equal(t, 0, h.srv.ConnectCalls(), "nothing to send, no session opened")

	res := h.cache.Snapshot()["warehouse-10.1.1.20"]
	assert.Equal(t, 3, res.Skipped)
	assert.Equal(t, metrics.StatusOK, res.Status)
}

func TestRunner_ExecuteCleanup(t *testing.T) {
	t.Run("local only opens no session", func(t *testing.T) {
		h := newHarness(t, credsFunc(staticCreds))
		h.writeLocal(t, "/archive/1.txt", "/archive/2.txt")

		job := CleanupJob{Name: CleanupJobName(target, 1), Target: target, Targets: []cleanup.Target{{LocalPath: "/archive"}}}
		require.NoError(t, h.runner.ExecuteCleanup(context.Background(), job))

		assert.Equal(t, 0, h.srv.ConnectCalls())
		infos, err := h.local.ReadDir("/archive")
		require.NoError(t, err)
		assert.Empty(t, infos)
		assert.Equal(t, 2, h.cache.Snapshot()["warehouse-cleanup-1"].Files)
	})

	t.Run("remote side", func(t *testing.T) {
		h := newHarness(t, credsFunc(staticCreds))
		h.srv.WriteFile("/outbox/1.txt", "x")

		job := CleanupJob{Name: CleanupJobName(target, 1), Target: target, Targets: []cleanup.Target{{RemotePath: "/outbox"}}}
		require.NoError(t, h.runner.ExecuteCleanup(context.Background(), job))

		assert.Equal(t, []string{"connect:sftp"}, h.srv.Calls("connect"))
		assert.Equal(t, "", h.srv.ReadFile("/outbox/1.txt"))
		assert.Equal(t, 0, h.srv.Active())
	})

	t.Run("failure is a cleanup failure", func(t *testing.T) {
		h := newHarness(t, credsFunc(staticCreds))
		h.srv.WriteFile("/outbox/1.txt", "x")
		h.srv.FailOn("delete", "/outbox/1.txt", errors.New("permission denied"))

		job := CleanupJob{Name: CleanupJobName(target, 1), Target: target, Targets: []cleanup.Target{{RemotePath: "/outbox"}}}
		err := h.runner.ExecuteCleanup(context.Background(), job)
		assert.ErrorIs(t, err, cleanup.ErrCleanup)
		assert.Equal(t, metrics.StatusCleanupFailure, h.cache.Snapshot()["warehouse-cleanup-1"].Status)
	})
}

func TestClassify(t *testing.T) {
	assert.Equal(t, metrics.StatusOK, Classify(nil))
	assert.Equal(t, metrics.StatusConnectionFailure, Classify(&transfer.ConnectionError{Err: errors.New("x")}))
	assert.Equal(t, metrics.StatusCleanupFailure, Classify(fmt.Errorf("%w: x", cleanup.ErrCleanup)))
	assert.Equal(t, metrics.StatusTransferFailure, Classify(errors.New("x")))
}

func TestRunner_PanicIsRecordedAndReraised(t *testing.T) {
	h := newHarness(t, credsFunc(func(string) (sshclient.Auth, error) { panic("resolver bug") }))
	h.writeLocal(t, "/out/a/1.txt")

	assert.PanicsWithValue(t, "resolver bug", func() {
		_ = h.runner.Execute(context.Background(), threeUploads())
	})
	assert.Equal(t, metrics.StatusPanic, h.cache.Snapshot()["warehouse-10.1.1.20"].Status)
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out")
	}
}
