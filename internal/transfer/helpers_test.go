package transfer

import (
	"context"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/require"

	"github.com/tastythames/ssh-transfer/internal/cleanup"
	"github.com/tastythames/ssh-transfer/internal/logger"
	"github.com/tastythames/ssh-transfer/internal/sshclient"
	"github.com/tastythames/ssh-transfer/internal/transfer/transfertest"
)

var testTarget = sshclient.Target{Host: "10.1.1.20", Description: "warehouse"}

type fixture struct {
	local  billy.Filesystem
	srv    *transfertest.Server
	mgr    *ConnectionManager
	sleeps []time.Duration
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{local: memfs.New()}
	f.srv = transfertest.NewServer(f.local)
	f.mgr = NewConnectionManager(func(_ sshclient.Target, _ sshclient.Auth, p sshclient.Protocol) Session {
		return f.srv.Session(p)
	}, logger.Nop())
	f.mgr.sleep = func(_ context.Context, d time.Duration) error {
		f.sleeps = append(f.sleeps, d)
		return nil
	}
	return f
}

func (f *fixture) sessions() *Sessions {
	return NewSessions(f.mgr, testTarget, func() (sshclient.Auth, error) {
		return sshclient.Auth{User: "svc", Password: "pw"}, nil
	}, logger.Nop())
}

func (f *fixture) dispatcher() *Dispatcher {
	return NewDispatcher(f.local, cleanup.New(f.local, logger.Nop()), logger.Nop())
}

func (f *fixture) writeLocal(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		require.NoError(t, util.WriteFile(f.local, p, []byte("data:"+p), 0o644))
	}
}
