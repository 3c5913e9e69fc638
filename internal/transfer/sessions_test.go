package transfer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tastythames/ssh-transfer/internal/logger"
	"github.com/tastythames/ssh-transfer/internal/sshclient"
)

func TestSessions_ReusePerProtocol(t *testing.T) {
	f := newFixture(t)
	s := f.sessions()
	ctx := context.Background()

	a, err := s.Get(ctx, sshclient.ProtocolSFTP)
	require.NoError(t, err)
	b, err := s.Get(ctx, sshclient.ProtocolSFTP)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, f.srv.ConnectCalls())

	c, err := s.Get(ctx, sshclient.ProtocolSCP)
	require.NoError(t, err)
	assert.NotSame(t, a, c)
	assert.Equal(t, 2, s.Open())
	assert.Equal(t, 2, f.srv.Active())

	require.NoError(t, s.Close())
	assert.Zero(t, s.Open())
	assert.Zero(t, f.srv.Active())
}

func TestSessions_CloseWithOnlyDirectorySession(t *testing.T) {
	f := newFixture(t)
	s := f.sessions()

	_, err := s.Get(context.Background(), sshclient.ProtocolSCP)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.Equal(t, []string{"disconnect:scp"}, f.srv.Calls("disconnect"))
	assert.Zero(t, f.srv.Active())
}

func TestSessions_ResolvesCredentialsOnce(t *testing.T) {
	f := newFixture(t)
	calls := 0
	s := NewSessions(f.mgr, testTarget, func() (sshclient.Auth, error) {
		calls++
		return sshclient.Auth{User: "svc"}, nil
	}, logger.Nop())

	_, err := s.Get(context.Background(), sshclient.ProtocolSFTP)
	require.NoError(t, err)
	_, err = s.Get(context.Background(), sshclient.ProtocolSCP)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestSessions_CredentialFailureIsConnectionFailure(t *testing.T) {
	f := newFixture(t)
	s := NewSessions(f.mgr, testTarget, func() (sshclient.Auth, error) {
		return sshclient.Auth{}, errors.New("bad key")
	}, logger.Nop())

	_, err := s.Get(context.Background(), sshclient.ProtocolSFTP)
	assert.ErrorIs(t, err, ErrConnection)
	assert.Zero(t, f.srv.ConnectCalls())
}
