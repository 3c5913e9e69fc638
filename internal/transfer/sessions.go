package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tastythames/ssh-transfer/internal/logger"
	"github.com/tastythames/ssh-transfer/internal/sshclient"
)

// AuthResolver yields decrypted credentials for a run.
type AuthResolver func() (sshclient.Auth, error)

type slot struct {
	session  Session
	openedAt time.Time
}

// Sessions is the session record of one run: at most one open session per
// protocol, opened on first use and closed together at the end of the run.
// Each slot is closed on its own; one slot's state never gates another's.
type Sessions struct {
	mgr     *ConnectionManager
	target  sshclient.Target
	resolve AuthResolver
	log     *logger.Logger

	auth  *sshclient.Auth
	slots map[sshclient.Protocol]*slot
}

func NewSessions(mgr *ConnectionManager, target sshclient.Target, resolve AuthResolver, log *logger.Logger) *Sessions {
	return &Sessions{
		mgr:     mgr,
		target:  target,
		resolve: resolve,
		log:     log,
		slots:   make(map[sshclient.Protocol]*slot),
	}
}

// Get returns the run's session for protocol, connecting it on first use.
func (s *Sessions) Get(ctx context.Context, protocol sshclient.Protocol) (Session, error) {
	if sl, ok := s.slots[protocol]; ok {
		return sl.session, nil
	}

	if s.auth == nil {
		auth, err := s.resolve()
		if err != nil {
			return nil, fmt.Errorf("%w: credentials for %s: %w", ErrConnection, s.target.Host, err)
		}
		s.auth = &auth
	}

	sess, err := s.mgr.Connect(ctx, s.target, *s.auth, protocol)
	if err != nil {
		return nil, err
	}
	s.slots[protocol] = &slot{session: sess, openedAt: time.Now()}
	return sess, nil
}

// Open is the number of currently open sessions.
func (s *Sessions) Open() int { return len(s.slots) }

// Close disconnects every open session and drops the run's credentials.
func (s *Sessions) Close() error {
	var errs []error
	for protocol, sl := range s.slots {
		if err := sl.session.Disconnect(); err != nil {
			errs = append(errs, fmt.Errorf("disconnect %s: %w", protocol, err))
		}
		s.log.Debug("session closed",
			logger.Field{Key: "host", Value: s.target.Host},
			logger.Field{Key: "protocol", Value: protocol.String()},
			logger.Field{Key: "open_for", Value: time.Since(sl.openedAt).String()})
		delete(s.slots, protocol)
	}
	s.auth = nil
	return errors.Join(errs...)
}
