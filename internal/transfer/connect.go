package transfer

import (
	"context"
	"errors"
	"time"

	"github.com/tastythames/ssh-transfer/internal/logger"
	"github.com/tastythames/ssh-transfer/internal/sshclient"
)

const (
	DefaultRetries    = 3
	DefaultRetryDelay = 10 * time.Second
)

var errNotConnected = errors.New("session reports not connected")

// ConnectionManager opens sessions with a bounded, fixed-delay retry.
// Retries target short network blips, so there is no backoff growth or jitter.
type ConnectionManager struct {
	factory SessionFactory
	log     *logger.Logger
	retries int
	delay   time.Duration
	sleep   func(ctx context.Context, d time.Duration) error
	observe func(protocol sshclient.Protocol, err error)
}

type Option func(*ConnectionManager)

// WithRetry sets how many attempts follow the first one and the pause between them.
func WithRetry(retries int, delay time.Duration) Option {
	return func(m *ConnectionManager) {
		if retries >= 0 {
			m.retries = retries
		}
		if delay >= 0 {
			m.delay = delay
		}
	}
}

// WithObserver is called after every attempt with its outcome.
func WithObserver(fn func(protocol sshclient.Protocol, err error)) Option {
	return func(m *ConnectionManager) { m.observe = fn }
}

func NewConnectionManager(factory SessionFactory, log *logger.Logger, opts ...Option) *ConnectionManager {
	m := &ConnectionManager{
		factory: factory,
		log:     log,
		retries: DefaultRetries,
		delay:   DefaultRetryDelay,
		sleep:   sleepCtx,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Connect returns a connected session or a *ConnectionError after 1+retries failed attempts.
func (m *ConnectionManager) Connect(ctx context.Context, target sshclient.Target, auth sshclient.Auth, protocol sshclient.Protocol) (Session, error) {
	attempts := m.retries + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		fields := []logger.Field{
			{Key: "host", Value: target.Host},
			{Key: "protocol", Value: protocol.String()},
			{Key: "attempt", Value: attempt},
			{Key: "max_attempts", Value: attempts},
		}
		m.log.Info("connecting", fields...)

		sess := m.factory(target, auth, protocol)
		err := sess.Connect(ctx)
		if err == nil && !sess.IsConnected() {
			err = errNotConnected
		}
		if m.observe != nil {
			m.observe(protocol, err)
		}
		if err == nil {
			m.log.Info("connected", fields...)
			return sess, nil
		}

		_ = sess.Disconnect()
		lastErr = err
		m.log.Error("connect attempt failed", err, fields...)

		if attempt == attempts {
			break
		}
		if err := m.sleep(ctx, m.delay); err != nil {
			return nil, &ConnectionError{Host: target.Host, Protocol: protocol, Attempts: attempt, Err: err}
		}
	}

	return nil, &ConnectionError{Host: target.Host, Protocol: protocol, Attempts: attempts, Err: lastErr}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
