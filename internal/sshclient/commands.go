package sshclient

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/ssh"
)

// ExecuteCommand runs cmd on the remote host over the session's connection.
// A non-zero exit is reported in the result, not as an error.
func (s *Session) ExecuteCommand(ctx context.Context, cmd string) (CommandResult, error) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return CommandResult{}, fmt.Errorf("%s session to %s is not connected", s.protocol, s.target.Host)
	}

	sess, err := conn.NewSession()
	if err != nil {
		return CommandResult{}, err
	}
	defer sess.Close()

	type result struct {
		out []byte
		err error
	}
	done := make(chan result, 1)

	go func() {
		out, err := sess.CombinedOutput(cmd)
		done <- result{out: out, err: err}
	}()

	select {
	case <-ctx.Done():
		// Best-effort terminate session.
		_ = sess.Signal(ssh.SIGKILL)
		return CommandResult{}, ctx.Err()
	case r := <-done:
		res := CommandResult{Output: string(r.out)}
		if r.err != nil {
			var exitErr *ssh.ExitError
			if errors.As(r.err, &exitErr) {
				res.ExitStatus = exitErr.ExitStatus()
				return res, nil
			}
			return res, r.err
		}
		return res, nil
	}
}
