package transfer

import (
	"errors"
	"fmt"

	"github.com/tastythames/ssh-transfer/internal/sshclient"
)

var (
	ErrConnection = errors.New("connection failure")
	ErrTransfer   = errors.New("transfer failure")
)

// ConnectionError is returned once every connect attempt is exhausted.
type ConnectionError struct {
	Host     string
	Protocol sshclient.Protocol
	Attempts int
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s over %s: gave up after %d attempts: %v", e.Host, e.Protocol, e.Attempts, e.Err)
}

func (e *ConnectionError) Unwrap() []error { return []error{ErrConnection, e.Err} }

func transferErr(d Descriptor, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrTransfer, d, err)
}
