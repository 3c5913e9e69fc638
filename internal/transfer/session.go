package transfer

import (
	"context"
	"io"

	"github.com/tastythames/ssh-transfer/internal/cleanup"
	"github.com/tastythames/ssh-transfer/internal/sshclient"
)

// Session is the transport capability a run drives. *sshclient.Session implements it.
type Session interface {
	cleanup.Remote

	Connect(ctx context.Context) error
	IsConnected() bool
	Disconnect() error

	UploadFile(r io.Reader, remotePath string, overwrite bool) error
	DownloadFile(remotePath string, w io.Writer) error
	MakeDirectory(path string) error
	UploadDirectoryTree(localDir, remoteRoot string) error
	DownloadDirectoryTree(remoteDir, localRoot string) error
	ExecuteCommand(ctx context.Context, cmd string) (sshclient.CommandResult, error)
}

// SessionFactory builds a fresh, disconnected session.
type SessionFactory func(target sshclient.Target, auth sshclient.Auth, protocol sshclient.Protocol) Session
