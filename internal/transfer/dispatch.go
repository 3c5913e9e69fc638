package transfer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/tastythames/ssh-transfer/internal/cleanup"
	"github.com/tastythames/ssh-transfer/internal/logger"
	"github.com/tastythames/ssh-transfer/internal/sshclient"
)

// SessionSource hands out the run's sessions by protocol.
type SessionSource interface {
	Get(ctx context.Context, protocol sshclient.Protocol) (Session, error)
}

// Result describes what one descriptor did.
type Result struct {
	Kind    Kind
	Skipped bool
	Reason  string
	Files   int
	Cleaned int
}

// Dispatcher executes transfer descriptors against the local filesystem and a run's sessions.
type Dispatcher struct {
	local   billy.Filesystem
	cleaner *cleanup.Coordinator
	log     *logger.Logger
}

func NewDispatcher(local billy.Filesystem, cleaner *cleanup.Coordinator, log *logger.Logger) *Dispatcher {
	return &Dispatcher{local: local, cleaner: cleaner, log: log}
}

// Dispatch runs d. A failed precondition yields a skipped Result and nil error.
// Errors wrap ErrConnection, ErrTransfer or cleanup.ErrCleanup.
func (x *Dispatcher) Dispatch(ctx context.Context, sessions SessionSource, d Descriptor) (Result, error) {
	var (
		res Result
		err error
	)
	switch d.Kind {
	case UploadFiles:
		res, err = x.uploadFiles(ctx, sessions, d)
	case DownloadFiles:
		res, err = x.downloadFiles(ctx, sessions, d)
	case UploadDirectory:
		res, err = x.uploadDirectory(ctx, sessions, d)
	case DownloadDirectory:
		res, err = x.downloadDirectory(ctx, sessions, d)
	default:
		return Result{}, fmt.Errorf("%w: unsupported transfer kind %s", ErrTransfer, d.Kind)
	}
	res.Kind = d.Kind

	fields := []logger.Field{
		{Key: "kind", Value: d.Kind.String()},
		{Key: "local", Value: d.LocalPath},
		{Key: "remote", Value: d.RemotePath},
	}
	switch {
	case err != nil:
	case res.Skipped:
		x.log.Info("transfer skipped", append(fields, logger.Field{Key: "reason", Value: res.Reason})...)
	default:
		x.log.Info("transfer done", append(fields,
			logger.Field{Key: "files", Value: res.Files},
			logger.Field{Key: "cleaned", Value: res.Cleaned})...)
	}
	return res, err
}

func skipped(reason string) Result {
	return Result{Skipped: true, Reason: reason}
}

func (x *Dispatcher) uploadFiles(ctx context.Context, sessions SessionSource, d Descriptor) (Result, error) {
	files, err := x.localFiles(d.LocalPath)
	if err != nil {
		return Result{}, transferErr(d, err)
	}
	if len(files) == 0 {
		return skipped("no local files"), nil
	}

	sess, err := sessions.Get(ctx, d.Kind.Protocol())
	if err != nil {
		return Result{}, err
	}

	var res Result
	for _, name := range files {
		if err := x.uploadOne(sess, filepath.Join(d.LocalPath, name), path.Join(d.RemotePath, name)); err != nil {
			return res, transferErr(d, err)
		}
		res.Files++
	}

	if err := runPostCommand(ctx, sess, d); err != nil {
		return res, err
	}
	if d.CleanupAfterTransfer {
		n, err := x.cleaner.Local(d.LocalPath, false)
		res.Cleaned = n
		if err != nil {
			return res, err
		}
	}
	return res, nil
}

func (x *Dispatcher) uploadOne(sess Session, localPath, remotePath string) error {
	f, err := x.local.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()
	return sess.UploadFile(f, remotePath, true)
}

func (x *Dispatcher) downloadFiles(ctx context.Context, sessions SessionSource, d Descriptor) (Result, error) {
	sess, err := sessions.Get(ctx, d.Kind.Protocol())
	if err != nil {
		return Result{}, err
	}

	entries, err := sess.ListDirectory(d.RemotePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return skipped("remote directory missing"), nil
		}
		return Result{}, transferErr(d, err)
	}
	entries = withoutDots(entries)
	if len(entries) == 0 {
		return skipped("remote directory empty"), nil
	}

	if err := x.local.MkdirAll(d.LocalPath, 0o755); err != nil {
		return Result{}, transferErr(d, err)
	}

	var res Result
	for _, e := range entries {
		if e.IsDir {
			continue
		}
		if err := x.downloadOne(sess, e.FullPath, filepath.Join(d.LocalPath, e.Name)); err != nil {
			return res, transferErr(d, err)
		}
		res.Files++
	}

	if err := runPostCommand(ctx, sess, d); err != nil {
		return res, err
	}
	if d.CleanupAfterTransfer {
		n, err := x.cleaner.Remote(sess, d.RemotePath)
		res.Cleaned = n
		if err != nil {
			return res, err
		}
	}
	return res, nil
}

func (x *Dispatcher) downloadOne(sess Session, remotePath, localPath string) error {
	f, err := x.local.Create(localPath)
	if err != nil {
		return err
	}
	if err := sess.DownloadFile(remotePath, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (x *Dispatcher) uploadDirectory(ctx context.Context, sessions SessionSource, d Descriptor) (Result, error) {
	info, err := x.local.Stat(d.LocalPath)
	if err != nil || !info.IsDir() {
		return skipped("local directory missing"), nil
	}
	count, err := x.countFiles(d.LocalPath)
	if err != nil {
		return Result{}, transferErr(d, err)
	}

	sess, err := sessions.Get(ctx, d.Kind.Protocol())
	if err != nil {
		return Result{}, err
	}
	if err := sess.UploadDirectoryTree(d.LocalPath, d.RemotePath); err != nil {
		return Result{}, transferErr(d, err)
	}
	res := Result{Files: count}

	if err := runPostCommand(ctx, sess, d); err != nil {
		return res, err
	}
	if d.CleanupAfterTransfer {
		n, err := x.cleaner.Local(d.LocalPath, true)
		res.Cleaned = n
		if err != nil {
			return res, err
		}
	}
	return res, nil
}

// downloadDirectory replaces the local tree rather than merging into it.
// The session is opened first so an unreachable host leaves local data alone.
func (x *Dispatcher) downloadDirectory(ctx context.Context, sessions SessionSource, d Descriptor) (Result, error) {
	sess, err := sessions.Get(ctx, d.Kind.Protocol())
	if err != nil {
		return Result{}, err
	}

	if _, err := x.cleaner.Local(d.LocalPath, true); err != nil {
		return Result{}, err
	}
	if err := sess.DownloadDirectoryTree(d.RemotePath, d.LocalPath); err != nil {
		return Result{}, transferErr(d, err)
	}
	count, err := x.countFiles(d.LocalPath)
	if err != nil {
		return Result{}, transferErr(d, err)
	}
	res := Result{Files: count}

	if err := runPostCommand(ctx, sess, d); err != nil {
		return res, err
	}
	if d.CleanupAfterTransfer {
		x.log.Warn("cleanup after directory download is not supported, remote side left in place",
			logger.Field{Key: "remote", Value: d.RemotePath})
	}
	return res, nil
}

// localFiles lists the direct regular files of dir. A missing dir has none.
func (x *Dispatcher) localFiles(dir string) ([]string, error) {
	entries, err := x.local.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.Mode().IsRegular() {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

func (x *Dispatcher) countFiles(dir string) (int, error) {
	n := 0
	err := util.Walk(x.local, dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			n++
		}
		return nil
	})
	return n, err
}

func runPostCommand(ctx context.Context, sess Session, d Descriptor) error {
	if d.PostCommand == "" {
		return nil
	}
	res, err := sess.ExecuteCommand(ctx, d.PostCommand)
	if err != nil {
		return transferErr(d, fmt.Errorf("post command: %w", err))
	}
	if res.ExitStatus != 0 {
		return transferErr(d, fmt.Errorf("post command exited %d: %s", res.ExitStatus, res.Output))
	}
	return nil
}

func withoutDots(entries []sshclient.Entry) []sshclient.Entry {
	out := entries[:0:0]
	for _, e := range entries {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		out = append(out, e)
	}
	return out
}
