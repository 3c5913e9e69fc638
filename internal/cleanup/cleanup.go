// Package cleanup deletes local and remote file sets after a transfer and on
// the daily cleanup schedule.
//
// A cleanup call stops at the first entry it fails to delete and reports that
// error wrapped in ErrCleanup; entries already removed stay removed.
package cleanup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/tastythames/ssh-transfer/internal/logger"
	"github.com/tastythames/ssh-transfer/internal/sshclient"
)

var ErrCleanup = errors.New("cleanup failure")

// Remote is the part of a transport session cleanup needs.
type Remote interface {
	ListDirectory(dir string) ([]sshclient.Entry, error)
	DeleteFile(path string) error
	DeleteDirectory(path string, recursive bool) error
}

// Target is a daily cleanup location pair. Either side may be empty.
type Target struct {
	LocalPath  string
	RemotePath string
}

type Coordinator struct {
	fs  billy.Filesystem
	log *logger.Logger
}

func New(fs billy.Filesystem, log *logger.Logger) *Coordinator {
	return &Coordinator{fs: fs, log: log}
}

// Local deletes the direct files of dir, then each subdirectory recursively.
// dir itself is removed only when removeRoot is set. A missing dir is not an error.
func (c *Coordinator) Local(dir string, removeRoot bool) (int, error) {
	entries, err := c.fs.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: list local %s: %w", ErrCleanup, dir, err)
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if err := c.fs.Remove(p); err != nil {
			return removed, fmt.Errorf("%w: remove local %s: %w", ErrCleanup, p, err)
		}
		removed++
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if err := util.RemoveAll(c.fs, p); err != nil {
			return removed, fmt.Errorf("%w: remove local dir %s: %w", ErrCleanup, p, err)
		}
		removed++
	}

	if removeRoot {
		if err := c.fs.Remove(dir); err != nil {
			return removed, fmt.Errorf("%w: remove local dir %s: %w", ErrCleanup, dir, err)
		}
	}

	c.log.Debug("local cleanup done",
		logger.Field{Key: "path", Value: dir},
		logger.Field{Key: "removed", Value: removed},
		logger.Field{Key: "root_removed", Value: removeRoot})
	return removed, nil
}

// Remote deletes every entry under dir. Files go one by one, directories in a
// single recursive delete each. dir itself is kept.
func (c *Coordinator) Remote(r Remote, dir string) (int, error) {
	entries, err := r.ListDirectory(dir)
	if err != nil {
		return 0, fmt.Errorf("%w: list remote %s: %w", ErrCleanup, dir, err)
	}

	removed := 0
	for _, e := range entries {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		if e.IsDir {
			err = r.DeleteDirectory(e.FullPath, true)
		} else {
			err = r.DeleteFile(e.FullPath)
		}
		if err != nil {
			return removed, fmt.Errorf("%w: remove remote %s: %w", ErrCleanup, e.FullPath, err)
		}
		removed++
	}

	c.log.Debug("remote cleanup done",
		logger.Field{Key: "path", Value: dir},
		logger.Field{Key: "removed", Value: removed})
	return removed, nil
}

// Targets cleans each target's local side, then its remote side. r may be nil
// when no target names a remote path.
func (c *Coordinator) Targets(r Remote, targets []Target) (int, error) {
	total := 0
	for _, t := range targets {
		if t.LocalPath != "" {
			n, err := c.Local(t.LocalPath, false)
			total += n
			if err != nil {
				return total, err
			}
		}
		if t.RemotePath != "" {
			if r == nil {
				return total, fmt.Errorf("%w: no remote session for %s", ErrCleanup, t.RemotePath)
			}
			n, err := c.Remote(r, t.RemotePath)
			total += n
			if err != nil {
				return total, err
			}
		}
	}
	return total, nil
}

// NeedsRemote reports whether any target has a remote side.
func NeedsRemote(targets []Target) bool {
	for _, t := range targets {
		if t.RemotePath != "" {
			return true
		}
	}
	return false
}
