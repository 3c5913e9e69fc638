package sshclient

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/util"
)

// UploadDirectoryTree mirrors the contents of localDir into remoteRoot,
// creating remote directories as needed and overwriting existing files.
func (s *Session) UploadDirectoryTree(localDir, remoteRoot string) error {
	if _, err := s.sftpClient(); err != nil {
		return err
	}
	local := s.client.local

	if err := s.MakeDirectory(remoteRoot); err != nil {
		return err
	}
	return util.Walk(local, localDir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(localDir, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		remote := path.Join(remoteRoot, filepath.ToSlash(rel))
		if info.IsDir() {
			return s.MakeDirectory(remote)
		}

		f, err := local.Open(p)
		if err != nil {
			return fmt.Errorf("open local %s: %w", p, err)
		}
		defer f.Close()
		return s.UploadFile(f, remote, true)
	})
}

// DownloadDirectoryTree mirrors the contents of remoteDir into localRoot.
func (s *Session) DownloadDirectoryTree(remoteDir, localRoot string) error {
	sc, err := s.sftpClient()
	if err != nil {
		return err
	}
	local := s.client.local

	if err := local.MkdirAll(localRoot, 0o755); err != nil {
		return fmt.Errorf("mkdir local %s: %w", localRoot, err)
	}

	root := path.Clean(remoteDir)
	w := sc.Walk(root)
	for w.Step() {
		if err := w.Err(); err != nil {
			return fmt.Errorf("walk %s: %w", w.Path(), err)
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(w.Path(), root), "/")
		if rel == "" {
			continue
		}
		dst := filepath.Join(localRoot, filepath.FromSlash(rel))
		if w.Stat().IsDir() {
			if err := local.MkdirAll(dst, 0o755); err != nil {
				return fmt.Errorf("mkdir local %s: %w", dst, err)
			}
			continue
		}
		if err := s.downloadTo(w.Path(), dst); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) downloadTo(remotePath, localPath string) error {
	f, err := s.client.local.Create(localPath)
	if err != nil {
		return fmt.Errorf("create local %s: %w", localPath, err)
	}
	if err := s.DownloadFile(remotePath, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
