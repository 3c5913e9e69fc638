package sshclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"sync"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// Session is one authenticated connection to a target carrying an SFTP subsystem.
// It is owned by a single run and is not shared between goroutines of different runs.
type Session struct {
	client   *Client
	target   Target
	auth     Auth
	protocol Protocol

	mu   sync.Mutex
	conn *ssh.Client
	sftp *sftp.Client
}

func (s *Session) Protocol() Protocol { return s.protocol }

func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sftp != nil {
		return nil
	}

	conn, err := s.client.dial(ctx, s.target, s.auth)
	if err != nil {
		return fmt.Errorf("%s dial %s: %w", s.protocol, s.target.Host, err)
	}
	sc, err := sftp.NewClient(conn)
	if err != nil {
		conn.Close()
		return fmt.Errorf("%s subsystem %s: %w", s.protocol, s.target.Host, err)
	}

	s.conn = conn
	s.sftp = sc
	return nil
}

// IsConnected reports whether the session answers a round trip.
func (s *Session) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sftp == nil {
		return false
	}
	_, err := s.sftp.Getwd()
	return err == nil
}

func (s *Session) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.sftp != nil {
		if err := s.sftp.Close(); err != nil && !errors.Is(err, io.EOF) {
			errs = append(errs, err)
		}
		s.sftp = nil
	}
	if s.conn != nil {
		if err := s.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
		s.conn = nil
	}
	return errors.Join(errs...)
}

func (s *Session) sftpClient() (*sftp.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sftp == nil {
		return nil, fmt.Errorf("%s session to %s is not connected", s.protocol, s.target.Host)
	}
	return s.sftp, nil
}

// ListDirectory lists dir without the "." and ".." entries.
func (s *Session) ListDirectory(dir string) ([]Entry, error) {
	sc, err := s.sftpClient()
	if err != nil {
		return nil, err
	}
	infos, err := sc.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	out := make([]Entry, 0, len(infos))
	for _, fi := range infos {
		name := fi.Name()
		if name == "." || name == ".." {
			continue
		}
		out = append(out, Entry{Name: name, FullPath: path.Join(dir, name), IsDir: fi.IsDir()})
	}
	return out, nil
}

func (s *Session) UploadFile(r io.Reader, remotePath string, overwrite bool) error {
	sc, err := s.sftpClient()
	if err != nil {
		return err
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	f, err := sc.OpenFile(remotePath, flags)
	if err != nil {
		return fmt.Errorf("open remote %s: %w", remotePath, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("upload %s: %w", remotePath, err)
	}
	return f.Close()
}

func (s *Session) DownloadFile(remotePath string, w io.Writer) error {
	sc, err := s.sftpClient()
	if err != nil {
		return err
	}
	f, err := sc.Open(remotePath)
	if err != nil {
		return fmt.Errorf("open remote %s: %w", remotePath, err)
	}
	defer f.Close()
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("download %s: %w", remotePath, err)
	}
	return nil
}

func (s *Session) DeleteFile(p string) error {
	sc, err := s.sftpClient()
	if err != nil {
		return err
	}
	if err := sc.Remove(p); err != nil {
		return fmt.Errorf("remove %s: %w", p, err)
	}
	return nil
}

// DeleteDirectory removes p; with recursive it relies on the server walking the tree
// through a single RemoveAll call.
func (s *Session) DeleteDirectory(p string, recursive bool) error {
	sc, err := s.sftpClient()
	if err != nil {
		return err
	}
	if recursive {
		err = sc.RemoveAll(p)
	} else {
		err = sc.RemoveDirectory(p)
	}
	if err != nil {
		return fmt.Errorf("remove dir %s: %w", p, err)
	}
	return nil
}

func (s *Session) MakeDirectory(p string) error {
	sc, err := s.sftpClient()
	if err != nil {
		return err
	}
	if err := sc.MkdirAll(p); err != nil {
		return fmt.Errorf("mkdir %s: %w", p, err)
	}
	return nil
}
