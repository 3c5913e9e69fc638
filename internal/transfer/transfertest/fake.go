// Package transfertest provides an in-memory remote host for exercising
// transfers without an SSH server.
package transfertest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/tastythames/ssh-transfer/internal/sshclient"
)

// Server is a fake remote host. Its tree lives in FS; tree transfers read and
// write Local. Every operation is appended to the call log as "op:path".
type Server struct {
	FS    billy.Filesystem
	Local billy.Filesystem

	mu           sync.Mutex
	connectFails int
	disconnected bool
	connectCalls int
	failOn       map[string]error
	calls        []string
	active       int
	maxActive    int
	commands     map[string]sshclient.CommandResult
	hold         chan struct{}
	entered      chan struct{}
}

func NewServer(local billy.Filesystem) *Server {
	return &Server{
		FS:       memfs.New(),
		Local:    local,
		failOn:   make(map[string]error),
		commands: make(map[string]sshclient.CommandResult),
	}
}

// FailConnect makes the next n Connect calls return an error.
func (s *Server) FailConnect(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connectFails = n
}

// HoldConnect blocks every Connect until release is called. entered receives
// once per Connect that starts waiting.
func (s *Server) HoldConnect() (entered <-chan struct{}, release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hold = make(chan struct{})
	s.entered = make(chan struct{}, 16)
	var once sync.Once
	hold := s.hold
	return s.entered, func() { once.Do(func() { close(hold) }) }
}

// ReportDisconnected makes Connect succeed while IsConnected stays false.
func (s *Server) ReportDisconnected(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnected = v
}

// FailOn injects err for op on p, e.g. FailOn("upload", "/in/b.txt", err).
func (s *Server) FailOn(op, p string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOn[op+":"+p] = err
}

// SetCommand scripts the result of ExecuteCommand(cmd).
func (s *Server) SetCommand(cmd string, res sshclient.CommandResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands[cmd] = res
}

// Calls returns the recorded operations, optionally filtered by op.
func (s *Server) Calls(op string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, c := range s.calls {
		if op == "" || strings.HasPrefix(c, op+":") {
			out = append(out, c)
		}
	}
	return out
}

func (s *Server) ConnectCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectCalls
}

// Active is the number of currently connected sessions.
func (s *Server) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// MaxActive is the highest number of simultaneously connected sessions seen.
func (s *Server) MaxActive() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxActive
}

// WriteFile seeds the remote tree.
func (s *Server) WriteFile(p, content string) {
	if err := util.WriteFile(s.FS, p, []byte(content), 0o644); err != nil {
		panic(err)
	}
}

// ReadFile returns remote content or "" if absent.
func (s *Server) ReadFile(p string) string {
	b, err := util.ReadFile(s.FS, p)
	if err != nil {
		return ""
	}
	return string(b)
}

func (s *Server) record(op, p string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, op+":"+p)
	return s.failOn[op+":"+p]
}

// Session returns a new disconnected session to this server.
func (s *Server) Session(protocol sshclient.Protocol) *Session {
	return &Session{srv: s, protocol: protocol}
}

type Session struct {
	srv       *Server
	protocol  sshclient.Protocol
	connected bool
}

func (c *Session) Protocol() sshclient.Protocol { return c.protocol }

func (c *Session) Connect(ctx context.Context) error {
	s := c.srv
	s.mu.Lock()
	hold, entered := s.hold, s.entered
	s.mu.Unlock()
	if hold != nil {
		entered <- struct{}{}
		select {
		case <-hold:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.connectCalls++
	s.calls = append(s.calls, "connect:"+c.protocol.String())
	if s.connectFails > 0 {
		s.connectFails--
		return errors.New("connection refused")
	}
	if s.disconnected {
		return nil
	}
	c.connected = true
	s.active++
	if s.active > s.maxActive {
		s.maxActive = s.active
	}
	return nil
}

func (c *Session) IsConnected() bool { return c.connected }

func (c *Session) Disconnect() error {
	s := c.srv
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "disconnect:"+c.protocol.String())
	if c.connected {
		c.connected = false
		s.active--
	}
	return nil
}

func (c *Session) check(op, p string) error {
	if err := c.srv.record(op, p); err != nil {
		return err
	}
	if !c.connected {
		return fmt.Errorf("%s session not connected", c.protocol)
	}
	return nil
}

func (c *Session) ListDirectory(dir string) ([]sshclient.Entry, error) {
	if err := c.check("list", dir); err != nil {
		return nil, err
	}
	infos, err := c.srv.FS.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := make([]sshclient.Entry, 0, len(infos))
	for _, fi := range infos {
		out = append(out, sshclient.Entry{Name: fi.Name(), FullPath: path.Join(dir, fi.Name()), IsDir: fi.IsDir()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (c *Session) UploadFile(r io.Reader, remotePath string, overwrite bool) error {
	if err := c.check("upload", remotePath); err != nil {
		return err
	}
	if !overwrite {
		if _, err := c.srv.FS.Stat(remotePath); err == nil {
			return os.ErrExist
		}
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	return util.WriteFile(c.srv.FS, remotePath, buf.Bytes(), 0o644)
}

func (c *Session) DownloadFile(remotePath string, w io.Writer) error {
	if err := c.check("download", remotePath); err != nil {
		return err
	}
	b, err := util.ReadFile(c.srv.FS, remotePath)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

func (c *Session) DeleteFile(p string) error {
	if err := c.check("delete", p); err != nil {
		return err
	}
	return c.srv.FS.Remove(p)
}

func (c *Session) DeleteDirectory(p string, recursive bool) error {
	if err := c.check("rmdir", p); err != nil {
		return err
	}
	if recursive {
		return util.RemoveAll(c.srv.FS, p)
	}
	return c.srv.FS.Remove(p)
}

func (c *Session) MakeDirectory(p string) error {
	if err := c.check("mkdir", p); err != nil {
		return err
	}
	return c.srv.FS.MkdirAll(p, 0o755)
}

func (c *Session) UploadDirectoryTree(localDir, remoteRoot string) error {
	if err := c.check("uploadtree", remoteRoot); err != nil {
		return err
	}
	return copyTree(c.srv.Local, localDir, c.srv.FS, remoteRoot)
}

func (c *Session) DownloadDirectoryTree(remoteDir, localRoot string) error {
	if err := c.check("downloadtree", remoteDir); err != nil {
		return err
	}
	return copyTree(c.srv.FS, remoteDir, c.srv.Local, localRoot)
}

func (c *Session) ExecuteCommand(_ context.Context, cmd string) (sshclient.CommandResult, error) {
	if err := c.check("exec", cmd); err != nil {
		return sshclient.CommandResult{}, err
	}
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	return c.srv.commands[cmd], nil
}

func copyTree(src billy.Filesystem, from string, dst billy.Filesystem, to string) error {
	if err := dst.MkdirAll(to, 0o755); err != nil {
		return err
	}
	return util.Walk(src, from, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(from, p)
		if err != nil || rel == "." {
			return err
		}
		target := filepath.Join(to, rel)
		if info.IsDir() {
			return dst.MkdirAll(target, 0o755)
		}
		b, err := util.ReadFile(src, p)
		if err != nil {
			return err
		}
		return util.WriteFile(dst, target, b, 0o644)
	})
}
