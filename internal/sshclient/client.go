package sshclient

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/go-git/go-billy/v5"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Client builds sessions. local is the filesystem tree transfers read from and write to.
type Client struct {
	cfg   Config
	local billy.Filesystem
	hk    ssh.HostKeyCallback
}

func New(cfg Config, local billy.Filesystem) (*Client, error) {
	if cfg.Port <= 0 {
		cfg.Port = 22
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	var hk ssh.HostKeyCallback
	switch {
	case cfg.KnownHostsFile != "":
		cb, err := knownhosts.New(cfg.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("load known_hosts: %w", err)
		}
		hk = cb
	case cfg.InsecureSkipHostKey:
		hk = ssh.InsecureIgnoreHostKey()
	default:
		return nil, fmt.Errorf("host key verification requires a known_hosts file")
	}

	return &Client{cfg: cfg, local: local, hk: hk}, nil
}

// NewSession returns a disconnected session for target.
func (c *Client) NewSession(target Target, auth Auth, protocol Protocol) *Session {
	return &Session{client: c, target: target, auth: auth, protocol: protocol}
}

func (c *Client) authMethods(auth Auth) ([]ssh.AuthMethod, error) {
	if auth.User == "" {
		return nil, fmt.Errorf("ssh user is empty")
	}

	var methods []ssh.AuthMethod
	if auth.KeyPath != "" {
		pem, err := os.ReadFile(auth.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("read private key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if auth.Password != "" {
		password := auth.Password
		methods = append(methods,
			ssh.Password(password),
			ssh.KeyboardInteractive(func(_user, _instruction string, questions []string, _echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range questions {
					answers[i] = password
				}
				return answers, nil
			}),
		)
	}
	if len(methods) == 0 {
		return nil, fmt.Errorf("no password or private key for %s", auth.User)
	}
	return methods, nil
}

// dial opens an authenticated SSH connection. The handshake is bounded by
// cfg.Timeout; the returned connection has no deadline.
func (c *Client) dial(ctx context.Context, target Target, auth Auth) (*ssh.Client, error) {
	methods, err := c.authMethods(auth)
	if err != nil {
		return nil, err
	}

	addr := target.Addr(c.cfg.Port)
	sshCfg := &ssh.ClientConfig{
		User:            auth.User,
		HostKeyCallback: c.hk,
		Timeout:         c.cfg.Timeout,
		Auth:            methods,
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	// ssh handshake can still hang without deadlines
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	cconn, chans, reqs, err := ssh.NewClientConn(conn, addr, sshCfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})

	return ssh.NewClient(cconn, chans, reqs), nil
}
