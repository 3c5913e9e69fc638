package sshclient

import (
	"fmt"
	"net"
	"strconv"
)

// Protocol selects which session a transfer runs on. The two are opened
// as independent connections and never substitute for each other.
type Protocol int

const (
	// ProtocolSFTP is the file-session used for per-file operations.
	ProtocolSFTP Protocol = iota + 1
	// ProtocolSCP is the directory-session used for whole-tree transfers.
	ProtocolSCP
)

func (p Protocol) String() string {
	switch p {
	case ProtocolSFTP:
		return "sftp"
	case ProtocolSCP:
		return "scp"
	default:
		return fmt.Sprintf("protocol(%d)", int(p))
	}
}

// Target is a remote endpoint.
type Target struct {
	Host        string
	Port        int
	Description string
}

func (t Target) Addr(defaultPort int) string {
	port := t.Port
	if port <= 0 {
		port = defaultPort
	}
	return net.JoinHostPort(t.Host, strconv.Itoa(port))
}

// Auth holds decrypted login material. It lives only as long as one run.
type Auth struct {
	User     string
	Password string
	KeyPath  string
}

// Entry is one remote directory listing item.
type Entry struct {
	Name     string
	FullPath string
	IsDir    bool
}

type CommandResult struct {
	Output     string
	ExitStatus int
}
