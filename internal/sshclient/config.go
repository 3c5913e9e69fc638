package sshclient

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Timeout time.Duration
	Port    int

	// KnownHostsFile enables host key verification when set.
	KnownHostsFile      string
	InsecureSkipHostKey bool
}

// LoadConfig reads defaults from the environment. The inventory may override them.
func LoadConfig() Config {
	timeout := 30 * time.Second
	if v := os.Getenv("SSH_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			timeout = time.Duration(n) * time.Second
		}
	}

	port := 22
	if v := os.Getenv("SSH_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			port = n
		}
	}

	insecure := true
	if v := os.Getenv("SSH_INSECURE_SKIP_HOST_KEY"); v != "" {
		insecure = strings.EqualFold(v, "true") || v == "1"
	}

	return Config{
		Timeout:             timeout,
		Port:                port,
		KnownHostsFile:      os.Getenv("SSH_KNOWN_HOSTS"),
		InsecureSkipHostKey: insecure,
	}
}
