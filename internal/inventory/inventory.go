// Package inventory loads the service configuration: which servers to reach,
// when, and what to move. YAML and TOML files are accepted.
package inventory

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

type Inventory struct {
	Service     Service      `yaml:"service" toml:"service"`
	Logging     Logging      `yaml:"logging" toml:"logging"`
	SSH         SSH          `yaml:"ssh" toml:"ssh"`
	Secrets     Secrets      `yaml:"secrets" toml:"secrets"`
	Alerts      Alerts       `yaml:"alerts" toml:"alerts"`
	Credentials []Credential `yaml:"credentials" toml:"credentials"`
	Servers     []Server     `yaml:"servers" toml:"servers"`
}

type Service struct {
	Listen   string `yaml:"listen" toml:"listen"`
	Timezone string `yaml:"timezone" toml:"timezone"`
}

type Logging struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
	Output string `yaml:"output" toml:"output"`
}

type SSH struct {
	Port                int    `yaml:"port" toml:"port"`
	TimeoutSeconds      int    `yaml:"timeout_seconds" toml:"timeout_seconds"`
	KnownHosts          string `yaml:"known_hosts" toml:"known_hosts"`
	InsecureSkipHostKey *bool  `yaml:"insecure_skip_host_key" toml:"insecure_skip_host_key"`
	Retries             *int   `yaml:"retries" toml:"retries"`
	RetryDelaySeconds   *int   `yaml:"retry_delay_seconds" toml:"retry_delay_seconds"`
}

type Secrets struct {
	// KeyEnv names the variable holding the base64 key for encrypted_password.
	KeyEnv string `yaml:"key_env" toml:"key_env"`
}

type Alerts struct {
	Telegram Telegram `yaml:"telegram" toml:"telegram"`
}

type Telegram struct {
	TokenEnv string `yaml:"token_env" toml:"token_env"`
	ChatID   int64  `yaml:"chat_id" toml:"chat_id"`
}

type Credential struct {
	Host              string `yaml:"host" toml:"host"`
	Login             string `yaml:"login" toml:"login"`
	EncryptedPassword string `yaml:"encrypted_password" toml:"encrypted_password"`
	PasswordEnv       string `yaml:"password_env" toml:"password_env"`
	PrivateKeyPath    string `yaml:"private_key_path" toml:"private_key_path"`
}

type Server struct {
	Description    string          `yaml:"description" toml:"description"`
	Host           string          `yaml:"host" toml:"host"`
	Port           int             `yaml:"port" toml:"port"`
	Schedule       Schedule        `yaml:"schedule" toml:"schedule"`
	Transfers      []Transfer      `yaml:"transfers" toml:"transfers"`
	CleanupTargets []CleanupTarget `yaml:"cleanup_targets" toml:"cleanup_targets"`
	CleanupAt      string          `yaml:"cleanup_at" toml:"cleanup_at"`
}

type Schedule struct {
	Start           string `yaml:"start" toml:"start"`
	End             string `yaml:"end" toml:"end"`
	IntervalMinutes int    `yaml:"interval_minutes" toml:"interval_minutes"`
}

type Transfer struct {
	Type        string `yaml:"type" toml:"type"`
	Local       string `yaml:"local" toml:"local"`
	Remote      string `yaml:"remote" toml:"remote"`
	Cleanup     bool   `yaml:"cleanup" toml:"cleanup"`
	PostCommand string `yaml:"post_command" toml:"post_command"`
}

type CleanupTarget struct {
	Local  string `yaml:"local" toml:"local"`
	Remote string `yaml:"remote" toml:"remote"`
}

// Load reads path, choosing the decoder by extension (.toml, else YAML), and
// applies defaults.
func Load(path string) (*Inventory, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read inventory: %w", err)
	}

	var inv Inventory
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(b, &inv); err != nil {
			return nil, fmt.Errorf("toml unmarshal: %w", err)
		}
	default:
		if err := yaml.Unmarshal(b, &inv); err != nil {
			return nil, fmt.Errorf("yaml unmarshal: %w", err)
		}
	}

	if err := inv.normalize(); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (inv *Inventory) normalize() error {
	if inv.Service.Listen == "" {
		inv.Service.Listen = ":9222"
	}
	if inv.Logging.Level == "" {
		inv.Logging.Level = "info"
	}
	if inv.Logging.Format == "" {
		inv.Logging.Format = "json"
	}
	if inv.Logging.Output == "" {
		inv.Logging.Output = "stdout"
	}

	for i := range inv.Servers {
		s := &inv.Servers[i]
		s.Host = strings.TrimSpace(s.Host)
		if s.CleanupAt == "" {
			s.CleanupAt = "00:00"
		}
		for j := range s.Transfers {
			t := &s.Transfers[j]
			local, err := absolute(t.Local)
			if err != nil {
				return fmt.Errorf("servers[%d].transfers[%d].local: %w", i, j, err)
			}
			t.Local = local
		}
		for j := range s.CleanupTargets {
			c := &s.CleanupTargets[j]
			local, err := absolute(c.Local)
			if err != nil {
				return fmt.Errorf("servers[%d].cleanup_targets[%d].local: %w", i, j, err)
			}
			c.Local = local
		}
	}
	return nil
}

func absolute(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	if strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		p = filepath.Join(home, p[2:])
	}
	return filepath.Abs(p)
}
