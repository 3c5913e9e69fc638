package inventory

import (
	"fmt"
	"strings"
	"time"

	"github.com/tastythames/ssh-transfer/internal/scheduler"
	"github.com/tastythames/ssh-transfer/internal/transfer"
)

// Validate reports every problem found rather than stopping at the first.
func (inv *Inventory) Validate() []error {
	var errs []error

	switch inv.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid logging.level: %s (expected: debug, info, warn, error)", inv.Logging.Level))
	}
	switch inv.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("invalid logging.format: %s (expected: json, text)", inv.Logging.Format))
	}
	if inv.Service.Timezone != "" {
		if _, err := time.LoadLocation(inv.Service.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("service.timezone: %w", err))
		}
	}
	if inv.SSH.Retries != nil && *inv.SSH.Retries < 0 {
		errs = append(errs, fmt.Errorf("ssh.retries cannot be negative"))
	}
	if inv.SSH.RetryDelaySeconds != nil && *inv.SSH.RetryDelaySeconds < 0 {
		errs = append(errs, fmt.Errorf("ssh.retry_delay_seconds cannot be negative"))
	}
	if inv.Alerts.Telegram.TokenEnv != "" && inv.Alerts.Telegram.ChatID == 0 {
		errs = append(errs, fmt.Errorf("alerts.telegram.chat_id is required when token_env is set"))
	}

	hosts := make(map[string]bool)
	for i, c := range inv.Credentials {
		field := fmt.Sprintf("credentials[%d]", i)
		if c.Host == "" {
			errs = append(errs, fmt.Errorf("%s.host is required", field))
		}
		if c.Login == "" {
			errs = append(errs, fmt.Errorf("%s.login is required", field))
		}
		if c.EncryptedPassword == "" && c.PasswordEnv == "" && c.PrivateKeyPath == "" {
			errs = append(errs, fmt.Errorf("%s needs encrypted_password, password_env or private_key_path", field))
		}
		if c.EncryptedPassword != "" && inv.Secrets.KeyEnv == "" {
			errs = append(errs, fmt.Errorf("%s.encrypted_password requires secrets.key_env", field))
		}
		key := strings.ToLower(c.Host)
		if hosts[key] {
			errs = append(errs, fmt.Errorf("%s: duplicate credentials for host %s", field, c.Host))
		}
		hosts[key] = true
	}

	if len(inv.Servers) == 0 {
		errs = append(errs, fmt.Errorf("servers cannot be empty"))
	}
	names := make(map[string]string)
	claim := func(name, field string) {
		if prev, ok := names[name]; ok {
			errs = append(errs, fmt.Errorf("%s: job name %q already used by %s", field, name, prev))
			return
		}
		names[name] = field
	}

	for i, s := range inv.Servers {
		field := fmt.Sprintf("servers[%d]", i)
		if s.Description == "" {
			errs = append(errs, fmt.Errorf("%s.description is required", field))
		}
		if s.Host == "" {
			errs = append(errs, fmt.Errorf("%s.host is required", field))
		} else if !hosts[strings.ToLower(s.Host)] {
			errs = append(errs, fmt.Errorf("%s: no credentials for host %s", field, s.Host))
		}

		if len(s.Transfers) > 0 {
			if _, err := s.Trigger(); err != nil {
				errs = append(errs, fmt.Errorf("%s.schedule: %w", field, err))
			}
			claim(scheduler.JobName(s.Target()), field)
		}
		for j, t := range s.Transfers {
			tf := fmt.Sprintf("%s.transfers[%d]", field, j)
			if _, err := transfer.ParseKind(t.Type); err != nil {
				errs = append(errs, fmt.Errorf("%s.type: %w", tf, err))
			}
			if t.Local == "" {
				errs = append(errs, fmt.Errorf("%s.local is required", tf))
			}
			if t.Remote == "" {
				errs = append(errs, fmt.Errorf("%s.remote is required", tf))
			}
		}

		if len(s.CleanupTargets) > 0 {
			if _, err := scheduler.ParseClock(s.CleanupAt); err != nil {
				errs = append(errs, fmt.Errorf("%s.cleanup_at: %w", field, err))
			}
			claim(scheduler.CleanupJobName(s.Target(), len(s.CleanupTargets)), field)
		}
		for j, c := range s.CleanupTargets {
			if c.Local == "" && c.Remote == "" {
				errs = append(errs, fmt.Errorf("%s.cleanup_targets[%d] names neither local nor remote", field, j))
			}
		}
	}

	return errs
}

// Warnings lists settings that load but will not behave as written.
func (inv *Inventory) Warnings() []string {
	var out []string
	for i, s := range inv.Servers {
		if len(s.Transfers) == 0 && len(s.CleanupTargets) == 0 {
			out = append(out, fmt.Sprintf("servers[%d] (%s) has nothing scheduled", i, s.Description))
		}
		for j, t := range s.Transfers {
			k, err := transfer.ParseKind(t.Type)
			if err != nil || !t.Cleanup || k.SupportsCleanup() {
				continue
			}
			out = append(out, fmt.Sprintf("servers[%d].transfers[%d]: cleanup is ignored for %s transfers", i, j, k))
		}
	}
	return out
}
