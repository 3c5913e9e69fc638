package inventory

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/tastythames/ssh-transfer/internal/cleanup"
	"github.com/tastythames/ssh-transfer/internal/logger"
	"github.com/tastythames/ssh-transfer/internal/scheduler"
	"github.com/tastythames/ssh-transfer/internal/secrets"
	"github.com/tastythames/ssh-transfer/internal/sshclient"
	"github.com/tastythames/ssh-transfer/internal/transfer"
)

func (s Server) Target() sshclient.Target {
	return sshclient.Target{Host: s.Host, Port: s.Port, Description: s.Description}
}

func (s Server) Trigger() (scheduler.Trigger, error) {
	w, err := scheduler.ParseWindow(s.Schedule.Start, s.Schedule.End, s.Schedule.IntervalMinutes)
	if err != nil {
		return scheduler.Trigger{}, err
	}
	return scheduler.Plan(w)
}

func (s Server) Descriptors() ([]transfer.Descriptor, error) {
	out := make([]transfer.Descriptor, 0, len(s.Transfers))
	for i, t := range s.Transfers {
		kind, err := transfer.ParseKind(t.Type)
		if err != nil {
			return nil, fmt.Errorf("transfers[%d]: %w", i, err)
		}
		out = append(out, transfer.Descriptor{
			Kind:                 kind,
			LocalPath:            t.Local,
			RemotePath:           t.Remote,
			CleanupAfterTransfer: t.Cleanup,
			PostCommand:          t.PostCommand,
		})
	}
	return out, nil
}

// Jobs builds the transfer and cleanup jobs of every server. Servers without
// transfers or cleanup targets contribute no job of that kind.
func (inv *Inventory) Jobs() ([]scheduler.Job, []scheduler.CleanupJob, error) {
	var (
		jobs     []scheduler.Job
		cleanups []scheduler.CleanupJob
	)
	for i, s := range inv.Servers {
		target := s.Target()

		if len(s.Transfers) > 0 {
			trigger, err := s.Trigger()
			if err != nil {
				return nil, nil, fmt.Errorf("servers[%d]: %w", i, err)
			}
			descs, err := s.Descriptors()
			if err != nil {
				return nil, nil, fmt.Errorf("servers[%d]: %w", i, err)
			}
			jobs = append(jobs, scheduler.Job{
				Name:      scheduler.JobName(target),
				Target:    target,
				Trigger:   trigger,
				Transfers: descs,
			})
		}

		if len(s.CleanupTargets) > 0 {
			at, err := scheduler.ParseClock(s.CleanupAt)
			if err != nil {
				return nil, nil, fmt.Errorf("servers[%d].cleanup_at: %w", i, err)
			}
			targets := make([]cleanup.Target, 0, len(s.CleanupTargets))
			for _, c := range s.CleanupTargets {
				targets = append(targets, cleanup.Target{LocalPath: c.Local, RemotePath: c.Remote})
			}
			cleanups = append(cleanups, scheduler.CleanupJob{
				Name:    scheduler.CleanupJobName(target, len(targets)),
				Target:  target,
				Trigger: scheduler.DailyAt(at),
				Targets: targets,
			})
		}
	}
	return jobs, cleanups, nil
}

// Resolver builds the credential resolver. The secretbox key is read from
// secrets.key_env only when some password is sealed.
func (inv *Inventory) Resolver() (*secrets.Resolver, error) {
	creds := make([]secrets.Credentials, 0, len(inv.Credentials))
	sealed := false
	for _, c := range inv.Credentials {
		creds = append(creds, secrets.Credentials{
			Host:              c.Host,
			Login:             c.Login,
			EncryptedPassword: c.EncryptedPassword,
			PasswordEnv:       c.PasswordEnv,
			PrivateKeyPath:    c.PrivateKeyPath,
		})
		sealed = sealed || c.EncryptedPassword != ""
	}
	if !sealed {
		return secrets.NewResolver(creds, nil), nil
	}

	key := os.Getenv(inv.Secrets.KeyEnv)
	if key == "" {
		return nil, fmt.Errorf("empty env var: %s", inv.Secrets.KeyEnv)
	}
	box, err := secrets.NewBox(key)
	if err != nil {
		return nil, fmt.Errorf("secrets key: %w", err)
	}
	return secrets.NewResolver(creds, box), nil
}

// ApplySSH overrides base with whatever the inventory sets.
func (inv *Inventory) ApplySSH(base sshclient.Config) sshclient.Config {
	if inv.SSH.Port > 0 {
		base.Port = inv.SSH.Port
	}
	if inv.SSH.TimeoutSeconds > 0 {
		base.Timeout = time.Duration(inv.SSH.TimeoutSeconds) * time.Second
	}
	if inv.SSH.KnownHosts != "" {
		base.KnownHostsFile = inv.SSH.KnownHosts
	}
	if inv.SSH.InsecureSkipHostKey != nil {
		base.InsecureSkipHostKey = *inv.SSH.InsecureSkipHostKey
	}
	return base
}

// RetryOption is the connect retry policy, defaulting to 3 retries 10s apart.
func (inv *Inventory) RetryOption() transfer.Option {
	retries, delay := transfer.DefaultRetries, transfer.DefaultRetryDelay
	if inv.SSH.Retries != nil {
		retries = *inv.SSH.Retries
	}
	if inv.SSH.RetryDelaySeconds != nil {
		delay = time.Duration(*inv.SSH.RetryDelaySeconds) * time.Second
	}
	return transfer.WithRetry(retries, delay)
}

func (inv *Inventory) LoggerConfig() logger.Config {
	return logger.Config{Level: inv.Logging.Level, Format: inv.Logging.Format, Output: inv.Logging.Output}
}

func (inv *Inventory) Location() (*time.Location, error) {
	if inv.Service.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(inv.Service.Timezone)
}

// TelegramToken returns the bot token, or "" when alerts are not configured.
func (inv *Inventory) TelegramToken() (string, error) {
	env := inv.Alerts.Telegram.TokenEnv
	if env == "" {
		return "", nil
	}
	token := os.Getenv(env)
	if token == "" {
		return "", errors.New("empty env var: " + env)
	}
	return token, nil
}
