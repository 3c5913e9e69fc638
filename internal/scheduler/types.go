package scheduler

import (
	"fmt"

	"github.com/tastythames/ssh-transfer/internal/cleanup"
	"github.com/tastythames/ssh-transfer/internal/sshclient"
	"github.com/tastythames/ssh-transfer/internal/transfer"
)

// Job is one server's transfer schedule.
type Job struct {
	Name      string
	Target    sshclient.Target
	Trigger   Trigger
	Transfers []transfer.Descriptor
}

// CleanupJob is one server's daily cleanup.
type CleanupJob struct {
	Name    string
	Target  sshclient.Target
	Trigger Trigger
	Targets []cleanup.Target
}

// JobName names a transfer job by server description and host.
func JobName(target sshclient.Target) string {
	return fmt.Sprintf("%s-%s", target.Description, target.Host)
}

// CleanupJobName names a cleanup job by server description and target count.
func CleanupJobName(target sshclient.Target, targets int) string {
	return fmt.Sprintf("%s-cleanup-%d", target.Description, targets)
}
