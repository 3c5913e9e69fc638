package transfer

import (
	"fmt"
	"strings"

	"github.com/tastythames/ssh-transfer/internal/sshclient"
)

// Kind is the closed set of transfer variants.
type Kind int

const (
	UploadFiles Kind = iota + 1
	DownloadFiles
	UploadDirectory
	DownloadDirectory
)

var kindNames = map[Kind]string{
	UploadFiles:       "upload_files",
	DownloadFiles:     "download_files",
	UploadDirectory:   "upload_directory",
	DownloadDirectory: "download_directory",
}

// ParseKind accepts the short config forms ("out", "in", "outdir", "indir")
// and the long names, case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "out", "upload_files":
		return UploadFiles, nil
	case "in", "download_files":
		return DownloadFiles, nil
	case "outdir", "upload_directory":
		return UploadDirectory, nil
	case "indir", "download_directory":
		return DownloadDirectory, nil
	default:
		return 0, fmt.Errorf("unknown transfer type %q (expected: out, in, outdir, indir)", s)
	}
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Protocol is the session a kind runs on.
func (k Kind) Protocol() sshclient.Protocol {
	switch k {
	case UploadDirectory, DownloadDirectory:
		return sshclient.ProtocolSCP
	default:
		return sshclient.ProtocolSFTP
	}
}

// SupportsCleanup is false for DownloadDirectory: remote cleanup after a tree
// download is not defined.
func (k Kind) SupportsCleanup() bool {
	return k != DownloadDirectory
}

// Descriptor is one configured transfer. Built once from configuration and never mutated.
type Descriptor struct {
	Kind                 Kind
	LocalPath            string
	RemotePath           string
	CleanupAfterTransfer bool

	// PostCommand runs on the remote host after a successful transfer.
	PostCommand string
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s %s <-> %s", d.Kind, d.LocalPath, d.RemotePath)
}
