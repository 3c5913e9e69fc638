package cleanup_test

import (
	"context"
	"errors"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tastythames/ssh-transfer/internal/cleanup"
	"github.com/tastythames/ssh-transfer/internal/logger"
	"github.com/tastythames/ssh-transfer/internal/sshclient"
	"github.com/tastythames/ssh-transfer/internal/transfer/transfertest"
)

func seed(t *testing.T, fs billy.Filesystem, files ...string) {
	t.Helper()
	for _, f := range files {
		require.NoError(t, util.WriteFile(fs, f, []byte("x"), 0o644))
	}
}

func TestLocal_KeepsRoot(t *testing.T) {
	fs := memfs.New()
	seed(t, fs, "/out/a.txt", "/out/b.txt", "/out/sub/c.txt", "/out/sub/deep/d.txt")

	c := cleanup.New(fs, logger.Nop())
	n, err := c.Local("/out", false)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	entries, err := fs.ReadDir("/out")
	require.NoError(t, err)
	assert.Empty(t, entries)
	_, err = fs.Stat("/out")
	assert.NoError(t, err, "root directory must survive")
}

func TestLocal_RemoveRoot(t *testing.T) {
	fs := memfs.New()
	seed(t, fs, "/tree/a.txt", "/tree/x/y.txt")

	_, err := cleanup.New(fs, logger.Nop()).Local("/tree", true)
	require.NoError(t, err)

	_, err = fs.Stat("/tree")
	assert.Error(t, err)
}

func TestLocal_MissingDirIsNoop(t *testing.T) {
	n, err := cleanup.New(memfs.New(), logger.Nop()).Local("/nowhere", true)
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func connected(t *testing.T, srv *transfertest.Server) *transfertest.Session {
	t.Helper()
	sess := srv.Session(sshclient.ProtocolSFTP)
	require.NoError(t, sess.Connect(context.Background()))
	return sess
}

func TestRemote_DeletesFilesAndDirsKeepsRoot(t *testing.T) {
	srv := transfertest.NewServer(memfs.New())
	srv.WriteFile("/in/a.txt", "a")
	srv.WriteFile("/in/b.txt", "b")
	srv.WriteFile("/in/sub/c.txt", "c")
	sess := connected(t, srv)

	n, err := cleanup.New(memfs.New(), logger.Nop()).Remote(sess, "/in")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.Equal(t, []string{"delete:/in/a.txt", "delete:/in/b.txt"}, srv.Calls("delete"))
	assert.Equal(t, []string{"rmdir:/in/sub"}, srv.Calls("rmdir"))

	left, err := srv.FS.ReadDir("/in")
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestRemote_StopsAtFirstError(t *testing.T) {
	srv := transfertest.NewServer(memfs.New())
	srv.WriteFile("/in/a.txt", "a")
	srv.WriteFile("/in/b.txt", "b")
	srv.WriteFile("/in/c.txt", "c")
	srv.FailOn("delete", "/in/b.txt", errors.New("permission denied"))
	sess := connected(t, srv)

	n, err := cleanup.New(memfs.New(), logger.Nop()).Remote(sess, "/in")
	require.Error(t, err)
	assert.ErrorIs(t, err, cleanup.ErrCleanup)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"delete:/in/a.txt", "delete:/in/b.txt"}, srv.Calls("delete"),
		"c.txt must not be attempted after the failure")
	assert.Equal(t, "c", srv.ReadFile("/in/c.txt"))
}

func TestTargets(t *testing.T) {
	local := memfs.New()
	seed(t, local, "/stage/a.txt", "/stage/old/b.txt")
	srv := transfertest.NewServer(local)
	srv.WriteFile("/drop/x.csv", "x")
	sess := connected(t, srv)

	c := cleanup.New(local, logger.Nop())
	targets := []cleanup.Target{{LocalPath: "/stage", RemotePath: "/drop"}}
	require.True(t, cleanup.NeedsRemote(targets))

	n, err := c.Targets(sess, targets)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Empty(t, srv.ReadFile("/drop/x.csv"))
}

func TestTargets_RemoteWithoutSession(t *testing.T) {
	c := cleanup.New(memfs.New(), logger.Nop())
	_, err := c.Targets(nil, []cleanup.Target{{RemotePath: "/drop"}})
	assert.ErrorIs(t, err, cleanup.ErrCleanup)

	assert.False(t, cleanup.NeedsRemote([]cleanup.Target{{LocalPath: "/stage"}}))
}
