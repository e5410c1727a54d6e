package ipc

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"

	"pagi/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func socketPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "pagi.sock")
}

func TestInitIsIdempotent(t *testing.T) {
	lc := New(socketPath(t))
	defer lc.Close()

	require.NoError(t, lc.Init())
	require.NoError(t, lc.Init())

	first := lc.TakeListener()
	second := lc.TakeListener()
	require.NotNil(t, first)
	assert.Nil(t, second)
	defer first.Close()

	// Still bound after hand-off; no rebind, no new listener.
	require.NoError(t, lc.Init())
	assert.Nil(t, lc.TakeListener())
	assert.True(t, lc.Owned())
}

func TestTakeListenerBeforeInit(t *testing.T) {
	lc := New(socketPath(t))
	assert.Nil(t, lc.TakeListener())
	assert.False(t, lc.Owned())
	assert.NoError(t, lc.Close())
}

func TestInitRemovesStaleArtifact(t *testing.T) {
	path := socketPath(t)
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	lc := New(path)
	require.NoError(t, lc.Init())
	defer lc.Close()

	ln := lc.TakeListener()
	require.NotNil(t, ln)
	defer ln.Close()

	conn, err := net.Dial("unix", path)
	require.NoError(t, err)
	conn.Close()
}

func TestInitFailsWhenChannelIsLive(t *testing.T) {
	path := socketPath(t)
	owner := New(path)
	require.NoError(t, owner.Init())
	ln := owner.TakeListener()
	require.NotNil(t, ln)

	// Accept the probe connection so the dial succeeds promptly.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			c.Close()
		}
	}()

	second := New(path)
	err := second.Init()
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrIPC))
	assert.False(t, second.Owned())

	// The failed instance must not touch the owner's socket.
	require.NoError(t, second.Close())
	_, err = os.Stat(path)
	assert.NoError(t, err)

	ln.Close()
	<-done
	require.NoError(t, owner.Close())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestInitBindError(t *testing.T) {
	lc := New(filepath.Join(t.TempDir(), "missing-dir", "pagi.sock"))
	err := lc.Init()
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrIPC))
	assert.Nil(t, lc.TakeListener())
}

func TestCloseUnlinksOnlyWhenOwned(t *testing.T) {
	path := socketPath(t)
	owner := New(path)
	require.NoError(t, owner.Init())

	// A secondary instance targeting the same name never bound it.
	secondary := New(path)
	assert.Equal(t, path, secondary.Name())
	require.NoError(t, secondary.Close())
	_, err := os.Stat(path)
	require.NoError(t, err, "secondary close removed the socket")

	// Closing a taken listener leaves the file for the owner to unlink.
	ln := owner.TakeListener()
	require.NotNil(t, ln)
	require.NoError(t, ln.Close())
	_, err = os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, owner.Close())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	assert.False(t, owner.Owned())

	// Second close is a no-op.
	assert.NoError(t, owner.Close())
}

func TestCloseReleasesHeldListener(t *testing.T) {
	path := socketPath(t)
	lc := New(path)
	require.NoError(t, lc.Init())
	require.NoError(t, lc.Close())

	_, err := net.Dial("unix", path)
	assert.Error(t, err)
}
