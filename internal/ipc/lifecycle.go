// Package ipc owns the status channel: a Unix domain socket at a well-known path that
// agent processes connect to for status updates.
//
// Exactly one Lifecycle binds the socket. It may hand the listener to one accept loop
// and keeps only the name afterwards. The socket file is unlinked on Close only by the
// instance that bound it, so a secondary instance sharing the same store never removes
// a channel owned by another live instance.
package ipc

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"pagi/internal/logging"
	"pagi/internal/types"

	"go.uber.org/zap"
)

// probeTimeout bounds the liveness probe against an existing socket.
const probeTimeout = 250 * time.Millisecond

// Lifecycle binds, hands off and tears down the status channel listener.
// It is safe for concurrent use.
type Lifecycle struct {
	mu       sync.Mutex
	name     string
	listener net.Listener
	// owned is set when this instance performed the bind and cleared once it unlinks.
	owned bool
}

// New returns an unbound lifecycle for the channel at name.
func New(name string) *Lifecycle {
	return &Lifecycle{name: name}
}

// Name returns the channel address clients should dial.
func (l *Lifecycle) Name() string {
	return l.name
}

// Owned reports whether this instance bound the channel.
func (l *Lifecycle) Owned() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.owned
}

// Init binds the listener. It is idempotent: once bound, later calls succeed without
// rebinding, including after the listener was taken. A socket file left by a crashed
// instance is removed first; a socket that still accepts connections belongs to a live
// instance and makes Init fail. Failures wrap types.ErrIPC.
func (l *Lifecycle) Init() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.owned {
		return nil
	}

	if !isAbstract(l.name) {
		if conn, err := net.DialTimeout("unix", l.name, probeTimeout); err == nil {
			conn.Close()
			return fmt.Errorf("%w: %s is in use by a live listener", types.ErrIPC, l.name)
		}
		if err := os.Remove(l.name); err != nil && !os.IsNotExist(err) {
			logging.IPCDebug("stale socket not removed", zap.String("name", l.name), zap.Error(err))
		}
	}

	ln, err := net.Listen("unix", l.name)
	if err != nil {
		return fmt.Errorf("%w: bind %s: %v", types.ErrIPC, l.name, err)
	}
	// Unlinking is decided by ownership in Close, not by whoever closes the listener.
	if ul, ok := ln.(*net.UnixListener); ok {
		ul.SetUnlinkOnClose(false)
	}

	l.listener = ln
	l.owned = true
	logging.Audit().IPCBind(l.name)
	return nil
}

// TakeListener transfers the bound listener to the caller. It returns nil when the
// channel was never bound or the listener was already taken.
func (l *Lifecycle) TakeListener() net.Listener {
	l.mu.Lock()
	defer l.mu.Unlock()
	ln := l.listener
	l.listener = nil
	if ln != nil {
		logging.IPCDebug("listener handed off", zap.String("name", l.name))
	}
	return ln
}

// Close releases a listener still held and, if this instance bound the channel,
// unlinks the socket file. Close is safe to call more than once.
func (l *Lifecycle) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error
	if l.listener != nil {
		if err := l.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, fmt.Errorf("close listener: %w", err))
		}
		l.listener = nil
	}

	if l.owned {
		l.owned = false
		if !isAbstract(l.name) {
			err := os.Remove(l.name)
			if os.IsNotExist(err) {
				err = nil
			}
			logging.Audit().IPCUnlink(l.name, err)
			if err != nil {
				errs = append(errs, fmt.Errorf("unlink %s: %w", l.name, err))
			}
		}
	}
	return errors.Join(errs...)
}

// isAbstract reports whether name is a Linux abstract socket address, which has no
// filesystem artifact.
func isAbstract(name string) bool {
	return strings.HasPrefix(name, "@")
}
