package ipc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"reflect"
	"time"

	"pagi/internal/logging"
	"pagi/internal/types"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// StatusUpdate is one frame on the status channel. A connection carries a stream of
// CBOR-encoded updates; CBOR is self-delimiting, so frames need no length prefix.
type StatusUpdate struct {
	AgentID   string `cbor:"agent_id" json:"agent_id"`
	Task      string `cbor:"task" json:"task"`
	State     string `cbor:"state" json:"state"`
	Detail    string `cbor:"detail,omitempty" json:"detail,omitempty"`
	Timestamp uint64 `cbor:"timestamp" json:"timestamp"`
}

// Well-known values for StatusUpdate.State.
const (
	StateStarted   = "started"
	StateProgress  = "progress"
	StateCompleted = "completed"
	StateFailed    = "failed"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	// Core deterministic encoding: sorted keys, shortest integers.
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("ipc: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DefaultMapType:   reflect.TypeOf(map[string]any(nil)),
		MaxArrayElements: 4096,
		MaxMapPairs:      4096,
	}.DecMode()
	if err != nil {
		panic("ipc: CBOR decoder initialization failed: " + err.Error())
	}
}

// idleTimeout is how long a connection may stay silent between frames.
const idleTimeout = 5 * time.Minute

// StatusHandler receives every decoded update. connID identifies the connection.
type StatusHandler func(ctx context.Context, connID string, update StatusUpdate) error

// StatusServer is the default accept loop for the status channel.
type StatusServer struct {
	handler StatusHandler
}

// NewStatusServer returns a server dispatching updates to handler.
func NewStatusServer(handler StatusHandler) *StatusServer {
	return &StatusServer{handler: handler}
}

// Serve accepts connections on ln until ctx is cancelled or ln is closed, then waits
// for open connections to finish. Serve closes ln. Handler errors are logged and do
// not stop the server.
func (s *StatusServer) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	logging.IPC("status server listening", zap.String("addr", ln.Addr().String()))

	var g errgroup.Group
	var acceptErr error
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
				acceptErr = fmt.Errorf("%w: accept: %v", types.ErrIPC, err)
			}
			break
		}
		connID := uuid.NewString()
		g.Go(func() error {
			s.handleConn(ctx, connID, conn)
			return nil
		})
	}
	ln.Close()

	g.Wait()
	logging.IPC("status server stopped")
	return acceptErr
}

func (s *StatusServer) handleConn(ctx context.Context, connID string, conn net.Conn) {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	log := logging.Get(logging.CategoryIPC).With(zap.String("conn", connID))
	log.Debug("status connection opened")

	dec := decMode.NewDecoder(conn)
	frames := 0
	for {
		conn.SetReadDeadline(time.Now().Add(idleTimeout))
		var update StatusUpdate
		if err := dec.Decode(&update); err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				log.Warn("status frame rejected", zap.Error(err))
			}
			break
		}
		frames++
		if err := s.handler(ctx, connID, update); err != nil {
			log.Warn("status handler failed",
				zap.String("agent_id", update.AgentID),
				zap.String("task", update.Task),
				zap.Error(err))
		}
	}
	log.Debug("status connection closed", zap.Int("frames", frames))
}

// SendStatus dials the channel at name and writes updates as one stream.
func SendStatus(ctx context.Context, name string, updates ...StatusUpdate) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", name)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", types.ErrIPC, name, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetWriteDeadline(deadline)
	}
	enc := encMode.NewEncoder(conn)
	for _, u := range updates {
		if err := enc.Encode(u); err != nil {
			return fmt.Errorf("%w: send status: %v", types.ErrIPC, err)
		}
	}
	return nil
}

// EncodeStatus returns the wire form of one update.
func EncodeStatus(u StatusUpdate) ([]byte, error) {
	return encMode.Marshal(u)
}

// DecodeStatus parses one wire frame.
func DecodeStatus(data []byte) (StatusUpdate, error) {
	var u StatusUpdate
	err := decMode.Unmarshal(data, &u)
	return u, err
}
