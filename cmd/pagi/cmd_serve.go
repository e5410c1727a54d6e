package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"pagi/internal/core"
	"pagi/internal/ipc"
	"pagi/internal/logging"
	"pagi/internal/types"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// FactTypeAgentStatus marks facts recorded from status channel updates.
const FactTypeAgentStatus = "AgentStatus"

var recordStatus bool

// serveCmd binds the status channel and runs the accept loop
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Bind the status channel and accept agent status updates",
	Long: `Binds the status channel socket and accepts CBOR status frames from agent
processes until SIGINT or SIGTERM. With --record-status each update is also
recorded as an AgentStatus fact. On exit the store is flushed and the socket
is unlinked.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&recordStatus, "record-status", true, "Record status updates as facts")
}

func runServe(cmd *cobra.Command, args []string) error {
	if !cfg.IPC.Enabled {
		return errors.New("status channel is disabled in config (ipc.enabled)")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return withCore(ctx, func(c *core.Core, id types.AgentIdentity) error {
		if err := c.InitIPC(); err != nil {
			return err
		}
		ln := c.TakeIPCListener()
		if ln == nil {
			return fmt.Errorf("%w: listener already taken", types.ErrIPC)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "listening on %s\n", c.IPCName())

		server := ipc.NewStatusServer(statusHandler(c, id))
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return server.Serve(gctx, ln) })
		return g.Wait()
	})
}

// statusHandler logs each update and, with --record-status, records it as a fact.
func statusHandler(c *core.Core, id types.AgentIdentity) ipc.StatusHandler {
	return func(ctx context.Context, connID string, u ipc.StatusUpdate) error {
		logging.IPC("agent status",
			zap.String("conn", connID),
			zap.String("agent_id", u.AgentID),
			zap.String("task", u.Task),
			zap.String("state", u.State))
		if !recordStatus {
			return nil
		}
		content, err := json.Marshal(u)
		if err != nil {
			return err
		}
		return c.RecordFact(ctx, id, types.AgentFact{
			AgentID:   u.AgentID,
			Timestamp: timestampOrNow(u.Timestamp),
			FactType:  FactTypeAgentStatus,
			Content:   string(content),
		})
	}
}
