package auth

import (
	"errors"
	"testing"

	"pagi/internal/logging"
	"pagi/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observeAudit(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	t.Cleanup(logging.SetLoggerForTest(zap.New(core)))
	return logs
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name     string
		identity types.AgentIdentity
		scope    types.AuthScope
		wantErr  bool
	}{
		{"granted", types.NewIdentity("a", types.ScopeReadFacts), types.ScopeReadFacts, false},
		{"missing", types.NewIdentity("a", types.ScopeReadFacts), types.ScopeWritePolicy, true},
		{"no scopes", types.NewIdentity("a"), types.ScopeReadFacts, true},
		{"zero identity", types.AgentIdentity{}, types.ScopeExternalAPI, true},
		// Scopes are flat: WriteFacts does not imply ReadFacts.
		{"no implication", types.NewIdentity("a", types.ScopeWriteFacts), types.ScopeReadFacts, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Check(tt.identity, tt.scope)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, types.ErrPermissionDenied))

			var denied *types.PermissionDeniedError
			require.True(t, errors.As(err, &denied))
			assert.Equal(t, tt.identity.ID, denied.Identity)
			assert.Equal(t, tt.scope, denied.Scope)
		})
	}
}

func TestCheckWrite(t *testing.T) {
	logs := observeAudit(t)

	err := CheckWrite(types.NewIdentity("reader", types.ScopeReadFacts))
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrPermissionDenied))

	assert.NoError(t, CheckWrite(types.NewIdentity("writer", types.ScopeWriteFacts)))
	assert.NoError(t, CheckWrite(types.NewIdentity("arm", types.ScopeRoboticsAction)))

	allowed := logs.FilterField(zap.String("event", string(logging.AuditAuthAllow))).All()
	require.Len(t, allowed, 1)
	assert.Equal(t, "arm", allowed[0].ContextMap()["identity"])
	assert.Equal(t, string(types.ScopeRoboticsAction), allowed[0].ContextMap()["via"])
}

func TestDenialEmitsAuditEvent(t *testing.T) {
	logs := observeAudit(t)

	require.NoError(t, Check(types.NewIdentity("ok", types.ScopeReadFacts), types.ScopeReadFacts))
	assert.Zero(t, logs.Len(), "grants are not audited")

	gk := NewGatekeeper("req-42")
	require.Error(t, gk.Check(types.NewIdentity("agent-7"), types.ScopeExternalAPI))

	denials := logs.FilterField(zap.String("event", string(logging.AuditAuthDeny))).All()
	require.Len(t, denials, 1)
	fields := denials[0].ContextMap()
	assert.Equal(t, "agent-7", fields["identity"])
	assert.Equal(t, string(types.ScopeExternalAPI), fields["scope"])
	assert.Equal(t, string(ReasonScopeNotGranted), fields["reason"])
	assert.Equal(t, "req-42", fields["req"])
}
