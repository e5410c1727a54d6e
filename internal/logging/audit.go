package logging

import (
	"go.uber.org/zap"
)

// =============================================================================
// AUDIT EVENT TYPES
// =============================================================================

// AuditEventType defines the type of audit event
type AuditEventType string

const (
	// Authorization
	AuditAuthDeny  AuditEventType = "auth_deny"
	AuditAuthAllow AuditEventType = "auth_allow"

	// Knowledge base
	AuditFactRecord AuditEventType = "fact_record"

	// Planning
	AuditPlanTier AuditEventType = "plan_tier"

	// Status channel
	AuditIPCBind   AuditEventType = "ipc_bind"
	AuditIPCUnlink AuditEventType = "ipc_unlink"
)

// AuditLogger writes audit events to the audit category, optionally tagged with a request id.
type AuditLogger struct {
	requestID string
}

// Audit returns an audit logger without request correlation.
func Audit() *AuditLogger {
	return &AuditLogger{}
}

// AuditWithRequest returns an audit logger tagging every event with requestID.
func AuditWithRequest(requestID string) *AuditLogger {
	return &AuditLogger{requestID: requestID}
}

// Log writes one event with the given fields.
func (a *AuditLogger) Log(event AuditEventType, msg string, fields ...zap.Field) {
	base := make([]zap.Field, 0, len(fields)+2)
	base = append(base, zap.String("event", string(event)))
	if a.requestID != "" {
		base = append(base, zap.String("req", a.requestID))
	}
	Get(CategoryAudit).Info(msg, append(base, fields...)...)
}

// AuthDeny records a gatekeeper rejection.
func (a *AuditLogger) AuthDeny(identity, scope, reason string) {
	a.Log(AuditAuthDeny, "authorization denied",
		zap.String("identity", identity),
		zap.String("scope", scope),
		zap.String("reason", reason))
}

// AuthAllowByPolicy records a grant that relied on a policy exception rather than the scope itself.
func (a *AuditLogger) AuthAllowByPolicy(identity, scope, via, reason string) {
	a.Log(AuditAuthAllow, "authorization granted by policy exception",
		zap.String("identity", identity),
		zap.String("scope", scope),
		zap.String("via", via),
		zap.String("reason", reason))
}

// FactRecorded records a durable fact write.
func (a *AuditLogger) FactRecorded(identity, factType string, ts uint64) {
	a.Log(AuditFactRecord, "fact recorded",
		zap.String("identity", identity),
		zap.String("fact_type", factType),
		zap.Uint64("timestamp", ts))
}

// PlanTier records which planner tier produced the result.
func (a *AuditLogger) PlanTier(identity, tier string, tasks int) {
	a.Log(AuditPlanTier, "plan produced",
		zap.String("identity", identity),
		zap.String("tier", tier),
		zap.Int("tasks", tasks))
}

// IPCBind records a successful listener bind.
func (a *AuditLogger) IPCBind(name string) {
	a.Log(AuditIPCBind, "ipc listener bound", zap.String("name", name))
}

// IPCUnlink records removal of the channel artifact by its owner.
func (a *AuditLogger) IPCUnlink(name string, err error) {
	if err != nil {
		a.Log(AuditIPCUnlink, "ipc artifact unlink failed", zap.String("name", name), zap.Error(err))
		return
	}
	a.Log(AuditIPCUnlink, "ipc artifact unlinked", zap.String("name", name))
}
