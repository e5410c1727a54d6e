// Package auth implements the capability gate in front of the knowledge base.
//
// Checks are pure functions of the identity's granted scopes: no caching, no state.
// The only side effect is an audit event on denial.
package auth

import (
	"pagi/internal/logging"
	"pagi/internal/types"
)

// DenyReason describes why a check was denied.
type DenyReason string

const ReasonScopeNotGranted DenyReason = "scope not granted"

// Check succeeds iff scope is a member of identity's scopes.
func Check(identity types.AgentIdentity, scope types.AuthScope) error {
	return check(logging.Audit(), identity, scope)
}

// CheckWrite authorizes a fact write. WriteFacts grants it; failing that, RoboticsAction
// also does, so embodied agents can log action outcomes without full knowledge-base
// write rights.
func CheckWrite(identity types.AgentIdentity) error {
	audit := logging.Audit()
	if !identity.Has(types.ScopeWriteFacts) && identity.Has(types.ScopeRoboticsAction) {
		audit.AuthAllowByPolicy(identity.ID, string(types.ScopeWriteFacts),
			string(types.ScopeRoboticsAction), "robotics agents may record action outcomes")
		return nil
	}
	return check(audit, identity, types.ScopeWriteFacts)
}

// Gatekeeper binds checks to a request-scoped audit logger.
type Gatekeeper struct {
	audit *logging.AuditLogger
}

// NewGatekeeper returns a gatekeeper whose denials carry requestID.
func NewGatekeeper(requestID string) *Gatekeeper {
	return &Gatekeeper{audit: logging.AuditWithRequest(requestID)}
}

// Check is the request-scoped form of the package-level Check.
func (g *Gatekeeper) Check(identity types.AgentIdentity, scope types.AuthScope) error {
	return check(g.audit, identity, scope)
}

func check(audit *logging.AuditLogger, identity types.AgentIdentity, scope types.AuthScope) error {
	if identity.Has(scope) {
		return nil
	}
	audit.AuthDeny(identity.ID, string(scope), string(ReasonScopeNotGranted))
	return &types.PermissionDeniedError{Identity: identity.ID, Scope: scope}
}
