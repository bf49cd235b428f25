// Package httpapi implements the HTTP surface: a gorilla/mux
// router translating JSON requests into calls against session,
// negotiation, escrow, attestation, trust, privacy, and automation, and
// translating apierr.Error back into the {ok,error} envelope.
package httpapi

import (
	"context"
	"net/http"
	"strings"
)

// role is a position in the public<readonly<agent<operator<admin ladder.
type role int

const (
	rolePublic role = iota
	roleReadonly
	roleAgent
	roleOperator
	roleAdmin
)

func (r role) String() string {
	switch r {
	case roleReadonly:
		return "readonly"
	case roleAgent:
		return "agent"
	case roleOperator:
		return "operator"
	case roleAdmin:
		return "admin"
	default:
		return "public"
	}
}

// callerIdentity is the resolved caller: its role level and, for agent
// callers, the matched agent id.
type callerIdentity struct {
	Role    role
	AgentID string
}

// bearerToken extracts the token from an Authorization: Bearer header or
// an X-API-Key header, preferring the former.
func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if rest, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(rest)
		}
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

// resolveCaller implements the role-resolution algorithm: the
// token is matched in order against the admin, operator, and readonly
// configured keys, then the agents table; an absent token falls back to
// readonly when public read is allowed, else public.
func (s *Server) resolveCaller(r *http.Request) callerIdentity {
	token := bearerToken(r)
	if token == "" {
		if s.cfg.AuthConfig.AllowPublicRead {
			return callerIdentity{Role: roleReadonly}
		}
		return callerIdentity{Role: rolePublic}
	}

	switch {
	case s.cfg.AuthConfig.AdminKey != "" && token == s.cfg.AuthConfig.AdminKey:
		return callerIdentity{Role: roleAdmin}
	case s.cfg.AuthConfig.OperatorKey != "" && token == s.cfg.AuthConfig.OperatorKey:
		return callerIdentity{Role: roleOperator}
	case s.cfg.AuthConfig.ReadonlyKey != "" && token == s.cfg.AuthConfig.ReadonlyKey:
		return callerIdentity{Role: roleReadonly}
	}

	if agent, err := s.store.GetAgentByAPIKey(r.Context(), token); err == nil {
		return callerIdentity{Role: roleAgent, AgentID: agent.ID}
	}

	if s.cfg.AuthConfig.AllowPublicRead {
		return callerIdentity{Role: roleReadonly}
	}
	return callerIdentity{Role: rolePublic}
}

type callerContextKey struct{}

func withCaller(ctx context.Context, c callerIdentity) context.Context {
	return context.WithValue(ctx, callerContextKey{}, c)
}

func callerFrom(r *http.Request) callerIdentity {
	c, _ := r.Context().Value(callerContextKey{}).(callerIdentity)
	return c
}

// requireRole wraps next, rejecting the call with 401 unauthorized unless
// the resolved caller's role is at least min.
func (s *Server) requireRole(min role, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller := s.resolveCaller(r)
		if caller.Role < min {
			writeError(w, apierrUnauthorized())
			return
		}
		next(w, r.WithContext(withCaller(r.Context(), caller)))
	}
}

// actorFromCaller adapts a resolved caller into the session package's
// Actor shape: operator and admin are privileged for scope checks.
func actorFromCaller(c callerIdentity) (agentID string, privileged bool) {
	return c.AgentID, c.Role >= roleOperator
}

// Privileged reports whether c is an operator or admin caller.
func (c callerIdentity) Privileged() bool {
	return c.Role >= roleOperator
}
