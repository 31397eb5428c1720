// Package api implements the HTTP surface of the routing solver service.
package api

import (
	"errors"
	"net/http"
	"strings"
)

type Principal struct {
	Tenant string
	Role   string // admin, dispatcher, viewer
}

var errUnauthenticated = errors.New("missing or invalid bearer token")

// getPrincipal extracts tenant and role.
//   - If Authorization: Bearer is present, uses the configured verifier (dev/hmac).
//   - Else, in dev mode only, falls back to the X-Tenant-Id and X-Role headers.
func (s *Server) getPrincipal(r *http.Request) (Principal, error) {
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") && s.Auth != nil {
		tok := strings.TrimSpace(authz[len("Bearer "):])
		pr, err := s.Auth.Verify(tok)
		if err != nil {
			return Principal{}, err
		}
		return Principal{Tenant: pr.Tenant, Role: pr.Role}, nil
	}
	if s.Auth != nil && s.Auth.Mode != "dev" {
		return Principal{}, errUnauthenticated
	}
	tenant := r.Header.Get("X-Tenant-Id")
	role := strings.ToLower(r.Header.Get("X-Role"))
	if tenant == "" {
		tenant = "t_demo"
	}
	if role == "" {
		role = "admin"
	}
	return Principal{Tenant: tenant, Role: role}, nil
}

// principal resolves the caller or writes a 401.
func (s *Server) principal(w http.ResponseWriter, r *http.Request) (Principal, bool) {
	p, err := s.getPrincipal(r)
	if err != nil {
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", err.Error(), r.URL.Path)
		return Principal{}, false
	}
	return p, true
}

// IsAdmin reports whether the principal has the admin role.
func (p Principal) IsAdmin() bool { return p.Role == "admin" }

// CanSolve reports whether the principal may submit solves.
func (p Principal) CanSolve() bool { return p.IsAdmin() || p.Role == "dispatcher" }
