package api

import (
	"net/http"
)

// SolverConfigHandler returns the effective solver options for the caller's tenant.
func (s *Server) SolverConfigHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	cfg, err := s.solverConfig(r.Context(), p.Tenant, nil)
	if err != nil {
		s.configProblem(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"defaults": configView(s.Defaults), "effective": configView(cfg)})
}

// AdminSolverConfigHandler reads or replaces the tenant's stored overrides.
func (s *Server) AdminSolverConfigHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	if !p.IsAdmin() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
		return
	}
	switch r.Method {
	case http.MethodGet:
		cfg, err := s.Store.GetSolverConfig(r.Context(), p.Tenant)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Load failed", err.Error(), r.URL.Path)
			return
		}
		if cfg == nil {
			cfg = map[string]any{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"config": cfg})
	case http.MethodPut:
		var body struct {
			Config map[string]any `json:"config"`
		}
		if err := decodeJSON(w, r, &body); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if body.Config == nil {
			writeProblem(w, http.StatusBadRequest, "Missing config", "", r.URL.Path)
			return
		}
		cfg := s.Defaults
		if err := cfg.Override(body.Config); err != nil {
			s.configProblem(w, r, err)
			return
		}
		if err := cfg.Validate(); err != nil {
			s.configProblem(w, r, err)
			return
		}
		if err := s.Store.SaveSolverConfig(r.Context(), p.Tenant, body.Config); err != nil {
			writeProblem(w, http.StatusInternalServerError, "Save failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "effective": configView(cfg)})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
