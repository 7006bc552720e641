package api

import (
	"net/http"
	"strings"

	"github.com/Farras8/cek-pohon-app/internal/auth"
)

// getPrincipal resolves the caller. A bearer token is verified by the
// configured verifier; in dev mode a request without one is an admin.
func (s *Server) getPrincipal(r *http.Request) (auth.Principal, bool) {
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") && s.Auth != nil {
		tok := strings.TrimSpace(authz[len("Bearer "):])
		pr, err := s.Auth.Verify(tok)
		if err != nil {
			return auth.Principal{}, false
		}
		return pr, true
	}
	if s.Auth == nil || s.Auth.Mode == "dev" {
		role := strings.ToLower(r.Header.Get("X-Role"))
		if role == "" {
			role = auth.RoleAdmin
		}
		return auth.Principal{Subject: "dev", Role: role}, true
	}
	return auth.Principal{}, false
}

// authorize writes 401/403 and returns false when the caller lacks min.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request, min string) bool {
	p, ok := s.getPrincipal(r)
	if !ok {
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", "valid bearer token required", r.URL.Path)
		return false
	}
	if !p.Can(min) {
		writeProblem(w, http.StatusForbidden, "Forbidden", min+" role required", r.URL.Path)
		return false
	}
	return true
}
