package api

import (
	"net/http"
	"time"

	"github.com/Farras8/cek-pohon-app/internal/auth"
	"github.com/Farras8/cek-pohon-app/internal/buildinfo"
)

func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r, auth.RoleAdmin) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"build":  buildinfo.Info(),
		"time":   time.Now().UTC().Format(time.RFC3339),
		"config": s.Config.Summary(),
	})
}
