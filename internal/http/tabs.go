package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// tabHandler loads the data behind one profile tab.
type tabHandler func(ctx context.Context, userID int) (any, error)

func (s *Server) profileTabs() map[string]tabHandler {
	return map[string]tabHandler{
		"profile": func(ctx context.Context, userID int) (any, error) {
			return s.services.Users.GetByID(ctx, userID)
		},
		"addresses": func(ctx context.Context, userID int) (any, error) {
			return s.services.Addresses.GetByUserID(ctx, userID)
		},
		"studies": func(ctx context.Context, userID int) (any, error) {
			return s.services.Studies.GetByUserID(ctx, userID)
		},
	}
}

func (s *Server) handleProfileTab(w http.ResponseWriter, r *http.Request) {
	load, ok := s.tabs[chi.URLParam(r, "tab")]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown_tab")
		return
	}
	userID, ok := s.ownedUserID(w, r)
	if !ok {
		return
	}
	data, err := load(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}
