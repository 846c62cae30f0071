package http

import (
	"net/http"

	"github.com/EmaRG1/user-manager/internal/auth"
	"github.com/EmaRG1/user-manager/internal/model"
)

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.services.Users.GetAll(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req model.UserInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	user, err := s.services.Users.Create(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "userID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_user_id")
		return
	}
	if !canAccessUser(auth.ClaimsFromContext(r.Context()), userID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	user, err := s.services.Users.GetByID(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// handleUpdateUser merges the non-empty fields of the body. Only admins may
// change a role.
func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "userID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_user_id")
		return
	}
	claims := auth.ClaimsFromContext(r.Context())
	if !canAccessUser(claims, userID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	var req model.UserInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.Role != "" && !isAdmin(claims) && req.Role != claims.Role {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	user, err := s.services.Users.Update(r.Context(), userID, req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "userID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_user_id")
		return
	}
	if err := s.services.Users.Delete(r.Context(), userID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleListUserStudies(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.ownedUserID(w, r)
	if !ok {
		return
	}
	studies, err := s.services.Studies.GetByUserID(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, studies)
}

func (s *Server) handleListUserAddresses(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.ownedUserID(w, r)
	if !ok {
		return
	}
	addresses, err := s.services.Addresses.GetByUserID(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, addresses)
}

// ownedUserID reads {userID} and checks the caller may see it. It writes the
// error response itself.
func (s *Server) ownedUserID(w http.ResponseWriter, r *http.Request) (int, bool) {
	userID, ok := pathID(r, "userID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_user_id")
		return 0, false
	}
	if !canAccessUser(auth.ClaimsFromContext(r.Context()), userID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return 0, false
	}
	return userID, true
}
