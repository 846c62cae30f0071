package http

import (
	"net/http"

	"github.com/EmaRG1/user-manager/internal/auth"
	"github.com/EmaRG1/user-manager/internal/model"
)

// ownerFor decides which user a new or updated record belongs to. Non-admins
// can only write their own records.
func ownerFor(claims *auth.Claims, requested int) (int, bool) {
	if isAdmin(claims) {
		if requested == 0 {
			return claims.UserID, true
		}
		return requested, true
	}
	if requested != 0 && requested != claims.UserID {
		return 0, false
	}
	return claims.UserID, true
}

func (s *Server) handleCreateStudy(w http.ResponseWriter, r *http.Request) {
	var req model.StudyInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	owner, ok := ownerFor(auth.ClaimsFromContext(r.Context()), req.UserID)
	if !ok {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	study, err := s.services.Studies.Create(r.Context(), req.WithOwner(owner))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, study)
}

func (s *Server) handleGetStudy(w http.ResponseWriter, r *http.Request) {
	study, ok := s.loadStudy(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, study)
}

func (s *Server) handleUpdateStudy(w http.ResponseWriter, r *http.Request) {
	current, ok := s.loadStudy(w, r)
	if !ok {
		return
	}
	var req model.StudyInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.UserID == 0 {
		req.UserID = current.UserID
	}
	owner, ok := ownerFor(auth.ClaimsFromContext(r.Context()), req.UserID)
	if !ok {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	study, err := s.services.Studies.Update(r.Context(), current.ID, req.WithOwner(owner))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, study)
}

func (s *Server) handleDeleteStudy(w http.ResponseWriter, r *http.Request) {
	current, ok := s.loadStudy(w, r)
	if !ok {
		return
	}
	if err := s.services.Studies.Delete(r.Context(), current.ID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// loadStudy fetches {studyID} and checks the caller owns it or is an admin.
func (s *Server) loadStudy(w http.ResponseWriter, r *http.Request) (model.Study, bool) {
	id, ok := pathID(r, "studyID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_study_id")
		return model.Study{}, false
	}
	study, err := s.services.Studies.GetByID(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return model.Study{}, false
	}
	if !canAccessUser(auth.ClaimsFromContext(r.Context()), study.UserID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return model.Study{}, false
	}
	return study, true
}

func (s *Server) handleCreateAddress(w http.ResponseWriter, r *http.Request) {
	var req model.AddressInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	owner, ok := ownerFor(auth.ClaimsFromContext(r.Context()), req.UserID)
	if !ok {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	address, err := s.services.Addresses.Create(r.Context(), req.WithOwner(owner))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, address)
}

func (s *Server) handleGetAddress(w http.ResponseWriter, r *http.Request) {
	address, ok := s.loadAddress(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, address)
}

func (s *Server) handleUpdateAddress(w http.ResponseWriter, r *http.Request) {
	current, ok := s.loadAddress(w, r)
	if !ok {
		return
	}
	var req model.AddressInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.UserID == 0 {
		req.UserID = current.UserID
	}
	owner, ok := ownerFor(auth.ClaimsFromContext(r.Context()), req.UserID)
	if !ok {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	address, err := s.services.Addresses.Update(r.Context(), current.ID, req.WithOwner(owner))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, address)
}

func (s *Server) handleDeleteAddress(w http.ResponseWriter, r *http.Request) {
	current, ok := s.loadAddress(w, r)
	if !ok {
		return
	}
	if err := s.services.Addresses.Delete(r.Context(), current.ID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) loadAddress(w http.ResponseWriter, r *http.Request) (model.Address, bool) {
	id, ok := pathID(r, "addressID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_address_id")
		return model.Address{}, false
	}
	address, err := s.services.Addresses.GetByID(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return model.Address{}, false
	}
	if !canAccessUser(auth.ClaimsFromContext(r.Context()), address.UserID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return model.Address{}, false
	}
	return address, true
}
