package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"mri-console/internal/backend"
	"mri-console/internal/schemas"
)

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.Backend.ListUsers(r.Context())
	if err != nil {
		s.writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req schemas.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errResp{err.Error()})
		return
	}
	u, err := s.Backend.CreateUser(r.Context(), req)
	if errors.Is(err, backend.ErrMissingUserFields) {
		writeJSON(w, http.StatusBadRequest, errResp{err.Error()})
		return
	}
	if err != nil {
		s.writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.Backend.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	var req schemas.UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errResp{err.Error()})
		return
	}
	if (req.Email != nil && *req.Email == "") || (req.FullName != nil && *req.FullName == "") {
		writeJSON(w, http.StatusBadRequest, errResp{"email and full_name cannot be empty"})
		return
	}
	u, err := s.Backend.UpdateUser(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		s.writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.Backend.DeleteUser(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeBackendError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
