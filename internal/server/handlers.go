package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/wolfeidau/orgmgr/internal/auth"
	httpmw "github.com/wolfeidau/orgmgr/internal/http"
	"github.com/wolfeidau/orgmgr/internal/orgs"
)

const maxBodyBytes = 1 << 20

// LoginRequest is the body of POST /admin/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse is returned by a successful login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// OrgRequest is the body of POST /org/create and PUT /org/update. On update
// OrganizationName is the new name.
type OrgRequest struct {
	OrganizationName string `json:"organization_name"`
	Email            string `json:"email"`
	Password         string `json:"password"`
}

// MessageResponse acknowledges a change.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse carries a client facing error description.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	token, ok, err := s.authn.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (s *Server) createOrg(w http.ResponseWriter, r *http.Request) {
	var req OrgRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	view, err := s.orgs.Create(r.Context(), req.OrganizationName, req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

func (s *Server) getOrg(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("organization_name")
	if strings.TrimSpace(name) == "" {
		writeDetail(w, http.StatusBadRequest, "organization_name is required")
		return
	}

	view, err := s.orgs.GetByName(r.Context(), name)
	if err != nil {
		writeError(w, r, err)
		return
	}

	body, err := json.Marshal(view)
	if err != nil {
		writeError(w, r, err)
		return
	}

	etag := httpmw.ETag(body)
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if httpmw.NotModified(r, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(append(body, '\n'))
}

func (s *Server) updateOrg(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())

	var req OrgRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	current, err := s.orgs.GetByID(r.Context(), claims.OrgID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.orgs.Update(r.Context(), current.Name, req.OrganizationName, req.Email, req.Password); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Organization updated successfully"})
}

func (s *Server) deleteOrg(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())

	name := r.URL.Query().Get("organization_name")
	if strings.TrimSpace(name) == "" {
		writeDetail(w, http.StatusBadRequest, "organization_name is required")
		return
	}

	view, err := s.orgs.GetByName(r.Context(), name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if view.ID != claims.OrgID {
		zerolog.Ctx(r.Context()).Warn().
			Str("org_id", view.ID).
			Str("token_org_id", claims.OrgID).
			Msg("Delete of another organization refused")
		writeDetail(w, http.StatusForbidden, "Not allowed to delete this organization")
		return
	}

	if err := s.orgs.Delete(r.Context(), name); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Organization deleted successfully"})
}

// decodeJSON reads a single JSON object into v, rejecting unknown fields and
// bodies over maxBodyBytes. It writes the error response and returns false on
// failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	err := dec.Decode(v)
	if err == nil && dec.More() {
		err = errors.New("unexpected data after JSON object")
	}
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeDetail(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		zerolog.Ctx(r.Context()).Debug().Err(err).Msg("Invalid request body")
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// statusFor maps lifecycle errors to HTTP status codes.
func statusFor(err error) int {
	switch orgs.KindOf(err) {
	case orgs.KindOrgNotFound:
		return http.StatusNotFound
	case orgs.KindValidation,
		orgs.KindDuplicateOrganization,
		orgs.KindDuplicateAdmin,
		orgs.KindCreateFailed,
		orgs.KindUpdateFailed,
		orgs.KindDeleteFailed:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	detail := orgs.MessageOf(err)

	log := zerolog.Ctx(r.Context())
	if status >= http.StatusInternalServerError || detail == "" {
		log.Error().Err(err).Msg("Request failed")
		writeDetail(w, status, "Internal server error")
		return
	}

	log.Warn().Err(err).Str("kind", orgs.KindOf(err).String()).Msg("Request rejected")
	writeDetail(w, status, detail)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, ErrorResponse{Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
