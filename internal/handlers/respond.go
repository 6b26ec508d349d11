package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	mW "github.com/coinledger/backend/internal/middleware"
	"github.com/coinledger/backend/internal/models"
	"github.com/coinledger/backend/internal/services"
)

const maxBodyBytes = 1_048_576 // 1 MB

// decodeJSON reads exactly one JSON object into dst, writing the error response itself
func decodeJSON(w http.ResponseWriter, r *http.Request, tag string, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		log.Printf("[%s] Decode error: %v", tag, err)
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		log.Printf("[%s] Multiple JSON objects detected", tag)
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeServiceError maps the service error taxonomy onto HTTP statuses
func writeServiceError(w http.ResponseWriter, tag string, err error) {
	var (
		vErr *services.ValidationError
		nErr *services.NotFoundError
		cErr *services.ConflictError
	)
	switch {
	case errors.As(err, &vErr):
		services.SendErrorResponse(w, vErr.Error(), http.StatusBadRequest, vErr)
	case errors.As(err, &nErr):
		services.SendErrorResponse(w, nErr.Error(), http.StatusNotFound, nil)
	case errors.As(err, &cErr):
		services.SendErrorResponse(w, cErr.Error(), http.StatusConflict, nil)
	default:
		log.Printf("[%s] Internal error: %v", tag, err)
		services.SendErrorResponse(w, "An Internal Error Occurred", http.StatusInternalServerError, nil)
	}
}

// currentPrincipal returns the authenticated caller or answers 401
func currentPrincipal(w http.ResponseWriter, r *http.Request, tag string) (models.Principal, bool) {
	p, ok := mW.PrincipalFromContext(r.Context())
	if !ok || p.Username == "" {
		log.Printf("[%s] Unauthorized: principal missing from context", tag)
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return models.Principal{}, false
	}
	return p, true
}

// scopeUsername decides whose entries a request addresses. Users only ever see
// their own; admins see the requested user, or everyone when none is named.
func scopeUsername(w http.ResponseWriter, p models.Principal, requested string) (string, bool) {
	requested = strings.TrimSpace(requested)
	if p.IsAdmin() {
		return requested, true
	}
	if requested != "" && requested != p.Username {
		services.SendErrorResponse(w, "Forbidden", http.StatusForbidden, nil)
		return "", false
	}
	return p.Username, true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		services.SendErrorResponse(w, "Invalid entry id", http.StatusBadRequest, nil)
		return 0, false
	}
	return id, true
}

// pathText returns a free-text path parameter. chi matches on the escaped path
// whenever the URL carries one (e.g. a%2Fb), so the value is unescaped here.
func pathText(w http.ResponseWriter, r *http.Request, key, label string) (string, bool) {
	v := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return v, true
	}
	unescaped, err := url.PathUnescape(v)
	if err != nil {
		services.SendErrorResponse(w, "Invalid "+label, http.StatusBadRequest, nil)
		return "", false
	}
	return unescaped, true
}

// queryInt parses an optional integer query parameter; absent means 0
func queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		services.SendErrorResponse(w, "Invalid query parameter "+name, http.StatusBadRequest, nil)
		return 0, false
	}
	return v, true
}
