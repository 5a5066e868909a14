// Package httphandler is the HTTP driving adapter that serves the REST API.
// Transport-level authenticity of inbound commands is the deployment's
// concern (webhook signature checking terminates before this handler); the
// adapter validates shape, not provenance.
package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/efisher/swapreview/internal/application"
	"github.com/efisher/swapreview/internal/domain/model"
	"github.com/efisher/swapreview/internal/domain/port/driven"
)

// Handler is the HTTP driving adapter for the escrow engine.
type Handler struct {
	engine *application.Engine
	creds  *application.CredentialService
	logger *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(engine *application.Engine, creds *application.CredentialService, logger *slog.Logger) *Handler {
	return &Handler{
		engine: engine,
		creds:  creds,
		logger: logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/commands", h.ProcessCommand)
	mux.HandleFunc("PUT /api/v1/credentials", h.PutCredential)
	mux.HandleFunc("GET /api/v1/partitions/{scope}/pledges", h.ListPledges)
	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// ProcessCommand runs one inbound approval-exchange command through the
// engine and returns its structured result.
func (h *Handler) ProcessCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Offeror == "" || req.Scope == "" || req.ItemScope == "" || req.ItemNumber <= 0 {
		writeError(w, http.StatusBadRequest, "offeror, scope, item_scope and item_number are required")
		return
	}

	result, err := h.engine.ProcessCommand(r.Context(), model.Command{
		Offeror:        req.Offeror,
		OfferorID:      req.OfferorID,
		ItemNumber:     req.ItemNumber,
		ItemScope:      req.ItemScope,
		TargetAuthor:   req.TargetAuthor,
		TargetAuthorID: req.TargetAuthorID,
		Scope:          req.Scope,
		AuthorizeBase:  req.AuthorizeBase,
	})
	if err != nil {
		h.logger.Error("command processing failed", "error", err, "offeror", req.Offeror, "scope", req.Scope)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toResultResponse(result))
}

// PutCredential stores a credential obtained from the authorization
// handshake. Idempotent upsert.
func (h *Handler) PutCredential(w http.ResponseWriter, r *http.Request) {
	var req CredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.User == "" || req.Scope == "" || req.Access == "" {
		writeError(w, http.StatusBadRequest, "user, scope and access are required")
		return
	}

	expiresAt, err := time.Parse(time.RFC3339, req.ExpiresAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "expires_at must be RFC 3339")
		return
	}

	err = h.creds.Put(r.Context(), model.Credential{
		User:      req.User,
		Scope:     req.Scope,
		Access:    req.Access,
		Refresh:   req.Refresh,
		ExpiresAt: expiresAt,
	})
	if errors.Is(err, driven.ErrEncryptionKeyNotSet) {
		writeError(w, http.StatusServiceUnavailable, "credential storage is not configured")
		return
	}
	if err != nil {
		h.logger.Error("failed to store credential", "error", err, "user", req.User)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, AckResponse{Stored: true})
}

// ListPledges returns the partition's outstanding pledges. Diagnostic,
// read-only.
func (h *Handler) ListPledges(w http.ResponseWriter, r *http.Request) {
	scope := r.PathValue("scope")

	pledges, err := h.engine.ListPledges(r.Context(), scope)
	if err != nil {
		h.logger.Error("failed to list pledges", "error", err, "scope", scope)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]PledgeResponse, 0, len(pledges))
	for _, p := range pledges {
		resp = append(resp, toPledgeResponse(p))
	}

	writeJSON(w, http.StatusOK, resp)
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}
