package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/kartoza/exoplanet-portal/internal/archive"
	"github.com/kartoza/exoplanet-portal/internal/config"
	"github.com/kartoza/exoplanet-portal/internal/flow"
	"github.com/kartoza/exoplanet-portal/internal/httputil"
	"github.com/kartoza/exoplanet-portal/internal/schema"
)

// SessionCookie identifies a browser session
const SessionCookie = "exo_session"

const maxBodyBytes = 1 << 20

// DetectionArchive is the read side of the detection archive
type DetectionArchive interface {
	Get(ctx context.Context, id string) (*archive.Detection, error)
	List(ctx context.Context, limit int) ([]archive.Summary, error)
}

// Handler provides HTTP API endpoints
type Handler struct {
	registry *Registry
	archive  DetectionArchive
	cfg      config.Config
}

// NewHandler creates a new API handler. archive may be nil.
func NewHandler(registry *Registry, archive DetectionArchive, cfg config.Config) *Handler {
	return &Handler{
		registry: registry,
		archive:  archive,
		cfg:      cfg,
	}
}

// RegisterRoutes sets up all API routes
func (h *Handler) RegisterRoutes(r *mux.Router) {
	// Health and info
	r.HandleFunc("/health", h.handleHealth).Methods("GET")
	r.HandleFunc("/info", h.handleInfo).Methods("GET")

	// Forms
	r.HandleFunc("/forms/{variant}", h.handleForm).Methods("GET")
	r.HandleFunc("/forms/{variant}/state", h.handleState).Methods("GET")
	r.HandleFunc("/forms/{variant}/submit", h.handleSubmit).Methods("POST")
	r.HandleFunc("/forms/{variant}/reset", h.handleReset).Methods("POST")
	r.HandleFunc("/forms/{variant}/events", h.handleEvents).Methods("GET")

	// Archive
	r.HandleFunc("/detections", h.handleListDetections).Methods("GET")
	r.HandleFunc("/detections/{id}", h.handleGetDetection).Methods("GET")
}

// handleHealth returns server health status
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleInfo returns server information
func (h *Handler) handleInfo(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"version":        h.cfg.Version,
		"apiBaseUrl":     h.cfg.APIBaseURL,
		"variants":       schema.Variants(),
		"archiveEnabled": h.archive != nil,
	}
	httputil.RespondJSON(w, http.StatusOK, info)
}

type fieldDef struct {
	schema.Field
	Message string `json:"message,omitempty"`
}

// handleForm returns the field definitions and defaults of a variant
func (h *Handler) handleForm(w http.ResponseWriter, r *http.Request) {
	s, err := schema.Lookup(schema.Variant(mux.Vars(r)["variant"]))
	if err != nil {
		httputil.RespondError(w, http.StatusNotFound, err.Error())
		return
	}

	fields := make([]fieldDef, 0)
	for _, f := range s.Fields() {
		fields = append(fields, fieldDef{Field: f, Message: f.MinMessage()})
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"variant":  s.Variant(),
		"fields":   fields,
		"defaults": s.Defaults(),
	})
}

// handleState returns the current view of the session's form
func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	httputil.RespondJSON(w, http.StatusOK, ctrl.View())
}

// handleSubmit validates the posted values and runs the submission
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}

	var raw map[string]any
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	// The submission outlives a dropped request; its result is still
	// published to the session's other readers.
	view, err := ctrl.Submit(context.WithoutCancel(r.Context()), raw)
	var verr *flow.ValidationError
	switch {
	case errors.As(err, &verr):
		httputil.RespondJSON(w, http.StatusUnprocessableEntity, view)
	case errors.Is(err, flow.ErrSubmissionInFlight):
		httputil.RespondError(w, http.StatusConflict, err.Error())
	case err != nil:
		httputil.RespondError(w, http.StatusInternalServerError, err.Error())
	default:
		httputil.RespondJSON(w, http.StatusOK, view)
	}
}

// handleReset returns the form to its defaults
func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	httputil.RespondJSON(w, http.StatusOK, ctrl.Reset())
}

// handleListDetections returns the newest archived detections
func (h *Handler) handleListDetections(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		httputil.RespondJSON(w, http.StatusOK, []archive.Summary{})
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			httputil.RespondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	list, err := h.archive.List(r.Context(), limit)
	if err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httputil.RespondJSON(w, http.StatusOK, list)
}

// handleGetDetection returns one archived detection
func (h *Handler) handleGetDetection(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		httputil.RespondError(w, http.StatusNotFound, "archive is disabled")
		return
	}

	d, err := h.archive.Get(r.Context(), mux.Vars(r)["id"])
	switch {
	case errors.Is(err, archive.ErrNotFound):
		httputil.RespondError(w, http.StatusNotFound, err.Error())
	case err != nil:
		httputil.RespondError(w, http.StatusInternalServerError, err.Error())
	default:
		httputil.RespondJSON(w, http.StatusOK, d)
	}
}

// controller resolves the session's controller for the route variant,
// writing the error response itself when it cannot.
func (h *Handler) controller(w http.ResponseWriter, r *http.Request) (*flow.Controller, bool) {
	id := sessionID(w.Header(), r)
	ctrl, err := h.registry.Controller(id, schema.Variant(mux.Vars(r)["variant"]))
	if err != nil {
		httputil.RespondError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return ctrl, true
}

// sessionID returns the request's session id, issuing a new cookie into
// header when the request has none.
func sessionID(header http.Header, r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}
	id := uuid.New().String()
	cookie := &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	header.Add("Set-Cookie", cookie.String())
	return id
}
