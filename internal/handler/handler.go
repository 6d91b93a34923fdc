// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the roster engine.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Shivanand-hulikatti/guild-roster/internal/display"
	"github.com/Shivanand-hulikatti/guild-roster/internal/logging"
	"github.com/Shivanand-hulikatti/guild-roster/internal/model"
	"github.com/Shivanand-hulikatti/guild-roster/internal/service"
)

// Identity headers set by the bot gateway in front of this API.
const (
	HeaderGuild      = "X-Guild-ID"
	HeaderUser       = "X-User-ID"
	HeaderPrivileged = "X-Privileged"
)

// RosterHandler holds all HTTP handlers for the roster API.
type RosterHandler struct {
	svc      *service.RosterService
	watcher  display.Watcher
	upgrader websocket.Upgrader
}

// NewRosterHandler constructs a RosterHandler. watcher feeds the live view
// stream and may be nil, which disables it.
func NewRosterHandler(svc *service.RosterService, watcher display.Watcher) *RosterHandler {
	return &RosterHandler{
		svc:     svc,
		watcher: watcher,
		upgrader: websocket.Upgrader{
			// identity comes from gateway headers, not cookies
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ─── Request bodies ───────────────────────────────────────────────────────────

type claimRequest struct {
	RoleID int `json:"role_id"`
}

type clearRequest struct {
	RoleIDs []int `json:"role_ids"`
}

type presenceRequest struct {
	Present []string `json:"present"`
}

type compositionRequest struct {
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

type identity struct {
	guild      string
	user       string
	privileged bool
}

func identityFrom(r *http.Request) identity {
	privileged, _ := strconv.ParseBool(r.Header.Get(HeaderPrivileged))
	return identity{
		guild:      strings.TrimSpace(r.Header.Get(HeaderGuild)),
		user:       strings.TrimSpace(r.Header.Get(HeaderUser)),
		privileged: privileged,
	}
}

// requireGuild writes a 400 and returns false when the guild header is absent.
func requireGuild(w http.ResponseWriter, id identity) bool {
	if id.guild == "" {
		writeError(w, http.StatusBadRequest, HeaderGuild+" header is required")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

// writeServiceError maps an engine error kind to its HTTP status.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var svcErr *service.Error
	if !errors.As(err, &svcErr) {
		logging.FromContext(r.Context()).Error("unexpected error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	switch svcErr.Kind {
	case service.KindValidation:
		writeError(w, http.StatusBadRequest, svcErr.Message)
	case service.KindNotFound:
		writeError(w, http.StatusNotFound, svcErr.Message)
	case service.KindConflict:
		writeError(w, http.StatusConflict, svcErr.Message)
	case service.KindAuthorization:
		writeError(w, http.StatusForbidden, svcErr.Message)
	default:
		writeError(w, http.StatusInternalServerError, svcErr.Message)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// ─── Handlers ─────────────────────────────────────────────────────────────────

// CreateRoster handles POST /rosters
// The guild and organizer come from the identity headers. An event id is
// issued when the caller supplies none.
func (h *RosterHandler) CreateRoster(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r)
	if !requireGuild(w, id) {
		return
	}
	var req model.CreateRosterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	req.GuildID = id.guild
	req.Organizer = id.user
	if strings.TrimSpace(req.EventID) == "" {
		req.EventID = uuid.NewString()
	}

	res, err := h.svc.CreateRoster(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// GetRoster handles GET /rosters/{id}
func (h *RosterHandler) GetRoster(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r)
	if !requireGuild(w, id) {
		return
	}
	res, err := h.svc.GetRoster(r.Context(), id.guild, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// EditRoster handles PATCH /rosters/{id}
func (h *RosterHandler) EditRoster(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r)
	if !requireGuild(w, id) {
		return
	}
	var fields model.MetadataFields
	if err := decodeJSON(w, r, &fields); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	res, err := h.svc.EditRosterMetadata(r.Context(), id.guild, chi.URLParam(r, "id"), id.user, id.privileged, fields)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// CancelRoster handles DELETE /rosters/{id}
func (h *RosterHandler) CancelRoster(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r)
	if !requireGuild(w, id) {
		return
	}
	res, err := h.svc.CancelRoster(r.Context(), id.guild, chi.URLParam(r, "id"), id.user, id.privileged)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Claim handles POST /rosters/{id}/claim
// The caller takes the given role, leaving any role they held before.
func (h *RosterHandler) Claim(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r)
	if !requireGuild(w, id) {
		return
	}
	var req claimRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	res, err := h.svc.ClaimSlot(r.Context(), id.guild, chi.URLParam(r, "id"), id.user, req.RoleID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Release handles POST /rosters/{id}/release
func (h *RosterHandler) Release(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r)
	if !requireGuild(w, id) {
		return
	}
	res, err := h.svc.ReleaseSlot(r.Context(), id.guild, chi.URLParam(r, "id"), id.user)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Clear handles POST /rosters/{id}/clear
func (h *RosterHandler) Clear(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r)
	if !requireGuild(w, id) {
		return
	}
	var req clearRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	res, err := h.svc.ClearSlots(r.Context(), id.guild, chi.URLParam(r, "id"), req.RoleIDs)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Prune handles POST /rosters/{id}/prune
// Everyone not listed in present loses their slot.
func (h *RosterHandler) Prune(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r)
	if !requireGuild(w, id) {
		return
	}
	var req presenceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	res, err := h.svc.PruneAbsent(r.Context(), id.guild, chi.URLParam(r, "id"), req.Present)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Absent handles POST /rosters/{id}/absent
func (h *RosterHandler) Absent(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r)
	if !requireGuild(w, id) {
		return
	}
	var req presenceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	res, err := h.svc.ListAbsent(r.Context(), id.guild, chi.URLParam(r, "id"), req.Present)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Alert handles POST /rosters/{id}/alert
func (h *RosterHandler) Alert(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r)
	if !requireGuild(w, id) {
		return
	}
	res, err := h.svc.AlertParticipants(r.Context(), id.guild, chi.URLParam(r, "id"), id.user, id.privileged)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ParticipantRosters handles GET /participants/{participant}/rosters
// Returns the upcoming rosters the participant holds a slot in.
func (h *RosterHandler) ParticipantRosters(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r)
	if !requireGuild(w, id) {
		return
	}
	entries, err := h.svc.ListParticipantRosters(r.Context(), id.guild, chi.URLParam(r, "participant"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	// Return an empty array rather than null for better client compatibility.
	if entries == nil {
		entries = []model.ParticipantEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// ImportComposition handles POST /compositions
func (h *RosterHandler) ImportComposition(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r)
	if !requireGuild(w, id) {
		return
	}
	var req compositionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	tmpl, err := h.svc.ImportTemplate(r.Context(), id.guild, req.Name, id.user, req.Roles)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tmpl)
}
