package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"classrecord/backend/internal/gateway/util"
	"classrecord/backend/internal/record"
	"classrecord/backend/internal/shared"
)

// PrefillCookie remembers the last looked-up idNumber for the lookup form.
const PrefillCookie = "idNumber"

// LookupHandler serves the student lookup flow and its session handoff.
type LookupHandler struct {
	Service    *record.Service
	Validate   *validator.Validate
	PrefillTTL time.Duration
}

// LookupRequest mirrors the JSON input for POST /lookup
type LookupRequest struct {
	Template  string `json:"template"`
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	IDNumber  string `json:"idNumber" validate:"required"`
}

// ListTemplates handles GET /templates
func (h *LookupHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	util.WriteJSON(w, http.StatusOK, h.Service.Templates())
}

// Lookup handles POST /lookup
// Matches the three free-text inputs against the class record and returns
// the computed grade with a session token for the detail view.
func (h *LookupHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	// 1. Decode and validate
	var req LookupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		util.WriteValidationError(w, err)
		return
	}

	// 2. Match
	res, err := h.Service.Lookup(r.Context(), req.Template, req.FirstName, req.LastName, req.IDNumber)
	if err != nil {
		util.HandleError(w, err)
		return
	}

	// 3. Remember the ID for next time
	http.SetCookie(w, &http.Cookie{
		Name:     PrefillCookie,
		Value:    res.Record.IDNumber,
		Path:     "/",
		MaxAge:   int(h.PrefillTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	util.WriteJSON(w, http.StatusOK, res)
}

// Prefill handles GET /lookup/prefill
// Returns the idNumber remembered from the last successful lookup, if any.
func (h *LookupHandler) Prefill(w http.ResponseWriter, r *http.Request) {
	id := ""
	if c, err := r.Cookie(PrefillCookie); err == nil {
		id = c.Value
	}
	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":            true,
		shared.FieldIDNumber: id,
	})
}

// GetSessionRecord handles GET /session/record
// Renders the record detail view from the Bearer session token.
func (h *LookupHandler) GetSessionRecord(w http.ResponseWriter, r *http.Request) {
	token, err := util.ExtractToken(r)
	if err != nil {
		util.WriteJSONError(w, http.StatusUnauthorized, "Session token required")
		return
	}

	view, err := h.Service.Detail(r.Context(), token)
	if err != nil {
		util.HandleError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, view)
}

// EndSession handles DELETE /session
// Discards the snapshot when the student navigates back.
func (h *LookupHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	token, err := util.ExtractToken(r)
	if err != nil {
		util.WriteJSONError(w, http.StatusUnauthorized, "Session token required")
		return
	}

	if err := h.Service.EndSession(r.Context(), token); err != nil {
		util.HandleError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Session cleared",
	})
}
