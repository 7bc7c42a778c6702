package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/toolworks/cycletimed/internal/engine"
	"github.com/toolworks/cycletimed/internal/status"
)

// Estimate handles POST /api/v1/estimate. The body is a single estimation
// request; the response body is the engine's envelope, whose statusCode
// follows the domain taxonomy (900 = success), independent of the HTTP code.
func (h *Handler) Estimate(w http.ResponseWriter, r *http.Request) {
	var req engine.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	resp := h.eng.Estimate(req)
	if resp.StatusCode != status.Success && h.webhook != nil {
		h.webhook.Fire("estimate.failed", map[string]any{
			"status_code": resp.StatusCode,
			"error":       resp.ErrorMessage,
			"description": req.Description,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
