package handlers

import (
	"net/http"

	"github.com/toolworks/cycletimed/internal/auth"
)

// ListSettings handles GET /api/v1/settings. The API key hash is redacted.
func (h *Handler) ListSettings(w http.ResponseWriter, r *http.Request) {
	rows, err := h.db.QueryContext(r.Context(), `SELECT key, value FROM settings WHERE key != 'schema_version' ORDER BY key`)
	if err != nil {
		fail(w, http.StatusInternalServerError, "query: "+err.Error())
		return
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			continue
		}
		if k == "api_key_hash" {
			if v != "" {
				v = "(set)"
			}
		}
		settings[k] = v
	}
	ok(w, settings)
}

// UpdateSetting handles PUT /api/v1/settings/{key}. Writing api_key stores a
// bcrypt hash of the plain value, never the value itself.
func (h *Handler) UpdateSetting(w http.ResponseWriter, r *http.Request) {
	key := pathID(r, "key")
	if key == "" || key == "schema_version" {
		fail(w, http.StatusBadRequest, "invalid key")
		return
	}
	var req struct {
		Value string `json:"value"`
	}
	if err := decode(r, &req); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if key == "api_key" || key == "api_key_hash" {
		if err := auth.SetAPIKey(h.db, req.Value); err != nil {
			fail(w, http.StatusInternalServerError, "set api key: "+err.Error())
			return
		}
		ok(w, map[string]string{"key": "api_key_hash", "value": "(set)"})
		return
	}
	if err := h.db.SetSetting(key, req.Value); err != nil {
		fail(w, http.StatusInternalServerError, "set: "+err.Error())
		return
	}
	ok(w, map[string]string{"key": key, "value": req.Value})
}
