package handlers

import (
	"net/http"
	"time"
)

var startedAt = time.Now()

// Status handles GET /api/v1/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	counts := make(map[string]int)
	rows, err := h.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM batches GROUP BY status`)
	if err == nil {
		defer rows.Close()
		for rows.Next() {
			var st string
			var n int
			if err := rows.Scan(&st, &n); err == nil {
				counts[st] = n
			}
		}
	}
	var pendingRows int
	_ = h.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM batch_rows WHERE status='pending'`).Scan(&pendingRows)

	ok(w, map[string]any{
		"uptime_seconds": int(time.Since(startedAt).Seconds()),
		"batches":        counts,
		"pending_rows":   pendingRows,
		"ws_clients":     h.hub.ClientCount(),
	})
}
