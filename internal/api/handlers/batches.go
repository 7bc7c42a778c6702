package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/toolworks/cycletimed/internal/db"
	"github.com/toolworks/cycletimed/internal/engine"
)

type batchInput struct {
	Name     string           `json:"name"`
	Requests []engine.Request `json:"requests"`
}

// ListBatches handles GET /api/v1/batches.
func (h *Handler) ListBatches(w http.ResponseWriter, r *http.Request) {
	limit := 50
	page := 1
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}
	offset := (page - 1) * limit

	rows, err := h.db.QueryContext(r.Context(), `
		SELECT id, name, status, total_rows, done_rows, error, started_at, ended_at, created_at
		FROM batches ORDER BY id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		fail(w, http.StatusInternalServerError, "query: "+err.Error())
		return
	}
	defer rows.Close()

	var batches []db.Batch
	for rows.Next() {
		var b db.Batch
		if err := rows.Scan(&b.ID, &b.Name, &b.Status, &b.TotalRows, &b.DoneRows,
			&b.Error, &b.StartedAt, &b.EndedAt, &b.CreatedAt); err != nil {
			continue
		}
		batches = append(batches, b)
	}

	var total int
	_ = h.db.QueryRowContext(r.Context(), `SELECT COUNT(*) FROM batches`).Scan(&total)
	okPaginated(w, batches, total, page, limit)
}

// CreateBatch handles POST /api/v1/batches. The batch is queued immediately.
func (h *Handler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var req batchInput
	if err := decode(r, &req); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Name == "" {
		fail(w, http.StatusBadRequest, "name is required")
		return
	}
	if len(req.Requests) == 0 {
		fail(w, http.StatusBadRequest, "requests must not be empty")
		return
	}
	raw := make([]string, len(req.Requests))
	for i, er := range req.Requests {
		b, err := json.Marshal(er)
		if err != nil {
			fail(w, http.StatusBadRequest, "encode request: "+err.Error())
			return
		}
		raw[i] = string(b)
	}
	id, err := h.store.Create(r.Context(), req.Name, raw)
	if err != nil {
		fail(w, http.StatusInternalServerError, "create: "+err.Error())
		return
	}
	queued := h.runner.Enqueue(id)
	ok(w, map[string]any{"id": id, "queued": queued})
}

// GetBatch handles GET /api/v1/batches/{id}.
func (h *Handler) GetBatch(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(pathID(r, "id"))
	if err != nil {
		fail(w, http.StatusBadRequest, "invalid id")
		return
	}
	b, err := h.store.Get(r.Context(), id)
	if err != nil {
		fail(w, http.StatusNotFound, "batch not found")
		return
	}
	ok(w, b)
}

// GetBatchResults handles GET /api/v1/batches/{id}/results. Row results are
// returned decoded, in position order.
func (h *Handler) GetBatchResults(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(pathID(r, "id"))
	if err != nil {
		fail(w, http.StatusBadRequest, "invalid id")
		return
	}
	rows, err := h.store.Rows(r.Context(), id)
	if err != nil {
		fail(w, http.StatusInternalServerError, "rows: "+err.Error())
		return
	}
	type rowResult struct {
		Position   int             `json:"position"`
		Status     string          `json:"status"`
		StatusCode int             `json:"status_code"`
		Result     json.RawMessage `json:"result,omitempty"`
	}
	results := make([]rowResult, 0, len(rows))
	for _, row := range rows {
		rr := rowResult{Position: row.Position, Status: row.Status, StatusCode: row.StatusCode}
		if row.Result != "" {
			rr.Result = json.RawMessage(row.Result)
		}
		results = append(results, rr)
	}
	ok(w, results)
}

// RunBatch handles POST /api/v1/batches/{id}/run. Re-queues a batch whose
// rows are reset to pending first.
func (h *Handler) RunBatch(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(pathID(r, "id"))
	if err != nil {
		fail(w, http.StatusBadRequest, "invalid id")
		return
	}
	if _, err := h.db.ExecContext(r.Context(),
		`UPDATE batch_rows SET status='pending', status_code=0, result='' WHERE batch_id=?`, id); err != nil {
		fail(w, http.StatusInternalServerError, "reset rows: "+err.Error())
		return
	}
	if _, err := h.db.ExecContext(r.Context(),
		`UPDATE batches SET status='pending', done_rows=0, error='' WHERE id=?`, id); err != nil {
		fail(w, http.StatusInternalServerError, "reset batch: "+err.Error())
		return
	}
	if !h.runner.Enqueue(id) {
		fail(w, http.StatusServiceUnavailable, "runner queue full")
		return
	}
	ok(w, map[string]string{"message": "queued"})
}

// DeleteBatch handles DELETE /api/v1/batches/{id}.
func (h *Handler) DeleteBatch(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(pathID(r, "id"))
	if err != nil {
		fail(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := h.store.Delete(r.Context(), id); err != nil {
		fail(w, http.StatusInternalServerError, "delete: "+err.Error())
		return
	}
	ok(w, map[string]string{"message": "deleted"})
}
