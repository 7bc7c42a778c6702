package handlers

import (
	"net/http"
	"strconv"

	"github.com/toolworks/cycletimed/internal/db"
)

// ListRates handles GET /api/v1/rates.
func (h *Handler) ListRates(w http.ResponseWriter, r *http.Request) {
	query := `SELECT id, family, bur_type, min_diameter, max_diameter,
		sc_fluting, dc_fluting, fluting_fr, od_fr, end_ct, end_gash_ct, end_split_ct
		FROM rates`
	args := []interface{}{}
	if fam := r.URL.Query().Get("family"); fam != "" {
		query += ` WHERE family=?`
		args = append(args, fam)
	}
	query += ` ORDER BY id`

	rows, err := h.db.QueryContext(r.Context(), query, args...)
	if err != nil {
		fail(w, http.StatusInternalServerError, "query: "+err.Error())
		return
	}
	defer rows.Close()

	var rates []db.Rate
	for rows.Next() {
		var rt db.Rate
		if err := rows.Scan(&rt.ID, &rt.Family, &rt.BurType, &rt.MinDiameter, &rt.MaxDiameter,
			&rt.SCFluting, &rt.DCFluting, &rt.FlutingFR, &rt.ODFR,
			&rt.EndCT, &rt.EndGashCT, &rt.EndSplitCT); err != nil {
			continue
		}
		rates = append(rates, rt)
	}
	ok(w, rates)
}

// CreateRate handles POST /api/v1/rates.
func (h *Handler) CreateRate(w http.ResponseWriter, r *http.Request) {
	var req db.Rate
	if err := decode(r, &req); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Family == "" {
		fail(w, http.StatusBadRequest, "family is required")
		return
	}
	if req.MaxDiameter < req.MinDiameter {
		fail(w, http.StatusBadRequest, "max_diameter must be >= min_diameter")
		return
	}
	res, err := h.db.ExecContext(r.Context(), `
		INSERT INTO rates (family, bur_type, min_diameter, max_diameter,
			sc_fluting, dc_fluting, fluting_fr, od_fr, end_ct, end_gash_ct, end_split_ct)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		req.Family, req.BurType, req.MinDiameter, req.MaxDiameter,
		req.SCFluting, req.DCFluting, req.FlutingFR, req.ODFR,
		req.EndCT, req.EndGashCT, req.EndSplitCT,
	)
	if err != nil {
		fail(w, http.StatusInternalServerError, "insert: "+err.Error())
		return
	}
	id, _ := res.LastInsertId()
	h.ref.Invalidate()
	ok(w, map[string]int64{"id": id})
}

// DeleteRate handles DELETE /api/v1/rates/{id}.
func (h *Handler) DeleteRate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(pathID(r, "id"))
	if err != nil {
		fail(w, http.StatusBadRequest, "invalid id")
		return
	}
	if _, err := h.db.ExecContext(r.Context(), `DELETE FROM rates WHERE id=?`, id); err != nil {
		fail(w, http.StatusInternalServerError, "delete: "+err.Error())
		return
	}
	h.ref.Invalidate()
	ok(w, map[string]string{"message": "deleted"})
}

// ListPrepRates handles GET /api/v1/rates/prep.
func (h *Handler) ListPrepRates(w http.ResponseWriter, r *http.Request) {
	rows, err := h.db.QueryContext(r.Context(), `
		SELECT id, sheet, length_ratio, neck_ratio, major_diameter, reduction_vol, rate
		FROM prep_rates ORDER BY id`)
	if err != nil {
		fail(w, http.StatusInternalServerError, "query: "+err.Error())
		return
	}
	defer rows.Close()

	var rates []db.PrepRate
	for rows.Next() {
		var p db.PrepRate
		if err := rows.Scan(&p.ID, &p.Sheet, &p.LengthRatio, &p.NeckRatio,
			&p.MajorDiameter, &p.ReductionVol, &p.Rate); err != nil {
			continue
		}
		rates = append(rates, p)
	}
	ok(w, rates)
}

// UpsertLiveTime handles PUT /api/v1/livetimes/{part}. Records the measured
// cycle seconds for a part number, used by MASS detail mode.
func (h *Handler) UpsertLiveTime(w http.ResponseWriter, r *http.Request) {
	part := pathID(r, "part")
	if part == "" {
		fail(w, http.StatusBadRequest, "part number is required")
		return
	}
	var req struct {
		CycleSeconds int `json:"cycle_seconds"`
	}
	if err := decode(r, &req); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if _, err := h.db.ExecContext(r.Context(), `
		INSERT INTO live_times (part_number, cycle_seconds) VALUES (?,?)
		ON CONFLICT(part_number) DO UPDATE SET cycle_seconds=excluded.cycle_seconds`,
		part, req.CycleSeconds); err != nil {
		fail(w, http.StatusInternalServerError, "upsert: "+err.Error())
		return
	}
	h.ref.Invalidate()
	ok(w, map[string]string{"message": "saved"})
}
