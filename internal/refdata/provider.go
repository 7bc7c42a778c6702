package refdata

import (
	_ "embed"
	"os"
	"sync"

	"github.com/toolworks/cycletimed/internal/db"
	"github.com/toolworks/cycletimed/internal/status"
)

//go:embed tool_types.json
var defaultTaxonomy []byte

// PrepRow is one rate-sheet row with all selector cells resolved.
type PrepRow struct {
	LengthRatio   float64
	NeckRatio     float64
	MajorDiameter float64
	ReductionVol  float64
	Rate          float64
}

// PrepSheet is one named prep rate sheet. HasNull is set when a cell the
// sheet's selector needs was NULL in storage; using such a sheet fails the
// calculation rather than silently matching on zero.
type PrepSheet struct {
	Rows    []PrepRow
	HasNull bool
}

// Tables holds every rate table, loaded once and shared read-only.
type Tables struct {
	// Rates maps a reference family ("SQ EM", "BUR") to its rows in
	// storage order.
	Rates map[string][]db.Rate
	// PrepSheets maps sheet name (F_RED_PREP, NECK_PREP, POINT_PREP)
	// to its rows.
	PrepSheets map[string]*PrepSheet
	// LiveTimes maps part number to recorded cycle seconds.
	LiveTimes map[string]int
}

// Provider memoizes the taxonomy and rate tables. The first caller pays the
// load cost; everything after reads the cached immutable result, including a
// cached failure, until Invalidate drops the cache.
type Provider struct {
	db   *db.DB
	path string

	mu     sync.Mutex
	loaded bool
	tax    *Taxonomy
	tab    *Tables
	err    error
}

// NewProvider builds a provider over the given database. taxonomyPath
// overrides the embedded taxonomy document when non-empty.
func NewProvider(database *db.DB, taxonomyPath string) *Provider {
	return &Provider{db: database, path: taxonomyPath}
}

// Taxonomy returns the parsed taxonomy, loading reference data on first use.
func (p *Provider) Taxonomy() (*Taxonomy, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.load()
	if p.err != nil {
		return nil, p.err
	}
	return p.tax, nil
}

// Tables returns the rate tables, loading reference data on first use.
func (p *Provider) Tables() (*Tables, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.load()
	if p.err != nil {
		return nil, p.err
	}
	return p.tab, nil
}

// Invalidate drops the cache so the next call reloads from storage. Called
// after the rate tables change.
func (p *Provider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loaded = false
	p.tax, p.tab, p.err = nil, nil, nil
}

// load populates the cache. Caller holds p.mu.
func (p *Provider) load() {
	if p.loaded {
		return
	}
	p.loaded = true
	raw := defaultTaxonomy
	if p.path != "" {
		b, err := os.ReadFile(p.path)
		if err != nil {
			p.err = status.Errf(status.TaxonomyMissing, "read %s: %v", p.path, err)
			return
		}
		raw = b
	}
	tax, err := ParseTaxonomy(raw)
	if err != nil {
		p.err = err
		return
	}
	tab, err := loadTables(p.db)
	if err != nil {
		p.err = err
		return
	}
	p.tax, p.tab = tax, tab
}

func loadTables(database *db.DB) (*Tables, error) {
	t := &Tables{
		Rates:      make(map[string][]db.Rate),
		PrepSheets: make(map[string]*PrepSheet),
		LiveTimes:  make(map[string]int),
	}

	rows, err := database.Query(`SELECT family, bur_type, min_diameter, max_diameter,
		sc_fluting, dc_fluting, fluting_fr, od_fr, end_ct, end_gash_ct, end_split_ct
		FROM rates ORDER BY id`)
	if err != nil {
		return nil, status.Errf(status.RateTablesMissing, "rates: %v", err)
	}
	defer rows.Close()
	for rows.Next() {
		var r db.Rate
		if err := rows.Scan(&r.Family, &r.BurType, &r.MinDiameter, &r.MaxDiameter,
			&r.SCFluting, &r.DCFluting, &r.FlutingFR, &r.ODFR,
			&r.EndCT, &r.EndGashCT, &r.EndSplitCT); err != nil {
			return nil, status.Errf(status.RateTablesMissing, "rates scan: %v", err)
		}
		t.Rates[r.Family] = append(t.Rates[r.Family], r)
	}
	if len(t.Rates) == 0 {
		return nil, status.Err(status.RateTablesMissing)
	}

	prows, err := database.Query(`SELECT sheet, length_ratio, neck_ratio, major_diameter,
		reduction_vol, rate FROM prep_rates ORDER BY id`)
	if err != nil {
		return nil, status.Errf(status.RateTablesMissing, "prep_rates: %v", err)
	}
	defer prows.Close()
	for prows.Next() {
		var p db.PrepRate
		if err := prows.Scan(&p.Sheet, &p.LengthRatio, &p.NeckRatio, &p.MajorDiameter,
			&p.ReductionVol, &p.Rate); err != nil {
			return nil, status.Errf(status.RateTablesMissing, "prep_rates scan: %v", err)
		}
		sheet := t.PrepSheets[p.Sheet]
		if sheet == nil {
			sheet = &PrepSheet{}
			t.PrepSheets[p.Sheet] = sheet
		}
		if missingCell(p) {
			sheet.HasNull = true
		}
		sheet.Rows = append(sheet.Rows, PrepRow{
			LengthRatio:   p.LengthRatio.Float64,
			NeckRatio:     p.NeckRatio.Float64,
			MajorDiameter: p.MajorDiameter.Float64,
			ReductionVol:  p.ReductionVol.Float64,
			Rate:          p.Rate.Float64,
		})
	}

	lrows, err := database.Query(`SELECT part_number, cycle_seconds FROM live_times`)
	if err != nil {
		return nil, status.Errf(status.RateTablesMissing, "live_times: %v", err)
	}
	defer lrows.Close()
	for lrows.Next() {
		var part string
		var secs int
		if err := lrows.Scan(&part, &secs); err != nil {
			return nil, status.Errf(status.RateTablesMissing, "live_times scan: %v", err)
		}
		t.LiveTimes[part] = secs
	}
	return t, nil
}

// missingCell reports whether a selector cell the row's sheet relies on
// is NULL.
func missingCell(p db.PrepRate) bool {
	if !p.Rate.Valid {
		return true
	}
	switch p.Sheet {
	case db.SheetFrontReduction:
		return !p.LengthRatio.Valid || !p.ReductionVol.Valid
	case db.SheetNeck:
		return !p.NeckRatio.Valid || !p.LengthRatio.Valid || !p.ReductionVol.Valid
	case db.SheetPoint:
		return !p.MajorDiameter.Valid
	}
	return false
}
