// Package refdata loads and memoizes the reference data every estimation
// needs: the tool-type taxonomy document and the feedrate/prep-rate tables.
package refdata

import (
	"encoding/json"
	"strings"

	"github.com/toolworks/cycletimed/internal/status"
)

// Family keys expected under tool_types. Uppercase keys name tool families;
// lowercase keys are classification helpers and never become tool types.
var familyKeys = []string{"EM", "BUR", "DRILL", "FBGR", "WR", "O-FLUTE", "WR_COMP"}

var helperKeys = []string{"bur_cut_types", "em_shapes", "extras", "wr_cut", "has_end_time"}

// Abbreviation is one ordered expansion rule applied to raw descriptions.
type Abbreviation struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// PrepRules holds the constant blocks steering the prep-operation gates.
type PrepRules struct {
	FrontReduction struct {
		DiaCutoff1  float64 `json:"dia_cutoff1"`
		PrepDiaInc1 float64 `json:"prep_dia_inc1"`
		DiaCutoff2  float64 `json:"dia_cutoff2"`
		PrepDiaInc2 float64 `json:"prep_dia_inc2"`
		PrepDiaInc3 float64 `json:"prep_dia_inc3"`
	} `json:"fr_prep"`
	Backtaper struct {
		Tools []string `json:"tools"`
		Rate  float64  `json:"rate"` // mm/min, converted at use
	} `json:"backtaper_prep"`
	BurNeck struct {
		IncludedPrepAngle float64 `json:"included_prep_angle"`
	} `json:"bur_neck_prep"`
	Point struct {
		Tools              []string `json:"tools"`
		PrepTipPct         float64  `json:"prep_tip_pct"`
		DrillPct           float64  `json:"drill_pct"`
		DrillCountersink   float64  `json:"drill_countersink_pct"`
	} `json:"point_prep"`
	Drill struct {
		PointPrepDiaCutoff float64 `json:"point_prep_dia_cutoff"`
	} `json:"drill_prep"`
	Ball struct {
		DiaCutoff float64 `json:"dia_cutoff"`
		DiaRef1   float64 `json:"dia_ref_1"`
		LocRef1   float64 `json:"loc_ref_1"`
		DiaRef2   float64 `json:"dia_ref_2"`
		LocRef2   float64 `json:"loc_ref_2"`
	} `json:"ball_prep"`
	CR struct {
		DiaCutoff float64 `json:"dia_cutoff"`
		CutPct    float64 `json:"cut_pct"`
	} `json:"cr_prep"`
	Bumping struct {
		LengthCutoff float64 `json:"length_cutoff"` // mm
	} `json:"bumping_prep"`
}

// Taxonomy is the parsed, expanded taxonomy document. It is built once and
// shared read-only across requests.
type Taxonomy struct {
	// Families maps each family key to the set of base descriptions that
	// classify into it, after shape/variant expansion.
	Families map[string]map[string]bool

	// BurItems keeps the BUR list in document order for substring scans.
	BurItems []string

	BurCutTypes []string
	EMShapes    []string
	Extras      map[string]bool
	WRCut       map[string]bool
	HasEndTime  map[string]bool

	Abbreviations []Abbreviation
	// AbbrevTargets is the set of expansion results, accepted as
	// description words alongside SplitWords.
	AbbrevTargets map[string]bool

	PerfSeries []string

	// ToolTypes is the full set of accepted base descriptions.
	ToolTypes map[string]bool
	// SplitWords is every individual word appearing in any tool-type item,
	// used to filter description tokens.
	SplitWords map[string]bool

	Prep PrepRules
}

type taxonomyDoc struct {
	ToolTypes     map[string][]string `json:"tool_types"`
	Abbreviations []Abbreviation      `json:"abbreviations"`
	PerfSeries    []string            `json:"perf_series"`
	Prep          PrepRules           `json:"prep"`
}

// ParseTaxonomy validates and expands a raw taxonomy JSON document.
// EM items (except the non-shaped ones) are combined with every em_shapes
// prefix; WR items additionally generate O-FLUTE/OFX and MORT COMP/COMP
// variants; all other family items are taken as-is.
func ParseTaxonomy(raw []byte) (*Taxonomy, error) {
	if len(raw) == 0 {
		return nil, status.Err(status.TaxonomyMissing)
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, status.Errf(status.TaxonomyNotObject, "%v", err)
	}
	if len(top) == 0 {
		return nil, status.Err(status.TaxonomyMissing)
	}
	if _, ok := top["tool_types"]; !ok {
		return nil, status.Err(status.ToolTypesKeyAbsent)
	}

	var doc taxonomyDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, status.Errf(status.TaxonomyKeyAbsent, "%v", err)
	}
	for _, key := range []string{"abbreviations", "perf_series", "prep"} {
		if _, ok := top[key]; !ok {
			return nil, status.Errf(status.TaxonomyKeyAbsent, "%s", key)
		}
	}
	for _, key := range append(append([]string{}, familyKeys...), helperKeys...) {
		if _, ok := doc.ToolTypes[key]; !ok {
			return nil, status.Errf(status.TaxonomyKeyAbsent, "tool_types.%s", key)
		}
	}

	t := &Taxonomy{
		Families:      make(map[string]map[string]bool, len(familyKeys)),
		BurItems:      doc.ToolTypes["BUR"],
		BurCutTypes:   doc.ToolTypes["bur_cut_types"],
		EMShapes:      doc.ToolTypes["em_shapes"],
		Extras:        toSet(doc.ToolTypes["extras"]),
		WRCut:         toSet(doc.ToolTypes["wr_cut"]),
		HasEndTime:    toSet(doc.ToolTypes["has_end_time"]),
		Abbreviations: doc.Abbreviations,
		AbbrevTargets: make(map[string]bool, len(doc.Abbreviations)),
		PerfSeries:    doc.PerfSeries,
		ToolTypes:     make(map[string]bool),
		SplitWords:    make(map[string]bool),
		Prep:          doc.Prep,
	}
	for _, a := range doc.Abbreviations {
		t.AbbrevTargets[a.To] = true
	}
	for _, key := range familyKeys {
		t.Families[key] = toSet(doc.ToolTypes[key])
	}

	for key, items := range doc.ToolTypes {
		for _, item := range items {
			for _, word := range strings.Fields(item) {
				t.SplitWords[word] = true
			}
			if key != strings.ToUpper(key) {
				continue // helper lists never feed the tool-type set
			}
			switch {
			case key == "EM" && item != "DRILLMILL" && item != "STAGGERED TOOTH CHAMFERING":
				for _, shape := range t.EMShapes {
					combined := shape + " " + item
					t.ToolTypes[combined] = true
					t.Families["EM"][combined] = true
				}
			case key == "WR":
				t.ToolTypes[item] = true
				t.Families["WR"][item] = true
				for _, v := range []string{"O-FLUTE " + item, "OFX " + item} {
					t.ToolTypes[v] = true
					t.Families["O-FLUTE"][v] = true
				}
				for _, v := range []string{"MORT COMP " + item, "COMP " + item} {
					t.ToolTypes[v] = true
					t.Families["WR_COMP"][v] = true
				}
			default:
				t.ToolTypes[item] = true
			}
		}
	}
	return t, nil
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}
