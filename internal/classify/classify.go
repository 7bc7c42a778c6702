// Package classify assigns a tool family from a normalized base description.
package classify

import (
	"strings"

	"github.com/toolworks/cycletimed/internal/refdata"
	"github.com/toolworks/cycletimed/internal/status"
)

// Router families share the wood-router handling downstream.
var RouterFamilies = []string{"WR", "O-FLUTE", "WR COMP"}

// Result carries the family assignment and the classification toggles
// derived from the description.
type Result struct {
	Family          string
	ReferenceFamily string
	EndType         string
	BurCut          string
	Spiral          bool
}

// Family classifies a base description. Exact set membership decides the
// named families first; anything containing a bur shape (and no DRILL)
// falls through to the bur rules, where the first cut-type token found in
// the description wins.
func Family(tax *refdata.Taxonomy, baseDescription string, splitDescription []string) (Result, error) {
	var r Result
	switch {
	case tax.Families["EM"][baseDescription]:
		r.Family, r.ReferenceFamily = "EM", "SQ EM"
	case tax.Families["WR"][baseDescription]:
		r.Family, r.ReferenceFamily = "WR", "SQ EM"
	case tax.Families["DRILL"][baseDescription]:
		r.Family, r.ReferenceFamily = "DRILL", "SQ EM"
	case tax.Families["FBGR"][baseDescription]:
		r.Family, r.ReferenceFamily = "FBGR", "BUR"
		if len(splitDescription) > 0 {
			r.EndType = splitDescription[0]
		}
	case tax.Families["O-FLUTE"][baseDescription]:
		r.Family, r.ReferenceFamily = "O-FLUTE", "SQ EM"
	case tax.Families["WR_COMP"][baseDescription]:
		r.Family, r.ReferenceFamily = "WR COMP", "SQ EM"
	case containsBurItem(tax, baseDescription) && !strings.Contains(baseDescription, "DRILL"):
		for _, word := range splitDescription {
			if word == "SPIRAL" {
				r.Spiral = true
			}
		}
		for _, cut := range tax.BurCutTypes {
			if containsWord(splitDescription, cut) {
				r.Family, r.ReferenceFamily, r.BurCut = "BUR", "BUR", cut
				break
			}
		}
		if r.BurCut == "" {
			return Result{}, status.Err(status.BurCutMissing)
		}
	default:
		return Result{}, status.Err(status.FamilyUnassigned)
	}
	return r, nil
}

func containsBurItem(tax *refdata.Taxonomy, base string) bool {
	for _, item := range tax.BurItems {
		if strings.Contains(base, item) {
			return true
		}
	}
	return false
}

func containsWord(words []string, w string) bool {
	for _, v := range words {
		if v == w {
			return true
		}
	}
	return false
}
