package refdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolworks/cycletimed/internal/status"
)

func TestParseTaxonomy_Default(t *testing.T) {
	tax, err := ParseTaxonomy(defaultTaxonomy)
	require.NoError(t, err)

	// EM items expand with every shape prefix.
	assert.True(t, tax.ToolTypes["SQ EM"])
	assert.True(t, tax.ToolTypes["BALL TAPERMILL EM"])
	assert.True(t, tax.Families["EM"]["CR ROUGHER EM"])
	// The non-shaped EM items stay as-is.
	assert.True(t, tax.ToolTypes["DRILLMILL"])
	assert.False(t, tax.ToolTypes["SQ DRILLMILL"])
	assert.True(t, tax.Families["EM"]["DRILLMILL"])

	// WR items generate O-FLUTE and compression variants.
	assert.True(t, tax.Families["O-FLUTE"]["OFX STRAIGHT WR"])
	assert.True(t, tax.Families["WR_COMP"]["MORT COMP FINISHER WR"])

	// Helper lists never become tool types.
	assert.False(t, tax.ToolTypes["DC"])
	assert.True(t, tax.AbbrevTargets["DC"])
	assert.True(t, tax.SplitWords["OVAL"])
	assert.True(t, tax.Extras["SPIRAL"])
	assert.NotEmpty(t, tax.PerfSeries)
	assert.InDelta(t, 30.0, tax.Prep.BurNeck.IncludedPrepAngle, 1e-9)
}

func TestParseTaxonomy_Errors(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		code int
	}{
		{"empty", "", status.TaxonomyMissing},
		{"empty object", "{}", status.TaxonomyMissing},
		{"not an object", "[1,2]", status.TaxonomyNotObject},
		{"no tool_types", `{"abbreviations":[]}`, status.ToolTypesKeyAbsent},
		{"missing top key", `{"tool_types":{"EM":[],"BUR":[],"DRILL":[],"FBGR":[],"WR":[],"O-FLUTE":[],"WR_COMP":[],"bur_cut_types":[],"em_shapes":[],"extras":[],"wr_cut":[],"has_end_time":[]},"perf_series":[],"prep":{}}`, status.TaxonomyKeyAbsent},
		{"missing family key", `{"tool_types":{"EM":[]},"abbreviations":[],"perf_series":[],"prep":{}}`, status.TaxonomyKeyAbsent},
	}
	for _, c := range cases {
		_, err := ParseTaxonomy([]byte(c.raw))
		assert.Equal(t, c.code, status.CodeOf(err), c.name)
	}
}
