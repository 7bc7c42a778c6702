package classify

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolworks/cycletimed/internal/refdata"
	"github.com/toolworks/cycletimed/internal/status"
)

func loadTaxonomy(t *testing.T) *refdata.Taxonomy {
	t.Helper()
	raw, err := os.ReadFile("../refdata/tool_types.json")
	require.NoError(t, err)
	tax, err := refdata.ParseTaxonomy(raw)
	require.NoError(t, err)
	return tax
}

func TestFamily(t *testing.T) {
	tax := loadTaxonomy(t)
	cases := []struct {
		base      string
		split     string
		family    string
		refFamily string
		burCut    string
	}{
		{"SQ EM", "4FL SQ EM", "EM", "SQ EM", ""},
		{"BALL TAPERMILL EM", "3FL BALL TAPERMILL EM", "EM", "SQ EM", ""},
		{"STRAIGHT WR", "2FL STRAIGHT WR", "WR", "SQ EM", ""},
		{"O-FLUTE STRAIGHT WR", "1FL O-FLUTE STRAIGHT WR", "O-FLUTE", "SQ EM", ""},
		{"COMP STRAIGHT WR", "2FL COMP STRAIGHT WR", "WR COMP", "SQ EM", ""},
		{"SPADE DRILL", "2FL SPADE DRILL", "DRILL", "SQ EM", ""},
		{"DIEMILL", "DIEMILL SC", "FBGR", "BUR", ""},
		{"OVAL", "OVAL DC", "BUR", "BUR", "DC"},
		{"FLAME", "FLAME SC", "BUR", "BUR", "SC"},
	}
	for _, c := range cases {
		r, err := Family(tax, c.base, strings.Fields(c.split))
		require.NoError(t, err, c.base)
		assert.Equal(t, c.family, r.Family, c.base)
		assert.Equal(t, c.refFamily, r.ReferenceFamily, c.base)
		assert.Equal(t, c.burCut, r.BurCut, c.base)
	}
}

func TestFamily_BurSpiral(t *testing.T) {
	tax := loadTaxonomy(t)
	r, err := Family(tax, "OVAL", []string{"OVAL", "SPIRAL", "DC"})
	require.NoError(t, err)
	assert.True(t, r.Spiral)
}

func TestFamily_FBGREndType(t *testing.T) {
	tax := loadTaxonomy(t)
	r, err := Family(tax, "FBGR", []string{"PLAIN", "FBGR"})
	require.NoError(t, err)
	assert.Equal(t, "FBGR", r.Family)
	assert.Equal(t, "PLAIN", r.EndType)
}

func TestFamily_BurCutMissing(t *testing.T) {
	tax := loadTaxonomy(t)
	_, err := Family(tax, "OVAL", []string{"OVAL"})
	assert.Equal(t, status.BurCutMissing, status.CodeOf(err))
}

func TestFamily_Unassigned(t *testing.T) {
	tax := loadTaxonomy(t)
	_, err := Family(tax, "GIZMO", []string{"GIZMO"})
	assert.Equal(t, status.FamilyUnassigned, status.CodeOf(err))
}
