package describe

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolworks/cycletimed/internal/refdata"
	"github.com/toolworks/cycletimed/internal/status"
	"github.com/toolworks/cycletimed/internal/tool"
)

func loadTaxonomy(t *testing.T) *refdata.Taxonomy {
	t.Helper()
	raw, err := os.ReadFile("../refdata/tool_types.json")
	require.NoError(t, err)
	tax, err := refdata.ParseTaxonomy(raw)
	require.NoError(t, err)
	return tax
}

func TestNormalize_AbbreviationsAndBase(t *testing.T) {
	tax := loadTaxonomy(t)
	rec := &tool.Record{
		ToolDescription: "4fl square end mill",
		CutDiameter:     0.25, LengthOfCut: 0.75, ShankDiameter: 0.25, OverallLength: 2.5,
	}
	require.NoError(t, Normalize(rec, tax, false, false))
	assert.Equal(t, "SQ EM", rec.FormattedDescription)
	assert.Equal(t, "4", rec.FluteCount)
	assert.Equal(t, "4FL SQUARE END MILL", rec.FullDescription)
}

func TestNormalize_DimensionsFromDescription(t *testing.T) {
	tax := loadTaxonomy(t)
	rec := &tool.Record{ToolDescription: "4FL SQ EM 1/4X3/4X1/4X2-1/2"}
	require.NoError(t, Normalize(rec, tax, false, false))
	assert.InDelta(t, 0.25, rec.CutDiameter, 1e-9)
	assert.InDelta(t, 0.75, rec.LengthOfCut, 1e-9)
	assert.InDelta(t, 0.25, rec.ShankDiameter, 1e-9)
	assert.InDelta(t, 2.5, rec.OverallLength, 1e-9)
}

func TestNormalize_MillimeterInference(t *testing.T) {
	tax := loadTaxonomy(t)
	// An OAL over 20 with plain decimals means the dimensions are metric.
	rec := &tool.Record{
		ToolDescription: "2FL SQ EM",
		CutDiameter:     6, LengthOfCut: 19, ShankDiameter: 6, OverallLength: 63,
	}
	require.NoError(t, Normalize(rec, tax, false, false))
	assert.InDelta(t, 0.2362, rec.CutDiameter, 1e-4)
	assert.InDelta(t, 0.748, rec.LengthOfCut, 1e-3)
	assert.InDelta(t, 2.4803, rec.OverallLength, 1e-4)
}

func TestNormalize_FractionWithMM(t *testing.T) {
	tax := loadTaxonomy(t)
	rec := &tool.Record{ToolDescription: "4FL SQ EM 1/4X3/4X1/4X2"}
	err := Normalize(rec, tax, true, false)
	assert.Equal(t, status.FractionWithMM, status.CodeOf(err))
}

func TestNormalize_NeckExtraction(t *testing.T) {
	tax := loadTaxonomy(t)
	rec := &tool.Record{
		ToolDescription: "4FL SQ EM .125X.5 NECK",
		CutDiameter:     0.25, LengthOfCut: 0.75, ShankDiameter: 0.25, OverallLength: 2.5,
	}
	require.NoError(t, Normalize(rec, tax, false, false))
	assert.InDelta(t, 0.125, rec.NeckDiameter, 1e-9)
	assert.InDelta(t, 0.5, rec.NeckLength, 1e-9)
}

func TestNormalize_NeckWithoutDimsFailsPrep(t *testing.T) {
	tax := loadTaxonomy(t)
	rec := &tool.Record{
		ToolDescription: "4FL SQ EM NECK",
		CutDiameter:     0.25, LengthOfCut: 0.75, ShankDiameter: 0.25, OverallLength: 2.5,
	}
	err := Normalize(rec, tax, false, true)
	assert.Equal(t, status.NeckDimsMissing, status.CodeOf(err))
}

func TestNormalize_CornerRadius(t *testing.T) {
	tax := loadTaxonomy(t)
	rec := &tool.Record{
		ToolDescription: "4FL .03 CR EM",
		CutDiameter:     0.25, LengthOfCut: 0.75, ShankDiameter: 0.25, OverallLength: 2.5,
	}
	require.NoError(t, Normalize(rec, tax, false, false))
	assert.InDelta(t, 0.03, rec.CornerRadius, 1e-9)
}

func TestNormalize_FluteCountMissing(t *testing.T) {
	tax := loadTaxonomy(t)
	rec := &tool.Record{
		ToolDescription: "SQ EM",
		CutDiameter:     0.25, LengthOfCut: 0.75, ShankDiameter: 0.25, OverallLength: 2.5,
	}
	err := Normalize(rec, tax, false, false)
	assert.Equal(t, status.FluteCountMissing, status.CodeOf(err))
}

func TestNormalize_UnknownToolType(t *testing.T) {
	tax := loadTaxonomy(t)
	rec := &tool.Record{
		ToolDescription: "4FL WIDGET",
		CutDiameter:     0.25, LengthOfCut: 0.75, ShankDiameter: 0.25, OverallLength: 2.5,
	}
	err := Normalize(rec, tax, false, false)
	assert.Equal(t, status.ToolTypeNotFound, status.CodeOf(err))
}

func TestNormalize_CountersinkFluteLength(t *testing.T) {
	tax := loadTaxonomy(t)
	rec := &tool.Record{
		ToolDescription: "1FL 90° COUNTERSINK",
		CutDiameter:     0.5, ShankDiameter: 0.375, OverallLength: 2.0,
	}
	require.NoError(t, Normalize(rec, tax, false, false))
	// Flute length derives from the cone a 90 degree point forms.
	assert.Greater(t, rec.FluteLength, 0.0)
	assert.Equal(t, rec.FluteLength, rec.LengthOfCut)
	assert.Contains(t, rec.ToolDescription, "INCLUDED CONE FM")
}
