package prep

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolworks/cycletimed/internal/db"
	"github.com/toolworks/cycletimed/internal/refdata"
	"github.com/toolworks/cycletimed/internal/status"
	"github.com/toolworks/cycletimed/internal/tool"
)

func refSetup(t *testing.T) (*refdata.Taxonomy, *refdata.Tables) {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "prep.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.Migrate())
	require.NoError(t, database.SeedReferenceData())

	p := refdata.NewProvider(database, "")
	tax, err := p.Taxonomy()
	require.NoError(t, err)
	tables, err := p.Tables()
	require.NoError(t, err)
	return tax, tables
}

func TestCalc_NeckPrep(t *testing.T) {
	tax, tables := refSetup(t)
	rec := &tool.Record{
		ToolFamily:      "BUR",
		ToolDescription: "OVAL DC",
		CutDiameter:     0.25, LengthOfCut: 0.625, ShankDiameter: 0.25, OverallLength: 2.0,
		NeckDiameter: 0.125, NeckLength: 0.5,
		MaterialDiameter: 0.25, MaterialOAL: 2.0,
	}
	require.NoError(t, Calc(rec, tax, tables, false))

	assert.Contains(t, rec.PrepType, "Neck Prep (Before Fluting)")
	assert.Contains(t, rec.PrepType, "Robot Time:")
	// Neck removal volume 0.0184 in³ at the 0.038 in³/min sheet rate, with
	// the 10% increase and the robot load surcharge applied twice.
	assert.InDelta(t, 1.199, rec.PrepCycleTime, 1e-9)
}

func TestCalc_NeckAtCutDiameterSkipsNeckPrep(t *testing.T) {
	tax, tables := refSetup(t)
	rec := &tool.Record{
		ToolFamily:      "EM",
		ToolDescription: "4FL SQ EM",
		CutDiameter:     0.25, LengthOfCut: 0.75, ShankDiameter: 0.25, OverallLength: 2.5,
		NeckDiameter: 0.25, NeckLength: 0.5,
		MaterialDiameter: 0.25, MaterialOAL: 2.5,
	}
	require.NoError(t, Calc(rec, tax, tables, false))
	assert.NotContains(t, rec.PrepType, "Neck Prep")
	assert.Zero(t, rec.PrepCycleTime)
}

func TestCalc_FrontReduction(t *testing.T) {
	tax, tables := refSetup(t)
	rec := &tool.Record{
		ToolFamily:      "EM",
		ToolDescription: "4FL SQ EM",
		CutDiameter:     0.125, LengthOfCut: 0.5, ShankDiameter: 0.25, OverallLength: 2.0,
		MaterialDiameter: 0.25, MaterialOAL: 2.0,
	}
	require.NoError(t, Calc(rec, tax, tables, false))
	assert.Contains(t, rec.PrepType, "Front Reduction Prep")
	assert.Greater(t, rec.PrepCycleTime, 0.0)
}

func TestCalc_PointPrepDrill(t *testing.T) {
	tax, tables := refSetup(t)
	rec := &tool.Record{
		ToolFamily:      "DRILL",
		ToolDescription: "2FL DRILL",
		CutDiameter:     0.25, LengthOfCut: 1.0, ShankDiameter: 0.25, OverallLength: 3.0,
		MainAngle:        118,
		MaterialDiameter: 0.25, MaterialOAL: 3.0,
	}
	require.NoError(t, Calc(rec, tax, tables, false))
	assert.Contains(t, rec.PrepType, "Point Prep")
}

func TestCalc_PointPrepNeedsAngle(t *testing.T) {
	tax, tables := refSetup(t)
	rec := &tool.Record{
		ToolFamily:      "DRILL",
		ToolDescription: "2FL DRILL",
		CutDiameter:     0.25, LengthOfCut: 1.0, ShankDiameter: 0.25, OverallLength: 3.0,
		MaterialDiameter: 0.25, MaterialOAL: 3.0,
	}
	err := Calc(rec, tax, tables, false)
	assert.Equal(t, status.CalcError, status.CodeOf(err))
}

func TestCalc_TaperedNeckWithoutDiameter(t *testing.T) {
	tax, tables := refSetup(t)
	rec := &tool.Record{
		ToolFamily:      "BUR",
		ToolDescription: "OVAL DC 15°X.5 TAPEREDNECK",
		CutDiameter:     0.25, LengthOfCut: 0.625, ShankDiameter: 0.25, OverallLength: 2.0,
		NeckLength:       0.5,
		MaterialDiameter: 0.25, MaterialOAL: 2.0,
	}
	err := Calc(rec, tax, tables, false)
	assert.Equal(t, status.TaperedNeckDiaMissing, status.CodeOf(err))
}

func TestCalc_MissingDims(t *testing.T) {
	tax, tables := refSetup(t)
	rec := &tool.Record{ToolFamily: "EM", ToolDescription: "4FL SQ EM"}
	err := Calc(rec, tax, tables, false)
	assert.Equal(t, status.MissingCriticalDims, status.CodeOf(err))
}

func TestCalc_DoubleEndDoubles(t *testing.T) {
	tax, tables := refSetup(t)
	build := func() *tool.Record {
		return &tool.Record{
			ToolFamily:      "BUR",
			ToolDescription: "OVAL DC",
			CutDiameter:     0.25, LengthOfCut: 0.625, ShankDiameter: 0.25, OverallLength: 2.0,
			NeckDiameter: 0.125, NeckLength: 0.5,
			MaterialDiameter: 0.25, MaterialOAL: 2.0,
		}
	}
	single := build()
	require.NoError(t, Calc(single, tax, tables, false))
	double := build()
	require.NoError(t, Calc(double, tax, tables, true))
	assert.Greater(t, double.PrepCycleTime, single.PrepCycleTime)
}
