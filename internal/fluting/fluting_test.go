package fluting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolworks/cycletimed/internal/db"
	"github.com/toolworks/cycletimed/internal/refdata"
	"github.com/toolworks/cycletimed/internal/status"
	"github.com/toolworks/cycletimed/internal/tool"
)

func TestParseFluteCounts(t *testing.T) {
	cases := []struct {
		in       string
		n1, n2   int
		wantCode int
	}{
		{"8/5", 8, 5, 0},
		{"8", 8, 1, 0},
		{"4", 4, 1, 0},
		{" 6 ", 6, 1, 0},
		{"", 0, 0, status.FluteCountMissing},
		{"a/b", 0, 0, status.BadDualFluteCount},
		{"8/x", 0, 0, status.BadDualFluteCount},
		{"x", 0, 0, status.BadSingleFluteCount},
	}
	for _, c := range cases {
		n1, n2, err := ParseFluteCounts(c.in)
		if c.wantCode != 0 {
			assert.Equal(t, c.wantCode, status.CodeOf(err), c.in)
			continue
		}
		require.NoError(t, err, c.in)
		assert.Equal(t, c.n1, n1, c.in)
		assert.Equal(t, c.n2, n2, c.in)
	}
}

// emTables builds a one-row SQ EM rate sheet with easy numbers.
func emTables() *refdata.Tables {
	return &refdata.Tables{
		Rates: map[string][]db.Rate{
			db.FamilySqEM: {{
				Family: db.FamilySqEM, MinDiameter: 0.01, MaxDiameter: 1.0,
				FlutingFR: 1.0, ODFR: 2.0, EndCT: 1.0, EndGashCT: 2.0, EndSplitCT: 0.2,
			}},
		},
	}
}

func burTables() *refdata.Tables {
	return &refdata.Tables{
		Rates: map[string][]db.Rate{
			db.FamilyBur: {{
				Family: db.FamilyBur, BurType: "OVAL", MinDiameter: 0.01, MaxDiameter: 1.0,
				SCFluting: 0.30, DCFluting: 0.20,
				FlutingFR: 1.0, ODFR: 2.0, EndCT: 1.0, EndGashCT: 2.0, EndSplitCT: 0.2,
			}},
		},
	}
}

func TestCalc_SquareEndmill(t *testing.T) {
	rec := &tool.Record{
		ToolFamily: "EM", ReferenceFamily: db.FamilySqEM,
		ToolDescription: "4FL SQ EM", FormattedDescription: "SQ EM",
		FluteCount:  "4",
		CutDiameter: 0.25, LengthOfCut: 0.75, ShankDiameter: 0.25, OverallLength: 2.5,
	}
	out, err := Calc(rec, &tool.Features{}, &refdata.Taxonomy{}, emTables())
	require.NoError(t, err)

	// fl = (0.75/1.0)*2.5*4 = 7.5; od = (0.75/2.0)*2.5*4 = 3.75, doubled by
	// the second OD angle; no end passes without an end-time flag.
	assert.InDelta(t, 15.0, rec.FlutingCycleTime, 1e-9)
	assert.Equal(t, "SQ EM", out.Description)
	assert.Contains(t, out.Report, "Has Second OD Angle")
	assert.Contains(t, out.Report, "Cycle Time: 15")
}

func TestCalc_TwoFluteRunsFourPasses(t *testing.T) {
	rec := &tool.Record{
		ToolFamily: "EM", ReferenceFamily: db.FamilySqEM,
		ToolDescription: "2FL SQ EM", FormattedDescription: "SQ EM",
		FluteCount:  "2",
		CutDiameter: 0.25, LengthOfCut: 0.75, ShankDiameter: 0.25, OverallLength: 2.5,
	}
	_, err := Calc(rec, &tool.Features{}, &refdata.Taxonomy{}, emTables())
	require.NoError(t, err)
	// Same as the 4 flute tool: each of the 2 flutes grinds in two passes.
	assert.InDelta(t, 15.0, rec.FlutingCycleTime, 1e-9)
}

func TestCalc_BallAddsIncreaseAndSplit(t *testing.T) {
	rec := &tool.Record{
		ToolFamily: "EM", ReferenceFamily: db.FamilySqEM,
		ToolDescription: "3FL BALL EM", FormattedDescription: "BALL EM",
		FluteCount:  "3",
		CutDiameter: 0.25, LengthOfCut: 0.75, ShankDiameter: 0.25, OverallLength: 2.5,
	}
	out, err := Calc(rec, &tool.Features{}, &refdata.Taxonomy{}, emTables())
	require.NoError(t, err)

	// fl = (0.75/1.0)*2.5*3 = 5.625; od = (0.75/2.0)*2.5*3 = 2.8125, doubled
	// to 5.625; split pass adds the 0.2 end split; 25% ball increase on top.
	assert.InDelta(t, (5.625+5.625+0.2)*1.25, rec.FlutingCycleTime, 1e-3)
	assert.Contains(t, out.Report, "Has Split/Notch")
}

func TestCalc_DrillZeroesODAndGash(t *testing.T) {
	rec := &tool.Record{
		ToolFamily: "DRILL", ReferenceFamily: db.FamilySqEM,
		ToolDescription: "2FL DRILL", FormattedDescription: "DRILL",
		FluteCount:  "2",
		CutDiameter: 0.25, LengthOfCut: 1.0, ShankDiameter: 0.25, OverallLength: 3.0,
	}
	out, err := Calc(rec, &tool.Features{}, &refdata.Taxonomy{}, emTables())
	require.NoError(t, err)

	// fl = (1.0/1.0)*2.5*4 = 10; the OD pass is dropped for drills and no
	// increases apply at this size.
	assert.InDelta(t, 10.0, rec.FlutingCycleTime, 1e-9)
	assert.NotContains(t, out.Report, "Has Second OD Angle")
}

func TestCalc_SpadeDrillFixedFeed(t *testing.T) {
	rec := &tool.Record{
		ToolFamily: "DRILL", ReferenceFamily: db.FamilySqEM,
		ToolDescription: "2FL SPADE DRILL", FormattedDescription: "SPADE DRILL",
		FluteCount:  "2",
		CutDiameter: 0.25, LengthOfCut: 0.5, ShankDiameter: 0.25, OverallLength: 2.0,
	}
	_, err := Calc(rec, &tool.Features{}, &refdata.Taxonomy{}, emTables())
	require.NoError(t, err)
	// fl = 0.5/(5/25.4) = 2.54 at the +30% spade increase.
	assert.InDelta(t, round3(2.54*1.3), rec.FlutingCycleTime, 1e-9)
}

func TestCalc_BurSingleAndDoubleCut(t *testing.T) {
	rec := &tool.Record{
		ToolFamily: "BUR", ReferenceFamily: db.FamilyBur,
		ToolDescription: "OVAL DC", BurDescription: "OVAL DC", FormattedDescription: "OVAL",
		FluteCount:  "8/5",
		CutDiameter: 0.25, LengthOfCut: 0.625, ShankDiameter: 0.25, OverallLength: 2.0,
	}
	feat := &tool.Features{BurCut: "DC"}
	out, err := Calc(rec, feat, &refdata.Taxonomy{}, burTables())
	require.NoError(t, err)

	// sc = 0.30*0.625*8 = 1.5; dc = 0.20*0.625*5 = 0.625.
	assert.InDelta(t, 2.125, rec.FlutingCycleTime, 1e-9)
	assert.Contains(t, out.Report, "Single Cut Time")
	assert.Contains(t, out.Report, "Double Cut Time")
	assert.Equal(t, "OVAL DC", out.Description)
}

func TestCalc_SingleCutBurSkipsDoubleCutPass(t *testing.T) {
	rec := &tool.Record{
		ToolFamily: "BUR", ReferenceFamily: db.FamilyBur,
		ToolDescription: "OVAL SC", BurDescription: "OVAL SC", FormattedDescription: "OVAL",
		FluteCount:  "8",
		CutDiameter: 0.25, LengthOfCut: 0.625, ShankDiameter: 0.25, OverallLength: 2.0,
	}
	feat := &tool.Features{BurCut: "SC"}
	_, err := Calc(rec, feat, &refdata.Taxonomy{}, burTables())
	require.NoError(t, err)
	assert.InDelta(t, 1.5, rec.FlutingCycleTime, 1e-9)
}

func TestCalc_DoubleCutNeedsBothCounts(t *testing.T) {
	rec := &tool.Record{
		ToolFamily: "BUR", ReferenceFamily: db.FamilyBur,
		ToolDescription: "OVAL DC", BurDescription: "OVAL DC", FormattedDescription: "OVAL",
		FluteCount:  "8",
		CutDiameter: 0.25, LengthOfCut: 0.625, ShankDiameter: 0.25, OverallLength: 2.0,
	}
	_, err := Calc(rec, &tool.Features{BurCut: "DC"}, &refdata.Taxonomy{}, burTables())
	assert.Equal(t, status.DoubleCutNeedsCounts, status.CodeOf(err))
}

func TestCalc_BurTypeNotFound(t *testing.T) {
	rec := &tool.Record{
		ToolFamily: "BUR", ReferenceFamily: db.FamilyBur,
		ToolDescription: "TREE DC", BurDescription: "TREE DC", FormattedDescription: "TREE",
		FluteCount:  "8/5",
		CutDiameter: 0.25, LengthOfCut: 0.625, ShankDiameter: 0.25, OverallLength: 2.0,
	}
	_, err := Calc(rec, &tool.Features{BurCut: "DC"}, &refdata.Taxonomy{}, burTables())
	assert.Equal(t, status.BurTypeNotFound, status.CodeOf(err))
}

func TestCalc_DiameterOutOfRange(t *testing.T) {
	rec := &tool.Record{
		ToolFamily: "EM", ReferenceFamily: db.FamilySqEM,
		ToolDescription: "4FL SQ EM", FormattedDescription: "SQ EM",
		FluteCount:  "4",
		CutDiameter: 2.5, LengthOfCut: 3.0, ShankDiameter: 2.5, OverallLength: 6.0,
	}
	_, err := Calc(rec, &tool.Features{}, &refdata.Taxonomy{}, emTables())
	assert.Equal(t, status.DiameterOutOfRange, status.CodeOf(err))
}

func TestCalc_DoubleEndDoubles(t *testing.T) {
	base := func() *tool.Record {
		return &tool.Record{
			ToolFamily: "EM", ReferenceFamily: db.FamilySqEM,
			ToolDescription: "4FL SQ EM", FormattedDescription: "SQ EM",
			FluteCount:  "4",
			CutDiameter: 0.25, LengthOfCut: 0.75, ShankDiameter: 0.25, OverallLength: 2.5,
		}
	}
	single := base()
	_, err := Calc(single, &tool.Features{}, &refdata.Taxonomy{}, emTables())
	require.NoError(t, err)

	double := base()
	_, err = Calc(double, &tool.Features{DoubleEnd: true}, &refdata.Taxonomy{}, emTables())
	require.NoError(t, err)
	assert.InDelta(t, single.FlutingCycleTime*2, double.FlutingCycleTime, 1e-9)
}

func TestCalc_MassDetailNeedsLiveTimes(t *testing.T) {
	rec := &tool.Record{
		ToolFamily: "EM", ReferenceFamily: db.FamilySqEM,
		ToolDescription: "4FL SQ EM", FormattedDescription: "SQ EM",
		FluteCount:  "4",
		CutDiameter: 0.25, LengthOfCut: 0.75, ShankDiameter: 0.25, OverallLength: 2.5,
	}
	_, err := Calc(rec, &tool.Features{MassDetail: true}, &refdata.Taxonomy{}, emTables())
	assert.Equal(t, status.LiveTimesMissing, status.CodeOf(err))
}

func TestCalc_MassDetailComponents(t *testing.T) {
	tables := emTables()
	tables.LiveTimes = map[string]int{"P100": 120}
	rec := &tool.Record{
		ToolFamily: "EM", ReferenceFamily: db.FamilySqEM,
		ToolDescription: "4FL SQ EM", FormattedDescription: "SQ EM",
		FluteCount: "4", PartNumber: "P100",
		CutDiameter: 0.25, LengthOfCut: 0.75, ShankDiameter: 0.25, OverallLength: 2.5,
	}
	out, err := Calc(rec, &tool.Features{MassDetail: true}, &refdata.Taxonomy{}, tables)
	require.NoError(t, err)
	assert.Equal(t, 120, out.ActualSeconds)
	require.Len(t, out.Components, 9)
	assert.InDelta(t, rec.FlutingCycleTime, out.Components[0], 1e-9)
	assert.InDelta(t, 2.0, out.Components[2], 1e-9) // recorded minutes
}
