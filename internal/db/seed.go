package db

import (
	"database/sql"
	"fmt"
)

// SeedReferenceData loads the default feedrate, prep-rate, and live-time
// tables when they are empty. Shops replace these through the rates API;
// existing rows are never touched.
func (d *DB) SeedReferenceData() error {
	var n int
	if err := d.QueryRow(`SELECT COUNT(*) FROM rates`).Scan(&n); err != nil {
		return fmt.Errorf("db.SeedReferenceData: count rates: %w", err)
	}
	if n == 0 {
		for _, r := range defaultRates {
			_, err := d.Exec(`INSERT INTO rates
				(family, bur_type, min_diameter, max_diameter, sc_fluting, dc_fluting,
				 fluting_fr, od_fr, end_ct, end_gash_ct, end_split_ct)
				VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
				r.Family, r.BurType, r.MinDiameter, r.MaxDiameter, r.SCFluting, r.DCFluting,
				r.FlutingFR, r.ODFR, r.EndCT, r.EndGashCT, r.EndSplitCT)
			if err != nil {
				return fmt.Errorf("db.SeedReferenceData: rates: %w", err)
			}
		}
	}

	if err := d.QueryRow(`SELECT COUNT(*) FROM prep_rates`).Scan(&n); err != nil {
		return fmt.Errorf("db.SeedReferenceData: count prep_rates: %w", err)
	}
	if n == 0 {
		for _, p := range defaultPrepRates {
			_, err := d.Exec(`INSERT INTO prep_rates
				(sheet, length_ratio, neck_ratio, major_diameter, reduction_vol, rate)
				VALUES (?,?,?,?,?,?)`,
				p.Sheet, p.LengthRatio, p.NeckRatio, p.MajorDiameter, p.ReductionVol, p.Rate)
			if err != nil {
				return fmt.Errorf("db.SeedReferenceData: prep_rates: %w", err)
			}
		}
	}
	return nil
}

// nf builds a valid NullFloat64 for seed literals.
func nf(v float64) sql.NullFloat64 { return sql.NullFloat64{Float64: v, Valid: true} }

// defaultRates holds the built-in fluting feedrate sheets.
//
// BUR rows are matched by the first bur_type found inside the formatted
// description, so more specific shapes must come before their substrings
// (CYLINDER NOENDCUT before CYLINDER).
var defaultRates = []Rate{
	// ── BUR sheet ──
	{Family: FamilyBur, BurType: "CYLINDER NOENDCUT", MinDiameter: 0.01, MaxDiameter: 1.0, SCFluting: 0.30, DCFluting: 0.22, FlutingFR: 1.10, ODFR: 2.20, EndCT: 1.80, EndGashCT: 2.40, EndSplitCT: 0.25},
	{Family: FamilyBur, BurType: "INCLUDED POINTED CONE", MinDiameter: 0.01, MaxDiameter: 1.0, SCFluting: 0.34, DCFluting: 0.26, FlutingFR: 1.00, ODFR: 2.00, EndCT: 1.60, EndGashCT: 2.20, EndSplitCT: 0.25},
	{Family: FamilyBur, BurType: "CYLINDER", MinDiameter: 0.01, MaxDiameter: 0.25, SCFluting: 0.32, DCFluting: 0.24, FlutingFR: 1.20, ODFR: 2.40, EndCT: 2.00, EndGashCT: 2.60, EndSplitCT: 0.20},
	{Family: FamilyBur, BurType: "CYLINDER", MinDiameter: 0.25, MaxDiameter: 1.0, SCFluting: 0.38, DCFluting: 0.28, FlutingFR: 1.00, ODFR: 2.00, EndCT: 1.70, EndGashCT: 2.20, EndSplitCT: 0.25},
	{Family: FamilyBur, BurType: "OVAL", MinDiameter: 0.01, MaxDiameter: 0.25, SCFluting: 0.30, DCFluting: 0.23, FlutingFR: 1.15, ODFR: 2.30, EndCT: 1.90, EndGashCT: 2.50, EndSplitCT: 0.20},
	{Family: FamilyBur, BurType: "OVAL", MinDiameter: 0.25, MaxDiameter: 1.0, SCFluting: 0.36, DCFluting: 0.27, FlutingFR: 0.95, ODFR: 1.90, EndCT: 1.60, EndGashCT: 2.10, EndSplitCT: 0.25},
	{Family: FamilyBur, BurType: "BALL", MinDiameter: 0.01, MaxDiameter: 0.25, SCFluting: 0.28, DCFluting: 0.21, FlutingFR: 1.25, ODFR: 2.50, EndCT: 2.10, EndGashCT: 2.70, EndSplitCT: 0.20},
	{Family: FamilyBur, BurType: "BALL", MinDiameter: 0.25, MaxDiameter: 1.0, SCFluting: 0.34, DCFluting: 0.25, FlutingFR: 1.05, ODFR: 2.10, EndCT: 1.80, EndGashCT: 2.30, EndSplitCT: 0.25},
	{Family: FamilyBur, BurType: "TREE", MinDiameter: 0.01, MaxDiameter: 1.0, SCFluting: 0.33, DCFluting: 0.25, FlutingFR: 1.10, ODFR: 2.20, EndCT: 1.80, EndGashCT: 2.40, EndSplitCT: 0.25},
	{Family: FamilyBur, BurType: "FLAME", MinDiameter: 0.01, MaxDiameter: 1.0, SCFluting: 0.31, DCFluting: 0.24, FlutingFR: 1.15, ODFR: 2.30, EndCT: 1.90, EndGashCT: 2.50, EndSplitCT: 0.20},
	{Family: FamilyBur, BurType: "TAPER", MinDiameter: 0.01, MaxDiameter: 1.0, SCFluting: 0.35, DCFluting: 0.26, FlutingFR: 1.05, ODFR: 2.10, EndCT: 1.70, EndGashCT: 2.30, EndSplitCT: 0.25},
	{Family: FamilyBur, BurType: "CONE", MinDiameter: 0.01, MaxDiameter: 1.0, SCFluting: 0.34, DCFluting: 0.26, FlutingFR: 1.00, ODFR: 2.00, EndCT: 1.60, EndGashCT: 2.20, EndSplitCT: 0.25},
	{Family: FamilyBur, BurType: "OVAL CYLINDER", MinDiameter: 0.01, MaxDiameter: 1.0, SCFluting: 0.33, DCFluting: 0.25, FlutingFR: 1.05, ODFR: 2.10, EndCT: 1.75, EndGashCT: 2.30, EndSplitCT: 0.22},

	// ── SQ EM sheet (diameter bands, no bur_type) ──
	{Family: FamilySqEM, MinDiameter: 0.001, MaxDiameter: 0.0625, FlutingFR: 2.20, ODFR: 4.40, EndCT: 3.60, EndGashCT: 4.80, EndSplitCT: 0.10},
	{Family: FamilySqEM, MinDiameter: 0.0625, MaxDiameter: 0.125, FlutingFR: 1.90, ODFR: 3.80, EndCT: 3.10, EndGashCT: 4.20, EndSplitCT: 0.12},
	{Family: FamilySqEM, MinDiameter: 0.125, MaxDiameter: 0.1875, FlutingFR: 1.60, ODFR: 3.20, EndCT: 2.70, EndGashCT: 3.60, EndSplitCT: 0.15},
	{Family: FamilySqEM, MinDiameter: 0.1875, MaxDiameter: 0.25, FlutingFR: 1.40, ODFR: 2.80, EndCT: 2.30, EndGashCT: 3.10, EndSplitCT: 0.18},
	{Family: FamilySqEM, MinDiameter: 0.25, MaxDiameter: 0.375, FlutingFR: 1.20, ODFR: 2.40, EndCT: 2.00, EndGashCT: 2.70, EndSplitCT: 0.20},
	{Family: FamilySqEM, MinDiameter: 0.375, MaxDiameter: 0.5, FlutingFR: 1.00, ODFR: 2.00, EndCT: 1.70, EndGashCT: 2.30, EndSplitCT: 0.25},
	{Family: FamilySqEM, MinDiameter: 0.5, MaxDiameter: 0.75, FlutingFR: 0.85, ODFR: 1.70, EndCT: 1.40, EndGashCT: 1.90, EndSplitCT: 0.30},
	{Family: FamilySqEM, MinDiameter: 0.75, MaxDiameter: 1.0, FlutingFR: 0.70, ODFR: 1.40, EndCT: 1.20, EndGashCT: 1.60, EndSplitCT: 0.35},
}

// defaultPrepRates holds the built-in material-removal rate sheets.
// Rates are cubic inches per minute.
var defaultPrepRates = []PrepRate{
	// F_RED_PREP: length_ratio bands under/over 8, matched by closest reduction_vol.
	{Sheet: SheetFrontReduction, LengthRatio: nf(4), ReductionVol: nf(0.002), Rate: nf(0.030)},
	{Sheet: SheetFrontReduction, LengthRatio: nf(4), ReductionVol: nf(0.010), Rate: nf(0.042)},
	{Sheet: SheetFrontReduction, LengthRatio: nf(6), ReductionVol: nf(0.050), Rate: nf(0.058)},
	{Sheet: SheetFrontReduction, LengthRatio: nf(6), ReductionVol: nf(0.200), Rate: nf(0.075)},
	{Sheet: SheetFrontReduction, LengthRatio: nf(10), ReductionVol: nf(0.010), Rate: nf(0.026)},
	{Sheet: SheetFrontReduction, LengthRatio: nf(12), ReductionVol: nf(0.080), Rate: nf(0.040)},
	{Sheet: SheetFrontReduction, LengthRatio: nf(14), ReductionVol: nf(0.300), Rate: nf(0.055)},

	// NECK_PREP: neck_ratio bands at 0.15, then length_ratio bands at 8.
	{Sheet: SheetNeck, NeckRatio: nf(0.10), LengthRatio: nf(4), ReductionVol: nf(0.001), Rate: nf(0.020)},
	{Sheet: SheetNeck, NeckRatio: nf(0.10), LengthRatio: nf(6), ReductionVol: nf(0.010), Rate: nf(0.032)},
	{Sheet: SheetNeck, NeckRatio: nf(0.10), LengthRatio: nf(10), ReductionVol: nf(0.005), Rate: nf(0.018)},
	{Sheet: SheetNeck, NeckRatio: nf(0.10), LengthRatio: nf(12), ReductionVol: nf(0.040), Rate: nf(0.028)},
	{Sheet: SheetNeck, NeckRatio: nf(0.30), LengthRatio: nf(4), ReductionVol: nf(0.002), Rate: nf(0.024)},
	{Sheet: SheetNeck, NeckRatio: nf(0.30), LengthRatio: nf(6), ReductionVol: nf(0.020), Rate: nf(0.038)},
	{Sheet: SheetNeck, NeckRatio: nf(0.30), LengthRatio: nf(10), ReductionVol: nf(0.010), Rate: nf(0.022)},
	{Sheet: SheetNeck, NeckRatio: nf(0.30), LengthRatio: nf(12), ReductionVol: nf(0.060), Rate: nf(0.034)},

	// POINT_PREP: matched by closest major_diameter.
	{Sheet: SheetPoint, MajorDiameter: nf(0.125), Rate: nf(0.020)},
	{Sheet: SheetPoint, MajorDiameter: nf(0.250), Rate: nf(0.030)},
	{Sheet: SheetPoint, MajorDiameter: nf(0.375), Rate: nf(0.040)},
	{Sheet: SheetPoint, MajorDiameter: nf(0.500), Rate: nf(0.050)},
	{Sheet: SheetPoint, MajorDiameter: nf(0.750), Rate: nf(0.062)},
	{Sheet: SheetPoint, MajorDiameter: nf(1.000), Rate: nf(0.075)},
}
