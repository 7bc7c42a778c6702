// Package prep computes secondary grinding operation times: shank and front
// reductions, neck, tapered neck, point, and backtaper, each modeled as a
// volume-removal problem against the prep rate sheets.
package prep

import (
	"fmt"
	"math"
	"strings"

	"github.com/toolworks/cycletimed/internal/db"
	"github.com/toolworks/cycletimed/internal/describe"
	"github.com/toolworks/cycletimed/internal/refdata"
	"github.com/toolworks/cycletimed/internal/status"
	"github.com/toolworks/cycletimed/internal/tool"
)

// Every individual prep time gets this increase before summation.
const incPercentage = 1.10

// Operations faster than this still need the robot load/unload surcharge.
const robotCutoff = 1.11

type volKind int

const (
	cylinder volKind = iota
	cone
)

type volResult struct {
	time         float64
	reductionVol float64
	rate         float64
}

// operation is one gated prep operation with its computed numbers.
type operation struct {
	name   string
	active bool
	time   float64
	vol    float64
	rate   float64
}

// Calc computes prep time and the prep-type summary for a classified,
// normalized record, mutating rec.PrepCycleTime and rec.PrepType.
func Calc(rec *tool.Record, tax *refdata.Taxonomy, tables *refdata.Tables, doubleEnd bool) error {
	description := rec.ToolDescription
	splitDescription := strings.Fields(description)
	cutDia := rec.CutDiameter
	loc := rec.LengthOfCut
	shankDia := rec.ShankDiameter
	oal := rec.OverallLength
	nkDia := rec.NeckDiameter
	nkLen := rec.NeckLength
	matDia := rec.MaterialDiameter
	matLen := rec.MaterialOAL
	family := rec.ToolFamily

	if cutDia == 0 || loc == 0 || shankDia == 0 {
		return status.Errf(status.MissingCriticalDims, "in prep calculation")
	}

	rules := tax.Prep

	prepLength := loc
	if strings.Contains(description, "DRILL&COUNTERSINK") {
		prepLength = rec.PilotLength
	}

	// Oversized stock is ground down before anything else.
	cgPrep := matDia > cutDia && matDia > shankDia

	frontReduction := cutDia < shankDia
	prepDia := cutDia
	if frontReduction {
		fr := rules.FrontReduction
		switch {
		case family == "DRILL":
			prepDia = cutDia
		case cutDia > fr.DiaCutoff1:
			prepDia = cutDia + fr.PrepDiaInc1
		case cutDia >= fr.DiaCutoff2:
			prepDia = cutDia + fr.PrepDiaInc2
		default:
			prepDia = cutDia + fr.PrepDiaInc3
		}
	}

	if strings.Contains(strings.ToUpper(rec.Material), "BRAZED") {
		shankDia = cutDia
	}
	shankReduction := shankDia < cutDia

	nkType := "BF" // before fluting
	neckPrep := false
	if nkDia != 0 {
		neckPrep = true
		if nkDia == cutDia {
			prepLength = loc + nkLen
			neckPrep = false
		}
	}

	backtaper := false
	btTime := 0.0
	backtaperRate := 0.0
	for _, word := range rules.Backtaper.Tools {
		if strings.Contains(description, word) {
			backtaperRate = rules.Backtaper.Rate / 25.4
			btTime = prepLength / backtaperRate
			backtaper = true
			break
		}
	}

	if strings.Contains(description, "TAPEREDNECK") && rec.TaperedNeckDia == 0 {
		return status.Err(status.TaperedNeckDiaMissing)
	}
	taperedNeck := false
	if rec.TaperedNeckDia != 0 {
		taperedNeck = true
		if rec.TaperedNeckAngle == 0 {
			rec.TaperedNeckAngle = rules.BurNeck.IncludedPrepAngle
		}
		// Type F burs grind the neck during the second prep instead.
		if shankReduction && (containsWord(splitDescription, "OVAL") || containsWord(splitDescription, "INVERTED")) {
			taperedNeck = false
		}
	}

	prepTipDia := 0.0
	pointPrep := false
	tipPercent := 0.0
	if family == "DRILL" {
		if strings.Contains(description, "HURRICANE") {
			pointPrep = true
			tipPercent = rules.Point.PrepTipPct
		} else if cutDia >= rules.Drill.PointPrepDiaCutoff {
			pointPrep = true
			if strings.Contains(description, "DRILL&COUNTERSINK") {
				tipPercent = rules.Point.DrillCountersink
			} else {
				tipPercent = rules.Point.DrillPct
			}
		}
	}
	for _, word := range rules.Point.Tools {
		if strings.Contains(description, word) && !strings.Contains(description, "DRILL&COUNTERSINK") {
			pointPrep = true
			tipPercent = rules.Point.PrepTipPct
			break
		}
	}

	chamferPrep := false
	radiusPrep := false
	if containsWord(splitDescription, "BALL") {
		ball := rules.Ball
		if cutDia <= ball.DiaCutoff {
			if cutDia > ball.DiaRef1 && loc < ball.LocRef1 {
				chamferPrep = true
			} else if cutDia >= ball.DiaRef2 && loc >= ball.LocRef2 {
				chamferPrep = true
			}
		} else {
			radiusPrep = true
		}
	}
	if containsWord(splitDescription, "CR") {
		if cutDia > rules.CR.DiaCutoff && rec.CornerRadius >= rules.CR.CutPct*cutDia {
			chamferPrep = true
		}
	}
	if strings.Contains(description, "PILOTED DIEMILL") {
		chamferPrep = true
	}
	if chamferPrep {
		rec.TipDiameter = cutDia * 0.50
		rec.MainAngle = 45.0
	}
	if rec.TipDiameter != 0 { // manually entered tip diameter
		pointPrep = true
	}

	if pointPrep {
		if rec.MainAngle == 0 {
			return status.Errf(status.CalcError, "missing included main angle to calculate point length")
		}
		if strings.Contains(family, "BUR") {
			if rec.TipDiameter == 0 {
				return status.Errf(status.CalcError, "missing tip diameter to calculate point length")
			}
			prepTipDia = rec.TipDiameter
		}
		if prepTipDia == 0 {
			if rec.TipDiameter != 0 {
				prepTipDia = rec.TipDiameter + 0.010 // standard tip prep allowance
			} else {
				prepTipDia = cutDia * tipPercent
			}
		}
	}

	if containsWord(splitDescription, "TAPERMILL") {
		prepTipDia = cutDia
		if containsWord(splitDescription, "SQ") || containsWord(splitDescription, "CR") {
			prepTipDia = cutDia + 0.01
		}
		frontReduction = false
		pointPrep = true
	}

	bumpingPrep := false
	cutOffPrep := false
	if oal != 0 && oal < matLen {
		if matLen-oal < rules.Bumping.LengthCutoff/25.4 {
			bumpingPrep = true
		} else {
			cutOffPrep = true
		}
	}

	flatPrep := containsWord(splitDescription, "W/FLAT")

	// ── volume calculations ──

	shankLength := oal - loc

	var srTime, srVol, srRate float64
	if shankReduction {
		sr, err := volCalc(tables, rec, cutDia, shankDia, shankLength, db.SheetFrontReduction, cylinder)
		if err != nil {
			return err
		}
		srTime, srVol, srRate = sr.time, sr.reductionVol, sr.rate
	}

	var nkTime, nkVol, nkRate float64
	reach := 0.0
	if neckPrep {
		reach = nkLen + loc
		reachRatio := math.Round(reach / cutDia)
		if frontReduction {
			if shankDia <= 0.1250 {
				if reachRatio > 6.0 && cutDia >= 0.035 {
					nkType = "AF" // after fluting
				}
			} else if shankDia <= 0.2500 && reachRatio > 7.0 {
				nkType = "AF"
			}
		}
		baseDia := prepDia
		if nkType == "AF" { // neck reduced from the shank diameter
			baseDia = shankDia
		}
		nk, err := volCalc(tables, rec, baseDia, nkDia, nkLen, db.SheetNeck, cylinder)
		if err != nil {
			return err
		}
		nkTime, nkVol, nkRate = nk.time, nk.reductionVol, nk.rate
	}

	var frTime, frVol, frRate float64
	if frontReduction {
		height := prepLength
		if neckPrep && nkType == "BF" {
			height = reach
		}
		fr, err := volCalc(tables, rec, shankDia, prepDia, height, db.SheetFrontReduction, cylinder)
		if err != nil {
			return err
		}
		frTime, frVol, frRate = fr.time, fr.reductionVol, fr.rate
	}

	var ptTime, ptVol, ptRate float64
	if pointPrep {
		baseDia := shankDia
		if frontReduction || shankReduction {
			baseDia = prepDia
		}
		coneLength := describe.ConeHeight(rec.MainAngle, baseDia) - describe.ConeHeight(rec.MainAngle, prepTipDia)
		pt, err := volCalc(tables, rec, baseDia, prepTipDia, coneLength, db.SheetPoint, cone)
		if err != nil {
			return err
		}
		ptTime, ptVol, ptRate = pt.time, pt.reductionVol, pt.rate
	}

	var tpTime, tpVol, tpRate float64
	if taperedNeck {
		baseDia := shankDia
		tipDia := rec.TaperedNeckDia
		coneLength := nkLen
		if rec.NeckLength == 0 {
			coneLength = describe.ConeHeight(rec.TaperedNeckAngle, baseDia) - describe.ConeHeight(rec.TaperedNeckAngle, tipDia)
		}
		tp, err := volCalc(tables, rec, baseDia, tipDia, coneLength, db.SheetPoint, cone)
		if err != nil {
			return err
		}
		tpTime, tpVol, tpRate = tp.time, tp.reductionVol, tp.rate
	}

	neckName := "Neck Prep (Before Fluting)"
	if nkType == "AF" {
		neckName = "Neck Prep (After Fluting)"
	}
	ops := []operation{
		{"Front Reduction Prep", frontReduction, round4v(frTime * incPercentage), frVol, frRate},
		{"Shank Reduction Prep", shankReduction, round4v(srTime * incPercentage), srVol, srRate},
		{"Point Prep", pointPrep, round4v(ptTime * incPercentage), ptVol, ptRate},
		{"Chamfer Prep", chamferPrep, 0, 0, 0},
		{"Tapered Neck Prep", taperedNeck, round4v(tpTime * incPercentage), tpVol, tpRate},
		{"Radius Prep", radiusPrep, 0, 0, 0},
		{"Backtaper Prep", backtaper, round4v(btTime * incPercentage), 0, backtaperRate},
		{"Flat Prep", flatPrep, 0, 0, 0},
		{"Cut Off Prep", cutOffPrep, 0, 0, 0},
		{"Bumping Prep", bumpingPrep, 0, 0, 0},
		{"Centerless Grinding Prep", cgPrep, 0, 0, 0},
		{neckName, neckPrep, round4v(nkTime * incPercentage), nkVol, nkRate},
	}

	totalPrepTime := 0.0
	robotTime := 0.0
	var parts []string
	for _, op := range ops {
		if !op.active {
			continue
		}
		// Short operations are dominated by robot load/unload overhead.
		if op.time != 0 && op.time < robotCutoff {
			if op.name == "Backtaper Prep" {
				robotTime = round4v(5.0 / 60.0)
			} else {
				robotTime = round4v(20.0 / 60.0)
			}
		} else {
			robotTime = 0.0
		}
		totalPrepTime += round3(op.time + robotTime)
		parts = append(parts, fmt.Sprintf("%s: %v", op.name, op.time))
	}

	if doubleEnd {
		totalPrepTime *= 2
	}
	totalPrepTime = round3(totalPrepTime + robotTime)

	if len(parts) > 0 {
		rec.PrepType = strings.Join(parts, " | ") + fmt.Sprintf(" | Robot Time: %v", robotTime)
		rec.PrepCycleTime = totalPrepTime
	}
	return nil
}

// volCalc computes removed volume for the given geometry and finds the
// removal rate row: F_RED_PREP and NECK_PREP bucket rows by length ratio
// (and neck ratio) then take the row whose documented volume is closest;
// POINT_PREP takes the row with the nearest major diameter.
func volCalc(tables *refdata.Tables, rec *tool.Record, majorOD, minorOD, height float64, sheetName string, kind volKind) (volResult, error) {
	sheet := tables.PrepSheets[sheetName]
	if sheet == nil || len(sheet.Rows) == 0 {
		return volResult{}, status.Errf(status.CalcError, "%s is empty", sheetName)
	}
	if sheet.HasNull {
		return volResult{}, status.Errf(status.RateTablesMissing, "%s has missing cells", sheetName)
	}

	majorRad := majorOD / 2
	minorRad := minorOD / 2
	majorVol := math.Pi * majorRad * majorRad * height
	var minorVol float64
	switch kind {
	case cylinder:
		minorVol = math.Pi * minorRad * minorRad * height
	case cone:
		// Volume of the truncated cone left standing.
		minorVol = math.Pi * height * (majorRad*majorRad + minorRad*minorRad + majorRad*minorRad) / 3
	}
	reductionVol := majorVol - minorVol
	lengthRatio := math.Round(height / minorOD)

	rate := 0.0
	switch sheetName {
	case db.SheetFrontReduction:
		row, err := closestVol(sheet.Rows, reductionVol, func(r refdata.PrepRow) bool {
			return (lengthRatio < 8) == (r.LengthRatio < 8)
		}, sheetName)
		if err != nil {
			return volResult{}, err
		}
		rate = row.Rate
	case db.SheetNeck:
		neckPercent := 1 - minorOD/majorOD
		// Preps done after fluting see a grown prep diameter, so the
		// allowed reduction is a little looser.
		allowedPercent := 0.2
		if minorOD == majorOD {
			allowedPercent = 0.15
		}
		row, err := closestVol(sheet.Rows, reductionVol, func(r refdata.PrepRow) bool {
			return (neckPercent < allowedPercent) == (r.NeckRatio < 0.15) &&
				(lengthRatio < 8) == (r.LengthRatio < 8)
		}, sheetName)
		if err != nil {
			return volResult{}, err
		}
		rate = row.Rate
	case db.SheetPoint:
		best := sheet.Rows[0]
		for _, r := range sheet.Rows[1:] {
			if math.Abs(r.MajorDiameter-majorOD) < math.Abs(best.MajorDiameter-majorOD) {
				best = r
			}
		}
		inc := 1.0
		if minorOD/majorOD >= 0.45 {
			inc = 1.1
		}
		// Long tapermill preps run with a faster cycle.
		if strings.Contains(rec.ToolDescription, "TAPERMILL") && height/minorOD > 8 {
			inc += 1.6
		}
		rate = best.Rate * inc
	}

	res := volResult{reductionVol: reductionVol, rate: rate}
	if rate != 0 {
		res.time = round3(reductionVol / rate)
	}
	return res, nil
}

func closestVol(rows []refdata.PrepRow, vol float64, match func(refdata.PrepRow) bool, sheetName string) (refdata.PrepRow, error) {
	var best refdata.PrepRow
	bestDiff := math.Inf(1)
	for _, r := range rows {
		if !match(r) {
			continue
		}
		if d := math.Abs(r.ReductionVol - vol); d < bestDiff {
			bestDiff = d
			best = r
		}
	}
	if math.IsInf(bestDiff, 1) {
		return refdata.PrepRow{}, status.Errf(status.CalcError, "%s has no matching rows", sheetName)
	}
	return best, nil
}

func containsWord(words []string, w string) bool {
	for _, v := range words {
		if v == w {
			return true
		}
	}
	return false
}

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }

func round4v(v float64) float64 { return math.Round(v*10000) / 10000 }
