// Package fluting computes the primary machining cycle time per family,
// accumulating named percentage adjustments on top of the base feedrate
// components.
package fluting

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/toolworks/cycletimed/internal/db"
	"github.com/toolworks/cycletimed/internal/refdata"
	"github.com/toolworks/cycletimed/internal/status"
	"github.com/toolworks/cycletimed/internal/tool"
)

// dynamicConstant scales every endmill-branch component; tuned against
// recorded machine times.
const dynamicConstant = 2.5

var dcRequiredRe = regexp.MustCompile(`\b(?:DM|DC|FBGR)\b`)

// Output carries the fluting result alongside the detail payloads the
// response modes need.
type Output struct {
	// Report is the human-readable breakdown (DETAIL mode).
	Report string
	// Components is the raw numeric tuple (MASS mode).
	Components []float64
	// ActualSeconds echoes the recorded live time for the part (MASS mode).
	ActualSeconds int
	// Description is the display form of the tool type.
	Description string
}

// ParseFluteCounts splits a flute-count string into single-cut and
// double-cut counts: "8/5" is (8,5), "8" is (8,1).
func ParseFluteCounts(s string) (int, int, error) {
	if s == "" {
		return 0, 0, status.Err(status.FluteCountMissing)
	}
	if first, second, ok := strings.Cut(s, "/"); ok {
		n1, err1 := strconv.Atoi(strings.TrimSpace(first))
		n2, err2 := strconv.Atoi(strings.TrimSpace(second))
		if err1 != nil || err2 != nil {
			return 0, 0, status.Errf(status.BadDualFluteCount, "%q", s)
		}
		return n1, n2, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, 0, status.Errf(status.BadSingleFluteCount, "%q", s)
	}
	return n, 1, nil
}

// incTracker accumulates the increase percentage with the reason for each
// increment, feeding the detail report.
type incTracker struct {
	pct     float64
	reasons []string
}

func (t *incTracker) add(num float64, why string) {
	t.pct += num
	t.reasons = append(t.reasons, fmt.Sprintf("%+.2f %s", num, why))
}

// Calc computes the fluting cycle time for a classified record, mutating
// rec.FlutingCycleTime.
func Calc(rec *tool.Record, feat *tool.Features, tax *refdata.Taxonomy, tables *refdata.Tables) (Output, error) {
	flCnt1, flCnt2, err := ParseFluteCounts(rec.FluteCount)
	if err != nil {
		return Output{}, err
	}

	actualSeconds := 0
	if feat.MassDetail {
		if len(tables.LiveTimes) == 0 {
			return Output{}, status.Err(status.LiveTimesMissing)
		}
		actualSeconds = tables.LiveTimes[rec.PartNumber]
		if feat.DoubleEnd {
			actualSeconds *= 2
		}
	}

	refFam := rec.ReferenceFamily
	rateRows := tables.Rates[refFam]
	family := rec.ToolFamily
	splitDescription := strings.Fields(rec.ToolDescription)
	description := rec.FormattedDescription
	cutDia := rec.CutDiameter

	var filtered []db.Rate
	switch {
	case family == "FBGR" || containsWord(splitDescription, "DIEMILL") || strings.Contains(description, "TIRE BUR"):
		shapes := []string{"CYLINDER NOENDCUT"}
		if strings.Contains(description, "TIRE BUR") {
			shapes = append(shapes, "INCLUDED POINTED CONE")
		}
		for _, r := range rateRows {
			if r.MinDiameter <= cutDia && r.MaxDiameter >= cutDia && containsWord(shapes, r.BurType) {
				filtered = append(filtered, r)
			}
		}
	case family == "BUR":
		description = rec.BurDescription
		match := ""
		for _, r := range rateRows {
			if r.BurType != "" && strings.Contains(description, strings.ToUpper(r.BurType)) {
				match = r.BurType
				break
			}
		}
		if match == "" {
			return Output{}, status.Errf(status.BurTypeNotFound, "%s", rec.BurDescription)
		}
		for _, r := range rateRows {
			if r.MinDiameter <= cutDia && r.MaxDiameter >= cutDia && r.BurType == match {
				filtered = append(filtered, r)
			}
		}
	default:
		lookupDia := cutDia
		if family == "DRILL" && lookupDia > 0.8500 {
			lookupDia = 0.850 // largest banded drill diameter
		}
		for _, r := range rateRows {
			if r.MinDiameter <= lookupDia && r.MaxDiameter >= lookupDia {
				filtered = append(filtered, r)
			}
		}
	}
	if len(filtered) == 0 {
		return Output{}, status.Err(status.DiameterOutOfRange)
	}
	row := filtered[0]

	inc := incTracker{pct: 1.0}
	loc := rec.LengthOfCut
	orgLOC := loc
	out := Output{ActualSeconds: actualSeconds}

	if refFam == "BUR" {
		return calcBur(rec, feat, &inc, row, filtered, flCnt1, flCnt2, loc, orgLOC, description, splitDescription, out)
	}
	return calcEndmill(rec, feat, tax, &inc, row, flCnt1, loc, orgLOC, description, splitDescription, out)
}

func calcBur(rec *tool.Record, feat *tool.Features, inc *incTracker, row db.Rate, filtered []db.Rate,
	flCnt1, flCnt2 int, loc, orgLOC float64, description string, splitDescription []string, out Output) (Output, error) {

	if containsWord(splitDescription, "MF") {
		inc.add(0.20, "mirror finish")
	}
	if strings.Contains(description, "TIRE BUR") {
		// Tire burs run a cylinder plus cone program; a fifth of the cut
		// length against both rows approximates the combined pass.
		loc = loc / 5
		if rec.CutDiameter >= 0.5 {
			inc.add(0.15, "cut diameter >= 0.5")
		}
		if len(filtered) < 2 {
			return Output{}, status.Errf(status.DiameterOutOfRange, "tire bur needs both shape rows")
		}
		row = addRates(filtered[0], filtered[1])
	}

	scFeedrate := row.SCFluting
	dcFeedrate := row.DCFluting

	if feat.Spiral {
		inc.add(0.10, "spiral")
	}

	family := rec.ToolFamily
	burLikeEndmill := feat.BurCut == "FM" || feat.BurCut == "NX"
	var scTime, dcTime, flutingTime float64
	var calcFl, calcOD, calcEnd, calcGash, endSplit float64

	if !burLikeEndmill || family == "FBGR" {
		scTime = scFeedrate * loc * float64(flCnt1) * inc.pct
		// Double-cut shapes cannot be costed from a single count.
		if flCnt2 == 1 && dcRequiredRe.MatchString(description) {
			return Output{}, status.Err(status.DoubleCutNeedsCounts)
		}
		if !containsWord(splitDescription, "SC") || family == "FBGR" {
			dcTime = dcFeedrate * loc * float64(flCnt2) * inc.pct
		}
		flutingTime = scTime + dcTime
	}

	if burLikeEndmill || family == "FBGR" {
		if strings.Contains(description, "COUNTERSINK") { // countersinks costed as FM burs
			inc.add(0.20, "countersink")
			if rec.CutDiameter > 0.3700 {
				inc.add(rec.CutDiameter/loc-0.15, "cut diameter > 0.37")
			}
		} else if strings.Contains(description, "INCLUDED CONE") && loc < 0.22 {
			inc.add((1-loc/0.22)+0.1, "length of cut < 0.22")
			if flCnt1 < 6 {
				inc.add(0.25, "flute count < 6")
			}
		}

		flutingFR := row.FlutingFR
		odFR := row.ODFR
		endCT := row.EndCT
		endGashCT := row.EndGashCT
		endSplit = row.EndSplitCT

		if family == "FBGR" {
			flutingFR, odFR, endSplit = 0, 0, 0
			switch feat.EndType {
			case "PLAIN":
				endGashCT, endCT = 0, 0
			case "BUR", "FISHTAIL":
				endGashCT = 0
			}
		}

		// Muraki FM programs without a notch skip most of the split pass.
		part := rec.PartNumber
		if (strings.HasPrefix(part, "AC") || strings.HasPrefix(part, "TA")) &&
			strings.HasSuffix(part, "FM") && !feat.Notch {
			endSplit *= 0.45
		}
		if rec.CutDiameter >= 0.748 {
			inc.add(0.12, "cut diameter >= 0.748")
		}

		if endGashCT != 0 {
			calcGash = ((rec.CutDiameter * 0.5) / endGashCT) * float64(flCnt1) * inc.pct
		}
		if endCT != 0 {
			calcEnd = ((rec.CutDiameter * 0.5) / endCT) * float64(flCnt1) * inc.pct
		}
		if flutingFR != 0 {
			calcFl = (loc / flutingFR) * float64(flCnt1) * inc.pct
		}
		if odFR != 0 {
			calcOD = (loc / odFR) * float64(flCnt1) * inc.pct
		}

		flutingTime = calcFl + calcOD + calcEnd + calcGash + endSplit
		if family == "FBGR" {
			flutingTime += scTime + dcTime
		}
	}

	if feat.DoubleEnd {
		flutingTime *= 2
	}
	if i := strings.Index(description, "~"); i >= 0 {
		description = strings.TrimRight(description[:i], " ")
	}

	flutingTime = round3(flutingTime)
	rec.FlutingCycleTime = flutingTime
	if flutingTime == 0 {
		return Output{}, status.Err(status.CalcIncomplete)
	}

	out.Description = description
	out.Components = []float64{flutingTime, inc.pct, float64(out.ActualSeconds) / 60,
		scTime, dcTime, calcFl, calcOD, calcEnd, calcGash, endSplit}

	var b strings.Builder
	writeHeader(&b, description, rec, orgLOC, rec.FluteCount)
	fmt.Fprintf(&b, "Cycle Time: %v\n", round3(flutingTime))
	fmt.Fprintf(&b, "Increase Percentage: %v%%\n", math.Round((inc.pct-1)*10000)/100)
	writeComponents(&b, []reportLine{
		{"Single Cut Time", scTime},
		{"Double Cut Time", dcTime},
		{"Fluting Feedrate", calcFl},
		{"OD Feedrate", calcOD},
		{"End Gash Time", calcEnd},
		{"End Cycle Time", calcGash},
		{"End Split Time", endSplit},
	})
	out.Report = b.String()
	return out, nil
}

// emShapeRule adjusts the increase percentage and split/secondary-angle
// eligibility for the shape token the description carries. Evaluated in
// order; later matches override earlier ones.
type emShapeRule struct {
	word     string
	splitKey string
	inc      float64
	secOD    bool
}

// splitFlutes lists the flute counts that get a split/notch pass per shape.
var splitFlutes = map[string][]int{
	"SQ EM":        {3, 5, 6},
	"BALL EM":      {3, 4, 5, 6},
	"CR EM":        {3, 5, 6},
	"ROUGHER EM":   {3, 5, 6},
	"TAPERMILL EM": {3},
	"NONE":         {},
}

func calcEndmill(rec *tool.Record, feat *tool.Features, tax *refdata.Taxonomy, inc *incTracker, row db.Rate,
	flCnt1 int, loc, orgLOC float64, description string, splitDescription []string, out Output) (Output, error) {

	secInc := 0.0
	split := feat.Notch
	tertODAngle := feat.TertODAngle
	family := rec.ToolFamily
	cutDia := rec.CutDiameter

	if strings.Contains(description, "MINI-MILL") && cutDia/loc > 0.5 {
		loc *= 1.8
	}

	if strings.Contains(description, "OFX") {
		splitDescription = append(splitDescription, "MF")
		if cutDia > 0.079 {
			inc.add(0.20, "OFX > 0.079")
		}
	}
	if containsWord(splitDescription, "MF") {
		inc.add(0.20, "mirror finish")
	}

	if strings.Contains(description, "STAGGERED") {
		loc = cutDia * 3
	}

	// Tiny tools run proportionally slower than their band's feedrates.
	diff := 1.0
	if cutDia < 0.06 {
		diff = cutDia / row.MaxDiameter
	}
	flutingFR := row.FlutingFR * diff
	odFR := row.ODFR * diff
	endCT := row.EndCT
	endGashCT := row.EndGashCT
	endSplit := row.EndSplitCT
	endTime := feat.EndTime

	var calcFl, calcOD float64
	if flCnt1 == 2 {
		// A 2 flute tool grinds each flute in two passes.
		calcFl = (loc / flutingFR) * dynamicConstant * 4
		calcOD = (loc / odFR) * dynamicConstant * 4
	} else {
		calcFl = (loc / flutingFR) * dynamicConstant * float64(flCnt1)
		calcOD = (loc / odFR) * dynamicConstant * float64(flCnt1)
	}
	calcEnd := ((cutDia * 0.5) / endCT) * dynamicConstant * float64(flCnt1)
	calcGash := ((cutDia * 0.5) / endGashCT) * dynamicConstant * float64(flCnt1)

	diaCutoff := math.Round(3.0/25.4*10000) / 10000
	secODAngle := cutDia >= diaCutoff

	shapeRules := []emShapeRule{
		{"SQ", "SQ EM", 0.0, secODAngle},
		{"BALL", "BALL EM", 0.25, secODAngle},
		{"CR", "CR EM", 0.20, secODAngle},
		{"DRILLMILL", "NONE", 0.05, secODAngle},
		{"ROUGHER", "ROUGHER EM", 0.0, false},
		{"ALUMAZIP", "NONE", 0.0, false},
		{"TAPERMILL", "TAPERMILL EM", taperInc(description), true},
	}
	for _, r := range shapeRules {
		if strings.HasPrefix(description, r.word) || strings.Contains(description, r.word) {
			if r.inc != 0 {
				inc.add(r.inc, r.word)
			}
			split = containsInt(splitFlutes[r.splitKey], flCnt1)
			secODAngle = r.secOD
		}
	}

	if strings.Contains(description, "ROUGHER") {
		secInc = 1.0 // one extra minute of roughing per flute
	}

	if strings.Contains(description, "STRFL") && !strings.Contains(description, "REAMER") {
		inc.add(0.10, "straight flute")
		if family == "DRILL" {
			inc.add(0.45, "straight flute drill")
		}
	}

	if containsWord(routerFamilies, family) {
		if strings.Contains(description, "CB") {
			inc.add(0.20, "chipbreaker")
		}
		if strings.Contains(description, "COMP") {
			if flCnt1 == 2 {
				inc.add(0.50, "compression")
			} else {
				inc.add(0.70, "compression")
			}
		}
		if strings.Contains(description, "HOGGER") || strings.Contains(description, "RIPPER") {
			inc.add(0.40, "hogger/ripper")
		}
	}

	if strings.Contains(description, "REAMER") {
		endTime = strings.Contains(description, "ENDCUT")
	} else if family == "DRILL" {
		split = false
		calcOD = 0.0

		if strings.Contains(description, "SPADE") {
			// Spade drills flute at a fixed 5mm/min.
			calcFl = loc / (5.0 / 25.4)
			inc.add(0.30, "spade")
			if cutDia < 0.1575 {
				inc.add(0.15, "spade < 0.1575")
			}
			calcGash = 0.0
		} else {
			if cutDia < diaCutoff {
				inc.add(-0.20, "drill under 3mm")
				if cutDia < 0.0501 {
					inc.add(-0.30, "miniature drill")
				}
				calcGash = 0.0
			}
			switch {
			case strings.Contains(description, "SPOTTING"):
				inc.add(0.20, "spotting")
			case strings.Contains(description, "DRILL&COUNTERSINK"):
				if cutDia > 0.0500 {
					inc.add(0.15, "drill&countersink")
				}
			case strings.Contains(description, "HURRICANE"):
				inc.add(0.20, "hurricane")
			case strings.Contains(description, "MAXIMIZER"):
				inc.add(0.15, "maximizer")
			}
			if loc < 0.7000 && cutDia > 0.0790 && !strings.Contains(description, "SPOTTING") {
				inc.add(0.15, "short length of cut")
			}
			if cutDia > 0.5000 {
				inc.add(-0.05, "cut diameter > 0.5")
			}
		}
	}

	if feat.Performance {
		split, secODAngle, secInc = applyPerfSeries(tax.PerfSeries, description, inc, split, secODAngle, secInc)
	}

	if tertODAngle && !secODAngle {
		tertODAngle = false
	}
	if calcOD == 0.0 {
		secODAngle = false
		tertODAngle = false
	}
	if strings.Contains(description, "STAGGERED") {
		secODAngle = false
		tertODAngle = false
		split = false
		calcOD = 0.0
	}

	if !endTime {
		calcEnd = 0.0
		calcGash = 0.0
	}
	if !split {
		endSplit = 0.0
	}
	if secODAngle && tertODAngle {
		calcOD *= 3.0
	} else if secODAngle {
		calcOD *= 2.0
	}

	flutingTime := (calcFl+calcOD+calcEnd+calcGash+endSplit)*inc.pct + secInc*float64(flCnt1)

	if feat.DoubleEnd {
		flutingTime *= 2
	}
	if strings.Contains(description, "MINI-MILL") {
		if ratio := cutDia / loc; ratio > 0.5 {
			flutingTime *= 2 + (0.6 - ratio)
		}
	}

	flutingTime = round3(flutingTime)
	rec.FlutingCycleTime = flutingTime
	if flutingTime == 0 {
		return Output{}, status.Err(status.CalcIncomplete)
	}

	out.Description = description
	out.Components = []float64{flutingTime, inc.pct, float64(out.ActualSeconds) / 60,
		calcFl, calcOD, calcEnd, calcGash, endSplit, secInc}

	var b strings.Builder
	writeHeader(&b, description, rec, orgLOC, strconv.Itoa(flCnt1))
	fmt.Fprintf(&b, "\nCycle Time: %v\n", round3(flutingTime))
	fmt.Fprintf(&b, "Increase Percentage: %v%%\n", math.Round((inc.pct-1)*10000)/100)
	if secInc != 0 {
		fmt.Fprintf(&b, "Seconds Increase: %v min per flute\n", secInc)
	}
	b.WriteString("\n------Features------\n")
	if secODAngle {
		b.WriteString("Has Second OD Angle\n")
	}
	if split {
		b.WriteString("Has Split/Notch\n")
	}
	if tertODAngle {
		b.WriteString("Has Tertiary OD Angle\n")
	}
	writeComponents(&b, []reportLine{
		{"Fluting Feedrate", calcFl},
		{"OD Feedrate", calcOD},
		{"End Gash Time", calcEnd},
		{"End Cycle Time", calcGash},
		{"End Split Time", endSplit},
	})
	out.Report = b.String()
	return out, nil
}

func applyPerfSeries(perfSeries []string, description string, inc *incTracker, split, secODAngle bool, secInc float64) (bool, bool, float64) {
	for _, ps := range perfSeries {
		if !strings.Contains(description, ps) {
			continue
		}
		switch {
		case strings.HasPrefix(ps, "V"):
			inc.add(0.10, ps)
			if strings.HasPrefix(description, "SQ") || strings.HasPrefix(description, "CR") {
				split = false
			}
		case ps == "AX":
			inc.add(0.05, ps)
			split = false
			if strings.Contains(description, "CB") {
				secInc = 45.0 / 60.0
			}
		case ps == "CR TAPERMILL":
			// Only corner-radius tapermills count as high performance.
			inc.add(-0.15, ps)
		case ps == "F45":
			split = false
			inc.add(0.10, ps)
		case ps == "HY5":
			inc.add(0.10, ps)
		case ps == "HYPERMILL":
			inc.add(0.05, ps)
		case ps == "MOLD":
			inc.add(0.05, ps)
		case ps == "TWISTER":
			inc.add(0.05, ps)
		}
	}
	return split, secODAngle, secInc
}

var routerFamilies = []string{"WR", "O-FLUTE", "WR COMP"}

type reportLine struct {
	name  string
	value float64
}

func writeHeader(b *strings.Builder, description string, rec *tool.Record, orgLOC float64, fluteCount string) {
	fmt.Fprintf(b, "Tool Type: %s\n", description)
	fmt.Fprintf(b, "Diameter: %v\n", round4(rec.CutDiameter))
	fmt.Fprintf(b, "Length of Cut: %v\n", round4(orgLOC))
	fmt.Fprintf(b, "Shank Diameter: %v\n", round4(rec.ShankDiameter))
	fmt.Fprintf(b, "OAL: %v\n", round4(rec.OverallLength))
	fmt.Fprintf(b, "Flute Count: %s\n", fluteCount)
}

func writeComponents(b *strings.Builder, lines []reportLine) {
	b.WriteString("\n------Base Cycle Times------\n")
	for _, l := range lines {
		if l.value != 0 {
			fmt.Fprintf(b, "%s: %v\n", l.name, math.Round(l.value*100)/100)
		}
	}
}

func taperInc(description string) float64 {
	if strings.Contains(description, "CR") {
		return 0.0
	}
	return 0.05
}

func addRates(a, b db.Rate) db.Rate {
	return db.Rate{
		Family:      a.Family,
		BurType:     a.BurType,
		MinDiameter: a.MinDiameter,
		MaxDiameter: a.MaxDiameter,
		SCFluting:   a.SCFluting + b.SCFluting,
		DCFluting:   a.DCFluting + b.DCFluting,
		FlutingFR:   a.FlutingFR + b.FlutingFR,
		ODFR:        a.ODFR + b.ODFR,
		EndCT:       a.EndCT + b.EndCT,
		EndGashCT:   a.EndGashCT + b.EndGashCT,
		EndSplitCT:  a.EndSplitCT + b.EndSplitCT,
	}
}

func containsWord(words []string, w string) bool {
	for _, v := range words {
		if v == w {
			return true
		}
	}
	return false
}

func containsInt(list []int, n int) bool {
	for _, v := range list {
		if v == n {
			return true
		}
	}
	return false
}

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
