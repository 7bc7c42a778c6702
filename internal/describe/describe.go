// Package describe normalizes raw tool descriptions into structured records:
// abbreviation expansion, token cleanup, and extraction of neck, corner
// radius, flute count, full dimensions, and angles.
package describe

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/toolworks/cycletimed/internal/refdata"
	"github.com/toolworks/cycletimed/internal/status"
	"github.com/toolworks/cycletimed/internal/tool"
)

// MMCutoff is the overall length above which plain decimal dimensions are
// assumed to be millimeters.
const MMCutoff = 20.0

var (
	neckRe  = regexp.MustCompile(`(?:\.)?(?:\d+(?:\.\d+)?|\d+/\d+|\d+-\d+/\d+)?(?:°)?X(?:\.)?(?:\d+(?:\.\d+)?|\d+/\d+|\d+-\d+/\d+)? (?:TAPERED)?NECK`)
	crRe    = regexp.MustCompile(`(?:\d+)?(?:\.)?\d+(?:MM)? CR`)
	flCntRe = regexp.MustCompile(`\d+FL`)
	dimRe   = regexp.MustCompile(`\d+X\d+|\d+X.\d+`)
	angleRe = regexp.MustCompile(`\d+°`)
)

// Tool types that often omit the flute count from the description.
var missingFluteDescs = []string{"SPADE", "SPOTTING", "DRILL&COUNTERSINK"}

// Normalize canonicalizes rec.ToolDescription and fills the record's
// geometry and description fields. usingMM forces millimeter input; prep
// makes neck/corner-radius extraction failures hard errors because the prep
// stage needs those dimensions.
func Normalize(rec *tool.Record, tax *refdata.Taxonomy, usingMM, prep bool) error {
	description := strings.ToUpper(rec.ToolDescription)
	rec.FullDescription = description

	for _, ch := range []string{"(", ")", ","} {
		description = strings.ReplaceAll(description, ch, " ")
	}
	description = strings.Join(strings.Fields(description), " ")

	// Included shapes sometimes arrive without the word INCLUDED.
	if (strings.Contains(description, "RADIUS CONE") || strings.Contains(description, "POINTED CONE")) &&
		!strings.Contains(description, "INCLUDED") {
		description = strings.ReplaceAll(description, "RADIUS CONE", "INCLUDED RADIUS CONE")
		description = strings.ReplaceAll(description, "POINTED CONE", "INCLUDED POINTED CONE")
	}

	// Two expansion passes handle chained abbreviations without a
	// fixed-point loop.
	for pass := 0; pass < 2; pass++ {
		for _, a := range tax.Abbreviations {
			description = strings.ReplaceAll(description, a.From, a.To)
		}
	}
	// Drop duplicate words, preserving first occurrence.
	seen := make(map[string]bool)
	var kept []string
	for _, w := range strings.Fields(description) {
		if !seen[w] {
			seen[w] = true
			kept = append(kept, w)
		}
	}
	description = strings.Join(kept, " ")

	// Some drill types never carry a flute count in the description.
	if !strings.Contains(description, "FL") {
		for _, d := range missingFluteDescs {
			if strings.Contains(description, d) {
				description = "2FL " + description
				break
			}
		}
	}
	rec.ToolDescription = description

	splitDescription := strings.Fields(description)

	var neckAngle float64
	if m := neckRe.FindString(description); m != "" {
		if strings.Contains(m, "°") {
			dims := strings.ReplaceAll(strings.ReplaceAll(m, " TAPEREDNECK", ""), "°", "")
			angle, length, err := splitPair(dims)
			if err != nil {
				return status.Errf(status.ConversionError, "tapered neck: %v", err)
			}
			neckAngle = float64(int(angle)) * 2 // stored as an included angle
			rec.NeckLength = length
		} else {
			dims := strings.ReplaceAll(m, " NECK", "")
			dia, length, err := splitPair(dims)
			if err != nil {
				return status.Errf(status.ConversionError, "neck: %v", err)
			}
			rec.NeckDiameter, rec.NeckLength = dia, length
		}
		splitDescription = strings.Fields(strings.ReplaceAll(description, m, ""))
	} else if prep && strings.Contains(description, "NECK") {
		return status.Err(status.NeckDimsMissing)
	}

	if contains(splitDescription, "CR") {
		if m := crRe.FindString(description); m != "" {
			if strings.Contains(m, "MM") {
				usingMM = true
				cr, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(m, "MM CR")), 64)
				// Values over 8mm mean the pattern caught a full
				// dimension, not a corner radius.
				if err == nil && cr <= 8 {
					rec.CornerRadius = cr
				}
			} else {
				cr, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(m, " CR")), 64)
				if err == nil && cr <= 1 {
					rec.CornerRadius = cr
				}
			}
		} else if prep {
			return status.Errf(status.CornerRadiusMissing, "%s", description)
		}
	}

	flCnt := rec.FluteCount
	flCntCS := false
	var dimensionList, angleList []string
	var formatted, base []string

	for _, word := range splitDescription {
		if m := flCntRe.FindString(word); m != "" {
			flCntCS = true
			flCnt = strings.TrimSuffix(m, "FL")
			rec.FluteCount = flCnt
		}
		if dimRe.MatchString(word) {
			dimensionList = append(dimensionList, strings.ToLower(word))
		}
		if m := angleRe.FindString(word); m != "" {
			angleList = append(angleList, m)
		}
		word = strings.ReplaceAll(word, "°", "")

		if !tax.SplitWords[word] && !tax.AbbrevTargets[word] {
			continue
		}
		formatted = append(formatted, word)
		// Cut-type and qualifier tokens stay in the formatted form but
		// are excluded from the base description used for family lookup.
		if !contains(tax.BurCutTypes, word) && !tax.Extras[word] && !tax.WRCut[word] && !isNumeric(word) {
			base = append(base, word)
		}
	}
	formattedDescription := strings.Join(formatted, " ")
	baseDescription := strings.Join(base, " ")

	if flCnt == "" {
		return status.Err(status.FluteCountMissing)
	}

	cutDia := rec.CutDiameter
	loc := rec.LengthOfCut
	shankDia := rec.ShankDiameter
	oal := rec.OverallLength

	fullDim := fmt.Sprintf("%vx%vx%vx%v", cutDia, loc, shankDia, oal)
	if len(dimensionList) > 0 {
		fullDim = strings.ReplaceAll(dimensionList[0], "-", "+")
		dims := strings.Split(fullDim, "x")
		xCnt := strings.Count(fullDim, "x")
		var err error
		switch xCnt {
		case 2, 3, 4:
			if oal, err = ParseDimension(dims[xCnt]); err != nil { // last segment is always OAL
				return status.Errf(status.MissingCriticalDims, "%v", err)
			}
			if cutDia, err = ParseDimension(dims[0]); err != nil {
				return status.Errf(status.MissingCriticalDims, "%v", err)
			}
			switch xCnt {
			case 2:
				shankDia, err = ParseDimension(dims[1])
			case 3:
				if loc, err = ParseDimension(dims[1]); err == nil {
					shankDia, err = ParseDimension(dims[2])
				}
			case 4:
				// Third segment is a feature dimension handled elsewhere.
				if loc, err = ParseDimension(dims[1]); err == nil {
					shankDia, err = ParseDimension(dims[3])
				}
			}
			if err != nil {
				return status.Errf(status.MissingCriticalDims, "%v", err)
			}
		default:
			return status.Err(status.BadDimensionCount)
		}
	}

	rec.CutDiameter = round4(cutDia)
	rec.LengthOfCut = loc
	rec.ShankDiameter = shankDia
	rec.OverallLength = oal

	mainAngle := 0.0
	for _, angle := range angleList {
		v, err := strconv.ParseFloat(strings.TrimSuffix(angle, "°"), 64)
		if err != nil {
			continue
		}
		if idx := index(splitDescription, angle); idx >= 0 {
			if idx <= 2 { // angles past the leading tokens belong to features
				mainAngle = v
				break
			}
		} else {
			mainAngle = v
			if strings.Contains(description, "TAPERMILL") {
				mainAngle *= 2 // tapermill angles are given per side
			}
			break
		}
	}

	if !strings.Contains(fullDim, "/") {
		if oal > MMCutoff && !usingMM {
			usingMM = true
		}
	} else if usingMM {
		return status.Err(status.FractionWithMM)
	}

	if !tax.ToolTypes[baseDescription] {
		return status.Errf(status.ToolTypeNotFound, "parsed description: %q", baseDescription)
	}

	description = formattedDescription
	if strings.Contains(description, "COUNTERSINK") {
		// Non-bur countersinks are costed like FM burs.
		if flCntCS && !strings.Contains(description, "DRILL") {
			description += " ~ 90 INCLUDED CONE FM"
			rec.ToolDescription = description
		}
		if mainAngle == 0 {
			return status.Errf(status.FluteLengthUnknown, "%s", rec.ToolDescription)
		}
		var multiplier, dia float64
		if strings.Contains(description, "DRILL") { // combined drill and countersink
			rec.PilotLength = (rec.CutDiameter + rec.CutDiameter/3.32856) - 0.01
			multiplier = 4.0
			if rec.ShankDiameter >= 0.5 {
				multiplier = 3.2
			}
			dia = rec.ShankDiameter
		} else if n, err := strconv.Atoi(flCnt); err == nil && n == 1 {
			multiplier = 2.3
			dia = rec.CutDiameter
		} else {
			multiplier = 1.5
			dia = rec.CutDiameter
		}
		fluteLength := ConeHeight(mainAngle, dia) * multiplier
		rec.FluteLength = fluteLength
		if rec.LengthOfCut == 0 {
			rec.LengthOfCut = fluteLength
		}
	}

	rec.FormattedDescription = baseDescription
	rec.BurDescription = description

	converted := convertNonZero(rec, usingMM)
	if mainAngle != 0 {
		rec.MainAngle = mainAngle
	}
	if neckAngle != 0 {
		rec.TaperedNeckAngle = neckAngle
	}
	if !converted {
		return status.Errf(status.MissingCriticalDims, "no non-zero dimensions")
	}
	return nil
}

// convertNonZero applies the one-time mm-to-inch conversion to every
// non-zero linear dimension and reports whether any dimension was set at
// all. Angles are never converted.
func convertNonZero(rec *tool.Record, usingMM bool) bool {
	fields := []*float64{
		&rec.CutDiameter, &rec.LengthOfCut, &rec.ShankDiameter, &rec.OverallLength,
		&rec.FluteLength, &rec.TipDiameter, &rec.TipLength, &rec.PilotLength,
		&rec.CornerRadius, &rec.NeckDiameter, &rec.NeckLength, &rec.TaperedNeckDia,
	}
	any := false
	for _, f := range fields {
		if *f == 0 {
			continue
		}
		any = true
		if usingMM {
			*f = round4(*f / 25.4)
		}
	}
	return any
}

func splitPair(dims string) (float64, float64, error) {
	parts := strings.Split(dims, "X")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected two dimensions in %q", dims)
	}
	a, err := ParseDimension(parts[0])
	if err != nil {
		return 0, 0, err
	}
	b, err := ParseDimension(parts[1])
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func index(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func tanDeg(deg float64) float64 {
	return math.Tan(deg * math.Pi / 180)
}
