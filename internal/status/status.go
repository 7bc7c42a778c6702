// Package status defines the numbered status-code taxonomy shared by every
// pipeline stage and the typed Error that carries a code through the pipeline.
package status

import "fmt"

// Success is the only non-failure code. Any other code is terminal for the request.
const Success = 900

// Reference-data availability (101–108).
const (
	TaxonomyMissing    = 101
	RateTablesMissing  = 102
	ToolTypeNotFound   = 104
	LiveTimesMissing   = 105
	TaxonomyNotObject  = 106
	ToolTypesKeyAbsent = 107
	TaxonomyKeyAbsent  = 108
)

// Type/conversion failures (200–211).
const (
	ConversionError       = 200
	InvalidTypeConversion = 201
	BadDualFluteCount     = 202
	BadSingleFluteCount   = 203
	DescriptionMissing    = 204
	BadDimensionCount     = 205
	MissingCriticalDims   = 206
	CornerRadiusMissing   = 207
	FractionWithMM        = 208
	NeckDimsMissing       = 209
	MaterialDimsMissing   = 210
	TaperedNeckDiaMissing = 211
)

// Classification/lookup failures (301–308).
const (
	FamilyUnassigned     = 301
	BurCutMissing        = 302
	DualCountNotAllowed  = 303
	BurTypeNotFound      = 304
	DiameterOutOfRange   = 305
	DoubleCutNeedsCounts = 306
	FluteCountMissing    = 307
	FluteLengthUnknown   = 308
)

// Calculation-state failures (401/404).
const (
	CalcIncomplete = 401
	CalcError      = 404
)

var messages = map[int]string{
	TaxonomyMissing:    "Taxonomy content is empty/missing.",
	RateTablesMissing:  "Rate table content is empty/missing.",
	ToolTypeNotFound:   "Tool description not found in taxonomy data.",
	LiveTimesMissing:   "Live time data is empty/missing.",
	TaxonomyNotObject:  "Taxonomy content is not an object.",
	ToolTypesKeyAbsent: "'tool_types' key not found in taxonomy data.",
	TaxonomyKeyAbsent:  "Missing key in taxonomy data.",

	ConversionError:       "Conversion error.",
	InvalidTypeConversion: "Invalid data type conversion.",
	BadDualFluteCount:     "Cannot convert multiple flute counts to int.",
	BadSingleFluteCount:   "Cannot convert single flute count to int.",
	DescriptionMissing:    "Description is missing.",
	BadDimensionCount:     "Full dimensions in description have too many or too few values.",
	MissingCriticalDims:   "Missing critical dimensions and/or description.",
	CornerRadiusMissing:   "Tool is a corner radius tool but corner radius dimension missing from description.",
	FractionWithMM:        "Cannot convert to millimeters when fractional dimensions are present.",
	NeckDimsMissing:       "Neck present in description but no neck diameter/length found.",
	MaterialDimsMissing:   "Material missing diameter/OAL in 'MAT_DIMENSION' key.",
	TaperedNeckDiaMissing: "Tapered neck missing neck diameter in 'TAPERED_NECK_DIA' key.",

	FamilyUnassigned:     "Tool could not assign a generic tool family (i.e. DRILL, EM).",
	BurCutMissing:        "Bur cut type missing from description i.e. 'Doublecut', 'Singlecut' or 'Diamond cut'.",
	DualCountNotAllowed:  "Multiple flute counts not allowed for non 'Burs' tool types.",
	BurTypeNotFound:      "Tool type not found in bur type column in reference tables.",
	DiameterOutOfRange:   "Diameter not found in diameter ranges in reference tables.",
	DoubleCutNeedsCounts: "Cannot calculate doublecut time with only single flute count.",
	FluteCountMissing:    "Cannot find flute count in description/'FluteCount' key.",
	FluteLengthUnknown:   "Cannot calculate flute length. Please enter flute length in 'LOC' key or add point angle to description.",

	CalcIncomplete: "Tool calculations still in progress.",
	CalcError:      "Generic error placeholder.",

	Success: "Success",
}

// Message returns the canonical message for a code, or an empty string for
// unknown codes.
func Message(code int) string {
	return messages[code]
}

// Error is a pipeline failure carrying a numbered status code.
// The zero Detail form renders the canonical message alone.
type Error struct {
	Code   int
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("status %d: %s", e.Code, messages[e.Code])
	}
	return fmt.Sprintf("status %d: %s %s", e.Code, messages[e.Code], e.Detail)
}

// Err creates an Error for code.
func Err(code int) *Error {
	return &Error{Code: code}
}

// Errf creates an Error for code with extra detail appended to the message.
func Errf(code int, format string, args ...interface{}) *Error {
	return &Error{Code: code, Detail: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the status code from err. Non-status errors map to
// CalcError (404) so a caller always has a numbered code to report.
func CodeOf(err error) int {
	if err == nil {
		return Success
	}
	if se, ok := err.(*Error); ok {
		return se.Code
	}
	return CalcError
}

// MessageOf returns the user-facing message for err: the canonical code
// message plus any detail.
func MessageOf(err error) string {
	if err == nil {
		return messages[Success]
	}
	if se, ok := err.(*Error); ok {
		if se.Detail == "" {
			return messages[se.Code]
		}
		return messages[se.Code] + " " + se.Detail
	}
	return err.Error()
}
