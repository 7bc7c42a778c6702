// Package engine orchestrates the estimation pipeline: normalize the
// description, classify the family, optionally cost prep operations, then
// cost the fluting program and assemble the response.
package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/toolworks/cycletimed/internal/classify"
	"github.com/toolworks/cycletimed/internal/describe"
	"github.com/toolworks/cycletimed/internal/fluting"
	"github.com/toolworks/cycletimed/internal/prep"
	"github.com/toolworks/cycletimed/internal/refdata"
	"github.com/toolworks/cycletimed/internal/status"
	"github.com/toolworks/cycletimed/internal/tool"
)

// Dimension is a numeric request field that also accepts an inch fraction
// string like "1/2" or "1-1/2". An empty string coerces to zero.
type Dimension float64

func (d *Dimension) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*d = 0
			return nil
		}
		v, err := describe.ParseDimension(s)
		if err != nil {
			return err
		}
		*d = Dimension(v)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*d = Dimension(f)
	return nil
}

// Request is a single estimation call.
type Request struct {
	Diameter      Dimension      `json:"Diameter"`
	LOC           Dimension      `json:"LOC"`
	ShankDiameter Dimension      `json:"ShankDiameter"`
	OAL           Dimension      `json:"OAL"`
	FluteCount    string         `json:"FluteCount"`
	Description   string         `json:"Description"`
	Args          []string       `json:"args,omitempty"`
	Kwargs        map[string]any `json:"kwargs,omitempty"`
}

// Response carries the estimate or the failure code; StatusCode 900 means
// success and every other value maps to a message in the status package.
type Response struct {
	StatusCode   int    `json:"statusCode"`
	ErrorMessage string `json:"errorMessage"`

	PartNumber     string  `json:"PartNumber,omitempty"`
	Diameter       float64 `json:"Diameter,omitempty"`
	LOC            float64 `json:"LOC,omitempty"`
	ShankDiameter  float64 `json:"ShankDiameter,omitempty"`
	OAL            float64 `json:"OAL,omitempty"`
	FluteCount     string  `json:"FluteCount,omitempty"`
	Description    string  `json:"Description,omitempty"`
	Family         string  `json:"Family,omitempty"`
	PrepType       string  `json:"PrepType,omitempty"`
	CycleTime      float64 `json:"CycleTime,omitempty"`
	PrepTime       float64 `json:"PrepTime,omitempty"`
	TotalCycleTime float64 `json:"TotalCycleTime,omitempty"`
	Detail         any     `json:"Detail,omitempty"`
}

// Engine binds the reference data to the pipeline stages.
type Engine struct {
	ref *refdata.Provider
}

func New(ref *refdata.Provider) *Engine {
	return &Engine{ref: ref}
}

var argFlags = map[string]func(*tool.Features){
	"TERT":   func(f *tool.Features) { f.TertODAngle = true },
	"NOTCH":  func(f *tool.Features) { f.Notch = true },
	"DE":     func(f *tool.Features) { f.DoubleEnd = true },
	"COARSE": func(f *tool.Features) { f.Coarse = true },
	"DETAIL": func(f *tool.Features) { f.Detail = true },
	"MASS":   func(f *tool.Features) { f.MassDetail = true },
	"MM":     func(f *tool.Features) { f.Metric = true },
	"PREP":   func(f *tool.Features) { f.Prep = true },
}

// Estimate runs the full pipeline. Failures never surface as Go errors;
// they are folded into the response status code.
func (e *Engine) Estimate(req Request) Response {
	rec, feat, err := e.run(req)
	if err != nil {
		return Response{StatusCode: status.CodeOf(err), ErrorMessage: status.MessageOf(err)}
	}
	var detail any
	switch {
	case feat.Detail:
		detail = feat.Report
	case feat.MassDetail:
		detail = feat.Components
	default:
		detail = feat.DisplayDescription
	}
	return Response{
		StatusCode:     status.Success,
		ErrorMessage:   "Success!",
		PartNumber:     rec.PartNumber,
		Diameter:       rec.CutDiameter,
		LOC:            rec.LengthOfCut,
		ShankDiameter:  rec.ShankDiameter,
		OAL:            rec.OverallLength,
		FluteCount:     rec.FluteCount,
		Description:    rec.FullDescription,
		Family:         rec.ToolFamily,
		PrepType:       rec.PrepType,
		CycleTime:      rec.FlutingCycleTime,
		PrepTime:       rec.PrepCycleTime,
		TotalCycleTime: math.Round((rec.FlutingCycleTime+rec.PrepCycleTime)*1000) / 1000,
		Detail:         detail,
	}
}

// pipelineFeatures augments the request flags with the fluting outputs the
// response detail modes need.
type pipelineFeatures struct {
	tool.Features
	Report             string
	Components         []float64
	DisplayDescription string
}

func (e *Engine) run(req Request) (*tool.Record, *pipelineFeatures, error) {
	if req.Description == "" {
		return nil, nil, status.Err(status.DescriptionMissing)
	}

	rec := &tool.Record{
		CutDiameter:     float64(req.Diameter),
		LengthOfCut:     float64(req.LOC),
		ShankDiameter:   float64(req.ShankDiameter),
		OverallLength:   float64(req.OAL),
		FluteCount:      strings.TrimSpace(req.FluteCount),
		ToolDescription: req.Description,
	}
	feat := &pipelineFeatures{}

	for _, arg := range req.Args {
		if set, ok := argFlags[strings.ToUpper(arg)]; ok {
			set(&feat.Features)
		}
	}
	if err := applyKwargs(rec, req.Kwargs); err != nil {
		return nil, nil, err
	}

	tax, err := e.ref.Taxonomy()
	if err != nil {
		return nil, nil, err
	}
	tables, err := e.ref.Tables()
	if err != nil {
		return nil, nil, err
	}

	if err := describe.Normalize(rec, tax, feat.Metric, feat.Prep); err != nil {
		return nil, nil, err
	}

	if rec.MaterialDim != "" {
		if err := parseMaterialDims(rec); err != nil {
			return nil, nil, err
		}
	} else {
		rec.MaterialDiameter, rec.MaterialOAL = rec.CutDiameter, rec.OverallLength
	}

	splitDescription := strings.Fields(rec.ToolDescription)
	for _, word := range splitDescription {
		switch word {
		case "DRILL&COUNTERSINK", "DE":
			feat.DoubleEnd = true
		case "CC":
			feat.Coarse = true
		}
	}

	cls, err := classify.Family(tax, rec.FormattedDescription, splitDescription)
	if err != nil {
		return nil, nil, err
	}
	rec.ToolFamily = cls.Family
	rec.ReferenceFamily = cls.ReferenceFamily
	feat.EndType = cls.EndType
	feat.BurCut = cls.BurCut
	feat.Spiral = cls.Spiral

	if rec.CutDiameter == 0 || rec.LengthOfCut == 0 || rec.ShankDiameter == 0 {
		return nil, nil, status.Err(status.MissingCriticalDims)
	}

	if containsWord(classify.RouterFamilies, rec.ToolFamily) {
		feat.Notch = false
		if rec.FluteCount == "1" {
			// Single flute routers run the 2 flute program.
			rec.FluteCount = "2"
		}
		for _, word := range splitDescription {
			if tax.HasEndTime[word] {
				feat.EndTime = true
			}
		}
	}

	for _, ps := range tax.PerfSeries {
		if strings.Contains(rec.ToolDescription, ps) {
			feat.Performance = true
			break
		}
	}

	if feat.Prep {
		if err := prep.Calc(rec, tax, tables, feat.DoubleEnd); err != nil {
			return nil, nil, err
		}
	}

	out, err := fluting.Calc(rec, &feat.Features, tax, tables)
	if err != nil {
		return nil, nil, err
	}
	feat.Report = out.Report
	feat.Components = out.Components
	feat.DisplayDescription = out.Description

	return rec, feat, nil
}

// applyKwargs coerces the recognized kwargs onto the record. Values must
// convert to the field's type; anything else is a 200.
func applyKwargs(rec *tool.Record, kwargs map[string]any) error {
	for k, v := range kwargs {
		var err error
		switch strings.ToUpper(k) {
		case "PART_NUM":
			rec.PartNumber = fmt.Sprint(v)
		case "MATERIAL":
			rec.Material, err = coerceString(v)
		case "MAT_DIMENSION":
			rec.MaterialDim, err = coerceString(v)
		case "TIP_DIAMETER":
			rec.TipDiameter, err = coerceFloat(v)
		case "TAPERED_NECK_DIA":
			rec.TaperedNeckDia, err = coerceFloat(v)
		}
		if err != nil {
			return status.Errf(status.ConversionError, "kwarg %s: %v", k, err)
		}
	}
	return nil
}

func coerceString(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("expected string, got %T", v)
	}
	return s, nil
}

func coerceFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert %q to number", t)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}

// parseMaterialDims splits the "DxL" stock dimension, inferring millimeters
// when the stock length is implausibly large for inches.
func parseMaterialDims(rec *tool.Record) error {
	dims := strings.Split(strings.ReplaceAll(strings.ToUpper(rec.MaterialDim), "-", "+"), "X")
	if len(dims) != 2 {
		return status.Errf(status.ConversionError, "material dimension %q", rec.MaterialDim)
	}
	vals := make([]float64, 2)
	for i, d := range dims {
		v, err := describe.ParseDimension(strings.TrimSpace(d))
		if err != nil {
			return status.Errf(status.ConversionError, "material dimension %q: %v", rec.MaterialDim, err)
		}
		vals[i] = v
	}
	if vals[1] > describe.MMCutoff {
		vals[0] /= 25.4
		vals[1] /= 25.4
	}
	rec.MaterialDiameter, rec.MaterialOAL = vals[0], vals[1]
	return nil
}

func containsWord(words []string, w string) bool {
	for _, v := range words {
		if v == w {
			return true
		}
	}
	return false
}
