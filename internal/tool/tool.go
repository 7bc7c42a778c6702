// Package tool defines the record types shared by the estimation stages.
package tool

// Record holds everything known about one tool as estimation proceeds:
// parsed geometry, description forms, classification, and computed times.
// Linear dimensions are inches, angles degrees, times minutes.
type Record struct {
	CutDiameter   float64
	LengthOfCut   float64
	ShankDiameter float64
	OverallLength float64

	FluteLength      float64
	TipDiameter      float64
	TipLength        float64
	PilotLength      float64
	CornerRadius     float64
	NeckDiameter     float64
	NeckLength       float64
	TaperedNeckDia   float64
	TaperedNeckAngle float64
	MainAngle        float64

	Material         string
	MaterialDiameter float64
	MaterialOAL      float64
	MaterialDim      string

	// FullDescription is the raw input. ToolDescription is the normalized
	// working form, BurDescription the bur-shape remainder, and
	// FormattedDescription the abbreviation-expanded display form.
	FullDescription      string
	ToolDescription      string
	BurDescription       string
	FormattedDescription string

	PartNumber      string
	ToolFamily      string
	ReferenceFamily string
	ToolType        string
	FluteCount      string

	FlutingCycleTime float64
	PrepCycleTime    float64
	PrepType         string
}

// Features holds the request flags and classification toggles that steer
// the calculation branches.
type Features struct {
	TertODAngle bool
	Notch       bool
	EndType     string
	EndTime     bool
	BurCut      string
	Spiral      bool
	DoubleEnd   bool
	Coarse      bool
	Performance bool
	Detail      bool
	MassDetail  bool
	Metric      bool
	Prep        bool
}
