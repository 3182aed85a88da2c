package model

// PointState is the device's verdict on one calibration point.
type PointState int

// Calibration point states as reported by the device.
const (
	PointInsufficient PointState = iota
	PointQuestionable
	PointOK
)

func (s PointState) String() string {
	switch s {
	case PointOK:
		return "ok"
	case PointQuestionable:
		return "questionable"
	default:
		return "insufficient"
	}
}

// EyeTriple holds a value for both eyes averaged, the left and the right eye.
type EyeTriple struct {
	Avg   float64 `json:"avg"`
	Left  float64 `json:"left"`
	Right float64 `json:"right"`
}

// CalibrationPoint is the result for a single calibration target.
type CalibrationPoint struct {
	State       PointState
	Target      Position
	Estimated   Position
	AccuracyDeg EyeTriple
	PixelError  EyeTriple
	PixelStdDev EyeTriple
}

// CalibrationResult aggregates a finished calibration. Read-only once built.
type CalibrationResult struct {
	Success       bool
	MeanErrorDeg  float64
	LeftErrorDeg  float64
	RightErrorDeg float64
	Points        []CalibrationPoint
}

// MeanPixelError averages the pixel error over all points.
func (r CalibrationResult) MeanPixelError() float64 {
	if len(r.Points) == 0 {
		return 0
	}
	var sum float64
	for _, p := range r.Points {
		sum += p.PixelError.Avg
	}
	return sum / float64(len(r.Points))
}
