package model

// ConfidenceScale names the unit a confidence value was expressed in.
// The text parser emits fractions (a "75%" label is stored as 0.75), the
// webhook parser emits percentages defaulting to 100. The two scales are kept
// apart on purpose; callers normalize with Fraction at the boundary.
type ConfidenceScale string

const (
	ScaleFraction ConfidenceScale = "fraction" // 0..1
	ScalePercent  ConfidenceScale = "percent"  // 0..100
)

// Confidence is a unit-tagged confidence value.
type Confidence struct {
	Value float64
	Scale ConfidenceScale
}

// Fraction returns the value on the 0..1 scale.
func (c Confidence) Fraction() float64 {
	if c.Scale == ScalePercent {
		return c.Value / 100
	}
	return c.Value
}
