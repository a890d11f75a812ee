package music

import "math"

// Calibration maps the usable vertical band of the camera to the full volume range.
type Calibration struct {
	Min float64 // wrist y at full volume
	Max float64 // wrist y at silence
}

// NewCalibration builds a Calibration from the lower bound and the margin
// kept free at the bottom of the frame.
func NewCalibration(volumeMin, volumeMaxMargin float64) Calibration {
	return Calibration{Min: volumeMin, Max: 1 - volumeMaxMargin}
}

// Volume remaps a wrist height into [0, 1] across the calibrated band.
func (c Calibration) Volume(y float64) float64 {
	span := c.Max - c.Min
	if span <= 0 {
		return Clamp01(y)
	}
	return Clamp01((Clamp01(y) - c.Min) / span)
}

// VolumeByte converts a calibrated volume to a 7-bit MIDI value. A raised
// hand (small y) is loud.
func VolumeByte(v float64) int {
	return int(math.Round((1 - Clamp01(v)) * 127))
}
