// Package gesture classifies finger and hand poses from landmark snapshots.
package gesture

import (
	"fmt"
	"math"

	"github.com/ayusman/theremin/internal/detector"
)

// FingerType names one of the five digits.
type FingerType int

const (
	Thumb FingerType = iota
	Index
	Middle
	Ring
	Pinky
)

// NumFingers is the number of digits on a hand.
const NumFingers = 5

var fingerNames = [NumFingers]string{"thumb", "index", "middle", "ring", "pinky"}

func (f FingerType) String() string {
	if f < Thumb || f > Pinky {
		return fmt.Sprintf("FingerType(%d)", int(f))
	}
	return fingerNames[f]
}

// Finger is one digit's tip in image space plus tip and proximal joint in
// world space. For the thumb PIPWorld holds the IP joint and is not used for
// bend detection.
type Finger struct {
	Type     FingerType
	Tip      detector.Point3D
	TipWorld detector.Point3D
	PIPWorld detector.Point3D
}

// Thresholds are the tunable constants of the classifier.
type Thresholds struct {
	// Margins per finger type; a larger margin classifies near-straight
	// fingers as bent more readily. The thumb entry is unused.
	Margins [NumFingers]float64

	// ThumbBentX is the lateral world-space offset below which the thumb
	// counts as tucked toward the palm.
	ThumbBentX float64

	// OKPinch is the maximum world-space thumb-to-index tip distance of an OK sign.
	OKPinch float64
}

// DefaultThresholds returns the tuned classifier constants.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Margins:    [NumFingers]float64{0, 0.015, 0.015, 0.01, 0.02},
		ThumbBentX: 0.06,
		OKPinch:    0.05,
	}
}

// IsBent reports whether f is curled.
func (t Thresholds) IsBent(f Finger) bool {
	if f.Type == Thumb {
		return math.Abs(f.TipWorld.X) < t.ThumbBentX
	}
	return f.TipWorld.Y > f.PIPWorld.Y-t.Margins[f.Type]
}

// IsBent reports whether f is curled using DefaultThresholds.
func (f Finger) IsBent() bool {
	return DefaultThresholds().IsBent(f)
}
