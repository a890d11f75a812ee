package gesture

import "github.com/ayusman/theremin/internal/detector"

// Hand is a classified view over one detected hand. Fingers are ordered
// thumb to pinky.
type Hand struct {
	Handedness detector.Handedness
	Score      float64
	Wrist      detector.Point3D
	Fingers    [NumFingers]Finger
}

var (
	tipIndex = [NumFingers]int{detector.ThumbTip, detector.IndexTip, detector.MiddleTip, detector.RingTip, detector.PinkyTip}
	pipIndex = [NumFingers]int{detector.ThumbIP, detector.IndexPIP, detector.MiddlePIP, detector.RingPIP, detector.PinkyPIP}
)

// FromLandmarks builds a Hand from the tracker's raw landmarks.
func FromLandmarks(lm detector.HandLandmarks) Hand {
	h := Hand{
		Handedness: lm.Handedness,
		Score:      lm.Score,
		Wrist:      lm.Image[detector.Wrist],
	}
	for i := 0; i < NumFingers; i++ {
		h.Fingers[i] = Finger{
			Type:     FingerType(i),
			Tip:      lm.Image[tipIndex[i]],
			TipWorld: lm.World[tipIndex[i]],
			PIPWorld: lm.World[pipIndex[i]],
		}
	}
	return h
}

// Finger returns the digit of type t.
func (h Hand) Finger(t FingerType) Finger {
	return h.Fingers[t]
}

// Thumb returns the thumb.
func (h Hand) Thumb() Finger {
	return h.Fingers[Thumb]
}

// BendPattern is the curled state of index, middle, ring and pinky.
// The thumb is deliberately not part of it.
type BendPattern [4]bool

// Classifier evaluates finger and hand predicates against a set of thresholds.
type Classifier struct {
	Thresholds Thresholds
}

// NewClassifier returns a Classifier using DefaultThresholds.
func NewClassifier() Classifier {
	return Classifier{Thresholds: DefaultThresholds()}
}

// IsBent reports whether the given finger of h is curled.
func (c Classifier) IsBent(h Hand, t FingerType) bool {
	return c.Thresholds.IsBent(h.Fingers[t])
}

// Pattern returns the bend state of the four non-thumb fingers.
func (c Classifier) Pattern(h Hand) BendPattern {
	return BendPattern{
		c.IsBent(h, Index),
		c.IsBent(h, Middle),
		c.IsBent(h, Ring),
		c.IsBent(h, Pinky),
	}
}

// IsOKHand reports the OK sign: thumb and index tips pinched together in
// world space while middle, ring and pinky stay straight.
func (c Classifier) IsOKHand(h Hand) bool {
	if c.IsBent(h, Middle) || c.IsBent(h, Ring) || c.IsBent(h, Pinky) {
		return false
	}
	pinch := detector.Distance(h.Fingers[Thumb].TipWorld, h.Fingers[Index].TipWorld)
	return pinch <= c.Thresholds.OKPinch
}
