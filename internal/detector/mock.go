package detector

import (
	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	hands []HandLandmarks
	err   error
	calls int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by Detect.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.hands = hands
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.err = err
}

// Calls returns how many times Detect was invoked.
func (m *MockDetector) Calls() int {
	return m.calls
}

// Detect returns the pre-configured hands or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.hands, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// Pose describes which digits of a synthetic hand are curled, thumb first.
type Pose [5]bool

// fingertip and joint world positions for the synthetic hands below.
// World y grows downward: a straight finger's tip sits well above its PIP.
var (
	worldFingerX   = [5]float64{0, 0.03, 0.01, -0.01, -0.03}
	worldPIPY      = -0.05
	worldStraightY = -0.09
	worldBentY     = -0.02
)

// PoseLandmarks returns a synthetic hand with the given handedness, image-space
// wrist position and curled digits. Straight thumbs point 0.09 sideways in
// world space; curled thumbs sit 0.02 from the palm axis.
func PoseLandmarks(h Handedness, wrist Point3D, pose Pose) HandLandmarks {
	lm := HandLandmarks{
		Handedness: h,
		Score:      0.95,
	}

	lm.Image[Wrist] = wrist
	lm.World[Wrist] = Point3D{X: 0, Y: 0.02, Z: 0}

	tips := [5]int{ThumbTip, IndexTip, MiddleTip, RingTip, PinkyTip}
	pips := [5]int{ThumbIP, IndexPIP, MiddlePIP, RingPIP, PinkyPIP}
	imageDX := [5]float64{0.08, 0.04, 0.0, -0.03, -0.06}

	for i := range tips {
		lm.Image[tips[i]] = Point3D{X: wrist.X + imageDX[i], Y: wrist.Y - 0.2, Z: 0}
		lm.Image[pips[i]] = Point3D{X: wrist.X + imageDX[i], Y: wrist.Y - 0.12, Z: 0}
	}

	// Thumb
	lm.World[ThumbIP] = Point3D{X: 0.06, Y: -0.03, Z: 0}
	if pose[0] {
		lm.World[ThumbTip] = Point3D{X: 0.02, Y: -0.03, Z: 0}
	} else {
		lm.World[ThumbTip] = Point3D{X: 0.09, Y: -0.04, Z: 0}
	}

	for i := 1; i < 5; i++ {
		x := worldFingerX[i]
		lm.World[pips[i]] = Point3D{X: x, Y: worldPIPY, Z: 0}
		if pose[i] {
			lm.World[tips[i]] = Point3D{X: x, Y: worldBentY, Z: 0}
		} else {
			lm.World[tips[i]] = Point3D{X: x, Y: worldStraightY, Z: 0}
		}
	}

	return lm
}

// OKSignLandmarks returns a hand whose thumb and index tips touch while the
// remaining three fingers are straight.
func OKSignLandmarks(h Handedness, wrist Point3D) HandLandmarks {
	lm := PoseLandmarks(h, wrist, Pose{})
	lm.World[ThumbTip] = Point3D{X: 0.04, Y: -0.05, Z: 0}
	lm.World[IndexTip] = Point3D{X: 0.03, Y: -0.06, Z: 0}
	return lm
}
