// Package detector provides the hand landmark source the instrument reads each frame.
package detector

import (
	"fmt"
	"math"
	"strings"
)

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Handedness labels a detected hand as the performer's left or right hand.
type Handedness int

const (
	Left Handedness = iota
	Right
)

// String returns "Left" or "Right".
func (h Handedness) String() string {
	switch h {
	case Left:
		return "Left"
	case Right:
		return "Right"
	default:
		return fmt.Sprintf("Handedness(%d)", int(h))
	}
}

// ParseHandedness parses the tracker's label, case-insensitively.
func ParseHandedness(s string) (Handedness, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left":
		return Left, nil
	case "right":
		return Right, nil
	default:
		return 0, fmt.Errorf("unknown handedness %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (h Handedness) MarshalText() ([]byte, error) {
	if h != Left && h != Right {
		return nil, fmt.Errorf("invalid handedness %d", int(h))
	}
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Handedness) UnmarshalText(b []byte) error {
	v, err := ParseHandedness(string(b))
	if err != nil {
		return err
	}
	*h = v
	return nil
}

// Point3D represents a 3D point in space with x, y, z coordinates.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Distance returns the Euclidean distance between two points.
func Distance(a, b Point3D) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	dz := a.Z - b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// HandLandmarks is one detected hand in two parallel coordinate spaces.
// Image points are normalized to the frame (0..1); World points are metric,
// camera-relative and centred on the hand.
type HandLandmarks struct {
	Handedness Handedness            `json:"handedness"`
	Score      float64               `json:"score"`
	Image      [NumLandmarks]Point3D `json:"image"`
	World      [NumLandmarks]Point3D `json:"world"`
}
