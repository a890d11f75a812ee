package detector

import (
	"errors"
	"fmt"
	"strconv"

	"gocv.io/x/gocv"
)

// Detector extracts hand landmarks from a frame. A frame with no visible
// hands yields an empty slice, not an error.
type Detector interface {
	Detect(frame *gocv.Mat) ([]HandLandmarks, error)
	Close() error
}

// Config tunes the landmark service.
type Config struct {
	// MaxHands caps detections per frame. The instrument needs both hands.
	MaxHands int

	// ModelComplexity selects the landmark model (0 lite, 1 full).
	ModelComplexity int

	MinConfidence   float64
	MinTrackingConf float64

	// Script and Python override the service location. Empty means search
	// the working directory, the executable's directory and ~/.theremin.
	Script string
	Python string
}

// DefaultConfig tracks two hands with the lite model.
func DefaultConfig() Config {
	return Config{
		MaxHands:        2,
		ModelComplexity: 0,
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
	}
}

// Validate rejects settings the landmark service would refuse.
func (c Config) Validate() error {
	if c.MaxHands < 2 {
		return fmt.Errorf("max hands %d: both hands are needed", c.MaxHands)
	}
	if c.ModelComplexity != 0 && c.ModelComplexity != 1 {
		return fmt.Errorf("model complexity %d: want 0 or 1", c.ModelComplexity)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return errors.New("min detection confidence must be within [0,1]")
	}
	if c.MinTrackingConf < 0 || c.MinTrackingConf > 1 {
		return errors.New("min tracking confidence must be within [0,1]")
	}
	return nil
}

// args renders the settings as landmark service flags.
func (c Config) args() []string {
	return []string{
		"--max-hands", strconv.Itoa(c.MaxHands),
		"--model-complexity", strconv.Itoa(c.ModelComplexity),
		"--min-detection-confidence", strconv.FormatFloat(c.MinConfidence, 'f', 2, 64),
		"--min-tracking-confidence", strconv.FormatFloat(c.MinTrackingConf, 'f', 2, 64),
	}
}
