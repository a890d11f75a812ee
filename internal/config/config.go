// Package config holds the runtime configuration for the theremin.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Calibration describes the usable vertical range of the camera for the
// volume hand. Wrist heights outside [VolumeMin, 1-VolumeMaxMargin] clamp.
type Calibration struct {
	VolumeMin       float64
	VolumeMaxMargin float64
}

// Config holds every tunable of a performance run.
type Config struct {
	// Capture
	CameraID    int
	FrameWidth  int
	FrameHeight int
	Mirror      bool
	ReplayPath  string // recorded landmark JSONL; replaces camera + detector when set

	// MIDI output
	Channel         int    // 1-16
	PortName        string // substring match; empty means first available output
	VirtualPortName string
	Strict          bool // reject out-of-range encoder values instead of clamping

	// Mapping
	ScaleName       string // empty restores the last used scale
	Calibration     Calibration
	PitchBendCenter int
	PitchBendScale  float64

	// Gesture thresholds, world space
	FingerMargins   [4]float64 // index, middle, ring, pinky
	ThumbBentX      float64
	OKPinchDistance float64

	// Presentation and control surfaces
	ShowWindow bool
	Tray       bool
	ServerAddr string // empty disables the HTTP API

	// Persistence
	DBPath string

	Debug bool
}

// Default returns a Config with the values the instrument was tuned with.
func Default() Config {
	return Config{
		CameraID:        0,
		FrameWidth:      640,
		FrameHeight:     360,
		Mirror:          true,
		Channel:         1,
		VirtualPortName: "My virtual output",
		Calibration: Calibration{
			VolumeMin:       0.14,
			VolumeMaxMargin: 0.07,
		},
		PitchBendCenter: 8192,
		PitchBendScale:  4096,
		FingerMargins:   [4]float64{0.015, 0.015, 0.01, 0.02},
		ThumbBentX:      0.06,
		OKPinchDistance: 0.05,
		ShowWindow:      true,
		DBPath:          DefaultDBPath(),
	}
}

// DefaultDBPath returns ~/.theremin/theremin.db, or a relative path when the
// home directory cannot be resolved.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "theremin.db"
	}
	return filepath.Join(home, ".theremin", "theremin.db")
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.Channel < 1 || c.Channel > 16 {
		return fmt.Errorf("channel %d out of range 1-16", c.Channel)
	}
	if c.FrameWidth <= 0 || c.FrameHeight <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", c.FrameWidth, c.FrameHeight)
	}
	if c.VirtualPortName == "" {
		return errors.New("virtual port name must not be empty")
	}
	lo := c.Calibration.VolumeMin
	hi := 1 - c.Calibration.VolumeMaxMargin
	if lo < 0 || hi > 1 || lo >= hi {
		return fmt.Errorf("invalid volume calibration [%.2f, %.2f]", lo, hi)
	}
	if c.PitchBendCenter < 0 || c.PitchBendCenter > 16383 {
		return fmt.Errorf("pitch bend center %d out of range 0-16383", c.PitchBendCenter)
	}
	for i, m := range c.FingerMargins {
		if m < 0 {
			return fmt.Errorf("finger margin %d is negative", i)
		}
	}
	if c.ThumbBentX <= 0 || c.OKPinchDistance <= 0 {
		return errors.New("thumb and pinch thresholds must be positive")
	}
	return nil
}
