// Package overlay draws the performance HUD onto preview frames.
package overlay

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/theremin/internal/detector"
	"github.com/ayusman/theremin/internal/gesture"
	"github.com/ayusman/theremin/internal/performer"
)

// Overlay colours.
var (
	// ColorStraight marks the tip of an extended finger.
	ColorStraight = color.RGBA{G: 255}
	// ColorBent marks the tip of a curled finger.
	ColorBent = color.RGBA{R: 255}
	// ColorWrist marks the wrist.
	ColorWrist = color.RGBA{B: 255}
	// ColorText is used for every label.
	ColorText = color.RGBA{G: 255}
)

// Info is everything drawn for one frame.
type Info struct {
	Hands         []gesture.Hand
	Classifier    gesture.Classifier
	ShowLandmarks bool
	Scale         string
	Result        *performer.Result // nil when the frame was not mapped
}

// Draw renders info onto frame in place.
func Draw(frame *gocv.Mat, info Info) {
	w, h := frame.Cols(), frame.Rows()

	if info.ShowLandmarks {
		for _, hand := range info.Hands {
			drawHand(frame, hand, info.Classifier, w, h)
		}
	}

	if info.Scale != "" {
		gocv.PutText(frame, ScaleLabel(info.Scale), image.Pt(50, h-20), gocv.FontHersheySimplex, 0.7, ColorText, 2)
	}

	if info.Result == nil {
		return
	}
	if info.Result.Sounding {
		gocv.PutText(frame, NoteLabel(info.Result.NoteName), image.Pt(50, 50), gocv.FontHersheySimplex, 1, ColorText, 2)
	}
	drawVolume(frame, info.Result.Volume, h)
}

func drawHand(frame *gocv.Mat, hand gesture.Hand, c gesture.Classifier, w, h int) {
	for _, f := range hand.Fingers {
		gocv.Circle(frame, ToPixel(f.Tip, w, h), 8, TipColor(c.Thresholds.IsBent(f)), -1)
	}

	wrist := ToPixel(hand.Wrist, w, h)
	gocv.Circle(frame, wrist, 8, ColorWrist, -1)

	if hand.Handedness == detector.Left {
		gocv.Line(frame, wrist, image.Pt(10, wrist.Y), ColorStraight, 1)
	}
	gocv.PutText(frame, WristLabel(hand.Wrist), image.Pt(wrist.X+10, wrist.Y+20), gocv.FontHersheySimplex, 0.5, ColorText, 1)
}

func drawVolume(frame *gocv.Mat, volume float64, h int) {
	y := VolumeY(volume, h)
	gocv.Circle(frame, image.Pt(20, y), 4, ColorText, -1)
	gocv.PutText(frame, VolumeLabel(volume), image.Pt(30, y-10), gocv.FontHersheySimplex, 0.6, ColorText, 2)
}

// TipColor is red for a curled finger and green for a straight one.
func TipColor(bent bool) color.RGBA {
	if bent {
		return ColorBent
	}
	return ColorStraight
}

// ToPixel converts a normalized image-space point to pixel coordinates.
func ToPixel(p detector.Point3D, w, h int) image.Point {
	return image.Pt(int(p.X*float64(w)), int(p.Y*float64(h)))
}

// VolumeY places the volume marker: loud at the top, silent at the bottom.
func VolumeY(volume float64, h int) int {
	return int((1 - volume) * float64(h))
}

// NoteLabel formats the sounding note line.
func NoteLabel(name string) string { return "Note: " + name }

// ScaleLabel formats the current scale line.
func ScaleLabel(name string) string { return "Scale: " + name }

// VolumeLabel formats a volume in [0,1] next to its marker.
func VolumeLabel(v float64) string { return fmt.Sprintf("%.2f", v) }

// WristLabel formats a wrist position in normalized image coordinates.
func WristLabel(p detector.Point3D) string { return fmt.Sprintf("(%.2f, %.2f)", p.X, p.Y) }
