package capture

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Prepare mirrors frame horizontally when mirror is set, so the preview reads
// like a mirror, and resizes it to width x height when it differs. frame is
// modified in place.
func Prepare(frame *gocv.Mat, width, height int, mirror bool) error {
	if frame == nil || frame.Empty() {
		return ErrEmptyFrame
	}

	if mirror {
		gocv.Flip(*frame, frame, 1)
	}

	if width <= 0 || height <= 0 || (frame.Cols() == width && frame.Rows() == height) {
		return nil
	}

	resized := gocv.NewMat()
	gocv.Resize(*frame, &resized, image.Pt(width, height), 0, 0, gocv.InterpolationLinear)
	if resized.Empty() {
		resized.Close()
		return fmt.Errorf("resize frame to %dx%d: %w", width, height, ErrEmptyFrame)
	}
	frame.Close()
	*frame = resized
	return nil
}
