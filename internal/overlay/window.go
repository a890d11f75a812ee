package overlay

import (
	"image"

	"gocv.io/x/gocv"
)

// Window is the on-screen preview.
type Window struct {
	win     *gocv.Window
	display image.Point
	scaled  gocv.Mat
}

// NewWindow opens a preview window. Frames are upscaled to width x height for
// display; zero keeps their size.
func NewWindow(title string, width, height int) *Window {
	return &Window{
		win:     gocv.NewWindow(title),
		display: image.Pt(width, height),
		scaled:  gocv.NewMat(),
	}
}

// Show displays frame and polls the keyboard for up to one millisecond. It
// returns the pressed key, or -1.
func (w *Window) Show(frame gocv.Mat) int {
	if w.display.X > 0 && w.display.Y > 0 {
		gocv.Resize(frame, &w.scaled, w.display, 0, 0, gocv.InterpolationLinear)
		w.win.IMShow(w.scaled)
	} else {
		w.win.IMShow(frame)
	}
	return w.win.WaitKey(1)
}

// Close destroys the window.
func (w *Window) Close() error {
	w.scaled.Close()
	return w.win.Close()
}
