package capture

import (
	"errors"
	"testing"

	"gocv.io/x/gocv"
)

func TestNewCamera(t *testing.T) {
	cam := NewCamera(DefaultConfig())
	if cam == nil {
		t.Fatal("NewCamera returned nil")
	}
	if cam.IsOpen() {
		t.Error("camera should not be open initially")
	}
}

func TestCamera_ReadFrameNotOpen(t *testing.T) {
	cam := NewCamera(DefaultConfig())

	frame, err := cam.ReadFrame()
	if !errors.Is(err, ErrCameraNotOpen) {
		t.Errorf("ReadFrame() error = %v, want ErrCameraNotOpen", err)
	}
	if frame != nil {
		t.Error("ReadFrame() should return nil frame when camera not open")
	}
}

func TestCamera_CloseNotOpen(t *testing.T) {
	cam := NewCamera(DefaultConfig())
	if err := cam.Close(); err != nil {
		t.Errorf("Close() on unopened camera error = %v", err)
	}
}

func TestCamera_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping camera integration test in short mode")
	}

	cam := NewCamera(DefaultConfig())
	if err := cam.Open(); err != nil {
		t.Skipf("no camera available: %v", err)
	}
	defer cam.Close()

	frame, err := cam.ReadFrame()
	if err != nil {
		t.Skipf("camera returned no frame: %v", err)
	}
	defer frame.Close()

	if err := Prepare(frame, DefaultWidth, DefaultHeight, true); err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if frame.Cols() != DefaultWidth || frame.Rows() != DefaultHeight {
		t.Errorf("frame size = %dx%d, want %dx%d", frame.Cols(), frame.Rows(), DefaultWidth, DefaultHeight)
	}
}

func TestPrepare(t *testing.T) {
	t.Run("resizes", func(t *testing.T) {
		frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
		defer frame.Close()

		if err := Prepare(&frame, 320, 180, false); err != nil {
			t.Fatalf("Prepare() error = %v", err)
		}
		if frame.Cols() != 320 || frame.Rows() != 180 {
			t.Errorf("size = %dx%d, want 320x180", frame.Cols(), frame.Rows())
		}
	})

	t.Run("mirrors", func(t *testing.T) {
		frame := gocv.NewMatWithSize(2, 4, gocv.MatTypeCV8U)
		defer frame.Close()
		frame.SetUCharAt(0, 0, 200)

		if err := Prepare(&frame, 4, 2, true); err != nil {
			t.Fatalf("Prepare() error = %v", err)
		}
		if got := frame.GetUCharAt(0, 3); got != 200 {
			t.Errorf("mirrored pixel = %d, want 200", got)
		}
		if got := frame.GetUCharAt(0, 0); got != 0 {
			t.Errorf("original corner = %d, want 0", got)
		}
	})

	t.Run("empty", func(t *testing.T) {
		frame := gocv.NewMat()
		defer frame.Close()
		if err := Prepare(&frame, 640, 360, true); !errors.Is(err, ErrEmptyFrame) {
			t.Errorf("Prepare(empty) error = %v, want ErrEmptyFrame", err)
		}
	})
}
