package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/theremin/internal/capture"
	"github.com/ayusman/theremin/internal/detector"
)

// Frame is one tick's input: the landmarks of the hands in view and, for live
// sources, the prepared image they were detected on.
type Frame struct {
	Image *gocv.Mat // nil when replaying; closed by the loop
	Hands []detector.HandLandmarks
	Time  time.Time
}

// Source delivers frames to the tick loop. Next returns io.EOF when the
// source is exhausted.
type Source interface {
	Next(ctx context.Context) (Frame, error)
	Close() error
}

// CameraSource reads frames from a camera and runs hand detection on them.
type CameraSource struct {
	camera   capture.Camera
	detector detector.Detector
	width    int
	height   int
	mirror   bool
	now      func() time.Time
}

// NewCameraSource opens camera and returns a Source over it.
func NewCameraSource(camera capture.Camera, d detector.Detector, width, height int, mirror bool) (*CameraSource, error) {
	if err := camera.Open(); err != nil {
		return nil, fmt.Errorf("open camera: %w", err)
	}
	return &CameraSource{
		camera:   camera,
		detector: d,
		width:    width,
		height:   height,
		mirror:   mirror,
		now:      time.Now,
	}, nil
}

// Next captures, prepares and analyses one frame.
func (s *CameraSource) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	img, err := s.camera.ReadFrame()
	if err != nil {
		return Frame{}, fmt.Errorf("capture: %w", err)
	}
	at := s.now()

	if err := capture.Prepare(img, s.width, s.height, s.mirror); err != nil {
		img.Close()
		return Frame{}, fmt.Errorf("prepare frame: %w", err)
	}

	hands, err := s.detector.Detect(img)
	if err != nil {
		img.Close()
		return Frame{}, fmt.Errorf("detect hands: %w", err)
	}

	return Frame{Image: img, Hands: hands, Time: at}, nil
}

// Close releases the camera and the detector.
func (s *CameraSource) Close() error {
	return errors.Join(s.camera.Close(), s.detector.Close())
}

// ReplaySource plays back a landmark recording. Frame times are the
// recording offsets added to the time playback started.
type ReplaySource struct {
	reader   *detector.ReplayReader
	closer   io.Closer
	start    time.Time
	realtime bool
}

// NewReplaySource reads records from r. When realtime is set Next waits until
// each record's offset has elapsed.
func NewReplaySource(r io.Reader, realtime bool) *ReplaySource {
	s := &ReplaySource{
		reader:   detector.NewReplayReader(r),
		start:    time.Now(),
		realtime: realtime,
	}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// OpenReplay opens a recording file.
func OpenReplay(path string, realtime bool) (*ReplaySource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open replay: %w", err)
	}
	return NewReplaySource(f, realtime), nil
}

// Next returns the next recorded frame.
func (s *ReplaySource) Next(ctx context.Context) (Frame, error) {
	rec, err := s.reader.Next()
	if err != nil {
		return Frame{}, err
	}

	at := s.start.Add(rec.Offset)
	if s.realtime {
		if wait := time.Until(at); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return Frame{}, ctx.Err()
			case <-timer.C:
			}
		}
	}

	return Frame{Hands: rec.Hands, Time: at}, nil
}

// Close closes the underlying file, if any.
func (s *ReplaySource) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
