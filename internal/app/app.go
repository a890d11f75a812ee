// Package app wires the frame source, gesture classifier, performer and MIDI
// output into the single-threaded tick loop.
package app

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/theremin/internal/config"
	"github.com/ayusman/theremin/internal/detector"
	"github.com/ayusman/theremin/internal/gesture"
	"github.com/ayusman/theremin/internal/logging"
	"github.com/ayusman/theremin/internal/midiout"
	"github.com/ayusman/theremin/internal/music"
	"github.com/ayusman/theremin/internal/performer"
	"github.com/ayusman/theremin/internal/store"
)

// Display shows preview frames and reports key presses (-1 for none).
type Display interface {
	Show(frame gocv.Mat) int
	Close() error
}

// Config holds the collaborators and settings of a performance run.
type Config struct {
	Settings config.Config

	Source Source      // required
	Sink   midiout.Sink // required; closed on shutdown
	Port   string       // name of the output behind Sink, for display

	Store       *store.Store            // optional; sessions and last scale
	Display     Display                 // optional preview window
	LandmarkLog *detector.ReplayWriter  // optional; every frame's landmarks
	Logger      *zap.Logger
}

// Status is a point-in-time view of the running instrument.
type Status struct {
	Running   bool              `json:"running"`
	Port      string            `json:"port"`
	Channel   int               `json:"channel"`
	Scale     string            `json:"scale"`
	Landmarks bool              `json:"landmarks"`
	Session   string            `json:"session,omitempty"`
	Frames    uint64            `json:"frames"`
	Mapped    uint64            `json:"mapped"`
	Hands     int               `json:"hands"`
	Last      *performer.Result `json:"last,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
}

type commandKind int

const (
	cmdToggleLandmarks commandKind = iota
	cmdNextScale
	cmdSelectScale
)

type command struct {
	kind  commandKind
	scale string
}

// App is a configured instrument. Run drives it; the control methods may be
// called from any goroutine and take effect on the next tick.
type App struct {
	config     Config
	logger     *zap.Logger
	classifier gesture.Classifier
	encoder    *midiout.Encoder
	recorder   *midiout.Recorder
	performer  *performer.Performer
	commands   chan command
	quit       chan struct{}
	quitOnce   sync.Once

	mu        sync.RWMutex
	status    Status
	observers []func(Status)
	frameObs  []func(*gocv.Mat)
	session   *store.Session
	landmarks bool

	clock time.Time // time of the frame being processed; loop goroutine only
}

func (a *App) now() time.Time {
	return a.clock
}

// New validates the configuration and builds the performer.
func New(cfg Config) (*App, error) {
	if cfg.Source == nil {
		return nil, errors.New("app: no frame source")
	}
	if cfg.Sink == nil {
		return nil, errors.New("app: no midi sink")
	}
	if err := cfg.Settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.OrNop(cfg.Logger)
	s := cfg.Settings

	enc, err := midiout.NewEncoder(s.Channel, s.Strict, logger)
	if err != nil {
		return nil, err
	}

	classifier := gesture.Classifier{Thresholds: gesture.Thresholds{
		Margins:    [gesture.NumFingers]float64{0, s.FingerMargins[0], s.FingerMargins[1], s.FingerMargins[2], s.FingerMargins[3]},
		ThumbBentX: s.ThumbBentX,
		OKPinch:    s.OKPinchDistance,
	}}

	a := &App{
		config:     cfg,
		logger:     logger,
		classifier: classifier,
		encoder:    enc,
		commands:   make(chan command, 16),
		quit:       make(chan struct{}),
		landmarks:  true,
		clock:      time.Now(),
	}

	// Recorded offsets follow frame time so replayed runs keep their timing.
	a.recorder = midiout.NewRecorder(cfg.Sink, a.now)
	a.performer = performer.New(performer.Config{
		Calibration:     music.NewCalibration(s.Calibration.VolumeMin, s.Calibration.VolumeMaxMargin),
		Classifier:      classifier,
		PitchBendCenter: s.PitchBendCenter,
		PitchBendScale:  s.PitchBendScale,
		Logger:          logger,
	}, enc, a.recorder)

	a.restoreScale()

	a.status = Status{
		Port:      cfg.Port,
		Channel:   s.Channel,
		Scale:     a.performer.Scale().Name,
		Landmarks: a.landmarks,
	}

	return a, nil
}

// restoreScale selects the configured scale, or the one saved by the last run
// when none was given.
func (a *App) restoreScale() {
	name := a.config.Settings.ScaleName
	if a.config.Store != nil && name == "" {
		saved, err := a.config.Store.Settings().GetOr(store.SettingScale, "")
		if err != nil {
			a.logger.Warn("read saved scale", zap.Error(err))
		}
		name = saved
	}
	if name == "" {
		return
	}
	if _, err := a.performer.SelectScale(name); err != nil {
		a.logger.Warn("ignoring unknown scale", zap.String("scale", name))
	}
}

// OnStatus registers fn to receive the status after every tick. It runs on
// the loop goroutine and must not block. Register before Run.
func (a *App) OnStatus(fn func(Status)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.observers = append(a.observers, fn)
}

// OnFrame registers fn to receive every drawn preview frame. The frame is
// only valid for the duration of the call. Register before Run.
func (a *App) OnFrame(fn func(*gocv.Mat)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.frameObs = append(a.frameObs, fn)
}

// Status returns the latest status.
func (a *App) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	st := a.status
	if st.Last != nil {
		last := *st.Last
		st.Last = &last
	}
	return st
}

// Scales lists the selectable scales in cycle order.
func (a *App) Scales() []music.Scale {
	return music.Catalog()
}

// ToggleLandmarks flips the landmark overlay.
func (a *App) ToggleLandmarks() {
	a.enqueue(command{kind: cmdToggleLandmarks})
}

// NextScale cycles to the next scale.
func (a *App) NextScale() {
	a.enqueue(command{kind: cmdNextScale})
}

// SelectScale switches to the named scale.
func (a *App) SelectScale(name string) error {
	if _, err := music.Lookup(name); err != nil {
		return err
	}
	a.enqueue(command{kind: cmdSelectScale, scale: name})
	return nil
}

// Quit stops Run after the current tick. It is safe to call more than once.
func (a *App) Quit() {
	a.quitOnce.Do(func() { close(a.quit) })
}

func (a *App) enqueue(c command) {
	select {
	case a.commands <- c:
	default:
		a.logger.Warn("control queue full, dropping command", zap.Int("command", int(c.kind)))
	}
}
