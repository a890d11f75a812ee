package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/theremin/internal/capture"
	"github.com/ayusman/theremin/internal/detector"
	"github.com/ayusman/theremin/internal/gesture"
	"github.com/ayusman/theremin/internal/midiout"
	"github.com/ayusman/theremin/internal/overlay"
	"github.com/ayusman/theremin/internal/store"
)

// Preview window keys.
const (
	KeyQuit            = 'q'
	KeyToggleLandmarks = 'd'
	KeyNextScale       = 's'
)

// Run drives the tick loop until ctx is cancelled, Quit is called, a quit key
// is pressed, or the source is exhausted. Whatever ends the run, the channel
// is silenced, the sink is closed and the session is saved before Run returns.
func (a *App) Run(ctx context.Context) (err error) {
	a.startSession()
	a.setRunning(true)

	defer func() {
		a.setRunning(false)
		if serr := a.shutdown(); serr != nil {
			err = errors.Join(err, serr)
		}
	}()

	a.logger.Info("performance started",
		zap.String("port", a.config.Port),
		zap.Int("channel", a.encoder.Channel()),
		zap.String("scale", a.performer.Scale().Name),
	)

	for {
		if a.stopRequested(ctx) {
			return nil
		}
		a.drainCommands()

		frame, err := a.config.Source.Next(ctx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF), errors.Is(err, capture.ErrNoMoreFrames):
				a.logger.Info("frame source exhausted")
				return nil
			case ctx.Err() != nil:
				return nil
			case errors.Is(err, capture.ErrCameraNotOpen):
				return err
			}
			a.logger.Warn("skipping frame", zap.Error(err))
			continue
		}

		if err := a.tick(frame); err != nil {
			return err
		}
	}
}

func (a *App) stopRequested(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-a.quit:
		return true
	default:
		return false
	}
}

func (a *App) drainCommands() {
	for {
		select {
		case c := <-a.commands:
			a.apply(c)
		default:
			return
		}
	}
}

func (a *App) apply(c command) {
	switch c.kind {
	case cmdToggleLandmarks:
		a.mu.Lock()
		a.landmarks = !a.landmarks
		a.status.Landmarks = a.landmarks
		a.mu.Unlock()
	case cmdNextScale:
		a.performer.NextScale()
		a.saveScale()
	case cmdSelectScale:
		if _, err := a.performer.SelectScale(c.scale); err != nil {
			a.logger.Warn("select scale", zap.Error(err))
			return
		}
		a.saveScale()
	}
	a.mu.Lock()
	a.status.Scale = a.performer.Scale().Name
	a.mu.Unlock()
}

// handleKey maps a preview window key press to a control.
func (a *App) handleKey(key int) {
	switch key {
	case KeyQuit:
		a.Quit()
	case KeyToggleLandmarks:
		a.apply(command{kind: cmdToggleLandmarks})
	case KeyNextScale:
		a.apply(command{kind: cmdNextScale})
	}
}

// tick maps one frame. Only strict-mode range violations are returned; other
// output failures are logged and the loop carries on.
func (a *App) tick(frame Frame) error {
	if frame.Image != nil {
		defer frame.Image.Close()
	}
	switch {
	case a.status.Frames == 0:
		// Sources stamp frames on their own clock, which may predate New.
		a.clock = frame.Time
		a.recorder.Rebase(frame.Time)
	case frame.Time.After(a.clock):
		a.clock = frame.Time
	}

	if a.config.LandmarkLog != nil {
		if err := a.config.LandmarkLog.Write(detector.Record{
			Offset: max(frame.Time.Sub(a.recorder.Start()), 0),
			Hands:  frame.Hands,
		}); err != nil {
			a.logger.Warn("write landmark log", zap.Error(err))
		}
	}

	snap := gesture.NewSnapshot(frame.Hands)
	var fatal error
	res, mapped, err := a.performer.Tick(snap, frame.Time)
	switch {
	case errors.Is(err, midiout.ErrValueOutOfRange):
		a.logger.Error("perform", zap.Error(err))
		fatal = fmt.Errorf("perform: %w", err)
	case err != nil:
		a.logger.Warn("perform", zap.Error(err))
	}

	a.mu.Lock()
	a.status.Frames++
	a.status.Hands = snap.Len()
	a.status.Scale = a.performer.Scale().Name
	a.status.UpdatedAt = frame.Time
	if mapped {
		a.status.Mapped++
		r := res
		a.status.Last = &r
	}
	status := a.status
	showLandmarks := a.landmarks
	observers := a.observers
	frameObs := a.frameObs
	a.mu.Unlock()

	if frame.Image != nil {
		info := overlay.Info{
			Hands:         snap.Hands(),
			Classifier:    a.classifier,
			ShowLandmarks: showLandmarks,
			Scale:         status.Scale,
		}
		if mapped {
			info.Result = &res
		}
		overlay.Draw(frame.Image, info)

		for _, fn := range frameObs {
			fn(frame.Image)
		}
		if a.config.Display != nil {
			if key := a.config.Display.Show(*frame.Image); key >= 0 {
				a.handleKey(key)
			}
		}
	}

	for _, fn := range observers {
		fn(status)
	}
	return fatal
}

func (a *App) setRunning(running bool) {
	a.mu.Lock()
	a.status.Running = running
	status := a.status
	observers := a.observers
	a.mu.Unlock()

	for _, fn := range observers {
		fn(status)
	}
}

func (a *App) startSession() {
	if a.config.Store == nil {
		return
	}
	sess := &store.Session{
		PortName:  a.config.Port,
		Channel:   a.encoder.Channel(),
		Scale:     a.performer.Scale().Name,
		StartedAt: a.recorder.Start(),
	}
	if err := a.config.Store.Sessions().Create(sess); err != nil {
		a.logger.Warn("create session", zap.Error(err))
		return
	}

	a.mu.Lock()
	a.session = sess
	a.status.Session = sess.ID
	a.mu.Unlock()
}

func (a *App) saveScale() {
	if a.config.Store == nil {
		return
	}
	if err := a.config.Store.Settings().Set(store.SettingScale, a.performer.Scale().Name); err != nil {
		a.logger.Warn("save scale", zap.Error(err))
	}
}

// shutdown silences the channel, closes every collaborator and stores the
// recorded session. It keeps going past individual failures.
func (a *App) shutdown() error {
	var errs []error

	if err := a.recorder.Send(a.encoder.AllNotesOff()); err != nil {
		errs = append(errs, fmt.Errorf("all notes off: %w", err))
	}
	if err := a.recorder.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close midi output: %w", err))
	}
	if err := a.config.Source.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close source: %w", err))
	}
	if a.config.Display != nil {
		if err := a.config.Display.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close display: %w", err))
		}
	}

	if err := a.saveSession(); err != nil {
		errs = append(errs, err)
	}

	a.logger.Info("performance stopped", zap.Int("events", len(a.recorder.Events())))
	return errors.Join(errs...)
}

func (a *App) saveSession() error {
	a.mu.RLock()
	sess := a.session
	a.mu.RUnlock()

	if a.config.Store == nil || sess == nil {
		return nil
	}

	recorded := a.recorder.Events()
	events := make([]store.Event, len(recorded))
	for i, ev := range recorded {
		events[i] = store.Event{Offset: ev.Offset, Data: ev.Message}
	}

	repo := a.config.Store.Sessions()
	if err := repo.AddEvents(sess.ID, events); err != nil {
		return fmt.Errorf("save session events: %w", err)
	}
	if err := repo.Finish(sess.ID, time.Now()); err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	a.logger.Info("session saved", zap.String("session", sess.ID), zap.Int("events", len(events)))
	return nil
}
