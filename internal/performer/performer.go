// Package performer turns classified hands into MIDI, one frame at a time.
package performer

import (
	"fmt"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"go.uber.org/zap"

	"github.com/ayusman/theremin/internal/gesture"
	"github.com/ayusman/theremin/internal/logging"
	"github.com/ayusman/theremin/internal/midiout"
	"github.com/ayusman/theremin/internal/music"
)

// NoNote is the LastNote sentinel meaning nothing is sounding.
const NoNote = 0

// Config tunes the mapping.
type Config struct {
	Calibration     music.Calibration
	Classifier      gesture.Classifier
	PitchBendCenter int
	PitchBendScale  float64
	Logger          *zap.Logger
}

// DefaultConfig returns the tuned mapping constants.
func DefaultConfig() Config {
	return Config{
		Calibration:     music.NewCalibration(0.14, 0.07),
		Classifier:      gesture.NewClassifier(),
		PitchBendCenter: midiout.PitchBendCenter,
		PitchBendScale:  4096,
	}
}

// State is the mapper's memory between frames.
type State struct {
	LastNote   int // NoNote when silent
	LastVolume int // last volume byte sent while sounding
	PrevBendX  float64
	PrevTime   time.Time
	HasPrev    bool
	Scale      music.Scale
}

// Result describes what a frame did, for display.
type Result struct {
	Sounding   bool    `json:"sounding"`
	Note       int     `json:"note"`
	NoteName   string  `json:"note_name"`
	Scale      string  `json:"scale"`
	Volume     float64 `json:"volume"` // 0 silent, 1 loudest
	VolumeByte int     `json:"volume_byte"`
	OKSign     bool    `json:"ok_sign"`
	PitchBend  int     `json:"pitch_bend"`
	BendSent   bool    `json:"bend_sent"`
}

// Performer owns the Performance State. It is driven from a single goroutine.
type Performer struct {
	cfg      Config
	enc      *midiout.Encoder
	sink     midiout.Sink
	selector *music.Selector
	state    State
	logger   *zap.Logger
}

// New returns a Performer writing through enc to sink, starting on the first
// catalog scale.
func New(cfg Config, enc *midiout.Encoder, sink midiout.Sink) *Performer {
	return &Performer{
		cfg:      cfg,
		enc:      enc,
		sink:     sink,
		selector: music.NewSelector(),
		logger:   logging.OrNop(cfg.Logger),
	}
}

// State returns a copy of the current Performance State.
func (p *Performer) State() State {
	s := p.state
	s.Scale = p.selector.Current()
	return s
}

// Scale returns the selected scale.
func (p *Performer) Scale() music.Scale {
	return p.selector.Current()
}

// Scales lists the selectable scale names in cycle order.
func (p *Performer) Scales() []string {
	return p.selector.Names()
}

// NextScale cycles to the following catalog scale.
func (p *Performer) NextScale() music.Scale {
	s := p.selector.Next()
	p.logger.Info("scale changed", zap.String("scale", s.Name))
	return s
}

// SelectScale switches to the named scale.
func (p *Performer) SelectScale(name string) (music.Scale, error) {
	s, err := p.selector.Select(name)
	if err != nil {
		return s, err
	}
	p.logger.Info("scale changed", zap.String("scale", s.Name))
	return s, nil
}

// Tick maps one frame. Frames without both a left and a right hand are
// skipped: ok is false and nothing is sent or changed.
func (p *Performer) Tick(snap gesture.Snapshot, now time.Time) (res Result, ok bool, err error) {
	right, left, ok := snap.Pair()
	if !ok {
		return Result{}, false, nil
	}
	res, err = p.Perform(right, left, now)
	return res, true, err
}

// Perform maps a right (pitch and gate) and left (volume and bend) hand.
func (p *Performer) Perform(right, left gesture.Hand, now time.Time) (Result, error) {
	scale := p.selector.Current()
	pitchY := music.Clamp01(right.Wrist.Y)
	volume := p.cfg.Calibration.Volume(left.Wrist.Y)
	volumeByte := music.VolumeByte(volume)

	res := Result{
		Scale:      scale.Name,
		Volume:     1 - volume,
		VolumeByte: volumeByte,
	}

	if err := p.bend(left, now, &res); err != nil {
		return res, err
	}

	if !p.cfg.Classifier.IsBent(right, gesture.Thumb) {
		if err := p.send(p.enc.AllNotesOff()); err != nil {
			return res, err
		}
		p.state.LastNote = NoNote
		return res, nil
	}

	pattern := p.cfg.Classifier.Pattern(right)
	note := music.ScaleNote(music.BaseNote(pitchY), music.Degree(pattern), scale)

	res.Sounding = true
	res.Note = note
	res.NoteName = music.NoteName(note)

	if note != p.state.LastNote {
		on, err := p.enc.NoteOn(note, volumeByte)
		if err != nil {
			return res, fmt.Errorf("encode note on: %w", err)
		}
		if err := p.send(on); err != nil {
			return res, err
		}
		if p.state.LastNote != NoNote {
			off, err := p.enc.NoteOff(p.state.LastNote, 0)
			if err != nil {
				return res, fmt.Errorf("encode note off: %w", err)
			}
			if err := p.send(off); err != nil {
				return res, err
			}
		}
		p.state.LastNote = note
	}

	if volumeByte != p.state.LastVolume {
		at, err := p.enc.ChannelAftertouch(volumeByte)
		if err != nil {
			return res, fmt.Errorf("encode aftertouch: %w", err)
		}
		if err := p.send(at); err != nil {
			return res, err
		}
		p.state.LastVolume = volumeByte
	}

	return res, nil
}

// bend sends the pitch bend derived from the left thumb's horizontal speed.
// Movement only counts while the left hand holds the OK sign; otherwise both
// samples read as zero and the bend returns to centre. The previous sample is
// refreshed every frame either way.
func (p *Performer) bend(left gesture.Hand, now time.Time, res *Result) error {
	thumbX := left.Thumb().Tip.X
	ok := p.cfg.Classifier.IsOKHand(left)
	res.OKSign = ok

	prevX, prevTime, hasPrev := p.state.PrevBendX, p.state.PrevTime, p.state.HasPrev
	p.state.PrevBendX = thumbX
	p.state.PrevTime = now
	p.state.HasPrev = true

	if !hasPrev {
		return nil
	}

	var cur, prev float64
	if ok {
		cur, prev = thumbX, prevX
	}

	value := p.cfg.PitchBendCenter
	if dt := now.Sub(prevTime).Seconds(); dt > 0 {
		value = int(float64(p.cfg.PitchBendCenter) + (cur-prev)/dt*p.cfg.PitchBendScale)
	}
	value = min(max(value, midiout.PitchBendMin), midiout.PitchBendMax)

	msg, err := p.enc.PitchBend(value)
	if err != nil {
		return fmt.Errorf("encode pitch bend: %w", err)
	}
	if err := p.send(msg); err != nil {
		return err
	}
	res.PitchBend = value
	res.BendSent = true
	return nil
}

func (p *Performer) send(msg midi.Message) error {
	if err := p.sink.Send(msg); err != nil {
		return fmt.Errorf("send %s: %w", msg, err)
	}
	return nil
}
