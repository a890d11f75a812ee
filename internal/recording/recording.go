// Package recording writes recorded sessions as Standard MIDI Files.
package recording

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/ayusman/theremin/internal/store"
)

// Defaults for exported files.
const (
	DefaultTicksPerQuarter = 960
	DefaultBPM             = 120.0
)

// Options control the time base of an exported file.
type Options struct {
	TicksPerQuarter uint16
	BPM             float64
	TrackName       string
}

// DefaultOptions returns 960 ticks per quarter at 120 BPM.
func DefaultOptions() Options {
	return Options{
		TicksPerQuarter: DefaultTicksPerQuarter,
		BPM:             DefaultBPM,
	}
}

func (o Options) withDefaults() Options {
	if o.TicksPerQuarter == 0 {
		o.TicksPerQuarter = DefaultTicksPerQuarter
	}
	if o.BPM <= 0 {
		o.BPM = DefaultBPM
	}
	return o
}

// Ticks converts a wall-clock offset to MIDI ticks.
func (o Options) Ticks(offset time.Duration) uint32 {
	o = o.withDefaults()
	ticks := offset.Seconds() * o.BPM / 60 * float64(o.TicksPerQuarter)
	if ticks <= 0 {
		return 0
	}
	return uint32(math.Round(ticks))
}

// Offset converts MIDI ticks back to a wall-clock offset.
func (o Options) Offset(ticks uint64) time.Duration {
	o = o.withDefaults()
	seconds := float64(ticks) * 60 / (o.BPM * float64(o.TicksPerQuarter))
	return time.Duration(math.Round(seconds * float64(time.Second)))
}

// Encode builds a single-track SMF from events, which must be in offset order.
func Encode(events []store.Event, opts Options) ([]byte, error) {
	opts = opts.withDefaults()

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(opts.TicksPerQuarter)

	var track smf.Track

	if opts.TrackName != "" {
		name := []byte(opts.TrackName)
		if len(name) > 127 {
			name = name[:127]
		}
		track.Add(0, smf.Message(append([]byte{0xFF, 0x03, byte(len(name))}, name...)))
	}

	microsecondsPerBeat := uint32(60000000.0 / opts.BPM)
	track.Add(0, smf.Message([]byte{
		0xFF, 0x51, 0x03,
		byte(microsecondsPerBeat >> 16),
		byte(microsecondsPerBeat >> 8),
		byte(microsecondsPerBeat),
	}))

	var last uint32
	for i, ev := range events {
		if len(ev.Data) == 0 || ev.Data[0] < 0x80 || ev.Data[0] >= 0xF0 {
			return nil, fmt.Errorf("event %d: not a channel message: % X", i, ev.Data)
		}
		tick := opts.Ticks(ev.Offset)
		if tick < last {
			return nil, fmt.Errorf("event %d: offset %v goes backwards", i, ev.Offset)
		}
		track.Add(tick-last, ev.Data)
		last = tick
	}

	track.Close(0)

	if err := s.Add(track); err != nil {
		return nil, fmt.Errorf("failed to add track: %w", err)
	}

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write MIDI: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile encodes events to path.
func WriteFile(path string, events []store.Event, opts Options) error {
	data, err := Encode(events, opts)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Decode reads the channel messages of every track back as events, using
// the file's resolution and first tempo.
func Decode(r io.Reader) ([]store.Event, error) {
	s, err := smf.ReadFrom(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse MIDI: %w", err)
	}

	mt, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, errors.New("unsupported SMF time format")
	}
	opts := Options{TicksPerQuarter: mt.Resolution(), BPM: DefaultBPM}

	var events []store.Event
	for _, track := range s.Tracks {
		var tick uint64
		for _, ev := range track {
			tick += uint64(ev.Delta)
			msg := ev.Message

			if len(msg) >= 6 && msg[0] == 0xFF && msg[1] == 0x51 && msg[2] == 0x03 {
				if us := uint32(msg[3])<<16 | uint32(msg[4])<<8 | uint32(msg[5]); us > 0 {
					opts.BPM = 60000000.0 / float64(us)
				}
				continue
			}
			if len(msg) == 0 || msg[0] < 0x80 || msg[0] >= 0xF0 {
				continue
			}
			events = append(events, store.Event{
				Offset: opts.Offset(tick),
				Data:   append([]byte(nil), msg...),
			})
		}
	}
	return events, nil
}
