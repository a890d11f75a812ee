// Package midiout encodes performer decisions as MIDI channel messages and
// owns the output port.
package midiout

import (
	"errors"
	"fmt"

	"gitlab.com/gomidi/midi/v2"
	"go.uber.org/zap"

	"github.com/ayusman/theremin/internal/logging"
)

// ErrValueOutOfRange is returned in strict mode when a field does not fit its
// MIDI data range.
var ErrValueOutOfRange = errors.New("midi value out of range")

// Controller numbers.
const (
	ControllerAllNotesOff = 123
)

// Pitch bend range.
const (
	PitchBendMin    = 0
	PitchBendCenter = 8192
	PitchBendMax    = 16383
)

// Encoder builds raw channel messages for a single channel. In strict mode an
// out-of-range field is an error; otherwise it is clamped and logged so the
// wire protocol never carries a stray status bit.
type Encoder struct {
	channel uint8 // 0-based
	strict  bool
	logger  *zap.Logger
}

// NewEncoder returns an Encoder for channel 1-16.
func NewEncoder(channel int, strict bool, logger *zap.Logger) (*Encoder, error) {
	if channel < 1 || channel > 16 {
		return nil, fmt.Errorf("%w: channel %d", ErrValueOutOfRange, channel)
	}
	return &Encoder{
		channel: uint8(channel - 1),
		strict:  strict,
		logger:  logging.OrNop(logger),
	}, nil
}

// Channel returns the 1-based channel number.
func (e *Encoder) Channel() int {
	return int(e.channel) + 1
}

// NoteOn returns [0x9n, note, velocity].
func (e *Encoder) NoteOn(note, velocity int) (midi.Message, error) {
	n, err := e.data("note", note)
	if err != nil {
		return nil, err
	}
	v, err := e.data("velocity", velocity)
	if err != nil {
		return nil, err
	}
	return midi.Message{0x90 | e.channel, n, v}, nil
}

// NoteOff returns [0x8n, note, velocity].
func (e *Encoder) NoteOff(note, velocity int) (midi.Message, error) {
	n, err := e.data("note", note)
	if err != nil {
		return nil, err
	}
	v, err := e.data("velocity", velocity)
	if err != nil {
		return nil, err
	}
	return midi.Message{0x80 | e.channel, n, v}, nil
}

// ChannelAftertouch returns [0xDn, value].
func (e *Encoder) ChannelAftertouch(value int) (midi.Message, error) {
	v, err := e.data("aftertouch", value)
	if err != nil {
		return nil, err
	}
	return midi.Message{0xD0 | e.channel, v}, nil
}

// ControlChange returns [0xBn, controller, value].
func (e *Encoder) ControlChange(controller, value int) (midi.Message, error) {
	c, err := e.data("controller", controller)
	if err != nil {
		return nil, err
	}
	v, err := e.data("control value", value)
	if err != nil {
		return nil, err
	}
	return midi.Message{0xB0 | e.channel, c, v}, nil
}

// AllNotesOff returns Control Change 123 with value 0.
func (e *Encoder) AllNotesOff() midi.Message {
	return midi.Message{0xB0 | e.channel, ControllerAllNotesOff, 0}
}

// PitchBend returns [0xEn, lsb, msb] for a 14-bit value, 8192 being centre.
func (e *Encoder) PitchBend(value int) (midi.Message, error) {
	if value < PitchBendMin || value > PitchBendMax {
		if e.strict {
			return nil, fmt.Errorf("%w: pitch bend %d", ErrValueOutOfRange, value)
		}
		e.logger.Warn("clamping pitch bend", zap.Int("value", value))
		value = min(max(value, PitchBendMin), PitchBendMax)
	}
	return midi.Message{0xE0 | e.channel, uint8(value & 0x7F), uint8((value >> 7) & 0x7F)}, nil
}

func (e *Encoder) data(field string, value int) (uint8, error) {
	if value >= 0 && value <= 127 {
		return uint8(value), nil
	}
	if e.strict {
		return 0, fmt.Errorf("%w: %s %d", ErrValueOutOfRange, field, value)
	}
	e.logger.Warn("clamping midi data byte", zap.String("field", field), zap.Int("value", value))
	return uint8(min(max(value, 0), 127)), nil
}

// DecodePitchBend returns the 14-bit value of a pitch bend message.
func DecodePitchBend(msg midi.Message) (int, error) {
	if len(msg) != 3 || msg[0]&0xF0 != 0xE0 {
		return 0, fmt.Errorf("not a pitch bend message: % X", []byte(msg))
	}
	return int(msg[1]&0x7F) | int(msg[2]&0x7F)<<7, nil
}
