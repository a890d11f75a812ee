package midiout

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
	"go.uber.org/zap"

	"github.com/ayusman/theremin/internal/logging"
)

// ErrPortClosed is returned when sending on a closed port.
var ErrPortClosed = errors.New("midi port closed")

// Sink is where encoded messages go.
type Sink interface {
	Send(msg midi.Message) error
	Close() error
}

// PortConfig selects the output port.
type PortConfig struct {
	// Name picks the first hardware output whose name contains it; empty
	// means the first hardware output.
	Name string

	// VirtualName is the virtual port created when no hardware output matches.
	VirtualName string

	// Channel (1-16) receives All Notes Off when the port is closed.
	Channel int

	Logger *zap.Logger
}

// Port is an open MIDI output. Close always sends All Notes Off first.
type Port struct {
	mu      sync.Mutex
	drv     *rtmididrv.Driver
	out     drivers.Out
	send    func(midi.Message) error
	name    string
	virtual bool
	allOff  midi.Message
	logger  *zap.Logger
	closed  bool
}

// OpenPort opens the configured hardware output, or a virtual one when none
// is available.
func OpenPort(cfg PortConfig) (*Port, error) {
	logger := logging.OrNop(cfg.Logger)

	enc, err := NewEncoder(cfg.Channel, true, logger)
	if err != nil {
		return nil, err
	}

	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("rtmididrv: %w", err)
	}

	p := &Port{
		drv:    drv,
		allOff: enc.AllNotesOff(),
		logger: logger,
	}

	outs, err := drv.Outs()
	if err != nil {
		logger.Warn("list midi outputs", zap.Error(err))
	}
	names := make([]string, len(outs))
	for i, o := range outs {
		names[i] = o.String()
	}

	if i := SelectOutput(names, cfg.Name); i >= 0 {
		if err := outs[i].Open(); err != nil {
			logger.Warn("open midi output", zap.String("port", names[i]), zap.Error(err))
		} else {
			p.out = outs[i]
			p.name = names[i]
		}
	}

	if p.out == nil {
		out, err := drv.OpenVirtualOut(cfg.VirtualName)
		if err != nil {
			drv.Close()
			return nil, fmt.Errorf("open virtual output %q: %w", cfg.VirtualName, err)
		}
		p.out = out
		p.name = cfg.VirtualName
		p.virtual = true
		logger.Info("no hardware midi output, using virtual port", zap.String("port", cfg.VirtualName))
	} else {
		logger.Info("opened midi output", zap.String("port", p.name))
	}

	send, err := midi.SendTo(p.out)
	if err != nil {
		p.out.Close()
		drv.Close()
		return nil, fmt.Errorf("create sender for %q: %w", p.name, err)
	}
	p.send = send

	return p, nil
}

// SelectOutput returns the index of the output to use: the first whose name
// contains want (case-insensitive), or the first output when want is empty.
// It returns -1 when nothing matches.
func SelectOutput(names []string, want string) int {
	if len(names) == 0 {
		return -1
	}
	if want == "" {
		return 0
	}
	want = strings.ToLower(want)
	for i, n := range names {
		if strings.Contains(strings.ToLower(n), want) {
			return i
		}
	}
	return -1
}

// Name returns the opened port's name.
func (p *Port) Name() string {
	return p.name
}

// Virtual reports whether the port was created by this process.
func (p *Port) Virtual() bool {
	return p.virtual
}

// Send writes msg immediately.
func (p *Port) Send(msg midi.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPortClosed
	}
	if err := p.send(msg); err != nil {
		return fmt.Errorf("send to %q: %w", p.name, err)
	}
	return nil
}

// Close silences the channel and releases the port and driver. It is safe to
// call more than once.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	var errs []error
	if err := p.send(p.allOff); err != nil {
		errs = append(errs, fmt.Errorf("send all notes off: %w", err))
	}
	if err := p.out.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close output: %w", err))
	}
	if err := p.drv.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close driver: %w", err))
	}
	return errors.Join(errs...)
}

// ListOutputs returns the names of the available hardware outputs.
func ListOutputs() ([]string, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("rtmididrv: %w", err)
	}
	defer drv.Close()

	outs, err := drv.Outs()
	if err != nil {
		return nil, fmt.Errorf("list midi outputs: %w", err)
	}
	names := make([]string, len(outs))
	for i, o := range outs {
		names[i] = o.String()
	}
	return names, nil
}
