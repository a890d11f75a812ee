// Package music holds the pure pitch and volume mapping used by the performer.
package music

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownScale is returned when a scale name is not in the catalog.
var ErrUnknownScale = errors.New("unknown scale")

// Scale is a named interval pattern: semitone offsets from the root,
// strictly increasing, starting at 0.
type Scale struct {
	Name    string `json:"name"`
	Degrees []int  `json:"degrees"`
}

// Len returns the number of degrees per octave.
func (s Scale) Len() int {
	return len(s.Degrees)
}

// Validate checks the interval invariants.
func (s Scale) Validate() error {
	if len(s.Degrees) == 0 {
		return fmt.Errorf("scale %q: no degrees", s.Name)
	}
	if s.Degrees[0] != 0 {
		return fmt.Errorf("scale %q: first degree must be 0", s.Name)
	}
	for i := 1; i < len(s.Degrees); i++ {
		if s.Degrees[i] <= s.Degrees[i-1] {
			return fmt.Errorf("scale %q: degrees not strictly increasing at %d", s.Name, i)
		}
	}
	return nil
}

var catalog = []Scale{
	{Name: "Major", Degrees: []int{0, 2, 4, 5, 7, 9, 11}},
	{Name: "Chromatic", Degrees: []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}},
	{Name: "Natural minor", Degrees: []int{0, 2, 3, 5, 7, 8, 10}},
	{Name: "Harmonic minor", Degrees: []int{0, 2, 3, 5, 7, 8, 11}},
	{Name: "Pentatonic", Degrees: []int{0, 2, 4, 7, 9}},
	{Name: "Major blues", Degrees: []int{0, 2, 3, 4, 7, 9}},
	{Name: "Minor blues", Degrees: []int{0, 3, 5, 6, 7, 10}},
}

// Catalog returns a copy of the fixed, ordered scale catalog.
func Catalog() []Scale {
	out := make([]Scale, len(catalog))
	for i, s := range catalog {
		out[i] = Scale{Name: s.Name, Degrees: append([]int(nil), s.Degrees...)}
	}
	return out
}

// Lookup finds a catalog scale by name, ignoring case.
func Lookup(name string) (Scale, error) {
	for _, s := range catalog {
		if strings.EqualFold(s.Name, strings.TrimSpace(name)) {
			return s, nil
		}
	}
	return Scale{}, fmt.Errorf("%w: %q", ErrUnknownScale, name)
}

// Selector tracks the current position in a scale catalog.
// It is not safe for concurrent use.
type Selector struct {
	scales []Scale
	pos    int
}

// NewSelector returns a Selector over the catalog positioned at its first scale.
func NewSelector() *Selector {
	return &Selector{scales: catalog}
}

// Current returns the selected scale.
func (s *Selector) Current() Scale {
	return s.scales[s.pos]
}

// Next advances to the following scale, wrapping at the end, and returns it.
func (s *Selector) Next() Scale {
	s.pos = (s.pos + 1) % len(s.scales)
	return s.scales[s.pos]
}

// Select moves to the scale with the given name.
func (s *Selector) Select(name string) (Scale, error) {
	for i, sc := range s.scales {
		if strings.EqualFold(sc.Name, strings.TrimSpace(name)) {
			s.pos = i
			return sc, nil
		}
	}
	return s.Current(), fmt.Errorf("%w: %q", ErrUnknownScale, name)
}

// Names lists the catalog names in order.
func (s *Selector) Names() []string {
	names := make([]string, len(s.scales))
	for i, sc := range s.scales {
		names[i] = sc.Name
	}
	return names
}
