package music

import (
	"math"
	"strconv"
)

// RootNote is the MIDI note the lowest wrist position maps to.
const RootNote = 60

// Clamp01 limits v to [0, 1].
func Clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// BaseNote maps a wrist height in image space (0 top, 1 bottom) to one of 11
// base notes from 70 down to 60. Ties round half away from zero.
func BaseNote(y float64) int {
	return int(math.Round((1-Clamp01(y))*10)) + RootNote
}

// degrees maps the index, middle, ring and pinky bend pattern to a 1-based
// scale degree.
var degrees = map[[4]bool]int{
	{false, false, false, false}: 1,
	{true, false, false, false}:  2,
	{true, true, false, false}:   3,
	{true, true, true, false}:    4,
	{true, true, true, true}:     5,
	{false, true, true, true}:    6,
	{false, false, true, true}:   7,
	{false, false, false, true}:  8,
	{true, false, false, true}:   9,
	{true, true, false, true}:    10,
	{true, false, true, true}:    11,
	{true, false, true, false}:   12,
}

// Degree returns the scale degree for a bend pattern ordered index, middle,
// ring, pinky. Patterns outside the table fall back to 1.
func Degree(pattern [4]bool) int {
	if d, ok := degrees[pattern]; ok {
		return d
	}
	return 1
}

// ScaleNote returns base transposed by the given 1-based degree of s,
// extending into higher octaves past the end of the scale.
func ScaleNote(base, degree int, s Scale) int {
	if degree < 1 || s.Len() == 0 {
		return base
	}
	octave := (degree - 1) / s.Len()
	idx := (degree - 1) % s.Len()
	return base + s.Degrees[idx] + 12*octave
}

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// NoteName formats a MIDI note number in scientific pitch notation, 60 = "C4".
func NoteName(note int) string {
	if note < 0 {
		return ""
	}
	return noteNames[note%12] + strconv.Itoa(note/12-1)
}
