package gesture

import "github.com/ayusman/theremin/internal/detector"

// Snapshot is the classified content of one frame: at most one hand per
// handedness.
type Snapshot struct {
	hands map[detector.Handedness]Hand
}

// NewSnapshot builds a Snapshot from raw detections. When the tracker reports
// two hands with the same label the higher-scoring one wins.
func NewSnapshot(detections []detector.HandLandmarks) Snapshot {
	s := Snapshot{hands: make(map[detector.Handedness]Hand, 2)}
	for _, lm := range detections {
		if prev, ok := s.hands[lm.Handedness]; ok && prev.Score >= lm.Score {
			continue
		}
		s.hands[lm.Handedness] = FromLandmarks(lm)
	}
	return s
}

// Get returns the hand with the given handedness, if present.
func (s Snapshot) Get(h detector.Handedness) (Hand, bool) {
	hand, ok := s.hands[h]
	return hand, ok
}

// Len returns the number of hands in the snapshot.
func (s Snapshot) Len() int {
	return len(s.hands)
}

// Hands returns the hands ordered Left then Right.
func (s Snapshot) Hands() []Hand {
	out := make([]Hand, 0, len(s.hands))
	for _, h := range []detector.Handedness{detector.Left, detector.Right} {
		if hand, ok := s.hands[h]; ok {
			out = append(out, hand)
		}
	}
	return out
}

// Pair returns the right (pitch) and left (volume) hands when both are present.
func (s Snapshot) Pair() (right, left Hand, ok bool) {
	right, rok := s.Get(detector.Right)
	left, lok := s.Get(detector.Left)
	return right, left, rok && lok
}
