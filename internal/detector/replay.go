package detector

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Record is one captured frame's worth of landmarks with its offset from the
// start of the recording.
type Record struct {
	Offset time.Duration
	Hands  []HandLandmarks
}

type jsonRecord struct {
	OffsetMs int64      `json:"t_ms"`
	Hands    []jsonHand `json:"hands"`
}

// ReplayReader reads landmark records from a JSON-lines stream, one frame per line.
type ReplayReader struct {
	scanner *bufio.Scanner
	line    int
}

// NewReplayReader wraps r.
func NewReplayReader(r io.Reader) *ReplayReader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &ReplayReader{scanner: s}
}

// Next returns the next record, or io.EOF at the end of the stream.
// Blank lines are skipped.
func (r *ReplayReader) Next() (Record, error) {
	for r.scanner.Scan() {
		r.line++
		raw := r.scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var jr jsonRecord
		if err := json.Unmarshal(raw, &jr); err != nil {
			return Record{}, fmt.Errorf("parse replay line %d: %w", r.line, err)
		}

		rec := Record{Offset: time.Duration(jr.OffsetMs) * time.Millisecond}
		for _, h := range jr.Hands {
			if lm, ok := h.toHandLandmarks(); ok {
				rec.Hands = append(rec.Hands, lm)
			}
		}
		return rec, nil
	}
	if err := r.scanner.Err(); err != nil {
		return Record{}, fmt.Errorf("read replay: %w", err)
	}
	return Record{}, io.EOF
}

// ReplayWriter writes landmark records in the format ReplayReader consumes.
type ReplayWriter struct {
	enc *json.Encoder
}

// NewReplayWriter wraps w.
func NewReplayWriter(w io.Writer) *ReplayWriter {
	return &ReplayWriter{enc: json.NewEncoder(w)}
}

// Write appends one record.
func (w *ReplayWriter) Write(rec Record) error {
	jr := jsonRecord{
		OffsetMs: rec.Offset.Milliseconds(),
		Hands:    make([]jsonHand, len(rec.Hands)),
	}
	for i, h := range rec.Hands {
		jr.Hands[i] = jsonHand{
			Handedness:  h.Handedness.String(),
			Score:       h.Score,
			Points:      append([]Point3D(nil), h.Image[:]...),
			WorldPoints: append([]Point3D(nil), h.World[:]...),
		}
	}
	return w.enc.Encode(jr)
}
