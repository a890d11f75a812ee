package performer

import (
	"bytes"
	"testing"
	"time"

	"gitlab.com/gomidi/midi/v2"

	"github.com/ayusman/theremin/internal/detector"
	"github.com/ayusman/theremin/internal/gesture"
	"github.com/ayusman/theremin/internal/midiout"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newPerformer(t *testing.T) (*Performer, *midiout.MemorySink) {
	t.Helper()
	enc, err := midiout.NewEncoder(1, true, nil)
	if err != nil {
		t.Fatalf("NewEncoder error = %v", err)
	}
	sink := midiout.NewMemorySink()
	return New(DefaultConfig(), enc, sink), sink
}

// rightHand returns a pitch hand at wrist height y. gate curls the thumb;
// fingers curls index, middle, ring and pinky.
func rightHand(y float64, gate bool, fingers [4]bool) gesture.Hand {
	pose := detector.Pose{gate, fingers[0], fingers[1], fingers[2], fingers[3]}
	return gesture.FromLandmarks(detector.PoseLandmarks(detector.Right, detector.Point3D{X: 0.7, Y: y}, pose))
}

func leftHand(y float64) gesture.Hand {
	return gesture.FromLandmarks(detector.PoseLandmarks(detector.Left, detector.Point3D{X: 0.3, Y: y}, detector.Pose{}))
}

func okLeftHand(y, thumbX float64) gesture.Hand {
	lm := detector.OKSignLandmarks(detector.Left, detector.Point3D{X: 0.3, Y: y})
	lm.Image[detector.ThumbTip].X = thumbX
	return gesture.FromLandmarks(lm)
}

func perform(t *testing.T, p *Performer, right, left gesture.Hand, now time.Time) Result {
	t.Helper()
	res, err := p.Perform(right, left, now)
	if err != nil {
		t.Fatalf("Perform error = %v", err)
	}
	return res
}

func filter(msgs []midi.Message, status byte) []midi.Message {
	var out []midi.Message
	for _, m := range msgs {
		if m[0]&0xF0 == status {
			out = append(out, m)
		}
	}
	return out
}

func indexOf(msgs []midi.Message, want []byte) int {
	for i, m := range msgs {
		if bytes.Equal(m, want) {
			return i
		}
	}
	return -1
}

func TestPerform_FirstNote(t *testing.T) {
	p, sink := newPerformer(t)

	res := perform(t, p, rightHand(0.5, true, [4]bool{}), leftHand(0.14), t0)

	if !res.Sounding || res.Note != 65 || res.NoteName != "F4" {
		t.Errorf("result = %+v, want sounding F4 (65)", res)
	}
	if res.VolumeByte != 127 {
		t.Errorf("VolumeByte = %d, want 127", res.VolumeByte)
	}
	if res.BendSent {
		t.Error("pitch bend sent without a previous sample")
	}

	want := []midi.Message{
		{0x90, 65, 127},
		{0xD0, 127},
	}
	got := sink.Messages()
	if len(got) != len(want) {
		t.Fatalf("messages = %v, want %v", got, want)
	}
	for i := range want {
		if !bytes.Equal(got[i], want[i]) {
			t.Errorf("message %d = % X, want % X", i, []byte(got[i]), []byte(want[i]))
		}
	}

	st := p.State()
	if st.LastNote != 65 || st.LastVolume != 127 || !st.HasPrev {
		t.Errorf("state = %+v", st)
	}
}

func TestPerform_NoteOnBeforeNoteOff(t *testing.T) {
	p, sink := newPerformer(t)

	perform(t, p, rightHand(1.0, true, [4]bool{}), leftHand(0.5), t0)
	if p.State().LastNote != 60 {
		t.Fatalf("LastNote = %d, want 60", p.State().LastNote)
	}
	sink.Reset()

	// Major degree 3 above 60 is 64.
	perform(t, p, rightHand(1.0, true, [4]bool{true, true, false, false}), leftHand(0.5), t0.Add(33*time.Millisecond))

	msgs := sink.Messages()
	on := indexOf(msgs, []byte{0x90, 64, byte(p.State().LastVolume)})
	off := indexOf(msgs, []byte{0x80, 60, 0})
	if on < 0 || off < 0 {
		t.Fatalf("missing note on/off in %v", msgs)
	}
	if on > off {
		t.Errorf("Note-On at %d after Note-Off at %d", on, off)
	}
	if p.State().LastNote != 64 {
		t.Errorf("LastNote = %d, want 64", p.State().LastNote)
	}
}

func TestPerform_SameNoteNoRetrigger(t *testing.T) {
	p, sink := newPerformer(t)
	right := rightHand(0.5, true, [4]bool{true, true, true, true})

	perform(t, p, right, leftHand(0.5), t0)
	sink.Reset()
	perform(t, p, right, leftHand(0.5), t0.Add(33*time.Millisecond))

	msgs := sink.Messages()
	if n := len(filter(msgs, 0x90)) + len(filter(msgs, 0x80)); n != 0 {
		t.Errorf("got %d note messages for an unchanged note: %v", n, msgs)
	}
}

func TestPerform_AftertouchIdempotent(t *testing.T) {
	p, sink := newPerformer(t)
	right := rightHand(0.5, true, [4]bool{})

	perform(t, p, right, leftHand(0.4), t0)
	if len(filter(sink.Messages(), 0xD0)) != 1 {
		t.Fatalf("first tick messages = %v, want one aftertouch", sink.Messages())
	}
	sink.Reset()

	perform(t, p, right, leftHand(0.4), t0.Add(33*time.Millisecond))
	if at := filter(sink.Messages(), 0xD0); len(at) != 0 {
		t.Errorf("aftertouch re-sent with unchanged volume: %v", at)
	}

	perform(t, p, right, leftHand(0.8), t0.Add(66*time.Millisecond))
	if at := filter(sink.Messages(), 0xD0); len(at) != 1 {
		t.Errorf("aftertouch count after volume change = %d, want 1", len(at))
	}
}

func TestPerform_GateOff(t *testing.T) {
	p, sink := newPerformer(t)

	perform(t, p, rightHand(0.5, true, [4]bool{}), leftHand(0.5), t0)
	sink.Reset()

	res := perform(t, p, rightHand(0.5, false, [4]bool{}), leftHand(0.5), t0.Add(33*time.Millisecond))

	if res.Sounding {
		t.Error("result sounding with thumb released")
	}
	cc := filter(sink.Messages(), 0xB0)
	if len(cc) != 1 || !bytes.Equal(cc[0], []byte{0xB0, 123, 0}) {
		t.Errorf("control changes = %v, want exactly one CC123=0", cc)
	}
	if n := len(filter(sink.Messages(), 0x90)) + len(filter(sink.Messages(), 0xD0)); n != 0 {
		t.Errorf("unexpected note/aftertouch messages on gate off: %v", sink.Messages())
	}
	if p.State().LastNote != NoNote {
		t.Errorf("LastNote = %d, want %d", p.State().LastNote, NoNote)
	}

	// Re-engaging sends a fresh Note-On with no Note-Off for the sentinel.
	sink.Reset()
	perform(t, p, rightHand(0.5, true, [4]bool{}), leftHand(0.5), t0.Add(66*time.Millisecond))
	if len(filter(sink.Messages(), 0x90)) != 1 || len(filter(sink.Messages(), 0x80)) != 0 {
		t.Errorf("re-engage messages = %v", sink.Messages())
	}
}

func TestTick_SkipsWithoutBothHands(t *testing.T) {
	p, sink := newPerformer(t)
	before := p.State()

	right := detector.PoseLandmarks(detector.Right, detector.Point3D{X: 0.7, Y: 0.5}, detector.Pose{true})
	for _, snap := range []gesture.Snapshot{
		gesture.NewSnapshot(nil),
		gesture.NewSnapshot([]detector.HandLandmarks{right}),
	} {
		_, ok, err := p.Tick(snap, t0)
		if err != nil {
			t.Fatalf("Tick error = %v", err)
		}
		if ok {
			t.Error("Tick reported a mapped frame with fewer than two hands")
		}
	}

	if len(sink.Messages()) != 0 {
		t.Errorf("messages sent: %v", sink.Messages())
	}
	after := p.State()
	if after.LastNote != before.LastNote || after.HasPrev != before.HasPrev || after.LastVolume != before.LastVolume {
		t.Errorf("state changed: before %+v after %+v", before, after)
	}
}

func TestTick_BothHands(t *testing.T) {
	p, sink := newPerformer(t)
	snap := gesture.NewSnapshot([]detector.HandLandmarks{
		detector.PoseLandmarks(detector.Left, detector.Point3D{X: 0.3, Y: 0.5}, detector.Pose{}),
		detector.PoseLandmarks(detector.Right, detector.Point3D{X: 0.7, Y: 0.0}, detector.Pose{true}),
	})

	res, ok, err := p.Tick(snap, t0)
	if err != nil || !ok {
		t.Fatalf("Tick = ok %v, err %v", ok, err)
	}
	if res.Note != 70 {
		t.Errorf("Note = %d, want 70", res.Note)
	}
	if len(sink.Messages()) == 0 {
		t.Error("no messages sent")
	}
}

func TestPerform_PitchBend(t *testing.T) {
	right := rightHand(0.5, false, [4]bool{})

	tests := []struct {
		name   string
		first  gesture.Hand
		second gesture.Hand
		dt     time.Duration
		want   int
	}{
		{
			name:   "ok sign moving right",
			first:  okLeftHand(0.5, 0.25),
			second: okLeftHand(0.5, 0.5),
			dt:     250 * time.Millisecond,
			want:   8192 + 4096,
		},
		{
			name:   "ok sign moving left",
			first:  okLeftHand(0.5, 0.5),
			second: okLeftHand(0.5, 0.25),
			dt:     250 * time.Millisecond,
			want:   8192 - 4096,
		},
		{
			name:   "fast movement clamps",
			first:  okLeftHand(0.5, 0),
			second: okLeftHand(0.5, 1),
			dt:     125 * time.Millisecond,
			want:   16383,
		},
		{
			name:   "no ok sign stays centred",
			first:  leftHand(0.5),
			second: func() gesture.Hand { h := leftHand(0.5); h.Fingers[gesture.Thumb].Tip.X += 0.3; return h }(),
			dt:     250 * time.Millisecond,
			want:   8192,
		},
		{
			name:   "zero elapsed time centres",
			first:  okLeftHand(0.5, 0.25),
			second: okLeftHand(0.5, 0.5),
			dt:     0,
			want:   8192,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, sink := newPerformer(t)

			perform(t, p, right, tt.first, t0)
			if len(filter(sink.Messages(), 0xE0)) != 0 {
				t.Fatal("pitch bend sent on first frame")
			}
			sink.Reset()

			res := perform(t, p, right, tt.second, t0.Add(tt.dt))
			bends := filter(sink.Messages(), 0xE0)
			if len(bends) != 1 {
				t.Fatalf("pitch bends = %v, want 1", bends)
			}
			got, err := midiout.DecodePitchBend(bends[0])
			if err != nil {
				t.Fatalf("DecodePitchBend error = %v", err)
			}
			if got != tt.want || res.PitchBend != tt.want {
				t.Errorf("pitch bend = %d (result %d), want %d", got, res.PitchBend, tt.want)
			}
		})
	}
}

func TestPerform_BendBookkeepingAlwaysUpdates(t *testing.T) {
	p, _ := newPerformer(t)
	right := rightHand(0.5, false, [4]bool{})

	left := leftHand(0.5)
	perform(t, p, right, left, t0)

	st := p.State()
	if !st.HasPrev || st.PrevBendX != left.Thumb().Tip.X || !st.PrevTime.Equal(t0) {
		t.Errorf("state after non-ok frame = %+v", st)
	}
}

func TestScaleSelection(t *testing.T) {
	p, _ := newPerformer(t)
	if p.Scale().Name != "Major" {
		t.Fatalf("initial scale = %q", p.Scale().Name)
	}
	if s := p.NextScale(); s.Name != "Chromatic" {
		t.Errorf("NextScale() = %q, want Chromatic", s.Name)
	}
	if _, err := p.SelectScale("Pentatonic"); err != nil {
		t.Fatalf("SelectScale error = %v", err)
	}

	// Pentatonic degree 9 = index + pinky: base + 7 + 12.
	res := perform(t, p, rightHand(1.0, true, [4]bool{true, false, false, true}), leftHand(0.5), t0)
	if res.Note != 60+7+12 || res.Scale != "Pentatonic" {
		t.Errorf("result = %+v, want note 79 in Pentatonic", res)
	}
	if p.State().Scale.Name != "Pentatonic" {
		t.Errorf("State().Scale = %q", p.State().Scale.Name)
	}
	if _, err := p.SelectScale("lydian"); err == nil {
		t.Error("expected error for unknown scale")
	}
}

func TestPerform_SinkError(t *testing.T) {
	p, sink := newPerformer(t)
	sink.Close()
	if _, err := p.Perform(rightHand(0.5, true, [4]bool{}), leftHand(0.5), t0); err == nil {
		t.Error("expected error from closed sink")
	}
}
