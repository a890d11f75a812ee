package tray

import "testing"

func TestTray_ToggleLandmarks(t *testing.T) {
	tr := New()
	if !tr.Landmarks() {
		t.Fatal("landmarks should be on by default")
	}

	var got []bool
	tr.OnToggleLandmarks(func(enabled bool) { got = append(got, enabled) })

	tr.handleToggleLandmarks()
	tr.handleToggleLandmarks()

	if len(got) != 2 || got[0] != false || got[1] != true {
		t.Errorf("callback values = %v, want [false true]", got)
	}
	if !tr.Landmarks() {
		t.Error("Landmarks() = false after two toggles")
	}
}

func TestTray_Callbacks(t *testing.T) {
	tr := New()

	next, quit := 0, 0
	tr.OnNextScale(func() { next++ })
	tr.OnQuit(func() { quit++ })

	tr.handleNextScale()
	tr.handleNextScale()
	tr.handleQuit()

	if next != 2 || quit != 1 {
		t.Errorf("next = %d, quit = %d; want 2, 1", next, quit)
	}
}

func TestTray_NoCallbacks(t *testing.T) {
	tr := New()
	tr.handleToggleLandmarks()
	tr.handleNextScale()
	tr.handleQuit()
	tr.SetScale("Major")
	tr.SetNote("")
	tr.SetLandmarks(true)
	if !tr.Landmarks() {
		t.Error("SetLandmarks(true) not applied")
	}
}
