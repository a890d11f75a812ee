// Package tray provides a system tray menu for controlling a running performance.
package tray

import (
	"sync"

	"github.com/getlantern/systray"
)

// Tray represents the system tray application.
type Tray struct {
	onToggleLandmarks func(enabled bool)
	onNextScale       func()
	onQuit            func()
	landmarks         bool
	mu                sync.RWMutex

	// Menu items stored for later updates
	menuLandmarks *systray.MenuItem
	menuScale     *systray.MenuItem
	menuNote      *systray.MenuItem
}

// New creates a new Tray with the landmark overlay shown.
func New() *Tray {
	return &Tray{
		landmarks: true,
	}
}

// OnToggleLandmarks sets the callback run when the overlay is toggled.
func (t *Tray) OnToggleLandmarks(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggleLandmarks = fn
}

// OnNextScale sets the callback run when the next scale is requested.
func (t *Tray) OnNextScale(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onNextScale = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray from outside the menu.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Theremin")
	systray.SetTooltip("Hand-tracking MIDI theremin")

	t.mu.Lock()
	t.menuLandmarks = systray.AddMenuItem(landmarksTitle(t.landmarks), "Toggle the landmark overlay")
	systray.AddSeparator()

	t.menuScale = systray.AddMenuItem("Scale: -", "Current scale")
	t.menuScale.Disable()
	t.menuNote = systray.AddMenuItem("Note: -", "Sounding note")
	t.menuNote.Disable()
	t.mu.Unlock()

	menuNext := systray.AddMenuItem("Next Scale", "Cycle to the next scale")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Stop playing and quit")

	go func() {
		for {
			select {
			case <-t.menuLandmarks.ClickedCh:
				t.handleToggleLandmarks()
			case <-menuNext.ClickedCh:
				t.handleNextScale()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				systray.Quit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

func landmarksTitle(on bool) string {
	if on {
		return "● Landmarks"
	}
	return "○ Landmarks"
}

func (t *Tray) handleToggleLandmarks() {
	t.mu.Lock()
	t.landmarks = !t.landmarks
	enabled := t.landmarks

	if t.menuLandmarks != nil {
		t.menuLandmarks.SetTitle(landmarksTitle(enabled))
	}

	callback := t.onToggleLandmarks
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

func (t *Tray) handleNextScale() {
	t.mu.RLock()
	callback := t.onNextScale
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// SetLandmarks syncs the toggle when the overlay is changed elsewhere.
func (t *Tray) SetLandmarks(on bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.landmarks = on
	if t.menuLandmarks != nil {
		t.menuLandmarks.SetTitle(landmarksTitle(on))
	}
}

// SetScale updates the scale display in the menu.
func (t *Tray) SetScale(name string) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuScale != nil {
		t.menuScale.SetTitle("Scale: " + name)
	}
}

// SetNote updates the note display; an empty name shows silence.
func (t *Tray) SetNote(name string) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if name == "" {
		name = "-"
	}
	if t.menuNote != nil {
		t.menuNote.SetTitle("Note: " + name)
	}
}

// Landmarks reports whether the overlay toggle is on.
func (t *Tray) Landmarks() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.landmarks
}
