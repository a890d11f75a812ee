package server

import (
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"
)

const frameInterval = 66 * time.Millisecond // ~15 FPS

// Preview holds the most recent drawn frame as JPEG for the MJPEG stream.
// Frames are only encoded while someone is watching.
type Preview struct {
	mu      sync.RWMutex
	jpeg    []byte
	seq     uint64
	viewers atomic.Int32
}

// NewPreview creates an empty preview.
func NewPreview() *Preview {
	return &Preview{}
}

// Update encodes frame as the latest preview. It is meant to be registered
// with App.OnFrame.
func (p *Preview) Update(frame *gocv.Mat) {
	if p.viewers.Load() == 0 || frame == nil || frame.Empty() {
		return
	}
	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return
	}
	defer buf.Close()
	p.Set(buf.GetBytes())
}

// Set stores an already encoded JPEG frame.
func (p *Preview) Set(jpeg []byte) {
	data := append([]byte(nil), jpeg...)
	p.mu.Lock()
	p.jpeg = data
	p.seq++
	p.mu.Unlock()
}

// Latest returns the newest frame and its sequence number.
func (p *Preview) Latest() ([]byte, uint64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.jpeg, p.seq
}

// StreamHandler serves the preview as MJPEG.
type StreamHandler struct {
	preview *Preview
}

// NewStreamHandler creates a new StreamHandler over preview.
func NewStreamHandler(preview *Preview) *StreamHandler {
	return &StreamHandler{preview: preview}
}

// ServeHTTP streams MJPEG frames to connected clients.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.preview.viewers.Add(1)
	defer h.preview.viewers.Add(-1)

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	var sent uint64
	for {
		if data, seq := h.preview.Latest(); seq != sent && len(data) > 0 {
			if err := writePart(w, data); err != nil {
				return
			}
			sent = seq
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func writePart(w http.ResponseWriter, data []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(data)); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "\r\n"); err != nil {
		return err
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}
