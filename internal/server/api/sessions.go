package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ayusman/theremin/internal/recording"
	"github.com/ayusman/theremin/internal/store"
)

// SessionHandler handles HTTP requests for recorded sessions.
type SessionHandler struct {
	store *store.Store
}

// NewSessionHandler creates a new SessionHandler with the given store.
func NewSessionHandler(s *store.Store) *SessionHandler {
	return &SessionHandler{store: s}
}

type sessionResponse struct {
	ID         string `json:"id"`
	PortName   string `json:"port_name"`
	Channel    int    `json:"channel"`
	Scale      string `json:"scale"`
	Events     int    `json:"events"`
	StartedAt  string `json:"started_at"`
	EndedAt    string `json:"ended_at,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

type listSessionsResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

func toSessionResponse(s *store.Session) sessionResponse {
	resp := sessionResponse{
		ID:         s.ID,
		PortName:   s.PortName,
		Channel:    s.Channel,
		Scale:      s.Scale,
		Events:     s.Events,
		StartedAt:  formatTime(s.StartedAt),
		DurationMs: s.Duration().Milliseconds(),
	}
	if s.EndedAt != nil {
		resp.EndedAt = formatTime(*s.EndedAt)
	}
	return resp
}

// ServeHTTP routes /api/sessions, /api/sessions/{id} and
// /api/sessions/{id}/midi.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/api/sessions")

	switch len(parts) {
	case 0:
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.list(w, r)
	case 1:
		switch r.Method {
		case http.MethodGet:
			h.get(w, r, parts[0])
		case http.MethodDelete:
			h.delete(w, r, parts[0])
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	case 2:
		if parts[1] != "midi" {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.export(w, r, parts[0])
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// list handles GET /api/sessions, newest first.
func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.store.Sessions().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	resp := listSessionsResponse{Sessions: make([]sessionResponse, 0, len(sessions))}
	for _, s := range sessions {
		resp.Sessions = append(resp.Sessions, toSessionResponse(s))
	}
	writeJSON(w, http.StatusOK, resp)
}

// get handles GET /api/sessions/{id}.
func (h *SessionHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	sess, err := h.store.Sessions().GetByID(id)
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

// delete handles DELETE /api/sessions/{id}.
func (h *SessionHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Sessions().Delete(id); err != nil {
		h.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// export handles GET /api/sessions/{id}/midi. The optional bpm query
// parameter sets the tempo of the written file.
func (h *SessionHandler) export(w http.ResponseWriter, r *http.Request, id string) {
	sess, err := h.store.Sessions().GetByID(id)
	if err != nil {
		h.storeError(w, err)
		return
	}

	opts := recording.DefaultOptions()
	opts.TrackName = sess.Scale
	if v := r.URL.Query().Get("bpm"); v != "" {
		bpm, err := strconv.ParseFloat(v, 64)
		if err != nil || bpm <= 0 {
			writeError(w, http.StatusBadRequest, "bpm must be a positive number")
			return
		}
		opts.BPM = bpm
	}

	events, err := h.store.Sessions().Events(id)
	if err != nil {
		h.storeError(w, err)
		return
	}
	data, err := recording.Encode(events, opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encode midi file")
		return
	}

	w.Header().Set("Content-Type", "audio/midi")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "session-"+sess.ID+".mid"))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *SessionHandler) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeError(w, http.StatusInternalServerError, "failed to load session")
}
