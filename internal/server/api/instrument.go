package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ayusman/theremin/internal/app"
	"github.com/ayusman/theremin/internal/music"
)

// Instrument is the part of a running app the API controls.
type Instrument interface {
	Status() app.Status
	Scales() []music.Scale
	NextScale()
	SelectScale(name string) error
	ToggleLandmarks()
	Quit()
}

// InstrumentHandler serves the live state and the controls under /api.
// Controls are queued; they take effect on the next tick.
type InstrumentHandler struct {
	inst Instrument
}

// NewInstrumentHandler creates a handler driving inst.
func NewInstrumentHandler(inst Instrument) *InstrumentHandler {
	return &InstrumentHandler{inst: inst}
}

type scaleResponse struct {
	Name    string `json:"name"`
	Degrees []int  `json:"degrees"`
	Current bool   `json:"current"`
}

type listScalesResponse struct {
	Scales []scaleResponse `json:"scales"`
}

type selectScaleRequest struct {
	Name string `json:"name"`
}

type acceptedResponse struct {
	Status string `json:"status"`
}

// ServeHTTP routes /api/state, /api/scales[/next|/select],
// /api/landmarks/toggle and /api/quit.
func (h *InstrumentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/state":
		h.only(w, r, http.MethodGet, h.state)
	case "/api/scales":
		h.only(w, r, http.MethodGet, h.scales)
	case "/api/scales/next":
		h.only(w, r, http.MethodPost, func(w http.ResponseWriter, r *http.Request) {
			h.inst.NextScale()
			writeJSON(w, http.StatusAccepted, acceptedResponse{Status: "queued"})
		})
	case "/api/scales/select":
		h.only(w, r, http.MethodPost, h.selectScale)
	case "/api/landmarks/toggle":
		h.only(w, r, http.MethodPost, func(w http.ResponseWriter, r *http.Request) {
			h.inst.ToggleLandmarks()
			writeJSON(w, http.StatusAccepted, acceptedResponse{Status: "queued"})
		})
	case "/api/quit":
		h.only(w, r, http.MethodPost, func(w http.ResponseWriter, r *http.Request) {
			h.inst.Quit()
			writeJSON(w, http.StatusAccepted, acceptedResponse{Status: "stopping"})
		})
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *InstrumentHandler) only(w http.ResponseWriter, r *http.Request, method string, fn http.HandlerFunc) {
	if r.Method != method {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	fn(w, r)
}

// state handles GET /api/state.
func (h *InstrumentHandler) state(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.inst.Status())
}

// scales handles GET /api/scales.
func (h *InstrumentHandler) scales(w http.ResponseWriter, r *http.Request) {
	current := h.inst.Status().Scale
	scales := h.inst.Scales()

	resp := listScalesResponse{Scales: make([]scaleResponse, len(scales))}
	for i, s := range scales {
		resp.Scales[i] = scaleResponse{
			Name:    s.Name,
			Degrees: s.Degrees,
			Current: s.Name == current,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// selectScale handles POST /api/scales/select.
func (h *InstrumentHandler) selectScale(w http.ResponseWriter, r *http.Request) {
	var req selectScaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	if err := h.inst.SelectScale(req.Name); err != nil {
		if errors.Is(err, music.ErrUnknownScale) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to select scale")
		return
	}
	writeJSON(w, http.StatusAccepted, acceptedResponse{Status: "queued"})
}
