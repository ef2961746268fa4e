// Package api exposes session.Controller over HTTP+JSON+SSE. It is a thin
// wrapper: every handler does request decoding, a call into the controller
// (usually followed by Status for the reply), and response encoding, with
// no state of its own.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/nullstream/dlnacast/internal/apperrors"
	"github.com/nullstream/dlnacast/internal/history"
	"github.com/nullstream/dlnacast/internal/session"
)

// API wires a session.Controller and an optional history.Store to HTTP
// routes.
type API struct {
	controller *session.Controller
	history    *history.Store
}

// New constructs an API. hist may be nil, in which case GET /api/recent
// always returns an empty list.
func New(controller *session.Controller, hist *history.Store) *API {
	return &API{controller: controller, history: hist}
}

// SetupRoutes registers all HTTP routes on mux.
func (a *API) SetupRoutes(mux *http.ServeMux) {
	cors := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			h(w, r)
		}
	}

	mux.HandleFunc("/api/select-file", cors(a.handleSelectFile))
	mux.HandleFunc("/api/discover", cors(a.handleDiscover))
	mux.HandleFunc("/api/select-device", cors(a.handleSelectDevice))
	mux.HandleFunc("/api/cast", cors(a.handleCast))
	mux.HandleFunc("/api/play", cors(a.handlePlay))
	mux.HandleFunc("/api/pause", cors(a.handlePause))
	mux.HandleFunc("/api/stop", cors(a.handleStop))
	mux.HandleFunc("/api/seek", cors(a.handleSeek))
	mux.HandleFunc("/api/leave", cors(a.handleLeave))
	mux.HandleFunc("/api/status", cors(a.handleStatus))
	mux.HandleFunc("/api/status/stream", cors(a.handleStatusStream))
	mux.HandleFunc("/api/recent", cors(a.handleRecent))
}

type selectFileRequest struct {
	Path string `json:"path"`
}

func (a *API) handleSelectFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req selectFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	file, err := a.controller.SelectFile(req.Path)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"path":         file.Path,
		"display_name": file.DisplayName,
		"mime":         file.MIME,
		"size":         file.Size,
		"size_display": humanize.Bytes(uint64(file.Size)),
	})
}

func (a *API) handleDiscover(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	devices, err := a.controller.Discover()
	if err != nil {
		respondError(w, err)
		return
	}

	out := make([]map[string]any, len(devices))
	for i, d := range devices {
		out[i] = map[string]any{
			"index":         i,
			"id":            d.ID,
			"friendly_name": d.FriendlyName,
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{"devices": out})
}

type selectDeviceRequest struct {
	Index int `json:"index"`
}

func (a *API) handleSelectDevice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req selectDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := a.controller.SelectDevice(req.Index); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, statusPayload(a.controller.Status()))
}

func (a *API) handleCast(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := a.controller.Cast(); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, statusPayload(a.controller.Status()))
}

func (a *API) handlePlay(w http.ResponseWriter, r *http.Request) {
	a.handleSimpleCommand(w, r, a.controller.Play)
}

func (a *API) handlePause(w http.ResponseWriter, r *http.Request) {
	a.handleSimpleCommand(w, r, a.controller.Pause)
}

func (a *API) handleStop(w http.ResponseWriter, r *http.Request) {
	a.handleSimpleCommand(w, r, a.controller.Stop)
}

func (a *API) handleLeave(w http.ResponseWriter, r *http.Request) {
	a.handleSimpleCommand(w, r, a.controller.Leave)
}

func (a *API) handleSimpleCommand(w http.ResponseWriter, r *http.Request, cmd func() error) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := cmd(); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, statusPayload(a.controller.Status()))
}

type seekRequest struct {
	Seconds  *int64 `json:"seconds,omitempty"`
	DeltaSec *int64 `json:"delta_seconds,omitempty"`
}

func (a *API) handleSeek(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req seekRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var err error
	switch {
	case req.Seconds != nil:
		err = a.controller.Seek(*req.Seconds)
	case req.DeltaSec != nil:
		err = a.controller.SeekRelative(*req.DeltaSec)
	default:
		http.Error(w, "seconds or delta_seconds required", http.StatusBadRequest)
		return
	}
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, statusPayload(a.controller.Status()))
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	respondJSON(w, http.StatusOK, statusPayload(a.controller.Status()))
}

// handleStatusStream serves status updates as Server-Sent Events, one event
// per published snapshot, until the client disconnects.
func (a *API) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	updates, cancel := a.controller.Subscribe()
	defer cancel()

	writeEvent(w, statusPayload(a.controller.Status()))
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case snapshot, ok := <-updates:
			if !ok {
				return
			}
			writeEvent(w, statusPayload(snapshot))
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}

func (a *API) handleRecent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if a.history == nil {
		respondJSON(w, http.StatusOK, map[string]any{"recent": []any{}})
		return
	}

	casts, err := a.history.List(r.Context())
	if err != nil {
		http.Error(w, "failed to read history", http.StatusInternalServerError)
		return
	}

	out := make([]map[string]any, len(casts))
	for i, rc := range casts {
		out[i] = map[string]any{
			"file_path":   rc.FilePath,
			"file_name":   rc.FileName,
			"device_name": rc.DeviceName,
			"cast_at":     rc.CastAt.Format(time.RFC3339),
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{"recent": out})
}

func statusPayload(s session.StatusSnapshot) map[string]any {
	return map[string]any{
		"state":            s.State.String(),
		"playback_label":   s.PlaybackLabel,
		"elapsed_seconds":  s.ElapsedSeconds,
		"duration_seconds": s.DurationSeconds,
		"elapsed_display":  s.ElapsedDisplay,
		"duration_display": s.DurationDisplay,
		"progress_ratio":   s.ProgressRatio,
		"file_name":        s.FileName,
		"device_name":      s.DeviceName,
	}
}

// respondError maps an apperrors.Kind to an HTTP status and writes a JSON
// body describing it.
func respondError(w http.ResponseWriter, err error) {
	kind := apperrors.InvalidArgument
	message := err.Error()
	if ae, ok := err.(*apperrors.Error); ok {
		kind = ae.Kind
	}

	status := http.StatusInternalServerError
	switch kind {
	case apperrors.FileNotFound, apperrors.NoDevicesFound:
		status = http.StatusNotFound
	case apperrors.UnsupportedFormat, apperrors.InvalidArgument, apperrors.ActionMalformed:
		status = http.StatusBadRequest
	case apperrors.NetworkError, apperrors.ActionTransport, apperrors.MediaServerError:
		status = http.StatusBadGateway
	case apperrors.ActionFault:
		status = http.StatusUnprocessableEntity
	}

	respondJSON(w, status, map[string]any{
		"error": message,
		"kind":  kind.String(),
	})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
