package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/calmwater/bestway-bridge/internal/bestway"
	"github.com/calmwater/bestway-bridge/internal/bridge"
)

// DeviceView is the JSON representation of a bound device.
type DeviceView struct {
	ID              string `json:"id"`
	Alias           string `json:"alias"`
	ProductName     string `json:"product_name"`
	DeviceType      string `json:"device_type"`
	ProtocolVersion int    `json:"protocol_version"`
	MCUSoftVersion  string `json:"mcu_soft_version,omitempty"`
	WifiSoftVersion string `json:"wifi_soft_version,omitempty"`
	IsOnline        bool   `json:"is_online"`
}

func newDeviceView(d bestway.Device) DeviceView {
	return DeviceView{
		ID:              d.ID,
		Alias:           d.Alias,
		ProductName:     d.ProductName,
		DeviceType:      string(d.Type()),
		ProtocolVersion: d.ProtocolVersion,
		MCUSoftVersion:  d.MCUSoftVersion,
		WifiSoftVersion: d.WifiSoftVersion,
		IsOnline:        d.IsOnline,
	}
}

// StatusView is the JSON representation of a reconciled status snapshot.
type StatusView struct {
	DeviceID     string          `json:"device_id"`
	Timestamp    int64           `json:"timestamp"`
	Online       bool            `json:"online"`
	Attrs        bestway.Attrs   `json:"attrs"`
	Errors       map[string]bool `json:"errors,omitempty"`
	BubblesLevel string          `json:"bubbles_level,omitempty"`
}

// handleListDevices returns all bound devices, sorted by ID for stable
// output.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.spa.Devices()

	views := make([]DeviceView, 0, len(devices))
	for _, d := range devices {
		views = append(views, newDeviceView(d))
	}
	sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": views,
		"count":   len(views),
	})
}

// handleGetDevice returns metadata for a single device.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	device, ok := s.spa.Device(id)
	if !ok {
		writeNotFound(w, "device not found")
		return
	}
	writeJSON(w, http.StatusOK, newDeviceView(device))
}

// handleGetDeviceStatus returns the reconciled status snapshot for a
// device. 404 covers both an unknown device and a known device that has
// not reported yet.
func (s *Server) handleGetDeviceStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	device, ok := s.spa.Device(id)
	if !ok {
		writeNotFound(w, "device not found")
		return
	}

	status, ok := s.spa.Status(id)
	if !ok {
		writeNotFound(w, "no status available for device")
		return
	}

	view := StatusView{
		DeviceID:  id,
		Timestamp: status.Timestamp,
		Online:    status.Online(s.now()),
		Attrs:     status.Attrs,
		Errors:    status.ErrorFlags(),
	}
	if level, ok := bestway.BubblesLevelFromStatus(device.Type(), status); ok {
		view.BubblesLevel = string(level)
	}

	writeJSON(w, http.StatusOK, view)
}

// handleGetDeviceCapabilities returns the control surfaces the device
// type exposes.
func (s *Server) handleGetDeviceCapabilities(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	device, ok := s.spa.Device(id)
	if !ok {
		writeNotFound(w, "device not found")
		return
	}

	caps := bestway.Capabilities(device.Type())
	if caps == nil {
		caps = []bestway.Capability{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"device_id":    id,
		"device_type":  string(device.Type()),
		"capabilities": caps,
	})
}

// handleSendCommand dispatches a logical command to a device.
//
// Body: {"command": "set_heat", "value": true}
func (s *Server) handleSendCommand(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var msg bridge.CommandMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeBadRequest(w, "invalid command payload: "+err.Error())
		return
	}
	if msg.Command == "" {
		writeBadRequest(w, "command is required")
		return
	}

	if err := s.spa.Send(r.Context(), id, bestway.Command(msg.Command), msg.Value); err != nil {
		s.writeCommandError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": id,
		"command":   msg.Command,
		"status":    "accepted",
	})
}

// writeCommandError maps dispatch errors to HTTP responses.
func (s *Server) writeCommandError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, bestway.ErrDeviceNotRecognised):
		writeNotFound(w, err.Error())
	case errors.Is(err, bestway.ErrUnsupportedCommand):
		writeBadRequest(w, err.Error())
	case errors.Is(err, bestway.ErrDeviceOffline):
		writeError(w, http.StatusConflict, ErrCodeDeviceOffline, err.Error())
	default:
		writeError(w, http.StatusBadGateway, ErrCodeUpstream, err.Error())
	}
}
