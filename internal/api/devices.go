package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shockzort/tion-core/internal/device"
)

// maxPathParamLen limits path parameter length.
const maxPathParamLen = 100

// deviceSummary is one entry of GET /api/v1/devices.
type deviceSummary struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Kind      device.Kind `json:"kind"`
	Paired    bool        `json:"paired"`
	Loaded    bool        `json:"loaded"`
	Connected bool        `json:"connected"`
}

// CommandRequest is the body of POST /api/v1/devices/{id}/commands.
type CommandRequest struct {
	Property string `json:"property"`
	Value    any    `json:"value"`
}

// handleListDevices returns active devices with their handle state.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	if s.devices == nil {
		writeJSON(w, http.StatusOK, map[string]any{"devices": []deviceSummary{}, "count": 0})
		return
	}

	devices, err := s.devices.ListActiveDevices(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list devices")
		return
	}

	out := make([]deviceSummary, 0, len(devices))
	for _, d := range devices {
		sum := deviceSummary{ID: d.ID, Name: d.Name, Kind: d.Kind, Paired: d.IsPaired}
		if h, ok := s.operator.Get(d.ID); ok {
			sum.Loaded = true
			sum.Connected = h.Connected()
		}
		out = append(out, sum)
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": out, "count": len(out)})
}

// handleGetDeviceStatus returns the cached status, or a fresh reading when
// ?refresh=true.
func (s *Server) handleGetDeviceStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := deviceID(w, r)
	if !ok {
		return
	}
	refresh := r.URL.Query().Get("refresh") == "true"

	status, err := s.operator.DeviceStatus(r.Context(), id, refresh)
	if err != nil {
		s.requestLogger(r).Warn("device status read failed", "device_id", id, "error", err)
		writeOperatorError(w, err, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleDeviceCommand writes one property.
func (s *Server) handleDeviceCommand(w http.ResponseWriter, r *http.Request) {
	id, ok := deviceID(w, r)
	if !ok {
		return
	}

	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Property == "" {
		writeBadRequest(w, "property field is required")
		return
	}

	applied, err := s.operator.SetProperty(r.Context(), id, req.Property, req.Value)
	if err != nil {
		writeOperatorError(w, err, http.StatusInternalServerError)
		return
	}

	if !applied {
		writeError(w, http.StatusBadGateway, ErrCodeUnavailable, "device did not accept the command")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"device_id": id, "property": req.Property, "applied": true})
}

// handleReconnectDevice drops and reloads the device handle.
func (s *Server) handleReconnectDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := deviceID(w, r)
	if !ok {
		return
	}

	if _, err := s.operator.Reconnect(r.Context(), id); err != nil {
		s.requestLogger(r).Warn("device reconnect failed", "device_id", id, "error", err)
		writeOperatorError(w, err, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"device_id": id, "connected": true})
}

func deviceID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxPathParamLen {
		writeBadRequest(w, "invalid device ID")
		return "", false
	}
	return id, true
}
