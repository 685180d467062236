package operator

import (
	"time"

	"github.com/shockzort/tion-core/internal/automation"
	"github.com/shockzort/tion-core/internal/device"
)

// DeviceStatus is the last known state of one device. When Error is set
// the other fields hold placeholder values, not a stale reading.
type DeviceStatus struct {
	DeviceID     string    `json:"device_id"`
	State        string    `json:"state"`
	FanSpeed     int       `json:"fan_speed"`
	HeaterState  string    `json:"heater_status"`
	HeaterTemp   float64   `json:"heater_temp"`
	Mode         string    `json:"mode"`
	InTemp       float64   `json:"in_temp"`
	OutTemp      float64   `json:"out_temp"`
	FilterRemain float64   `json:"filter_remain"`
	Sound        string    `json:"sound"`
	Light        string    `json:"light"`
	LastUpdated  time.Time `json:"last_updated"`
	Error        string    `json:"error,omitempty"`
}

// OK reports whether the status holds a real reading.
func (s DeviceStatus) OK() bool {
	return s.Error == ""
}

// Numeric returns a numeric field by its JSON name, for sensor triggers.
func (s DeviceStatus) Numeric(field string) (float64, bool) {
	switch field {
	case device.PropFanSpeed:
		return float64(s.FanSpeed), true
	case device.PropHeaterTemp:
		return s.HeaterTemp, true
	case device.PropInTemp:
		return s.InTemp, true
	case device.PropOutTemp:
		return s.OutTemp, true
	case device.PropFilterRemain:
		return s.FilterRemain, true
	}
	return 0, false
}

// StatusFromProperties maps a device reading onto a DeviceStatus,
// filling defaults for missing keys.
func StatusFromProperties(id string, props device.Properties, now time.Time) DeviceStatus {
	return DeviceStatus{
		DeviceID:     id,
		State:        text(props, device.PropState, "unknown"),
		FanSpeed:     int(number(props, device.PropFanSpeed)),
		HeaterState:  text(props, device.PropHeater, "off"),
		HeaterTemp:   number(props, device.PropHeaterTemp),
		Mode:         text(props, device.PropMode, "outside"),
		InTemp:       number(props, device.PropInTemp),
		OutTemp:      number(props, device.PropOutTemp),
		FilterRemain: number(props, device.PropFilterRemain),
		Sound:        text(props, device.PropSound, "off"),
		Light:        text(props, device.PropLight, "off"),
		LastUpdated:  now,
	}
}

// ErrorStatus is stored when a device could not be polled.
func ErrorStatus(id string, err error, now time.Time) DeviceStatus {
	return DeviceStatus{
		DeviceID:    id,
		State:       "error",
		HeaterState: "error",
		Mode:        "unknown",
		Sound:       "off",
		Light:       "off",
		LastUpdated: now,
		Error:       err.Error(),
	}
}

func text(props device.Properties, key, fallback string) string {
	if s, ok := props[key].(string); ok && s != "" {
		return s
	}
	return fallback
}

func number(props device.Properties, key string) float64 {
	f, _ := automation.ToFloat(props[key])
	return f
}
