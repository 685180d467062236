package automation

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Trigger parameter keys.
const (
	ParamStart      = "start"
	ParamEnd        = "end"
	ParamSensor     = "sensor"
	ParamThreshold  = "threshold"
	ParamComparison = "comparison"
)

// Comparison is the operator of a sensor trigger.
type Comparison string

const (
	CompareGreater Comparison = "gt"
	CompareLess    Comparison = "lt"
	CompareEqual   Comparison = "eq"
)

// Apply evaluates value <op> threshold. Unknown operators never match.
func (c Comparison) Apply(value, threshold float64) bool {
	switch c {
	case CompareGreater:
		return value > threshold
	case CompareLess:
		return value < threshold
	case CompareEqual:
		return value == threshold
	}
	return false
}

// SensorFields lists the status fields a sensor trigger may watch.
var SensorFields = []string{"fan_speed", "heater_temp", "in_temp", "out_temp", "filter_remain"}

// TimeWindow is a daily window in seconds since midnight, inclusive at
// both ends. A window whose start is after its end wraps past midnight.
type TimeWindow struct {
	Start int
	End   int
}

// ParseTimeWindow reads start/end "HH:MM" parameters.
func ParseTimeWindow(params map[string]any) (TimeWindow, error) {
	start, err := parseClock(stringParam(params, ParamStart))
	if err != nil {
		return TimeWindow{}, fmt.Errorf("%w: start: %v", ErrInvalidTrigger, err)
	}
	end, err := parseClock(stringParam(params, ParamEnd))
	if err != nil {
		return TimeWindow{}, fmt.Errorf("%w: end: %v", ErrInvalidTrigger, err)
	}
	return TimeWindow{Start: start, End: end}, nil
}

// Contains reports whether the wall-clock time of t falls in the window.
func (w TimeWindow) Contains(t time.Time) bool {
	now := t.Hour()*3600 + t.Minute()*60 + t.Second()
	if w.Start <= w.End {
		return w.Start <= now && now <= w.End
	}
	return now >= w.Start || now <= w.End
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("%q is not HH:MM", s)
	}
	return t.Hour()*3600 + t.Minute()*60, nil
}

// SensorTrigger fires when a device's cached status field compares true
// against the threshold.
type SensorTrigger struct {
	DeviceID   string
	Sensor     string
	Threshold  float64
	Comparison Comparison
}

// ParseSensorTrigger reads device_id, sensor, threshold and comparison.
// The comparison defaults to gt.
func ParseSensorTrigger(params map[string]any) (SensorTrigger, error) {
	st := SensorTrigger{
		DeviceID:   stringParam(params, ParamDeviceID),
		Sensor:     stringParam(params, ParamSensor),
		Comparison: CompareGreater,
	}
	if st.DeviceID == "" {
		return SensorTrigger{}, fmt.Errorf("%w: device_id is required", ErrInvalidTrigger)
	}
	if st.Sensor == "" {
		return SensorTrigger{}, fmt.Errorf("%w: sensor is required", ErrInvalidTrigger)
	}

	threshold, ok := ToFloat(params[ParamThreshold])
	if !ok {
		return SensorTrigger{}, fmt.Errorf("%w: threshold must be numeric", ErrInvalidTrigger)
	}
	st.Threshold = threshold

	if c := stringParam(params, ParamComparison); c != "" {
		st.Comparison = Comparison(c)
	}
	return st, nil
}

// ToFloat converts a loosely typed numeric value. Numeric strings are
// accepted since device readings arrive as text on some firmware.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}
