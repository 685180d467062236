package automation

import (
	"time"

	"github.com/shockzort/tion-core/internal/device"
)

// TriggerType selects how a scenario's trigger parameters are evaluated.
type TriggerType string

const (
	// TriggerTime fires inside a daily HH:MM window.
	TriggerTime TriggerType = "time"
	// TriggerSensor fires when a cached status field crosses a threshold.
	TriggerSensor TriggerType = "sensor"
)

// Known reports whether t is a supported trigger type.
func (t TriggerType) Known() bool {
	return t == TriggerTime || t == TriggerSensor
}

// Command is the action a scenario performs on its target device.
type Command string

const (
	CmdTurnOn   Command = "turn_on"
	CmdTurnOff  Command = "turn_off"
	CmdSetSpeed Command = "set_speed"
	CmdSetTemp  Command = "set_temp"
	CmdSetMode  Command = "set_mode"
)

// AllCommands returns the closed command set.
func AllCommands() []Command {
	return []Command{CmdTurnOn, CmdTurnOff, CmdSetSpeed, CmdSetTemp, CmdSetMode}
}

// Valid reports whether c belongs to the command set.
func (c Command) Valid() bool {
	switch c {
	case CmdTurnOn, CmdTurnOff, CmdSetSpeed, CmdSetTemp, CmdSetMode:
		return true
	}
	return false
}

// RequiredCapability returns the capability the target device must have
// for c, if any.
func (c Command) RequiredCapability() (device.Capability, bool) {
	switch c {
	case CmdSetTemp:
		return device.CapTemperatureControl, true
	case CmdSetMode:
		return device.CapModeControl, true
	}
	return "", false
}

// Action parameter keys with fixed meaning.
const (
	ParamDeviceID = "device_id"
	ParamCommand  = "command"
	ParamValue    = "value"
)

// Scenario is a persisted automation rule.
// This matches the scenarios table in migrations/20260301_120000_initial_schema.up.sql.
type Scenario struct {
	ID            int64          `json:"id"`
	Name          string         `json:"name"`
	TriggerType   TriggerType    `json:"trigger_type"`
	TriggerParams map[string]any `json:"trigger_params"`
	ActionParams  map[string]any `json:"action_params"`
	IsActive      bool           `json:"is_active"`

	// Execution bookkeeping. LastStatus is nil until the first run.
	LastExecuted   *time.Time `json:"last_executed,omitempty"`
	ExecutionCount int        `json:"execution_count"`
	LastStatus     *bool      `json:"last_status,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TargetDevice returns the action's device_id, or "" when absent.
func (s *Scenario) TargetDevice() string {
	id, _ := s.ActionParams[ParamDeviceID].(string) //nolint:errcheck // zero value on mismatch
	return id
}

// ActionCommand returns the action's command, or "" when absent.
func (s *Scenario) ActionCommand() Command {
	c, _ := s.ActionParams[ParamCommand].(string) //nolint:errcheck // zero value on mismatch
	return Command(c)
}

// DeepCopy creates an independent copy of the scenario.
func (s *Scenario) DeepCopy() *Scenario {
	if s == nil {
		return nil
	}
	cpy := *s
	cpy.TriggerParams = deepCopyMap(s.TriggerParams)
	cpy.ActionParams = deepCopyMap(s.ActionParams)
	if s.LastExecuted != nil {
		t := *s.LastExecuted
		cpy.LastExecuted = &t
	}
	if s.LastStatus != nil {
		b := *s.LastStatus
		cpy.LastStatus = &b
	}
	return &cpy
}

// Execution is one recorded run of a scenario.
type Execution struct {
	ID         string    `json:"id"`
	ScenarioID int64     `json:"scenario_id"`
	DeviceID   string    `json:"device_id"`
	Command    Command   `json:"command"`
	ExecutedAt time.Time `json:"executed_at"`
	Success    bool      `json:"success"`
	Detail     string    `json:"detail,omitempty"`
}

// CommandProperties maps action parameters to the property set written to
// the device. The raw parameters are passed through and the command's
// derived property is layered on top; the handle drops keys its model
// does not accept.
func CommandProperties(params map[string]any) device.Properties {
	props := make(device.Properties, len(params)+1)
	for k, v := range params {
		props[k] = v
	}

	value, hasValue := params[ParamValue]
	switch Command(stringParam(params, ParamCommand)) {
	case CmdTurnOn:
		props[device.PropState] = "on"
	case CmdTurnOff:
		props[device.PropState] = "off"
	case CmdSetSpeed:
		if hasValue {
			props[device.PropFanSpeed] = value
		}
	case CmdSetTemp:
		if hasValue {
			props[device.PropHeaterTemp] = value
		}
	case CmdSetMode:
		if hasValue {
			props[device.PropMode] = value
		}
	}
	return props
}

func stringParam(params map[string]any, key string) string {
	s, _ := params[key].(string) //nolint:errcheck // zero value on mismatch
	return s
}

// deepCopyMap creates a deep copy of a map[string]any.
// Nested maps and slices are recursively copied.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		return v
	}
}
