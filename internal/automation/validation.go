package automation

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const maxNameLength = 100

//go:embed schemas/*.json
var schemaFS embed.FS

// Validator checks scenario parameters against the bundled JSON Schemas.
// It is safe for concurrent use once constructed.
type Validator struct {
	action   *jsonschema.Schema
	triggers map[TriggerType]*jsonschema.Schema
}

// NewValidator compiles the action and trigger schemas.
func NewValidator() (*Validator, error) {
	c := jsonschema.NewCompiler()

	files := map[string]string{
		"action.json":         "schemas/action.json",
		"trigger_time.json":   "schemas/trigger_time.json",
		"trigger_sensor.json": "schemas/trigger_sensor.json",
	}
	for name, path := range files {
		data, err := schemaFS.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading schema %s: %w", path, err)
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("parsing schema %s: %w", path, err)
		}
		if err := c.AddResource(name, doc); err != nil {
			return nil, fmt.Errorf("adding schema %s: %w", name, err)
		}
	}

	v := &Validator{triggers: make(map[TriggerType]*jsonschema.Schema, 2)}
	var err error
	if v.action, err = c.Compile("action.json"); err != nil {
		return nil, fmt.Errorf("compiling action schema: %w", err)
	}
	if v.triggers[TriggerTime], err = c.Compile("trigger_time.json"); err != nil {
		return nil, fmt.Errorf("compiling time trigger schema: %w", err)
	}
	if v.triggers[TriggerSensor], err = c.Compile("trigger_sensor.json"); err != nil {
		return nil, fmt.Errorf("compiling sensor trigger schema: %w", err)
	}
	return v, nil
}

// ValidateScenario checks the name, trigger and action of s.
func (v *Validator) ValidateScenario(s *Scenario) error {
	if s == nil {
		return ErrInvalidScenario
	}
	if err := ValidateName(s.Name); err != nil {
		return err
	}
	if err := v.ValidateTrigger(s.TriggerType, s.TriggerParams); err != nil {
		return err
	}
	return v.ValidateAction(s.ActionParams)
}

// ValidateTrigger checks trigger parameters against the schema for kind.
func (v *Validator) ValidateTrigger(kind TriggerType, params map[string]any) error {
	sch, ok := v.triggers[kind]
	if !ok {
		return fmt.Errorf("%w: unknown trigger type %q", ErrInvalidTrigger, kind)
	}
	if err := validateInstance(sch, params); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTrigger, err)
	}
	return nil
}

// ValidateAction checks action parameters against the action schema.
func (v *Validator) ValidateAction(params map[string]any) error {
	if err := validateInstance(v.action, params); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAction, err)
	}
	return nil
}

// validateInstance normalises Go values (ints, typed maps) to the JSON
// data model the schema library expects before validating.
func validateInstance(sch *jsonschema.Schema, params map[string]any) error {
	if params == nil {
		params = map[string]any{}
	}
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encoding parameters: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decoding parameters: %w", err)
	}
	return sch.Validate(inst)
}

// ValidateName checks if a scenario name is valid.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// ValidActionShape is the structural check applied at execution time:
// a non-empty device_id and a command from the closed set.
func ValidActionShape(params map[string]any) bool {
	if stringParam(params, ParamDeviceID) == "" {
		return false
	}
	return Command(stringParam(params, ParamCommand)).Valid()
}
