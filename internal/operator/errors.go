package operator

import "errors"

var (
	// ErrNotLoaded is returned when an operation references a device with
	// no live handle. Callers should load or reconnect it first.
	ErrNotLoaded = errors.New("operator: device not loaded")

	// ErrValidation is returned for setter arguments outside their range.
	// Such calls never reach the device.
	ErrValidation = errors.New("operator: invalid argument")

	// ErrLoadFailed is returned when every connect attempt failed.
	ErrLoadFailed = errors.New("operator: device load failed")

	// ErrScenarioNotFound is returned by ExecuteScenario for unknown ids.
	ErrScenarioNotFound = errors.New("operator: scenario not found")

	// ErrDeviceNotFound is returned by Reconnect for unregistered ids.
	ErrDeviceNotFound = errors.New("operator: device not found")
)
