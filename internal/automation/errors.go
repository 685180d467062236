package automation

import "errors"

// Domain errors for the automation package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, automation.ErrScenarioNotFound) {
//	    // handle not found case
//	}
var (
	// ErrScenarioNotFound is returned when a scenario ID does not exist.
	ErrScenarioNotFound = errors.New("scenario: not found")

	// ErrInvalidScenario is returned when scenario validation fails.
	ErrInvalidScenario = errors.New("scenario: invalid")

	// ErrInvalidName is returned when a scenario name is empty or too long.
	ErrInvalidName = errors.New("scenario: invalid name")

	// ErrInvalidTrigger is returned when trigger parameters do not match
	// the trigger type.
	ErrInvalidTrigger = errors.New("scenario: invalid trigger")

	// ErrInvalidAction is returned when action parameters are malformed.
	ErrInvalidAction = errors.New("scenario: invalid action")
)
