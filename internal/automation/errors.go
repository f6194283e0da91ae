package automation

import "errors"

// Domain errors for the automation package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, automation.ErrScenarioNotFound) {
//	    // handle not found case
//	}
var (
	// ErrScenarioNotFound is returned when a scenario ID does not exist.
	ErrScenarioNotFound = errors.New("automation: scenario not found")

	// ErrScenarioExists is returned when creating a scenario with an ID that already exists.
	ErrScenarioExists = errors.New("automation: scenario already exists")

	// ErrInvalidScenario is returned when scenario validation fails.
	ErrInvalidScenario = errors.New("automation: invalid scenario")

	// ErrInvalidName is returned when a scenario name is empty or too long.
	ErrInvalidName = errors.New("automation: invalid name")

	// ErrInvalidTrigger is returned when a trigger definition is invalid.
	ErrInvalidTrigger = errors.New("automation: invalid trigger")

	// ErrInvalidCondition is returned when a logic block condition is invalid.
	ErrInvalidCondition = errors.New("automation: invalid condition")

	// ErrInvalidAction is returned when a logic block action is invalid.
	ErrInvalidAction = errors.New("automation: invalid action")
)
