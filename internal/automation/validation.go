package automation

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Validation constants.
const (
	maxNameLength     = 100
	maxDescriptionLen = 500
	maxBlocks         = 50
	maxConditions     = 20
	maxActions        = 50
	maxPayloadKeys    = 20
	maxDelayMS        = 300000 // 5 minutes
)

// Pre-computed validation sets for O(1) lookups.
var (
	validTriggerTypes map[TriggerType]struct{}
	validOperators    map[Operator]struct{}
	validCombinators  map[Combinator]struct{}
)

func init() {
	validTriggerTypes = map[TriggerType]struct{}{
		TriggerManual:   {},
		TriggerSchedule: {},
		TriggerEvent:    {},
	}
	validOperators = map[Operator]struct{}{
		OpEquals:   {},
		OpGreater:  {},
		OpLess:     {},
		OpContains: {},
	}
	validCombinators = map[Combinator]struct{}{
		CombineAnd: {},
		CombineOr:  {},
	}
}

// ValidateScenario performs comprehensive validation on a scenario.
// Returns an error describing the first validation failure found.
func ValidateScenario(s *Scenario) error {
	if s == nil {
		return ErrInvalidScenario
	}

	if err := ValidateName(s.Name); err != nil {
		return err
	}

	if len(s.Description) > maxDescriptionLen {
		return fmt.Errorf("%w: description exceeds %d characters", ErrInvalidScenario, maxDescriptionLen)
	}

	if err := ValidateTrigger(s.Trigger); err != nil {
		return err
	}

	if len(s.Logic) > maxBlocks {
		return fmt.Errorf("%w: exceeds maximum of %d logic blocks", ErrInvalidScenario, maxBlocks)
	}
	for i, block := range s.Logic {
		if err := validateBlock(block); err != nil {
			return fmt.Errorf("block[%d]: %w", i, err)
		}
	}

	return nil
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

// ValidateTrigger checks a trigger definition. SCHEDULE triggers must
// carry a cron expression; the scheduler rejects unparseable ones when
// registering the job.
func ValidateTrigger(t Trigger) error {
	if _, ok := validTriggerTypes[t.Type]; !ok {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidTrigger, t.Type)
	}
	if t.Type == TriggerSchedule && strings.TrimSpace(t.Cron) == "" {
		return fmt.Errorf("%w: SCHEDULE trigger requires a cron expression", ErrInvalidTrigger)
	}
	return nil
}

func validateBlock(b LogicBlock) error {
	if _, ok := validCombinators[b.ConditionOperator]; !ok {
		return fmt.Errorf("%w: unknown condition operator %q", ErrInvalidScenario, b.ConditionOperator)
	}
	if len(b.Conditions) > maxConditions {
		return fmt.Errorf("%w: exceeds maximum of %d conditions", ErrInvalidCondition, maxConditions)
	}
	for i, c := range b.Conditions {
		if err := ValidateCondition(c); err != nil {
			return fmt.Errorf("condition[%d]: %w", i, err)
		}
	}
	if len(b.ThenActions)+len(b.ElseActions) > maxActions {
		return fmt.Errorf("%w: exceeds maximum of %d actions", ErrInvalidAction, maxActions)
	}
	for i, a := range b.ThenActions {
		if err := ValidateAction(a); err != nil {
			return fmt.Errorf("then[%d]: %w", i, err)
		}
	}
	for i, a := range b.ElseActions {
		if err := ValidateAction(a); err != nil {
			return fmt.Errorf("else[%d]: %w", i, err)
		}
	}
	return nil
}

// ValidateCondition checks a logic block condition.
func ValidateCondition(c Condition) error {
	if c.DeviceID == "" {
		return fmt.Errorf("%w: device_id is required", ErrInvalidCondition)
	}
	if _, ok := validOperators[c.Operator]; !ok {
		return fmt.Errorf("%w: unknown operator %q", ErrInvalidCondition, c.Operator)
	}
	return nil
}

// ValidateAction checks a logic block action.
func ValidateAction(a Action) error {
	if a.DeviceID == "" {
		return fmt.Errorf("%w: device_id is required", ErrInvalidAction)
	}
	if len(a.Payload) == 0 {
		return fmt.Errorf("%w: payload cannot be empty", ErrInvalidAction)
	}
	if len(a.Payload) > maxPayloadKeys {
		return fmt.Errorf("%w: payload exceeds %d keys", ErrInvalidAction, maxPayloadKeys)
	}
	if a.DelayMS < 0 || a.DelayMS > maxDelayMS {
		return fmt.Errorf("%w: delay_ms must be 0-%d", ErrInvalidAction, maxDelayMS)
	}
	return nil
}

// GenerateID creates a new scenario identifier.
func GenerateID() string {
	return "scn-" + uuid.NewString()[:8]
}
