package automation

import "time"

// Scenario is a named automation unit. When triggered, its logic blocks
// are evaluated in order against current device state and the matching
// action lists are executed.
type Scenario struct {
	// Identity
	ID   string `json:"id"`
	Name string `json:"name"`

	// Description (optional)
	Description string `json:"description,omitempty"`

	// Disabled scenarios are skipped by every trigger path.
	Enabled bool `json:"enabled"`

	// What causes this scenario to be evaluated.
	Trigger Trigger `json:"trigger"`

	// Logic blocks, evaluated in array order.
	Logic []LogicBlock `json:"logic"`

	// LastRun is set after every evaluation pass, fired or not.
	LastRun *time.Time `json:"last_run,omitempty"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TriggerType classifies what starts a scenario evaluation.
type TriggerType string

const (
	TriggerManual   TriggerType = "MANUAL"
	TriggerSchedule TriggerType = "SCHEDULE"
	TriggerEvent    TriggerType = "EVENT"
)

// Trigger describes how a scenario is started. Cron is required for
// SCHEDULE triggers. DeviceEvent optionally names the device a scenario
// author considers the trigger source; firing is still decided solely by
// the conditions inside the logic blocks.
type Trigger struct {
	Type        TriggerType `json:"type"`
	Cron        string      `json:"cron,omitempty"`
	DeviceEvent *string     `json:"device_event,omitempty"`
}

// LogicBlock is one condition group plus its then/else action lists.
type LogicBlock struct {
	ID                string      `json:"id"`
	Conditions        []Condition `json:"conditions"`
	ConditionOperator Combinator  `json:"condition_operator"`
	ThenActions       []Action    `json:"then_actions"`
	ElseActions       []Action    `json:"else_actions"`
}

// Combinator joins a block's condition results.
type Combinator string

const (
	CombineAnd Combinator = "AND"
	CombineOr  Combinator = "OR"
)

// Operator compares a device attribute against a condition's value.
type Operator string

const (
	OpEquals   Operator = "EQUALS"
	OpGreater  Operator = "GREATER"
	OpLess     Operator = "LESS"
	OpContains Operator = "CONTAINS"
)

// Condition references exactly one device's one attribute. Property
// defaults to "power" when empty.
type Condition struct {
	ID       string   `json:"id"`
	DeviceID string   `json:"device_id"`
	Property string   `json:"property,omitempty"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
}

// Action is a state patch applied to one device, optionally delayed.
// A delay serializes with subsequent actions in the same block.
type Action struct {
	ID       string         `json:"id"`
	DeviceID string         `json:"device_id"`
	Payload  map[string]any `json:"payload"`
	DelayMS  int            `json:"delay_ms,omitempty"`
}

// DeepCopy creates a complete independent copy of the Scenario.
// All slice and map fields are cloned so modifications to the copy
// do not affect the original. This is essential for cache isolation.
func (s *Scenario) DeepCopy() *Scenario {
	if s == nil {
		return nil
	}

	cpy := *s

	if s.Trigger.DeviceEvent != nil {
		v := *s.Trigger.DeviceEvent
		cpy.Trigger.DeviceEvent = &v
	}
	if s.LastRun != nil {
		t := *s.LastRun
		cpy.LastRun = &t
	}

	if s.Logic != nil {
		cpy.Logic = make([]LogicBlock, len(s.Logic))
		for i, block := range s.Logic {
			cpy.Logic[i] = block.deepCopy()
		}
	}

	return &cpy
}

func (b LogicBlock) deepCopy() LogicBlock {
	cpy := b
	if b.Conditions != nil {
		cpy.Conditions = make([]Condition, len(b.Conditions))
		for i, c := range b.Conditions {
			cpy.Conditions[i] = c
			cpy.Conditions[i].Value = deepCopyValue(c.Value)
		}
	}
	cpy.ThenActions = deepCopyActions(b.ThenActions)
	cpy.ElseActions = deepCopyActions(b.ElseActions)
	return cpy
}

func deepCopyActions(actions []Action) []Action {
	if actions == nil {
		return nil
	}
	cpy := make([]Action, len(actions))
	for i, a := range actions {
		cpy[i] = a
		cpy[i].Payload = deepCopyMap(a.Payload)
	}
	return cpy
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

// deepCopyValue recursively copies a value, handling nested maps and slices.
func deepCopyValue(v any) any {
	if v == nil {
		return nil
	}
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
		return v // Primitives are immutable
	}
}
