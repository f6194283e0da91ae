package automation

import (
	"errors"
	"strings"
	"testing"
)

func validTestScenario() *Scenario {
	return &Scenario{
		ID:      "scn-00000001",
		Name:    "Evening Lights",
		Enabled: true,
		Trigger: Trigger{Type: TriggerEvent},
		Logic: []LogicBlock{
			{
				ID: "blk-1",
				Conditions: []Condition{
					{ID: "cnd-1", DeviceID: "dev-aaaa1111", Property: "power", Operator: OpEquals, Value: false},
				},
				ConditionOperator: CombineAnd,
				ThenActions: []Action{
					{ID: "act-1", DeviceID: "dev-aaaa1111", Payload: map[string]any{"power": true}},
				},
			},
		},
	}
}

func TestValidateScenario(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Scenario)
		wantErr error
	}{
		{"valid", func(*Scenario) {}, nil},
		{"nil logic is valid", func(s *Scenario) { s.Logic = nil }, nil},
		{"empty name", func(s *Scenario) { s.Name = "  " }, ErrInvalidName},
		{"name too long", func(s *Scenario) { s.Name = strings.Repeat("x", maxNameLength+1) }, ErrInvalidName},
		{"description too long", func(s *Scenario) { s.Description = strings.Repeat("x", maxDescriptionLen+1) }, ErrInvalidScenario},
		{"unknown trigger type", func(s *Scenario) { s.Trigger.Type = "WEBHOOK" }, ErrInvalidTrigger},
		{"schedule without cron", func(s *Scenario) { s.Trigger = Trigger{Type: TriggerSchedule} }, ErrInvalidTrigger},
		{"schedule with cron", func(s *Scenario) { s.Trigger = Trigger{Type: TriggerSchedule, Cron: "0 22 * * *"} }, nil},
		{"unknown combinator", func(s *Scenario) { s.Logic[0].ConditionOperator = "XOR" }, ErrInvalidScenario},
		{"condition without device", func(s *Scenario) { s.Logic[0].Conditions[0].DeviceID = "" }, ErrInvalidCondition},
		{"condition unknown operator", func(s *Scenario) { s.Logic[0].Conditions[0].Operator = "MATCHES" }, ErrInvalidCondition},
		{"action without device", func(s *Scenario) { s.Logic[0].ThenActions[0].DeviceID = "" }, ErrInvalidAction},
		{"action empty payload", func(s *Scenario) { s.Logic[0].ThenActions[0].Payload = nil }, ErrInvalidAction},
		{"action negative delay", func(s *Scenario) { s.Logic[0].ThenActions[0].DelayMS = -1 }, ErrInvalidAction},
		{"action delay too long", func(s *Scenario) { s.Logic[0].ThenActions[0].DelayMS = maxDelayMS + 1 }, ErrInvalidAction},
		{"invalid else action", func(s *Scenario) {
			s.Logic[0].ElseActions = []Action{{DeviceID: "dev-bbbb2222"}}
		}, ErrInvalidAction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validTestScenario()
			tt.mutate(s)

			err := ValidateScenario(s)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateScenario() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateScenario() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestGenerateID(t *testing.T) {
	id := GenerateID()
	if !strings.HasPrefix(id, "scn-") {
		t.Errorf("GenerateID() = %q, want scn- prefix", id)
	}
	if len(id) != len("scn-")+8 {
		t.Errorf("GenerateID() length = %d, want %d", len(id), len("scn-")+8)
	}
	if id == GenerateID() {
		t.Error("GenerateID() returned duplicate IDs")
	}
}
