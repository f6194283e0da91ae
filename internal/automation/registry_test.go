package automation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// mockRepository is an in-memory Repository for registry and engine tests.
type mockRepository struct {
	mu        sync.Mutex
	scenarios map[string]*Scenario

	lastRunCalls int
}

func newMockRepository() *mockRepository {
	return &mockRepository{scenarios: make(map[string]*Scenario)}
}

func (m *mockRepository) GetByID(_ context.Context, id string) (*Scenario, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scenarios[id]
	if !ok {
		return nil, ErrScenarioNotFound
	}
	return s.DeepCopy(), nil
}

func (m *mockRepository) List(_ context.Context) ([]Scenario, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	scenarios := make([]Scenario, 0, len(m.scenarios))
	for _, s := range m.scenarios {
		scenarios = append(scenarios, *s.DeepCopy())
	}
	return scenarios, nil
}

func (m *mockRepository) ListByTrigger(_ context.Context, triggerType TriggerType) ([]Scenario, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var scenarios []Scenario
	for _, s := range m.scenarios {
		if s.Trigger.Type == triggerType {
			scenarios = append(scenarios, *s.DeepCopy())
		}
	}
	return scenarios, nil
}

func (m *mockRepository) Create(_ context.Context, scn *Scenario) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.scenarios[scn.ID]; exists {
		return ErrScenarioExists
	}
	m.scenarios[scn.ID] = scn.DeepCopy()
	return nil
}

func (m *mockRepository) Update(_ context.Context, scn *Scenario) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.scenarios[scn.ID]; !ok {
		return ErrScenarioNotFound
	}
	m.scenarios[scn.ID] = scn.DeepCopy()
	return nil
}

func (m *mockRepository) UpdateLastRun(_ context.Context, id string, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scenarios[id]
	if !ok {
		return ErrScenarioNotFound
	}
	ts := t
	s.LastRun = &ts
	m.lastRunCalls++
	return nil
}

func (m *mockRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.scenarios[id]; !ok {
		return ErrScenarioNotFound
	}
	delete(m.scenarios, id)
	return nil
}

func (m *mockRepository) DeleteAll(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scenarios = make(map[string]*Scenario)
	return nil
}

func (m *mockRepository) lastRunOf(id string) *time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.scenarios[id]; ok {
		return s.LastRun
	}
	return nil
}

func setupRegistry(t *testing.T) (*Registry, *mockRepository) {
	t.Helper()
	repo := newMockRepository()
	return NewRegistry(repo), repo
}

func TestRegistryCreate_GeneratesID(t *testing.T) {
	reg, repo := setupRegistry(t)

	scn := validTestScenario()
	scn.ID = ""
	if err := reg.Create(context.Background(), scn); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if scn.ID == "" {
		t.Fatal("Create() did not assign an ID")
	}
	if _, err := repo.GetByID(context.Background(), scn.ID); err != nil {
		t.Errorf("scenario not persisted: %v", err)
	}
	if reg.Count() != 1 {
		t.Errorf("Count() = %d, want 1", reg.Count())
	}
}

func TestRegistryCreate_RejectsInvalid(t *testing.T) {
	reg, _ := setupRegistry(t)

	scn := validTestScenario()
	scn.Name = ""
	err := reg.Create(context.Background(), scn)
	if !errors.Is(err, ErrInvalidName) {
		t.Errorf("Create() error = %v, want ErrInvalidName", err)
	}
	if reg.Count() != 0 {
		t.Errorf("Count() = %d after rejected create, want 0", reg.Count())
	}
}

func TestRegistryGet_ReturnsCopy(t *testing.T) {
	reg, _ := setupRegistry(t)
	ctx := context.Background()

	scn := validTestScenario()
	if err := reg.Create(ctx, scn); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := reg.Get(ctx, scn.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	got.Logic[0].ThenActions[0].Payload["power"] = false

	again, err := reg.Get(ctx, scn.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if again.Logic[0].ThenActions[0].Payload["power"] != true {
		t.Error("mutation of returned scenario leaked into cache")
	}
}

func TestRegistryGet_NotFound(t *testing.T) {
	reg, _ := setupRegistry(t)

	_, err := reg.Get(context.Background(), "scn-missing1")
	if !errors.Is(err, ErrScenarioNotFound) {
		t.Errorf("Get() error = %v, want ErrScenarioNotFound", err)
	}
}

func TestRegistryListEnabledByTrigger(t *testing.T) {
	reg, _ := setupRegistry(t)
	ctx := context.Background()

	event := validTestScenario()
	event.ID = "scn-event001"
	event.Name = "Event One"

	disabled := validTestScenario()
	disabled.ID = "scn-event002"
	disabled.Name = "Event Two"
	disabled.Enabled = false

	manual := validTestScenario()
	manual.ID = "scn-manual01"
	manual.Name = "Manual One"
	manual.Trigger = Trigger{Type: TriggerManual}

	for _, s := range []*Scenario{event, disabled, manual} {
		if err := reg.Create(ctx, s); err != nil {
			t.Fatalf("Create(%s) error = %v", s.ID, err)
		}
	}

	got, err := reg.ListEnabledByTrigger(ctx, TriggerEvent)
	if err != nil {
		t.Fatalf("ListEnabledByTrigger() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "scn-event001" {
		t.Errorf("ListEnabledByTrigger() = %v, want only scn-event001", got)
	}
}

func TestRegistryTouchLastRun(t *testing.T) {
	reg, repo := setupRegistry(t)
	ctx := context.Background()

	scn := validTestScenario()
	if err := reg.Create(ctx, scn); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	ts := time.Now().UTC().Truncate(time.Second)
	if err := reg.TouchLastRun(ctx, scn.ID, ts); err != nil {
		t.Fatalf("TouchLastRun() error = %v", err)
	}

	if got := repo.lastRunOf(scn.ID); got == nil || !got.Equal(ts) {
		t.Errorf("repository last run = %v, want %v", got, ts)
	}

	cached, err := reg.Get(ctx, scn.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if cached.LastRun == nil || !cached.LastRun.Equal(ts) {
		t.Errorf("cached last run = %v, want %v", cached.LastRun, ts)
	}
}

func TestRegistryUpdate_RefreshesCache(t *testing.T) {
	reg, _ := setupRegistry(t)
	ctx := context.Background()

	scn := validTestScenario()
	if err := reg.Create(ctx, scn); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	scn.Name = "Renamed"
	scn.Enabled = false
	if err := reg.Update(ctx, scn); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := reg.Get(ctx, scn.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != "Renamed" || got.Enabled {
		t.Errorf("Get() after update = %+v, want renamed and disabled", got)
	}
}

func TestRegistryReset(t *testing.T) {
	reg, _ := setupRegistry(t)
	ctx := context.Background()

	if err := reg.Create(ctx, validTestScenario()); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := reg.Reset(ctx); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if reg.Count() != 0 {
		t.Errorf("Count() = %d after reset, want 0", reg.Count())
	}
}

func TestRegistryRefreshCache(t *testing.T) {
	repo := newMockRepository()
	seed := validTestScenario()
	if err := repo.Create(context.Background(), seed); err != nil {
		t.Fatalf("seeding repository: %v", err)
	}

	reg := NewRegistry(repo)
	if reg.Count() != 0 {
		t.Fatalf("Count() = %d before refresh, want 0", reg.Count())
	}

	if err := reg.RefreshCache(context.Background()); err != nil {
		t.Fatalf("RefreshCache() error = %v", err)
	}
	if reg.Count() != 1 {
		t.Errorf("Count() = %d after refresh, want 1", reg.Count())
	}
}
