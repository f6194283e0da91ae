package eventlog

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/aurihome/aurihome-core/internal/infrastructure/database"
	_ "github.com/aurihome/aurihome-core/migrations" // registers embedded schema
)

// newTestRepository opens a fresh migrated database for a test.
func newTestRepository(t *testing.T) *SQLiteRepository {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() {
		db.Close() //nolint:errcheck // Test cleanup
	})

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating database: %v", err)
	}

	return NewSQLiteRepository(db.DB)
}

func TestAppend_AssignsIDAndTimestamp(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	entry := &Entry{
		Type:     TypeDeviceState,
		Message:  "Kitchen Lamp power changed",
		DeviceID: "dev-00000001",
		Data:     map[string]any{"power": true},
	}
	if err := repo.Append(ctx, entry); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	if entry.ID == "" {
		t.Error("Append() did not assign an ID")
	}
	if entry.Timestamp.IsZero() {
		t.Error("Append() did not assign a timestamp")
	}

	got, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("List() returned %d entries, want 1", len(got))
	}
	if got[0].ID != entry.ID {
		t.Errorf("listed ID = %q, want %q", got[0].ID, entry.ID)
	}
	if got[0].DeviceID != "dev-00000001" {
		t.Errorf("listed DeviceID = %q, want dev-00000001", got[0].DeviceID)
	}
	if power, ok := got[0].Data["power"].(bool); !ok || !power {
		t.Errorf("listed Data = %v, want power=true", got[0].Data)
	}
}

func TestAppend_RejectsUnknownType(t *testing.T) {
	repo := newTestRepository(t)

	err := repo.Append(context.Background(), &Entry{
		Type:    EventType("GOSSIP"),
		Message: "not a real event",
	})
	if !errors.Is(err, ErrInvalidType) {
		t.Errorf("Append() error = %v, want ErrInvalidType", err)
	}
}

func TestAppend_EvictsBeyondRetention(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	// Append 105 entries with increasing sequence numbers in the message.
	for i := 0; i < Retention+5; i++ {
		entry := &Entry{
			Type:    TypeSystem,
			Message: fmt.Sprintf("event %d", i),
		}
		if err := repo.Append(ctx, entry); err != nil {
			t.Fatalf("Append(%d) error = %v", i, err)
		}
	}

	n, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != Retention {
		t.Fatalf("Count() = %d, want %d", n, Retention)
	}

	entries, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != Retention {
		t.Fatalf("List() returned %d entries, want %d", len(entries), Retention)
	}

	// Newest first: the most recent append is at the head, and the five
	// oldest entries (0 through 4) have been evicted.
	if entries[0].Message != fmt.Sprintf("event %d", Retention+4) {
		t.Errorf("newest entry = %q, want event %d", entries[0].Message, Retention+4)
	}
	if entries[len(entries)-1].Message != "event 5" {
		t.Errorf("oldest retained entry = %q, want event 5", entries[len(entries)-1].Message)
	}
}

func TestList_NewestFirstByInsertion(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	// Identical timestamps: ordering must still follow insertion order.
	now := time.Now().UTC().Truncate(time.Second)
	for _, msg := range []string{"first", "second", "third"} {
		entry := &Entry{Type: TypeSystem, Message: msg, Timestamp: now}
		if err := repo.Append(ctx, entry); err != nil {
			t.Fatalf("Append(%s) error = %v", msg, err)
		}
	}

	entries, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{"third", "second", "first"}
	for i, w := range want {
		if entries[i].Message != w {
			t.Errorf("entries[%d].Message = %q, want %q", i, entries[i].Message, w)
		}
	}
}

func TestList_Filters(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	seed := []Entry{
		{Type: TypeDeviceState, Message: "lamp on", DeviceID: "dev-aaaa1111"},
		{Type: TypeDeviceState, Message: "lock engaged", DeviceID: "dev-bbbb2222"},
		{Type: TypeScenarioTriggered, Message: "movie night triggered"},
		{Type: TypeError, Message: "thermostat unreachable", DeviceID: "dev-aaaa1111"},
	}
	for i := range seed {
		if err := repo.Append(ctx, &seed[i]); err != nil {
			t.Fatalf("Append(%d) error = %v", i, err)
		}
	}

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{}, 4},
		{"by type", Filter{Type: TypeDeviceState}, 2},
		{"by device", Filter{DeviceID: "dev-aaaa1111"}, 2},
		{"type and device", Filter{Type: TypeError, DeviceID: "dev-aaaa1111"}, 1},
		{"no match", Filter{DeviceID: "dev-cccc3333"}, 0},
		{"limited", Filter{Limit: 2}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("List() returned %d entries, want %d", len(got), tt.want)
			}
		})
	}
}

func TestList_EmptyLogReturnsEmptySlice(t *testing.T) {
	repo := newTestRepository(t)

	got, err := repo.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if got == nil {
		t.Error("List() returned nil, want empty slice")
	}
	if len(got) != 0 {
		t.Errorf("List() returned %d entries, want 0", len(got))
	}
}

func TestDeleteAll(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		entry := &Entry{Type: TypeSystem, Message: "startup"}
		if err := repo.Append(ctx, entry); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	if err := repo.DeleteAll(ctx); err != nil {
		t.Fatalf("DeleteAll() error = %v", err)
	}

	n, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 0 {
		t.Errorf("Count() = %d after DeleteAll, want 0", n)
	}
}
