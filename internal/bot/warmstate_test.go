package bot

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Relic999/aester-dex/internal/position"
)

func TestWarmStateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warm.json")
	store := NewWarmStore(path)

	st := WarmState{
		Position: position.Position{
			Side:       position.SideLong,
			Size:       100,
			EntryPrice: 50000,
			OpenedAt:   1700000000000,
		},
		LastBarCloseTime: 1700000030000,
		Timestamp:        time.Now().UnixMilli(),
	}
	if err := store.Save(st); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	loaded := store.Load()
	if loaded == nil {
		t.Fatal("Load returned nil for a fresh state")
	}
	if loaded.Position != st.Position || loaded.LastBarCloseTime != st.LastBarCloseTime {
		t.Fatalf("loaded state differs: %+v vs %+v", loaded, st)
	}

	// Save-load-save reproduces identical content modulo timestamp.
	loaded.Timestamp = st.Timestamp
	if err := store.Save(*loaded); err != nil {
		t.Fatalf("second Save returned error: %v", err)
	}
	again := store.Load()
	if again == nil || *again != st {
		t.Fatalf("round trip drifted: %+v vs %+v", again, st)
	}
}

func TestWarmStateStaleDiscarded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warm.json")
	store := NewWarmStore(path)

	st := WarmState{
		Position:  position.Position{Side: position.SideShort, Size: 10},
		Timestamp: time.Now().Add(-2 * time.Hour).UnixMilli(),
	}
	data, _ := json.Marshal(st)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if loaded := store.Load(); loaded != nil {
		t.Fatalf("state older than 1h must be discarded, got %+v", loaded)
	}
}

func TestWarmStateMissingOrCorrupt(t *testing.T) {
	dir := t.TempDir()
	store := NewWarmStore(filepath.Join(dir, "missing.json"))
	if st := store.Load(); st != nil {
		t.Fatalf("missing file must load as nil, got %+v", st)
	}

	corrupt := filepath.Join(dir, "corrupt.json")
	if err := os.WriteFile(corrupt, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if st := NewWarmStore(corrupt).Load(); st != nil {
		t.Fatalf("corrupt file must load as nil, got %+v", st)
	}
}

func TestWarmStateDisabled(t *testing.T) {
	store := NewWarmStore("")
	if err := store.Save(WarmState{}); err != nil {
		t.Fatalf("disabled store Save must be a no-op, got %v", err)
	}
	if st := store.Load(); st != nil {
		t.Fatalf("disabled store Load must be nil, got %+v", st)
	}
}
