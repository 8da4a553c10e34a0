package repo

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestBoltRepo(t *testing.T) IntentRepo {
	t.Helper()
	r, err := NewBoltIntentRepo(filepath.Join(t.TempDir(), "intents.db"))
	if err != nil {
		t.Fatalf("failed to open bolt repo: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestBoltIntentRepo(t *testing.T) {
	runIntentRepoContract(t, newTestBoltRepo)
}

func TestBoltIntentRepoSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intents.db")
	ctx := context.Background()

	r, err := NewBoltIntentRepo(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	in := newPending("pref-persist", time.Now())
	if err := r.Create(ctx, in); err != nil {
		t.Fatalf("create: %v", err)
	}
	r.Close()

	r, err = NewBoltIntentRepo(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer r.Close()

	got, err := r.FindByReference(ctx, "pref-persist")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.ID != in.ID {
		t.Fatalf("expected %s, got %s", in.ID, got.ID)
	}
}

func TestBoltIntentRepoHealth(t *testing.T) {
	r := newTestBoltRepo(t)
	if err := r.Create(context.Background(), newPending("pref-h", time.Now())); err != nil {
		t.Fatalf("create: %v", err)
	}
	stats := r.Health(context.Background())
	if stats["status"] != "up" || stats["driver"] != "bolt" || stats["intents"] != "1" {
		t.Fatalf("unexpected health %v", stats)
	}
}
