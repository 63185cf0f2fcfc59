package temporal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// testEngine returns an engine over a fresh MemStore with a deterministic
// clock advancing one minute per call.
func testEngine(t *testing.T) (*Engine, *MemStore) {
	t.Helper()
	store := NewMemStore()
	registry := NewRegistry()
	registry.Register(EntityFeedstock, store)

	engine := NewEngine(registry, zap.NewNop().Sugar())
	current := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	engine.now = func() time.Time {
		current = current.Add(time.Minute)
		return current
	}
	return engine, store
}

func TestEngine_CreateEntity(t *testing.T) {
	engine, _ := testEngine(t)
	ctx := context.Background()

	v1, err := engine.CreateEntity(ctx, EntityFeedstock, map[string]interface{}{"volume": 1000.0}, "initial registration", "supplier-portal")
	if err != nil {
		t.Fatalf("CreateEntity failed: %v", err)
	}
	if v1.VersionNumber != 1 || !v1.IsCurrent || v1.ValidTo != nil {
		t.Errorf("unexpected initial version: %+v", v1)
	}

	current, err := engine.GetCurrent(ctx, EntityFeedstock, v1.EntityID)
	if err != nil {
		t.Fatalf("GetCurrent failed: %v", err)
	}
	if current == nil || current.VersionID != v1.VersionID {
		t.Errorf("GetCurrent did not return the initial version")
	}
}

func TestEngine_SequentialSupersessionKeepsOneCurrent(t *testing.T) {
	engine, _ := testEngine(t)
	ctx := context.Background()

	v1, err := engine.CreateEntity(ctx, EntityFeedstock, map[string]interface{}{"volume": 1000.0}, "initial", "system")
	if err != nil {
		t.Fatalf("CreateEntity failed: %v", err)
	}

	const supersessions = 5
	for i := 0; i < supersessions; i++ {
		attrs := map[string]interface{}{"volume": 1000.0 + float64(i+1)*100}
		newID, err := engine.CreateNewVersion(ctx, EntityFeedstock, v1.EntityID, attrs, "volume revision", "system")
		if err != nil {
			t.Fatalf("CreateNewVersion %d failed: %v", i+1, err)
		}

		history, err := engine.GetHistory(ctx, EntityFeedstock, v1.EntityID)
		if err != nil {
			t.Fatalf("GetHistory failed: %v", err)
		}
		if len(history) != i+2 {
			t.Fatalf("expected %d versions, got %d", i+2, len(history))
		}

		currentCount := 0
		for _, v := range history {
			if v.IsCurrent {
				currentCount++
				if v.VersionID != newID {
					t.Errorf("current version is not the newest one")
				}
			}
		}
		if currentCount != 1 {
			t.Fatalf("after supersession %d: %d current versions, want exactly 1", i+1, currentCount)
		}

		current, err := engine.GetCurrent(ctx, EntityFeedstock, v1.EntityID)
		if err != nil {
			t.Fatalf("GetCurrent failed: %v", err)
		}
		if current == nil || current.VersionID != newID || current.VersionNumber != i+2 {
			t.Errorf("GetCurrent mismatch after supersession %d: %+v", i+1, current)
		}
	}
}

func TestEngine_ChainLinksAndIntervals(t *testing.T) {
	engine, _ := testEngine(t)
	ctx := context.Background()

	v1, err := engine.CreateEntity(ctx, EntityFeedstock, map[string]interface{}{"status": "draft"}, "initial", "system")
	if err != nil {
		t.Fatalf("CreateEntity failed: %v", err)
	}
	if _, err := engine.CreateNewVersion(ctx, EntityFeedstock, v1.EntityID, map[string]interface{}{"status": "active"}, "activation", "system"); err != nil {
		t.Fatalf("CreateNewVersion failed: %v", err)
	}

	history, err := engine.GetHistory(ctx, EntityFeedstock, v1.EntityID)
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 versions, got %d", len(history))
	}

	old, next := history[0], history[1]
	if old.ValidTo == nil || !old.ValidTo.Equal(next.ValidFrom) {
		t.Errorf("no-gap invariant violated: old.ValidTo=%v next.ValidFrom=%v", old.ValidTo, next.ValidFrom)
	}
	if old.SupersededByID == nil || *old.SupersededByID != next.VersionID {
		t.Errorf("supersededById link broken: %+v", old.SupersededByID)
	}
	if old.IsCurrent {
		t.Errorf("superseded version still marked current")
	}

	// As-of inside the old interval returns the old version; as-of at the
	// boundary returns the successor (upper bound exclusive).
	inside := old.ValidFrom.Add(old.ValidTo.Sub(old.ValidFrom) / 2)
	got, err := engine.GetAsOf(ctx, EntityFeedstock, v1.EntityID, inside)
	if err != nil {
		t.Fatalf("GetAsOf failed: %v", err)
	}
	if got == nil || got.VersionNumber != 1 {
		t.Errorf("GetAsOf(inside v1) = %+v, want version 1", got)
	}

	got, err = engine.GetAsOf(ctx, EntityFeedstock, v1.EntityID, *old.ValidTo)
	if err != nil {
		t.Fatalf("GetAsOf failed: %v", err)
	}
	if got == nil || got.VersionNumber != 2 {
		t.Errorf("GetAsOf(at boundary) = %+v, want version 2", got)
	}

	// Before the entity existed: normal not-found, not an error.
	got, err = engine.GetAsOf(ctx, EntityFeedstock, v1.EntityID, old.ValidFrom.Add(-time.Hour))
	if err != nil {
		t.Fatalf("GetAsOf failed: %v", err)
	}
	if got != nil {
		t.Errorf("GetAsOf before first version should be nil, got %+v", got)
	}
}

func TestEngine_CreateNewVersionWithoutCurrent(t *testing.T) {
	engine, _ := testEngine(t)

	_, err := engine.CreateNewVersion(context.Background(), EntityFeedstock, uuid.New(), map[string]interface{}{}, "r", "u")
	if !errors.Is(err, ErrNoCurrentVersion) {
		t.Errorf("expected ErrNoCurrentVersion, got %v", err)
	}
}

func TestEngine_UnknownEntityType(t *testing.T) {
	engine, _ := testEngine(t)

	_, err := engine.GetCurrent(context.Background(), EntityCertificate, uuid.New())
	if !errors.Is(err, ErrUnknownEntityType) {
		t.Errorf("expected ErrUnknownEntityType, got %v", err)
	}
}

func TestMemStore_SupersedeConflict(t *testing.T) {
	engine, store := testEngine(t)
	ctx := context.Background()

	v1, err := engine.CreateEntity(ctx, EntityFeedstock, map[string]interface{}{"volume": 1.0}, "initial", "system")
	if err != nil {
		t.Fatalf("CreateEntity failed: %v", err)
	}
	if _, err := engine.CreateNewVersion(ctx, EntityFeedstock, v1.EntityID, map[string]interface{}{"volume": 2.0}, "r", "u"); err != nil {
		t.Fatalf("CreateNewVersion failed: %v", err)
	}

	// A writer holding the stale v1 snapshot must lose the race.
	stale := *v1
	next := &EntityVersion{
		VersionID:     uuid.New(),
		EntityID:      v1.EntityID,
		EntityType:    EntityFeedstock,
		VersionNumber: 2,
		ValidFrom:     time.Now().UTC(),
		IsCurrent:     true,
		Attributes:    map[string]interface{}{"volume": 3.0},
	}
	if err := store.Supersede(ctx, &stale, next); !errors.Is(err, ErrVersionConflict) {
		t.Errorf("expected ErrVersionConflict for stale supersede, got %v", err)
	}
}
