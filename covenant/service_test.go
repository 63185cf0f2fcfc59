package covenant

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type fakeBreachStore struct {
	inserted []BreachEvent
	resolved map[uuid.UUID]bool
}

func newFakeBreachStore() *fakeBreachStore {
	return &fakeBreachStore{resolved: make(map[uuid.UUID]bool)}
}

func (f *fakeBreachStore) InsertBreach(_ context.Context, event *BreachEvent) error {
	f.inserted = append(f.inserted, *event)
	return nil
}

func (f *fakeBreachStore) ResolveBreach(_ context.Context, breachID uuid.UUID, _, _ string, _ time.Time) error {
	if f.resolved[breachID] {
		return ErrBreachNotFound
	}
	f.resolved[breachID] = true
	return nil
}

func TestRunComplianceCheck_RecordsDeviationsOnly(t *testing.T) {
	store := newFakeBreachStore()
	service := NewService(store, zap.NewNop().Sugar())
	projectID := uuid.New()

	covenants := []Covenant{
		{Type: MinTier1Coverage, Threshold: 80}, // actual 90: compliant, info -> not recorded
		{Type: MaxHHI, Threshold: 50},           // actual 49: compliant near threshold -> recorded
		{Type: MinSupplierCount, Threshold: 10}, // actual 6: 40% under -> breach, recorded
	}
	metrics := Metrics{Tier1Coverage: 90, HHI: 49, SupplierCount: 6}

	results, err := service.RunComplianceCheck(context.Background(), projectID, covenants, metrics)
	if err != nil {
		t.Fatalf("RunComplianceCheck failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if len(store.inserted) != 2 {
		t.Fatalf("expected 2 recorded events, got %d", len(store.inserted))
	}

	near := store.inserted[0]
	if near.CovenantType != MaxHHI || near.Severity != SeverityWarning || near.ProjectID != projectID {
		t.Errorf("unexpected near-threshold event: %+v", near)
	}
	breach := store.inserted[1]
	if breach.CovenantType != MinSupplierCount || breach.Severity != SeverityBreach {
		t.Errorf("unexpected breach event: %+v", breach)
	}
	if breach.Resolved || breach.LenderNotified {
		t.Errorf("new events must start unresolved and unnotified: %+v", breach)
	}
	if breach.BreachedAt.IsZero() || breach.DetectedAt.IsZero() {
		t.Errorf("event timestamps not stamped: %+v", breach)
	}
}

func TestResolveBreach_ResolvesOnce(t *testing.T) {
	store := newFakeBreachStore()
	service := NewService(store, zap.NewNop().Sugar())
	breachID := uuid.New()

	if err := service.ResolveBreach(context.Background(), breachID, "replaced supplier", "analyst"); err != nil {
		t.Fatalf("first resolve failed: %v", err)
	}
	err := service.ResolveBreach(context.Background(), breachID, "again", "analyst")
	if !errors.Is(err, ErrBreachNotFound) {
		t.Errorf("second resolve should fail with ErrBreachNotFound, got %v", err)
	}
}

type fakeProjectSource struct {
	covenants map[uuid.UUID][]Covenant
	metrics   map[uuid.UUID]*Metrics
}

func (f *fakeProjectSource) ListProjectsWithCovenants(_ context.Context) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(f.covenants))
	for id := range f.covenants {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeProjectSource) ListActiveCovenants(_ context.Context, projectID uuid.UUID) ([]Covenant, error) {
	return f.covenants[projectID], nil
}

func (f *fakeProjectSource) GetMetrics(_ context.Context, projectID uuid.UUID) (*Metrics, error) {
	return f.metrics[projectID], nil
}

func TestSweeper_RunOnce(t *testing.T) {
	withMetrics := uuid.New()
	withoutMetrics := uuid.New()

	source := &fakeProjectSource{
		covenants: map[uuid.UUID][]Covenant{
			withMetrics:    {{Type: MinTier1Coverage, Threshold: 80}, {Type: MaxHHI, Threshold: 50}},
			withoutMetrics: {{Type: MinSupplierCount, Threshold: 5}},
		},
		metrics: map[uuid.UUID]*Metrics{
			withMetrics: {Tier1Coverage: 40, HHI: 20}, // coverage 50% under -> critical
		},
	}

	store := newFakeBreachStore()
	sweeper := NewSweeper(source, NewService(store, zap.NewNop().Sugar()), zap.NewNop().Sugar())

	summary, err := sweeper.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if summary.ProjectsChecked != 1 || summary.ProjectsSkipped != 1 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if summary.Deviations != 1 {
		t.Errorf("expected 1 deviation, got %d", summary.Deviations)
	}
	if len(store.inserted) != 1 || store.inserted[0].Severity != SeverityCritical {
		t.Errorf("expected one critical event recorded, got %+v", store.inserted)
	}
}
