package covenant

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BreachStore is the persistence contract for covenant breach events.
type BreachStore interface {
	InsertBreach(ctx context.Context, event *BreachEvent) error
	ResolveBreach(ctx context.Context, breachID uuid.UUID, notes, resolvedBy string, resolvedAt time.Time) error
}

// Service runs compliance checks and persists the resulting breach events.
// Evaluation itself stays in Check; recording is the explicit separate step.
type Service struct {
	breaches BreachStore
	log      *zap.SugaredLogger
	now      func() time.Time
}

func NewService(breaches BreachStore, log *zap.SugaredLogger) *Service {
	return &Service{
		breaches: breaches,
		log:      log,
		now:      time.Now,
	}
}

// RunComplianceCheck evaluates the covenants and records a breach event for
// every result that is non-compliant or sits near its threshold (severity
// above info). Returns the full classified results in input order.
func (s *Service) RunComplianceCheck(ctx context.Context, projectID uuid.UUID, covenants []Covenant, metrics Metrics) ([]Result, error) {
	results := Check(covenants, metrics)

	now := s.now().UTC()
	for _, result := range results {
		if result.Severity == SeverityInfo {
			continue
		}

		event := &BreachEvent{
			BreachID:        uuid.New(),
			ProjectID:       projectID,
			CovenantType:    result.Type,
			Severity:        result.Severity,
			ActualValue:     result.ActualValue,
			ThresholdValue:  result.ThresholdValue,
			VariancePercent: result.VariancePercent,
			BreachedAt:      now,
			DetectedAt:      now,
		}
		if err := s.breaches.InsertBreach(ctx, event); err != nil {
			return nil, fmt.Errorf("failed to record breach for %s: %w", result.Type, err)
		}

		s.log.Warnw("covenant deviation recorded",
			"projectId", projectID,
			"covenantType", result.Type,
			"severity", result.Severity,
			"actual", result.ActualValue,
			"threshold", result.ThresholdValue,
			"variancePercent", result.VariancePercent)
	}

	return results, nil
}

// ResolveBreach marks a breach event resolved. Breach events resolve at most
// once; resolving an already-resolved or unknown breach fails with
// ErrBreachNotFound.
func (s *Service) ResolveBreach(ctx context.Context, breachID uuid.UUID, notes, resolvedBy string) error {
	if err := s.breaches.ResolveBreach(ctx, breachID, notes, resolvedBy, s.now().UTC()); err != nil {
		return err
	}
	s.log.Infow("breach resolved", "breachId", breachID, "resolvedBy", resolvedBy)
	return nil
}
