package covenant

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProjectSource supplies the covenant definitions and latest metrics the
// sweep needs per project.
type ProjectSource interface {
	ListProjectsWithCovenants(ctx context.Context) ([]uuid.UUID, error)
	ListActiveCovenants(ctx context.Context, projectID uuid.UUID) ([]Covenant, error)
	GetMetrics(ctx context.Context, projectID uuid.UUID) (*Metrics, error)
}

// SweepSummary reports what one compliance sweep found.
type SweepSummary struct {
	ProjectsChecked int
	ProjectsSkipped int
	Deviations      int
}

// Sweeper runs the periodic compliance check across every project with
// active covenants.
type Sweeper struct {
	projects ProjectSource
	service  *Service
	log      *zap.SugaredLogger
}

func NewSweeper(projects ProjectSource, service *Service, log *zap.SugaredLogger) *Sweeper {
	return &Sweeper{projects: projects, service: service, log: log}
}

// RunOnce checks every project with active covenants against its latest
// metrics. Projects without a metrics row are skipped; there is nothing to
// evaluate yet.
func (s *Sweeper) RunOnce(ctx context.Context) (SweepSummary, error) {
	summary := SweepSummary{}

	projectIDs, err := s.projects.ListProjectsWithCovenants(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to list projects: %w", err)
	}

	for _, projectID := range projectIDs {
		covenants, err := s.projects.ListActiveCovenants(ctx, projectID)
		if err != nil {
			return summary, fmt.Errorf("failed to load covenants for %s: %w", projectID, err)
		}

		metrics, err := s.projects.GetMetrics(ctx, projectID)
		if err != nil {
			return summary, fmt.Errorf("failed to load metrics for %s: %w", projectID, err)
		}
		if metrics == nil {
			summary.ProjectsSkipped++
			continue
		}

		results, err := s.service.RunComplianceCheck(ctx, projectID, covenants, *metrics)
		if err != nil {
			return summary, err
		}
		summary.ProjectsChecked++
		for _, result := range results {
			if result.Severity != SeverityInfo {
				summary.Deviations++
			}
		}
	}

	s.log.Infow("compliance sweep complete",
		"projectsChecked", summary.ProjectsChecked,
		"projectsSkipped", summary.ProjectsSkipped,
		"deviations", summary.Deviations)
	return summary, nil
}
