package lender

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/steeldragon666/abfi-platform-1-sub004/covenant"
)

// ReportStore is the persistence contract for lender reports.
type ReportStore interface {
	InsertReport(ctx context.Context, report *Report) error
	GetReport(ctx context.Context, reportID uuid.UUID) (*Report, error)
	UpdateReportStatus(ctx context.Context, reportID uuid.UUID, status ReportStatus, finalizedAt, sentAt *time.Time) error
	GetLatestReport(ctx context.Context, projectID uuid.UUID) (*Report, error)
	GetProjectReports(ctx context.Context, projectID uuid.UUID) ([]Report, error)
}

// BreachReader exposes the breach history needed for reports and dashboards.
type BreachReader interface {
	ListBreachesSince(ctx context.Context, projectID uuid.UUID, since time.Time) ([]covenant.BreachEvent, error)
	ListUnresolvedBreaches(ctx context.Context, projectID uuid.UUID) ([]covenant.BreachEvent, error)
}

// SupplyPositionProvider supplies the externally computed supply snapshot.
// Implementations return (nil, nil) when no position is available.
type SupplyPositionProvider interface {
	SupplyPosition(ctx context.Context, projectID uuid.UUID) (*SupplyPosition, error)
}

// Service aggregates covenant history and supply metrics into persisted
// monthly reports and manages their lifecycle.
type Service struct {
	reports  ReportStore
	breaches BreachReader
	supply   SupplyPositionProvider
	log      *zap.SugaredLogger
	now      func() time.Time
}

func NewService(reports ReportStore, breaches BreachReader, supply SupplyPositionProvider, log *zap.SugaredLogger) *Service {
	return &Service{
		reports:  reports,
		breaches: breaches,
		supply:   supply,
		log:      log,
		now:      time.Now,
	}
}

// GenerateMonthlyReport builds and persists a draft report for the given
// YYYY-MM month. Compliance is summarized from breach events detected on or
// after the first day of that month; the supply position defaults to zeros
// when no provider data is available.
func (s *Service) GenerateMonthlyReport(ctx context.Context, projectID uuid.UUID, reportMonth, generatedBy string) (*Report, error) {
	periodStart, err := time.Parse("2006-01", reportMonth)
	if err != nil {
		return nil, fmt.Errorf("invalid report month %q (want YYYY-MM): %w", reportMonth, err)
	}

	events, err := s.breaches.ListBreachesSince(ctx, projectID, periodStart)
	if err != nil {
		return nil, fmt.Errorf("failed to load breach history: %w", err)
	}

	summary := summarizeCompliance(events)

	position := SupplyPosition{}
	if s.supply != nil {
		provided, err := s.supply.SupplyPosition(ctx, projectID)
		if err != nil {
			return nil, fmt.Errorf("failed to load supply position: %w", err)
		}
		if provided != nil {
			position = *provided
		}
	}

	report := &Report{
		ReportID:           uuid.New(),
		ProjectID:          projectID,
		ReportMonth:        reportMonth,
		ReportYear:         periodStart.Year(),
		ReportQuarter:      (int(periodStart.Month())-1)/3 + 1,
		Status:             StatusDraft,
		GeneratedAt:        s.now().UTC(),
		GeneratedBy:        generatedBy,
		CovenantCompliance: summary,
		SupplyPosition:     position,
	}
	if err := s.reports.InsertReport(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to insert report: %w", err)
	}

	s.log.Infow("generated monthly report",
		"projectId", projectID,
		"reportMonth", reportMonth,
		"compliant", summary.Compliant,
		"breaches", summary.Breaches,
		"warnings", summary.Warnings)
	return report, nil
}

// summarizeCompliance counts breach-grade vs warning-grade events. A period
// is compliant when no breach or critical event was recorded in it.
func summarizeCompliance(events []covenant.BreachEvent) ComplianceSummary {
	summary := ComplianceSummary{}
	for _, event := range events {
		switch event.Severity {
		case covenant.SeverityBreach, covenant.SeverityCritical:
			summary.Breaches++
		default:
			summary.Warnings++
		}
	}
	summary.Compliant = summary.Breaches == 0
	return summary
}

// FinalizeReport moves a draft report to finalized, stamping the time.
// Finalizing anything other than a draft fails with ErrInvalidTransition.
func (s *Service) FinalizeReport(ctx context.Context, reportID uuid.UUID) (*Report, error) {
	report, err := s.reports.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, ErrReportNotFound
	}
	if report.Status != StatusDraft {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, report.Status, StatusFinalized)
	}

	now := s.now().UTC()
	if err := s.reports.UpdateReportStatus(ctx, reportID, StatusFinalized, &now, nil); err != nil {
		return nil, err
	}
	report.Status = StatusFinalized
	report.FinalizedAt = &now

	s.log.Infow("finalized report", "reportId", reportID)
	return report, nil
}

// MarkReportSent stamps the sent date and moves the report to its terminal
// state. Repeating the call leaves the same end state.
func (s *Service) MarkReportSent(ctx context.Context, reportID uuid.UUID) (*Report, error) {
	report, err := s.reports.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, ErrReportNotFound
	}

	now := s.now().UTC()
	sentAt := &now
	if report.SentAt != nil {
		sentAt = report.SentAt
	}
	if err := s.reports.UpdateReportStatus(ctx, reportID, StatusSent, report.FinalizedAt, sentAt); err != nil {
		return nil, err
	}
	report.Status = StatusSent
	report.SentAt = sentAt

	s.log.Infow("marked report sent", "reportId", reportID)
	return report, nil
}

// GetLatestReport returns the most recent report for the project by report
// month, or (nil, nil).
func (s *Service) GetLatestReport(ctx context.Context, projectID uuid.UUID) (*Report, error) {
	return s.reports.GetLatestReport(ctx, projectID)
}

// GetProjectReports returns all reports for the project, report month descending.
func (s *Service) GetProjectReports(ctx context.Context, projectID uuid.UUID) ([]Report, error) {
	return s.reports.GetProjectReports(ctx, projectID)
}

// GetActiveAlerts projects unresolved breach events into the uniform alert
// shape, ordered by severity then recency.
func (s *Service) GetActiveAlerts(ctx context.Context, projectID uuid.UUID) ([]Alert, error) {
	events, err := s.breaches.ListUnresolvedBreaches(ctx, projectID)
	if err != nil {
		return nil, err
	}

	alerts := make([]Alert, 0, len(events))
	for _, event := range events {
		alerts = append(alerts, Alert{
			AlertID:        event.BreachID,
			ProjectID:      event.ProjectID,
			AlertType:      "covenant_breach",
			Severity:       event.Severity,
			Title:          fmt.Sprintf("Covenant %s: %s", event.CovenantType, event.Severity),
			Message: fmt.Sprintf("%s at %.2f against threshold %.2f (%d%% variance)",
				event.CovenantType, event.ActualValue, event.ThresholdValue, event.VariancePercent),
			DetectedAt:     event.DetectedAt,
			LenderNotified: event.LenderNotified,
		})
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		if alerts[i].Severity.Rank() != alerts[j].Severity.Rank() {
			return alerts[i].Severity.Rank() > alerts[j].Severity.Rank()
		}
		return alerts[i].DetectedAt.After(alerts[j].DetectedAt)
	})
	return alerts, nil
}

// GetLenderDashboardData composes alerts, the last 30 days of breach history
// and the latest report into one read-only view.
func (s *Service) GetLenderDashboardData(ctx context.Context, projectID uuid.UUID) (*DashboardData, error) {
	alerts, err := s.GetActiveAlerts(ctx, projectID)
	if err != nil {
		return nil, err
	}

	since := s.now().UTC().AddDate(0, 0, -30)
	recent, err := s.breaches.ListBreachesSince(ctx, projectID, since)
	if err != nil {
		return nil, err
	}

	latest, err := s.reports.GetLatestReport(ctx, projectID)
	if err != nil {
		return nil, err
	}

	return &DashboardData{
		Alerts:         alerts,
		RecentBreaches: recent,
		LatestReport:   latest,
	}, nil
}
