package lender

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/steeldragon666/abfi-platform-1-sub004/covenant"
)

// ReportStatus is the lifecycle state of a lender report. Transitions run
// strictly forward: draft -> finalized -> sent.
type ReportStatus string

const (
	StatusDraft     ReportStatus = "draft"
	StatusFinalized ReportStatus = "finalized"
	StatusSent      ReportStatus = "sent"
)

// ComplianceSummary is the covenant position embedded in a report. Compliant
// means no breach or critical events were recorded in the period.
type ComplianceSummary struct {
	Compliant bool `json:"compliant"`
	Breaches  int  `json:"breaches"`
	Warnings  int  `json:"warnings"`
}

// SupplyPosition is the supply-side snapshot embedded in a report. It is
// computed by an external collaborator and defaults to zeros when none is
// available.
type SupplyPosition struct {
	ContractedVolume float64 `json:"contractedVolume"`
	DeliveredVolume  float64 `json:"deliveredVolume"`
	Tier1Coverage    float64 `json:"tier1Coverage"`
	Tier2Coverage    float64 `json:"tier2Coverage"`
	SupplierCount    int     `json:"supplierCount"`
}

// Report is a persisted monthly lender report. Immutable once sent.
type Report struct {
	ReportID           uuid.UUID         `json:"reportId"`
	ProjectID          uuid.UUID         `json:"projectId"`
	ReportMonth        string            `json:"reportMonth"` // YYYY-MM
	ReportYear         int               `json:"reportYear"`
	ReportQuarter      int               `json:"reportQuarter"`
	Status             ReportStatus      `json:"status"`
	GeneratedAt        time.Time         `json:"generatedAt"`
	GeneratedBy        string            `json:"generatedBy,omitempty"`
	CovenantCompliance ComplianceSummary `json:"covenantCompliance"`
	SupplyPosition     SupplyPosition    `json:"supplyPosition"`
	FinalizedAt        *time.Time        `json:"finalizedAt,omitempty"`
	SentAt             *time.Time        `json:"sentAt,omitempty"`
	PDFURL             string            `json:"pdfUrl,omitempty"`
	EvidencePackURL    string            `json:"evidencePackUrl,omitempty"`
}

// Alert is the uniform dashboard projection of an unresolved breach event.
type Alert struct {
	AlertID        uuid.UUID         `json:"alertId"`
	ProjectID      uuid.UUID         `json:"projectId"`
	AlertType      string            `json:"alertType"`
	Severity       covenant.Severity `json:"severity"`
	Title          string            `json:"title"`
	Message        string            `json:"message"`
	DetectedAt     time.Time         `json:"detectedAt"`
	LenderNotified bool              `json:"lenderNotified"`
}

// DashboardData composes the lender-facing view of a project. Read-only
// aggregation, no side effects.
type DashboardData struct {
	Alerts         []Alert                 `json:"alerts"`
	RecentBreaches []covenant.BreachEvent  `json:"recentBreaches"`
	LatestReport   *Report                 `json:"latestReport,omitempty"`
}

var (
	// ErrReportNotFound is returned for lifecycle operations on a missing report.
	ErrReportNotFound = errors.New("report not found")

	// ErrInvalidTransition is returned when finalizing a report that is not a draft.
	ErrInvalidTransition = errors.New("invalid report status transition")
)
