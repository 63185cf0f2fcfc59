package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/steeldragon666/abfi-platform-1-sub004/lender"
)

// ReportStore persists lender reports. Implements lender.ReportStore.
type ReportStore struct {
	db *Database
}

func NewReportStore(db *Database) *ReportStore {
	return &ReportStore{db: db}
}

const reportColumns = `report_id, project_id, report_month, report_year, report_quarter,
	status, generated_at, generated_by, covenant_compliance, supply_position,
	finalized_at, sent_at, pdf_url, evidence_pack_url`

const insertReportQuery = `
	INSERT INTO lender_reports (` + reportColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

const getReportQuery = `
	SELECT ` + reportColumns + `
	FROM lender_reports
	WHERE report_id = $1`

const updateReportStatusQuery = `
	UPDATE lender_reports
	SET status = $2, finalized_at = $3, sent_at = $4
	WHERE report_id = $1`

const getLatestReportQuery = `
	SELECT ` + reportColumns + `
	FROM lender_reports
	WHERE project_id = $1
	ORDER BY report_month DESC
	LIMIT 1`

const getProjectReportsQuery = `
	SELECT ` + reportColumns + `
	FROM lender_reports
	WHERE project_id = $1
	ORDER BY report_month DESC`

func (s *ReportStore) InsertReport(ctx context.Context, report *lender.Report) error {
	complianceJSON, err := json.Marshal(report.CovenantCompliance)
	if err != nil {
		return fmt.Errorf("failed to marshal compliance summary: %w", err)
	}
	positionJSON, err := json.Marshal(report.SupplyPosition)
	if err != nil {
		return fmt.Errorf("failed to marshal supply position: %w", err)
	}

	_, err = s.db.pool.Exec(ctx, insertReportQuery,
		report.ReportID,
		report.ProjectID,
		report.ReportMonth,
		report.ReportYear,
		report.ReportQuarter,
		string(report.Status),
		report.GeneratedAt,
		report.GeneratedBy,
		complianceJSON,
		positionJSON,
		report.FinalizedAt,
		report.SentAt,
		report.PDFURL,
		report.EvidencePackURL,
	)
	if err != nil {
		return fmt.Errorf("insert report failed: %w", err)
	}
	return nil
}

func scanReport(row pgx.Row) (*lender.Report, error) {
	var (
		report         lender.Report
		status         string
		generatedBy    *string
		complianceJSON []byte
		positionJSON   []byte
		pdfURL         *string
		evidenceURL    *string
	)
	err := row.Scan(
		&report.ReportID,
		&report.ProjectID,
		&report.ReportMonth,
		&report.ReportYear,
		&report.ReportQuarter,
		&status,
		&report.GeneratedAt,
		&generatedBy,
		&complianceJSON,
		&positionJSON,
		&report.FinalizedAt,
		&report.SentAt,
		&pdfURL,
		&evidenceURL,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan report row failed: %w", err)
	}

	report.Status = lender.ReportStatus(status)
	if generatedBy != nil {
		report.GeneratedBy = *generatedBy
	}
	if pdfURL != nil {
		report.PDFURL = *pdfURL
	}
	if evidenceURL != nil {
		report.EvidencePackURL = *evidenceURL
	}
	if err := json.Unmarshal(complianceJSON, &report.CovenantCompliance); err != nil {
		return nil, fmt.Errorf("failed to unmarshal compliance summary: %w", err)
	}
	if err := json.Unmarshal(positionJSON, &report.SupplyPosition); err != nil {
		return nil, fmt.Errorf("failed to unmarshal supply position: %w", err)
	}
	return &report, nil
}

func (s *ReportStore) GetReport(ctx context.Context, reportID uuid.UUID) (*lender.Report, error) {
	return scanReport(s.db.pool.QueryRow(ctx, getReportQuery, reportID))
}

func (s *ReportStore) UpdateReportStatus(ctx context.Context, reportID uuid.UUID, status lender.ReportStatus, finalizedAt, sentAt *time.Time) error {
	tag, err := s.db.pool.Exec(ctx, updateReportStatusQuery, reportID, string(status), finalizedAt, sentAt)
	if err != nil {
		return fmt.Errorf("update report status failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return lender.ErrReportNotFound
	}
	return nil
}

func (s *ReportStore) GetLatestReport(ctx context.Context, projectID uuid.UUID) (*lender.Report, error) {
	return scanReport(s.db.pool.QueryRow(ctx, getLatestReportQuery, projectID))
}

func (s *ReportStore) GetProjectReports(ctx context.Context, projectID uuid.UUID) ([]lender.Report, error) {
	rows, err := s.db.pool.Query(ctx, getProjectReportsQuery, projectID)
	if err != nil {
		return nil, fmt.Errorf("list reports query failed: %w", err)
	}
	defer rows.Close()

	var reports []lender.Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *report)
	}
	return reports, rows.Err()
}
