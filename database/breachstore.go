package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/steeldragon666/abfi-platform-1-sub004/covenant"
)

// BreachStore persists covenant breach events. Implements covenant.BreachStore
// and lender.BreachReader.
type BreachStore struct {
	db *Database
}

func NewBreachStore(db *Database) *BreachStore {
	return &BreachStore{db: db}
}

const breachColumns = `breach_id, project_id, covenant_type, severity, actual_value,
	threshold_value, variance_percent, breached_at, detected_at, resolved,
	resolution_notes, resolved_by, resolved_at, lender_notified`

const insertBreachQuery = `
	INSERT INTO covenant_breaches (
		breach_id, project_id, covenant_type, severity, actual_value,
		threshold_value, variance_percent, breached_at, detected_at, lender_notified
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

const resolveBreachQuery = `
	UPDATE covenant_breaches
	SET resolved = TRUE, resolution_notes = $2, resolved_by = $3, resolved_at = $4
	WHERE breach_id = $1 AND NOT resolved`

const listBreachesSinceQuery = `
	SELECT ` + breachColumns + `
	FROM covenant_breaches
	WHERE project_id = $1 AND detected_at >= $2
	ORDER BY detected_at DESC`

const listUnresolvedBreachesQuery = `
	SELECT ` + breachColumns + `
	FROM covenant_breaches
	WHERE project_id = $1 AND NOT resolved
	ORDER BY
		CASE severity
			WHEN 'critical' THEN 3
			WHEN 'breach' THEN 2
			WHEN 'warning' THEN 1
			ELSE 0
		END DESC,
		detected_at DESC`

func (s *BreachStore) InsertBreach(ctx context.Context, event *covenant.BreachEvent) error {
	_, err := s.db.pool.Exec(ctx, insertBreachQuery,
		event.BreachID,
		event.ProjectID,
		string(event.CovenantType),
		string(event.Severity),
		event.ActualValue,
		event.ThresholdValue,
		event.VariancePercent,
		event.BreachedAt,
		event.DetectedAt,
		event.LenderNotified,
	)
	if err != nil {
		return fmt.Errorf("insert breach failed: %w", err)
	}
	return nil
}

func (s *BreachStore) ResolveBreach(ctx context.Context, breachID uuid.UUID, notes, resolvedBy string, resolvedAt time.Time) error {
	tag, err := s.db.pool.Exec(ctx, resolveBreachQuery, breachID, notes, resolvedBy, resolvedAt)
	if err != nil {
		return fmt.Errorf("resolve breach failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return covenant.ErrBreachNotFound
	}
	return nil
}

func scanBreach(row pgx.Row) (*covenant.BreachEvent, error) {
	var (
		event           covenant.BreachEvent
		covenantType    string
		severity        string
		resolutionNotes *string
		resolvedBy      *string
	)
	err := row.Scan(
		&event.BreachID,
		&event.ProjectID,
		&covenantType,
		&severity,
		&event.ActualValue,
		&event.ThresholdValue,
		&event.VariancePercent,
		&event.BreachedAt,
		&event.DetectedAt,
		&event.Resolved,
		&resolutionNotes,
		&resolvedBy,
		&event.ResolvedAt,
		&event.LenderNotified,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan breach row failed: %w", err)
	}

	event.CovenantType = covenant.CovenantType(covenantType)
	event.Severity = covenant.Severity(severity)
	if resolutionNotes != nil {
		event.ResolutionNotes = *resolutionNotes
	}
	if resolvedBy != nil {
		event.ResolvedBy = *resolvedBy
	}
	return &event, nil
}

func (s *BreachStore) listBreaches(ctx context.Context, query string, args ...interface{}) ([]covenant.BreachEvent, error) {
	rows, err := s.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list breaches query failed: %w", err)
	}
	defer rows.Close()

	var events []covenant.BreachEvent
	for rows.Next() {
		event, err := scanBreach(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *event)
	}
	return events, rows.Err()
}

func (s *BreachStore) ListBreachesSince(ctx context.Context, projectID uuid.UUID, since time.Time) ([]covenant.BreachEvent, error) {
	return s.listBreaches(ctx, listBreachesSinceQuery, projectID, since)
}

func (s *BreachStore) ListUnresolvedBreaches(ctx context.Context, projectID uuid.UUID) ([]covenant.BreachEvent, error) {
	return s.listBreaches(ctx, listUnresolvedBreachesQuery, projectID)
}
