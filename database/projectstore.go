package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/steeldragon666/abfi-platform-1-sub004/covenant"
	"github.com/steeldragon666/abfi-platform-1-sub004/lender"
)

// ProjectStore reads project covenant definitions and computed supply
// metrics. The sweep job and the lender service consume it; it also
// implements lender.SupplyPositionProvider.
type ProjectStore struct {
	db *Database
}

func NewProjectStore(db *Database) *ProjectStore {
	return &ProjectStore{db: db}
}

const listProjectsWithCovenantsQuery = `
	SELECT DISTINCT project_id
	FROM project_covenants
	WHERE active`

const listActiveCovenantsQuery = `
	SELECT covenant_type, threshold_value
	FROM project_covenants
	WHERE project_id = $1 AND active
	ORDER BY covenant_type`

const getMetricsQuery = `
	SELECT tier1_coverage, tier2_coverage, hhi, supply_shortfall, supplier_count
	FROM project_metrics
	WHERE project_id = $1`

const getSupplyPositionQuery = `
	SELECT contracted_volume, delivered_volume, tier1_coverage, tier2_coverage, supplier_count
	FROM project_metrics
	WHERE project_id = $1`

// ListProjectsWithCovenants returns every project id with at least one
// active covenant.
func (s *ProjectStore) ListProjectsWithCovenants(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.db.pool.Query(ctx, listProjectsWithCovenantsQuery)
	if err != nil {
		return nil, fmt.Errorf("list covenant projects query failed: %w", err)
	}
	defer rows.Close()

	var projectIDs []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan project id failed: %w", err)
		}
		projectIDs = append(projectIDs, id)
	}
	return projectIDs, rows.Err()
}

// ListActiveCovenants returns the project's active threshold rules.
func (s *ProjectStore) ListActiveCovenants(ctx context.Context, projectID uuid.UUID) ([]covenant.Covenant, error) {
	rows, err := s.db.pool.Query(ctx, listActiveCovenantsQuery, projectID)
	if err != nil {
		return nil, fmt.Errorf("list covenants query failed: %w", err)
	}
	defer rows.Close()

	var covenants []covenant.Covenant
	for rows.Next() {
		var covenantType string
		var threshold float64
		if err := rows.Scan(&covenantType, &threshold); err != nil {
			return nil, fmt.Errorf("scan covenant failed: %w", err)
		}
		covenants = append(covenants, covenant.Covenant{
			Type:      covenant.CovenantType(covenantType),
			Threshold: threshold,
		})
	}
	return covenants, rows.Err()
}

// GetMetrics returns the latest computed supply metrics for the project, or
// (nil, nil) when none were computed yet.
func (s *ProjectStore) GetMetrics(ctx context.Context, projectID uuid.UUID) (*covenant.Metrics, error) {
	var metrics covenant.Metrics
	err := s.db.pool.QueryRow(ctx, getMetricsQuery, projectID).Scan(
		&metrics.Tier1Coverage,
		&metrics.Tier2Coverage,
		&metrics.HHI,
		&metrics.SupplyShortfall,
		&metrics.SupplierCount,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get metrics query failed: %w", err)
	}
	return &metrics, nil
}

// SupplyPosition returns the supply snapshot embedded in lender reports, or
// (nil, nil) when no metrics row exists.
func (s *ProjectStore) SupplyPosition(ctx context.Context, projectID uuid.UUID) (*lender.SupplyPosition, error) {
	var (
		position      lender.SupplyPosition
		supplierCount float64
	)
	err := s.db.pool.QueryRow(ctx, getSupplyPositionQuery, projectID).Scan(
		&position.ContractedVolume,
		&position.DeliveredVolume,
		&position.Tier1Coverage,
		&position.Tier2Coverage,
		&supplierCount,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get supply position query failed: %w", err)
	}
	position.SupplierCount = int(supplierCount)
	return &position, nil
}
