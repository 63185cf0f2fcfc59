package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/steeldragon666/abfi-platform-1-sub004/temporal"
)

// Entity version table names. One table per versioned entity type, all with
// an identical shape.
const (
	FeedstockVersionsTable             = "feedstock_versions"
	CertificateVersionsTable           = "certificate_versions"
	SupplyAgreementVersionsTable       = "supply_agreement_versions"
	BankabilityAssessmentVersionsTable = "bankability_assessment_versions"
)

const versionColumns = `version_id, entity_id, version_number, valid_from, valid_to,
	is_current, superseded_by_id, version_reason, changed_by, attributes, created_at`

// PGVersionStore implements temporal.VersionStore against one Postgres
// version table. The table name is a trusted compile-time constant, never
// caller input.
type PGVersionStore struct {
	db         *Database
	table      string
	entityType temporal.EntityType
}

func NewPGVersionStore(db *Database, table string, entityType temporal.EntityType) *PGVersionStore {
	return &PGVersionStore{db: db, table: table, entityType: entityType}
}

// NewVersionRegistry wires every entity table into a temporal registry.
func NewVersionRegistry(db *Database) *temporal.Registry {
	registry := temporal.NewRegistry()
	registry.Register(temporal.EntityFeedstock, NewPGVersionStore(db, FeedstockVersionsTable, temporal.EntityFeedstock))
	registry.Register(temporal.EntityCertificate, NewPGVersionStore(db, CertificateVersionsTable, temporal.EntityCertificate))
	registry.Register(temporal.EntitySupplyAgreement, NewPGVersionStore(db, SupplyAgreementVersionsTable, temporal.EntitySupplyAgreement))
	registry.Register(temporal.EntityBankabilityAssessment, NewPGVersionStore(db, BankabilityAssessmentVersionsTable, temporal.EntityBankabilityAssessment))
	return registry
}

func (s *PGVersionStore) scanVersion(row pgx.Row) (*temporal.EntityVersion, error) {
	var (
		v              temporal.EntityVersion
		attributesJSON []byte
		versionReason  *string
		changedBy      *string
	)
	err := row.Scan(
		&v.VersionID,
		&v.EntityID,
		&v.VersionNumber,
		&v.ValidFrom,
		&v.ValidTo,
		&v.IsCurrent,
		&v.SupersededByID,
		&versionReason,
		&changedBy,
		&attributesJSON,
		&v.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan version row failed: %w", err)
	}

	v.EntityType = s.entityType
	if versionReason != nil {
		v.VersionReason = *versionReason
	}
	if changedBy != nil {
		v.ChangedBy = *changedBy
	}
	if err := json.Unmarshal(attributesJSON, &v.Attributes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal attributes: %w", err)
	}
	return &v, nil
}

func (s *PGVersionStore) GetCurrent(ctx context.Context, entityID uuid.UUID) (*temporal.EntityVersion, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE entity_id = $1 AND is_current`, versionColumns, s.table)
	return s.scanVersion(s.db.pool.QueryRow(ctx, query, entityID))
}

func (s *PGVersionStore) GetAsOf(ctx context.Context, entityID uuid.UUID, asOf time.Time) (*temporal.EntityVersion, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE entity_id = $1
		  AND valid_from <= $2
		  AND (valid_to IS NULL OR valid_to > $2)`, versionColumns, s.table)
	return s.scanVersion(s.db.pool.QueryRow(ctx, query, entityID, asOf))
}

func (s *PGVersionStore) GetVersion(ctx context.Context, entityID uuid.UUID, versionNumber int) (*temporal.EntityVersion, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE entity_id = $1 AND version_number = $2`, versionColumns, s.table)
	return s.scanVersion(s.db.pool.QueryRow(ctx, query, entityID, versionNumber))
}

func (s *PGVersionStore) History(ctx context.Context, entityID uuid.UUID) ([]temporal.EntityVersion, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE entity_id = $1 ORDER BY version_number ASC`, versionColumns, s.table)
	rows, err := s.db.pool.Query(ctx, query, entityID)
	if err != nil {
		return nil, fmt.Errorf("history query failed: %w", err)
	}
	defer rows.Close()

	var versions []temporal.EntityVersion
	for rows.Next() {
		v, err := s.scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, *v)
	}
	return versions, rows.Err()
}

func (s *PGVersionStore) insertVersion(ctx context.Context, tx pgx.Tx, v *temporal.EntityVersion) error {
	attributesJSON, err := json.Marshal(v.Attributes)
	if err != nil {
		return fmt.Errorf("failed to marshal attributes: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`, s.table, versionColumns)
	args := []interface{}{
		v.VersionID, v.EntityID, v.VersionNumber, v.ValidFrom, v.ValidTo,
		v.IsCurrent, v.SupersededByID, v.VersionReason, v.ChangedBy, attributesJSON, v.CreatedAt,
	}
	if tx != nil {
		_, err = tx.Exec(ctx, query, args...)
	} else {
		_, err = s.db.pool.Exec(ctx, query, args...)
	}
	if err != nil {
		return fmt.Errorf("insert version failed: %w", err)
	}
	return nil
}

func (s *PGVersionStore) Insert(ctx context.Context, version *temporal.EntityVersion) error {
	return s.insertVersion(ctx, nil, version)
}

// Supersede retires old and inserts next in one transaction. The guarded
// UPDATE doubles as a compare-and-swap: if a concurrent writer already
// retired the row, zero rows match and the transaction aborts with
// temporal.ErrVersionConflict. The partial unique index on
// (entity_id) WHERE is_current backstops the invariant at the storage level.
func (s *PGVersionStore) Supersede(ctx context.Context, old, next *temporal.EntityVersion) (err error) {
	tx, err := s.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer rollbackOrCommit(ctx, tx, &err)

	retireQuery := fmt.Sprintf(`
		UPDATE %s
		SET is_current = FALSE, valid_to = $1, superseded_by_id = $2
		WHERE version_id = $3 AND is_current`, s.table)
	tag, err := tx.Exec(ctx, retireQuery, next.ValidFrom, next.VersionID, old.VersionID)
	if err != nil {
		return fmt.Errorf("retire current version failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return temporal.ErrVersionConflict
	}

	return s.insertVersion(ctx, tx, next)
}
