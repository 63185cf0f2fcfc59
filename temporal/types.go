package temporal

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EntityType identifies a versioned business entity family. Each type maps to
// its own version table through the Registry.
type EntityType string

const (
	EntityFeedstock             EntityType = "feedstock"
	EntityCertificate           EntityType = "certificate"
	EntitySupplyAgreement       EntityType = "supply_agreement"
	EntityBankabilityAssessment EntityType = "bankability_assessment"
)

// ParseEntityType validates a raw entity type string from an API path.
func ParseEntityType(raw string) (EntityType, error) {
	switch EntityType(raw) {
	case EntityFeedstock, EntityCertificate, EntitySupplyAgreement, EntityBankabilityAssessment:
		return EntityType(raw), nil
	default:
		return "", fmt.Errorf("unknown entity type %q", raw)
	}
}

// EntityVersion is one row in an entity's version chain. The logical entity is
// identified by EntityID, which is stable across versions; VersionID is unique
// per row. Validity is the half-open interval [ValidFrom, ValidTo), with a nil
// ValidTo marking the current version.
type EntityVersion struct {
	VersionID      uuid.UUID              `json:"versionId"`
	EntityID       uuid.UUID              `json:"entityId"`
	EntityType     EntityType             `json:"entityType"`
	VersionNumber  int                    `json:"versionNumber"`
	ValidFrom      time.Time              `json:"validFrom"`
	ValidTo        *time.Time             `json:"validTo"`
	IsCurrent      bool                   `json:"isCurrent"`
	SupersededByID *uuid.UUID             `json:"supersededById,omitempty"`
	VersionReason  string                 `json:"versionReason,omitempty"`
	ChangedBy      string                 `json:"changedBy,omitempty"`
	Attributes     map[string]interface{} `json:"attributes"`
	CreatedAt      time.Time              `json:"createdAt"`
}

// Period is the validity window of a version. To stays nil for the current
// version rather than being coerced to a sentinel date.
type Period struct {
	From time.Time  `json:"from"`
	To   *time.Time `json:"to"`
}

var (
	// ErrNoCurrentVersion is returned by CreateNewVersion when the entity has
	// no current version to supersede.
	ErrNoCurrentVersion = errors.New("no current version to supersede")

	// ErrVersionConflict is returned when a concurrent writer superseded the
	// version this writer loaded. Callers may reload and retry.
	ErrVersionConflict = errors.New("version superseded concurrently")

	// ErrUnknownEntityType is returned when no store is registered for the
	// requested entity type.
	ErrUnknownEntityType = errors.New("no version store registered for entity type")
)
