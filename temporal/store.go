package temporal

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// VersionStore is the persistence contract for one versioned entity table.
// Read methods return (nil, nil) when no matching version exists; absence is a
// normal outcome, not an error.
type VersionStore interface {
	// GetCurrent returns the version with is_current set for the entity.
	GetCurrent(ctx context.Context, entityID uuid.UUID) (*EntityVersion, error)

	// GetAsOf returns the version whose validity interval contains asOf,
	// using [valid_from, valid_to) semantics.
	GetAsOf(ctx context.Context, entityID uuid.UUID, asOf time.Time) (*EntityVersion, error)

	// GetVersion returns a specific version by number.
	GetVersion(ctx context.Context, entityID uuid.UUID, versionNumber int) (*EntityVersion, error)

	// History returns every version of the entity ascending by version number.
	History(ctx context.Context, entityID uuid.UUID) ([]EntityVersion, error)

	// Insert writes a brand-new version row (used for version 1).
	Insert(ctx context.Context, version *EntityVersion) error

	// Supersede atomically retires old (is_current=false, valid_to and
	// superseded_by_id stamped from next) and inserts next. It must fail with
	// ErrVersionConflict if old is no longer the current version.
	Supersede(ctx context.Context, old, next *EntityVersion) error
}

// Registry maps entity types to their version stores. Adding an entity type
// means registering one more store, not touching every engine method.
type Registry struct {
	stores map[EntityType]VersionStore
}

func NewRegistry() *Registry {
	return &Registry{stores: make(map[EntityType]VersionStore)}
}

func (r *Registry) Register(entityType EntityType, store VersionStore) {
	r.stores[entityType] = store
}

func (r *Registry) Lookup(entityType EntityType) (VersionStore, bool) {
	store, ok := r.stores[entityType]
	return store, ok
}

// Types returns the registered entity types, for diagnostics.
func (r *Registry) Types() []EntityType {
	types := make([]EntityType, 0, len(r.stores))
	for t := range r.stores {
		types = append(types, t)
	}
	return types
}
