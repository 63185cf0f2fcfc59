package temporal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Engine answers point-in-time and current-state queries over versioned
// entities and performs the supersession transaction. Entity-type dispatch
// goes through the Registry, so the engine itself is table-agnostic.
type Engine struct {
	registry *Registry
	log      *zap.SugaredLogger
	now      func() time.Time
}

func NewEngine(registry *Registry, log *zap.SugaredLogger) *Engine {
	return &Engine{
		registry: registry,
		log:      log,
		now:      time.Now,
	}
}

func (e *Engine) store(entityType EntityType) (VersionStore, error) {
	store, ok := e.registry.Lookup(entityType)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntityType, entityType)
	}
	return store, nil
}

// GetCurrent returns the current version of the entity, or (nil, nil) when no
// version is current.
func (e *Engine) GetCurrent(ctx context.Context, entityType EntityType, entityID uuid.UUID) (*EntityVersion, error) {
	store, err := e.store(entityType)
	if err != nil {
		return nil, err
	}
	return store.GetCurrent(ctx, entityID)
}

// GetAsOf returns the version authoritative at asOf, or (nil, nil) when no
// version covers that instant.
func (e *Engine) GetAsOf(ctx context.Context, entityType EntityType, entityID uuid.UUID, asOf time.Time) (*EntityVersion, error) {
	store, err := e.store(entityType)
	if err != nil {
		return nil, err
	}
	return store.GetAsOf(ctx, entityID, asOf)
}

// GetVersion returns a specific version by number, or (nil, nil).
func (e *Engine) GetVersion(ctx context.Context, entityType EntityType, entityID uuid.UUID, versionNumber int) (*EntityVersion, error) {
	store, err := e.store(entityType)
	if err != nil {
		return nil, err
	}
	return store.GetVersion(ctx, entityID, versionNumber)
}

// GetHistory returns the full version chain ascending by version number. A
// single snapshot read; an empty slice means the entity does not exist.
func (e *Engine) GetHistory(ctx context.Context, entityType EntityType, entityID uuid.UUID) ([]EntityVersion, error) {
	store, err := e.store(entityType)
	if err != nil {
		return nil, err
	}
	return store.History(ctx, entityID)
}

// CreateEntity inserts version 1 of a brand-new entity and returns it.
func (e *Engine) CreateEntity(ctx context.Context, entityType EntityType, attributes map[string]interface{}, reason, changedBy string) (*EntityVersion, error) {
	store, err := e.store(entityType)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	version := &EntityVersion{
		VersionID:     uuid.New(),
		EntityID:      uuid.New(),
		EntityType:    entityType,
		VersionNumber: 1,
		ValidFrom:     now,
		ValidTo:       nil,
		IsCurrent:     true,
		VersionReason: reason,
		ChangedBy:     changedBy,
		Attributes:    attributes,
		CreatedAt:     now,
	}
	if err := store.Insert(ctx, version); err != nil {
		return nil, fmt.Errorf("failed to insert initial version: %w", err)
	}

	e.log.Infow("created entity",
		"entityType", entityType,
		"entityId", version.EntityID,
		"versionId", version.VersionID)
	return version, nil
}

// CreateNewVersion supersedes the current version of the entity with a new
// one carrying the given attributes. The retirement of the old version and
// the insertion of the new one share a single timestamp and commit atomically,
// preserving the one-current-version invariant and the no-gap rule between
// adjacent validity intervals. Returns the new version's id.
func (e *Engine) CreateNewVersion(ctx context.Context, entityType EntityType, entityID uuid.UUID, attributes map[string]interface{}, reason, changedBy string) (uuid.UUID, error) {
	store, err := e.store(entityType)
	if err != nil {
		return uuid.Nil, err
	}

	current, err := store.GetCurrent(ctx, entityID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to load current version: %w", err)
	}
	if current == nil {
		return uuid.Nil, fmt.Errorf("%w: %s %s", ErrNoCurrentVersion, entityType, entityID)
	}

	now := e.now().UTC()
	next := &EntityVersion{
		VersionID:     uuid.New(),
		EntityID:      entityID,
		EntityType:    entityType,
		VersionNumber: current.VersionNumber + 1,
		ValidFrom:     now,
		ValidTo:       nil,
		IsCurrent:     true,
		VersionReason: reason,
		ChangedBy:     changedBy,
		Attributes:    attributes,
		CreatedAt:     now,
	}

	if err := store.Supersede(ctx, current, next); err != nil {
		return uuid.Nil, fmt.Errorf("failed to supersede version %d of %s: %w", current.VersionNumber, entityID, err)
	}

	e.log.Infow("created new version",
		"entityType", entityType,
		"entityId", entityID,
		"versionNumber", next.VersionNumber,
		"reason", reason)
	return next.VersionID, nil
}
