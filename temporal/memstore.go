package temporal

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is a mutex-guarded in-memory VersionStore. It backs tests and
// gives the engine a storage-free mode for local development.
type MemStore struct {
	mu       sync.Mutex
	versions map[uuid.UUID][]*EntityVersion
}

func NewMemStore() *MemStore {
	return &MemStore{versions: make(map[uuid.UUID][]*EntityVersion)}
}

func copyVersion(v *EntityVersion) *EntityVersion {
	if v == nil {
		return nil
	}
	out := *v
	if v.ValidTo != nil {
		to := *v.ValidTo
		out.ValidTo = &to
	}
	if v.SupersededByID != nil {
		id := *v.SupersededByID
		out.SupersededByID = &id
	}
	return &out
}

func (m *MemStore) GetCurrent(_ context.Context, entityID uuid.UUID) (*EntityVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.versions[entityID] {
		if v.IsCurrent {
			return copyVersion(v), nil
		}
	}
	return nil, nil
}

func (m *MemStore) GetAsOf(_ context.Context, entityID uuid.UUID, asOf time.Time) (*EntityVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.versions[entityID] {
		if WasValidAt(v, asOf) {
			return copyVersion(v), nil
		}
	}
	return nil, nil
}

func (m *MemStore) GetVersion(_ context.Context, entityID uuid.UUID, versionNumber int) (*EntityVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.versions[entityID] {
		if v.VersionNumber == versionNumber {
			return copyVersion(v), nil
		}
	}
	return nil, nil
}

func (m *MemStore) History(_ context.Context, entityID uuid.UUID) ([]EntityVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chain := m.versions[entityID]
	out := make([]EntityVersion, 0, len(chain))
	for _, v := range chain {
		out = append(out, *copyVersion(v))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VersionNumber < out[j].VersionNumber })
	return out, nil
}

func (m *MemStore) Insert(_ context.Context, version *EntityVersion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.versions[version.EntityID] = append(m.versions[version.EntityID], copyVersion(version))
	return nil
}

func (m *MemStore) Supersede(_ context.Context, old, next *EntityVersion) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var stored *EntityVersion
	for _, v := range m.versions[old.EntityID] {
		if v.VersionID == old.VersionID {
			stored = v
			break
		}
	}
	if stored == nil || !stored.IsCurrent {
		return ErrVersionConflict
	}

	stored.IsCurrent = false
	validTo := next.ValidFrom
	stored.ValidTo = &validTo
	supersededBy := next.VersionID
	stored.SupersededByID = &supersededBy

	m.versions[next.EntityID] = append(m.versions[next.EntityID], copyVersion(next))
	return nil
}
