package diff

import (
	"bytes"
	"encoding/json"
)

// FindChanges compares two attribute snapshots and returns a list of changes.
// Values are compared by JSON-serialized deep equality, so structurally equal
// nested objects and arrays count as unchanged.
func FindChanges(prev, curr map[string]interface{}) []FieldChange {
	var changes []FieldChange

	// Detect changed or added fields
	for k, newVal := range curr {
		oldVal, exists := prev[k]
		if !exists || !jsonEqual(oldVal, newVal) {
			changes = append(changes, FieldChange{
				Name: k,
				Old:  oldVal,
				New:  newVal,
			})
		}
	}

	// Detect removed fields
	for k, oldVal := range prev {
		if _, exists := curr[k]; !exists {
			changes = append(changes, FieldChange{
				Name: k,
				Old:  oldVal,
				New:  nil,
			})
		}
	}

	return changes
}

// FindChangesExcluding behaves like FindChanges but ignores the named fields
// on both sides. Used to keep version bookkeeping out of entity diffs.
func FindChangesExcluding(prev, curr map[string]interface{}, excluded []string) []FieldChange {
	skip := make(map[string]struct{}, len(excluded))
	for _, name := range excluded {
		skip[name] = struct{}{}
	}

	filtered := func(m map[string]interface{}) map[string]interface{} {
		out := make(map[string]interface{}, len(m))
		for k, v := range m {
			if _, ok := skip[k]; ok {
				continue
			}
			out[k] = v
		}
		return out
	}

	return FindChanges(filtered(prev), filtered(curr))
}

// jsonEqual reports whether two values serialize to the same JSON. Go sorts
// map keys during marshaling, so this is a stable structural comparison.
func jsonEqual(a, b interface{}) bool {
	aJSON, errA := json.Marshal(a)
	bJSON, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(aJSON, bJSON)
}
