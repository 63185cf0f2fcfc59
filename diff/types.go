package diff

// FieldChange represents a change between two snapshots of a field.
type FieldChange struct {
	Name string
	Old  interface{}
	New  interface{}
}
