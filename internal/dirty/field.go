// Package dirty implements the record-and-diff helper described in spec.md
// §4.6: a FieldGroup owning a set of Field[T] children, each tracking
// whether it was written this tick and to what value, so only the sparse
// set of actually-changed fields propagates downstream.
package dirty

import "sync"

// Change records a field's transition for the update-frame builder.
type Change struct {
	Name string
	Old  any
	New  any
}

// FieldGroup owns a boolean dirty flag plus the fields allocated under it.
// The reconciler allocates one group per updated entity per tick.
type FieldGroup struct {
	mu      sync.Mutex
	dirty   bool
	changes []Change
}

// NewFieldGroup allocates a fresh, clean group.
func NewFieldGroup() *FieldGroup {
	return &FieldGroup{}
}

func (g *FieldGroup) markDirty(c Change) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dirty = true
	g.changes = append(g.changes, c)
}

// ConsumeDirty atomically reports and resets the group's dirty flag and
// accumulated changes.
func (g *FieldGroup) ConsumeDirty() (bool, []Change) {
	g.mu.Lock()
	defer g.mu.Unlock()
	wasDirty := g.dirty
	changes := g.changes
	g.dirty = false
	g.changes = nil
	return wasDirty, changes
}

// IsDirty reports the current dirty state without resetting it.
func (g *FieldGroup) IsDirty() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.dirty
}

// Field is a single tracked value of type T, owned by a FieldGroup. Equal
// assignments (by domain equality, i.e. Go's == for comparable T) are a
// no-op; unequal assignments record old/new and mark the group dirty.
type Field[T comparable] struct {
	group *FieldGroup
	name  string
	value T
	set   bool
}

// NewField allocates a field with its initial (already-persisted) value,
// registered against group under name.
func NewField[T comparable](group *FieldGroup, name string, initial T) *Field[T] {
	return &Field[T]{group: group, name: name, value: initial, set: true}
}

// Set assigns a new value, marking the group dirty iff the value actually
// changed. Comparison is Go's == over T: for a pointer T this is identity,
// not the pointed-to value, so code tracking *U fields should use
// NullableField instead of instantiating Field[*U] directly.
func (f *Field[T]) Set(newValue T) {
	if f.set && f.value == newValue {
		return
	}
	old := f.value
	f.value = newValue
	f.set = true
	f.group.markDirty(Change{Name: f.name, Old: old, New: newValue})
}

// Value returns the field's current value.
func (f *Field[T]) Value() T {
	return f.value
}

// NullableField is a Field over *T, adding SetIfNullable for the "undefined
// means unchanged" tristate wire semantics of spec.md §9: passing nil means
// "no update was observed this tick", not "clear the field" — callers that
// want to clear must call Set(nil) explicitly.
type NullableField[T comparable] struct {
	Field[*T]
}

// NewNullableField allocates a nullable field with its initial value.
func NewNullableField[T comparable](group *FieldGroup, name string, initial *T) *NullableField[T] {
	return &NullableField[T]{Field: Field[*T]{group: group, name: name, value: initial, set: true}}
}

// SetIfNullable assigns newValue only when it is non-nil; a nil newValue
// leaves the field untouched (distinct from explicitly clearing it).
func (f *NullableField[T]) SetIfNullable(newValue *T) {
	if newValue == nil {
		return
	}
	f.Set(newValue)
}

// Set assigns newValue directly, including nil to explicitly clear the
// field. It shadows the embedded Field[*T].Set to compare dereferenced
// values rather than pointer identity, so two distinct pointers to an equal
// T are still a no-op.
func (f *NullableField[T]) Set(newValue *T) {
	if f.set && f.value == nil && newValue == nil {
		return
	}
	if f.set && f.value != nil && newValue != nil && *f.value == *newValue {
		return
	}
	old := f.value
	f.value = newValue
	f.set = true
	f.group.markDirty(Change{Name: f.name, Old: old, New: newValue})
}
