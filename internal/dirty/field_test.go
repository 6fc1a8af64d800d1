package dirty

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldSetIsNoOpWhenUnchanged(t *testing.T) {
	g := NewFieldGroup()
	f := NewField(g, "online", false)

	f.Set(false)
	dirty, changes := g.ConsumeDirty()
	assert.False(t, dirty)
	assert.Empty(t, changes)
}

// S7 Update-frame sparseness (field-tracker half): only the changed field is
// reported.
func TestFieldSetMarksGroupDirtyWithOnlyChangedField(t *testing.T) {
	g := NewFieldGroup()
	online := NewField(g, "online", false)
	scenery := NewField(g, "scenery", "default")

	online.Set(true)

	dirty, changes := g.ConsumeDirty()
	require.True(t, dirty)
	require.Len(t, changes, 1)
	assert.Equal(t, "online", changes[0].Name)
	assert.Equal(t, false, changes[0].Old)
	assert.Equal(t, true, changes[0].New)
	assert.Equal(t, "default", scenery.Value())
}

func TestConsumeDirtyResets(t *testing.T) {
	g := NewFieldGroup()
	f := NewField(g, "x", 1)
	f.Set(2)

	dirty, _ := g.ConsumeDirty()
	require.True(t, dirty)

	dirty, changes := g.ConsumeDirty()
	assert.False(t, dirty)
	assert.Empty(t, changes)
}

func TestNullableFieldSetIfNullableIgnoresNil(t *testing.T) {
	g := NewFieldGroup()
	driverID := NewNullableField[string](g, "driver_id", nil)

	driverID.SetIfNullable(nil)
	dirty, _ := g.ConsumeDirty()
	assert.False(t, dirty)

	v := "driver-42"
	driverID.SetIfNullable(&v)
	dirty, changes := g.ConsumeDirty()
	require.True(t, dirty)
	require.Len(t, changes, 1)
	assert.Equal(t, "driver_id", changes[0].Name)
}

func TestNullableFieldSetComparesPointedToValueNotIdentity(t *testing.T) {
	g := NewFieldGroup()
	v := "signal-a"
	name := NewNullableField[string](g, "next_signal_name", &v)

	other := "signal-a" // distinct pointer, equal value
	name.Set(&other)

	dirty, changes := g.ConsumeDirty()
	assert.False(t, dirty, "a distinct pointer to an equal value must not mark the group dirty")
	assert.Empty(t, changes)
}

func TestNullableFieldSetNilExplicitlyClears(t *testing.T) {
	g := NewFieldGroup()
	v := "signal-a"
	name := NewNullableField[string](g, "next_signal_name", &v)

	name.Set(nil)

	dirty, changes := g.ConsumeDirty()
	require.True(t, dirty)
	require.Len(t, changes, 1)
	assert.Nil(t, changes[0].New)
}
