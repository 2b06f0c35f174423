package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestUpdateFieldChangesOnlyAddressedField(t *testing.T) {
	fields := DefaultFields()

	out := UpdateField(fields, 3, FieldPatch{
		Value: ptr("01-01-1990"),
		Align: ptr(AlignRight),
		Color: ptr("#000000"),
	})

	require.Len(t, out, len(fields))
	for i := range out {
		assert.Equal(t, fields[i].ID, out[i].ID, "order must be preserved")
		if out[i].ID == 3 {
			assert.Equal(t, "01-01-1990", out[i].Value)
			assert.Equal(t, AlignRight, out[i].Align)
			assert.Equal(t, "#000000", out[i].Color)
			assert.Equal(t, fields[i].Label, out[i].Label)
			continue
		}
		assert.Equal(t, fields[i], out[i])
	}

	// Input untouched.
	assert.Equal(t, "", fields[2].Value)
	assert.Equal(t, AlignCenter, fields[2].Align)
}

func TestUpdateFieldUnknownIDIsNoop(t *testing.T) {
	fields := DefaultFields()

	out := UpdateField(fields, 99, FieldPatch{Value: ptr("ignored")})

	assert.Equal(t, fields, out)
	assert.False(t, HasField(fields, 99))
	assert.True(t, HasField(fields, 1))
}

func TestUpdateFieldIgnoresInvalidValues(t *testing.T) {
	fields := DefaultFields()

	out := UpdateField(fields, 1, FieldPatch{
		ValueSize: ptr(0),
		LabelSize: ptr(-4),
		Align:     ptr(Align("diagonal")),
		Color:     ptr(""),
	})

	assert.Equal(t, fields[0], out[0])
}

func TestUpdateFieldEmptyValueClears(t *testing.T) {
	fields := UpdateField(DefaultFields(), 1, FieldPatch{Value: ptr("Ravi")})
	fields = UpdateField(fields, 1, FieldPatch{Value: ptr("")})

	assert.Equal(t, "", fields[0].Value)
}
