// merge.go - Apply field patches onto the field sequence.
package template

// UpdateField returns a new field sequence in which only the field with the given id
// has the patch applied. The order is preserved. An unknown id yields an unchanged copy.
func UpdateField(fields []Field, id int, patch FieldPatch) []Field {
	out := make([]Field, len(fields))
	copy(out, fields)

	for i := range out {
		if out[i].ID != id {
			continue
		}
		mergeField(&out[i], patch)
		break
	}

	return out
}

// HasField reports whether a field with the given id exists.
func HasField(fields []Field, id int) bool {
	for _, f := range fields {
		if f.ID == id {
			return true
		}
	}
	return false
}

// mergeField applies non-nil patch members.
func mergeField(base *Field, over FieldPatch) {
	if over.Value != nil {
		base.Value = *over.Value
	}
	if over.LabelSize != nil && *over.LabelSize > 0 {
		base.LabelSize = *over.LabelSize
	}
	if over.ValueSize != nil && *over.ValueSize > 0 {
		base.ValueSize = *over.ValueSize
	}
	if over.Color != nil && *over.Color != "" {
		base.Color = *over.Color
	}
	if over.Align != nil && (over.Align.Valid() || *over.Align == "") {
		base.Align = *over.Align
	}
}
