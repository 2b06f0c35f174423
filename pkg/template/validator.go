// validator.go - Validate a document before rendering.
package template

import "fmt"

// ValidateDocument checks a document for problems. Returns warnings (never fatal
// errors) for graceful degradation; the renderer falls back to defaults for each.
func ValidateDocument(doc *Document) []string {
	var warnings []string

	seen := make(map[int]struct{}, len(doc.Fields))
	for _, f := range doc.Fields {
		if _, dup := seen[f.ID]; dup {
			warnings = append(warnings, fmt.Sprintf("duplicate field id %d, later rows shadow earlier ones on update", f.ID))
		}
		seen[f.ID] = struct{}{}

		if f.Align != "" && !f.Align.Valid() {
			warnings = append(warnings, fmt.Sprintf("field %d: unknown align %q, layout default used", f.ID, f.Align))
		}
	}

	c := doc.Config
	switch c.Layout {
	case Layout1, Layout2, Layout3:
	default:
		warnings = append(warnings, fmt.Sprintf("unknown layout %q, %s used", c.Layout, Layout1))
	}
	if c.GodsPosition != "" && c.GodsPosition != GodsTop && c.GodsPosition != GodsBottom {
		warnings = append(warnings, fmt.Sprintf("unknown gods position %q, top used", c.GodsPosition))
	}
	if c.LineHeight <= 0 {
		warnings = append(warnings, "line height must be positive, default used")
	}
	if c.UserImage != "" && !doc.Template.Type.AllowsUserImage() {
		warnings = append(warnings, "template does not allow a user image, it will be rejected")
	}

	return warnings
}
