// parser.go - Default documents, JSON parsing and example generation.
package template

import (
	"encoding/json"
	"fmt"
	"os"
)

// Default values used when a document omits them.
const (
	DefaultFont          = "serif"
	DefaultGodsSize      = 60
	DefaultUserImageSize = 80
	DefaultLineHeight    = 56
	DefaultTextColor     = "#6E1E1E"
)

// DefaultFields returns the biodata rows a new document starts with.
func DefaultFields() []Field {
	labels := []string{"Name", "Email", "Birthdate", "Caste", "Religion", "Age", "Marriage Status"}
	fields := make([]Field, 0, len(labels))
	for i, label := range labels {
		f := Field{
			ID:        i + 1,
			Label:     label,
			LabelSize: 18,
			ValueSize: 24,
			Color:     DefaultTextColor,
			Align:     AlignCenter,
		}
		if i == 0 {
			f.LabelSize = 20
			f.ValueSize = 28
		}
		fields = append(fields, f)
	}
	return fields
}

// DefaultConfig returns the layout configuration of a fresh editor.
func DefaultConfig() LayoutConfig {
	return LayoutConfig{
		Layout:            Layout1,
		Font:              DefaultFont,
		GodsPosition:      GodsTop,
		GodsSize:          DefaultGodsSize,
		UserImageSize:     DefaultUserImageSize,
		UserImagePosition: UserTopRight,
		LineHeight:        DefaultLineHeight,
		AutoFit:           true,
	}
}

// NewDocument returns a default document for the given template.
func NewDocument(tpl Descriptor) Document {
	if tpl.Type == "" {
		tpl.Type = WithImage
	}
	return Document{
		Template: tpl,
		Fields:   DefaultFields(),
		Config:   DefaultConfig(),
	}
}

// ParseDocument decodes a document and applies defaults.
func ParseDocument(data []byte) (*Document, error) {
	doc := Document{Config: DefaultConfig()}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse document JSON: %w", err)
	}
	applyDocumentDefaults(&doc)
	return &doc, nil
}

// ParseDocumentFile loads a standalone document JSON file.
func ParseDocumentFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return ParseDocument(data)
}

// applyDocumentDefaults sets sane fallbacks for omitted values.
func applyDocumentDefaults(doc *Document) {
	doc.Template.Type = NormalizeTemplateType(string(doc.Template.Type))
	if len(doc.Fields) == 0 {
		doc.Fields = DefaultFields()
	}
	for i := range doc.Fields {
		f := &doc.Fields[i]
		if f.LabelSize <= 0 {
			f.LabelSize = 20
		}
		if f.ValueSize <= 0 {
			f.ValueSize = 28
		}
		if f.Color == "" {
			f.Color = DefaultTextColor
		}
	}

	c := &doc.Config
	if c.Layout == "" {
		c.Layout = Layout1
	}
	if c.Font == "" {
		c.Font = DefaultFont
	}
	if c.GodsPosition == "" {
		c.GodsPosition = GodsTop
	}
	if c.UserImagePosition == "" {
		c.UserImagePosition = UserTopRight
	}
	if c.LineHeight <= 0 {
		c.LineHeight = DefaultLineHeight
	}
}

// GetExampleJSON returns a sample document.json for biodata init.
func GetExampleJSON() string {
	return `{
  "template": {
    "id": "classic-maroon",
    "type": "with-image",
    "description": "Classic maroon biodata"
  },
  "fields": [
    { "id": 1, "label": "Name", "value": "Ananya Sharma", "labelSize": 20, "valueSize": 28, "color": "#6E1E1E", "align": "center" },
    { "id": 2, "label": "Email", "value": "ananya@example.com", "labelSize": 18, "valueSize": 24, "color": "#6E1E1E", "align": "center" },
    { "id": 3, "label": "Birthdate", "value": "12 March 1996", "labelSize": 18, "valueSize": 24, "color": "#6E1E1E", "align": "center" },
    { "id": 4, "label": "Caste", "value": "", "labelSize": 18, "valueSize": 24, "color": "#6E1E1E", "align": "center" },
    { "id": 5, "label": "Religion", "value": "Hindu", "labelSize": 18, "valueSize": 24, "color": "#6E1E1E", "align": "center" },
    { "id": 6, "label": "Age", "value": "29", "labelSize": 18, "valueSize": 24, "color": "#6E1E1E", "align": "center" },
    { "id": 7, "label": "Marriage Status", "value": "Never married", "labelSize": 18, "valueSize": 24, "color": "#6E1E1E", "align": "center" }
  ],
  "config": {
    "layout": "layout1",
    "font": "serif",
    "border": "",
    "godsImage": "",
    "godsPosition": "top",
    "godsSize": 60,
    "userImageSize": 80,
    "userImagePosition": "top-right",
    "lineHeight": 56,
    "autoFit": true
  }
}`
}
