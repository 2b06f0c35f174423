// color.go - Hex color parsing for field and background colors.
package template

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// Background is the paper color every render starts from.
const Background = "#fffbe6"

// ParseColor parses "#rgb", "#rrggbb" or "#rrggbbaa".
func ParseColor(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: expected #rgb, #rrggbb or #rrggbbaa", s)
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

// ParseColorOr parses s and returns fallback's color on any error.
func ParseColorOr(s, fallback string) color.NRGBA {
	if c, err := ParseColor(s); err == nil {
		return c
	}
	c, _ := ParseColor(fallback)
	return c
}
