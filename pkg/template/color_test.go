package template

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#6E1E1E")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{0x6e, 0x1e, 0x1e, 0xff}, c)

	c, err = ParseColor("fff")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{0xff, 0xff, 0xff, 0xff}, c)

	c, err = ParseColor("#00000080")
	require.NoError(t, err)
	assert.Equal(t, uint8(0x80), c.A)

	_, err = ParseColor("#12")
	assert.Error(t, err)
	_, err = ParseColor("#zzzzzz")
	assert.Error(t, err)
}

func TestParseColorOr(t *testing.T) {
	assert.Equal(t, color.NRGBA{0x6e, 0x1e, 0x1e, 0xff}, ParseColorOr("maroon", DefaultTextColor))
}
