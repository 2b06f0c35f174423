package layout

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xob0t/GoBiodata/pkg/template"
)

var a4 = image.Pt(template.CanvasWidth, template.CanvasHeight)

func docWith(mut func(*template.LayoutConfig)) *template.Document {
	doc := template.NewDocument(template.Descriptor{Type: template.WithImage})
	doc.Config.GodsImage = "/images/banner.png"
	if mut != nil {
		mut(&doc.Config)
	}
	return &doc
}

func TestLayout1(t *testing.T) {
	p, err := Compute(a4, docWith(nil))
	require.NoError(t, err)

	require.NotNil(t, p.Gods)
	assert.Equal(t, ShapeCircle, p.Gods.Shape)
	assert.Equal(t, image.Rect(397-60, 140-60, 397+60, 140+60), p.Gods.Rect)
	assert.Nil(t, p.User)
	assert.Equal(t, image.Pt(60, 420), p.TextOrigin)
	assert.Equal(t, template.AlignCenter, p.TextAnchor)

	p, err = Compute(a4, docWith(func(c *template.LayoutConfig) {
		c.GodsPosition = template.GodsBottom
		c.GodsSize = 0
	}))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(397-90, 1123-140-90, 397+90, 1123-140+90), p.Gods.Rect)
}

func TestLayout2(t *testing.T) {
	p, err := Compute(a4, docWith(func(c *template.LayoutConfig) {
		c.Layout = template.Layout2
		c.GodsSize = 50
	}))
	require.NoError(t, err)

	assert.Equal(t, image.Rect(60, 110, 160, 210), p.Gods.Rect)
	assert.Equal(t, image.Pt(60+100+30, 140), p.TextOrigin)
	assert.Equal(t, template.AlignLeft, p.TextAnchor)

	p, err = Compute(a4, docWith(func(c *template.LayoutConfig) {
		c.Layout = template.Layout2
		c.GodsSize = 50
		c.GodsPosition = template.GodsBottom
	}))
	require.NoError(t, err)
	assert.Equal(t, 1123-220, p.Gods.Rect.Min.Y+50)
}

func TestLayout3(t *testing.T) {
	p, err := Compute(a4, docWith(func(c *template.LayoutConfig) { c.Layout = template.Layout3 }))
	require.NoError(t, err)

	require.NotNil(t, p.Gods)
	assert.Equal(t, ShapeBand, p.Gods.Shape)
	assert.Equal(t, image.Rect(0, 0, 794, 562), p.Gods.Rect)
	assert.InDelta(t, 0.95, p.Gods.Alpha, 1e-9)
	assert.Equal(t, image.Pt(60, 281), p.TextOrigin)
	assert.Equal(t, template.AlignCenter, p.TextAnchor)
}

func TestNoGodsImageStillPlacesText(t *testing.T) {
	for _, id := range []template.LayoutID{template.Layout1, template.Layout2, template.Layout3} {
		doc := docWith(func(c *template.LayoutConfig) {
			c.Layout = id
			c.GodsImage = ""
		})
		p, err := Compute(a4, doc)
		require.NoError(t, err, id)
		assert.Nil(t, p.Gods, id)
		assert.NotZero(t, p.TextOrigin.Y, id)
	}
}

func TestUserImageAnchors(t *testing.T) {
	cases := map[template.UserImagePosition]image.Point{
		template.UserTopLeft:     image.Pt(60, 40),
		template.UserTopRight:    image.Pt(794-60-80, 40),
		template.UserBottomRight: image.Pt(794-60-80, 1123-60-80),
		template.UserBottomLeft:  image.Pt(60, 1123-60-80),
		template.UserCenter:      image.Pt(357, 522),
	}
	for pos, want := range cases {
		p, err := Compute(a4, docWith(func(c *template.LayoutConfig) {
			c.UserImage = "data:image/png;base64,AA=="
			c.UserImagePosition = pos
		}))
		require.NoError(t, err)
		require.NotNil(t, p.User, pos)
		assert.Equal(t, want, p.User.Rect.Min, pos)
		assert.Equal(t, image.Pt(80, 80), p.User.Rect.Size(), pos)
		assert.Equal(t, ShapeRoundedRect, p.User.Shape)
	}
}

func TestUserImageVariantDefaults(t *testing.T) {
	p, err := Compute(a4, docWith(func(c *template.LayoutConfig) {
		c.UserImage = "u.png"
		c.UserImagePosition = "somewhere"
	}))
	require.NoError(t, err)
	assert.Equal(t, image.Pt(794-60-80, 140-40), p.User.Rect.Min)

	p, err = Compute(a4, docWith(func(c *template.LayoutConfig) {
		c.Layout = template.Layout2
		c.UserImage = "u.png"
		c.UserImageSize = 0
		c.UserImagePosition = "somewhere"
	}))
	require.NoError(t, err)
	assert.Equal(t, image.Pt(66, 160+60+12), p.User.Rect.Min)
	assert.Equal(t, 76, p.User.Rect.Dx())
	assert.InDelta(t, 10, p.User.Radius, 1e-9)
}

func TestWithoutImageTemplateRejectsUserImage(t *testing.T) {
	doc := template.NewDocument(template.Descriptor{Type: template.WithoutImage})
	doc.Config.UserImage = "u.png"

	_, err := Compute(a4, &doc)
	assert.ErrorIs(t, err, ErrUserImageNotAllowed)

	doc.Config.UserImage = ""
	doc.Config.GodsImage = ""
	p, err := Compute(a4, &doc)
	require.NoError(t, err)
	assert.Nil(t, p.Gods)
	assert.Nil(t, p.User)
}

func TestUnknownLayoutFallsBack(t *testing.T) {
	assert.Equal(t, template.Layout1, For("layout7").ID())
	assert.Equal(t, template.Layout3, For(template.Layout3).ID())
}
