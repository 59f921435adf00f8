// Package compose merges user-submitted values into a certificate template.
//
// A template is a base image plus an ordered list of field specifications;
// each field names either a text string or an uploaded photo to place on
// the base. Compositing is best-effort: a single bad field (unresolvable
// font, corrupt upload, malformed geometry) is skipped and reported, never
// fatal. Only a missing or undecodable base image fails the whole call.
package compose

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// ErrInvalidTemplate is the only fatal compositing error: the base image is
// absent or cannot be decoded. Callers must abort generation on it.
var ErrInvalidTemplate = errors.New("compose: invalid template image")

// Result is a finished composite. Image has the same dimensions as the base
// template with the alpha channel preserved; Skipped lists fields that were
// dropped along the way.
type Result struct {
	Image   image.Image
	Skipped []FieldError
}

// Compositor renders templates. It is safe for concurrent use: each Compose
// call works on its own copy of the base image and shares only the
// read-mostly font cache.
type Compositor struct {
	faces *faceCache
}

// New creates a Compositor resolving font families through resolver.
// A nil resolver renders everything with the bundled default font.
func New(resolver FontResolver) *Compositor {
	return &Compositor{faces: newFaceCache(resolver)}
}

// DecodeTemplate decodes a base template image from r. Decode failures are
// reported as ErrInvalidTemplate so callers can branch on the one fatal case.
func DecodeTemplate(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	return img, nil
}

// Compose draws every field's submitted value onto a working copy of base,
// in slice order (later fields stack on top of earlier ones). Fields with
// no usable name or no submitted content contribute nothing. The returned
// image always matches base's dimensions; base itself is never mutated.
func (c *Compositor) Compose(base image.Image, fields []FieldSpec, values Values) (*Result, error) {
	if base == nil {
		return nil, ErrInvalidTemplate
	}

	dc := gg.NewContextForImage(base)
	res := &Result{}

	for _, f := range fields {
		if strings.TrimSpace(f.Name) == "" {
			continue
		}
		var err error
		switch f.Kind {
		case KindText:
			err = c.drawText(dc, f, values[f.Name].Text)
		case KindImage:
			err = drawImage(dc, f, values[f.Name].Image)
		default:
			err = fmt.Errorf("unknown field kind %q", f.Kind)
		}
		if err != nil {
			res.Skipped = append(res.Skipped, FieldError{Name: f.Name, Kind: f.Kind, Err: err})
		}
	}

	res.Image = dc.Image()
	return res, nil
}

// drawText renders one text field. Empty text is invisible by contract, so
// it is a silent no-op rather than an error.
func (c *Compositor) drawText(dc *gg.Context, f FieldSpec, text string) error {
	if text == "" {
		return nil
	}
	if f.FontSize <= 0 {
		return fmt.Errorf("font size %d must be positive", f.FontSize)
	}

	face, err := c.faces.Face(f.FontFamily, float64(f.FontSize))
	if err != nil {
		return err
	}
	col, err := parseColor(f.Color)
	if err != nil {
		return err
	}

	dc.SetFontFace(face)
	dc.SetColor(col)

	w, _ := dc.MeasureString(text)
	x := float64(f.X)
	switch f.Align {
	case AlignCenter:
		x -= w / 2
	case AlignRight:
		x -= w
	}

	// Top-anchored placement: f.Y is the top of the glyph box, so the
	// baseline sits one ascent below it.
	ascent := float64(face.Metrics().Ascent.Ceil())
	dc.DrawString(text, x, float64(f.Y)+ascent)
	return nil
}

// drawImage pastes one image field with alpha blending. A missing upload is
// a silent no-op; an optional photo field left blank produces no artifact.
func drawImage(dc *gg.Context, f FieldSpec, src image.Image) error {
	if src == nil {
		return nil
	}
	if f.Width < 0 || f.Height < 0 {
		return fmt.Errorf("target size %dx%d must not be negative", f.Width, f.Height)
	}

	img := src
	if f.Width > 0 && f.Height > 0 {
		img = imaging.Resize(img, f.Width, f.Height, imaging.Lanczos)
	}
	if f.Shape == ShapeCircle {
		img = circleCrop(img)
	}

	dc.DrawImage(img, f.X, f.Y)
	return nil
}

// circleCrop crops img to a centered square of side min(w, h) and masks it
// to the inscribed circle; pixels outside the circle become transparent.
func circleCrop(img image.Image) image.Image {
	b := img.Bounds()
	side := b.Dx()
	if b.Dy() < side {
		side = b.Dy()
	}
	cropped := imaging.CropCenter(img, side, side)

	mdc := gg.NewContext(side, side)
	r := float64(side) / 2
	mdc.DrawCircle(r, r, r)
	mdc.Clip()
	mdc.DrawImage(cropped, 0, 0)
	return mdc.Image()
}

// namedColors covers the color words admins actually type into the builder.
var namedColors = map[string]color.Color{
	"black":  color.NRGBA{0, 0, 0, 255},
	"white":  color.NRGBA{255, 255, 255, 255},
	"red":    color.NRGBA{255, 0, 0, 255},
	"green":  color.NRGBA{0, 128, 0, 255},
	"blue":   color.NRGBA{0, 0, 255, 255},
	"yellow": color.NRGBA{255, 255, 0, 255},
	"gray":   color.NRGBA{128, 128, 128, 255},
	"gold":   color.NRGBA{255, 215, 0, 255},
}

// parseColor accepts "#rgb", "#rrggbb", or a named color. Empty means black.
func parseColor(s string) (color.Color, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return color.NRGBA{0, 0, 0, 255}, nil
	}
	if c, ok := namedColors[s]; ok {
		return c, nil
	}
	if !strings.HasPrefix(s, "#") {
		return nil, fmt.Errorf("unknown color %q", s)
	}
	hex := s[1:]
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return nil, fmt.Errorf("malformed hex color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("malformed hex color %q", s)
	}
	return color.NRGBA{
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
		A: 255,
	}, nil
}
