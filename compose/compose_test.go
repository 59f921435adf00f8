package compose

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"testing"
)

func newBase(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func solid(w, h int, c color.Color) *image.NRGBA {
	return newBase(w, h, c)
}

// inkBounds returns the bounding box of pixels that are visibly darker than
// a white background.
func inkBounds(img image.Image) (minX, minY, maxX, maxY int, found bool) {
	b := img.Bounds()
	minX, minY = b.Max.X, b.Max.Y
	maxX, maxY = b.Min.X-1, b.Min.Y-1
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			if r < 0x8000 && g < 0x8000 && bl < 0x8000 {
				found = true
				if x < minX {
					minX = x
				}
				if x > maxX {
					maxX = x
				}
				if y < minY {
					minY = y
				}
				if y > maxY {
					maxY = y
				}
			}
		}
	}
	return
}

func isReddish(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return r > 0xc000 && g < 0x4000 && b < 0x4000
}

func TestComposeDimensionPreservation(t *testing.T) {
	comp := New(nil)
	base := newBase(400, 200, color.White)

	fields := []FieldSpec{
		{Name: "title", Kind: KindText, X: 200, Y: 20, FontSize: 24, Color: "#000000", Align: AlignCenter},
		{Name: "photo", Kind: KindImage, X: 10, Y: 10, Width: 80, Height: 80, Shape: ShapeCircle},
	}
	values := Values{}
	values.SetText("title", "Certificate of Completion")
	values.SetImage("photo", solid(80, 80, color.NRGBA{200, 30, 30, 255}))

	res, err := comp.Compose(base, fields, values)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	b := res.Image.Bounds()
	if b.Dx() != 400 || b.Dy() != 200 {
		t.Errorf("output size = %dx%d, want 400x200", b.Dx(), b.Dy())
	}
	if len(res.Skipped) != 0 {
		t.Errorf("Skipped = %v, want none", res.Skipped)
	}
}

func TestComposeEmptyTextInvisible(t *testing.T) {
	comp := New(nil)
	base := newBase(100, 50, color.White)
	field := FieldSpec{Name: "title", Kind: KindText, X: 10, Y: 10, FontSize: 16, Color: "black"}

	withEmpty, err := comp.Compose(base, []FieldSpec{field}, Values{"title": {Text: ""}})
	if err != nil {
		t.Fatalf("Compose with empty value failed: %v", err)
	}
	without, err := comp.Compose(base, nil, Values{})
	if err != nil {
		t.Fatalf("Compose without field failed: %v", err)
	}

	for y := 0; y < 50; y++ {
		for x := 0; x < 100; x++ {
			if withEmpty.Image.At(x, y) != without.Image.At(x, y) {
				t.Fatalf("pixel (%d,%d) differs: empty text should draw nothing", x, y)
			}
		}
	}
	if len(withEmpty.Skipped) != 0 {
		t.Errorf("empty text counted as a failure: %v", withEmpty.Skipped)
	}
}

func TestComposeZOrder(t *testing.T) {
	comp := New(nil)
	base := newBase(100, 100, color.White)

	red := FieldSpec{Name: "red", Kind: KindImage, X: 10, Y: 10}
	blue := FieldSpec{Name: "blue", Kind: KindImage, X: 30, Y: 30}
	values := Values{}
	values.SetImage("red", solid(40, 40, color.NRGBA{255, 0, 0, 255}))
	values.SetImage("blue", solid(40, 40, color.NRGBA{0, 0, 255, 255}))

	// red then blue: blue wins at the overlap
	res, err := comp.Compose(base, []FieldSpec{red, blue}, values)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, b, _ := res.Image.At(40, 40).RGBA(); b < 0xc000 {
		t.Errorf("overlap pixel should be blue when blue is drawn last, got %v", res.Image.At(40, 40))
	}

	// blue then red: order reversal changes the overlap
	res, err = comp.Compose(base, []FieldSpec{blue, red}, values)
	if err != nil {
		t.Fatal(err)
	}
	if !isReddish(res.Image.At(40, 40)) {
		t.Errorf("overlap pixel should be red when red is drawn last, got %v", res.Image.At(40, 40))
	}
}

func TestComposeAlignment(t *testing.T) {
	const anchor = 150
	const tolerance = 4

	comp := New(nil)

	cases := []struct {
		align Align
		check func(t *testing.T, minX, maxX int)
	}{
		{AlignLeft, func(t *testing.T, minX, maxX int) {
			if diff := minX - anchor; diff < -tolerance || diff > tolerance {
				t.Errorf("left-aligned ink starts at %d, want ~%d", minX, anchor)
			}
		}},
		{AlignCenter, func(t *testing.T, minX, maxX int) {
			mid := (minX + maxX) / 2
			if diff := mid - anchor; diff < -tolerance || diff > tolerance {
				t.Errorf("center-aligned ink midpoint = %d, want ~%d", mid, anchor)
			}
		}},
		{AlignRight, func(t *testing.T, minX, maxX int) {
			if diff := maxX - anchor; diff < -tolerance || diff > tolerance {
				t.Errorf("right-aligned ink ends at %d, want ~%d", maxX, anchor)
			}
		}},
	}

	for _, tc := range cases {
		t.Run(string(tc.align), func(t *testing.T) {
			base := newBase(300, 80, color.White)
			field := FieldSpec{
				Name: "name", Kind: KindText,
				X: anchor, Y: 20, FontSize: 32, Color: "#000000", Align: tc.align,
			}
			res, err := comp.Compose(base, []FieldSpec{field}, Values{"name": {Text: "HHHH"}})
			if err != nil {
				t.Fatal(err)
			}
			minX, minY, maxX, _, found := inkBounds(res.Image)
			if !found {
				t.Fatal("no text drawn")
			}
			tc.check(t, minX, maxX)
			// Top-anchored: glyph tops sit at the field y, never above it.
			if minY < 20 {
				t.Errorf("ink starts at y=%d, above the top anchor 20", minY)
			}
		})
	}
}

func TestComposeCircleMask(t *testing.T) {
	comp := New(nil)
	base := newBase(120, 120, color.White)

	field := FieldSpec{Name: "photo", Kind: KindImage, X: 10, Y: 10, Width: 80, Height: 80, Shape: ShapeCircle}
	values := Values{}
	values.SetImage("photo", solid(80, 80, color.NRGBA{255, 0, 0, 255}))

	res, err := comp.Compose(base, []FieldSpec{field}, values)
	if err != nil {
		t.Fatal(err)
	}

	// Center of the circle is pasted content.
	if !isReddish(res.Image.At(50, 50)) {
		t.Errorf("circle center should show the pasted image, got %v", res.Image.At(50, 50))
	}

	// Corners of the 80x80 box lie outside the inscribed circle; the base
	// must show through with zero contribution from the paste.
	for _, pt := range []image.Point{{12, 12}, {87, 12}, {12, 87}, {87, 87}} {
		r, g, b, _ := res.Image.At(pt.X, pt.Y).RGBA()
		if r < 0xf000 || g < 0xf000 || b < 0xf000 {
			t.Errorf("pixel %v outside the circle should remain white, got %v", pt, res.Image.At(pt.X, pt.Y))
		}
	}
}

func TestCircleCropRectangularSource(t *testing.T) {
	out := circleCrop(solid(100, 60, color.NRGBA{0, 255, 0, 255}))
	b := out.Bounds()
	if b.Dx() != 60 || b.Dy() != 60 {
		t.Errorf("crop of 100x60 source = %dx%d, want 60x60", b.Dx(), b.Dy())
	}
}

func TestComposeResilience(t *testing.T) {
	comp := New(nil)
	base := newBase(200, 100, color.White)

	fields := []FieldSpec{
		{Name: "good-photo", Kind: KindImage, X: 10, Y: 10, Width: 30, Height: 30},
		{Name: "bad", Kind: KindText, X: 50, Y: 50, FontSize: 0, Color: "black"}, // malformed geometry
		{Name: "good-text", Kind: KindText, X: 60, Y: 10, FontSize: 24, Color: "black"},
	}
	values := Values{}
	values.SetImage("good-photo", solid(30, 30, color.NRGBA{255, 0, 0, 255}))
	values.SetText("bad", "boom")
	values.SetText("good-text", "OK")

	res, err := comp.Compose(base, fields, values)
	if err != nil {
		t.Fatalf("a single bad field must not fail the composite: %v", err)
	}
	if b := res.Image.Bounds(); b.Dx() != 200 || b.Dy() != 100 {
		t.Errorf("output size = %dx%d, want 200x100", b.Dx(), b.Dy())
	}
	if len(res.Skipped) != 1 {
		t.Fatalf("Skipped = %v, want exactly the bad field", res.Skipped)
	}
	if res.Skipped[0].Name != "bad" {
		t.Errorf("skipped field = %q, want %q", res.Skipped[0].Name, "bad")
	}

	// The surviving fields must still be drawn.
	if !isReddish(res.Image.At(20, 20)) {
		t.Error("image field before the failure was not drawn")
	}
	if _, _, _, _, found := inkBounds(res.Image); !found {
		t.Error("text field after the failure was not drawn")
	}
}

func TestComposeNilTemplate(t *testing.T) {
	comp := New(nil)
	_, err := comp.Compose(nil, nil, Values{})
	if !errors.Is(err, ErrInvalidTemplate) {
		t.Errorf("Compose(nil) error = %v, want ErrInvalidTemplate", err)
	}
}

func TestDecodeTemplateInvalid(t *testing.T) {
	_, err := DecodeTemplate(bytes.NewReader([]byte("not an image")))
	if !errors.Is(err, ErrInvalidTemplate) {
		t.Errorf("DecodeTemplate error = %v, want ErrInvalidTemplate", err)
	}
}

func TestComposeMissingValueSkipsSilently(t *testing.T) {
	comp := New(nil)
	base := newBase(50, 50, color.White)
	fields := []FieldSpec{
		{Name: "photo", Kind: KindImage, X: 0, Y: 0},
		{Name: "", Kind: KindText, X: 0, Y: 0, FontSize: 12},
	}
	res, err := comp.Compose(base, fields, Values{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Skipped) != 0 {
		t.Errorf("missing values and nameless fields are no-ops, got %v", res.Skipped)
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.NRGBA
		wantErr bool
	}{
		{"", color.NRGBA{0, 0, 0, 255}, false},
		{"#000000", color.NRGBA{0, 0, 0, 255}, false},
		{"#FF8000", color.NRGBA{255, 128, 0, 255}, false},
		{"#f00", color.NRGBA{255, 0, 0, 255}, false},
		{"white", color.NRGBA{255, 255, 255, 255}, false},
		{"GOLD", color.NRGBA{255, 215, 0, 255}, false},
		{"#12345", color.NRGBA{}, true},
		{"#zzzzzz", color.NRGBA{}, true},
		{"chartreuse", color.NRGBA{}, true},
	}
	for _, tt := range tests {
		got, err := parseColor(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseColor(%q) should fail", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseColor(%q) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseColor(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDirResolverUnknownFamily(t *testing.T) {
	r := DirResolver{Dir: t.TempDir()}
	if _, err := r.Resolve("no-such-family"); !errors.Is(err, ErrUnknownFont) {
		t.Errorf("Resolve error = %v, want ErrUnknownFont", err)
	}
	if _, err := r.Resolve(""); !errors.Is(err, ErrUnknownFont) {
		t.Errorf("Resolve(\"\") error = %v, want ErrUnknownFont", err)
	}
}

func TestFaceCacheFallsBackToDefault(t *testing.T) {
	fc := newFaceCache(DirResolver{Dir: t.TempDir()})
	face, err := fc.Face("missing-family", 24)
	if err != nil {
		t.Fatalf("unresolvable family should fall back, got error: %v", err)
	}
	if face == nil {
		t.Fatal("fallback face is nil")
	}
}
