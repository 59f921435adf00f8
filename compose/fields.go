package compose

import (
	"fmt"
	"image"
)

// Kind discriminates the two field variants.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// Align controls horizontal text placement relative to the field's x anchor.
type Align string

const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

// Shape controls how a pasted image is cropped.
type Shape string

const (
	ShapeRect   Shape = "rect"
	ShapeCircle Shape = "circle"
)

// FieldSpec is one placeholder on a template. It is the normalized form:
// whatever key aliases or loose typing exist at the storage or transport
// boundary must be resolved before a FieldSpec is constructed. The
// compositor never mutates a FieldSpec.
type FieldSpec struct {
	Name string
	Kind Kind
	X    int
	Y    int

	// Text attributes.
	FontSize   int
	Color      string // "#rrggbb", "#rgb", or a named color
	Align      Align
	FontFamily string // resolved through a FontResolver; empty means default

	// Image attributes. Width/Height of 0 keep the source's native size.
	Width  int
	Height int
	Shape  Shape
}

// Value is the submitted content for one field: a text string for text
// fields, a decoded image for image fields.
type Value struct {
	Text  string
	Image image.Image
}

// Values maps field names to submitted content. Missing keys mean "no
// content", which skips the field rather than failing the composite.
type Values map[string]Value

// SetText records a text value for the named field.
func (v Values) SetText(name, text string) {
	v[name] = Value{Text: text}
}

// SetImage records a decoded image for the named field.
func (v Values) SetImage(name string, img image.Image) {
	v[name] = Value{Image: img}
}

// FieldError records why a single field was skipped during compositing.
// Field failures never abort the composite; they are collected so callers
// can log or surface them.
type FieldError struct {
	Name string
	Kind Kind
	Err  error
}

func (e FieldError) Error() string {
	return fmt.Sprintf("field %q (%s): %v", e.Name, e.Kind, e.Err)
}

func (e FieldError) Unwrap() error { return e.Err }
