package certforge

import (
	"encoding/json"
	"testing"

	"github.com/eringen/certforge/compose"
)

func decodePayload(t *testing.T, payload string) []map[string]any {
	t.Helper()
	var raw []map[string]any
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	return raw
}

func TestNormalizeFieldsAliases(t *testing.T) {
	// Three renditions of the same field under different key vocabularies.
	payload := `[
		{"name": "student_name", "kind": "text", "x": 200, "y": 140, "font_size": 42, "color": "#1a1a1a", "align": "center"},
		{"field_name": "student_name", "field_type": "text", "x_position": 200, "y_position": 140, "size": 42, "font_color": "#1a1a1a", "alignment": "center"},
		{"key": "student_name", "type": "text", "left": 200, "top": 140, "size": "42", "font_color": "#1a1a1a", "alignment": "centre"}
	]`

	fields, err := normalizeFields(decodePayload(t, payload))
	if err != nil {
		t.Fatalf("normalizeFields: %v", err)
	}
	if len(fields) != 3 {
		t.Fatalf("got %d fields, want 3", len(fields))
	}
	want := compose.FieldSpec{
		Name: "student_name", Kind: compose.KindText,
		X: 200, Y: 140, FontSize: 42, Color: "#1a1a1a", Align: compose.AlignCenter,
	}
	for i, f := range fields {
		if f != want {
			t.Errorf("field %d = %+v, want %+v", i, f, want)
		}
	}
}

func TestNormalizeFieldsImage(t *testing.T) {
	payload := `[{"name": "photo", "type": "photo", "x": 40, "y": 40, "w": 120, "h": 120, "crop": "round"}]`

	fields, err := normalizeFields(decodePayload(t, payload))
	if err != nil {
		t.Fatalf("normalizeFields: %v", err)
	}
	f := fields[0]
	if f.Kind != compose.KindImage || f.Width != 120 || f.Height != 120 || f.Shape != compose.ShapeCircle {
		t.Fatalf("field = %+v", f)
	}
}

func TestNormalizeFieldsDefaults(t *testing.T) {
	payload := `[{"name": "date"}]`

	fields, err := normalizeFields(decodePayload(t, payload))
	if err != nil {
		t.Fatalf("normalizeFields: %v", err)
	}
	f := fields[0]
	if f.Kind != compose.KindText || f.FontSize != 24 || f.Color != "#000000" || f.Align != compose.AlignLeft {
		t.Fatalf("defaults not applied: %+v", f)
	}
}

func TestNormalizeFieldsRejects(t *testing.T) {
	cases := map[string]string{
		"unnamed":       `[{"kind": "text", "x": 1}]`,
		"unknown kind":  `[{"name": "n", "kind": "video"}]`,
		"unknown align": `[{"name": "n", "kind": "text", "align": "justified"}]`,
		"unknown shape": `[{"name": "p", "kind": "image", "shape": "hexagon"}]`,
	}
	for label, payload := range cases {
		if _, err := normalizeFields(decodePayload(t, payload)); err == nil {
			t.Errorf("%s: expected error", label)
		}
	}
}

func TestNormalizeFieldsPreservesOrder(t *testing.T) {
	payload := `[
		{"name": "background_badge", "type": "image"},
		{"name": "student_name", "type": "text"},
		{"name": "seal", "type": "image"}
	]`

	fields, err := normalizeFields(decodePayload(t, payload))
	if err != nil {
		t.Fatalf("normalizeFields: %v", err)
	}
	wantOrder := []string{"background_badge", "student_name", "seal"}
	for i, name := range wantOrder {
		if fields[i].Name != name {
			t.Fatalf("order broken: field %d is %q, want %q", i, fields[i].Name, name)
		}
	}
}
