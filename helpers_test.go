package certforge

import "testing"

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Annual Sports Day":  "annual-sports-day",
		"  Merit  Award!  ":  "merit-award",
		"Class of 2026":      "class-of-2026",
		"---":                "",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseRupees(t *testing.T) {
	good := map[string]int64{
		"350":    35000,
		"350.5":  35050,
		"350.50": 35050,
		" 0 ":    0,
		"1.05":   105,
	}
	for in, want := range good {
		got, err := ParseRupees(in)
		if err != nil {
			t.Errorf("ParseRupees(%q): %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseRupees(%q) = %d, want %d", in, got, want)
		}
	}

	for _, in := range []string{"", "-5", "12.345", "abc", "1.x"} {
		if _, err := ParseRupees(in); err == nil {
			t.Errorf("ParseRupees(%q): expected error", in)
		}
	}
}

func TestRandomCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		code, err := randomCode(8)
		if err != nil {
			t.Fatalf("randomCode: %v", err)
		}
		if len(code) != 8 {
			t.Fatalf("code %q has length %d", code, len(code))
		}
		for _, r := range code {
			if r == '0' || r == 'O' || r == '1' || r == 'I' {
				t.Fatalf("code %q contains ambiguous character %c", code, r)
			}
		}
		seen[code] = true
	}
	if len(seen) < 2 {
		t.Fatal("codes are not random")
	}
}
