package views

import "testing"

func TestFormatINR(t *testing.T) {
	cases := map[int64]string{
		0:      "Rs 0",
		35000:  "Rs 350",
		35050:  "Rs 350.50",
		105:    "Rs 1.05",
		-20000: "-Rs 200",
	}
	for paise, want := range cases {
		if got := FormatINR(paise); got != want {
			t.Errorf("FormatINR(%d) = %q, want %q", paise, got, want)
		}
	}
}

func TestPriceLabel(t *testing.T) {
	if got := PriceLabel(0); got != "Free" {
		t.Errorf("PriceLabel(0) = %q", got)
	}
	if got := PriceLabel(35000); got != "Rs 350" {
		t.Errorf("PriceLabel(35000) = %q", got)
	}
}

func TestCategoryURL(t *testing.T) {
	cfg := SiteConfig{URL: "https://example.com"}
	if got := CategoryURL(cfg, "school awards"); got != "https://example.com/category/school%20awards/" {
		t.Errorf("CategoryURL = %q", got)
	}
}
