package views

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// buildURL joins path segments onto a base URL, ensuring a trailing slash.
func buildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if len(pathSegments) > 0 && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// CategoryURL returns the gallery URL for a category. Escaping happens when
// the URL is serialized, so the raw category goes in as-is.
func CategoryURL(cfg SiteConfig, category string) string {
	return buildURL(cfg.URL, "category", category)
}

// FormatINR renders paise as a rupee string, e.g. 35050 -> "Rs 350.50".
// Whole-rupee amounts drop the decimals.
func FormatINR(paise int64) string {
	sign := ""
	if paise < 0 {
		sign = "-"
		paise = -paise
	}
	if paise%100 == 0 {
		return fmt.Sprintf("%sRs %d", sign, paise/100)
	}
	return fmt.Sprintf("%sRs %d.%02d", sign, paise/100, paise%100)
}

// PathEscape wraps url.PathEscape for use in templ expressions.
func PathEscape(s string) string {
	return url.PathEscape(s)
}

// PriceLabel renders a template's price, with free templates called out.
func PriceLabel(paise int64) string {
	if paise == 0 {
		return "Free"
	}
	return FormatINR(paise)
}
