package certforge

import (
	"time"

	"github.com/eringen/certforge/compose"
)

// SiteConfig holds all configuration for a certforge site.
type SiteConfig struct {
	Name string // Site name (default "CertForge")
	URL  string // Canonical URL (default "http://localhost:3000")

	Addr               string // Listen address (default ":3000")
	DatabasePath       string // SQLite path (default "data/certforge.db")
	LedgerDatabasePath string // Ledger SQLite path (default "data/ledger.db")

	TemplateDir  string // Uploaded base images (default "data/templates")
	GeneratedDir string // Final certificates (default "data/generated")
	PreviewDir   string // Watermark-free previews, reaped on a schedule (default "data/previews")
	FontDir      string // .ttf/.otf files for the builder's font families (default "data/fonts")

	SessionSecret string // Required: session encryption secret
	CookieSecure  bool   // Set true for HTTPS

	GatewayKeyID     string // Payment gateway key id; empty disables topups
	GatewayKeySecret string // Payment gateway key secret

	MinTopupPaise             int64 // Minimum wallet topup (default 30000 = Rs 300)
	ReferralNewUserBonusPaise int64 // Signup bonus for redeeming a code (default 5000)
	ReferralOwnerBonusPaise   int64 // Bonus for the code's owner (default 5000)

	TemplateCacheTTL time.Duration // Template cache TTL (default 5min)
	PreviewTTL       time.Duration // Preview lifetime before cleanup (default 1h)
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "CertForge"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/certforge.db"
	}
	if c.LedgerDatabasePath == "" {
		c.LedgerDatabasePath = "data/ledger.db"
	}
	if c.TemplateDir == "" {
		c.TemplateDir = "data/templates"
	}
	if c.GeneratedDir == "" {
		c.GeneratedDir = "data/generated"
	}
	if c.PreviewDir == "" {
		c.PreviewDir = "data/previews"
	}
	if c.FontDir == "" {
		c.FontDir = "data/fonts"
	}
	if c.MinTopupPaise == 0 {
		c.MinTopupPaise = 30000
	}
	if c.ReferralNewUserBonusPaise == 0 {
		c.ReferralNewUserBonusPaise = 5000
	}
	if c.ReferralOwnerBonusPaise == 0 {
		c.ReferralOwnerBonusPaise = 5000
	}
	if c.TemplateCacheTTL == 0 {
		c.TemplateCacheTTL = 5 * time.Minute
	}
	if c.PreviewTTL == 0 {
		c.PreviewTTL = time.Hour
	}
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App before the server starts.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithStaticDir sets the directory for user-owned static assets (default "public").
func WithStaticDir(dir string) Option {
	return func(a *App) {
		a.staticDir = dir
	}
}

// WithGateway swaps the payment gateway implementation, mainly for tests and
// for deployments that front a different provider.
func WithGateway(g Gateway) Option {
	return func(a *App) {
		a.gateway = g
	}
}

// WithFontResolver overrides the default directory-based font resolver.
func WithFontResolver(r compose.FontResolver) Option {
	return func(a *App) {
		a.fontResolver = r
	}
}
