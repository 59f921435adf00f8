package views

import "github.com/eringen/certforge/compose"

// SiteConfig holds site-wide settings every page template receives.
type SiteConfig struct {
	Name string
	URL  string
}

// TemplateCard is one template tile on the gallery pages.
type TemplateCard struct {
	ID         int64
	Name       string
	Category   string
	PricePaise int64
	ImageURL   string
}

// HomeData feeds the gallery page, optionally filtered to one category.
type HomeData struct {
	Site           SiteConfig
	Templates      []TemplateCard
	Categories     []string
	ActiveCategory string
	LoggedIn       bool
}

// FillData feeds the fill form: one input per field of the chosen template.
type FillData struct {
	Site       SiteConfig
	Template   TemplateCard
	Fields     []compose.FieldSpec
	Balance    int64
	CanAfford  bool
	CSRFToken  string
	FlashError string
}

// PreviewData shows a generated preview and the pay/confirm controls.
type PreviewData struct {
	Site        SiteConfig
	Template    TemplateCard
	PreviewURL  string
	Balance     int64
	CanAfford   bool
	GatewayKey  string
	OrderID     string
	AmountPaise int64
	CSRFToken   string
}

// CertificateItem is one row on the "my certificates" page.
type CertificateItem struct {
	Filename  string
	URL       string
	CreatedAt string
}

// WalletEntry is one ledger transaction rendered in the wallet history.
type WalletEntry struct {
	Type        string
	AmountPaise int64
	Note        string
	CreatedAt   string
}

// WalletData feeds the wallet page: balance, history, and topup form.
type WalletData struct {
	Site          SiteConfig
	BalancePaise  int64
	MinTopupPaise int64
	History       []WalletEntry
	GatewayKey    string
	CSRFToken     string
	FlashError    string
}

// AuthData feeds login, register, and forgot-password pages.
type AuthData struct {
	Site       SiteConfig
	CSRFToken  string
	FlashError string
	Message    string
}

// AdminDashboardData lists templates with edit/delete/builder controls.
type AdminDashboardData struct {
	Site      SiteConfig
	Templates []TemplateCard
	Message   string
	CSRFToken string
}

// TemplateFormData feeds the create/edit template form.
type TemplateFormData struct {
	Site      SiteConfig
	Template  TemplateCard
	IsNew     bool
	CSRFToken string
}

// BuilderData feeds the drag-and-drop field builder for one template.
type BuilderData struct {
	Site       SiteConfig
	Template   TemplateCard
	Fields     []compose.FieldSpec
	FieldsJSON string
	CSRFToken  string
}

// ReferralRow is one admin-issued referral code with its usage.
type ReferralRow struct {
	Code      string
	OwnerID   int64
	MaxUses   int
	UsedCount int
	ExpiresAt string
	Active    bool
}

// ReferralsData feeds the admin referral-code page.
type ReferralsData struct {
	Site      SiteConfig
	Codes     []ReferralRow
	Message   string
	CSRFToken string
}
