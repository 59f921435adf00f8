package certforge

// User is an account that fills templates and holds a wallet balance.
// Balances are stored in paise (1/100 rupee) to keep money integral.
type User struct {
	ID           int64
	Email        string
	Phone        string
	PasswordHash string
	WalletPaise  int64
	IsAdmin      bool
	ReferredBy   int64 // user id of the referrer, 0 if none
	CreatedAt    string
}

// Template is an admin-authored base image plus its ordered field list.
// The field list lives in the template_fields table and is read back as
// []compose.FieldSpec, already normalized.
type Template struct {
	ID         int64
	Name       string
	Category   string
	PricePaise int64
	ImagePath  string // filename under Config.TemplateDir
	CreatedAt  string
}

// Certificate is one generated output image (final or preview) owned by a
// user. Previews are transient and reaped by the cleanup scheduler.
type Certificate struct {
	ID         int64
	UserID     int64
	TemplateID int64
	Filename   string
	Preview    bool
	CreatedAt  string
}

// ReferralCode is an admin-issued signup code. Redemptions credit both the
// owner and the new user; the money side is recorded in the ledger.
type ReferralCode struct {
	ID        int64
	Code      string
	OwnerID   int64
	MaxUses   int // 0 means unlimited
	UsedCount int
	ExpiresAt string // RFC3339, empty means never
	Active    bool
	CreatedAt string
}

// TemplateImage is stored metadata for an uploaded base image.
type TemplateImage struct {
	Filename     string
	OriginalName string
	Width        int
	Height       int
	Size         int
	UploadedAt   string
}
