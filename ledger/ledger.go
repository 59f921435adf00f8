// Package ledger records every wallet movement in its own SQLite database:
// gateway topups, certificate purchases, and referral bonuses. The ledger is
// append-only and keyed by gateway payment id where one exists, which is what
// makes payment callbacks idempotent.
package ledger

// Transaction types.
const (
	TxTopup         = "topup"
	TxPurchase      = "purchase"
	TxReferralBonus = "referral_bonus"
)

// Transaction is one wallet movement. AmountPaise is positive for credits
// and negative for debits.
type Transaction struct {
	ID          int64
	UserID      int64
	Type        string
	AmountPaise int64
	PaymentID   string // gateway payment id, empty for internal movements
	OrderID     string // gateway order id, empty for internal movements
	TemplateID  int64  // set for purchases
	Note        string
	CreatedAt   string
}

// Redemption records one use of a referral code at signup.
type Redemption struct {
	ID        int64
	CodeID    int64
	OwnerID   int64
	NewUserID int64
	CreatedAt string
}

// DailyRevenue is gross purchase revenue for one day.
type DailyRevenue struct {
	Date         string
	RevenuePaise int64
	Purchases    int
}

// TemplateRevenue aggregates purchases per template.
type TemplateRevenue struct {
	TemplateID   int64
	Purchases    int
	RevenuePaise int64
}

// Stats is the aggregate view the admin dashboard renders.
type Stats struct {
	Period             string
	TopupPaise         int64
	PurchasePaise      int64
	ReferralBonusPaise int64
	Purchases          int
	Redemptions        int
	DailyRevenue       []DailyRevenue
	TopTemplates       []TemplateRevenue
}
