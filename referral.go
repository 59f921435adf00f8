package certforge

import (
	"fmt"
	"time"

	"github.com/eringen/certforge/ledger"
)

// validReferralCode looks up a code and checks it is active, under its use
// cap, and not expired.
func (a *App) validReferralCode(code string) (ReferralCode, error) {
	rc, err := a.Store.GetReferralCode(code)
	if err != nil {
		return ReferralCode{}, err
	}
	if !rc.Active {
		return ReferralCode{}, fmt.Errorf("referral code %s is inactive", rc.Code)
	}
	if rc.MaxUses > 0 && rc.UsedCount >= rc.MaxUses {
		return ReferralCode{}, fmt.Errorf("referral code %s is exhausted", rc.Code)
	}
	if rc.ExpiresAt != "" {
		exp, err := time.Parse(time.RFC3339, rc.ExpiresAt)
		if err != nil || time.Now().After(exp) {
			return ReferralCode{}, fmt.Errorf("referral code %s is expired", rc.Code)
		}
	}
	return rc, nil
}

// redeemReferral credits the code owner, bumps the use counter, and records
// both bonuses in the ledger. The new user's own bonus was already applied
// as their opening balance.
func (a *App) redeemReferral(code ReferralCode, newUser User) error {
	if err := a.Store.IncrementReferralUse(code.ID); err != nil {
		return fmt.Errorf("increment use: %w", err)
	}
	if err := a.Store.CreditWallet(code.OwnerID, a.Config.ReferralOwnerBonusPaise); err != nil {
		return fmt.Errorf("credit owner: %w", err)
	}

	if err := a.Ledger.RecordRedemption(ledger.Redemption{
		CodeID:    code.ID,
		OwnerID:   code.OwnerID,
		NewUserID: newUser.ID,
	}); err != nil {
		return fmt.Errorf("record redemption: %w", err)
	}
	if _, err := a.Ledger.Record(ledger.Transaction{
		UserID:      code.OwnerID,
		Type:        ledger.TxReferralBonus,
		AmountPaise: a.Config.ReferralOwnerBonusPaise,
		Note:        fmt.Sprintf("referral %s", code.Code),
	}); err != nil {
		return fmt.Errorf("record owner bonus: %w", err)
	}
	if _, err := a.Ledger.Record(ledger.Transaction{
		UserID:      newUser.ID,
		Type:        ledger.TxReferralBonus,
		AmountPaise: a.Config.ReferralNewUserBonusPaise,
		Note:        fmt.Sprintf("signup with %s", code.Code),
	}); err != nil {
		return fmt.Errorf("record signup bonus: %w", err)
	}
	return nil
}

// newReferralCode generates a unique 8-character code, retrying on the rare
// collision.
func (a *App) newReferralCode(ownerID int64, maxUses int, expiresAt string) (ReferralCode, error) {
	for attempt := 0; attempt < 5; attempt++ {
		code, err := randomCode(8)
		if err != nil {
			return ReferralCode{}, err
		}
		rc := ReferralCode{Code: code, OwnerID: ownerID, MaxUses: maxUses, ExpiresAt: expiresAt, Active: true}
		id, err := a.Store.CreateReferralCode(rc)
		if err == nil {
			rc.ID = id
			return rc, nil
		}
	}
	return ReferralCode{}, fmt.Errorf("could not generate a unique referral code")
}
