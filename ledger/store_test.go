package ledger

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPaymentIdempotency(t *testing.T) {
	s := newTestStore(t)

	tx := Transaction{UserID: 1, Type: TxTopup, AmountPaise: 30000, PaymentID: "pay_once", OrderID: "order_1"}
	if _, err := s.Record(tx); err != nil {
		t.Fatalf("Record: %v", err)
	}

	ok, err := s.HasPayment("pay_once")
	if err != nil {
		t.Fatalf("HasPayment: %v", err)
	}
	if !ok {
		t.Fatal("recorded payment not found")
	}

	_, err = s.Record(tx)
	if err == nil {
		t.Fatal("duplicate payment id accepted")
	}
	if !strings.Contains(strings.ToLower(err.Error()), "unique") {
		t.Fatalf("duplicate payment error = %v, want unique violation", err)
	}

	// Internal movements carry no payment id and never collide.
	if _, err := s.Record(Transaction{UserID: 1, Type: TxPurchase, AmountPaise: -5000, TemplateID: 3}); err != nil {
		t.Fatalf("Record internal: %v", err)
	}
	if _, err := s.Record(Transaction{UserID: 1, Type: TxPurchase, AmountPaise: -5000, TemplateID: 3}); err != nil {
		t.Fatalf("Record second internal: %v", err)
	}
}

func TestListUserTransactions(t *testing.T) {
	s := newTestStore(t)

	for i, tx := range []Transaction{
		{UserID: 7, Type: TxTopup, AmountPaise: 30000, PaymentID: "pay_a"},
		{UserID: 7, Type: TxPurchase, AmountPaise: -35000, TemplateID: 2},
		{UserID: 8, Type: TxTopup, AmountPaise: 50000, PaymentID: "pay_b"},
	} {
		if _, err := s.Record(tx); err != nil {
			t.Fatalf("Record %d: %v", i, err)
		}
	}

	txs, err := s.ListUserTransactions(7, 0)
	if err != nil {
		t.Fatalf("ListUserTransactions: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("got %d transactions, want 2", len(txs))
	}
	if txs[0].Type != TxPurchase {
		t.Fatalf("newest first violated: first type %q", txs[0].Type)
	}
}

func TestGetStats(t *testing.T) {
	s := newTestStore(t)

	records := []Transaction{
		{UserID: 1, Type: TxTopup, AmountPaise: 100000, PaymentID: "pay_1"},
		{UserID: 1, Type: TxPurchase, AmountPaise: -35000, TemplateID: 5},
		{UserID: 2, Type: TxPurchase, AmountPaise: -35000, TemplateID: 5},
		{UserID: 2, Type: TxPurchase, AmountPaise: -20000, TemplateID: 9},
		{UserID: 3, Type: TxReferralBonus, AmountPaise: 5000},
	}
	for i, tx := range records {
		if _, err := s.Record(tx); err != nil {
			t.Fatalf("Record %d: %v", i, err)
		}
	}
	if err := s.RecordRedemption(Redemption{CodeID: 1, OwnerID: 3, NewUserID: 4}); err != nil {
		t.Fatalf("RecordRedemption: %v", err)
	}

	now := time.Now().UTC()
	stats, err := s.GetStats(now.AddDate(0, 0, -1), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}

	if stats.TopupPaise != 100000 {
		t.Errorf("TopupPaise = %d, want 100000", stats.TopupPaise)
	}
	if stats.PurchasePaise != 90000 {
		t.Errorf("PurchasePaise = %d, want 90000", stats.PurchasePaise)
	}
	if stats.Purchases != 3 {
		t.Errorf("Purchases = %d, want 3", stats.Purchases)
	}
	if stats.ReferralBonusPaise != 5000 {
		t.Errorf("ReferralBonusPaise = %d, want 5000", stats.ReferralBonusPaise)
	}
	if stats.Redemptions != 1 {
		t.Errorf("Redemptions = %d, want 1", stats.Redemptions)
	}
	if len(stats.TopTemplates) != 2 || stats.TopTemplates[0].TemplateID != 5 || stats.TopTemplates[0].RevenuePaise != 70000 {
		t.Errorf("TopTemplates = %+v", stats.TopTemplates)
	}
	if len(stats.DailyRevenue) != 1 || stats.DailyRevenue[0].RevenuePaise != 90000 {
		t.Errorf("DailyRevenue = %+v", stats.DailyRevenue)
	}
}

func TestRedemptionOncePerUser(t *testing.T) {
	s := newTestStore(t)

	if err := s.RecordRedemption(Redemption{CodeID: 1, OwnerID: 2, NewUserID: 10}); err != nil {
		t.Fatalf("RecordRedemption: %v", err)
	}
	if err := s.RecordRedemption(Redemption{CodeID: 9, OwnerID: 3, NewUserID: 10}); err == nil {
		t.Fatal("second redemption for same user accepted")
	}
}
