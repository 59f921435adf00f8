package ledger

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Store provides database operations for the ledger.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the ledger database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;"); err != nil {
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS transactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			type TEXT NOT NULL,
			amount_paise INTEGER NOT NULL,
			payment_id TEXT,
			order_id TEXT,
			template_id INTEGER NOT NULL DEFAULT 0,
			note TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_payment
			ON transactions(payment_id) WHERE payment_id IS NOT NULL AND payment_id != '';
		CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions(user_id, id);
		CREATE INDEX IF NOT EXISTS idx_transactions_type ON transactions(type, created_at);

		CREATE TABLE IF NOT EXISTS referral_redemptions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			code_id INTEGER NOT NULL,
			owner_id INTEGER NOT NULL,
			new_user_id INTEGER NOT NULL UNIQUE,
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		);
	`)
	return err
}

// Record appends one transaction. The partial unique index on payment_id
// rejects a second insert for the same gateway payment.
func (s *Store) Record(tx Transaction) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO transactions (user_id, type, amount_paise, payment_id, order_id, template_id, note)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tx.UserID, tx.Type, tx.AmountPaise, tx.PaymentID, tx.OrderID, tx.TemplateID, tx.Note)
	if err != nil {
		return 0, fmt.Errorf("record transaction: %w", err)
	}
	return res.LastInsertId()
}

// HasPayment reports whether a gateway payment id was already recorded.
// Callbacks check this before crediting so a replayed callback is a no-op.
func (s *Store) HasPayment(paymentID string) (bool, error) {
	if paymentID == "" {
		return false, nil
	}
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM transactions WHERE payment_id = ?`, paymentID).Scan(&n)
	return n > 0, err
}

// ListUserTransactions returns a user's transactions, newest first.
func (s *Store) ListUserTransactions(userID int64, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, user_id, type, amount_paise, COALESCE(payment_id, ''), COALESCE(order_id, ''), template_id, note, created_at
		 FROM transactions WHERE user_id = ? ORDER BY id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Type, &t.AmountPaise, &t.PaymentID, &t.OrderID, &t.TemplateID, &t.Note, &t.CreatedAt); err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// RecordRedemption stores one referral redemption. The UNIQUE constraint on
// new_user_id enforces one redemption per account.
func (s *Store) RecordRedemption(r Redemption) error {
	_, err := s.db.Exec(
		`INSERT INTO referral_redemptions (code_id, owner_id, new_user_id) VALUES (?, ?, ?)`,
		r.CodeID, r.OwnerID, r.NewUserID)
	if err != nil {
		return fmt.Errorf("record redemption: %w", err)
	}
	return nil
}

// GetStats returns aggregated revenue statistics for the given period.
// The independent aggregates run concurrently, same DB, separate queries.
func (s *Store) GetStats(from, to time.Time) (*Stats, error) {
	fromStr := from.UTC().Format("2006-01-02 15:04:05")
	toStr := to.UTC().Format("2006-01-02 15:04:05")

	stats := &Stats{
		Period:       from.Format("2006-01-02") + " to " + to.Format("2006-01-02"),
		DailyRevenue: []DailyRevenue{},
		TopTemplates: []TemplateRevenue{},
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	var firstErr error

	setErr := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	// Totals per transaction type
	wg.Add(1)
	go func() {
		defer wg.Done()
		rows, err := s.db.Query(
			`SELECT type, COALESCE(SUM(amount_paise), 0), COUNT(*)
			 FROM transactions WHERE created_at BETWEEN ? AND ? GROUP BY type`, fromStr, toStr)
		if err != nil {
			setErr(fmt.Errorf("type totals: %w", err))
			return
		}
		defer rows.Close()
		for rows.Next() {
			var typ string
			var sum int64
			var count int
			if err := rows.Scan(&typ, &sum, &count); err != nil {
				setErr(fmt.Errorf("type totals: %w", err))
				return
			}
			mu.Lock()
			switch typ {
			case TxTopup:
				stats.TopupPaise = sum
			case TxPurchase:
				stats.PurchasePaise = -sum // purchases are debits
				stats.Purchases = count
			case TxReferralBonus:
				stats.ReferralBonusPaise = sum
			}
			mu.Unlock()
		}
		if err := rows.Err(); err != nil {
			setErr(fmt.Errorf("type totals: %w", err))
		}
	}()

	// Daily purchase revenue
	wg.Add(1)
	go func() {
		defer wg.Done()
		rows, err := s.db.Query(
			`SELECT date(created_at), COALESCE(SUM(-amount_paise), 0), COUNT(*)
			 FROM transactions WHERE type = ? AND created_at BETWEEN ? AND ?
			 GROUP BY date(created_at) ORDER BY date(created_at)`, TxPurchase, fromStr, toStr)
		if err != nil {
			setErr(fmt.Errorf("daily revenue: %w", err))
			return
		}
		defer rows.Close()
		var daily []DailyRevenue
		for rows.Next() {
			var d DailyRevenue
			if err := rows.Scan(&d.Date, &d.RevenuePaise, &d.Purchases); err != nil {
				setErr(fmt.Errorf("daily revenue: %w", err))
				return
			}
			daily = append(daily, d)
		}
		if err := rows.Err(); err != nil {
			setErr(fmt.Errorf("daily revenue: %w", err))
			return
		}
		mu.Lock()
		stats.DailyRevenue = daily
		mu.Unlock()
	}()

	// Top templates by revenue
	wg.Add(1)
	go func() {
		defer wg.Done()
		rows, err := s.db.Query(
			`SELECT template_id, COUNT(*), COALESCE(SUM(-amount_paise), 0)
			 FROM transactions WHERE type = ? AND template_id > 0 AND created_at BETWEEN ? AND ?
			 GROUP BY template_id ORDER BY SUM(-amount_paise) DESC LIMIT 10`, TxPurchase, fromStr, toStr)
		if err != nil {
			setErr(fmt.Errorf("top templates: %w", err))
			return
		}
		defer rows.Close()
		var top []TemplateRevenue
		for rows.Next() {
			var t TemplateRevenue
			if err := rows.Scan(&t.TemplateID, &t.Purchases, &t.RevenuePaise); err != nil {
				setErr(fmt.Errorf("top templates: %w", err))
				return
			}
			top = append(top, t)
		}
		if err := rows.Err(); err != nil {
			setErr(fmt.Errorf("top templates: %w", err))
			return
		}
		mu.Lock()
		stats.TopTemplates = top
		mu.Unlock()
	}()

	// Redemption count
	wg.Add(1)
	go func() {
		defer wg.Done()
		var n int
		err := s.db.QueryRow(
			`SELECT COUNT(*) FROM referral_redemptions WHERE created_at BETWEEN ? AND ?`, fromStr, toStr).Scan(&n)
		if err != nil {
			setErr(fmt.Errorf("redemption count: %w", err))
			return
		}
		mu.Lock()
		stats.Redemptions = n
		mu.Unlock()
	}()

	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return stats, nil
}
