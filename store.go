package certforge

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/eringen/certforge/compose"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = sql.ErrNoRows

// ErrInsufficientFunds is returned by DebitWallet when the balance does not
// cover the amount.
var ErrInsufficientFunds = errors.New("certforge: insufficient wallet balance")

// Store wraps a SQLite database and provides CRUD operations for users,
// templates, template fields, certificates, and referral codes.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and runs schema migrations.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL for concurrent read/write access, busy_timeout so writers wait
	// instead of failing with SQLITE_BUSY, synchronous=NORMAL is safe with
	// WAL and avoids an fsync per transaction.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
		PRAGMA cache_size=-8000;
		PRAGMA foreign_keys=ON;
	`); err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    email TEXT UNIQUE,
    phone TEXT UNIQUE,
    password_hash TEXT NOT NULL,
    wallet_paise INTEGER NOT NULL DEFAULT 0,
    is_admin INTEGER NOT NULL DEFAULT 0,
    referred_by INTEGER,
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS templates (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    category TEXT NOT NULL,
    price_paise INTEGER NOT NULL DEFAULT 0,
    image_path TEXT NOT NULL,
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS template_fields (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    template_id INTEGER NOT NULL REFERENCES templates(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    name TEXT NOT NULL,
    kind TEXT NOT NULL,
    x INTEGER NOT NULL DEFAULT 0,
    y INTEGER NOT NULL DEFAULT 0,
    font_size INTEGER NOT NULL DEFAULT 24,
    color TEXT NOT NULL DEFAULT '#000000',
    align TEXT NOT NULL DEFAULT 'left',
    font_family TEXT NOT NULL DEFAULT '',
    width INTEGER NOT NULL DEFAULT 0,
    height INTEGER NOT NULL DEFAULT 0,
    shape TEXT NOT NULL DEFAULT 'rect'
);

CREATE INDEX IF NOT EXISTS idx_template_fields_template ON template_fields(template_id, position);

CREATE TABLE IF NOT EXISTS certificates (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL REFERENCES users(id),
    template_id INTEGER NOT NULL,
    filename TEXT NOT NULL UNIQUE,
    preview INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_certificates_user ON certificates(user_id);

CREATE TABLE IF NOT EXISTS referral_codes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    code TEXT NOT NULL UNIQUE,
    owner_id INTEGER NOT NULL REFERENCES users(id),
    max_uses INTEGER NOT NULL DEFAULT 0,
    used_count INTEGER NOT NULL DEFAULT 0,
    expires_at TEXT NOT NULL DEFAULT '',
    active INTEGER NOT NULL DEFAULT 1,
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);
`)
	return err
}

// --- Users ---

// CreateUser inserts a new user and returns its id. Email and phone are
// stored as NULL when empty so the UNIQUE constraints only bite on real
// duplicates.
func (s *Store) CreateUser(u User) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO users (email, phone, password_hash, wallet_paise, is_admin, referred_by) VALUES (?, ?, ?, ?, ?, ?)`,
		nullString(u.Email), nullString(u.Phone), u.PasswordHash, u.WalletPaise, boolInt(u.IsAdmin), nullInt(u.ReferredBy))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const userColumns = `id, COALESCE(email, ''), COALESCE(phone, ''), password_hash, wallet_paise, is_admin, COALESCE(referred_by, 0), created_at`

func (s *Store) scanUser(row *sql.Row) (User, error) {
	var u User
	var isAdmin int
	err := row.Scan(&u.ID, &u.Email, &u.Phone, &u.PasswordHash, &u.WalletPaise, &isAdmin, &u.ReferredBy, &u.CreatedAt)
	if err != nil {
		return User{}, err
	}
	u.IsAdmin = isAdmin == 1
	return u, nil
}

// GetUser returns a user by id.
func (s *Store) GetUser(id int64) (User, error) {
	return s.scanUser(s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

// GetUserByEmail returns a user by email (case-insensitive).
func (s *Store) GetUserByEmail(email string) (User, error) {
	return s.scanUser(s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE lower(email) = lower(?)`, email))
}

// GetUserByPhone returns a user by phone number.
func (s *Store) GetUserByPhone(phone string) (User, error) {
	return s.scanUser(s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE phone = ?`, phone))
}

// UpdatePassword replaces a user's password hash.
func (s *Store) UpdatePassword(id int64, hash string) error {
	_, err := s.db.Exec(`UPDATE users SET password_hash = ? WHERE id = ?`, hash, id)
	return err
}

// CreditWallet adds paise to a user's balance.
func (s *Store) CreditWallet(id, paise int64) error {
	_, err := s.db.Exec(`UPDATE users SET wallet_paise = wallet_paise + ? WHERE id = ?`, paise, id)
	return err
}

// DebitWallet subtracts paise from a user's balance. The guard is in the
// UPDATE itself so a concurrent debit cannot push the balance negative.
func (s *Store) DebitWallet(id, paise int64) error {
	res, err := s.db.Exec(
		`UPDATE users SET wallet_paise = wallet_paise - ? WHERE id = ? AND wallet_paise >= ?`,
		paise, id, paise)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInsufficientFunds
	}
	return nil
}

// --- Templates ---

// SaveTemplate inserts a template and returns its id.
func (s *Store) SaveTemplate(t Template) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO templates (name, category, price_paise, image_path) VALUES (?, ?, ?, ?)`,
		t.Name, t.Category, t.PricePaise, t.ImagePath)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// UpdateTemplate updates name, category, and price of an existing template.
func (s *Store) UpdateTemplate(t Template) error {
	_, err := s.db.Exec(
		`UPDATE templates SET name = ?, category = ?, price_paise = ? WHERE id = ?`,
		t.Name, t.Category, t.PricePaise, t.ID)
	return err
}

// GetTemplate returns a template by id.
func (s *Store) GetTemplate(id int64) (Template, error) {
	var t Template
	err := s.db.QueryRow(
		`SELECT id, name, category, price_paise, image_path, created_at FROM templates WHERE id = ?`, id).
		Scan(&t.ID, &t.Name, &t.Category, &t.PricePaise, &t.ImagePath, &t.CreatedAt)
	return t, err
}

// ListTemplates returns templates newest-first, optionally filtered by
// category.
func (s *Store) ListTemplates(category string) ([]Template, error) {
	var rows *sql.Rows
	var err error
	if category == "" {
		rows, err = s.db.Query(`SELECT id, name, category, price_paise, image_path, created_at FROM templates ORDER BY id DESC`)
	} else {
		rows, err = s.db.Query(`SELECT id, name, category, price_paise, image_path, created_at FROM templates WHERE category = ? ORDER BY id DESC`, category)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []Template
	for rows.Next() {
		var t Template
		if err := rows.Scan(&t.ID, &t.Name, &t.Category, &t.PricePaise, &t.ImagePath, &t.CreatedAt); err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// ListCategories returns the sorted distinct categories in use.
func (s *Store) ListCategories() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT category FROM templates WHERE category != '' ORDER BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// DeleteTemplate removes a template; its fields cascade.
func (s *Store) DeleteTemplate(id int64) error {
	_, err := s.db.Exec(`DELETE FROM templates WHERE id = ?`, id)
	return err
}

// --- Template fields ---

// ReplaceFields atomically swaps a template's field list for the given one.
// Fields are written already normalized; position preserves z-order.
func (s *Store) ReplaceFields(templateID int64, fields []compose.FieldSpec) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM template_fields WHERE template_id = ?`, templateID); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO template_fields
		(template_id, position, name, kind, x, y, font_size, color, align, font_family, width, height, shape)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, f := range fields {
		if strings.TrimSpace(f.Name) == "" {
			return fmt.Errorf("field %d: name is required", i)
		}
		if _, err := stmt.Exec(templateID, i, f.Name, string(f.Kind), f.X, f.Y,
			f.FontSize, f.Color, string(f.Align), f.FontFamily, f.Width, f.Height, string(f.Shape)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListFields returns a template's fields in z-order.
func (s *Store) ListFields(templateID int64) ([]compose.FieldSpec, error) {
	rows, err := s.db.Query(`SELECT name, kind, x, y, font_size, color, align, font_family, width, height, shape
		FROM template_fields WHERE template_id = ? ORDER BY position`, templateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fields []compose.FieldSpec
	for rows.Next() {
		var f compose.FieldSpec
		var kind, align, shape string
		if err := rows.Scan(&f.Name, &kind, &f.X, &f.Y, &f.FontSize, &f.Color, &align, &f.FontFamily, &f.Width, &f.Height, &shape); err != nil {
			return nil, err
		}
		f.Kind = compose.Kind(kind)
		f.Align = compose.Align(align)
		f.Shape = compose.Shape(shape)
		fields = append(fields, f)
	}
	return fields, rows.Err()
}

// --- Certificates ---

// SaveCertificate records a generated output image.
func (s *Store) SaveCertificate(c Certificate) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO certificates (user_id, template_id, filename, preview) VALUES (?, ?, ?, ?)`,
		c.UserID, c.TemplateID, c.Filename, boolInt(c.Preview))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetCertificateByFilename returns a certificate row by its filename.
func (s *Store) GetCertificateByFilename(filename string) (Certificate, error) {
	var c Certificate
	var preview int
	err := s.db.QueryRow(
		`SELECT id, user_id, template_id, filename, preview, created_at FROM certificates WHERE filename = ?`, filename).
		Scan(&c.ID, &c.UserID, &c.TemplateID, &c.Filename, &preview, &c.CreatedAt)
	if err != nil {
		return Certificate{}, err
	}
	c.Preview = preview == 1
	return c, nil
}

// ListCertificates returns a user's final certificates, newest first.
func (s *Store) ListCertificates(userID int64) ([]Certificate, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, template_id, filename, preview, created_at FROM certificates
		 WHERE user_id = ? AND preview = 0 ORDER BY id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var certs []Certificate
	for rows.Next() {
		var c Certificate
		var preview int
		if err := rows.Scan(&c.ID, &c.UserID, &c.TemplateID, &c.Filename, &preview, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Preview = preview == 1
		certs = append(certs, c)
	}
	return certs, rows.Err()
}

// ListStalePreviews returns preview rows created before cutoff (RFC3339 or
// SQLite datetime text, both compare lexicographically).
func (s *Store) ListStalePreviews(cutoff string) ([]Certificate, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, template_id, filename, preview, created_at FROM certificates
		 WHERE preview = 1 AND created_at < ?`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var certs []Certificate
	for rows.Next() {
		var c Certificate
		var preview int
		if err := rows.Scan(&c.ID, &c.UserID, &c.TemplateID, &c.Filename, &preview, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Preview = preview == 1
		certs = append(certs, c)
	}
	return certs, rows.Err()
}

// DeleteCertificate removes a certificate row by id.
func (s *Store) DeleteCertificate(id int64) error {
	_, err := s.db.Exec(`DELETE FROM certificates WHERE id = ?`, id)
	return err
}

// --- Referral codes ---

// CreateReferralCode inserts a referral code and returns its id.
func (s *Store) CreateReferralCode(rc ReferralCode) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO referral_codes (code, owner_id, max_uses, expires_at, active) VALUES (?, ?, ?, ?, ?)`,
		rc.Code, rc.OwnerID, rc.MaxUses, rc.ExpiresAt, boolInt(rc.Active))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetReferralCode returns a referral code by its code string (uppercased).
func (s *Store) GetReferralCode(code string) (ReferralCode, error) {
	var rc ReferralCode
	var active int
	err := s.db.QueryRow(
		`SELECT id, code, owner_id, max_uses, used_count, expires_at, active, created_at
		 FROM referral_codes WHERE code = ?`, strings.ToUpper(strings.TrimSpace(code))).
		Scan(&rc.ID, &rc.Code, &rc.OwnerID, &rc.MaxUses, &rc.UsedCount, &rc.ExpiresAt, &active, &rc.CreatedAt)
	if err != nil {
		return ReferralCode{}, err
	}
	rc.Active = active == 1
	return rc, nil
}

// ListReferralCodes returns all referral codes, newest first.
func (s *Store) ListReferralCodes() ([]ReferralCode, error) {
	rows, err := s.db.Query(
		`SELECT id, code, owner_id, max_uses, used_count, expires_at, active, created_at
		 FROM referral_codes ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []ReferralCode
	for rows.Next() {
		var rc ReferralCode
		var active int
		if err := rows.Scan(&rc.ID, &rc.Code, &rc.OwnerID, &rc.MaxUses, &rc.UsedCount, &rc.ExpiresAt, &active, &rc.CreatedAt); err != nil {
			return nil, err
		}
		rc.Active = active == 1
		codes = append(codes, rc)
	}
	return codes, rows.Err()
}

// IncrementReferralUse bumps a code's redemption counter.
func (s *Store) IncrementReferralUse(id int64) error {
	_, err := s.db.Exec(`UPDATE referral_codes SET used_count = used_count + 1 WHERE id = ?`, id)
	return err
}

// --- scan helpers ---

func nullString(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func nullInt(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
