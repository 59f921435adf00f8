package certforge

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/eringen/certforge/compose"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUserLifecycle(t *testing.T) {
	s := newTestStore(t)

	id, err := s.CreateUser(User{Email: "a@example.com", Phone: "9000000001", PasswordHash: "x"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	u, err := s.GetUserByEmail("A@Example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if u.ID != id {
		t.Fatalf("got user %d, want %d", u.ID, id)
	}

	if _, err := s.GetUserByPhone("9000000001"); err != nil {
		t.Fatalf("GetUserByPhone: %v", err)
	}

	if _, err := s.GetUserByEmail("nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing user: got %v, want ErrNotFound", err)
	}
}

func TestWalletDebitGuard(t *testing.T) {
	s := newTestStore(t)

	id, err := s.CreateUser(User{Email: "w@example.com", PasswordHash: "x"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := s.CreditWallet(id, 50000); err != nil {
		t.Fatalf("CreditWallet: %v", err)
	}

	if err := s.DebitWallet(id, 60000); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("overdraft: got %v, want ErrInsufficientFunds", err)
	}
	if err := s.DebitWallet(id, 30000); err != nil {
		t.Fatalf("DebitWallet: %v", err)
	}

	u, err := s.GetUser(id)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if u.WalletPaise != 20000 {
		t.Fatalf("balance = %d, want 20000", u.WalletPaise)
	}
}

func TestTemplateFieldsRoundTrip(t *testing.T) {
	s := newTestStore(t)

	tid, err := s.SaveTemplate(Template{Name: "Award", Category: "school", PricePaise: 35000, ImagePath: "award.png"})
	if err != nil {
		t.Fatalf("SaveTemplate: %v", err)
	}

	in := []compose.FieldSpec{
		{Name: "student_name", Kind: compose.KindText, X: 200, Y: 140, FontSize: 42, Color: "#1a1a1a", Align: compose.AlignCenter},
		{Name: "photo", Kind: compose.KindImage, X: 40, Y: 40, Width: 120, Height: 120, Shape: compose.ShapeCircle},
		{Name: "date", Kind: compose.KindText, X: 60, Y: 300, FontSize: 18, Color: "black", Align: compose.AlignLeft},
	}
	if err := s.ReplaceFields(tid, in); err != nil {
		t.Fatalf("ReplaceFields: %v", err)
	}

	out, err := s.ListFields(tid)
	if err != nil {
		t.Fatalf("ListFields: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("got %d fields, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i].Name != in[i].Name {
			t.Errorf("field %d: name %q, want %q (order must survive)", i, out[i].Name, in[i].Name)
		}
	}
	if out[1].Shape != compose.ShapeCircle {
		t.Errorf("photo shape = %q, want circle", out[1].Shape)
	}

	// Replace shrinks the list instead of accumulating.
	if err := s.ReplaceFields(tid, in[:1]); err != nil {
		t.Fatalf("ReplaceFields (shrink): %v", err)
	}
	out, err = s.ListFields(tid)
	if err != nil {
		t.Fatalf("ListFields: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("after shrink got %d fields, want 1", len(out))
	}
}

func TestReplaceFieldsRejectsUnnamed(t *testing.T) {
	s := newTestStore(t)

	tid, err := s.SaveTemplate(Template{Name: "X", Category: "misc", ImagePath: "x.png"})
	if err != nil {
		t.Fatalf("SaveTemplate: %v", err)
	}
	err = s.ReplaceFields(tid, []compose.FieldSpec{{Name: "  ", Kind: compose.KindText}})
	if err == nil {
		t.Fatal("expected error for unnamed field")
	}
	fields, err := s.ListFields(tid)
	if err != nil {
		t.Fatalf("ListFields: %v", err)
	}
	if len(fields) != 0 {
		t.Fatalf("failed replace left %d fields behind", len(fields))
	}
}

func TestTemplateDeleteCascades(t *testing.T) {
	s := newTestStore(t)

	tid, err := s.SaveTemplate(Template{Name: "Gone", Category: "misc", ImagePath: "gone.png"})
	if err != nil {
		t.Fatalf("SaveTemplate: %v", err)
	}
	if err := s.ReplaceFields(tid, []compose.FieldSpec{{Name: "n", Kind: compose.KindText, FontSize: 20}}); err != nil {
		t.Fatalf("ReplaceFields: %v", err)
	}
	if err := s.DeleteTemplate(tid); err != nil {
		t.Fatalf("DeleteTemplate: %v", err)
	}
	fields, err := s.ListFields(tid)
	if err != nil {
		t.Fatalf("ListFields: %v", err)
	}
	if len(fields) != 0 {
		t.Fatalf("fields survived template delete: %d", len(fields))
	}
}

func TestListTemplatesByCategory(t *testing.T) {
	s := newTestStore(t)

	for _, tpl := range []Template{
		{Name: "A", Category: "school", ImagePath: "a.png"},
		{Name: "B", Category: "sports", ImagePath: "b.png"},
		{Name: "C", Category: "school", ImagePath: "c.png"},
	} {
		if _, err := s.SaveTemplate(tpl); err != nil {
			t.Fatalf("SaveTemplate: %v", err)
		}
	}

	school, err := s.ListTemplates("school")
	if err != nil {
		t.Fatalf("ListTemplates: %v", err)
	}
	if len(school) != 2 {
		t.Fatalf("school templates = %d, want 2", len(school))
	}

	cats, err := s.ListCategories()
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	if len(cats) != 2 || cats[0] != "school" || cats[1] != "sports" {
		t.Fatalf("categories = %v", cats)
	}
}

func TestCertificatesAndPreviews(t *testing.T) {
	s := newTestStore(t)

	uid, err := s.CreateUser(User{Email: "c@example.com", PasswordHash: "x"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := s.SaveCertificate(Certificate{UserID: uid, TemplateID: 1, Filename: "final.png"}); err != nil {
		t.Fatalf("SaveCertificate: %v", err)
	}
	if _, err := s.SaveCertificate(Certificate{UserID: uid, TemplateID: 1, Filename: "prev.png", Preview: true}); err != nil {
		t.Fatalf("SaveCertificate preview: %v", err)
	}

	finals, err := s.ListCertificates(uid)
	if err != nil {
		t.Fatalf("ListCertificates: %v", err)
	}
	if len(finals) != 1 || finals[0].Filename != "final.png" {
		t.Fatalf("finals = %+v, previews must be excluded", finals)
	}

	stale, err := s.ListStalePreviews("9999-12-31 00:00:00")
	if err != nil {
		t.Fatalf("ListStalePreviews: %v", err)
	}
	if len(stale) != 1 || stale[0].Filename != "prev.png" {
		t.Fatalf("stale previews = %+v", stale)
	}
}

func TestReferralCodes(t *testing.T) {
	s := newTestStore(t)

	uid, err := s.CreateUser(User{Email: "r@example.com", PasswordHash: "x"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	id, err := s.CreateReferralCode(ReferralCode{Code: "FRIEND42", OwnerID: uid, MaxUses: 2, Active: true})
	if err != nil {
		t.Fatalf("CreateReferralCode: %v", err)
	}

	rc, err := s.GetReferralCode("  friend42 ")
	if err != nil {
		t.Fatalf("GetReferralCode: %v", err)
	}
	if rc.ID != id || !rc.Active {
		t.Fatalf("code = %+v", rc)
	}

	if err := s.IncrementReferralUse(id); err != nil {
		t.Fatalf("IncrementReferralUse: %v", err)
	}
	rc, err = s.GetReferralCode("FRIEND42")
	if err != nil {
		t.Fatalf("GetReferralCode: %v", err)
	}
	if rc.UsedCount != 1 {
		t.Fatalf("used_count = %d, want 1", rc.UsedCount)
	}
}
