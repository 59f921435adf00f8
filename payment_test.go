package certforge

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func sign(orderID, paymentID, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	const secret = "test_secret"
	g := &HTTPGateway{KeySecret: secret}

	good := sign("order_123", "pay_456", secret)
	if err := g.VerifySignature("order_123", "pay_456", good); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}

	if err := g.VerifySignature("order_123", "pay_456", "deadbeef"); !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("forged signature: got %v, want ErrSignatureMismatch", err)
	}
	if err := g.VerifySignature("order_999", "pay_456", good); !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("signature for different order accepted")
	}
}

func TestHTTPGatewayCreateAndFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, _, ok := r.BasicAuth(); !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/orders":
			w.Write([]byte(`{"id":"order_abc","amount":30000,"currency":"INR","status":"created"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/v1/orders/order_abc":
			w.Write([]byte(`{"id":"order_abc","amount":30000,"currency":"INR","status":"paid"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	g := NewHTTPGateway("key", "secret")
	g.BaseURL = srv.URL

	o, err := g.CreateOrder(context.Background(), 30000, map[string]string{"flow": "topup"})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if o.ID != "order_abc" || o.AmountPaise != 30000 {
		t.Fatalf("order = %+v", o)
	}

	o, err = g.FetchOrder(context.Background(), "order_abc")
	if err != nil {
		t.Fatalf("FetchOrder: %v", err)
	}
	if o.Status != "paid" {
		t.Fatalf("status = %q, want paid", o.Status)
	}

	if _, err := g.FetchOrder(context.Background(), "order_missing"); err == nil {
		t.Fatal("expected error for missing order")
	}
}
