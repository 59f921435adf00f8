package certforge

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// ErrSignatureMismatch is returned when a payment callback's signature does
// not verify against the gateway secret.
var ErrSignatureMismatch = errors.New("certforge: payment signature mismatch")

// Order is a payment order created at the gateway. Amounts are in paise.
type Order struct {
	ID          string `json:"id"`
	AmountPaise int64  `json:"amount"`
	Currency    string `json:"currency"`
	Receipt     string `json:"receipt"`
	Status      string `json:"status"`
}

// Gateway abstracts the payment provider. The HTTP implementation talks to a
// Razorpay-style REST API; tests substitute a fake via WithGateway.
type Gateway interface {
	CreateOrder(ctx context.Context, amountPaise int64, notes map[string]string) (Order, error)
	FetchOrder(ctx context.Context, orderID string) (Order, error)
	VerifySignature(orderID, paymentID, signature string) error
}

// HTTPGateway implements Gateway against a Razorpay-compatible orders API
// using key-id/key-secret basic auth.
type HTTPGateway struct {
	KeyID     string
	KeySecret string
	BaseURL   string // default "https://api.razorpay.com"
	Client    *http.Client
}

// NewHTTPGateway builds a gateway with sane HTTP timeouts.
func NewHTTPGateway(keyID, keySecret string) *HTTPGateway {
	return &HTTPGateway{
		KeyID:     keyID,
		KeySecret: keySecret,
		BaseURL:   "https://api.razorpay.com",
		Client:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (g *HTTPGateway) do(ctx context.Context, method, path string, body, out any) error {
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		buf = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.BaseURL+path, buf)
	if err != nil {
		return err
	}
	req.SetBasicAuth(g.KeyID, g.KeySecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.Client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("gateway %s %s: status %d: %s", method, path, resp.StatusCode, msg)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// CreateOrder creates an INR order for the given amount.
func (g *HTTPGateway) CreateOrder(ctx context.Context, amountPaise int64, notes map[string]string) (Order, error) {
	payload := map[string]any{
		"amount":   amountPaise,
		"currency": "INR",
		"receipt":  "rcpt_" + uuid.NewString(),
	}
	if len(notes) > 0 {
		payload["notes"] = notes
	}
	var o Order
	if err := g.do(ctx, http.MethodPost, "/v1/orders", payload, &o); err != nil {
		return Order{}, fmt.Errorf("create order: %w", err)
	}
	return o, nil
}

// FetchOrder retrieves an order so callbacks can re-check the charged amount
// instead of trusting the client.
func (g *HTTPGateway) FetchOrder(ctx context.Context, orderID string) (Order, error) {
	var o Order
	if err := g.do(ctx, http.MethodGet, "/v1/orders/"+orderID, nil, &o); err != nil {
		return Order{}, fmt.Errorf("fetch order %s: %w", orderID, err)
	}
	return o, nil
}

// VerifySignature checks the checkout callback signature:
// hex(HMAC-SHA256(orderID + "|" + paymentID, keySecret)).
func (g *HTTPGateway) VerifySignature(orderID, paymentID, signature string) error {
	return verifySignature(orderID, paymentID, signature, g.KeySecret)
}

func verifySignature(orderID, paymentID, signature, secret string) error {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	if subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) != 1 {
		return ErrSignatureMismatch
	}
	return nil
}
