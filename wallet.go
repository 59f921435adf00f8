package certforge

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eringen/certforge/ledger"
	"github.com/eringen/certforge/views"
)

func (a *App) handleWallet(c echo.Context) error {
	userID := CurrentUserID(c)
	user, err := a.Store.GetUser(userID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	txs, err := a.Ledger.ListUserTransactions(userID, 50)
	if err != nil {
		return fmt.Errorf("list transactions: %w", err)
	}

	history := make([]views.WalletEntry, len(txs))
	for i, tx := range txs {
		history[i] = views.WalletEntry{
			Type:        tx.Type,
			AmountPaise: tx.AmountPaise,
			Note:        tx.Note,
			CreatedAt:   tx.CreatedAt,
		}
	}

	return Render(c, a.Views.Wallet(views.WalletData{
		Site:          a.siteConfig(),
		BalancePaise:  user.WalletPaise,
		MinTopupPaise: a.Config.MinTopupPaise,
		History:       history,
		GatewayKey:    a.Config.GatewayKeyID,
		CSRFToken:     CsrfToken(c),
	}))
}

// handleTopup creates a gateway order for a wallet topup and stashes the
// order in the session for the verify callback.
func (a *App) handleTopup(c echo.Context) error {
	if a.gateway == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "payments are not configured")
	}

	amount, err := ParseRupees(c.FormValue("amount"))
	if err != nil || amount < a.Config.MinTopupPaise {
		return echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("minimum topup is %s", views.FormatINR(a.Config.MinTopupPaise)))
	}

	order, err := a.gateway.CreateOrder(c.Request().Context(), amount, map[string]string{"flow": "topup"})
	if err != nil {
		c.Logger().Errorf("create topup order: %v", err)
		return echo.NewHTTPError(http.StatusBadGateway, "payment gateway unavailable")
	}

	if err := sessionSet(c, "topup_order_id", order.ID); err != nil {
		return err
	}
	if err := sessionSet(c, "topup_amount", amount); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{
		"order_id": order.ID,
		"amount":   order.AmountPaise,
		"currency": order.Currency,
		"key":      a.Config.GatewayKeyID,
	})
}

// handlePaymentVerify is the checkout callback for both flows. It verifies
// the signature, matches the order against the session, re-fetches the order
// from the gateway to confirm the amount, and then either credits the wallet
// or finalizes the pending purchase. A payment id that was already recorded
// in the ledger is a no-op.
func (a *App) handlePaymentVerify(c echo.Context) error {
	if a.gateway == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "payments are not configured")
	}

	orderID := strings.TrimSpace(c.FormValue("razorpay_order_id"))
	paymentID := strings.TrimSpace(c.FormValue("razorpay_payment_id"))
	signature := strings.TrimSpace(c.FormValue("razorpay_signature"))
	if orderID == "" || paymentID == "" || signature == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing payment parameters")
	}

	if err := a.gateway.VerifySignature(orderID, paymentID, signature); err != nil {
		c.Logger().Warnf("payment signature mismatch for order %s from %s", orderID, c.RealIP())
		return echo.NewHTTPError(http.StatusBadRequest, "payment verification failed")
	}

	seen, err := a.Ledger.HasPayment(paymentID)
	if err != nil {
		return fmt.Errorf("check payment: %w", err)
	}
	if seen {
		return c.Redirect(http.StatusSeeOther, "/wallet/")
	}

	userID := CurrentUserID(c)

	if v, ok := sessionGet(c, "topup_order_id"); ok && v == orderID {
		return a.verifyTopup(c, userID, orderID, paymentID)
	}
	if v, ok := sessionGet(c, "purchase_order_id"); ok && v == orderID {
		return a.verifyPurchase(c, userID, orderID, paymentID)
	}
	return echo.NewHTTPError(http.StatusBadRequest, "unknown order")
}

func (a *App) verifyTopup(c echo.Context, userID int64, orderID, paymentID string) error {
	amountVal, _ := sessionGet(c, "topup_amount")
	amount, _ := amountVal.(int64)

	order, err := a.gateway.FetchOrder(c.Request().Context(), orderID)
	if err != nil {
		c.Logger().Errorf("fetch topup order %s: %v", orderID, err)
		return echo.NewHTTPError(http.StatusBadGateway, "payment gateway unavailable")
	}
	if amount <= 0 || order.AmountPaise != amount {
		return echo.NewHTTPError(http.StatusBadRequest, "order amount mismatch")
	}

	if err := a.Store.CreditWallet(userID, amount); err != nil {
		return fmt.Errorf("credit wallet: %w", err)
	}
	if _, err := a.Ledger.Record(ledger.Transaction{
		UserID:      userID,
		Type:        ledger.TxTopup,
		AmountPaise: amount,
		PaymentID:   paymentID,
		OrderID:     orderID,
		Note:        "wallet topup",
	}); err != nil {
		c.Logger().Errorf("ledger topup record: %v", err)
	}

	sessionPop(c, "topup_order_id")
	sessionPop(c, "topup_amount")
	return c.Redirect(http.StatusSeeOther, "/wallet/")
}

func (a *App) verifyPurchase(c echo.Context, userID int64, orderID, paymentID string) error {
	tidVal, _ := sessionGet(c, "purchase_template_id")
	tid, _ := tidVal.(int64)
	amountVal, _ := sessionGet(c, "purchase_amount")
	amount, _ := amountVal.(int64)

	tpl, err := a.Store.GetTemplate(tid)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown template")
	}

	order, err := a.gateway.FetchOrder(c.Request().Context(), orderID)
	if err != nil {
		c.Logger().Errorf("fetch purchase order %s: %v", orderID, err)
		return echo.NewHTTPError(http.StatusBadGateway, "payment gateway unavailable")
	}
	if amount <= 0 || order.AmountPaise != amount || tpl.PricePaise != amount {
		return echo.NewHTTPError(http.StatusBadRequest, "order amount mismatch")
	}

	// Paid directly at the gateway, so the debit side is the payment itself;
	// the wallet is untouched and the ledger rows carry the payment id.
	tplPaid := tpl
	tplPaid.PricePaise = amount
	if err := a.finalizePurchase(c, userID, tplPaid, paymentID, orderID); err != nil {
		return err
	}

	sessionPop(c, "purchase_order_id")
	sessionPop(c, "purchase_template_id")
	sessionPop(c, "purchase_amount")
	return c.Redirect(http.StatusSeeOther, "/certificates/")
}
