package certforge

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/eringen/certforge/views"
)

func (a *App) authData(c echo.Context, flash, message string) views.AuthData {
	return views.AuthData{
		Site:       a.siteConfig(),
		CSRFToken:  CsrfToken(c),
		FlashError: flash,
		Message:    message,
	}
}

func (a *App) handleRegisterForm(c echo.Context) error {
	return Render(c, a.Views.Register(a.authData(c, "", "")))
}

// handleRegister creates an account from email/phone + password. A valid
// referral code credits both sides of the referral.
func (a *App) handleRegister(c echo.Context) error {
	email := strings.ToLower(strings.TrimSpace(c.FormValue("email")))
	phone := strings.TrimSpace(c.FormValue("phone"))
	password := c.FormValue("password")
	referral := strings.TrimSpace(c.FormValue("referral_code"))

	if email == "" && phone == "" {
		return RenderStatus(c, http.StatusBadRequest, a.Views.Register(a.authData(c, "Email or phone is required", "")))
	}
	if len(password) < 8 {
		return RenderStatus(c, http.StatusBadRequest, a.Views.Register(a.authData(c, "Password must be at least 8 characters", "")))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	u := User{Email: email, Phone: phone, PasswordHash: string(hash)}

	var code ReferralCode
	if referral != "" {
		code, err = a.validReferralCode(referral)
		if err != nil {
			return RenderStatus(c, http.StatusBadRequest, a.Views.Register(a.authData(c, "Referral code is invalid or expired", "")))
		}
		u.ReferredBy = code.OwnerID
		u.WalletPaise = a.Config.ReferralNewUserBonusPaise
	}

	id, err := a.Store.CreateUser(u)
	if err != nil {
		// UNIQUE violation on email or phone
		return RenderStatus(c, http.StatusConflict, a.Views.Register(a.authData(c, "An account with that email or phone already exists", "")))
	}
	u.ID = id

	if code.ID != 0 {
		if err := a.redeemReferral(code, u); err != nil {
			c.Logger().Errorf("redeem referral %s: %v", code.Code, err)
		}
	}

	if err := setUserSession(c, u); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/")
}

func (a *App) handleLoginForm(c echo.Context) error {
	return Render(c, a.Views.Login(a.authData(c, "", "")))
}

// handleLogin authenticates by email or phone. An identifier containing "@"
// is treated as an email.
func (a *App) handleLogin(c echo.Context) error {
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		return RenderStatus(c, http.StatusTooManyRequests, a.Views.Login(a.authData(c, "Too many attempts, try again in a minute", "")))
	}

	identifier := strings.TrimSpace(c.FormValue("identifier"))
	password := c.FormValue("password")

	var u User
	var err error
	if strings.Contains(identifier, "@") {
		u, err = a.Store.GetUserByEmail(identifier)
	} else {
		u, err = a.Store.GetUserByPhone(identifier)
	}
	if err != nil || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		a.loginLimiter.Record(ip)
		return RenderStatus(c, http.StatusUnauthorized, a.Views.Login(a.authData(c, "Invalid credentials", "")))
	}

	if err := setUserSession(c, u); err != nil {
		return err
	}
	if u.IsAdmin {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	return c.Redirect(http.StatusSeeOther, "/")
}

func handleLogout(c echo.Context) error {
	if err := clearUserSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/")
}

func (a *App) handleForgotPasswordForm(c echo.Context) error {
	return Render(c, a.Views.ForgotPassword(a.authData(c, "", "")))
}

// handleForgotPassword resets the password for a verified phone number. The
// phone itself is the possession factor here, matching how accounts are
// provisioned for schools without email.
func (a *App) handleForgotPassword(c echo.Context) error {
	phone := strings.TrimSpace(c.FormValue("phone"))
	password := c.FormValue("new_password")

	if len(password) < 8 {
		return RenderStatus(c, http.StatusBadRequest, a.Views.ForgotPassword(a.authData(c, "Password must be at least 8 characters", "")))
	}

	u, err := a.Store.GetUserByPhone(phone)
	if err != nil {
		// Same response as success so account existence leaks nothing.
		return Render(c, a.Views.ForgotPassword(a.authData(c, "", "If the number is registered, the password has been reset")))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := a.Store.UpdatePassword(u.ID, string(hash)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return Render(c, a.Views.ForgotPassword(a.authData(c, "", "If the number is registered, the password has been reset")))
}
