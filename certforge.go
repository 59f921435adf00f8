// Package certforge is a certificate and poster generation engine built with
// Go, Echo, and templ. Admins upload base images and lay out fields in a
// builder; users fill the fields, preview the result, and pay from a wallet
// to download the final image.
//
// Users provide their own templ components via the ViewFuncs struct, and
// certforge handles the handler logic, compositing, middleware, and database
// operations.
package certforge

import (
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/eringen/certforge/compose"
	"github.com/eringen/certforge/ledger"
	"github.com/eringen/certforge/views"
)

// ViewFuncs holds user-provided templ components that the framework calls
// when rendering pages. This is the inversion-of-control mechanism that
// lets users own and customize all templates.
type ViewFuncs struct {
	Home              func(data views.HomeData) templ.Component
	Login             func(data views.AuthData) templ.Component
	Register          func(data views.AuthData) templ.Component
	ForgotPassword    func(data views.AuthData) templ.Component
	Wallet            func(data views.WalletData) templ.Component
	Fill              func(data views.FillData) templ.Component
	Preview           func(data views.PreviewData) templ.Component
	Certificates      func(items []views.CertificateItem, site views.SiteConfig) templ.Component
	AdminDashboard    func(data views.AdminDashboardData) templ.Component
	AdminTemplateForm func(data views.TemplateFormData) templ.Component
	AdminBuilder      func(data views.BuilderData) templ.Component
	AdminReferrals    func(data views.ReferralsData) templ.Component
	NotFound          func() templ.Component
	ServerError       func() templ.Component
}

// App is the central certforge application. It wires together the stores,
// compositor, cache, handlers, middleware, and user-provided templates.
type App struct {
	Config     SiteConfig
	Echo       *echo.Echo
	Store      *Store
	Ledger     *ledger.Store
	Cache      *TemplateCache
	Views      ViewFuncs
	Compositor *compose.Compositor

	gateway      Gateway
	fontResolver compose.FontResolver
	loginLimiter *LoginLimiter
	customRoutes []func(*App)
	staticDir    string
	stopFns      []func()
}

// New creates a new certforge App with the given configuration and view functions.
func New(cfg SiteConfig, vf ViewFuncs, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config:    cfg,
		Echo:      echo.New(),
		Views:     vf,
		staticDir: "public",
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Start initializes the databases, compositor, middleware, and routes, then
// starts the server.
func (a *App) Start() error {
	if a.Config.SessionSecret == "" {
		return fmt.Errorf("certforge: SessionSecret is required")
	}

	store, err := NewStore(a.Config.DatabasePath)
	if err != nil {
		return fmt.Errorf("certforge: init store: %w", err)
	}
	a.Store = store

	ledgerStore, err := ledger.NewStore(a.Config.LedgerDatabasePath)
	if err != nil {
		return fmt.Errorf("certforge: init ledger: %w", err)
	}
	a.Ledger = ledgerStore

	a.Cache = NewTemplateCache(a.Store, a.Config.TemplateCacheTTL)
	a.loginLimiter = NewLoginLimiter(5, time.Minute)

	if a.fontResolver == nil {
		a.fontResolver = compose.DirResolver{Dir: a.Config.FontDir}
	}
	a.Compositor = compose.New(a.fontResolver)

	if a.gateway == nil && a.Config.GatewayKeyID != "" {
		a.gateway = NewHTTPGateway(a.Config.GatewayKeyID, a.Config.GatewayKeySecret)
	}

	a.stopFns = append(a.stopFns, a.startPreviewCleanup(a.Config.PreviewTTL, 10*time.Minute))

	a.setupMiddleware()
	a.setupRoutes()

	for _, fn := range a.customRoutes {
		fn(a)
	}

	if err := a.Echo.Start(a.Config.Addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (a *App) setupRoutes() {
	e := a.Echo

	// Embedded framework assets fall through to the user's static dir.
	embeddedFS, _ := fs.Sub(EmbeddedAssets, "embedded")
	embeddedHandler := http.FileServer(http.FS(embeddedFS))
	e.GET("/public/builder.js", echo.WrapHandler(http.StripPrefix("/public/", embeddedHandler)))
	e.GET("/public/checkout.js", echo.WrapHandler(http.StripPrefix("/public/", embeddedHandler)))

	e.Static("/public", a.staticDir)

	// Public pages
	e.GET("/", a.handleHome)
	e.GET("/category/:name/", a.handleCategory)
	e.GET("/templates/image/:filename", a.handleTemplateImage)

	// Auth
	e.GET("/register/", a.handleRegisterForm)
	e.POST("/register/", a.handleRegister)
	e.GET("/login/", a.handleLoginForm)
	e.POST("/login/", a.handleLogin)
	e.POST("/logout/", handleLogout)
	e.GET("/forgot-password/", a.handleForgotPasswordForm)
	e.POST("/forgot-password/", a.handleForgotPassword)

	// Wallet and payments
	e.GET("/wallet/", a.handleWallet, requireLogin)
	e.POST("/wallet/topup/", a.handleTopup, requireLogin)
	e.POST("/payment/verify/", a.handlePaymentVerify, requireLogin)

	// Fill, preview, purchase
	e.GET("/templates/:id/fill/", a.handleFillForm, requireLogin)
	e.POST("/templates/:id/preview/", a.handlePreview, requireLogin)
	e.POST("/templates/:id/order/", a.handlePurchaseOrder, requireLogin)
	e.POST("/templates/:id/confirm/", a.handleWalletPurchase, requireLogin)
	e.GET("/previews/:filename", a.handlePreviewFile, requireLogin)

	// Generated certificates
	e.GET("/certificates/", a.handleCertificates, requireLogin)
	e.GET("/certificates/file/:filename", a.handleCertificateFile, requireLogin)

	// Admin
	e.GET("/admin/", a.handleAdminDashboard, requireAdmin)
	e.GET("/admin/templates/new/", a.handleAdminTemplateNew, requireAdmin)
	e.POST("/admin/templates/", a.handleAdminTemplateCreate, requireAdmin)
	e.GET("/admin/templates/:id/edit/", a.handleAdminTemplateEdit, requireAdmin)
	e.POST("/admin/templates/:id/", a.handleAdminTemplateUpdate, requireAdmin)
	e.DELETE("/admin/templates/:id/", a.handleAdminTemplateDelete, requireAdmin)
	e.GET("/admin/templates/:id/builder/", a.handleAdminBuilder, requireAdmin)
	e.POST("/admin/templates/:id/builder/", a.handleAdminBuilderSave, requireAdmin)
	e.GET("/admin/missing/", a.handleAdminMissingFiles, requireAdmin)
	e.GET("/admin/referrals/", a.handleAdminReferrals, requireAdmin)
	e.POST("/admin/referrals/", a.handleAdminReferralCreate, requireAdmin)

	// Ledger API
	ledgerHandler := ledger.NewHandler(a.Ledger)
	ledgerHandler.RegisterRoutes(e, requireAdmin)
}

// startPreviewCleanup deletes expired preview rows and files on a schedule.
// Returns a stop function.
func (a *App) startPreviewCleanup(ttl, interval time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := a.cleanupPreviews(ttl); err != nil {
					a.Echo.Logger.Errorf("preview cleanup: %v", err)
				}
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() { close(done) }
}

func (a *App) cleanupPreviews(ttl time.Duration) error {
	cutoff := time.Now().UTC().Add(-ttl).Format("2006-01-02 15:04:05")
	stale, err := a.Store.ListStalePreviews(cutoff)
	if err != nil {
		return err
	}
	for _, c := range stale {
		_ = os.Remove(filepath.Join(a.Config.PreviewDir, c.Filename))
		if err := a.Store.DeleteCertificate(c.ID); err != nil {
			return err
		}
	}
	return nil
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	for _, stop := range a.stopFns {
		stop()
	}
	if a.Store != nil {
		a.Store.Close()
	}
	if a.Ledger != nil {
		a.Ledger.Close()
	}
	return nil
}

// EnvOr returns the value of the environment variable key, or fallback if empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// MustEnv returns the value of the environment variable key, or fatally exits if empty.
func MustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("certforge: required environment variable %s is not set", key)
	}
	return v
}
