package certforge

import (
	"fmt"
	"image"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/eringen/certforge/compose"
	"github.com/eringen/certforge/ledger"
	"github.com/eringen/certforge/views"
)

func (a *App) siteConfig() views.SiteConfig {
	return views.SiteConfig{Name: a.Config.Name, URL: a.Config.URL}
}

func templateCard(t Template) views.TemplateCard {
	return views.TemplateCard{
		ID:         t.ID,
		Name:       t.Name,
		Category:   t.Category,
		PricePaise: t.PricePaise,
		ImageURL:   "/templates/image/" + t.ImagePath,
	}
}

func templateCards(ts []Template) []views.TemplateCard {
	cards := make([]views.TemplateCard, len(ts))
	for i, t := range ts {
		cards[i] = templateCard(t)
	}
	return cards
}

func (a *App) handleHome(c echo.Context) error {
	return a.renderGallery(c, "")
}

func (a *App) handleCategory(c echo.Context) error {
	return a.renderGallery(c, c.Param("name"))
}

func (a *App) renderGallery(c echo.Context, category string) error {
	templates, err := a.Cache.ListTemplates(category)
	if err != nil {
		return fmt.Errorf("list templates: %w", err)
	}
	categories, err := a.Cache.ListCategories()
	if err != nil {
		return fmt.Errorf("list categories: %w", err)
	}
	return Render(c, a.Views.Home(views.HomeData{
		Site:           a.siteConfig(),
		Templates:      templateCards(templates),
		Categories:     categories,
		ActiveCategory: category,
		LoggedIn:       CurrentUserID(c) != 0,
	}))
}

// handleTemplateImage serves base images from the template directory. The
// filename is taken as a single path element, no traversal.
func (a *App) handleTemplateImage(c echo.Context) error {
	filename := filepath.Base(c.Param("filename"))
	if filename == "." || filename == "/" {
		return echo.NewHTTPError(http.StatusNotFound)
	}
	return c.File(filepath.Join(a.Config.TemplateDir, filename))
}

// --- Fill and preview ---

func (a *App) handleFillForm(c echo.Context) error {
	tpl, fields, err := a.loadTemplate(c)
	if err != nil {
		return err
	}
	user, err := a.Store.GetUser(CurrentUserID(c))
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	return Render(c, a.Views.Fill(views.FillData{
		Site:      a.siteConfig(),
		Template:  templateCard(tpl),
		Fields:    fields,
		Balance:   user.WalletPaise,
		CanAfford: user.WalletPaise >= tpl.PricePaise,
		CSRFToken: CsrfToken(c),
	}))
}

// handlePreview composes the submitted values over the template and stores
// the result as a transient preview tied to the session.
func (a *App) handlePreview(c echo.Context) error {
	tpl, fields, err := a.loadTemplate(c)
	if err != nil {
		return err
	}
	userID := CurrentUserID(c)

	base, err := a.openTemplateImage(tpl)
	if err != nil {
		return err
	}

	vals, textValues := a.collectValues(c, fields)
	result, err := a.Compositor.Compose(base, fields, vals)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "template image is unusable")
	}
	for _, skip := range result.Skipped {
		c.Logger().Warnf("template %d field %q skipped: %v", tpl.ID, skip.Name, skip.Err)
	}

	filename := uuid.NewString() + ".png"
	if err := writePNG(a.Config.PreviewDir, filename, result.Image); err != nil {
		return fmt.Errorf("save preview: %w", err)
	}
	if _, err := a.Store.SaveCertificate(Certificate{
		UserID: userID, TemplateID: tpl.ID, Filename: filename, Preview: true,
	}); err != nil {
		return fmt.Errorf("record preview: %w", err)
	}

	if err := sessionSet(c, "preview_filename", filename); err != nil {
		return err
	}
	if err := sessionSet(c, "preview_template_id", tpl.ID); err != nil {
		return err
	}
	if err := sessionSet(c, "preview_values", textValues); err != nil {
		return err
	}

	user, err := a.Store.GetUser(userID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	return Render(c, a.Views.Preview(views.PreviewData{
		Site:        a.siteConfig(),
		Template:    templateCard(tpl),
		PreviewURL:  "/previews/" + filename,
		Balance:     user.WalletPaise,
		CanAfford:   user.WalletPaise >= tpl.PricePaise,
		GatewayKey:  a.Config.GatewayKeyID,
		AmountPaise: tpl.PricePaise,
		CSRFToken:   CsrfToken(c),
	}))
}

// collectValues turns the submitted form into compose values. Text inputs are
// read from the form by field name; photos from the multipart files. The
// plain-text map is also returned for the session stash.
func (a *App) collectValues(c echo.Context, fields []compose.FieldSpec) (compose.Values, map[string]string) {
	vals := compose.Values{}
	text := map[string]string{}
	for _, f := range fields {
		switch f.Kind {
		case compose.KindText:
			v := strings.TrimSpace(c.FormValue(f.Name))
			vals.SetText(f.Name, v)
			text[f.Name] = v
		case compose.KindImage:
			file, err := c.FormFile(f.Name)
			if err != nil {
				continue
			}
			if img := decodeUpload(file); img != nil {
				vals.SetImage(f.Name, img)
			}
		}
	}
	return vals, text
}

// handleWalletPurchase finalizes the previewed certificate paid directly
// from the wallet balance.
func (a *App) handleWalletPurchase(c echo.Context) error {
	tpl, _, err := a.loadTemplate(c)
	if err != nil {
		return err
	}
	userID := CurrentUserID(c)

	if tpl.PricePaise > 0 {
		if err := a.Store.DebitWallet(userID, tpl.PricePaise); err != nil {
			if err == ErrInsufficientFunds {
				return c.Redirect(http.StatusSeeOther, "/wallet/")
			}
			return fmt.Errorf("debit wallet: %w", err)
		}
	}

	if err := a.finalizePurchase(c, userID, tpl, "", ""); err != nil {
		// Refund the debit if the file could not be finalized.
		if tpl.PricePaise > 0 {
			_ = a.Store.CreditWallet(userID, tpl.PricePaise)
		}
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/certificates/")
}

// finalizePurchase promotes the session's preview into a final certificate
// and records the purchase in the ledger.
func (a *App) finalizePurchase(c echo.Context, userID int64, tpl Template, paymentID, orderID string) error {
	fn, ok := sessionPop(c, "preview_filename")
	filename, _ := fn.(string)
	tidVal, _ := sessionGet(c, "preview_template_id")
	tid, _ := tidVal.(int64)
	sessionPop(c, "preview_template_id")
	sessionPop(c, "preview_values")
	if !ok || filename == "" || tid != tpl.ID {
		return echo.NewHTTPError(http.StatusBadRequest, "no preview to confirm")
	}

	prev, err := a.Store.GetCertificateByFilename(filename)
	if err != nil || prev.UserID != userID || !prev.Preview {
		return echo.NewHTTPError(http.StatusBadRequest, "preview expired")
	}

	finalName := uuid.NewString() + ".png"
	if err := os.MkdirAll(a.Config.GeneratedDir, 0o755); err != nil {
		return fmt.Errorf("create generated dir: %w", err)
	}
	src := filepath.Join(a.Config.PreviewDir, filename)
	dst := filepath.Join(a.Config.GeneratedDir, finalName)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("promote preview: %w", err)
	}
	if err := a.Store.DeleteCertificate(prev.ID); err != nil {
		return fmt.Errorf("drop preview row: %w", err)
	}
	if _, err := a.Store.SaveCertificate(Certificate{
		UserID: userID, TemplateID: tpl.ID, Filename: finalName,
	}); err != nil {
		return fmt.Errorf("record certificate: %w", err)
	}

	if tpl.PricePaise > 0 {
		if _, err := a.Ledger.Record(ledger.Transaction{
			UserID:      userID,
			Type:        ledger.TxPurchase,
			AmountPaise: -tpl.PricePaise,
			PaymentID:   paymentID,
			OrderID:     orderID,
			TemplateID:  tpl.ID,
			Note:        tpl.Name,
		}); err != nil {
			c.Logger().Errorf("ledger purchase record: %v", err)
		}
	}
	return nil
}

// handlePurchaseOrder creates a gateway order to pay for the previewed
// certificate directly, without a wallet topup first.
func (a *App) handlePurchaseOrder(c echo.Context) error {
	if a.gateway == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "payments are not configured")
	}
	tpl, _, err := a.loadTemplate(c)
	if err != nil {
		return err
	}
	if tpl.PricePaise <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "template is free")
	}

	order, err := a.gateway.CreateOrder(c.Request().Context(), tpl.PricePaise, map[string]string{
		"flow":        "purchase",
		"template_id": strconv.FormatInt(tpl.ID, 10),
	})
	if err != nil {
		c.Logger().Errorf("create purchase order: %v", err)
		return echo.NewHTTPError(http.StatusBadGateway, "payment gateway unavailable")
	}

	if err := sessionSet(c, "purchase_order_id", order.ID); err != nil {
		return err
	}
	if err := sessionSet(c, "purchase_template_id", tpl.ID); err != nil {
		return err
	}
	if err := sessionSet(c, "purchase_amount", tpl.PricePaise); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{
		"order_id": order.ID,
		"amount":   order.AmountPaise,
		"currency": order.Currency,
		"key":      a.Config.GatewayKeyID,
	})
}

// --- Generated files ---

func (a *App) handleCertificates(c echo.Context) error {
	certs, err := a.Store.ListCertificates(CurrentUserID(c))
	if err != nil {
		return fmt.Errorf("list certificates: %w", err)
	}
	items := make([]views.CertificateItem, len(certs))
	for i, cert := range certs {
		items[i] = views.CertificateItem{
			Filename:  cert.Filename,
			URL:       "/certificates/file/" + cert.Filename,
			CreatedAt: cert.CreatedAt,
		}
	}
	return Render(c, a.Views.Certificates(items, a.siteConfig()))
}

// handleCertificateFile serves a final certificate to its owner only.
func (a *App) handleCertificateFile(c echo.Context) error {
	cert, err := a.ownedCertificate(c)
	if err != nil {
		return err
	}
	if cert.Preview {
		return echo.NewHTTPError(http.StatusNotFound)
	}
	return c.File(filepath.Join(a.Config.GeneratedDir, cert.Filename))
}

// handlePreviewFile serves a preview to its owner only.
func (a *App) handlePreviewFile(c echo.Context) error {
	cert, err := a.ownedCertificate(c)
	if err != nil {
		return err
	}
	if !cert.Preview {
		return echo.NewHTTPError(http.StatusNotFound)
	}
	return c.File(filepath.Join(a.Config.PreviewDir, cert.Filename))
}

func (a *App) ownedCertificate(c echo.Context) (Certificate, error) {
	filename := filepath.Base(c.Param("filename"))
	cert, err := a.Store.GetCertificateByFilename(filename)
	if err != nil {
		return Certificate{}, echo.NewHTTPError(http.StatusNotFound)
	}
	if cert.UserID != CurrentUserID(c) && !IsAdmin(c) {
		return Certificate{}, echo.NewHTTPError(http.StatusNotFound)
	}
	return cert, nil
}

// --- shared helpers ---

// loadTemplate resolves the :id route param to a template and its fields.
func (a *App) loadTemplate(c echo.Context) (Template, []compose.FieldSpec, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		return Template{}, nil, echo.NewHTTPError(http.StatusNotFound)
	}
	tpl, err := a.Store.GetTemplate(id)
	if err != nil {
		return Template{}, nil, echo.NewHTTPError(http.StatusNotFound)
	}
	fields, err := a.Store.ListFields(id)
	if err != nil {
		return Template{}, nil, fmt.Errorf("list fields: %w", err)
	}
	return tpl, fields, nil
}

// openTemplateImage decodes a template's base image from disk.
func (a *App) openTemplateImage(tpl Template) (image.Image, error) {
	f, err := os.Open(filepath.Join(a.Config.TemplateDir, tpl.ImagePath))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusUnprocessableEntity, "template image is missing")
	}
	defer f.Close()
	img, err := compose.DecodeTemplate(f)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusUnprocessableEntity, "template image is unusable")
	}
	return img, nil
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	he, ok := err.(*echo.HTTPError)
	if ok && he.Code == http.StatusNotFound {
		_ = RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		c.Logger().Errorf("server error: %v", err)
		_ = RenderStatus(c, code, a.Views.ServerError())
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}
