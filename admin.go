package certforge

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eringen/certforge/compose"
	"github.com/eringen/certforge/views"
)

func (a *App) handleAdminDashboard(c echo.Context) error {
	templates, err := a.Store.ListTemplates("")
	if err != nil {
		return fmt.Errorf("list templates: %w", err)
	}
	return Render(c, a.Views.AdminDashboard(views.AdminDashboardData{
		Site:      a.siteConfig(),
		Templates: templateCards(templates),
		Message:   c.QueryParam("message"),
		CSRFToken: CsrfToken(c),
	}))
}

func (a *App) handleAdminTemplateNew(c echo.Context) error {
	return Render(c, a.Views.AdminTemplateForm(views.TemplateFormData{
		Site:      a.siteConfig(),
		IsNew:     true,
		CSRFToken: CsrfToken(c),
	}))
}

// handleAdminTemplateCreate saves a new template with its uploaded base image.
func (a *App) handleAdminTemplateCreate(c echo.Context) error {
	name := strings.TrimSpace(c.FormValue("name"))
	category := strings.TrimSpace(strings.ToLower(c.FormValue("category")))
	if name == "" || category == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name and category are required")
	}
	price, err := ParseRupees(c.FormValue("price"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	file, err := c.FormFile("image")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "base image is required")
	}
	img, err := a.saveTemplateImage(file)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid image: "+err.Error())
	}

	id, err := a.Store.SaveTemplate(Template{
		Name:       name,
		Category:   category,
		PricePaise: price,
		ImagePath:  img.Filename,
	})
	if err != nil {
		return fmt.Errorf("save template: %w", err)
	}
	a.Cache.Invalidate()

	return c.Redirect(http.StatusSeeOther, fmt.Sprintf("/admin/templates/%d/builder/", id))
}

func (a *App) handleAdminTemplateEdit(c echo.Context) error {
	tpl, _, err := a.loadTemplate(c)
	if err != nil {
		return err
	}
	return Render(c, a.Views.AdminTemplateForm(views.TemplateFormData{
		Site:      a.siteConfig(),
		Template:  templateCard(tpl),
		CSRFToken: CsrfToken(c),
	}))
}

func (a *App) handleAdminTemplateUpdate(c echo.Context) error {
	tpl, _, err := a.loadTemplate(c)
	if err != nil {
		return err
	}

	if name := strings.TrimSpace(c.FormValue("name")); name != "" {
		tpl.Name = name
	}
	if category := strings.TrimSpace(strings.ToLower(c.FormValue("category"))); category != "" {
		tpl.Category = category
	}
	if priceStr := c.FormValue("price"); priceStr != "" {
		price, err := ParseRupees(priceStr)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		tpl.PricePaise = price
	}

	if err := a.Store.UpdateTemplate(tpl); err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	a.Cache.Invalidate()
	return c.Redirect(http.StatusSeeOther, "/admin/?message=Template+updated")
}

func (a *App) handleAdminTemplateDelete(c echo.Context) error {
	tpl, _, err := a.loadTemplate(c)
	if err != nil {
		return err
	}
	if err := a.Store.DeleteTemplate(tpl.ID); err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	_ = os.Remove(filepath.Join(a.Config.TemplateDir, tpl.ImagePath))
	a.Cache.Invalidate()
	return c.NoContent(http.StatusOK)
}

// --- Builder ---

func (a *App) handleAdminBuilder(c echo.Context) error {
	tpl, fields, err := a.loadTemplate(c)
	if err != nil {
		return err
	}
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}
	return Render(c, a.Views.AdminBuilder(views.BuilderData{
		Site:       a.siteConfig(),
		Template:   templateCard(tpl),
		Fields:     fields,
		FieldsJSON: string(fieldsJSON),
		CSRFToken:  CsrfToken(c),
	}))
}

// handleAdminBuilderSave replaces a template's field list with the builder's
// payload. The payload arrives alias-keyed and is normalized here, once, so
// everything downstream sees canonical fields.
func (a *App) handleAdminBuilderSave(c echo.Context) error {
	tpl, _, err := a.loadTemplate(c)
	if err != nil {
		return err
	}

	var raw []map[string]any
	if err := json.NewDecoder(c.Request().Body).Decode(&raw); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed field payload")
	}

	fields, err := normalizeFields(raw)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := a.Store.ReplaceFields(tpl.ID, fields); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"saved": len(fields)})
}

// Builder clients have historically sent the same attributes under several
// names. Each alias list is tried in order; the first present key wins.
var (
	nameAliases     = []string{"name", "field_name", "key"}
	kindAliases     = []string{"kind", "field_type", "type"}
	xAliases        = []string{"x", "x_position", "left"}
	yAliases        = []string{"y", "y_position", "top"}
	fontSizeAliases = []string{"font_size", "size"}
	colorAliases    = []string{"color", "font_color"}
	alignAliases    = []string{"align", "alignment"}
	fontAliases     = []string{"font_family", "font"}
	widthAliases    = []string{"width", "w"}
	heightAliases   = []string{"height", "h"}
	shapeAliases    = []string{"shape", "crop"}
)

// normalizeFields converts alias-keyed builder payload entries into canonical
// field specs. Unknown kinds and unnamed fields are rejected outright rather
// than stored and skipped at compose time.
func normalizeFields(raw []map[string]any) ([]compose.FieldSpec, error) {
	fields := make([]compose.FieldSpec, 0, len(raw))
	for i, m := range raw {
		f := compose.FieldSpec{
			Name:       strings.TrimSpace(pickString(m, nameAliases)),
			X:          pickInt(m, xAliases),
			Y:          pickInt(m, yAliases),
			Color:      strings.TrimSpace(pickString(m, colorAliases)),
			FontFamily: strings.TrimSpace(pickString(m, fontAliases)),
			Width:      pickInt(m, widthAliases),
			Height:     pickInt(m, heightAliases),
		}
		if f.Name == "" {
			return nil, fmt.Errorf("field %d: name is required", i)
		}

		switch kind := strings.ToLower(strings.TrimSpace(pickString(m, kindAliases))); kind {
		case "text", "":
			f.Kind = compose.KindText
		case "image", "photo":
			f.Kind = compose.KindImage
		default:
			return nil, fmt.Errorf("field %q: unknown kind %q", f.Name, kind)
		}

		if f.Kind == compose.KindText {
			f.FontSize = pickInt(m, fontSizeAliases)
			if f.FontSize <= 0 {
				f.FontSize = 24
			}
			if f.Color == "" {
				f.Color = "#000000"
			}
			switch align := strings.ToLower(strings.TrimSpace(pickString(m, alignAliases))); align {
			case "center", "centre":
				f.Align = compose.AlignCenter
			case "right":
				f.Align = compose.AlignRight
			case "left", "":
				f.Align = compose.AlignLeft
			default:
				return nil, fmt.Errorf("field %q: unknown align %q", f.Name, align)
			}
		} else {
			switch shape := strings.ToLower(strings.TrimSpace(pickString(m, shapeAliases))); shape {
			case "circle", "round":
				f.Shape = compose.ShapeCircle
			case "rect", "rectangle", "square", "":
				f.Shape = compose.ShapeRect
			default:
				return nil, fmt.Errorf("field %q: unknown shape %q", f.Name, shape)
			}
		}

		fields = append(fields, f)
	}
	return fields, nil
}

func pickString(m map[string]any, aliases []string) string {
	for _, k := range aliases {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}

// pickInt accepts JSON numbers and numeric strings, both of which the
// builder has been known to send.
func pickInt(m map[string]any, aliases []string) int {
	for _, k := range aliases {
		v, ok := m[k]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			return int(n)
		case string:
			if parsed, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
				return parsed
			}
		}
	}
	return 0
}

// --- Maintenance and referrals ---

// handleAdminMissingFiles reports templates whose base image is gone from
// disk, so stale rows are visible instead of failing at compose time.
func (a *App) handleAdminMissingFiles(c echo.Context) error {
	templates, err := a.Store.ListTemplates("")
	if err != nil {
		return fmt.Errorf("list templates: %w", err)
	}
	missing := []map[string]any{}
	for _, t := range templates {
		if _, err := os.Stat(filepath.Join(a.Config.TemplateDir, t.ImagePath)); os.IsNotExist(err) {
			missing = append(missing, map[string]any{
				"template_id": t.ID,
				"name":        t.Name,
				"image_path":  t.ImagePath,
			})
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"missing": missing})
}

func (a *App) handleAdminReferrals(c echo.Context) error {
	return a.renderReferrals(c, c.QueryParam("message"))
}

func (a *App) handleAdminReferralCreate(c echo.Context) error {
	ownerID, err := strconv.ParseInt(strings.TrimSpace(c.FormValue("owner_id")), 10, 64)
	if err != nil || ownerID < 1 {
		return echo.NewHTTPError(http.StatusBadRequest, "owner id is required")
	}
	if _, err := a.Store.GetUser(ownerID); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "no such user")
	}

	maxUses := 0
	if v := strings.TrimSpace(c.FormValue("max_uses")); v != "" {
		maxUses, err = strconv.Atoi(v)
		if err != nil || maxUses < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid max uses")
		}
	}

	rc, err := a.newReferralCode(ownerID, maxUses, strings.TrimSpace(c.FormValue("expires_at")))
	if err != nil {
		return fmt.Errorf("create referral code: %w", err)
	}
	return a.renderReferrals(c, "Created "+rc.Code)
}

func (a *App) renderReferrals(c echo.Context, message string) error {
	codes, err := a.Store.ListReferralCodes()
	if err != nil {
		return fmt.Errorf("list referral codes: %w", err)
	}
	rows := make([]views.ReferralRow, len(codes))
	for i, rc := range codes {
		rows[i] = views.ReferralRow{
			Code:      rc.Code,
			OwnerID:   rc.OwnerID,
			MaxUses:   rc.MaxUses,
			UsedCount: rc.UsedCount,
			ExpiresAt: rc.ExpiresAt,
			Active:    rc.Active,
		}
	}
	return Render(c, a.Views.AdminReferrals(views.ReferralsData{
		Site:      a.siteConfig(),
		Codes:     rows,
		Message:   message,
		CSRFToken: CsrfToken(c),
	}))
}
