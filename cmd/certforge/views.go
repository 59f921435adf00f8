// views.go — reference templ components for the built-in site. Sites that
// want their own look pass a different ViewFuncs into certforge.New.
package main

import (
	"context"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/eringen/certforge"
	"github.com/eringen/certforge/compose"
	"github.com/eringen/certforge/views"
)

func viewFuncs() certforge.ViewFuncs {
	return certforge.ViewFuncs{
		Home:              homePage,
		Login:             loginPage,
		Register:          registerPage,
		ForgotPassword:    forgotPasswordPage,
		Wallet:            walletPage,
		Fill:              fillPage,
		Preview:           previewPage,
		Certificates:      certificatesPage,
		AdminDashboard:    adminDashboardPage,
		AdminTemplateForm: adminTemplateFormPage,
		AdminBuilder:      adminBuilderPage,
		AdminReferrals:    adminReferralsPage,
		NotFound:          notFoundPage,
		ServerError:       serverErrorPage,
	}
}

func esc(s string) string { return html.EscapeString(s) }

// page wraps body markup in the shared layout. The CSRF token, when present,
// lands in a meta tag for builder.js and checkout.js.
func page(title, csrfToken string, body func(w io.Writer)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n")
		b.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n")
		if csrfToken != "" {
			fmt.Fprintf(&b, "<meta name=\"csrf-token\" content=%q>\n", csrfToken)
		}
		fmt.Fprintf(&b, "<title>%s</title>\n", esc(title))
		b.WriteString("<link rel=\"stylesheet\" href=\"/public/style.css\">\n</head>\n<body>\n")
		b.WriteString("<header><a href=\"/\">Home</a> <a href=\"/certificates/\">My certificates</a> <a href=\"/wallet/\">Wallet</a></header>\n")
		body(&b)
		b.WriteString("\n</body>\n</html>\n")
		_, err := io.WriteString(w, b.String())
		return err
	})
}

func flash(w io.Writer, msg string) {
	if msg != "" {
		fmt.Fprintf(w, "<p class=\"flash\">%s</p>\n", esc(msg))
	}
}

func csrfInput(w io.Writer, token string) {
	fmt.Fprintf(w, "<input type=\"hidden\" name=\"_csrf\" value=%q>\n", token)
}

func homePage(data views.HomeData) templ.Component {
	return page(data.Site.Name, "", func(w io.Writer) {
		fmt.Fprintf(w, "<h1>%s</h1>\n<nav>", esc(data.Site.Name))
		fmt.Fprint(w, "<a href=\"/\">All</a> ")
		for _, cat := range data.Categories {
			fmt.Fprintf(w, "<a href=\"/category/%s/\">%s</a> ", views.PathEscape(cat), esc(cat))
		}
		fmt.Fprint(w, "</nav>\n<ul class=\"gallery\">\n")
		for _, t := range data.Templates {
			fmt.Fprintf(w, "<li><a href=\"/templates/%d/fill/\"><img src=%q alt=%q><span>%s</span><span>%s</span></a></li>\n",
				t.ID, t.ImageURL, esc(t.Name), esc(t.Name), views.PriceLabel(t.PricePaise))
		}
		fmt.Fprint(w, "</ul>\n")
		if !data.LoggedIn {
			fmt.Fprint(w, "<p><a href=\"/login/\">Log in</a> or <a href=\"/register/\">register</a> to create certificates.</p>\n")
		}
	})
}

func authForm(w io.Writer, action string, token string, inner func(w io.Writer)) {
	fmt.Fprintf(w, "<form method=\"post\" action=%q>\n", action)
	csrfInput(w, token)
	inner(w)
	fmt.Fprint(w, "</form>\n")
}

func loginPage(data views.AuthData) templ.Component {
	return page("Log in", data.CSRFToken, func(w io.Writer) {
		fmt.Fprint(w, "<h1>Log in</h1>\n")
		flash(w, data.FlashError)
		authForm(w, "/login/", data.CSRFToken, func(w io.Writer) {
			fmt.Fprint(w, "<label>Email or phone <input name=\"identifier\" required></label>\n")
			fmt.Fprint(w, "<label>Password <input type=\"password\" name=\"password\" required></label>\n")
			fmt.Fprint(w, "<button>Log in</button>\n")
		})
		fmt.Fprint(w, "<p><a href=\"/forgot-password/\">Forgot password?</a></p>\n")
	})
}

func registerPage(data views.AuthData) templ.Component {
	return page("Register", data.CSRFToken, func(w io.Writer) {
		fmt.Fprint(w, "<h1>Register</h1>\n")
		flash(w, data.FlashError)
		authForm(w, "/register/", data.CSRFToken, func(w io.Writer) {
			fmt.Fprint(w, "<label>Email <input type=\"email\" name=\"email\"></label>\n")
			fmt.Fprint(w, "<label>Phone <input name=\"phone\"></label>\n")
			fmt.Fprint(w, "<label>Password <input type=\"password\" name=\"password\" required minlength=\"8\"></label>\n")
			fmt.Fprint(w, "<label>Referral code <input name=\"referral_code\"></label>\n")
			fmt.Fprint(w, "<button>Create account</button>\n")
		})
	})
}

func forgotPasswordPage(data views.AuthData) templ.Component {
	return page("Reset password", data.CSRFToken, func(w io.Writer) {
		fmt.Fprint(w, "<h1>Reset password</h1>\n")
		flash(w, data.FlashError)
		if data.Message != "" {
			fmt.Fprintf(w, "<p>%s</p>\n", esc(data.Message))
		}
		authForm(w, "/forgot-password/", data.CSRFToken, func(w io.Writer) {
			fmt.Fprint(w, "<label>Phone <input name=\"phone\" required></label>\n")
			fmt.Fprint(w, "<label>New password <input type=\"password\" name=\"new_password\" required minlength=\"8\"></label>\n")
			fmt.Fprint(w, "<button>Reset</button>\n")
		})
	})
}

func walletPage(data views.WalletData) templ.Component {
	return page("Wallet", data.CSRFToken, func(w io.Writer) {
		fmt.Fprintf(w, "<h1>Wallet</h1>\n<p>Balance: %s</p>\n", views.FormatINR(data.BalancePaise))
		flash(w, data.FlashError)
		if data.GatewayKey != "" {
			fmt.Fprintf(w, "<form><label>Amount in rupees <input id=\"amount\" value=\"%d\"></label>\n", data.MinTopupPaise/100)
			fmt.Fprint(w, "<button data-order-url=\"/wallet/topup/\">Add money</button></form>\n")
		}
		fmt.Fprint(w, "<h2>History</h2>\n<table>\n")
		for _, e := range data.History {
			fmt.Fprintf(w, "<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>\n",
				esc(e.CreatedAt), esc(e.Type), views.FormatINR(e.AmountPaise), esc(e.Note))
		}
		fmt.Fprint(w, "</table>\n")
		fmt.Fprint(w, "<script src=\"https://checkout.razorpay.com/v1/checkout.js\"></script>\n")
		fmt.Fprint(w, "<script src=\"/public/checkout.js\"></script>\n")
	})
}

func fillPage(data views.FillData) templ.Component {
	return page(data.Template.Name, data.CSRFToken, func(w io.Writer) {
		fmt.Fprintf(w, "<h1>%s</h1>\n<p>Price: %s, your balance: %s</p>\n",
			esc(data.Template.Name), views.PriceLabel(data.Template.PricePaise), views.FormatINR(data.Balance))
		flash(w, data.FlashError)
		fmt.Fprintf(w, "<form method=\"post\" action=\"/templates/%d/preview/\" enctype=\"multipart/form-data\">\n", data.Template.ID)
		csrfInput(w, data.CSRFToken)
		for _, f := range data.Fields {
			label := esc(strings.ReplaceAll(f.Name, "_", " "))
			if f.Kind == compose.KindImage {
				fmt.Fprintf(w, "<label>%s <input type=\"file\" name=%q accept=\"image/*\"></label>\n", label, f.Name)
			} else {
				fmt.Fprintf(w, "<label>%s <input name=%q></label>\n", label, f.Name)
			}
		}
		fmt.Fprint(w, "<button>Preview</button>\n</form>\n")
	})
}

func previewPage(data views.PreviewData) templ.Component {
	return page("Preview", data.CSRFToken, func(w io.Writer) {
		fmt.Fprintf(w, "<h1>Preview</h1>\n<img src=%q alt=\"preview\">\n", data.PreviewURL)
		if data.AmountPaise == 0 || data.CanAfford {
			fmt.Fprintf(w, "<form method=\"post\" action=\"/templates/%d/confirm/\">\n", data.Template.ID)
			csrfInput(w, data.CSRFToken)
			fmt.Fprintf(w, "<button>Get it for %s</button>\n</form>\n", views.PriceLabel(data.AmountPaise))
		} else {
			fmt.Fprintf(w, "<p>Balance %s does not cover %s.</p>\n",
				views.FormatINR(data.Balance), views.FormatINR(data.AmountPaise))
			if data.GatewayKey != "" {
				fmt.Fprintf(w, "<button data-order-url=\"/templates/%d/order/\">Pay %s now</button>\n",
					data.Template.ID, views.FormatINR(data.AmountPaise))
				fmt.Fprint(w, "<script src=\"https://checkout.razorpay.com/v1/checkout.js\"></script>\n")
				fmt.Fprint(w, "<script src=\"/public/checkout.js\"></script>\n")
			}
			fmt.Fprint(w, "<p><a href=\"/wallet/\">Top up your wallet</a></p>\n")
		}
	})
}

func certificatesPage(items []views.CertificateItem, site views.SiteConfig) templ.Component {
	return page("My certificates", "", func(w io.Writer) {
		fmt.Fprint(w, "<h1>My certificates</h1>\n")
		if len(items) == 0 {
			fmt.Fprint(w, "<p>Nothing here yet. <a href=\"/\">Pick a template</a>.</p>\n")
			return
		}
		fmt.Fprint(w, "<ul>\n")
		for _, item := range items {
			fmt.Fprintf(w, "<li><a href=%q download>%s</a> <small>%s</small></li>\n",
				item.URL, esc(item.Filename), esc(item.CreatedAt))
		}
		fmt.Fprint(w, "</ul>\n")
	})
}

func adminDashboardPage(data views.AdminDashboardData) templ.Component {
	return page("Admin", data.CSRFToken, func(w io.Writer) {
		fmt.Fprint(w, "<h1>Templates</h1>\n")
		flash(w, data.Message)
		fmt.Fprint(w, "<p><a href=\"/admin/templates/new/\">New template</a> <a href=\"/admin/referrals/\">Referral codes</a> <a href=\"/admin/missing/\">Missing files</a></p>\n")
		fmt.Fprint(w, "<table>\n")
		for _, t := range data.Templates {
			fmt.Fprintf(w, "<tr><td>%s</td><td>%s</td><td>%s</td>", esc(t.Name), esc(t.Category), views.PriceLabel(t.PricePaise))
			fmt.Fprintf(w, "<td><a href=\"/admin/templates/%d/edit/\">Edit</a> <a href=\"/admin/templates/%d/builder/\">Builder</a></td></tr>\n", t.ID, t.ID)
		}
		fmt.Fprint(w, "</table>\n")
	})
}

func adminTemplateFormPage(data views.TemplateFormData) templ.Component {
	title := "Edit template"
	action := fmt.Sprintf("/admin/templates/%d/", data.Template.ID)
	if data.IsNew {
		title = "New template"
		action = "/admin/templates/"
	}
	return page(title, data.CSRFToken, func(w io.Writer) {
		fmt.Fprintf(w, "<h1>%s</h1>\n", title)
		fmt.Fprintf(w, "<form method=\"post\" action=%q enctype=\"multipart/form-data\">\n", action)
		csrfInput(w, data.CSRFToken)
		fmt.Fprintf(w, "<label>Name <input name=\"name\" value=%q></label>\n", data.Template.Name)
		fmt.Fprintf(w, "<label>Category <input name=\"category\" value=%q></label>\n", data.Template.Category)
		fmt.Fprintf(w, "<label>Price in rupees <input name=\"price\" value=\"%d\"></label>\n", data.Template.PricePaise/100)
		if data.IsNew {
			fmt.Fprint(w, "<label>Base image <input type=\"file\" name=\"image\" accept=\"image/*\" required></label>\n")
		}
		fmt.Fprint(w, "<button>Save</button>\n</form>\n")
	})
}

func adminBuilderPage(data views.BuilderData) templ.Component {
	return page("Builder: "+data.Template.Name, data.CSRFToken, func(w io.Writer) {
		fmt.Fprintf(w, "<h1>%s</h1>\n", esc(data.Template.Name))
		fmt.Fprintf(w, "<div id=\"builder-canvas\" data-save-url=\"/admin/templates/%d/builder/\" style=\"position:relative\">\n", data.Template.ID)
		fmt.Fprintf(w, "<img src=%q alt=\"base\">\n</div>\n", data.Template.ImageURL)
		fmt.Fprintf(w, "<script id=\"builder-fields\" type=\"application/json\">%s</script>\n", data.FieldsJSON)
		fmt.Fprint(w, "<button id=\"builder-save\">Save</button>\n")
		fmt.Fprint(w, "<script src=\"/public/builder.js\"></script>\n")
	})
}

func adminReferralsPage(data views.ReferralsData) templ.Component {
	return page("Referral codes", data.CSRFToken, func(w io.Writer) {
		fmt.Fprint(w, "<h1>Referral codes</h1>\n")
		flash(w, data.Message)
		fmt.Fprint(w, "<form method=\"post\" action=\"/admin/referrals/\">\n")
		csrfInput(w, data.CSRFToken)
		fmt.Fprint(w, "<label>Owner user id <input name=\"owner_id\" required></label>\n")
		fmt.Fprint(w, "<label>Max uses (0 = unlimited) <input name=\"max_uses\" value=\"0\"></label>\n")
		fmt.Fprint(w, "<label>Expires at (RFC3339, optional) <input name=\"expires_at\"></label>\n")
		fmt.Fprint(w, "<button>Create</button>\n</form>\n<table>\n")
		for _, rc := range data.Codes {
			status := "active"
			if !rc.Active {
				status = "inactive"
			}
			fmt.Fprintf(w, "<tr><td>%s</td><td>owner %d</td><td>%d/%d uses</td><td>%s</td><td>%s</td></tr>\n",
				esc(rc.Code), rc.OwnerID, rc.UsedCount, rc.MaxUses, esc(rc.ExpiresAt), status)
		}
		fmt.Fprint(w, "</table>\n")
	})
}

func notFoundPage() templ.Component {
	return page("Not found", "", func(w io.Writer) {
		fmt.Fprint(w, "<h1>404</h1>\n<p>That page does not exist. <a href=\"/\">Back to the gallery</a>.</p>\n")
	})
}

func serverErrorPage() templ.Component {
	return page("Something broke", "", func(w io.Writer) {
		fmt.Fprint(w, "<h1>500</h1>\n<p>Something went wrong on our side. Try again shortly.</p>\n")
	})
}
