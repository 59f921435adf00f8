// Command certforge runs a certificate generation site with the built-in
// reference templates. All branding and secrets come from environment
// variables.
package main

import (
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/eringen/certforge"
)

func main() {
	cfg := certforge.SiteConfig{
		Name: certforge.EnvOr("SITE_NAME", "CertForge"),
		URL:  certforge.EnvOr("SITE_URL", "http://localhost:3000"),
		Addr: certforge.EnvOr("ADDR", ":3000"),

		DatabasePath:       certforge.EnvOr("DATABASE_PATH", "data/certforge.db"),
		LedgerDatabasePath: certforge.EnvOr("LEDGER_DATABASE_PATH", "data/ledger.db"),
		TemplateDir:        certforge.EnvOr("TEMPLATE_DIR", "data/templates"),
		GeneratedDir:       certforge.EnvOr("GENERATED_DIR", "data/generated"),
		PreviewDir:         certforge.EnvOr("PREVIEW_DIR", "data/previews"),
		FontDir:            certforge.EnvOr("FONT_DIR", "data/fonts"),

		SessionSecret: certforge.MustEnv("SESSION_SECRET"),
		CookieSecure:  os.Getenv("COOKIE_SECURE") == "true",

		GatewayKeyID:     os.Getenv("RAZORPAY_KEY_ID"),
		GatewayKeySecret: os.Getenv("RAZORPAY_KEY_SECRET"),

		MinTopupPaise: envPaise("MIN_TOPUP_PAISE", 0),
		PreviewTTL:    envDuration("PREVIEW_TTL", 0),
	}

	app := certforge.New(cfg, viewFuncs(),
		certforge.WithStaticDir(certforge.EnvOr("STATIC_DIR", "public")),
	)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		app.Close()
		os.Exit(0)
	}()

	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
}

func envPaise(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Fatalf("certforge: %s must be an integer paise amount", key)
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("certforge: %s must be a duration like 45m", key)
	}
	return d
}
