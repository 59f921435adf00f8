package certforge

import "embed"

// EmbeddedAssets contains static assets shipped with the framework:
// builder.js, checkout.js
//
//go:embed embedded/*
var EmbeddedAssets embed.FS
