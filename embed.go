package updates

import "embed"

// EmbeddedAssets contains static assets shipped with the engine.
// Currently just the analytics beacon script.
//
//go:embed embedded/*
var EmbeddedAssets embed.FS
