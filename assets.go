package spinwin

import "embed"

// EmbeddedPages holds the kiosk page served at "/".
//
//go:embed web/*.html
var EmbeddedPages embed.FS
