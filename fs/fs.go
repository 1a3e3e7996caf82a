// Package appfs embeds the static assets the app needs at runtime.
package appfs

import "embed"

// underscore-prefixed files are excluded from directory matches,
// so the email base layouts must be named explicitly.
//
//go:embed migrations assets
//go:embed assets/templates/email/_base.txt assets/templates/email/_base.gohtml
var FS embed.FS
