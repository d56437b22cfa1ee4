// Package templates embeds the page templates.
package templates

import "embed"

//go:embed *.html layouts/*.html partials/*.html
var FS embed.FS
