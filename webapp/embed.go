// Package webapp provides embedded static files for the print web app.
package webapp

import "embed"

//go:embed index.html app.js style.css
var Assets embed.FS
