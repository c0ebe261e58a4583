// Package web serves the embedded status page.
package web

import (
	_ "embed"
	"net/http"
)

//go:embed status.html
var statusHTML []byte

// ServeStatus serves the status page HTML.
func ServeStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Write(statusHTML)
}
