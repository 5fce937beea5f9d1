//go:build !embed

package frontend

import "net/http"

// Handler returns nil when the UI is not compiled in; the server then
// falls back to serving static/ from disk.
func Handler() http.Handler {
	return nil
}
