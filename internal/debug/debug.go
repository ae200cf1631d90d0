// Package debug gates internal diagnostic output behind environment
// variables, scoped to this library's two debug surfaces: CRDT merge/
// journal activity and full-text search explain output.
package debug

import (
	"fmt"
	"os"
)

var (
	crdtEnabled   = os.Getenv("CRDT_DEBUG") != ""
	searchEnabled = os.Getenv("TOPGUN_DEBUG") != ""
)

// CRDTEnabled reports whether CRDT-path diagnostics (merges, rejections,
// adaptive auto-index creation) are enabled.
func CRDTEnabled() bool {
	return crdtEnabled
}

// SearchEnabled reports whether full-text search diagnostics are enabled.
func SearchEnabled() bool {
	return searchEnabled
}

// SetCRDTEnabled overrides the CRDT_DEBUG-derived flag, for tests and for
// callers that want to enable diagnostics without the environment variable.
func SetCRDTEnabled(v bool) {
	crdtEnabled = v
}

// SetSearchEnabled overrides the TOPGUN_DEBUG-derived flag.
func SetSearchEnabled(v bool) {
	searchEnabled = v
}

// Logf writes a CRDT-path diagnostic line to stderr if CRDTEnabled.
func Logf(format string, args ...interface{}) {
	if crdtEnabled {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// SearchLogf writes a search-path diagnostic line to stderr if SearchEnabled.
func SearchLogf(format string, args ...interface{}) {
	if searchEnabled {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}
