package debug

import (
	"bytes"
	"io"
	"os"
	"testing"
)

func TestCRDTEnabledReflectsOverride(t *testing.T) {
	old := crdtEnabled
	defer func() { crdtEnabled = old }()

	SetCRDTEnabled(false)
	if CRDTEnabled() {
		t.Error("CRDTEnabled() should be false after SetCRDTEnabled(false)")
	}

	SetCRDTEnabled(true)
	if !CRDTEnabled() {
		t.Error("CRDTEnabled() should be true after SetCRDTEnabled(true)")
	}
}

func TestSearchEnabledReflectsOverride(t *testing.T) {
	old := searchEnabled
	defer func() { searchEnabled = old }()

	SetSearchEnabled(false)
	if SearchEnabled() {
		t.Error("SearchEnabled() should be false after SetSearchEnabled(false)")
	}

	SetSearchEnabled(true)
	if !SearchEnabled() {
		t.Error("SearchEnabled() should be true after SetSearchEnabled(true)")
	}
}

func TestLogf(t *testing.T) {
	tests := []struct {
		name       string
		enabled    bool
		wantOutput string
	}{
		{"outputs when enabled", true, "merge rejected: stale\n"},
		{"no output when disabled", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldEnabled := crdtEnabled
			oldStderr := os.Stderr
			defer func() {
				crdtEnabled = oldEnabled
				os.Stderr = oldStderr
			}()

			crdtEnabled = tt.enabled

			r, w, _ := os.Pipe()
			os.Stderr = w

			Logf("merge rejected: %s\n", "stale")

			w.Close()
			var buf bytes.Buffer
			io.Copy(&buf, r)

			if got := buf.String(); got != tt.wantOutput {
				t.Errorf("Logf() output = %q, want %q", got, tt.wantOutput)
			}
		})
	}
}

func TestSearchLogf(t *testing.T) {
	tests := []struct {
		name       string
		enabled    bool
		wantOutput string
	}{
		{"outputs when enabled", true, "query took 2ms\n"},
		{"no output when disabled", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldEnabled := searchEnabled
			oldStderr := os.Stderr
			defer func() {
				searchEnabled = oldEnabled
				os.Stderr = oldStderr
			}()

			searchEnabled = tt.enabled

			r, w, _ := os.Pipe()
			os.Stderr = w

			SearchLogf("query took %dms\n", 2)

			w.Close()
			var buf bytes.Buffer
			io.Copy(&buf, r)

			if got := buf.String(); got != tt.wantOutput {
				t.Errorf("SearchLogf() output = %q, want %q", got, tt.wantOutput)
			}
		})
	}
}
