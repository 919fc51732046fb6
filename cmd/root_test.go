package cmd

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewLogger_Format(t *testing.T) {
	defer func(old string) { logFormat = old }(logFormat)

	tests := []struct {
		format string
		want   string
	}{
		{format: "auto", want: `"msg":"hello"`},
		{format: "json", want: `"msg":"hello"`},
		{format: "text", want: "msg=hello"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer

			logFormat = tt.format
			newLogger(&buf).Info("hello")

			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("format %s: got %q, want it to contain %q", tt.format, buf.String(), tt.want)
			}
		})
	}
}

func TestNewLogger_Verbose(t *testing.T) {
	defer func(old bool) { verbose = old }(verbose)

	var buf bytes.Buffer

	verbose = false
	newLogger(&buf).Debug("hidden")

	if buf.Len() != 0 {
		t.Errorf("debug logged without --verbose: %q", buf.String())
	}

	verbose = true
	newLogger(&buf).Debug("shown")

	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("debug not logged with --verbose: %q", buf.String())
	}
}
