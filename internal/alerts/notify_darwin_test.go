//go:build darwin

package alerts

import (
	"strings"
	"testing"
)

func TestOSAScript_Escaping(t *testing.T) {
	escaped := escapeAppleScript(`He said "hello" and \n stuff`)
	expected := `He said \"hello\" and \\n stuff`
	if escaped != expected {
		t.Errorf("escapeAppleScript: expected %q, got %q", expected, escaped)
	}

	script := osaScript("grouptop: FetchFailing", "Report: traffic", `engine returned "503"`)
	if !strings.Contains(script, `subtitle "Report: traffic"`) || !strings.Contains(script, `\"503\"`) {
		t.Errorf("script = %q", script)
	}
}
