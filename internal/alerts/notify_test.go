package alerts

import (
	"testing"
)

func TestTruncateReportID(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "long ID is truncated",
			input: "traffic-by-country-and-city-2026",
			want:  "traffic-by-country-and-c...",
		},
		{
			name:  "short ID unchanged",
			input: "traffic",
			want:  "traffic",
		},
		{
			name:  "exactly 24 chars unchanged",
			input: "123456789012345678901234",
			want:  "123456789012345678901234",
		},
		{
			name:  "empty string",
			input: "",
			want:  "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := truncateReportID(tc.input)
			if got != tc.want {
				t.Errorf("truncateReportID(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestPlatformNotifier_DisabledIsNoop(t *testing.T) {
	n := NewPlatformNotifier(false)
	n.Notify(Alert{Rule: RuleFetchFailing, Message: `with "quotes"`})
}
