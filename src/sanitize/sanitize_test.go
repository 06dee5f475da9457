package sanitize

import "testing"

func TestStripANSI(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"\x1b[31mERROR\x1b[0m timeout", "ERROR timeout"},
		{"plain text", "plain text"},
		{"\x1b[1;32mok\x1b[m", "ok"},
	}
	for _, tt := range tests {
		if got := StripANSI(tt.in); got != tt.expected {
			t.Errorf("StripANSI(%q) = %q, expected %q", tt.in, got, tt.expected)
		}
	}
}

func TestRedact(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{`password = "hunter2"`, `password = [REDACTED]`},
		{"API_KEY=sk-abc123", "API_KEY=[REDACTED]"},
		{"token: deadbeef", "token: [REDACTED]"},
		{"no credentials here", "no credentials here"},
	}
	for _, tt := range tests {
		if got := Redact(tt.in); got != tt.expected {
			t.Errorf("Redact(%q) = %q, expected %q", tt.in, got, tt.expected)
		}
	}
}

func TestScrub(t *testing.T) {
	in := "\x1b[31msecret=abc\x1b[0m done"
	if got := Scrub(in); got != "secret=[REDACTED] done" {
		t.Errorf("Scrub(%q) = %q", in, got)
	}
}
