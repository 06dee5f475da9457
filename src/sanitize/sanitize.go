// Package sanitize cleans findings text before it leaves the process: it
// strips ANSI escape codes picked up from raw logs and redacts values that
// look like credentials. Applied to provider prompts and rendered tickets.
package sanitize

import "regexp"

var (
	// ANSI escape codes: \x1b[...m (SGR sequences)
	ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

	// key=value or key: value where the key names a credential
	credentialPattern = regexp.MustCompile(`(?i)\b(password|passwd|secret|token|api[_-]?key|authorization)\b(\s*[=:]\s*)\S+`)
)

// StripANSI removes ANSI escape codes.
func StripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

// Redact masks credential-looking assignments, keeping the key name.
func Redact(s string) string {
	return credentialPattern.ReplaceAllString(s, "$1$2[REDACTED]")
}

// Scrub applies every cleaning step.
func Scrub(s string) string {
	return Redact(StripANSI(s))
}
