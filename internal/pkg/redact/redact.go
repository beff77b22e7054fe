// Package redact masks credentials before they reach a log line.
package redact

import "strings"

const (
	mask          = "***"
	redactedToken = "[REDACTED_TOKEN]"
	redactedPass  = "[REDACTED_PASSWORD]"
)

// Email keeps the first two characters of the local part and the domain.
// Anything that is not a single-@ address is masked completely.
func Email(s string) string {
	local, domain, ok := strings.Cut(strings.TrimSpace(s), "@")
	if !ok || strings.Contains(domain, "@") {
		return mask
	}

	r := []rune(local)
	if len(r) <= 2 {
		return mask + "@" + domain
	}
	return string(r[:2]) + mask + "@" + domain
}

func Token() string    { return redactedToken }
func Password() string { return redactedPass }
