package gateway

import "regexp"

// redactionRule pairs a matcher with its replacement.
type redactionRule struct {
	pattern     *regexp.Regexp
	replacement string
}

var redactionRules = []redactionRule{
	{regexp.MustCompile(`\bsk-[A-Za-z0-9]{20,}\b`), "[REDACTED_API_KEY]"},
	{regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9\-._~+/]+=*`), "Bearer [REDACTED_TOKEN]"},
	{regexp.MustCompile(`(?i)(api[_-]?key|secret|password)\s*[:=]\s*\S+`), "$1=[REDACTED]"},
	{regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`), "[REDACTED_EMAIL]"},
	{regexp.MustCompile(`/(home|Users)/[^/\s]+`), "/$1/[REDACTED_USER]"},
}

// Redact scrubs API keys, bearer tokens, secret/password assignments,
// email addresses, and home paths from text before it is logged or
// returned in an error message.
func Redact(text string) string {
	for _, rule := range redactionRules {
		text = rule.pattern.ReplaceAllString(text, rule.replacement)
	}
	return text
}
