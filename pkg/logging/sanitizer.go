package logging

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// MaxQueryLogLength bounds SQL text written to logs.
	MaxQueryLogLength = 200
	// MaxTextLogLength bounds questions and model output written to logs.
	MaxTextLogLength = 120
	// RedactedText replaces anything that looks like a credential.
	RedactedText = "[REDACTED]"
)

var (
	// password=xxx, pwd=xxx, pass=xxx up to the next delimiter
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// user:pass@host
	dsnCredentialsPattern = regexp.MustCompile(`://[^:/\s]+:[^@\s]+@`)

	// OpenAI and Anthropic style secret keys
	secretKeyPattern = regexp.MustCompile(`\b(sk-(?:ant-)?[A-Za-z0-9_-]{8,})`)

	// api_key=xxx, x-api-key: xxx
	apiKeyPattern = regexp.MustCompile(`(?i)(api[_-]?key["']?\s*[:=]\s*["']?)[A-Za-z0-9_-]{16,}`)

	// Authorization: Bearer xxx
	bearerPattern = regexp.MustCompile(`Bearer\s+[A-Za-z0-9._~+/-]+=*`)
)

// SanitizeDSN removes credentials from a connection string.
func SanitizeDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	sanitized := passwordPattern.ReplaceAllString(dsn, "${1}="+RedactedText)
	return dsnCredentialsPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@")
}

// SanitizeError returns the error message with credentials, keys and
// bearer tokens redacted. Provider SDK errors sometimes echo request headers.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return redact(err.Error())
}

// SanitizeQuery truncates a SQL statement and redacts credential patterns.
func SanitizeQuery(query string) string {
	if query == "" {
		return ""
	}
	return redact(TruncateString(collapseWhitespace(query), MaxQueryLogLength))
}

// SanitizeText prepares free text (questions, completions) for a log field.
func SanitizeText(text string) string {
	return redact(TruncateString(collapseWhitespace(text), MaxTextLogLength))
}

// TruncateString truncates s to at most maxLen bytes without splitting a
// UTF-8 sequence and appends an ellipsis when anything was cut.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func redact(s string) string {
	s = passwordPattern.ReplaceAllString(s, "${1}="+RedactedText)
	s = dsnCredentialsPattern.ReplaceAllString(s, "://"+RedactedText+"@")
	s = bearerPattern.ReplaceAllString(s, "Bearer "+RedactedText)
	s = apiKeyPattern.ReplaceAllString(s, "${1}"+RedactedText)
	s = secretKeyPattern.ReplaceAllString(s, RedactedText)
	return s
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
