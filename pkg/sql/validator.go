// Package sql validates model-generated SQL before it reaches a data source.
package sql

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ekaya-inc/ekaya-ask/pkg/apperrors"
)

var (
	ErrEmptyStatement     = errors.New("empty statement")
	ErrMultipleStatements = errors.New("multiple SQL statements not allowed; only single statements are permitted")
	ErrNotSelect          = errors.New("statement must begin with SELECT")
	ErrModifyingStatement = errors.New("statement contains a data-modifying keyword")
	ErrInjectionPattern   = errors.New("string literal matches a SQL injection pattern")
)

// forbiddenKeywords may not appear as bare words anywhere in a read-only
// statement. Literals and quoted identifiers are exempt.
var forbiddenKeywords = map[string]struct{}{
	"INSERT":   {},
	"UPDATE":   {},
	"DELETE":   {},
	"DROP":     {},
	"ALTER":    {},
	"CREATE":   {},
	"ATTACH":   {},
	"DETACH":   {},
	"PRAGMA":   {},
	"TRUNCATE": {},
	"VACUUM":   {},
	"INSTALL":  {},
}

// ValidationError reports why generated SQL was refused. It matches
// apperrors.ErrContractViolation and unwraps to the specific cause.
type ValidationError struct {
	SQL    string
	Reason error
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("invalid generated SQL: %v (%s)", e.Reason, e.Detail)
	}
	return fmt.Sprintf("invalid generated SQL: %v", e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Reason }

func (e *ValidationError) Is(target error) bool {
	return target == apperrors.ErrContractViolation
}

// ValidateReadOnly checks that text is exactly one read-only SELECT statement
// and returns it normalised: code fences, surrounding whitespace and trailing
// semicolons removed.
func ValidateReadOnly(text string) (string, error) {
	normalized := stripTrailingSemicolons(StripCodeFences(text))
	if normalized == "" {
		return "", &ValidationError{SQL: text, Reason: ErrEmptyStatement}
	}

	tokens := scan(normalized)
	if len(tokens) == 0 {
		return "", &ValidationError{SQL: text, Reason: ErrEmptyStatement}
	}

	first := tokens[0]
	if first.kind != tokenWord || !strings.EqualFold(first.text, "SELECT") {
		return "", &ValidationError{SQL: text, Reason: ErrNotSelect, Detail: "starts with " + describe(first)}
	}

	for _, tok := range tokens {
		switch tok.kind {
		case tokenSemicolon:
			return "", &ValidationError{SQL: text, Reason: ErrMultipleStatements}
		case tokenWord:
			if _, bad := forbiddenKeywords[strings.ToUpper(tok.text)]; bad {
				return "", &ValidationError{SQL: text, Reason: ErrModifyingStatement, Detail: strings.ToUpper(tok.text)}
			}
		}
	}

	if findings := CheckLiterals(normalized); len(findings) > 0 {
		return "", &ValidationError{SQL: text, Reason: ErrInjectionPattern, Detail: "fingerprint " + findings[0].Fingerprint}
	}

	return normalized, nil
}

var codeFencePattern = regexp.MustCompile("(?s)^```[A-Za-z]*\\s*\\n?(.*?)\\s*```$")

// StripCodeFences removes a Markdown code fence wrapped around the whole text.
func StripCodeFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if m := codeFencePattern.FindStringSubmatch(trimmed); m != nil {
		return strings.TrimSpace(m[1])
	}
	return trimmed
}

// BoundRows wraps a validated SELECT so the data source returns at most limit rows.
func BoundRows(query string, limit int) string {
	if limit <= 0 {
		return query
	}
	return fmt.Sprintf("SELECT * FROM (%s) AS _bounded LIMIT %d", query, limit)
}

func stripTrailingSemicolons(s string) string {
	s = strings.TrimSpace(s)
	for strings.HasSuffix(s, ";") {
		s = strings.TrimSpace(strings.TrimSuffix(s, ";"))
	}
	return s
}

func describe(t token) string {
	switch t.kind {
	case tokenWord:
		return strings.ToUpper(t.text)
	case tokenString:
		return "a string literal"
	case tokenQuotedIdent:
		return "a quoted identifier"
	default:
		return fmt.Sprintf("%q", t.text)
	}
}
