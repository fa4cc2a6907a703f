package sql

import (
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokenWord tokenKind = iota
	tokenString
	tokenQuotedIdent
	tokenSemicolon
	tokenSymbol
)

type token struct {
	kind tokenKind
	text string // word text, or the unescaped contents of a literal
	pos  int    // byte offset of the token start
}

// scan splits a statement into tokens, skipping whitespace and comments.
// It understands '...' literals with '' escapes, "..." / `...` / [...]
// quoted identifiers, -- line comments and /* */ block comments.
// Unterminated quotes and comments run to the end of the input.
func scan(s string) []token {
	var tokens []token
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f':
			i++

		case c == '-' && i+1 < len(s) && s[i+1] == '-':
			end := strings.IndexByte(s[i:], '\n')
			if end < 0 {
				i = len(s)
			} else {
				i += end + 1
			}

		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				i = len(s)
			} else {
				i += end + 4
			}

		case c == '\'':
			start := i
			var sb strings.Builder
			i++
			for i < len(s) {
				if s[i] == '\'' {
					if i+1 < len(s) && s[i+1] == '\'' {
						sb.WriteByte('\'')
						i += 2
						continue
					}
					i++
					break
				}
				sb.WriteByte(s[i])
				i++
			}
			tokens = append(tokens, token{kind: tokenString, text: sb.String(), pos: start})

		case c == '"' || c == '`' || c == '[':
			closer := c
			if c == '[' {
				closer = ']'
			}
			start := i
			end := strings.IndexByte(s[i+1:], closer)
			if end < 0 {
				tokens = append(tokens, token{kind: tokenQuotedIdent, text: s[i+1:], pos: start})
				i = len(s)
			} else {
				tokens = append(tokens, token{kind: tokenQuotedIdent, text: s[i+1 : i+1+end], pos: start})
				i += end + 2
			}

		case c == ';':
			tokens = append(tokens, token{kind: tokenSemicolon, text: ";", pos: i})
			i++

		case isWordByte(c):
			start := i
			for i < len(s) && isWordByte(s[i]) {
				i++
			}
			tokens = append(tokens, token{kind: tokenWord, text: s[start:i], pos: start})

		default:
			tokens = append(tokens, token{kind: tokenSymbol, text: string(c), pos: i})
			i++
		}
	}
	return tokens
}

func isWordByte(c byte) bool {
	return c == '_' || c >= 0x80 || unicode.IsLetter(rune(c)) || unicode.IsDigit(rune(c))
}
