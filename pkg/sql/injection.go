package sql

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult describes a string literal that libinjection flagged.
type InjectionCheckResult struct {
	Literal     string
	Fingerprint string
	Offset      int // byte offset of the literal in the statement
}

// CheckLiterals runs libinjection over the contents of every string literal
// in query. A model that was steered by a hostile question tends to smuggle
// the payload into a literal, e.g. WHERE name = ''' OR ''1''=''1'.
func CheckLiterals(query string) []*InjectionCheckResult {
	var results []*InjectionCheckResult
	for _, tok := range scan(query) {
		if tok.kind != tokenString || tok.text == "" {
			continue
		}
		if isSQLi, fingerprint := libinjection.IsSQLi(tok.text); isSQLi {
			results = append(results, &InjectionCheckResult{
				Literal:     tok.text,
				Fingerprint: string(fingerprint),
				Offset:      tok.pos,
			})
		}
	}
	return results
}
