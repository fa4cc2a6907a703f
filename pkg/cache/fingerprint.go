package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// Fingerprint identifies the cache slot of a (question, schema) pair. Both
// parts are length-prefixed so no two distinct pairs share an input.
func Fingerprint(question, schema string) string {
	h := sha256.New()
	var n [8]byte
	for _, part := range []string{question, schema} {
		binary.BigEndian.PutUint64(n[:], uint64(len(part)))
		h.Write(n[:])
		h.Write([]byte(part))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// SchemaHash is the digest of a schema description stored with each entry.
func SchemaHash(schema string) string {
	sum := sha256.Sum256([]byte(schema))
	return hex.EncodeToString(sum[:])
}
