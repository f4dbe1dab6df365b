// Package fingerprint computes stable content hashes used to skip
// reprocessing of unchanged files.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// Of returns the hex-encoded SHA-256 of content.
func Of(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// OfString is Of for extracted text.
func OfString(text string) string {
	return Of([]byte(text))
}
