// Package sha256 provides the content hashing used for change detection.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher implements crawl.Hasher using SHA-256 over the UTF-8 bytes of the
// extracted text. Equal hashes mean no semantic change and no index rewrite.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// HashText returns the hex digest of text.
func (h *Hasher) HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
