package norm

import (
	"fmt"
	"strings"
	"time"
)

// Document is the unit handed to the index writer: one variant of one norm,
// with its extracted text and the cache-validation metadata observed when it
// was fetched.
type Document struct {
	DocID        string    `json:"doc_id"`
	Type         string    `json:"type"`
	Number       int       `json:"number"`
	Year         int       `json:"year"`
	Variant      Variant   `json:"variant"`
	URL          string    `json:"url"`
	Text         string    `json:"text"`
	CollectedAt  time.Time `json:"collected_at"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	ContentHash  string    `json:"content_hash"`
}

// DocID derives the deterministic document identifier for a target and
// variant. Type codes are alphanumeric and the numeric fields are integers,
// so the underscore-joined form cannot collide across distinct inputs.
func DocID(t Target, v Variant) string {
	return fmt.Sprintf("%s_%d_%d_%s", strings.ToUpper(t.Type), t.Number, t.Year, v.suffix())
}

// Matches reports whether the document's identity fields agree with the
// target and variant its DocID was derived from. A mismatch means the backing
// store is corrupt.
func (d Document) Matches(t Target, v Variant) bool {
	return strings.EqualFold(d.Type, t.Type) &&
		d.Number == t.Number &&
		d.Year == t.Year &&
		d.Variant == v
}
