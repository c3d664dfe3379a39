package norm

import (
	"fmt"
	"strings"
)

// Variant names one of the portal's rendering modes for a norm. The original
// text and the consolidated text (with later amendments applied) live at
// different URLs and are indexed as distinct documents.
type Variant string

// Supported variants.
const (
	VariantOriginal     Variant = "original"
	VariantConsolidated Variant = "consolidated"
)

// AllVariants lists every supported variant in fetch order.
var AllVariants = []Variant{VariantOriginal, VariantConsolidated}

// ParseVariant maps a config string onto a Variant.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "original", "orig":
		return VariantOriginal, nil
	case "consolidated", "cons":
		return VariantConsolidated, nil
	default:
		return "", fmt.Errorf("unknown variant %q", s)
	}
}

// ParseVariants maps a list of config strings onto variants, rejecting
// duplicates.
func ParseVariants(in []string) ([]Variant, error) {
	out := make([]Variant, 0, len(in))
	seen := make(map[Variant]struct{})
	for _, s := range in {
		v, err := ParseVariant(s)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out, nil
}

// suffix is the short form embedded in document IDs.
func (v Variant) suffix() string {
	if v == VariantConsolidated {
		return "cons"
	}
	return "orig"
}
