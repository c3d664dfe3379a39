package norm

import "fmt"

// DefaultBaseURL is the portal endpoint serving norm texts.
const DefaultBaseURL = "https://www.almg.gov.br/legislacao-mineira/texto"

// PageURL returns the fetch URL for one target and variant. The two variants
// differ only by a query parameter, and this is the single place that mapping
// lives.
func PageURL(base string, t Target, v Variant) string {
	if base == "" {
		base = DefaultBaseURL
	}
	u := fmt.Sprintf("%s/%s/%d/%d/", base, t.Type, t.Number, t.Year)
	if v == VariantConsolidated {
		u += "?cons=1"
	}
	return u
}
