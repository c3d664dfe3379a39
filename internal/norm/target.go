// Package norm defines the identifiers, variants, and persisted record shape
// for legal norms published by the state legislature portal.
package norm

import "fmt"

// StartYear is the first year the portal publishes norms for.
const StartYear = 1835

// TypeCodes lists every norm type code the portal serves.
var TypeCodes = []string{
	"ADT", "CON", "DCS", "DCJ", "DEC", "DNE", "DSN", "DEL", "DLB", "DCE",
	"EMC", "LEI", "LEA", "LCP", "LDL", "LCO", "OSV", "PRT", "PTC", "RAL",
}

// ValidType reports whether code is a known norm type code.
func ValidType(code string) bool {
	for _, tc := range TypeCodes {
		if tc == code {
			return true
		}
	}
	return false
}

// Target identifies one logical norm: a type code, a sequential number within
// the year, and the year of publication. Targets are derived values and are
// never persisted on their own.
type Target struct {
	Type   string
	Number int
	Year   int
}

// String renders the target in TYPE number/year form for logs.
func (t Target) String() string {
	return fmt.Sprintf("%s %d/%d", t.Type, t.Number, t.Year)
}

// Valid reports whether the target is well formed.
func (t Target) Valid() bool {
	return t.Type != "" && t.Number > 0 && t.Year >= StartYear
}
