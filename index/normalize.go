package index

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Normalize folds a display name or search fragment into its comparison
// form: NFC-composed, lower-cased, trimmed, internal whitespace runs
// collapsed to one space. Normalize is idempotent.
func Normalize(s string) string {
	// cases.Caser keeps state, so one is created per call.
	lowered := norm.NFC.String(cases.Lower(language.Und).String(s))
	return strings.Join(strings.Fields(lowered), " ")
}

// CanonicalID trims and upper-cases an entity ID so that "t1059.001 " and
// "T1059.001" address the same entity.
func CanonicalID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}
