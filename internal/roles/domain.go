package roles

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.Und, cases.NoLower)

// CanonicalName normalizes a role name for storage: trimmed, inner
// whitespace collapsed, first letter of each word upper-cased while
// preserving acronyms the admin typed.
func CanonicalName(name string) string {
	fields := strings.Fields(name)
	for i, f := range fields {
		fields[i] = titleCaser.String(f)
	}
	return strings.Join(fields, " ")
}
