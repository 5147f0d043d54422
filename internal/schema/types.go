package schema

import (
	"strings"
	"unicode"
)

// typeFamilies are the exact equivalence classes. Membership is by
// substring so that VARCHAR(50) belongs to VARCHAR.
var typeFamilies = [][]string{
	{"DATETIME"},
	{"TIMESTAMP"},
	{"INT", "INTEGER", "BIGINT"},
	{"VARCHAR"},
	{"TEXT"},
	{"DECIMAL", "NUMERIC"},
	{"BOOLEAN", "BOOL", "TINYINT", "TINYINT(1)"},
}

// looseFamilies are checked after the exact classes.
var looseFamilies = [][]string{
	{"VARCHAR", "TEXT", "STRING"},
}

// TypesCompatible reports whether a declared type and a live type name
// the same logical type. Case and whitespace are ignored. DATETIME and
// TIMESTAMP are never compatible with each other.
func TypesCompatible(declared, live string) bool {
	a, b := normalizeType(declared), normalizeType(live)

	aDT, aTS := strings.Contains(a, "DATETIME"), strings.Contains(a, "TIMESTAMP")
	bDT, bTS := strings.Contains(b, "DATETIME"), strings.Contains(b, "TIMESTAMP")
	if aDT && bTS && !bDT || aTS && !aDT && bDT {
		return false
	}

	if inSameFamily(typeFamilies, a, b) || inSameFamily(looseFamilies, a, b) {
		return true
	}
	return a == b
}

func inSameFamily(families [][]string, a, b string) bool {
	for _, fam := range families {
		if memberOf(fam, a) && memberOf(fam, b) {
			return true
		}
	}
	return false
}

func memberOf(family []string, t string) bool {
	for _, name := range family {
		if strings.Contains(t, name) {
			return true
		}
	}
	return false
}

func normalizeType(t string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToUpper(r)
	}, t)
}
