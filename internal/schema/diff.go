package schema

import (
	"fmt"
	"sort"
	"strings"
)

// CompareMode selects how much of each shared column is compared.
type CompareMode int

const (
	// CompareFull checks type, nullability, primary key and uniqueness.
	CompareFull CompareMode = iota
	// CompareMinimal checks type, nullability and primary key only.
	CompareMinimal
)

// ParseCompareMode maps "full" / "minimal" to a CompareMode.
func ParseCompareMode(s string) (CompareMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "full":
		return CompareFull, nil
	case "minimal":
		return CompareMinimal, nil
	default:
		return CompareFull, fmt.Errorf("unknown compare mode %q", s)
	}
}

func (m CompareMode) String() string {
	if m == CompareMinimal {
		return "minimal"
	}
	return "full"
}

const (
	sideModel    = "model"
	sideDatabase = "database"
)

// Diff compares the declared structure with the live one using CompareFull.
func Diff(declared, live *Table) []string {
	return DiffWith(declared, live, CompareFull)
}

// DiffWith compares the declared structure with the live one. Errors are
// ordered columns, indexes, unique constraints, foreign keys. Indexes,
// constraints and foreign keys are matched by signature, never by name.
func DiffWith(declared, live *Table, mode CompareMode) []string {
	var out []string
	out = append(out, diffColumns(declared, live, mode)...)
	out = append(out, diffIndexes(declared.Indexes, live.Indexes)...)
	out = append(out, diffConstraints(declared.Constraints, live.Constraints)...)
	out = append(out, diffForeignKeys(declared.ForeignKeys, live.ForeignKeys)...)
	return out
}

func diffColumns(declared, live *Table, mode CompareMode) []string {
	var out []string

	var missingInDB, missingInModel, common []string
	for name := range declared.Columns {
		if _, ok := live.Columns[name]; ok {
			common = append(common, name)
		} else {
			missingInDB = append(missingInDB, name)
		}
	}
	for name := range live.Columns {
		if _, ok := declared.Columns[name]; !ok {
			missingInModel = append(missingInModel, name)
		}
	}
	sort.Strings(missingInDB)
	sort.Strings(missingInModel)
	sort.Strings(common)

	if len(missingInDB) > 0 {
		out = append(out, fmt.Sprintf("columns missing in %s: %s", sideDatabase, strings.Join(missingInDB, ", ")))
	}
	if len(missingInModel) > 0 {
		out = append(out, fmt.Sprintf("columns missing in %s: %s", sideModel, strings.Join(missingInModel, ", ")))
	}

	for _, name := range common {
		m, d := declared.Columns[name], live.Columns[name]
		if !TypesCompatible(m.Type, d.Type) {
			out = append(out, fmt.Sprintf("column '%s' type mismatch: %s='%s', %s='%s'",
				name, sideModel, m.Type, sideDatabase, d.Type))
		}
		if m.Nullable != d.Nullable {
			out = append(out, flagMismatch(name, "nullability", m.Nullable, d.Nullable))
		}
		if m.PrimaryKey != d.PrimaryKey {
			out = append(out, flagMismatch(name, "primary key", m.PrimaryKey, d.PrimaryKey))
		}
		if mode == CompareFull && m.Unique != d.Unique {
			out = append(out, flagMismatch(name, "uniqueness", m.Unique, d.Unique))
		}
	}
	return out
}

func flagMismatch(column, what string, model, db bool) string {
	return fmt.Sprintf("column '%s' %s mismatch: %s=%s, %s=%s",
		column, what, sideModel, pyBool(model), sideDatabase, pyBool(db))
}

// pyBool renders booleans as True / False, the form reports have always used.
func pyBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func diffIndexes(declared, live []Index) []string {
	ms := map[string]Index{}
	for _, ix := range declared {
		ms[indexSignature(ix)] = ix
	}
	ds := map[string]Index{}
	for _, ix := range live {
		ds[indexSignature(ix)] = ix
	}

	var missingInDB, missingInModel []string
	for sig, ix := range ms {
		if _, ok := ds[sig]; !ok {
			missingInDB = append(missingInDB, describeIndex(ix))
		}
	}
	for sig, ix := range ds {
		if _, ok := ms[sig]; ok {
			continue
		}
		// a unique column surfaces as an implicit single-column unique index
		if ix.Unique && len(ix.Columns) == 1 {
			continue
		}
		missingInModel = append(missingInModel, describeIndex(ix))
	}
	return missingLines("indexes", missingInDB, missingInModel)
}

func describeIndex(ix Index) string {
	cols := sortedKey(ix.Columns, ",")
	kind := "index"
	if ix.Unique {
		kind = "unique index"
	}
	if ix.Name == "" {
		return fmt.Sprintf("unnamed %s (%s)", kind, cols)
	}
	return fmt.Sprintf("%s %s (%s)", kind, ix.Name, cols)
}

func diffConstraints(declared, live []Constraint) []string {
	ms := map[string]bool{}
	for _, c := range declared {
		ms[constraintSignature(c)] = true
	}
	ds := map[string]bool{}
	for _, c := range live {
		ds[constraintSignature(c)] = true
	}
	return missingLines("unique constraints", onlyIn(ms, ds), onlyIn(ds, ms))
}

func diffForeignKeys(declared, live []ForeignKey) []string {
	ms := map[string]bool{}
	for _, fk := range declared {
		ms[foreignKeySignature(fk)] = true
	}
	ds := map[string]bool{}
	for _, fk := range live {
		ds[foreignKeySignature(fk)] = true
	}
	return missingLines("foreign keys", onlyIn(ms, ds), onlyIn(ds, ms))
}

func onlyIn(a, b map[string]bool) []string {
	var out []string
	for sig := range a {
		if !b[sig] {
			out = append(out, sig)
		}
	}
	return out
}

// missingLines renders one line per side that has missing entries.
func missingLines(what string, missingInDB, missingInModel []string) []string {
	var out []string
	if len(missingInDB) > 0 {
		sort.Strings(missingInDB)
		out = append(out, fmt.Sprintf("%s missing in %s: %s", what, sideDatabase, strings.Join(missingInDB, "; ")))
	}
	if len(missingInModel) > 0 {
		sort.Strings(missingInModel)
		out = append(out, fmt.Sprintf("%s missing in %s: %s", what, sideModel, strings.Join(missingInModel, "; ")))
	}
	return out
}
