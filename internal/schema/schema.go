package schema

import (
	"sort"
	"strings"
)

// Column describes one column. The shape is identical for the declared
// model and the live database so the two can be compared by key.
type Column struct {
	Name          string `json:"name"`
	Type          string `json:"type"`
	Nullable      bool   `json:"nullable"`
	Default       any    `json:"default"`
	PrimaryKey    bool   `json:"primary_key"`
	Unique        bool   `json:"unique"`
	AutoIncrement bool   `json:"autoincrement"`
}

// Index describes one index.
type Index struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique"`
}

// ConstraintUnique is the only constraint type extracted today.
const ConstraintUnique = "unique"

// Constraint describes a unique constraint.
type Constraint struct {
	Type    string   `json:"type"`
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
}

// ForeignKey describes a single-column reference to another table.
type ForeignKey struct {
	Column           string `json:"column"`
	ReferencedTable  string `json:"referenced_table"`
	ReferencedColumn string `json:"referenced_column"`
}

// Table is the structure of one table as seen from one side.
type Table struct {
	Name        string            `json:"name"`
	Columns     map[string]Column `json:"columns"`
	Indexes     []Index           `json:"indexes"`
	Constraints []Constraint      `json:"constraints"`
	ForeignKeys []ForeignKey      `json:"foreign_keys"`
}

// Reflection is what a driver reports about a live table.
type Reflection struct {
	Columns     []Column
	Indexes     []Index // primary key index excluded
	Constraints []Constraint
	ForeignKeys []ForeignKey
}

// sortedKey joins a sorted copy of cols with sep.
func sortedKey(cols []string, sep string) string {
	c := append([]string(nil), cols...)
	sort.Strings(c)
	return strings.Join(c, sep)
}

// constraintSignature is `type:sorted,cols`.
func constraintSignature(c Constraint) string {
	typ := c.Type
	if typ == "" {
		typ = ConstraintUnique
	}
	return typ + ":" + sortedKey(c.Columns, ",")
}

// indexSignature is the sorted column tuple plus the unique flag.
func indexSignature(ix Index) string {
	if ix.Unique {
		return sortedKey(ix.Columns, ",") + "|unique"
	}
	return sortedKey(ix.Columns, ",")
}

func foreignKeySignature(fk ForeignKey) string {
	return fk.Column + "->" + fk.ReferencedTable + "." + fk.ReferencedColumn
}
