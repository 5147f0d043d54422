// Package model holds declared table metadata: the columns, keys, unique
// constraints and indexes an application expects a table to have.
//
// A Table is built from a tagged Go struct (Parse) or from a YAML
// definitions file (LoadDefinitions). Tables are plain values; nothing in
// this package talks to a database.
package model

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/koustreak/dbkit/internal/errs"
)

// Default describes a declared column default. Function is set when the
// default is computed by a named function rather than a literal.
type Default struct {
	Value    any
	Function string
}

// Reference is the target of a foreign key.
type Reference struct {
	Table  string
	Column string
}

func (r Reference) String() string {
	return r.Table + "." + r.Column
}

// Column is one declared column.
type Column struct {
	Name          string
	Type          string
	Nullable      bool
	Default       *Default
	PrimaryKey    bool
	Unique        bool
	AutoIncrement bool
	Reference     *Reference
}

// UniqueConstraint is an explicit, possibly unnamed, multi-column unique constraint.
type UniqueConstraint struct {
	Name    string
	Columns []string
}

// Index is a declared index; Unique indexes also enforce uniqueness.
type Index struct {
	Name    string
	Columns []string
	Unique  bool
}

// Table is the declared shape of one database table.
type Table struct {
	Name              string
	Schema            string
	Columns           []Column
	UniqueConstraints []UniqueConstraint
	Indexes           []Index

	goType reflect.Type
}

// Column returns the named column.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// HasColumn reports whether the table declares the named column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.Column(name)
	return ok
}

// ColumnNames returns the column names in declaration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// PrimaryKey returns the primary key column names in declaration order.
func (t *Table) PrimaryKey() []string {
	var pk []string
	for _, c := range t.Columns {
		if c.PrimaryKey {
			pk = append(pk, c.Name)
		}
	}
	return pk
}

// GoType returns the struct type the table was parsed from, or nil.
func (t *Table) GoType() reflect.Type {
	return t.goType
}

// Validate checks that the declaration is internally consistent.
func (t *Table) Validate() error {
	if t.Name == "" {
		return errs.New(errs.ErrKindConfiguration, "table name is empty")
	}
	if len(t.Columns) == 0 {
		return errs.Newf(errs.ErrKindConfiguration, "table %q declares no columns", t.Name)
	}
	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		if c.Name == "" {
			return errs.Newf(errs.ErrKindConfiguration, "table %q has a column without a name", t.Name)
		}
		if seen[c.Name] {
			return errs.Newf(errs.ErrKindConfiguration, "table %q declares column %q twice", t.Name, c.Name)
		}
		seen[c.Name] = true
		if c.Type == "" {
			return errs.Newf(errs.ErrKindConfiguration, "column %s.%s has no type", t.Name, c.Name)
		}
	}
	check := func(kind, name string, cols []string) error {
		if len(cols) == 0 {
			return errs.Newf(errs.ErrKindConfiguration, "%s %q on %q has no columns", kind, name, t.Name)
		}
		for _, col := range cols {
			if !seen[col] {
				return errs.Newf(errs.ErrKindConfiguration,
					"%s %q on %q references unknown column %q", kind, name, t.Name, col)
			}
		}
		return nil
	}
	for _, uc := range t.UniqueConstraints {
		if err := check("unique constraint", uc.Name, uc.Columns); err != nil {
			return err
		}
	}
	for _, ix := range t.Indexes {
		if err := check("index", ix.Name, ix.Columns); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) String() string {
	if t.Schema != "" {
		return fmt.Sprintf("%s.%s", t.Schema, t.Name)
	}
	return t.Name
}

// snakeCase converts a Go identifier to snake_case, keeping acronyms together.
func snakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		upper := r >= 'A' && r <= 'Z'
		if upper && i > 0 {
			prevLower := runes[i-1] >= 'a' && runes[i-1] <= 'z' || runes[i-1] >= '0' && runes[i-1] <= '9'
			nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
			if prevLower || nextLower && runes[i-1] >= 'A' && runes[i-1] <= 'Z' {
				b.WriteByte('_')
			}
		}
		if upper {
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
