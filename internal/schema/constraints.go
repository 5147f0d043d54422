package schema

import (
	"strings"

	"github.com/koustreak/dbkit/internal/model"
)

// UniqueConstraints returns the deduplicated unique constraints of t:
// explicit constraints first, then unique indexes, then single non-key
// columns flagged unique whose signature is not already covered.
func UniqueConstraints(t *model.Table) []Constraint {
	var out []Constraint
	seen := map[string]bool{}

	add := func(name string, cols []string) {
		c := Constraint{Type: ConstraintUnique, Name: name, Columns: append([]string(nil), cols...)}
		sig := constraintSignature(c)
		if seen[sig] {
			return
		}
		seen[sig] = true
		out = append(out, c)
	}

	for _, uc := range t.UniqueConstraints {
		name := uc.Name
		if name == "" {
			name = "uq_" + strings.Join(uc.Columns, "_")
		}
		add(name, uc.Columns)
	}
	for _, ix := range t.Indexes {
		if !ix.Unique {
			continue
		}
		name := ix.Name
		if name == "" {
			name = "ix_" + strings.Join(ix.Columns, "_")
		}
		add(name, ix.Columns)
	}
	for _, col := range t.Columns {
		if col.Unique && !col.PrimaryKey {
			add("uq_"+t.Name+"_"+col.Name, []string{col.Name})
		}
	}
	return out
}
