package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/koustreak/dbkit/internal/logger"
	"github.com/koustreak/dbkit/internal/model"
)

// FunctionDefaultPrefix marks a default computed by a named function.
const FunctionDefaultPrefix = "FUNCTION: "

// FromModel builds the declared structure of t. It performs no I/O.
func FromModel(t *model.Table) *Table {
	constraints := UniqueConstraints(t)
	singleUnique := map[string]bool{}

	var indexes []Index
	seenIndex := map[string]bool{}
	addIndex := func(ix Index) {
		sig := indexSignature(ix)
		if seenIndex[sig] {
			return
		}
		seenIndex[sig] = true
		indexes = append(indexes, ix)
	}
	for _, ix := range t.Indexes {
		addIndex(Index{Name: ix.Name, Columns: append([]string(nil), ix.Columns...), Unique: ix.Unique})
		if ix.Unique && len(ix.Columns) == 1 {
			singleUnique[ix.Columns[0]] = true
		}
	}
	// Every supported dialect enforces an explicit unique constraint with a
	// unique index that reflection reports back, so the model carries it too.
	for _, uc := range t.UniqueConstraints {
		name := uc.Name
		if name == "" {
			name = "uq_" + strings.Join(uc.Columns, "_")
		}
		addIndex(Index{Name: name, Columns: append([]string(nil), uc.Columns...), Unique: true})
		if len(uc.Columns) == 1 {
			singleUnique[uc.Columns[0]] = true
		}
	}

	out := &Table{
		Name:        t.Name,
		Columns:     make(map[string]Column, len(t.Columns)),
		Indexes:     indexes,
		Constraints: constraints,
	}
	for _, c := range t.Columns {
		out.Columns[c.Name] = Column{
			Name:          c.Name,
			Type:          c.Type,
			Nullable:      c.Nullable,
			Default:       declaredDefault(c.Default),
			PrimaryKey:    c.PrimaryKey,
			Unique:        c.Unique || singleUnique[c.Name],
			AutoIncrement: c.AutoIncrement,
		}
		if c.Reference != nil {
			out.ForeignKeys = append(out.ForeignKeys, ForeignKey{
				Column:           c.Name,
				ReferencedTable:  c.Reference.Table,
				ReferencedColumn: c.Reference.Column,
			})
		}
	}
	return out
}

func declaredDefault(d *model.Default) any {
	switch {
	case d == nil:
		return nil
	case d.Function != "":
		return FunctionDefaultPrefix + d.Function
	default:
		return d.Value
	}
}

// FromDatabase reflects the live structure of a table. A failing catalog
// query for unique constraints is logged and replaced by the constraints
// reflection reports; any other failure is returned.
func FromDatabase(ctx context.Context, in Introspector, schemaName, table string, log logger.Sink) (*Table, error) {
	refl, err := in.ReflectTable(ctx, schemaName, table)
	if err != nil {
		return nil, fmt.Errorf("reflect table %s: %w", table, err)
	}

	constraints, err := in.UniqueConstraints(ctx, schemaName, table)
	if err != nil {
		log.Warnf("unique constraint catalog query failed for %s, using reflection: %v", table, err)
		constraints = refl.Constraints
	}
	for i := range constraints {
		if constraints[i].Type == "" {
			constraints[i].Type = ConstraintUnique
		}
	}

	singleUnique := map[string]bool{}
	for _, ix := range refl.Indexes {
		if ix.Unique && len(ix.Columns) == 1 {
			singleUnique[ix.Columns[0]] = true
		}
	}
	for _, c := range constraints {
		if len(c.Columns) == 1 {
			singleUnique[c.Columns[0]] = true
		}
	}

	out := &Table{
		Name:        table,
		Columns:     make(map[string]Column, len(refl.Columns)),
		Indexes:     refl.Indexes,
		Constraints: constraints,
		ForeignKeys: refl.ForeignKeys,
	}
	for _, c := range refl.Columns {
		c.Unique = c.Unique || singleUnique[c.Name]
		c.Default = liveDefault(c.Name, c.Default, log)
		out.Columns[c.Name] = c
	}
	return out, nil
}

// liveDefault renders a reflected default. Rendering is best effort: a
// value that cannot be rendered is logged and dropped rather than failing
// the whole table.
func liveDefault(column string, raw any, log logger.Sink) (out any) {
	defer func() {
		if r := recover(); r != nil {
			log.Warnf("cannot read default of column %s: %v", column, r)
			out = nil
		}
	}()

	var text string
	switch v := raw.(type) {
	case nil:
		return nil
	case string:
		text = v
	case []byte:
		text = string(v)
	case *string:
		if v == nil {
			return nil
		}
		text = *v
	default:
		return v
	}
	return ParseDefault(text)
}

// ParseDefault converts catalog default text into a literal or a
// FUNCTION marker.
//
//	'active'::character varying -> active
//	now()                       -> FUNCTION: now
//	CURRENT_TIMESTAMP           -> FUNCTION: current_timestamp
//	nextval('users_id_seq'::regclass) -> FUNCTION: nextval
func ParseDefault(text string) any {
	text = strings.TrimSpace(text)
	if text == "" || strings.EqualFold(text, "NULL") {
		return nil
	}
	if i := strings.Index(text, "::"); i > 0 && strings.HasPrefix(text, "'") {
		text = text[:i]
	}
	if len(text) >= 2 && text[0] == '\'' && text[len(text)-1] == '\'' {
		return strings.ReplaceAll(text[1:len(text)-1], "''", "'")
	}
	if i := strings.Index(text, "("); i > 0 {
		return FunctionDefaultPrefix + strings.ToLower(text[:i])
	}
	upper := strings.ToUpper(text)
	if strings.HasPrefix(upper, "CURRENT_") || upper == "LOCALTIMESTAMP" {
		return FunctionDefaultPrefix + strings.ToLower(strings.Fields(text)[0])
	}
	return text
}
