package model

import (
	"database/sql"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/koustreak/dbkit/internal/errs"
)

// TagName is the struct tag read by Parse.
//
//	type User struct {
//	    ID      int64     `db:"primaryKey;autoIncrement"`
//	    Email   string    `db:"type:VARCHAR(255);not null;unique"`
//	    OrgID   int64     `db:"column:org_id;uniqueConstraint:uq_org_email;foreignKey:orgs.id"`
//	    Created time.Time `db:"defaultFunc:now;index:ix_users_created"`
//	    Secret  string    `db:"-"`
//	}
const TagName = "db"

// Tabler overrides the derived table name.
type Tabler interface {
	TableName() string
}

// SchemaNamer sets the database schema a table lives in.
type SchemaNamer interface {
	SchemaName() string
}

// ConstraintDeclarer adds unique constraints that tags cannot express,
// such as unnamed composite constraints.
type ConstraintDeclarer interface {
	TableConstraints() []UniqueConstraint
}

// IndexDeclarer adds indexes that tags cannot express.
type IndexDeclarer interface {
	TableIndexes() []Index
}

var (
	timeType   = reflect.TypeOf(time.Time{})
	bytesType  = reflect.TypeOf([]byte(nil))
	parseCache sync.Map // reflect.Type -> *Table
)

// Parse builds a Table from a struct value or pointer to struct.
func Parse(v any) (*Table, error) {
	rt := reflect.TypeOf(v)
	for rt != nil && rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	if rt == nil || rt.Kind() != reflect.Struct {
		return nil, errs.Newf(errs.ErrKindConfiguration, "cannot parse model from %T: not a struct", v)
	}
	if cached, ok := parseCache.Load(rt); ok {
		return cached.(*Table), nil
	}

	t := &Table{Name: snakeCase(rt.Name()), goType: rt}
	zero := reflect.New(rt).Interface()
	if tn, ok := zero.(Tabler); ok {
		t.Name = tn.TableName()
	}
	if sn, ok := zero.(SchemaNamer); ok {
		t.Schema = sn.SchemaName()
	}

	named := map[string]*UniqueConstraint{}
	indexes := map[string]*Index{}
	var constraintOrder, indexOrder []string

	for _, f := range structFields(rt) {
		tag := parseTag(f.field.Tag.Get(TagName))
		col := Column{Name: f.column}
		col.Type, col.Nullable = inferType(f.field.Type)
		if v, ok := tag["type"]; ok && v != "" {
			col.Type = v
		}
		if _, ok := tag["primarykey"]; ok {
			col.PrimaryKey = true
			col.Nullable = false
		}
		if _, ok := tag["autoincrement"]; ok {
			col.AutoIncrement = true
		}
		if _, ok := tag["unique"]; ok {
			col.Unique = true
		}
		if _, ok := tag["not null"]; ok {
			col.Nullable = false
		}
		if _, ok := tag["notnull"]; ok {
			col.Nullable = false
		}
		if _, ok := tag["null"]; ok && !col.PrimaryKey {
			col.Nullable = true
		}
		if v, ok := tag["default"]; ok {
			col.Default = &Default{Value: v}
		}
		if v, ok := tag["defaultfunc"]; ok {
			col.Default = &Default{Function: v}
		}
		if v, ok := tag["foreignkey"]; ok {
			ref, err := parseReference(v)
			if err != nil {
				return nil, errs.Wrap(errs.ErrKindConfiguration, "field "+f.field.Name, err)
			}
			col.Reference = ref
		}
		if name, ok := tag["uniqueconstraint"]; ok {
			if name == "" {
				return nil, errs.Newf(errs.ErrKindConfiguration,
					"field %s: uniqueConstraint needs a name", f.field.Name)
			}
			if named[name] == nil {
				named[name] = &UniqueConstraint{Name: name}
				constraintOrder = append(constraintOrder, name)
			}
			named[name].Columns = append(named[name].Columns, col.Name)
		}
		for _, key := range []string{"index", "uniqueindex"} {
			name, ok := tag[key]
			if !ok {
				continue
			}
			if name == "" {
				name = "ix_" + t.Name + "_" + col.Name
			}
			if indexes[name] == nil {
				indexes[name] = &Index{Name: name}
				indexOrder = append(indexOrder, name)
			}
			indexes[name].Columns = append(indexes[name].Columns, col.Name)
			if key == "uniqueindex" {
				indexes[name].Unique = true
			}
		}
		t.Columns = append(t.Columns, col)
	}

	for _, name := range constraintOrder {
		t.UniqueConstraints = append(t.UniqueConstraints, *named[name])
	}
	for _, name := range indexOrder {
		t.Indexes = append(t.Indexes, *indexes[name])
	}
	if cd, ok := zero.(ConstraintDeclarer); ok {
		t.UniqueConstraints = append(t.UniqueConstraints, cd.TableConstraints()...)
	}
	if id, ok := zero.(IndexDeclarer); ok {
		t.Indexes = append(t.Indexes, id.TableIndexes()...)
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	actual, _ := parseCache.LoadOrStore(rt, t)
	return actual.(*Table), nil
}

// MustParse is Parse that panics on error, for package-level model vars.
func MustParse(v any) *Table {
	t, err := Parse(v)
	if err != nil {
		panic(err)
	}
	return t
}

type mappedField struct {
	field  reflect.StructField
	column string
	index  []int
}

// structFields lists the mapped fields of rt, flattening embedded structs.
func structFields(rt reflect.Type) []mappedField {
	var out []mappedField
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		tag := f.Tag.Get(TagName)
		if tag == "-" {
			continue
		}
		if f.Anonymous && f.Type.Kind() == reflect.Struct && tag == "" {
			for _, inner := range structFields(f.Type) {
				inner.index = append([]int{i}, inner.index...)
				out = append(out, inner)
			}
			continue
		}
		if !f.IsExported() {
			continue
		}
		name := snakeCase(f.Name)
		if v, ok := parseTag(tag)["column"]; ok && v != "" {
			name = v
		}
		out = append(out, mappedField{field: f, column: name, index: f.Index})
	}
	return out
}

var fieldCache sync.Map // reflect.Type -> map[string][]int

// columnIndex maps column names to field index paths for rt.
func columnIndex(rt reflect.Type) map[string][]int {
	if cached, ok := fieldCache.Load(rt); ok {
		return cached.(map[string][]int)
	}
	idx := map[string][]int{}
	for _, f := range structFields(rt) {
		idx[f.column] = f.index
	}
	fieldCache.Store(rt, idx)
	return idx
}

// parseTag splits `a:b;c;d:e` into a lower-cased key map.
func parseTag(tag string) map[string]string {
	out := map[string]string{}
	if tag == "" {
		return out
	}
	for _, part := range strings.Split(tag, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, val, _ := strings.Cut(part, ":")
		out[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(val)
	}
	return out
}

func parseReference(s string) (*Reference, error) {
	table, column, ok := strings.Cut(s, ".")
	if !ok || table == "" || column == "" {
		return nil, errs.Newf(errs.ErrKindConfiguration, "foreign key %q must be table.column", s)
	}
	return &Reference{Table: table, Column: column}, nil
}

// inferType derives a SQL type and nullability from a Go field type.
func inferType(rt reflect.Type) (string, bool) {
	nullable := false
	if rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
		nullable = true
	}
	switch rt {
	case timeType:
		return "DATETIME", nullable
	case bytesType:
		return "BLOB", nullable
	case reflect.TypeOf(sql.NullString{}):
		return "VARCHAR(255)", true
	case reflect.TypeOf(sql.NullInt64{}):
		return "BIGINT", true
	case reflect.TypeOf(sql.NullInt32{}):
		return "INTEGER", true
	case reflect.TypeOf(sql.NullBool{}):
		return "BOOLEAN", true
	case reflect.TypeOf(sql.NullFloat64{}):
		return "FLOAT", true
	case reflect.TypeOf(sql.NullTime{}):
		return "DATETIME", true
	}
	switch rt.Kind() {
	case reflect.Bool:
		return "BOOLEAN", nullable
	case reflect.Int, reflect.Int32, reflect.Int16, reflect.Int8,
		reflect.Uint, reflect.Uint32, reflect.Uint16, reflect.Uint8:
		return "INTEGER", nullable
	case reflect.Int64, reflect.Uint64:
		return "BIGINT", nullable
	case reflect.Float32, reflect.Float64:
		return "FLOAT", nullable
	case reflect.String:
		return "VARCHAR(255)", nullable
	default:
		return "", nullable
	}
}
