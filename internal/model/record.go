package model

import (
	"database/sql/driver"
	"reflect"

	"github.com/koustreak/dbkit/internal/errs"
)

// Mapper is implemented by values that know how to present themselves as
// a column map.
type Mapper interface {
	ToMap() map[string]any
}

// Record is a candidate row resolved against a table: the column values a
// map, Mapper or tagged struct carries, in the table's column order.
type Record struct {
	columns []string
	values  map[string]any
}

// NewRecord resolves v against t. v may be a map[string]any, a Mapper, or
// a struct (or pointer to struct) whose fields map to columns. Keys that
// are not columns of t are ignored.
func NewRecord(t *Table, v any) (Record, error) {
	var raw map[string]any
	switch src := v.(type) {
	case nil:
		return Record{}, errs.New(errs.ErrKindInvalidInput, "nil record")
	case map[string]any:
		raw = src
	case Mapper:
		raw = src.ToMap()
	default:
		rv := reflect.ValueOf(v)
		for rv.Kind() == reflect.Pointer {
			if rv.IsNil() {
				return Record{}, errs.New(errs.ErrKindInvalidInput, "nil record pointer")
			}
			rv = rv.Elem()
		}
		if rv.Kind() != reflect.Struct {
			return Record{}, errs.Newf(errs.ErrKindInvalidInput, "unsupported record type %T", v)
		}
		raw = map[string]any{}
		for col, index := range columnIndex(rv.Type()) {
			fv, err := rv.FieldByIndexErr(index)
			if err != nil {
				// nil embedded pointer: the column is simply absent
				continue
			}
			raw[col] = fv.Interface()
		}
	}

	r := Record{values: make(map[string]any, len(raw))}
	for _, col := range t.Columns {
		val, ok := raw[col.Name]
		if !ok {
			continue
		}
		nv, err := Normalize(val)
		if err != nil {
			return Record{}, errs.Wrap(errs.ErrKindInvalidInput, "column "+col.Name, err)
		}
		r.columns = append(r.columns, col.Name)
		r.values[col.Name] = nv
	}
	return r, nil
}

// Get returns the value of a column and whether the record carries it.
func (r Record) Get(column string) (any, bool) {
	v, ok := r.values[column]
	return v, ok
}

// GetField returns the value of a column, or nil when absent.
func (r Record) GetField(column string) any {
	return r.values[column]
}

// Columns returns the columns present on the record, in table order.
func (r Record) Columns() []string {
	return r.columns
}

// Values returns the values of cols in order; absent columns yield nil.
func (r Record) Values(cols []string) []any {
	out := make([]any, len(cols))
	for i, c := range cols {
		out[i] = r.values[c]
	}
	return out
}

// Map returns a copy of the record's column map.
func (r Record) Map() map[string]any {
	out := make(map[string]any, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// Normalize unwraps driver.Valuer values and pointers so the result can be
// passed to a driver or compared against values read back from one.
func Normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if valuer, ok := v.(driver.Valuer); ok {
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Pointer && rv.IsNil() {
			return nil, nil
		}
		return valuer.Value()
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, nil
		}
		return Normalize(rv.Elem().Interface())
	}
	return v, nil
}
