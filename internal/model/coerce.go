package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/koustreak/dbkit/internal/errs"
	"github.com/koustreak/dbkit/internal/logger"
)

// FieldType is the conversion applied to a raw input field.
type FieldType string

const (
	FieldInt      FieldType = "int"
	FieldFloat    FieldType = "float"
	FieldBool     FieldType = "bool"
	FieldString   FieldType = "str"
	FieldDatetime FieldType = "datetime"
	FieldDecimal  FieldType = "decimal"
	FieldJSON     FieldType = "json"
)

// DefaultTimeLayout accepts "2023-10-23 16:09:47" as well as the
// space-less "2023-10-2316:09:47", since spaces are stripped before parsing.
const DefaultTimeLayout = "2006-01-0215:04:05"

// FieldMapping maps one raw input field onto a column.
type FieldMapping struct {
	Source   string    `yaml:"source"`
	Column   string    `yaml:"column"`
	Type     FieldType `yaml:"type"`
	Required bool      `yaml:"required"`
}

// Mapping converts raw records (decoded JSON, CSV rows, API payloads) into
// column maps with typed values.
//
//	time_layout: "2006-01-0215:04:05"
//	fields:
//	  - {source: OrderNo, column: reference, type: str, required: true}
//	  - {source: Amount, column: amount, type: decimal}
type Mapping struct {
	TimeLayout string         `yaml:"time_layout"`
	Fields     []FieldMapping `yaml:"fields"`
}

// LoadMapping reads a field mapping from a YAML file.
func LoadMapping(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConfiguration, "open field mapping", err)
	}
	defer f.Close()
	return DecodeMapping(f)
}

// DecodeMapping parses and checks a YAML field mapping.
func DecodeMapping(r io.Reader) (*Mapping, error) {
	var m Mapping
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, errs.Wrap(errs.ErrKindConfiguration, "decode field mapping", err)
	}
	if err := m.check(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Mapping) check() error {
	if len(m.Fields) == 0 {
		return errs.New(errs.ErrKindConfiguration, "field mapping has no fields")
	}
	if m.TimeLayout == "" {
		m.TimeLayout = DefaultTimeLayout
	}
	columns := map[string]bool{}
	for i := range m.Fields {
		f := &m.Fields[i]
		if f.Source == "" {
			return errs.Newf(errs.ErrKindConfiguration, "field mapping %d: source is required", i)
		}
		if f.Column == "" {
			f.Column = f.Source
		}
		switch f.Type {
		case FieldInt, FieldFloat, FieldBool, FieldString, FieldDatetime, FieldDecimal, FieldJSON:
		default:
			return errs.Newf(errs.ErrKindConfiguration, "field %q: unknown type %q", f.Source, f.Type)
		}
		if columns[f.Column] {
			return errs.Newf(errs.ErrKindConfiguration, "column %q mapped twice", f.Column)
		}
		columns[f.Column] = true
	}
	return nil
}

// CheckTable reports mapped columns that t does not declare.
func (m *Mapping) CheckTable(t *Table) error {
	for _, f := range m.Fields {
		if !t.HasColumn(f.Column) {
			return errs.Newf(errs.ErrKindConfiguration, "field %q maps to unknown column %s.%s", f.Source, t.Name, f.Column)
		}
	}
	return nil
}

// Coerce converts one raw record. The string "null" (any case) counts as a
// missing value. A missing required field fails the record; a value that
// cannot be converted is logged and stored as nil. Fields not named by the
// mapping are dropped.
func (m *Mapping) Coerce(raw map[string]any, log logger.Sink) (map[string]any, error) {
	if log == nil {
		log = logger.Nop()
	}
	out := make(map[string]any, len(m.Fields))
	for _, f := range m.Fields {
		v := raw[f.Source]
		if s, ok := v.(string); ok && strings.EqualFold(s, "null") {
			v = nil
		}
		if v == nil {
			if f.Required {
				return nil, errs.Newf(errs.ErrKindInvalidInput, "required field %q is missing", f.Source)
			}
			out[f.Column] = nil
			continue
		}
		cv, err := m.convert(f.Type, v)
		if err != nil {
			log.Errorf("field %q: %v", f.Source, err)
			cv = nil
		}
		out[f.Column] = cv
	}
	return out, nil
}

// CoerceAll converts every record, stopping at the first one that fails.
func (m *Mapping) CoerceAll(raws []map[string]any, log logger.Sink) ([]map[string]any, error) {
	out := make([]map[string]any, len(raws))
	for i, raw := range raws {
		rec, err := m.Coerce(raw, log)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out[i] = rec
	}
	return out, nil
}

func (m *Mapping) convert(typ FieldType, v any) (any, error) {
	switch typ {
	case FieldInt:
		return toInt(v)
	case FieldFloat:
		return toFloat(v)
	case FieldBool:
		return toBool(v)
	case FieldString:
		return strings.TrimSpace(text(v)), nil
	case FieldDatetime:
		return m.toTime(v)
	case FieldDecimal:
		return toDecimal(v)
	case FieldJSON:
		return toJSON(v)
	default:
		return nil, fmt.Errorf("unknown type %q", typ)
	}
}

func text(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	default:
		return fmt.Sprint(x)
	}
}

func toInt(v any) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case bool:
		return 0, fmt.Errorf("not an integer: %v", x)
	}
	s := strings.TrimSpace(text(v))
	if strings.Contains(s, ".") {
		return 0, fmt.Errorf("not an integer: %q", s)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("not an integer: %q", s)
	}
	return n, nil
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	case int:
		return float64(x), nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(text(v)), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", text(v))
	}
	return f, nil
}

func toBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case int64:
		return x != 0, nil
	case int:
		return x != 0, nil
	case float64:
		return x != 0, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(text(v)))
	if err != nil {
		return false, fmt.Errorf("not a boolean: %q", text(v))
	}
	return b, nil
}

func (m *Mapping) toTime(v any) (time.Time, error) {
	if t, ok := v.(time.Time); ok {
		return t, nil
	}
	s := strings.TrimSpace(text(v))
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	layout := m.TimeLayout
	if layout == "" {
		layout = DefaultTimeLayout
	}
	t, err := time.Parse(strings.ReplaceAll(layout, " ", ""), strings.ReplaceAll(s, " ", ""))
	if err != nil {
		return time.Time{}, fmt.Errorf("not a time in layout %q: %q", layout, s)
	}
	return t, nil
}

var decimalText = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)$`)

func toDecimal(v any) (string, error) {
	s := strings.TrimSpace(text(v))
	if !decimalText.MatchString(s) {
		return "", fmt.Errorf("not a decimal: %q", s)
	}
	return CanonicalDecimal(s), nil
}

// CanonicalDecimal rewrites plain decimal text so equal numbers render the
// same: no sign on zero, no leading '+', no leading integer zeros and no
// trailing fraction zeros ("+012.50" -> "12.5", "-0.00" -> "0").
// Text that is not a plain decimal is returned unchanged.
func CanonicalDecimal(s string) string {
	s = strings.TrimSpace(s)
	if !decimalText.MatchString(s) {
		return s
	}
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimLeft(s, "+-")

	intPart, frac, _ := strings.Cut(s, ".")
	intPart = strings.TrimLeft(intPart, "0")
	frac = strings.TrimRight(frac, "0")
	if intPart == "" {
		intPart = "0"
	}
	out := intPart
	if frac != "" {
		out += "." + frac
	}
	if neg && out != "0" {
		out = "-" + out
	}
	return out
}

func toJSON(v any) (string, error) {
	if s, ok := v.(string); ok {
		var buf bytes.Buffer
		if err := json.Compact(&buf, []byte(s)); err != nil {
			return "", fmt.Errorf("not valid JSON: %q", s)
		}
		return buf.String(), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
