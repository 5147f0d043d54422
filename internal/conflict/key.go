package conflict

import (
	"database/sql/driver"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/koustreak/dbkit/internal/model"
)

const (
	nullMarker = "\x00"
	separator  = "\x1f"
)

// Key renders a key tuple so that a value written by the caller and the
// same value read back from a driver produce the same string: every
// integer type collapses to base 10, booleans to 1/0, byte slices to text,
// times to UTC and 16-byte arrays (pgx's UUID) to canonical UUID text.
func Key(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = keyPart(v)
	}
	return strings.Join(parts, separator)
}

func keyPart(v any) string {
	switch x := v.(type) {
	case nil:
		return nullMarker
	case string:
		return x
	case []byte:
		return string(x)
	case bool:
		if x {
			return "1"
		}
		return "0"
	case int:
		return strconv.FormatInt(int64(x), 10)
	case int8:
		return strconv.FormatInt(int64(x), 10)
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint:
		return strconv.FormatUint(uint64(x), 10)
	case uint8:
		return strconv.FormatUint(uint64(x), 10)
	case uint16:
		return strconv.FormatUint(uint64(x), 10)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float32:
		return formatFloat(float64(x))
	case float64:
		return formatFloat(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case [16]byte:
		return uuid.UUID(x).String()
	case uuid.UUID:
		return x.String()
	case pgtype.Numeric:
		v, err := x.Value()
		if err != nil || v == nil {
			return nullMarker
		}
		return model.CanonicalDecimal(v.(string))
	case driver.Valuer:
		v, err := x.Value()
		if err != nil {
			return fmt.Sprint(x)
		}
		return keyPart(v)
	default:
		return fmt.Sprint(x)
	}
}

// tupleKey is Key with the values of DECIMAL/NUMERIC columns rewritten to
// canonical decimal text, so 12.5, "12.50" and a NUMERIC read back from the
// driver agree.
func tupleKey(t *model.Table, cols []string, values []any) string {
	var out []any
	for i, name := range cols {
		col, ok := t.Column(name)
		if !ok || !isDecimal(col.Type) || values[i] == nil {
			continue
		}
		if out == nil {
			out = append([]any(nil), values...)
		}
		if p := keyPart(values[i]); p != nullMarker {
			out[i] = model.CanonicalDecimal(p)
		}
	}
	if out == nil {
		return Key(values)
	}
	return Key(out)
}

func isDecimal(typ string) bool {
	typ = strings.ToUpper(strings.TrimSpace(typ))
	return strings.HasPrefix(typ, "DECIMAL") || strings.HasPrefix(typ, "NUMERIC")
}

// formatFloat renders whole floats like integers so 3.0 matches 3, and
// never uses an exponent.
func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
