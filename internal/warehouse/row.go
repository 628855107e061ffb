package warehouse

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Row is one result row keyed by upper-cased column name. Values keep whatever
// type the driver produced.
type Row map[string]any

func newRow(size int) Row {
	return make(Row, size)
}

func (r Row) set(column string, value any) {
	if b, ok := value.([]byte); ok {
		value = string(b)
	}
	r[strings.ToUpper(column)] = value
}

// Value returns the raw value of column.
func (r Row) Value(column string) any {
	return r[strings.ToUpper(column)]
}

// IsNull reports whether column is missing or NULL.
func (r Row) IsNull(column string) bool {
	return r.Value(column) == nil
}

// String renders column as text; NULL becomes "".
func (r Row) String(column string) string {
	switch v := r.Value(column).(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

// Int64 converts column to an integer. valid is false for NULL.
func (r Row) Int64(column string) (value int64, valid bool, err error) {
	switch v := r.Value(column).(type) {
	case nil:
		return 0, false, nil
	case int64:
		return v, true, nil
	case int32:
		return int64(v), true, nil
	case int:
		return int64(v), true, nil
	case float64:
		if v != math.Trunc(v) {
			return 0, false, fmt.Errorf("column %s: %v is not an integer", column, v)
		}
		return int64(v), true, nil
	case *big.Rat:
		if v == nil {
			return 0, false, nil
		}
		if !v.IsInt() || !v.Num().IsInt64() {
			return 0, false, fmt.Errorf("column %s: %s is not an int64", column, v.RatString())
		}
		return v.Num().Int64(), true, nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, false, fmt.Errorf("column %s: %w", column, err)
		}
		return n, true, nil
	default:
		return 0, false, fmt.Errorf("column %s: unsupported integer type %T", column, v)
	}
}

// numericScale is BigQuery's NUMERIC scale, reused for every engine.
const numericScale = 9

// Decimal converts column to an exact decimal. NUMERIC values from BigQuery
// arrive as *big.Rat and are rendered with 9 fractional digits, the type's scale.
// SQLite sums and averages come back as float64 and are rounded to the same
// scale, so 0.1+0.2 reads as 0.3.
func (r Row) Decimal(column string) (decimal.NullDecimal, error) {
	switch v := r.Value(column).(type) {
	case nil:
		return decimal.NullDecimal{}, nil
	case int64:
		return present(decimal.NewFromInt(v)), nil
	case int32:
		return present(decimal.NewFromInt32(v)), nil
	case int:
		return present(decimal.NewFromInt(int64(v))), nil
	case float64:
		return present(decimal.NewFromFloat(v).Round(numericScale)), nil
	case *big.Rat:
		if v == nil {
			return decimal.NullDecimal{}, nil
		}
		d, err := decimal.NewFromString(v.FloatString(numericScale))
		if err != nil {
			return decimal.NullDecimal{}, fmt.Errorf("column %s: %w", column, err)
		}
		return present(d), nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return decimal.NullDecimal{}, fmt.Errorf("column %s: %w", column, err)
		}
		return present(d), nil
	default:
		return decimal.NullDecimal{}, fmt.Errorf("column %s: unsupported numeric type %T", column, v)
	}
}

func present(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// Date converts column to midnight UTC of its calendar date.
func (r Row) Date(column string) (value time.Time, valid bool, err error) {
	switch v := r.Value(column).(type) {
	case nil:
		return time.Time{}, false, nil
	case civil.Date:
		return v.In(time.UTC), true, nil
	case time.Time:
		y, m, d := v.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true, nil
	case string:
		s := strings.TrimSpace(v)
		if len(s) > len(time.DateOnly) {
			s = s[:len(time.DateOnly)]
		}
		t, err := time.Parse(time.DateOnly, s)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("column %s: %w", column, err)
		}
		return t, true, nil
	default:
		return time.Time{}, false, fmt.Errorf("column %s: unsupported date type %T", column, v)
	}
}
