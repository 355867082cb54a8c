package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// DateTimeLayout is the fixed-width UTC text form of DateTime values.
// Fixed width keeps lexical and chronological order identical.
const DateTimeLayout = "2006-01-02T15:04:05.000000000Z"

// StorageValue converts a member value to the form written to, and compared
// against, its index table. The same conversion is applied to extracted
// index values and to query literals so both sides always agree.
//
// Strings are NFC normalized. A nil value stays nil.
func StorageValue(code DataTypeCode, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch code {
	case IntegerNumber:
		return toInt64(v)
	case FractalNumber:
		return toFloat64(v)
	case Bool:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Bool {
			return rv.Bool(), nil
		}
	case DateTime:
		return toDateTime(v)
	case Guid:
		return toGuid(v)
	case String, Text:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.String {
			return norm.NFC.String(rv.String()), nil
		}
	case Enum:
		if s, ok := v.(fmt.Stringer); ok {
			return norm.NFC.String(s.String()), nil
		}
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.String {
			return norm.NFC.String(rv.String()), nil
		}
	default:
		return nil, &DataTypeRoutingError{DataType: code}
	}
	return nil, fmt.Errorf("cannot store %T as %s", v, code)
}

func toInt64(v any) (any, error) {
	switch n := v.(type) {
	case json.Number:
		return n.Int64()
	case float64:
		return Float64ToInt64(n)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return nil, fmt.Errorf("cannot store %d as %s: overflows int64", u, IntegerNumber)
		}
		return int64(u), nil
	}
	return nil, fmt.Errorf("cannot store %T as %s", v, IntegerNumber)
}

// Float64ToInt64 converts a whole-number float to int64. Fractions and
// values outside the int64 range are rejected.
func Float64ToInt64(n float64) (int64, error) {
	if n != math.Trunc(n) {
		return 0, fmt.Errorf("cannot store non-integral %v as %s", n, IntegerNumber)
	}
	if n < math.MinInt64 || n >= -math.MinInt64 {
		return 0, fmt.Errorf("cannot store %v as %s: overflows int64", n, IntegerNumber)
	}
	return int64(n), nil
}

func toFloat64(v any) (any, error) {
	if n, ok := v.(json.Number); ok {
		return n.Float64()
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), nil
	}
	return nil, fmt.Errorf("cannot store %T as %s", v, FractalNumber)
}

func toDateTime(v any) (any, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(DateTimeLayout), nil
	case *time.Time:
		if t == nil {
			return nil, nil
		}
		return t.UTC().Format(DateTimeLayout), nil
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			parsed, err = time.Parse("2006-01-02", t)
			if err != nil {
				return nil, fmt.Errorf("cannot store %q as %s: %w", t, DateTime, err)
			}
		}
		return parsed.UTC().Format(DateTimeLayout), nil
	}
	return nil, fmt.Errorf("cannot store %T as %s", v, DateTime)
}

func toGuid(v any) (any, error) {
	switch g := v.(type) {
	case uuid.UUID:
		return g.String(), nil
	case string:
		parsed, err := uuid.Parse(g)
		if err != nil {
			return nil, fmt.Errorf("cannot store %q as %s: %w", g, Guid, err)
		}
		return parsed.String(), nil
	case [16]byte:
		return uuid.UUID(g).String(), nil
	}
	return nil, fmt.Errorf("cannot store %T as %s", v, Guid)
}
