package runtime

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/aretw0/conductor/pkg/domain"
)

// evaluate applies op to the resolved operands.
func evaluate(op domain.CompareOp, left, right any) (bool, error) {
	switch op {
	case domain.OpTruthy:
		return truthy(left), nil
	case domain.OpFalsy:
		return !truthy(left), nil
	case domain.OpEq:
		return equal(left, right), nil
	case domain.OpNe:
		return !equal(left, right), nil
	case domain.OpContains:
		return contains(left, right), nil
	case domain.OpGt, domain.OpGte, domain.OpLt, domain.OpLte:
		c, err := compare(left, right)
		if err != nil {
			return false, err
		}
		switch op {
		case domain.OpGt:
			return c > 0, nil
		case domain.OpGte:
			return c >= 0, nil
		case domain.OpLt:
			return c < 0, nil
		default:
			return c <= 0, nil
		}
	}
	return false, fmt.Errorf("unknown operator '%s'", op)
}

func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		s := strings.TrimSpace(val)
		return s != "" && !strings.EqualFold(s, "false") && s != "0"
	}
	if f, ok := number(v); ok {
		return f != 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

func equal(a, b any) bool {
	if fa, ok := number(a); ok {
		if fb, ok := number(b); ok {
			return fa == fb
		}
	}
	if reflect.DeepEqual(a, b) {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func compare(a, b any) (int, error) {
	if fa, ok := number(a); ok {
		if fb, ok := number(b); ok {
			switch {
			case fa < fb:
				return -1, nil
			case fa > fb:
				return 1, nil
			}
			return 0, nil
		}
	}
	sa, okA := a.(string)
	sb, okB := b.(string)
	if okA && okB {
		return strings.Compare(sa, sb), nil
	}
	return 0, fmt.Errorf("cannot compare %T with %T", a, b)
}

func contains(haystack, needle any) bool {
	if s, ok := haystack.(string); ok {
		return strings.Contains(s, fmt.Sprint(needle))
	}
	rv := reflect.ValueOf(haystack)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if equal(rv.Index(i).Interface(), needle) {
				return true
			}
		}
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			return rv.MapIndex(reflect.ValueOf(fmt.Sprint(needle)).Convert(rv.Type().Key())).IsValid()
		}
	}
	return false
}

// number converts numeric values and numeric strings to float64.
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}
