package export

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"time"
)

// DefaultDateLayout is the layout used for time values when no per-column
// formatter is set.
const DefaultDateLayout = "2006-01-02"

// FormatValue renders a cell with the default rules. Nil values render
// empty and times use dateLayout. Maps, slices and structs become JSON;
// anything else is converted to a string.
func FormatValue(v any, dateLayout string) string {
	if dateLayout == "" {
		dateLayout = DefaultDateLayout
	}
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		if x.IsZero() {
			return ""
		}
		return x.Format(dateLayout)
	case *time.Time:
		if x == nil || x.IsZero() {
			return ""
		}
		return x.Format(dateLayout)
	case bool:
		return strconv.FormatBool(x)
	case fmt.Stringer:
		if isNilPointer(v) {
			return ""
		}
		return x.String()
	case error:
		return x.Error()
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return ""
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map, reflect.Slice:
		if rv.IsNil() {
			return ""
		}
		fallthrough
	case reflect.Array, reflect.Struct:
		b, err := json.Marshal(rv.Interface())
		if err != nil {
			return fmt.Sprint(rv.Interface())
		}
		return string(b)
	}
	return fmt.Sprint(rv.Interface())
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
