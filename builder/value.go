package builder

import (
	"database/sql/driver"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var timeType = reflect.TypeOf(time.Time{})

// isAbsent nil, nil 指针/切片/map, 或者 Value() 为 NULL 的 driver.Valuer (sql.NullString{} 等)
func isAbsent(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice:
		if rv.IsNil() {
			return true
		}
	}
	if vr, ok := v.(driver.Valuer); ok {
		dv, err := vr.Value()
		return err == nil && dv == nil
	}
	return false
}

// checkValue 检查值是否能绑定到该类型的列. driver.Valuer 交给驱动处理.
func checkValue(t ColumnType, v any) error {
	if _, ok := v.(driver.Valuer); ok {
		return nil
	}
	rv := reflect.Indirect(reflect.ValueOf(v))
	ok := true
	switch t {
	case TypeString:
		ok = rv.Kind() == reflect.String
	case TypeInt:
		ok = isIntKind(rv.Kind())
	case TypeFloat:
		ok = isIntKind(rv.Kind()) || rv.Kind() == reflect.Float32 || rv.Kind() == reflect.Float64
	case TypeBool:
		ok = rv.Kind() == reflect.Bool
	case TypeTime:
		ok = rv.Type() == timeType || rv.Kind() == reflect.String
	case TypeBytes:
		ok = rv.Kind() == reflect.String || (rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8)
	case TypeUUID:
		switch x := rv.Interface().(type) {
		case string:
			if _, err := uuid.Parse(x); err != nil {
				return errors.Wrapf(ErrArgumentType, "uuid %q: %v", x, err)
			}
		case [16]byte:
		case []byte:
			ok = len(x) == 16
		default:
			ok = false
		}
	}
	if !ok {
		return errors.Wrapf(ErrArgumentType, "%T is not %s", v, t)
	}
	return nil
}

func isIntKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

// flatten In(ids) 与 In(1, 2, 3) 等价; []byte 不展开
func flatten(vs []any) []any {
	if len(vs) != 1 || vs[0] == nil {
		return vs
	}
	rv := reflect.ValueOf(vs[0])
	if rv.Kind() != reflect.Slice || rv.Type().Elem().Kind() == reflect.Uint8 {
		return vs
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}
