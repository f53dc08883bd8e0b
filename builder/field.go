package builder

import (
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// Fd 实体上的一列, 提供该列固定的条件/排序/赋值操作.
// 列不存在时 Fd 携带错误, 由它产生的表达式在终结操作时返回该错误.
type Fd struct {
	entity *Entity
	col    Column
	name   string // 已按方言处理过引号
	err    error
}

func newField(e *Entity, col Column) Fd {
	return Fd{entity: e, col: col, name: e.Dialect.Quote(col.Name)}
}

func (f Fd) Column() Column { return f.col }

func (f Fd) String() string { return f.name }

func (f Fd) Err() error { return f.err }

func (f Fd) fail(err error) Condition {
	return failCondition(f.entity, err)
}

// compare 绑定一个值. 值缺失时 = / <> 改写成 IS NULL / IS NOT NULL, 不占参数位.
func (f Fd) compare(op string, v any) Condition {
	if f.err != nil {
		return f.fail(f.err)
	}
	if isAbsent(v) {
		switch op {
		case "=":
			return newCondition(f.entity, f.name+" IS NULL")
		case "<>":
			return newCondition(f.entity, f.name+" IS NOT NULL")
		}
		return f.fail(errors.Wrapf(ErrNullOperand, "%s %s", f.col.Name, op))
	}
	if err := checkValue(f.col.Type, v); err != nil {
		return f.fail(errors.Wrapf(err, "column %s", f.col.Name))
	}
	return newCondition(f.entity, f.name+" "+op+" ?", v)
}

func (f Fd) Eq(v any) Condition  { return f.compare("=", v) }
func (f Fd) Ne(v any) Condition  { return f.compare("<>", v) }
func (f Fd) Gt(v any) Condition  { return f.compare(">", v) }
func (f Fd) Gte(v any) Condition { return f.compare(">=", v) }
func (f Fd) Lt(v any) Condition  { return f.compare("<", v) }
func (f Fd) Lte(v any) Condition { return f.compare("<=", v) }

// match LIKE 系列只用于字符串列, 通配符在绑定值里而不是 SQL 文本里
func (f Fd) match(op, pattern string) Condition {
	if f.err != nil {
		return f.fail(f.err)
	}
	if f.col.Type != TypeString && f.col.Type != TypeOther {
		return f.fail(errors.Wrapf(ErrArgumentType, "%s on %s column %s", op, f.col.Type, f.col.Name))
	}
	return newCondition(f.entity, f.name+" "+op+" ?", pattern)
}

func (f Fd) Like(pattern string) Condition    { return f.match("LIKE", pattern) }
func (f Fd) NotLike(pattern string) Condition { return f.match("NOT LIKE", pattern) }

// StartsWith 绑定 v%
func (f Fd) StartsWith(v string) Condition { return f.match("LIKE", v+"%") }

// EndsWith 绑定 %v
func (f Fd) EndsWith(v string) Condition { return f.match("LIKE", "%"+v) }

func (f Fd) Contains(v string) Condition { return f.match("LIKE", "%"+v+"%") }

// In 空列表时为 1 = 0
func (f Fd) In(vs ...any) Condition { return f.in("IN", "1 = 0", vs) }

// NotIn 空列表时为 1 = 1
func (f Fd) NotIn(vs ...any) Condition { return f.in("NOT IN", "1 = 1", vs) }

func (f Fd) in(op, empty string, vs []any) Condition {
	if f.err != nil {
		return f.fail(f.err)
	}
	vs = flatten(vs)
	if len(vs) == 0 {
		return newCondition(f.entity, empty)
	}
	for _, v := range vs {
		if isAbsent(v) {
			return f.fail(errors.Wrapf(ErrNullOperand, "%s %s", f.col.Name, op))
		}
		if err := checkValue(f.col.Type, v); err != nil {
			return f.fail(errors.Wrapf(err, "column %s", f.col.Name))
		}
	}
	q, args, err := sqlx.In(f.name+" "+op+" (?)", vs)
	if err != nil {
		return f.fail(errors.Wrap(err, "sqlx.In"))
	}
	return newCondition(f.entity, q, args...)
}

func (f Fd) IsNull() Condition {
	if f.err != nil {
		return f.fail(f.err)
	}
	return newCondition(f.entity, f.name+" IS NULL")
}

func (f Fd) NotNull() Condition {
	if f.err != nil {
		return f.fail(f.err)
	}
	return newCondition(f.entity, f.name+" IS NOT NULL")
}

func (f Fd) order(dir string) Order {
	if f.err != nil {
		return Order{expr{entity: f.entity, err: f.err}}
	}
	return Order{expr{entity: f.entity, frag: fragment{sql: f.name + " " + dir}}}
}

func (f Fd) Asc() Order  { return f.order("ASC") }
func (f Fd) Desc() Order { return f.order("DESC") }

// Set UPDATE 中的 c = ?; 值缺失时写 NULL, 只允许可空列
func (f Fd) Set(v any) Assignment {
	if err := f.assignable(); err != nil {
		return failAssignment(f.entity, err)
	}
	if isAbsent(v) {
		if !f.col.Optional {
			return failAssignment(f.entity, errors.Wrapf(ErrArgumentType, "column %s is not nullable", f.col.Name))
		}
		return newAssignment(f.entity, f.name+" = NULL")
	}
	if err := checkValue(f.col.Type, v); err != nil {
		return failAssignment(f.entity, errors.Wrapf(err, "column %s", f.col.Name))
	}
	return newAssignment(f.entity, f.name+" = ?", v)
}

func (f Fd) assignable() error {
	if f.err != nil {
		return f.err
	}
	if f.col.Auto != AutoNone {
		return errors.Wrapf(ErrAutoManagedColumn, "column %s", f.col.Name)
	}
	return nil
}

func unknownField(e *Entity, name string) Fd {
	return Fd{
		entity: e,
		col:    Column{Name: name},
		name:   name,
		err:    errors.Wrapf(ErrUnknownColumn, "%s.%s (have %s)", e.Name, name, strings.Join(e.ColumnNames(), ", ")),
	}
}
