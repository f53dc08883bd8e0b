package builder

import (
	"github.com/pkg/errors"
)

// Incr 在原值上累加: `amount` = `amount` + ?
func (f Fd) Incr(delta any) Assignment {
	return f.arith("+", delta)
}

// Decr 在原值上递减: `amount` = `amount` - ?
func (f Fd) Decr(delta any) Assignment {
	return f.arith("-", delta)
}

func (f Fd) arith(op string, delta any) Assignment {
	if err := f.assignable(); err != nil {
		return failAssignment(f.entity, err)
	}
	if f.col.Type != TypeInt && f.col.Type != TypeFloat {
		return failAssignment(f.entity, errors.Wrapf(ErrArgumentType, "%s on %s column %s", op, f.col.Type, f.col.Name))
	}
	if isAbsent(delta) {
		return failAssignment(f.entity, errors.Wrapf(ErrNullOperand, "%s %s", f.col.Name, op))
	}
	if err := checkValue(f.col.Type, delta); err != nil {
		return failAssignment(f.entity, errors.Wrapf(err, "column %s", f.col.Name))
	}
	return newAssignment(f.entity, f.name+" = "+f.name+" "+op+" ?", delta)
}

// 自动维护的列, 追加在调用方赋值之后
func autoAssignments(e *Entity) []fragment {
	var out []fragment
	if c, ok := e.autoColumn(AutoVersion); ok {
		name := e.Dialect.Quote(c.Name)
		out = append(out, fragment{sql: name + " = " + name + " + 1"})
	}
	if c, ok := e.autoColumn(AutoUpdatedAt); ok {
		out = append(out, fragment{sql: e.Dialect.Quote(c.Name) + " = CURRENT_TIMESTAMP"})
	}
	return out
}
