package builder

import (
	"bytes"

	"github.com/pkg/errors"
)

func newCondition(e *Entity, sql string, args ...any) Condition {
	return Condition{expr{entity: e, frag: fragment{sql: sql, args: args}}}
}

func failCondition(e *Entity, err error) Condition {
	return Condition{expr{entity: e, err: err}}
}

func newAssignment(e *Entity, sql string, args ...any) Assignment {
	return Assignment{expr{entity: e, frag: fragment{sql: sql, args: args}}}
}

func failAssignment(e *Entity, err error) Assignment {
	return Assignment{expr{entity: e, err: err}}
}

// And 多个条件用 AND 连接并加括号: (a AND b)
func And(conds ...Condition) Condition {
	return group(" AND ", conds)
}

// Or 多个条件用 OR 连接并加括号: (a OR b)
func Or(conds ...Condition) Condition {
	return group(" OR ", conds)
}

func group(sep string, conds []Condition) Condition {
	if len(conds) == 0 {
		return failCondition(nil, errors.New("builder: empty condition group"))
	}
	e := conds[0].entity
	if len(conds) == 1 {
		return conds[0]
	}
	var (
		bf   bytes.Buffer
		args []any
	)
	bf.WriteString("(")
	for i, c := range conds {
		if c.err != nil {
			return failCondition(e, c.err)
		}
		if c.entity != e {
			return failCondition(e, errors.Wrapf(ErrForeignCondition, "%s mixed with %s", entityName(c.entity), entityName(e)))
		}
		if i > 0 {
			bf.WriteString(sep)
		}
		bf.WriteString(c.frag.sql)
		args = append(args, c.frag.args...)
	}
	bf.WriteString(")")
	return newCondition(e, bf.String(), args...)
}

func entityName(e *Entity) string {
	if e == nil {
		return "<nil>"
	}
	return e.Name
}
