package builder

import (
	"bytes"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

type kind uint8

const (
	kindSelect kind = iota
	kindUpdate
	kindDelete
	kindInsert
)

func (k kind) String() string {
	switch k {
	case kindUpdate:
		return "update"
	case kindDelete:
		return "delete"
	case kindInsert:
		return "insert"
	}
	return "select"
}

// Statement 组装好的语句, SQL 已是目标方言的占位符形式
type Statement struct {
	SQL  string
	Args []any
}

// state 构建器共享的累积状态. 每个片段自带参数, 组装时按文本顺序收集.
type state struct {
	entity   *Entity
	kind     kind
	where    []fragment
	set      []fragment
	order    []fragment
	values   []fragment // INSERT 的每一行
	consumed bool
	err      error
	slow     time.Duration
}

func newState(e *Entity, k kind) state {
	return state{entity: e, kind: k}
}

// accept 记录第一个错误; 已消费的构建器不再接受修改
func (s *state) accept(x expr) bool {
	if s.consumed {
		s.setErr(ErrBuilderConsumed)
		return false
	}
	if x.err != nil {
		s.setErr(x.err)
		return false
	}
	if x.entity != s.entity {
		s.setErr(errors.Wrapf(ErrForeignCondition, "%s used on %s builder", entityName(x.entity), s.entity.Name))
		return false
	}
	return true
}

func (s *state) setErr(err error) {
	if s.err == nil {
		s.err = err
	}
}

func (s *state) addWhere(conds []Condition) {
	for _, c := range conds {
		if s.accept(c.expr) {
			s.where = append(s.where, c.frag)
		}
	}
}

func (s *state) addSet(assigns []Assignment) {
	for _, a := range assigns {
		if s.accept(a.expr) {
			s.set = append(s.set, a.frag)
		}
	}
}

func (s *state) addOrder(orders []Order) {
	for _, o := range orders {
		if s.accept(o.expr) {
			s.order = append(s.order, o.frag)
		}
	}
}

// consume 终结操作调用, 只能成功一次
func (s *state) consume() error {
	if s.consumed {
		return ErrBuilderConsumed
	}
	s.consumed = true
	return s.err
}

func (s *state) rebind(q string) string {
	return sqlx.Rebind(s.entity.Dialect.BindType(), q)
}

func (s *state) getWhere(args *[]any) string {
	if len(s.where) == 0 {
		return ""
	}
	bf := bytes.Buffer{}
	bf.WriteString(" WHERE ")
	for i, f := range s.where {
		if i > 0 {
			bf.WriteString(" AND ")
		}
		bf.WriteString(f.sql)
		*args = append(*args, f.args...)
	}
	return bf.String()
}

func (s *state) getSet(args *[]any) (string, error) {
	if len(s.set) == 0 {
		return "", errors.Wrapf(ErrEmptyUpdateSet, "update %s", s.entity.Table)
	}
	bf := bytes.Buffer{}
	bf.WriteString(" SET ")
	for i, f := range append(append([]fragment(nil), s.set...), autoAssignments(s.entity)...) {
		if i > 0 {
			bf.WriteString(", ")
		}
		bf.WriteString(f.sql)
		*args = append(*args, f.args...)
	}
	return bf.String(), nil
}

func (s *state) getOrderBy() string {
	if len(s.order) == 0 {
		return ""
	}
	bf := bytes.Buffer{}
	bf.WriteString(" ORDER BY ")
	for i, f := range s.order {
		if i > 0 {
			bf.WriteString(", ")
		}
		bf.WriteString(f.sql)
	}
	return bf.String()
}

// getLimit limit <= 0 表示不分页
func (s *state) getLimit(offset, limit int) string {
	if limit <= 0 {
		return ""
	}
	var bf bytes.Buffer
	switch s.entity.Dialect {
	case MySQL:
		// MySQL LIMIT 语法: LIMIT offset, limit
		bf.WriteString(" LIMIT ")
		if offset > 0 {
			bf.WriteString(strconv.Itoa(offset))
			bf.WriteString(", ")
		}
		bf.WriteString(strconv.Itoa(limit))
	case Oracle, SQLServer:
		if s.entity.Dialect == SQLServer && len(s.order) == 0 {
			// SQL Server 的 OFFSET 必须跟在 ORDER BY 后面
			bf.WriteString(" ORDER BY (SELECT NULL)")
		}
		bf.WriteString(" OFFSET ")
		bf.WriteString(strconv.Itoa(offset))
		bf.WriteString(" ROWS FETCH NEXT ")
		bf.WriteString(strconv.Itoa(limit))
		bf.WriteString(" ROWS ONLY")
	default:
		bf.WriteString(" LIMIT ")
		bf.WriteString(strconv.Itoa(limit))
		if offset > 0 {
			bf.WriteString(" OFFSET ")
			bf.WriteString(strconv.Itoa(offset))
		}
	}
	return bf.String()
}

// querySQL SELECT 列 FROM 表 WHERE ... ORDER BY ... LIMIT ...
func (s *state) querySQL(offset, limit int) Statement {
	var args []any
	bf := bytes.Buffer{}
	bf.WriteString("SELECT ")
	bf.WriteString(s.entity.selectList())
	bf.WriteString(" FROM ")
	bf.WriteString(s.entity.quotedTable())
	bf.WriteString(s.getWhere(&args))
	bf.WriteString(s.getOrderBy())
	bf.WriteString(s.getLimit(offset, limit))
	return Statement{SQL: s.rebind(bf.String()), Args: args}
}

// countSQL 与 querySQL 共用 WHERE, 不带 ORDER BY
func (s *state) countSQL() Statement {
	var args []any
	bf := bytes.Buffer{}
	bf.WriteString("SELECT COUNT(*) FROM ")
	bf.WriteString(s.entity.quotedTable())
	bf.WriteString(s.getWhere(&args))
	return Statement{SQL: s.rebind(bf.String()), Args: args}
}

// updateSQL 参数顺序与文本一致: 先 SET 再 WHERE
func (s *state) updateSQL() (Statement, error) {
	var args []any
	bf := bytes.Buffer{}
	bf.WriteString("UPDATE ")
	bf.WriteString(s.entity.quotedTable())
	set, err := s.getSet(&args)
	if err != nil {
		return Statement{}, err
	}
	bf.WriteString(set)
	bf.WriteString(s.getWhere(&args))
	return Statement{SQL: s.rebind(bf.String()), Args: args}, nil
}

func (s *state) deleteSQL() Statement {
	var args []any
	bf := bytes.Buffer{}
	bf.WriteString("DELETE FROM ")
	bf.WriteString(s.entity.quotedTable())
	bf.WriteString(s.getWhere(&args))
	return Statement{SQL: s.rebind(bf.String()), Args: args}
}

// insertSQL INSERT INTO 表 (列) VALUES (...), (...)
func (s *state) insertSQL() (Statement, error) {
	if len(s.values) == 0 {
		return Statement{}, errors.Wrapf(ErrEmptyInsert, "insert %s", s.entity.Table)
	}
	var args []any
	bf := bytes.Buffer{}
	bf.WriteString("INSERT INTO ")
	bf.WriteString(s.entity.quotedTable())
	bf.WriteString(" (")
	for i, c := range s.entity.insertColumns() {
		if i > 0 {
			bf.WriteString(", ")
		}
		bf.WriteString(s.entity.Dialect.Quote(c.Name))
	}
	bf.WriteString(") VALUES ")
	for i, f := range s.values {
		if i > 0 {
			bf.WriteString(", ")
		}
		bf.WriteString(f.sql)
		args = append(args, f.args...)
	}
	return Statement{SQL: s.rebind(bf.String()), Args: args}, nil
}
