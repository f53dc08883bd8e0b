package builder

import (
	"context"
	"reflect"
	"strings"
	"time"

	"github.com/jmoiron/sqlx/reflectx"
	"github.com/pkg/errors"
)

// 与 sqlx 默认的映射规则一致: db 标签, 没有标签时字段名转小写
var mapper = reflectx.NewMapperFunc("db", strings.ToLower)

// InsertBuilder 插入构建器, 由 Catalog.Insert 创建.
// 自动维护的列 (主键, 版本号, 时间戳) 不写入, 由数据库生成.
type InsertBuilder[T any] struct {
	st state
}

// Insert 按 db 标签取每行的列值, 多行时生成一条 INSERT ... VALUES (...), (...)
func (c *Catalog[T]) Insert(rows ...T) *InsertBuilder[T] {
	b := &InsertBuilder[T]{st: newState(c.entity, kindInsert)}
	return b.Values(rows...)
}

// Values 追加行
func (b *InsertBuilder[T]) Values(rows ...T) *InsertBuilder[T] {
	if b.st.consumed {
		b.st.setErr(ErrBuilderConsumed)
		return b
	}
	for _, row := range rows {
		frag, err := insertRow(b.st.entity, row)
		if err != nil {
			b.st.setErr(err)
			return b
		}
		b.st.values = append(b.st.values, frag)
	}
	return b
}

func (b *InsertBuilder[T]) DebugSlow(d time.Duration) *InsertBuilder[T] {
	b.st.slow = d
	return b
}

func (b *InsertBuilder[T]) Err() error { return b.st.err }

// SQL 没有任何行时返回 ErrEmptyInsert
func (b *InsertBuilder[T]) SQL() (Statement, error) {
	if err := b.st.consume(); err != nil {
		return Statement{}, err
	}
	return b.st.insertSQL()
}

// Execute 执行 INSERT, 返回影响的行数
func (b *InsertBuilder[T]) Execute(ctx context.Context, ex Executor) (int64, error) {
	if err := b.st.consume(); err != nil {
		return 0, err
	}
	stmt, err := b.st.insertSQL()
	if err != nil {
		return 0, err
	}
	return b.st.exec(ctx, ex, "insert", stmt)
}

// insertRow 一行的 (?, ?, ...) 和对应的值, 值的检查规则与 Set 相同
func insertRow(e *Entity, row any) (fragment, error) {
	rv := reflect.Indirect(reflect.ValueOf(row))
	if rv.Kind() != reflect.Struct {
		return fragment{}, errors.Wrapf(ErrArgumentType, "insert %s: %T is not a struct", e.Name, row)
	}
	cols := e.insertColumns()
	if len(cols) == 0 {
		return fragment{}, errors.Wrapf(ErrEmptyInsert, "%s has no insertable columns", e.Name)
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	traversals := mapper.TraversalsByName(rv.Type(), names)

	args := make([]any, len(cols))
	for i, col := range cols {
		if len(traversals[i]) == 0 {
			return fragment{}, errors.Wrapf(ErrUnknownColumn, "%s has no db field for column %s", rv.Type(), col.Name)
		}
		v := reflectx.FieldByIndexesReadOnly(rv, traversals[i]).Interface()
		if isAbsent(v) {
			if !col.Optional {
				return fragment{}, errors.Wrapf(ErrArgumentType, "column %s is not nullable", col.Name)
			}
			continue
		}
		if err := checkValue(col.Type, v); err != nil {
			return fragment{}, errors.Wrapf(err, "column %s", col.Name)
		}
		args[i] = v
	}
	return fragment{sql: "(" + strings.Repeat("?, ", len(cols)-1) + "?)", args: args}, nil
}
