package builder

import (
	"context"
	"database/sql"
	"iter"
	"log/slog"
	"reflect"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// Executor 执行语句的能力; *sqlx.DB, *sqlx.Tx 以及 tpl.Client / tpl.Tx 都满足
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error)
}

// Submitter 带协程池的执行器实现它, FindPage 用它并发执行 count
type Submitter interface {
	Submit(task func()) error
}

// Page FindPage 的结果; 未请求总数时 Total 为 nil
type Page[T any] struct {
	Offset int
	Limit  int
	Total  *int64
	Rows   []T
}

func (s *state) observe(ctx context.Context, op string, stmt Statement, start time.Time) {
	if s.slow <= 0 {
		return
	}
	if elapsed := time.Since(start); elapsed >= s.slow {
		slog.WarnContext(ctx, "slow statement", "op", op, "entity", s.entity.Name,
			"sql", stmt.SQL, "args", stmt.Args, "elapsed", elapsed)
	}
}

func queryErr(op string, stmt Statement, err error) error {
	return &QueryError{Op: op, SQL: stmt.SQL, Err: err}
}

func (b *SelectBuilder[T]) selectRows(ctx context.Context, ex Executor, op string, stmt Statement) ([]T, error) {
	rows := []T{}
	start := time.Now()
	err := ex.SelectContext(ctx, &rows, stmt.SQL, stmt.Args...)
	b.st.observe(ctx, op, stmt, start)
	if err != nil {
		return nil, queryErr(op, stmt, err)
	}
	return rows, nil
}

func (b *SelectBuilder[T]) count(ctx context.Context, ex Executor, stmt Statement) (int64, error) {
	var n int64
	start := time.Now()
	err := ex.GetContext(ctx, &n, stmt.SQL, stmt.Args...)
	b.st.observe(ctx, "count", stmt, start)
	if err != nil {
		return 0, queryErr("count", stmt, err)
	}
	return n, nil
}

// FindAll 返回全部匹配的行, 没有结果时返回空切片
func (b *SelectBuilder[T]) FindAll(ctx context.Context, ex Executor) ([]T, error) {
	if err := b.st.consume(); err != nil {
		return nil, err
	}
	return b.selectRows(ctx, ex, "find_all", b.st.querySQL(0, 0))
}

// FindOne 带 LIMIT 1; 没有行时 ok 为 false, 不是错误
func (b *SelectBuilder[T]) FindOne(ctx context.Context, ex Executor) (row T, ok bool, err error) {
	if err = b.st.consume(); err != nil {
		return row, false, err
	}
	stmt := b.st.querySQL(0, 1)
	start := time.Now()
	err = ex.GetContext(ctx, &row, stmt.SQL, stmt.Args...)
	b.st.observe(ctx, "find_one", stmt, start)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		var zero T
		return zero, false, nil
	case err != nil:
		return row, false, queryErr("find_one", stmt, err)
	}
	return row, true, nil
}

// Count SELECT COUNT(*), 与查询共用 WHERE
func (b *SelectBuilder[T]) Count(ctx context.Context, ex Executor) (int64, error) {
	if err := b.st.consume(); err != nil {
		return 0, err
	}
	return b.count(ctx, ex, b.st.countSQL())
}

// FindPage 分页查询. withCount 时同时查询总数; 执行器是 Submitter 时总数在协程池中并发查询.
func (b *SelectBuilder[T]) FindPage(ctx context.Context, ex Executor, offset, limit int, withCount bool) (Page[T], error) {
	page := Page[T]{Offset: offset, Limit: limit}
	if err := b.st.consume(); err != nil {
		return page, err
	}
	if offset < 0 || limit <= 0 {
		return page, errors.Wrapf(ErrInvalidPage, "offset %d limit %d", offset, limit)
	}
	dataStmt := b.st.querySQL(offset, limit)
	if !withCount {
		rows, err := b.selectRows(ctx, ex, "find_page", dataStmt)
		page.Rows = rows
		return page, err
	}

	countStmt := b.st.countSQL()
	var (
		total    int64
		countErr error
		done     chan struct{}
	)
	if sub, ok := ex.(Submitter); ok {
		ch := make(chan struct{})
		if err := sub.Submit(func() {
			defer close(ch)
			total, countErr = b.count(ctx, ex, countStmt)
		}); err == nil {
			done = ch
		} else {
			slog.WarnContext(ctx, "submit count failed, running inline", "error", err)
		}
	}

	rows, err := b.selectRows(ctx, ex, "find_page", dataStmt)
	if done != nil {
		<-done
	} else {
		total, countErr = b.count(ctx, ex, countStmt)
	}
	if err != nil {
		return page, err
	}
	if countErr != nil {
		return page, countErr
	}
	page.Rows = rows
	page.Total = &total
	return page, nil
}

// Stream 惰性逐行读取. 游标在第一次拉取时打开, 在读完, 出错或调用方提前 break 时关闭.
// 返回的序列只能遍历一次.
func (b *SelectBuilder[T]) Stream(ctx context.Context, ex Executor) iter.Seq2[T, error] {
	consumeErr := b.st.consume()
	stmt := b.st.querySQL(0, 0)
	used := false
	return func(yield func(T, error) bool) {
		var zero T
		if consumeErr != nil {
			yield(zero, consumeErr)
			return
		}
		if used {
			yield(zero, ErrBuilderConsumed)
			return
		}
		used = true

		start := time.Now()
		rows, err := ex.QueryxContext(ctx, stmt.SQL, stmt.Args...)
		if err != nil {
			yield(zero, queryErr("stream", stmt, err))
			return
		}
		defer func() {
			_ = rows.Close()
			b.st.observe(ctx, "stream", stmt, start)
		}()

		for rows.Next() {
			var item T
			if err := scanRow(rows, &item); err != nil {
				yield(zero, queryErr("stream", stmt, err))
				return
			}
			if !yield(item, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(zero, queryErr("stream", stmt, err))
		}
	}
}

// scanRow 结构体按 db 标签映射, 其他类型 (标量, sql.Scanner, time.Time) 直接 Scan
func scanRow[T any](rows *sqlx.Rows, dest *T) error {
	if _, ok := any(dest).(sql.Scanner); !ok {
		if t := reflect.TypeFor[T](); t.Kind() == reflect.Struct && t != timeType {
			return rows.StructScan(dest)
		}
	}
	return rows.Scan(dest)
}

// Execute 执行 UPDATE, 返回影响的行数
func (b *UpdateBuilder) Execute(ctx context.Context, ex Executor) (int64, error) {
	if err := b.st.consume(); err != nil {
		return 0, err
	}
	stmt, err := b.st.updateSQL()
	if err != nil {
		return 0, err
	}
	return b.st.exec(ctx, ex, "update", stmt)
}

// Execute 执行 DELETE, 返回影响的行数
func (b *DeleteBuilder) Execute(ctx context.Context, ex Executor) (int64, error) {
	if err := b.st.consume(); err != nil {
		return 0, err
	}
	return b.st.exec(ctx, ex, "delete", b.st.deleteSQL())
}

func (s *state) exec(ctx context.Context, ex Executor, op string, stmt Statement) (int64, error) {
	start := time.Now()
	rs, err := ex.ExecContext(ctx, stmt.SQL, stmt.Args...)
	s.observe(ctx, op, stmt, start)
	if err != nil {
		return 0, queryErr(op, stmt, err)
	}
	n, err := rs.RowsAffected()
	if err != nil {
		return 0, queryErr(op, stmt, err)
	}
	return n, nil
}
