package builder

import "time"

// SelectBuilder 查询构建器, 由 Catalog.Select 创建.
// 单一持有者使用, 不做同步; 任意终结操作之后不可再用.
type SelectBuilder[T any] struct {
	st state
}

func (b *SelectBuilder[T]) Where(conds ...Condition) *SelectBuilder[T] {
	b.st.addWhere(conds)
	return b
}

func (b *SelectBuilder[T]) Order(orders ...Order) *SelectBuilder[T] {
	b.st.addOrder(orders)
	return b
}

// DebugSlow 执行时间超过 d 的语句记一条 warn 日志
func (b *SelectBuilder[T]) DebugSlow(d time.Duration) *SelectBuilder[T] {
	b.st.slow = d
	return b
}

// Err 目前累积的第一个错误
func (b *SelectBuilder[T]) Err() error { return b.st.err }

// SQL 只组装不执行, 返回带占位符的语句和参数. 会消费构建器.
func (b *SelectBuilder[T]) SQL() (Statement, error) {
	if err := b.st.consume(); err != nil {
		return Statement{}, err
	}
	return b.st.querySQL(0, 0), nil
}

// UpdateBuilder 更新构建器, 由 Catalog.Update 创建
type UpdateBuilder struct {
	st state
}

func (b *UpdateBuilder) Set(assigns ...Assignment) *UpdateBuilder {
	b.st.addSet(assigns)
	return b
}

func (b *UpdateBuilder) Where(conds ...Condition) *UpdateBuilder {
	b.st.addWhere(conds)
	return b
}

func (b *UpdateBuilder) DebugSlow(d time.Duration) *UpdateBuilder {
	b.st.slow = d
	return b
}

func (b *UpdateBuilder) Err() error { return b.st.err }

// SQL 没有任何 SET 时返回 ErrEmptyUpdateSet
func (b *UpdateBuilder) SQL() (Statement, error) {
	if err := b.st.consume(); err != nil {
		return Statement{}, err
	}
	return b.st.updateSQL()
}

// DeleteBuilder 删除构建器, 由 Catalog.Delete 创建
type DeleteBuilder struct {
	st state
}

func (b *DeleteBuilder) Where(conds ...Condition) *DeleteBuilder {
	b.st.addWhere(conds)
	return b
}

func (b *DeleteBuilder) DebugSlow(d time.Duration) *DeleteBuilder {
	b.st.slow = d
	return b
}

func (b *DeleteBuilder) Err() error { return b.st.err }

func (b *DeleteBuilder) SQL() (Statement, error) {
	if err := b.st.consume(); err != nil {
		return Statement{}, err
	}
	return b.st.deleteSQL(), nil
}
