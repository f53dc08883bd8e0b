package builder

// Expr 带参数的 SQL 片段. 参数都以 ? 表示, 组装时再按方言改写.
type Expr interface {
	String() string
	Values() []any
	Err() error
}

type fragment struct {
	sql  string
	args []any
}

type expr struct {
	entity *Entity
	frag   fragment
	err    error
}

func (x expr) String() string { return x.frag.sql }
func (x expr) Values() []any  { return x.frag.args }
func (x expr) Err() error     { return x.err }

// Condition WHERE 中的一个谓词
type Condition struct{ expr }

// Assignment UPDATE SET 中的一项
type Assignment struct{ expr }

// Order ORDER BY 中的一项
type Order struct{ expr }

// Predicated 可以追加 WHERE 条件的构建器
type Predicated[B any] interface {
	Where(conds ...Condition) B
}

// Assignable 可以追加 SET 的构建器, 只有 UPDATE
type Assignable[B any] interface {
	Set(assigns ...Assignment) B
}

// Orderable 可以追加 ORDER BY 的构建器, 只有 SELECT
type Orderable[B any] interface {
	Order(orders ...Order) B
}

var (
	_ Predicated[*SelectBuilder[struct{}]] = (*SelectBuilder[struct{}])(nil)
	_ Orderable[*SelectBuilder[struct{}]]  = (*SelectBuilder[struct{}])(nil)
	_ Predicated[*UpdateBuilder]           = (*UpdateBuilder)(nil)
	_ Assignable[*UpdateBuilder]           = (*UpdateBuilder)(nil)
	_ Predicated[*DeleteBuilder]           = (*DeleteBuilder)(nil)
)
