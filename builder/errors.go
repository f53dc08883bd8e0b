package builder

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// 定义阶段的错误: 实体/条件模板不合法, 对应的 Catalog 不会被创建
var (
	ErrUnresolvedPlaceholder  = errors.New("unresolved placeholder")
	ErrInvalidColumnReference = errors.New("invalid column reference")
	ErrDuplicateConditionName = errors.New("duplicate condition name")
	ErrTypeMismatch           = errors.New("placeholder type mismatch")
	ErrInvalidTemplate        = errors.New("invalid condition template")
	ErrInvalidEntity          = errors.New("invalid entity")
)

// 调用阶段的错误, 在终结操作时返回
var (
	ErrEmptyUpdateSet    = errors.New("update without assignments")
	ErrBuilderConsumed   = errors.New("builder already consumed")
	ErrUnknownColumn     = errors.New("unknown column")
	ErrUnknownCondition  = errors.New("unknown condition")
	ErrNotAssignment     = errors.New("condition is not an assignment")
	ErrArity             = errors.New("wrong number of arguments")
	ErrArgumentType      = errors.New("argument does not match column type")
	ErrAutoManagedColumn = errors.New("column is managed automatically")
	ErrNullOperand       = errors.New("absent value in ordering comparison")
	ErrForeignCondition  = errors.New("expression belongs to another entity")
	ErrInvalidPage       = errors.New("invalid page bounds")
	ErrEmptyInsert       = errors.New("insert without rows")
)

// DefinitionError 描述实体或条件模板定义上的错误.
// errors.Is(err, ErrTypeMismatch) 之类的判断通过 Kind 完成.
type DefinitionError struct {
	Entity    string
	Condition string
	Kind      error
	Detail    string
}

func (e *DefinitionError) Error() string {
	var sb strings.Builder
	sb.WriteString("builder: ")
	sb.WriteString(e.Entity)
	if e.Condition != "" {
		sb.WriteString(".")
		sb.WriteString(e.Condition)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Kind.Error())
	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}
	return sb.String()
}

func (e *DefinitionError) Unwrap() error { return e.Kind }

func definitionErr(entity, cond string, kind error, format string, args ...any) error {
	return errors.WithStack(&DefinitionError{
		Entity:    entity,
		Condition: cond,
		Kind:      kind,
		Detail:    fmt.Sprintf(format, args...),
	})
}

// QueryError 执行器返回的错误, 原样保留在 Err 中
type QueryError struct {
	Op  string
	SQL string
	Err error
}

func (e *QueryError) Error() string {
	return "builder: " + e.Op + ": " + e.Err.Error()
}

func (e *QueryError) Unwrap() error { return e.Err }
