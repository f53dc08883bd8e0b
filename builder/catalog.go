package builder

import (
	"github.com/pkg/errors"
)

// Catalog 一个实体的条件目录: 每列的固定操作 + 自定义条件模板.
// 创建时完成全部校验, 之后只读, 可并发共享. T 为查询结果映射的行类型.
type Catalog[T any] struct {
	entity    *Entity
	fields    map[string]Fd
	templates map[string]*Template
	names     []string
}

// NewCatalog 解析全部模板; 任意一个失败则不返回 Catalog
func NewCatalog[T any](e *Entity, defs ...TemplateDef) (*Catalog[T], error) {
	if e == nil {
		return nil, errors.Wrap(ErrInvalidEntity, "nil entity")
	}
	c := &Catalog[T]{
		entity:    e,
		fields:    make(map[string]Fd, len(e.Columns)),
		templates: make(map[string]*Template, len(defs)),
	}
	for _, col := range e.Columns {
		c.fields[col.Name] = newField(e, col)
	}
	for _, def := range defs {
		if _, dup := c.templates[def.Name]; dup {
			return nil, definitionErr(e.Name, def.Name, ErrDuplicateConditionName, "declared more than once")
		}
		t, err := ParseTemplate(e, def)
		if err != nil {
			return nil, err
		}
		c.templates[def.Name] = t
		c.names = append(c.names, def.Name)
	}
	return c, nil
}

// MustCatalog 与 NewCatalog 相同, 出错时 panic
func MustCatalog[T any](e *Entity, defs ...TemplateDef) *Catalog[T] {
	c, err := NewCatalog[T](e, defs...)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog[T]) Entity() *Entity { return c.entity }

// Templates 按声明顺序返回自定义条件
func (c *Catalog[T]) Templates() []*Template {
	out := make([]*Template, 0, len(c.names))
	for _, n := range c.names {
		out = append(out, c.templates[n])
	}
	return out
}

func (c *Catalog[T]) Template(name string) (*Template, bool) {
	t, ok := c.templates[name]
	return t, ok
}

// Field 获取列; 列不存在时返回的 Fd 携带 ErrUnknownColumn
func (c *Catalog[T]) Field(name string) Fd {
	if f, ok := c.fields[name]; ok {
		return f
	}
	return unknownField(c.entity, name)
}

// Cond 使用自定义条件作为谓词, args 按占位符首次出现的顺序传入
func (c *Catalog[T]) Cond(name string, args ...any) Condition {
	t, ok := c.templates[name]
	if !ok {
		return failCondition(c.entity, errors.Wrapf(ErrUnknownCondition, "%s.%s", c.entity.Name, name))
	}
	bound, err := t.bind(args)
	if err != nil {
		return failCondition(c.entity, err)
	}
	return newCondition(c.entity, t.text, bound...)
}

// Assign 使用自定义条件作为 SET 项, 如 "score = score + :delta$i64".
// 模板必须以 col = 开头, 且 col 不是自动维护的列.
func (c *Catalog[T]) Assign(name string, args ...any) Assignment {
	t, ok := c.templates[name]
	if !ok {
		return failAssignment(c.entity, errors.Wrapf(ErrUnknownCondition, "%s.%s", c.entity.Name, name))
	}
	target, ok := t.Target()
	if !ok {
		return failAssignment(c.entity, errors.Wrapf(ErrNotAssignment, "%s.%s", c.entity.Name, name))
	}
	if col, _ := c.entity.Column(target); col.Auto != AutoNone {
		return failAssignment(c.entity, errors.Wrapf(ErrAutoManagedColumn, "%s.%s sets column %s", c.entity.Name, name, target))
	}
	bound, err := t.bind(args)
	if err != nil {
		return failAssignment(c.entity, err)
	}
	return newAssignment(c.entity, t.text, bound...)
}

func (c *Catalog[T]) Select() *SelectBuilder[T] {
	return &SelectBuilder[T]{st: newState(c.entity, kindSelect)}
}

func (c *Catalog[T]) Update() *UpdateBuilder {
	return &UpdateBuilder{st: newState(c.entity, kindUpdate)}
}

func (c *Catalog[T]) Delete() *DeleteBuilder {
	return &DeleteBuilder{st: newState(c.entity, kindDelete)}
}
