package builder

import (
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Definitions 以 YAML 声明的实体和条件模板
//
//	entities:
//	  - name: User
//	    table: users
//	    dialect: postgres
//	    columns:
//	      - {name: id, type: int, auto: primary_key}
//	      - {name: org, type: int, optional: true}
//	    conditions:
//	      - {name: with_score_range, sql: "version BETWEEN :min$i32 AND :max$i32"}
type Definitions struct {
	Entities []EntityDef `yaml:"entities"`

	byName map[string]loaded
}

type EntityDef struct {
	Name       string        `yaml:"name"`
	Table      string        `yaml:"table"`
	Dialect    string        `yaml:"dialect"`
	Columns    []ColumnDef   `yaml:"columns"`
	Conditions []TemplateDef `yaml:"conditions"`
}

type ColumnDef struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Auto     string `yaml:"auto"`
	Optional bool   `yaml:"optional"`
}

type loaded struct {
	entity    *Entity
	templates []TemplateDef
}

// LoadDefinitions 解析 YAML 并校验全部实体和模板
func LoadDefinitions(data []byte) (*Definitions, error) {
	defs := &Definitions{}
	if err := yaml.Unmarshal(data, defs); err != nil {
		return nil, errors.Wrap(err, "parse definitions")
	}
	defs.byName = make(map[string]loaded, len(defs.Entities))
	for _, ed := range defs.Entities {
		if _, dup := defs.byName[ed.Name]; dup {
			return nil, definitionErr(ed.Name, "", ErrInvalidEntity, "entity declared more than once")
		}
		e, err := ed.build()
		if err != nil {
			return nil, err
		}
		// 提前解析一遍模板, 有错误在加载时就暴露
		if _, err := NewCatalog[struct{}](e, ed.Conditions...); err != nil {
			return nil, err
		}
		defs.byName[ed.Name] = loaded{entity: e, templates: ed.Conditions}
	}
	return defs, nil
}

func (ed EntityDef) build() (*Entity, error) {
	dialect, ok := ParseDialect(ed.Dialect)
	if !ok {
		return nil, definitionErr(ed.Name, "", ErrInvalidEntity, "unknown dialect %q", ed.Dialect)
	}
	cols := make([]Column, 0, len(ed.Columns))
	for _, cd := range ed.Columns {
		auto, ok := ParseAutoKind(cd.Auto)
		if !ok {
			return nil, definitionErr(ed.Name, "", ErrInvalidEntity, "column %s: unknown auto kind %q", cd.Name, cd.Auto)
		}
		cols = append(cols, Column{
			Name:     cd.Name,
			Type:     ParseColumnType(cd.Type),
			Auto:     auto,
			Optional: cd.Optional,
		})
	}
	return NewEntity(ed.Name, ed.Table, dialect, cols...)
}

// Entity 返回实体和它声明的模板
func (d *Definitions) Entity(name string) (*Entity, []TemplateDef, bool) {
	l, ok := d.byName[name]
	return l.entity, l.templates, ok
}

// CatalogFor 按实体名创建 Catalog
func CatalogFor[T any](d *Definitions, name string) (*Catalog[T], error) {
	e, tpls, ok := d.Entity(name)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidEntity, "entity %q not defined", name)
	}
	return NewCatalog[T](e, tpls...)
}
