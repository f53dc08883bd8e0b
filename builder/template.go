package builder

import (
	"bytes"
	"strings"

	"github.com/pkg/errors"
)

// TemplateDef 一个自定义条件的声明: name = "fragment with :placeholder"
type TemplateDef struct {
	Name string `yaml:"name" json:"name"`
	SQL  string `yaml:"sql" json:"sql"`
}

// Tpl 构造 TemplateDef
func Tpl(name, sql string) TemplateDef {
	return TemplateDef{Name: name, SQL: sql}
}

// Placeholder 模板中的一个参数槽位; 同名的多次出现共用一个槽位
type Placeholder struct {
	Name     string
	Type     ColumnType
	TypeName string // :name$Type 中显式写的类型, 自动映射时为空
	Auto     bool   // 类型来自同名列
}

// Template 解析后的条件模板, 创建后只读
type Template struct {
	Name         string
	Raw          string
	Placeholders []Placeholder

	text   string // 每个出现位置替换为 ?
	slots  []int  // 第 i 个 ? 对应的 Placeholders 下标
	target string // 形如 col = ... 时的列名, 只有这种模板能用作 SET
}

// Text 编译后的片段, 参数以 ? 表示
func (t *Template) Text() string { return t.text }

// Arity 调用时需要的参数个数 (不同占位符的个数)
func (t *Template) Arity() int { return len(t.Placeholders) }

// Target 赋值模板的目标列; 不是赋值形式时 ok 为 false
func (t *Template) Target() (col string, ok bool) { return t.target, t.target != "" }

type occurrence struct {
	name     string
	typeName string
}

// ParseTemplate 解析并校验一个条件模板.
//
// 占位符形式为 :ident 或 :ident$Type. 单引号/双引号/反引号内的内容不扫描,
// MySQL 下引号内的 \ 是转义符. :: 视为类型转换.
// 不允许出现 ? 和 alias.column ("u".c, u . c) 形式的限定列名.
func ParseTemplate(e *Entity, def TemplateDef) (*Template, error) {
	name, raw := def.Name, def.SQL
	if !identRe.MatchString(name) {
		return nil, definitionErr(e.Name, name, ErrInvalidTemplate, "bad condition name")
	}
	if strings.TrimSpace(raw) == "" {
		return nil, definitionErr(e.Name, name, ErrInvalidTemplate, "empty template")
	}
	if strings.IndexByte(raw, '?') >= 0 {
		return nil, definitionErr(e.Name, name, ErrInvalidTemplate, "positional '?' is not allowed, use :name")
	}

	var (
		bf        bytes.Buffer
		occs      []occurrence
		n         = len(raw)
		depth     int
		topComma  bool
		backslash = e.Dialect == MySQL
	)
	for i := 0; i < n; {
		c := raw[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			j := skipQuoted(raw, i, backslash && c != '`')
			if j < 0 {
				return nil, definitionErr(e.Name, name, ErrInvalidTemplate, "unterminated quote at %d", i)
			}
			if c != '\'' {
				if k, ok := qualifier(raw, j, backslash); ok {
					return nil, definitionErr(e.Name, name, ErrInvalidColumnReference, "qualified reference %q", raw[i:k])
				}
			}
			bf.WriteString(raw[i:j])
			i = j
		case c == ':':
			if i+1 < n && raw[i+1] == ':' {
				bf.WriteString("::")
				i += 2
				continue
			}
			if i+1 >= n || !isIdentStart(raw[i+1]) {
				bf.WriteByte(c)
				i++
				continue
			}
			j := scanIdent(raw, i+1)
			occ := occurrence{name: raw[i+1 : j]}
			if j < n && raw[j] == '$' {
				k := scanTypeName(raw, j+1)
				if k == j+1 {
					return nil, definitionErr(e.Name, name, ErrInvalidTemplate, "empty type after :%s$", occ.name)
				}
				occ.typeName = raw[j+1 : k]
				j = k
			}
			occs = append(occs, occ)
			bf.WriteByte('?')
			i = j
		case isIdentStart(c):
			j := scanIdent(raw, i)
			if k, ok := qualifier(raw, j, backslash); ok {
				return nil, definitionErr(e.Name, name, ErrInvalidColumnReference, "qualified reference %q", raw[i:k])
			}
			bf.WriteString(raw[i:j])
			i = j
		case isDigit(c):
			// 数字后面的 . 是小数点, 不当作限定名
			j := i
			for j < n && (isIdentPart(raw[j]) || raw[j] == '.') {
				j++
			}
			bf.WriteString(raw[i:j])
			i = j
		default:
			switch c {
			case '(':
				depth++
			case ')':
				depth--
			case ',':
				topComma = topComma || depth == 0
			}
			bf.WriteByte(c)
			i++
		}
	}

	t := &Template{Name: name, Raw: raw, text: bf.String()}
	if err := t.resolve(e, occs); err != nil {
		return nil, err
	}
	if !topComma {
		t.target = assignTarget(e, raw)
	}
	return t, nil
}

// assignTarget 模板以 col = 开头且 col 是实体的列时返回列名.
// 自动维护的列也返回, 由 Assign 拒绝.
func assignTarget(e *Entity, raw string) string {
	s := strings.TrimSpace(raw)
	var col string
	switch {
	case s == "":
		return ""
	case s[0] == '"' || s[0] == '`':
		j := strings.IndexByte(s[1:], s[0])
		if j < 0 {
			return ""
		}
		col, s = s[1:j+1], s[j+2:]
	case isIdentStart(s[0]):
		j := scanIdent(s, 0)
		col, s = s[:j], s[j:]
	default:
		return ""
	}
	s = strings.TrimLeft(s, " \t\r\n")
	if len(s) < 2 || s[0] != '=' || s[1] == '=' {
		return ""
	}
	if _, ok := e.Column(col); !ok {
		return ""
	}
	return col
}

// resolve 按首次出现的顺序确定槽位和类型
func (t *Template) resolve(e *Entity, occs []occurrence) error {
	index := map[string]int{}
	declared := map[string]string{}
	for _, o := range occs {
		if o.typeName == "" {
			continue
		}
		if prev, ok := declared[o.name]; ok && ParseColumnType(prev) != ParseColumnType(o.typeName) {
			return definitionErr(e.Name, t.Name, ErrTypeMismatch, ":%s declared as both %s and %s", o.name, prev, o.typeName)
		}
		if _, ok := declared[o.name]; !ok {
			declared[o.name] = o.typeName
		}
	}

	for _, o := range occs {
		if idx, ok := index[o.name]; ok {
			t.slots = append(t.slots, idx)
			continue
		}
		col, hasCol := e.Column(o.name)
		p := Placeholder{Name: o.name}
		if typeName, ok := declared[o.name]; ok {
			p.Type = ParseColumnType(typeName)
			p.TypeName = typeName
			if hasCol && p.Type != TypeOther && col.Type != TypeOther && p.Type != col.Type {
				return definitionErr(e.Name, t.Name, ErrTypeMismatch,
					":%s$%s conflicts with column %s (%s)", o.name, typeName, col.Name, col.Type)
			}
		} else {
			if !hasCol {
				return definitionErr(e.Name, t.Name, ErrUnresolvedPlaceholder,
					":%s has no type and no column of that name", o.name)
			}
			p.Type = col.Type
			p.Auto = true
		}
		index[o.name] = len(t.Placeholders)
		t.slots = append(t.slots, len(t.Placeholders))
		t.Placeholders = append(t.Placeholders, p)
	}
	return nil
}

// bind 校验调用参数并按出现顺序展开 (重复的占位符重复绑定同一个值)
func (t *Template) bind(args []any) ([]any, error) {
	if len(args) != len(t.Placeholders) {
		return nil, errors.Wrapf(ErrArity, "%s takes %d argument(s), got %d", t.Name, len(t.Placeholders), len(args))
	}
	for i, p := range t.Placeholders {
		if isAbsent(args[i]) {
			continue
		}
		if err := checkValue(p.Type, args[i]); err != nil {
			return nil, errors.Wrapf(err, "%s :%s", t.Name, p.Name)
		}
	}
	out := make([]any, len(t.slots))
	for k, idx := range t.slots {
		out[k] = args[idx]
	}
	return out, nil
}

// skipQuoted 返回引号结束后的位置, 未闭合时为 -1. 连写两个引号是转义.
func skipQuoted(s string, i int, backslash bool) int {
	q := s[i]
	for j := i + 1; j < len(s); j++ {
		if backslash && s[j] == '\\' {
			j++
			continue
		}
		if s[j] != q {
			continue
		}
		if j+1 < len(s) && s[j+1] == q {
			j++
			continue
		}
		return j + 1
	}
	return -1
}

// qualifier 从 j 开始 (允许空白) 是否跟着 .ident 或 ."ident", 返回限定名的结束位置
func qualifier(s string, j int, backslash bool) (int, bool) {
	k := skipSpace(s, j)
	if k >= len(s) || s[k] != '.' {
		return 0, false
	}
	k = skipSpace(s, k+1)
	switch {
	case k >= len(s):
		return 0, false
	case isIdentStart(s[k]):
		return scanIdent(s, k), true
	case s[k] == '"' || s[k] == '`':
		if end := skipQuoted(s, k, backslash && s[k] == '"'); end > 0 {
			return end, true
		}
		return len(s), true
	}
	return 0, false
}

func skipSpace(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\r' || s[i] == '\n') {
		i++
	}
	return i
}

func scanIdent(s string, i int) int {
	for i < len(s) && isIdentPart(s[i]) {
		i++
	}
	return i
}

// scanTypeName 类型名允许带一层尖括号, 如 Vec<u8>
func scanTypeName(s string, i int) int {
	j := scanIdent(s, i)
	if j > i && j < len(s) && s[j] == '<' {
		if k := strings.IndexByte(s[j:], '>'); k > 0 {
			return j + k + 1
		}
	}
	return j
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
