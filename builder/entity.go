package builder

import (
	"regexp"
	"strings"

	"github.com/duke-git/lancet/v2/slice"
	"github.com/go-openapi/inflect"
	"github.com/jmoiron/sqlx"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Dialect 目标数据库, 决定占位符形式和分页语法
type Dialect string

const (
	MySQL     Dialect = "mysql"
	Postgres  Dialect = "postgres"
	SQLite    Dialect = "sqlite"
	Oracle    Dialect = "oracle"
	SQLServer Dialect = "sqlserver"
)

// ParseDialect 接受常见的驱动名
func ParseDialect(name string) (Dialect, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mysql", "mariadb", "":
		return MySQL, true
	case "postgres", "postgresql", "pgx", "pq":
		return Postgres, true
	case "sqlite", "sqlite3":
		return SQLite, true
	case "oracle", "godror", "ora":
		return Oracle, true
	case "sqlserver", "mssql":
		return SQLServer, true
	}
	return "", false
}

// BindType 对应 sqlx.Rebind 的占位符类型
func (d Dialect) BindType() int {
	switch d {
	case Postgres:
		return sqlx.DOLLAR
	case Oracle:
		return sqlx.NAMED
	case SQLServer:
		return sqlx.AT
	default:
		return sqlx.QUESTION
	}
}

var reservedWords = []string{
	"all", "and", "as", "asc", "between", "by", "case", "check", "column", "create",
	"default", "delete", "desc", "distinct", "from", "group", "having", "in", "index",
	"insert", "into", "is", "key", "like", "limit", "not", "null", "offset", "on", "or",
	"order", "select", "set", "table", "to", "update", "user", "values", "where",
}

// Quote 只给保留字加引号, 其余标识符原样输出
func (d Dialect) Quote(ident string) string {
	if !slice.Contain(reservedWords, strings.ToLower(ident)) {
		return ident
	}
	if d == MySQL {
		return "`" + ident + "`"
	}
	return `"` + ident + `"`
}

// ColumnType 列的类型标记
type ColumnType uint8

const (
	TypeOther ColumnType = iota
	TypeString
	TypeInt
	TypeFloat
	TypeBool
	TypeTime
	TypeBytes
	TypeUUID
	TypeJSON
)

var columnTypeNames = map[ColumnType]string{
	TypeOther:  "other",
	TypeString: "string",
	TypeInt:    "int",
	TypeFloat:  "float",
	TypeBool:   "bool",
	TypeTime:   "time",
	TypeBytes:  "bytes",
	TypeUUID:   "uuid",
	TypeJSON:   "json",
}

func (t ColumnType) String() string {
	if s, ok := columnTypeNames[t]; ok {
		return s
	}
	return "other"
}

// ParseColumnType 把类型名 (列定义或 :name$Type 后缀) 映射为类型标记.
// 无法识别的名字都归为 TypeOther, 不做值检查.
func ParseColumnType(name string) ColumnType {
	n := strings.ToLower(strings.TrimSpace(name))
	switch n {
	case "string", "str", "text", "varchar", "char":
		return TypeString
	case "int", "integer", "bigint", "smallint", "tinyint",
		"i8", "i16", "i32", "i64", "u8", "u16", "u32", "u64",
		"int8", "int16", "int32", "int64", "uint", "uint8", "uint16", "uint32", "uint64":
		return TypeInt
	case "float", "double", "real", "decimal", "numeric", "f32", "f64", "float32", "float64":
		return TypeFloat
	case "bool", "boolean":
		return TypeBool
	case "time", "date", "datetime", "timestamp", "timestamptz",
		"naivedatetime", "naivedate", "offsetdatetime", "primitivedatetime":
		return TypeTime
	case "bytes", "blob", "bytea", "vec<u8>", "[]byte":
		return TypeBytes
	case "uuid":
		return TypeUUID
	case "json", "jsonb", "jsonvalue":
		return TypeJSON
	}
	return TypeOther
}

// AutoKind 系统维护的列, 不允许调用方赋值
type AutoKind uint8

const (
	AutoNone AutoKind = iota
	AutoPrimaryKey
	AutoVersion
	AutoCreatedAt
	AutoUpdatedAt
)

func ParseAutoKind(name string) (AutoKind, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return AutoNone, true
	case "pk", "primary_key", "primary", "auto_increment":
		return AutoPrimaryKey, true
	case "version":
		return AutoVersion, true
	case "created_at", "create_time":
		return AutoCreatedAt, true
	case "updated_at", "update_time":
		return AutoUpdatedAt, true
	}
	return AutoNone, false
}

type Column struct {
	Name     string
	Type     ColumnType
	Auto     AutoKind
	Optional bool
}

// Entity 表的静态描述, 创建后只读, 可在多个 goroutine 间共享
type Entity struct {
	Name    string
	Table   string
	Dialect Dialect
	Columns []Column

	index map[string]int
}

// NewEntity 校验并创建实体描述. table 为空时由 name 推导 (User -> users).
func NewEntity(name, table string, dialect Dialect, columns ...Column) (*Entity, error) {
	if !identRe.MatchString(name) {
		return nil, definitionErr(name, "", ErrInvalidEntity, "bad entity name %q", name)
	}
	if table == "" {
		table = inflect.Pluralize(inflect.Underscore(name))
	}
	if !identRe.MatchString(table) {
		return nil, definitionErr(name, "", ErrInvalidEntity, "bad table name %q", table)
	}
	if dialect == "" {
		dialect = MySQL
	}
	if len(columns) == 0 {
		return nil, definitionErr(name, "", ErrInvalidEntity, "no columns")
	}

	e := &Entity{
		Name:    name,
		Table:   table,
		Dialect: dialect,
		Columns: append([]Column(nil), columns...),
		index:   make(map[string]int, len(columns)),
	}
	seenAuto := map[AutoKind]string{}
	for i, c := range e.Columns {
		if !identRe.MatchString(c.Name) {
			return nil, definitionErr(name, "", ErrInvalidEntity, "bad column name %q", c.Name)
		}
		if _, dup := e.index[c.Name]; dup {
			return nil, definitionErr(name, "", ErrInvalidEntity, "duplicate column %q", c.Name)
		}
		if c.Auto != AutoNone && c.Auto != AutoPrimaryKey {
			if prev, ok := seenAuto[c.Auto]; ok {
				return nil, definitionErr(name, "", ErrInvalidEntity, "columns %q and %q share the same auto kind", prev, c.Name)
			}
			seenAuto[c.Auto] = c.Name
		}
		if c.Auto == AutoVersion && c.Type != TypeInt {
			return nil, definitionErr(name, "", ErrInvalidEntity, "version column %q must be int", c.Name)
		}
		e.index[c.Name] = i
	}
	return e, nil
}

// MustEntity 与 NewEntity 相同, 出错时 panic, 用于包级变量初始化
func MustEntity(name, table string, dialect Dialect, columns ...Column) *Entity {
	e, err := NewEntity(name, table, dialect, columns...)
	if err != nil {
		panic(err)
	}
	return e
}

func (e *Entity) Column(name string) (Column, bool) {
	i, ok := e.index[name]
	if !ok {
		return Column{}, false
	}
	return e.Columns[i], true
}

func (e *Entity) ColumnNames() []string {
	return slice.Map(e.Columns, func(_ int, c Column) string { return c.Name })
}

// insertColumns 插入时写入的列, 即非自动维护的列
func (e *Entity) insertColumns() []Column {
	return slice.Filter(e.Columns, func(_ int, c Column) bool { return c.Auto == AutoNone })
}

func (e *Entity) autoColumn(kind AutoKind) (Column, bool) {
	for _, c := range e.Columns {
		if c.Auto == kind {
			return c, true
		}
	}
	return Column{}, false
}

func (e *Entity) quotedTable() string {
	return e.Dialect.Quote(e.Table)
}

func (e *Entity) selectList() string {
	cols := slice.Map(e.Columns, func(_ int, c Column) string { return e.Dialect.Quote(c.Name) })
	return strings.Join(cols, ", ")
}
