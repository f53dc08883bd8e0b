package tpl

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"
	"github.com/preceeder/go.db.tpl/builder"
	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"
)

type Config struct {
	Driver      string `json:"driver" yaml:"driver"` // mysql | postgres | sqlite
	Host        string `json:"host" yaml:"host"`
	Port        string `json:"port" yaml:"port"`
	Password    string `json:"password" yaml:"password"`
	User        string `json:"user" yaml:"user"`
	Db          string `json:"db" yaml:"db"` // sqlite 时为文件路径或 :memory:
	Params      string `json:"params" yaml:"params"` // 其他配置数据, 放在链接后面的参数中
	DSN         string `json:"dsn" yaml:"dsn"`       // 设置了就直接使用, 忽略上面的字段
	MaxOpenCons int    `json:"maxOpenCons" yaml:"maxOpenCons"`
	MaxIdleCons int    `json:"maxIdleCons" yaml:"maxIdleCons"`
	PoolSize    int    `json:"poolSize" yaml:"poolSize"` // 协程池大小, 默认 16

	SlowThreshold time.Duration `json:"slowThreshold" yaml:"slowThreshold"` // 超过这个时间的语句打 warn 日志
}

// LoadConfig 从 YAML 文件读取配置
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrap(err, "parse config")
	}
	return cfg, nil
}

func (c Config) dialect() builder.Dialect {
	d, ok := builder.ParseDialect(c.Driver)
	if !ok {
		return builder.MySQL
	}
	return d
}

func (c Config) driverName() (string, error) {
	switch d, _ := builder.ParseDialect(c.Driver); d {
	case builder.MySQL:
		return "mysql", nil
	case builder.Postgres:
		return "postgres", nil
	case builder.SQLite:
		return "sqlite", nil
	}
	return "", errors.Errorf("unsupported driver %q", c.Driver)
}

func (c Config) dsn() string {
	if c.DSN != "" {
		return c.DSN
	}
	switch c.dialect() {
	case builder.Postgres:
		//dsn := "host=127.0.0.1 port=5432 user=postgres password=... dbname=db sslmode=disable"
		parts := []string{
			"host=" + c.Host,
			"port=" + c.Port,
			"user=" + c.User,
			"password=" + c.Password,
			"dbname=" + c.Db,
		}
		if c.Params != "" {
			parts = append(parts, c.Params)
		}
		return strings.Join(parts, " ")
	case builder.SQLite:
		if c.Params != "" {
			return c.Db + "?" + c.Params
		}
		return c.Db
	default:
		//dsn := "root:password@tcp(127.0.0.1:3306)/database"
		mc := mysql.NewConfig()
		mc.User = c.User
		mc.Passwd = c.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(c.Host, c.Port)
		mc.DBName = c.Db
		dsn := mc.FormatDSN()
		if c.Params != "" {
			sep := "?"
			if strings.Contains(dsn, "?") {
				sep = "&"
			}
			dsn += sep + c.Params
		}
		return dsn
	}
}

// Client 基于 *sqlx.DB 的执行器, 满足 builder.Executor 和 builder.Submitter
type Client struct {
	Config Config
	Db     *sqlx.DB
	pool   *ants.Pool
}

// NewClient 链接数据库 (内部已经 ping 了) 并创建协程池
func NewClient(cfg Config) (*Client, error) {
	driver, err := cfg.driverName()
	if err != nil {
		return nil, err
	}
	slog.Info("connect db", "driver", driver, "host", cfg.Host, "db", cfg.Db)
	db, err := sqlx.Connect(driver, cfg.dsn())
	if err != nil {
		return nil, errors.Wrapf(err, "connect %s", driver)
	}
	c, err := NewClientWithDB(db, cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

// NewClientWithDB 包装已有的链接, 例如测试中的 sqlmock
func NewClientWithDB(db *sqlx.DB, cfg Config) (*Client, error) {
	if cfg.MaxOpenCons > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenCons)
	}
	if cfg.MaxIdleCons > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleCons)
	}
	size := cfg.PoolSize
	if size <= 0 {
		size = 16
	}
	// 非阻塞: 池满时 Submit 直接返回 ErrPoolOverload, FindPage 改为同步查询总数,
	// 在池内任务中调用 FindPage 不会互相等待
	pool, err := ants.NewPool(size, ants.WithNonblocking(true), ants.WithPanicHandler(func(p any) {
		slog.Error("db pool task panic", "panic", p)
	}))
	if err != nil {
		return nil, errors.Wrap(err, "create pool")
	}
	return &Client{Config: cfg, Db: db, pool: pool}, nil
}

// Dialect 按驱动确定的方言, 用于创建实体
func (c *Client) Dialect() builder.Dialect {
	return c.Config.dialect()
}

// Submit 把任务交给协程池, 池满时返回 ants.ErrPoolOverload 而不是等待
func (c *Client) Submit(task func()) error {
	return c.pool.Submit(task)
}

func (c *Client) Close() error {
	c.pool.Release()
	if err := c.Db.Close(); err != nil {
		slog.Error("close db failed", "error", err.Error())
		return errors.Wrap(err, "close db")
	}
	slog.Info("close db", "driver", c.Config.Driver, "db", c.Config.Db)
	return nil
}

func (c *Client) trace(ctx context.Context, op, query string, args []any, start time.Time, err error) {
	trace(ctx, c.Config.SlowThreshold, op, query, args, start, err)
}

func trace(ctx context.Context, slow time.Duration, op, query string, args []any, start time.Time, err error) {
	elapsed := time.Since(start)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		slog.ErrorContext(ctx, "db "+op+" failed", "error", err, "sql", query, "data", fmt.Sprint(args))
		return
	}
	if slow > 0 && elapsed >= slow {
		slog.WarnContext(ctx, "db "+op+" slow", "sql", query, "data", fmt.Sprint(args), "elapsed", elapsed)
	}
}

func (c *Client) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	rs, err := c.Db.ExecContext(ctx, query, args...)
	c.trace(ctx, "exec", query, args, start, err)
	return rs, err
}

func (c *Client) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	start := time.Now()
	err := c.Db.SelectContext(ctx, dest, query, args...)
	c.trace(ctx, "select", query, args, start, err)
	return err
}

func (c *Client) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	start := time.Now()
	err := c.Db.GetContext(ctx, dest, query, args...)
	c.trace(ctx, "get", query, args, start, err)
	return err
}

func (c *Client) QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error) {
	start := time.Now()
	rows, err := c.Db.QueryxContext(ctx, query, args...)
	c.trace(ctx, "query", query, args, start, err)
	return rows, err
}

// Tx 事务内的执行器. 不实现 Submitter, 事务里的语句都在同一个链接上顺序执行.
type Tx struct {
	Tx   *sqlx.Tx
	slow time.Duration
}

func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	rs, err := t.Tx.ExecContext(ctx, query, args...)
	trace(ctx, t.slow, "exec", query, args, start, err)
	return rs, err
}

func (t *Tx) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	start := time.Now()
	err := t.Tx.SelectContext(ctx, dest, query, args...)
	trace(ctx, t.slow, "select", query, args, start, err)
	return err
}

func (t *Tx) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	start := time.Now()
	err := t.Tx.GetContext(ctx, dest, query, args...)
	trace(ctx, t.slow, "get", query, args, start, err)
	return err
}

func (t *Tx) QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error) {
	start := time.Now()
	rows, err := t.Tx.QueryxContext(ctx, query, args...)
	trace(ctx, t.slow, "query", query, args, start, err)
	return rows, err
}

// Transaction fn 返回错误或 panic 时回滚, 否则提交
func (c *Client) Transaction(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) (err error) {
	beginx, err := c.Db.BeginTxx(ctx, nil)
	if err != nil {
		slog.ErrorContext(ctx, "begin trans failed", "error", err.Error())
		return errors.Wrap(err, "begin transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			if rbErr := beginx.Rollback(); rbErr != nil {
				slog.ErrorContext(ctx, "rollback failed", "error", rbErr)
			}
			slog.ErrorContext(ctx, "transaction rolled back", "panic", p)
			err = errors.Errorf("transaction panic: %v", p)
		}
	}()

	if err = fn(ctx, &Tx{Tx: beginx, slow: c.Config.SlowThreshold}); err != nil {
		if rbErr := beginx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "rollback failed", "error", rbErr)
		}
		slog.ErrorContext(ctx, "transaction rolled back", "error", err)
		return err
	}
	if err = beginx.Commit(); err != nil {
		slog.ErrorContext(ctx, "commit failed", "error", err)
		return errors.Wrap(err, "commit")
	}
	return nil
}
