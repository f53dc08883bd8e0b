package tpl

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// 需要真实的 MySQL, 没有配置 MYSQL_* 环境变量时跳过
func newTestClient(t *testing.T) *Client {
	host := os.Getenv("MYSQL_HOST")
	port := os.Getenv("MYSQL_PORT")
	user := os.Getenv("MYSQL_USER")
	pass := os.Getenv("MYSQL_PASS")
	db := os.Getenv("MYSQL_DB")
	if host == "" || port == "" || user == "" || db == "" {
		t.Skip("skip: MYSQL_HOST/PORT/USER/PASS/DB not set")
	}
	cli, err := NewClient(Config{
		Driver:      "mysql",
		Host:        host,
		Port:        port,
		User:        user,
		Password:    pass,
		Db:          db,
		Params:      "parseTime=true",
		MaxIdleCons: 2,
		MaxOpenCons: 5,
	})
	require.NoError(t, err)
	return cli
}

func TestMySQLRoundTrip(t *testing.T) {
	s := newTestClient(t)
	defer s.Close()
	ctx := context.Background()

	s.Db.MustExec("DROP TABLE IF EXISTS accounts")
	s.Db.MustExec(`CREATE TABLE accounts (
		id BIGINT PRIMARY KEY AUTO_INCREMENT,
		name VARCHAR(64) NOT NULL,
		team VARCHAR(64) NULL,
		balance BIGINT NOT NULL,
		meta JSON NULL
	)`)
	defer s.Db.MustExec("DROP TABLE IF EXISTS accounts")
	c := accountCatalog(t, s.Dialect())
	n, err := c.Insert(
		account{Name: "a", Balance: 1},
		account{Name: "b", Team: sql.NullString{String: "x", Valid: true}, Balance: 2},
		account{Name: "c", Balance: 3},
	).Execute(ctx, s)
	require.NoError(t, err)
	require.Equal(t, int64(3), n)

	page, err := c.Select().Where(c.Field("team").Eq(nil)).Order(c.Field("id").Asc()).FindPage(ctx, s, 1, 1, true)
	require.NoError(t, err)
	require.Len(t, page.Rows, 1)
	require.Equal(t, "c", page.Rows[0].Name)
	require.Equal(t, int64(2), *page.Total)

	n, err = c.Delete().Where(c.Field("team").Ne(nil)).Execute(ctx, s)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}
