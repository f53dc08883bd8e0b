package builder

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

const usersDDL = `CREATE TABLE users (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	email   TEXT    NOT NULL,
	org     INTEGER NULL,
	score   INTEGER NOT NULL DEFAULT 0,
	version INTEGER NOT NULL DEFAULT 1
)`

// openUsers 内存库, 单链接 (每个 :memory: 链接是独立的库)
func openUsers(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	db.MustExec(usersDDL)
	seed := []struct {
		email string
		org   any
		score int
	}{
		{"a@b.com", nil, 10},
		{"c@example.com", 1, 20},
		{"d@example.com", 1, 30},
		{"e@example.com", 2, 40},
		{"f@example.com", nil, 50},
		{"g@example.com", 2, 60},
	}
	for _, s := range seed {
		db.MustExec("INSERT INTO users (email, org, score) VALUES (?, ?, ?)", s.email, s.org, s.score)
	}
	return db
}

func TestSQLiteNullEqualityRegression(t *testing.T) {
	db := openUsers(t)
	c := userCatalog(t, SQLite)
	var none *int64

	rows, err := c.Select().
		Where(c.Field("email").Eq("a@b.com"), c.Field("org").Eq(none)).
		FindAll(context.Background(), db)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "a@b.com", rows[0].Email)
	assert.False(t, rows[0].Org.Valid)
}

func TestSQLitePagination(t *testing.T) {
	ctx := context.Background()
	db := openUsers(t)
	c := userCatalog(t, SQLite)

	page, err := c.Select().
		Where(c.Cond("with_email_domain", "%@example.com")).
		Order(c.Field("id").Asc()).
		FindPage(ctx, db, 0, 2, true)
	require.NoError(t, err)
	require.Len(t, page.Rows, 2)
	assert.Equal(t, "c@example.com", page.Rows[0].Email)
	require.NotNil(t, page.Total)
	assert.Equal(t, int64(5), *page.Total)

	page, err = c.Select().
		Where(c.Cond("with_email_domain", "%@example.com")).
		Order(c.Field("id").Asc()).
		FindPage(ctx, db, 4, 2, false)
	require.NoError(t, err)
	require.Len(t, page.Rows, 1)
	assert.Equal(t, "g@example.com", page.Rows[0].Email)
	assert.Nil(t, page.Total)
}

func TestSQLiteStreamReleasesCursor(t *testing.T) {
	db := openUsers(t)
	c := userCatalog(t, SQLite)

	n := 0
	for _, err := range c.Select().Order(c.Field("score").Desc()).Stream(context.Background(), db) {
		require.NoError(t, err)
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)

	// 只有一个链接, 游标没释放的话这里会等到超时
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	total, err := c.Select().Count(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, int64(6), total)
}

func TestSQLiteUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	db := openUsers(t)
	c := userCatalog(t, SQLite)

	n, err := c.Update().
		Set(c.Field("score").Set(99), c.Field("org").Set(3)).
		Where(c.Field("email").Eq("a@b.com")).
		Execute(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	u, ok, err := c.Select().Where(c.Field("email").Eq("a@b.com")).FindOne(ctx, db)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(99), u.Score)
	assert.Equal(t, int64(3), u.Org.Int64)
	assert.Equal(t, int64(2), u.Version)

	n, err = c.Update().Set(c.Assign("bump_score", 1)).Where(c.Field("org").In(1, 2)).Execute(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	n, err = c.Delete().Where(c.Field("org").Eq(nil)).Execute(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, ok, err = c.Select().Where(c.Field("email").Eq("f@example.com")).FindOne(ctx, db)
	require.NoError(t, err)
	assert.False(t, ok)

	sum := int64(0)
	for u, err := range c.Select().Where(c.Field("org").NotNull()).Stream(ctx, db) {
		require.NoError(t, err)
		sum += u.Score
	}
	assert.Equal(t, int64(99+21+31+41+61), sum)
}

func TestSQLiteInsert(t *testing.T) {
	ctx := context.Background()
	db := openUsers(t)
	c := userCatalog(t, SQLite)

	n, err := c.Insert(
		user{ID: 1, Email: "new@b.com", Score: 5, Version: 9},
		user{Email: "org@b.com", Org: sql.NullInt64{Int64: 4, Valid: true}, Score: 6},
	).Execute(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := c.Select().
		Where(c.Field("email").In("new@b.com", "org@b.com")).
		Order(c.Field("id").Asc()).
		FindAll(ctx, db)
	require.NoError(t, err)
	require.Len(t, got, 2)
	// 主键和版本号由数据库生成
	assert.Equal(t, int64(7), got[0].ID)
	assert.Equal(t, int64(1), got[0].Version)
	assert.False(t, got[0].Org.Valid)
	assert.Equal(t, int64(4), got[1].Org.Int64)
}
