package builder

import (
	"testing"
)

// BenchmarkSimpleQuery 单个等值条件
func BenchmarkSimpleQuery(b *testing.B) {
	c := userCatalog(b, MySQL)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = c.Select().Where(c.Field("id").Eq(1)).SQL()
	}
}

// BenchmarkComplexQuery 多条件 + 自定义模板 + 排序, postgres 需要重新编号
func BenchmarkComplexQuery(b *testing.B) {
	c := userCatalog(b, Postgres)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = c.Select().
			Where(
				c.Field("email").StartsWith("a"),
				c.Field("org").Eq(nil),
				c.Cond("with_score_range", 1, 100),
				Or(c.Field("id").In(1, 2, 3), c.Field("score").Gt(50)),
			).
			Order(c.Field("score").Desc(), c.Field("id").Asc()).
			SQL()
	}
}

// BenchmarkUpdate SET + WHERE + 版本号
func BenchmarkUpdate(b *testing.B) {
	c := userCatalog(b, Postgres)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = c.Update().
			Set(c.Field("email").Set("x@y.com"), c.Assign("bump_score", 1)).
			Where(c.Field("id").Eq(i)).
			SQL()
	}
}

// BenchmarkNewCatalog 模板解析
func BenchmarkNewCatalog(b *testing.B) {
	e := userEntity(MySQL)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = NewCatalog[user](e, userTemplates...)
	}
}
