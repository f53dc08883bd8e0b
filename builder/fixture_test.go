package builder

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
)

type user struct {
	ID      int64         `db:"id"`
	Email   string        `db:"email"`
	Org     sql.NullInt64 `db:"org"`
	Score   int64         `db:"score"`
	Version int64         `db:"version"`
}

var userColumns = []string{"id", "email", "org", "score", "version"}

var userTemplates = []TemplateDef{
	Tpl("with_email_domain", "email LIKE :domain$String"),
	Tpl("with_score_range", "score BETWEEN :min$i32 AND :max$i32"),
	Tpl("email_or_blank", "(email = :email OR :email = '')"),
	Tpl("bump_score", "score = score + :delta$i64"),
}

func userEntity(d Dialect) *Entity {
	return MustEntity("User", "users", d,
		Column{Name: "id", Type: TypeInt, Auto: AutoPrimaryKey},
		Column{Name: "email", Type: TypeString},
		Column{Name: "org", Type: TypeInt, Optional: true},
		Column{Name: "score", Type: TypeInt},
		Column{Name: "version", Type: TypeInt, Auto: AutoVersion},
	)
}

// docEntity blob 可空, body 不可空
func docEntity(d Dialect) *Entity {
	return MustEntity("Doc", "", d,
		Column{Name: "id", Type: TypeInt, Auto: AutoPrimaryKey},
		Column{Name: "blob", Type: TypeBytes, Optional: true},
		Column{Name: "body", Type: TypeBytes},
	)
}

func userCatalog(t testing.TB, d Dialect) *Catalog[user] {
	t.Helper()
	c, err := NewCatalog[user](userEntity(d), userTemplates...)
	require.NoError(t, err)
	return c
}
