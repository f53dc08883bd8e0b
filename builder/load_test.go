package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const definitionsYAML = `
entities:
  - name: User
    dialect: postgres
    columns:
      - {name: id, type: i64, auto: primary_key}
      - {name: email, type: String}
      - {name: org, type: int, optional: true}
      - {name: score, type: int}
      - {name: version, type: int, auto: version}
    conditions:
      - {name: with_email_domain, sql: "email LIKE :domain$String"}
      - {name: with_score_range, sql: "score BETWEEN :min$i32 AND :max$i32"}
  - name: Tag
    table: tags
    dialect: sqlite
    columns:
      - {name: id, type: int}
      - {name: label, type: text}
`

func TestLoadDefinitions(t *testing.T) {
	defs, err := LoadDefinitions([]byte(definitionsYAML))
	require.NoError(t, err)

	e, tpls, ok := defs.Entity("User")
	require.True(t, ok)
	assert.Equal(t, "users", e.Table)
	assert.Equal(t, Postgres, e.Dialect)
	assert.Len(t, tpls, 2)
	col, ok := e.Column("org")
	require.True(t, ok)
	assert.True(t, col.Optional)

	c, err := CatalogFor[user](defs, "User")
	require.NoError(t, err)
	stmt, err := c.Select().Where(c.Cond("with_score_range", 1, 2), c.Field("org").Eq(nil)).SQL()
	require.NoError(t, err)
	assert.Equal(t, userSelect+" WHERE score BETWEEN $1 AND $2 AND org IS NULL", stmt.SQL)

	_, err = CatalogFor[user](defs, "Nope")
	assert.ErrorIs(t, err, ErrInvalidEntity)
}

func TestLoadDefinitionsErrors(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want error
	}{
		{"bad template", `
entities:
  - name: User
    columns: [{name: id, type: int}]
    conditions: [{name: c, sql: "id = :other"}]
`, ErrUnresolvedPlaceholder},
		{"duplicate condition", `
entities:
  - name: User
    columns: [{name: id, type: int}]
    conditions: [{name: c, sql: "id = :id"}, {name: c, sql: "id > :id"}]
`, ErrDuplicateConditionName},
		{"unknown dialect", `
entities:
  - name: User
    dialect: db2
    columns: [{name: id, type: int}]
`, ErrInvalidEntity},
		{"unknown auto kind", `
entities:
  - name: User
    columns: [{name: id, type: int, auto: magic}]
`, ErrInvalidEntity},
		{"duplicate entity", `
entities:
  - {name: User, columns: [{name: id, type: int}]}
  - {name: User, columns: [{name: id, type: int}]}
`, ErrInvalidEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadDefinitions([]byte(tc.yaml))
			assert.ErrorIs(t, err, tc.want)
		})
	}

	_, err := LoadDefinitions([]byte("entities: [oops"))
	assert.Error(t, err)
}
