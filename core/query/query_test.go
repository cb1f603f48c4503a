package query

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/artpar/warpmodel/core/apperr"
)

func TestParseWhere(t *testing.T) {
	var w Where
	require.NoError(t, json.Unmarshal([]byte(`{
		"title": {"str": "Hello", "neq": "Hello world"},
		"author.name": {"eq": "Ann"},
		"id": {"fi": {"className": "comment", "field": "post_id", "where": {"approved": {"eq": true}}}}
	}`), &w))

	require.Len(t, w, 4)
	assert.Equal(t, Condition{Column: "author.name", Op: OpEq, Value: "Ann"}, w[0])
	assert.Equal(t, "id", w[1].Column)
	require.NotNil(t, w[1].Sub)
	assert.Equal(t, "comment", w[1].Sub.ClassName)
	assert.Equal(t, "post_id", w[1].Sub.SelectField())
	assert.Equal(t, Where{{Column: "approved", Op: OpEq, Value: true}}, w[1].Sub.Where)
	assert.Equal(t, OpNeq, w[2].Op)
	assert.Equal(t, OpStartsWith, w[3].Op)
}

func TestParseWhere_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"unknown op", `{"title": {"like": "x"}}`},
		{"bad column", `{"title; drop": {"eq": "x"}}`},
		{"not an object", `{"title": "x"}`},
		{"in needs list", `{"id": {"in": 3}}`},
		{"fie needs list", `{"id": {"fie": {"className": "x"}}}`},
		{"bad subquery class", `{"id": {"fi": {"className": "1x"}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var w Where
			err := json.Unmarshal([]byte(tt.raw), &w)
			require.Error(t, err)
			assert.Equal(t, apperr.InvalidQuery, apperr.CodeOf(err))
		})
	}
}

func TestWhere_UnmarshalYAML(t *testing.T) {
	var holder struct {
		Where Where `yaml:"where"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("where:\n  status:\n    eq: active\n"), &holder))
	assert.Equal(t, Where{{Column: "status", Op: OpEq, Value: "active"}}, holder.Where)
}

func TestParseSort(t *testing.T) {
	got, err := ParseSort("title,-created_at")
	require.NoError(t, err)
	assert.Equal(t, []Sort{{Column: "title"}, {Column: "created_at", Desc: true}}, got)

	got, err = ParseSort([]any{map[string]any{"views": float64(-1)}, "author.name"})
	require.NoError(t, err)
	assert.Equal(t, []Sort{{Column: "views", Desc: true}, {Column: "author.name"}}, got)

	_, err = ParseSort("bad column")
	assert.Equal(t, apperr.InvalidQuery, apperr.CodeOf(err))
}

func TestExcludeDeleted(t *testing.T) {
	in := Where{
		{Column: "title", Op: OpEq, Value: "x"},
		{Column: "id", Op: OpFoundIn, Sub: &Subquery{ClassName: "comment", Field: "post_id"}},
		{Column: "id", Op: OpFoundInAll, Subs: []Subquery{
			{ClassName: "like", Where: Where{
				{Column: "user_id", Op: OpFoundIn, Sub: &Subquery{ClassName: "user"}},
			}},
		}},
	}
	joins := []Join{{ClassName: "User", Alias: "author"}}

	out := ExcludeDeleted(in, "post", joins)

	require.Len(t, out, 5)
	assert.Equal(t, NotDeleted("post"), out[3])
	assert.Equal(t, NotDeleted("author"), out[4])
	assert.Equal(t, Condition{Column: "author.deleted_at", Op: OpExists, Value: false}, out[4])

	assert.Equal(t, Where{NotDeleted("comment")}, out[1].Sub.Where)

	like := out[2].Subs[0]
	require.Len(t, like.Where, 2)
	assert.Equal(t, NotDeleted("like"), like.Where[1])
	assert.Equal(t, Where{NotDeleted("user")}, like.Where[0].Sub.Where)

	// input untouched
	assert.Len(t, in, 3)
	assert.Empty(t, in[1].Sub.Where)
	assert.Len(t, in[2].Subs[0].Where, 1)
	assert.Empty(t, in[2].Subs[0].Where[0].Sub.Where)
}

func TestExcludeDeletedNested(t *testing.T) {
	in := Where{
		{Column: "active", Op: OpEq, Value: true},
		{Column: "id", Op: OpFoundIn, Sub: &Subquery{ClassName: "tag", Field: "uid"}},
	}

	out := ExcludeDeletedNested(in)

	require.Len(t, out, 2, "no condition is added for the joined table itself")
	assert.Equal(t, in[0], out[0])
	assert.Equal(t, Where{NotDeleted("tag")}, out[1].Sub.Where)
	assert.Empty(t, in[1].Sub.Where)

	assert.Nil(t, ExcludeDeletedNested(nil))
}

func TestJoin_Column(t *testing.T) {
	assert.Equal(t, "author_id", Join{Alias: "author"}.Column())
	assert.Equal(t, "writer", Join{Alias: "author", Via: "writer"}.Column())
	assert.Equal(t, "User", Join{ClassName: "User"}.Table())
	assert.Equal(t, "users", Join{ClassName: "User", Source: "users"}.Table())
	assert.Equal(t, "id", Join{}.TargetKey())
}

func TestValidColumn(t *testing.T) {
	assert.True(t, ValidColumn("name"))
	assert.True(t, ValidColumn("author.name"))
	assert.False(t, ValidColumn("a.b.c"))
	assert.False(t, ValidColumn("1abc"))
	assert.False(t, ValidColumn(""))
}
