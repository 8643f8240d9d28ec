package surrealql_test

import (
	"testing"

	"github.com/Chooks22/surrealism/pkg/constants"
	"github.com/Chooks22/surrealism/pkg/surrealql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexToName(t *testing.T) {
	cases := map[int]string{
		0:   "a",
		1:   "b",
		25:  "z",
		26:  "aa",
		27:  "ab",
		51:  "az",
		52:  "ba",
		701: "zz",
		702: "aaa",
	}
	for n, want := range cases {
		assert.Equal(t, want, surrealql.IndexToName(n), "n=%d", n)
	}
	assert.Empty(t, surrealql.IndexToName(-1))
}

func TestIndexToNameIsInjective(t *testing.T) {
	seen := make(map[string]int)
	for i := 0; i < 5000; i++ {
		name := surrealql.IndexToName(i)
		prev, dup := seen[name]
		require.False(t, dup, "%d and %d both map to %s", prev, i, name)
		seen[name] = i
	}
}

func TestBuild(t *testing.T) {
	q := surrealql.Build("SELECT * FROM person WHERE age > ", 18, " AND name = ", surrealql.Value("tobie"))

	sql, vars := q.Query()
	assert.Equal(t, "SELECT * FROM person WHERE age > $a AND name = $b", sql)
	assert.Equal(t, map[string]any{"a": 18, "b": "tobie"}, vars)
}

func TestBuildBindsWrappedStrings(t *testing.T) {
	input := "x; REMOVE TABLE person"

	bound := surrealql.Build("SELECT * FROM person WHERE name = ", surrealql.Value(input))
	sql, vars := bound.Query()
	assert.Equal(t, "SELECT * FROM person WHERE name = $a", sql)
	assert.Equal(t, input, vars["a"])

	inlined := surrealql.Build("SELECT * FROM person WHERE name = ", input)
	assert.Empty(t, inlined.Args)
	assert.Contains(t, inlined.String(), "REMOVE TABLE")
}

func TestNames(t *testing.T) {
	q := surrealql.Build("RETURN ", 1, ", ", 2, ", ", 3)
	assert.Equal(t, []string{"a", "b", "c"}, q.Names())
	assert.Empty(t, surrealql.Raw("RETURN 1").Names())
}

func TestBuildAdjacentValues(t *testing.T) {
	q := surrealql.Build("RETURN [", 1, 2, "]")
	require.Len(t, q.Parts, len(q.Args)+1)
	assert.Equal(t, "RETURN [$a$b]", q.String())
}

func TestTag(t *testing.T) {
	q, err := surrealql.Tag([]string{"SELECT * FROM ", " WHERE id = ", ""}, "person", 1)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM $a WHERE id = $b", q.String())

	_, err = surrealql.Tag([]string{"SELECT"}, 1)
	require.ErrorIs(t, err, constants.ErrTemplateArity)
}

func TestQueryArgs(t *testing.T) {
	q := surrealql.Build("CREATE person CONTENT ", map[string]any{"name": "tobie"}, " RETURN ", surrealql.Value("x"), 1.5, true, nil)

	sql, args, err := q.QueryArgs()
	require.NoError(t, err)
	assert.Equal(t, "CREATE person CONTENT $a RETURN $b$c$d$e", sql)
	assert.Equal(t, `{"name":"tobie"}`, args.Get("a"))
	assert.Equal(t, "x", args.Get("b"))
	assert.Equal(t, "1.5", args.Get("c"))
	assert.Equal(t, "true", args.Get("d"))
	assert.Equal(t, "null", args.Get("e"))
}

func TestScoped(t *testing.T) {
	q := surrealql.Build("SELECT * FROM person WHERE age > ", 18)
	assert.Equal(t, "SELECT * FROM person WHERE age > $xyz__a", q.Scoped("xyz"))
	assert.Equal(t, "xyz__b", surrealql.ScopedName("xyz", 1))
}

func TestRaw(t *testing.T) {
	sql, vars := surrealql.Raw("INFO FOR DB").Query()
	assert.Equal(t, "INFO FOR DB", sql)
	assert.Empty(t, vars)
}

func TestSerialize(t *testing.T) {
	var nilPtr *int
	cases := []struct {
		in   any
		want string
	}{
		{in: "plain", want: "plain"},
		{in: 42, want: "42"},
		{in: uint8(7), want: "7"},
		{in: false, want: "false"},
		{in: nilPtr, want: "null"},
		{in: []int{1, 2}, want: "[1,2]"},
		{in: struct {
			Name string `json:"name"`
		}{Name: "a"}, want: `{"name":"a"}`},
	}
	for _, tc := range cases {
		got, err := surrealql.Serialize(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}
