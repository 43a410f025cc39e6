package cypher

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseflow/caseflow/internal/types"
)

func TestBuilder_CompileBusinessKeyLookup(t *testing.T) {
	compiled, err := New().
		Match("o", "Order", map[string]any{"businessKey": "BK-1"}).
		Return("o").
		One()
	require.NoError(t, err)

	assert.Equal(t, "MATCH (o:Order {businessKey: $p0})\nRETURN o", compiled.Text)
	assert.Equal(t, map[string]any{"p0": "BK-1"}, compiled.Params)
	assert.Equal(t, CardinalityOne, compiled.Cardinality)
}

func TestBuilder_CompileIsDeterministic(t *testing.T) {
	build := func() Builder {
		return New().
			Match("p", "ProcessInstance", map[string]any{
				"businessKey": "BK-7",
				"state":       "active",
				"version":     int64(3),
			}).
			Match("u", "User", map[string]any{"login": "m.santos"}).
			Relate("p", "ASSIGNED_TO", "u", DirectionOut).
			Where("p", "createdAt", OpGt, "2026-01-01T00:00:00Z").
			Return("p", "u")
	}

	first, err := build().All()
	require.NoError(t, err)

	// Repeated compilation of equal builder state is byte-identical.
	for i := 0; i < 20; i++ {
		again, err := build().All()
		require.NoError(t, err)
		assert.Equal(t, first.Text, again.Text)
		assert.Equal(t, first.Params, again.Params)
	}
}

func TestBuilder_HostileValuesNeverReachQueryText(t *testing.T) {
	hostile := []string{
		`"; MATCH (n) DETACH DELETE n; //`,
		`' OR '1'='1`,
		"}) DETACH DELETE (x:{",
		"Robert'); DROP TABLE students;--",
	}

	for _, value := range hostile {
		compiled, err := New().
			Match("p", "ProcessInstance", map[string]any{"businessKey": value}).
			Where("p", "state", OpEq, value).
			Return("p").
			All()
		require.NoError(t, err)

		assert.NotContains(t, compiled.Text, value,
			"caller value must never be interpolated into query text")

		// The value is carried only by the parameter map.
		found := 0
		for _, param := range compiled.Params {
			if param == value {
				found++
			}
		}
		assert.Equal(t, 2, found)
	}
}

func TestBuilder_FluentCallsDoNotMutateBase(t *testing.T) {
	base := New().Match("p", "ProcessInstance", nil)

	a := base.Where("p", "state", OpEq, "active").Return("p")
	b := base.Where("p", "state", OpEq, "completed").Return("p")

	compiledA, err := a.All()
	require.NoError(t, err)
	compiledB, err := b.All()
	require.NoError(t, err)

	assert.Equal(t, "active", compiledA.Params["p0"])
	assert.Equal(t, "completed", compiledB.Params["p0"])

	// Base stays usable and unextended.
	compiledBase, err := base.Return("p").All()
	require.NoError(t, err)
	assert.Equal(t, "MATCH (p:ProcessInstance)\nRETURN p", compiledBase.Text)
}

func TestBuilder_ReturnLastWriteWins(t *testing.T) {
	compiled, err := New().
		Match("p", "ProcessInstance", nil).
		Match("u", "User", nil).
		Return("p").
		Return("u").
		All()
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(compiled.Text, "RETURN u"))
	assert.NotContains(t, compiled.Text, "RETURN p")
}

func TestBuilder_ReturnProperties(t *testing.T) {
	compiled, err := New().
		Match("p", "ProcessInstance", nil).
		ReturnProperties("p").
		One()
	require.NoError(t, err)

	assert.Equal(t, "MATCH (p:ProcessInstance)\nRETURN properties(p) AS p", compiled.Text)
}

func TestBuilder_RelationshipDirections(t *testing.T) {
	tests := []struct {
		name      string
		direction Direction
		want      string
	}{
		{"out", DirectionOut, "MATCH (p)-[:HAS_TASK]->(t)"},
		{"in", DirectionIn, "MATCH (p)<-[:HAS_TASK]-(t)"},
		{"both", DirectionBoth, "MATCH (p)-[:HAS_TASK]-(t)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compiled, err := New().
				Match("p", "ProcessInstance", nil).
				Match("t", "Task", nil).
				Relate("p", "HAS_TASK", "t", tt.direction).
				Return("t").
				All()
			require.NoError(t, err)
			assert.Contains(t, compiled.Text, tt.want)
		})
	}
}

func TestBuilder_WritePatterns(t *testing.T) {
	compiled, err := New().
		Create("p", "ProcessInstance", map[string]any{"businessKey": "BK-9", "state": "active"}).
		ReturnProperties("p").
		One()
	require.NoError(t, err)

	assert.Equal(t,
		"CREATE (p:ProcessInstance {businessKey: $p0, state: $p1})\nRETURN properties(p) AS p",
		compiled.Text)
	assert.Equal(t, map[string]any{"p0": "BK-9", "p1": "active"}, compiled.Params)
}

func TestBuilder_SetAndDelete(t *testing.T) {
	compiled, err := New().
		Match("p", "ProcessInstance", map[string]any{"id": "x"}).
		Set("p", map[string]any{"state": "suspended"}).
		ReturnProperties("p").
		One()
	require.NoError(t, err)
	assert.Equal(t,
		"MATCH (p:ProcessInstance {id: $p0})\nSET p.state = $p1\nRETURN properties(p) AS p",
		compiled.Text)

	deleted, err := New().
		Match("p", "ProcessInstance", map[string]any{"id": "x"}).
		Delete("p").
		All()
	require.NoError(t, err)
	assert.Equal(t, "MATCH (p:ProcessInstance {id: $p0})\nDETACH DELETE p", deleted.Text)
}

func TestBuilder_MergeOnCreate(t *testing.T) {
	compiled, err := New().
		Merge("u", "User", map[string]any{"login": "m.santos"}).
		OnCreateSet("u", map[string]any{"id": "abc", "displayName": "M. Santos"}).
		ReturnProperties("u").
		One()
	require.NoError(t, err)

	assert.Equal(t,
		"MERGE (u:User {login: $p0})\nON CREATE SET u.displayName = $p1, u.id = $p2\nRETURN properties(u) AS u",
		compiled.Text)
	assert.Equal(t, map[string]any{
		"p0": "m.santos",
		"p1": "M. Santos",
		"p2": "abc",
	}, compiled.Params)
}

func TestBuilder_MergeWithoutOnCreate(t *testing.T) {
	// MERGE is a write clause, so a projection is optional.
	compiled, err := New().
		Merge("u", "User", map[string]any{"login": "j.doe"}).
		All()
	require.NoError(t, err)
	assert.Equal(t, "MERGE (u:User {login: $p0})", compiled.Text)
}

func TestBuilder_CreateRel(t *testing.T) {
	compiled, err := New().
		Match("p", "ProcessInstance", map[string]any{"id": "a"}).
		Match("u", "User", map[string]any{"id": "b"}).
		CreateRel("p", "ASSIGNED_TO", "u").
		Return("p").
		One()
	require.NoError(t, err)
	assert.Contains(t, compiled.Text, "CREATE (p)-[:ASSIGNED_TO]->(u)")
}

func TestBuilder_OrderByAndLimit(t *testing.T) {
	compiled, err := New().
		Match("p", "ProcessInstance", nil).
		Return("p").
		OrderBy("p", "createdAt", true).
		Limit(10).
		All()
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(compiled.Text, "ORDER BY p.createdAt DESC\nLIMIT 10"))
}

func TestBuilder_CompileErrors(t *testing.T) {
	tests := []struct {
		name    string
		builder Builder
	}{
		{
			name:    "no clauses",
			builder: New(),
		},
		{
			name: "duplicate variable",
			builder: New().
				Match("p", "ProcessInstance", nil).
				Match("p", "Task", nil).
				Return("p"),
		},
		{
			name: "relationship endpoint not declared",
			builder: New().
				Match("p", "ProcessInstance", nil).
				Relate("p", "HAS_TASK", "t", DirectionOut).
				Return("p"),
		},
		{
			name: "relationship endpoint declared later",
			builder: New().
				Match("p", "ProcessInstance", nil).
				Relate("p", "HAS_TASK", "t", DirectionOut).
				Match("t", "Task", nil).
				Return("t"),
		},
		{
			name: "predicate on undeclared variable",
			builder: New().
				Match("p", "ProcessInstance", nil).
				Where("q", "state", OpEq, "active").
				Return("p"),
		},
		{
			name: "projection of undeclared variable",
			builder: New().
				Match("p", "ProcessInstance", nil).
				Return("q"),
		},
		{
			name: "read query without projection",
			builder: New().
				Match("p", "ProcessInstance", nil),
		},
		{
			name: "invalid variable identifier",
			builder: New().
				Match("p; DETACH DELETE n", "ProcessInstance", nil).
				Return("p"),
		},
		{
			name: "invalid label identifier",
			builder: New().
				Match("p", "Process Instance", nil).
				Return("p"),
		},
		{
			name: "invalid property name",
			builder: New().
				Match("p", "ProcessInstance", map[string]any{"bad key": 1}).
				Return("p"),
		},
		{
			name: "unknown operator",
			builder: New().
				Match("p", "ProcessInstance", nil).
				Where("p", "state", Op("=~"), "active").
				Return("p"),
		},
		{
			name: "set on undeclared variable",
			builder: New().
				Match("p", "ProcessInstance", nil).
				Set("q", map[string]any{"state": "done"}),
		},
		{
			name: "empty set",
			builder: New().
				Match("p", "ProcessInstance", nil).
				Set("p", nil),
		},
		{
			name: "delete of undeclared variable",
			builder: New().
				Match("p", "ProcessInstance", nil).
				Delete("q"),
		},
		{
			name: "on create set without merge",
			builder: New().
				Match("u", "User", nil).
				OnCreateSet("u", map[string]any{"id": "x"}).
				Return("u"),
		},
		{
			name: "on create set for a different variable",
			builder: New().
				Merge("u", "User", map[string]any{"login": "x"}).
				Match("p", "ProcessInstance", nil).
				OnCreateSet("p", map[string]any{"id": "x"}).
				Return("u"),
		},
		{
			name: "empty on create set",
			builder: New().
				Merge("u", "User", map[string]any{"login": "x"}).
				OnCreateSet("u", nil),
		},
		{
			name: "merge duplicate variable",
			builder: New().
				Match("u", "User", nil).
				Merge("u", "User", map[string]any{"login": "x"}).
				Return("u"),
		},
		{
			name: "negative limit",
			builder: New().
				Match("p", "ProcessInstance", nil).
				Return("p").
				Limit(-1),
		},
		{
			name: "order by undeclared variable",
			builder: New().
				Match("p", "ProcessInstance", nil).
				Return("p").
				OrderBy("q", "createdAt", false),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.builder.All()
			require.Error(t, err)
			assert.Equal(t, types.QUERY_BUILDER_INVALID, types.CodeOf(err))
		})
	}
}

func TestBuilder_ChainingDoesNotFailEarly(t *testing.T) {
	// Construction is side-effect free: the invalid duplicate only surfaces
	// at compile time.
	b := New().
		Match("p", "ProcessInstance", nil).
		Match("p", "Task", nil)

	_, err := b.Return("p").One()
	require.Error(t, err)
	assert.Equal(t, types.QUERY_BUILDER_INVALID, types.CodeOf(err))
}

func TestBuilder_WhereOperators(t *testing.T) {
	compiled, err := New().
		Match("t", "Task", nil).
		Where("t", "priority", OpGte, int64(5)).
		Where("t", "name", OpStartsWith, "review").
		Return("t").
		All()
	require.NoError(t, err)

	assert.Contains(t, compiled.Text, "WHERE t.priority >= $p0 AND t.name STARTS WITH $p1")
	assert.Equal(t, int64(5), compiled.Params["p0"])
	assert.Equal(t, "review", compiled.Params["p1"])
}
