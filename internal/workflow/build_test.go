package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestBuild_SingleGroup(t *testing.T) {
	doc := &Document{
		Groups: []GroupSpec{
			{
				Name: "g1",
				Root: NodeSpec{Key: "F"},
				Nodes: []NodeSpec{
					{Key: "A"}, {Key: "B"}, {Key: "C"},
				},
				Edges: []EdgeSpec{
					{From: "A", To: "B"},
					{From: "B", To: "C"},
					{From: "C", To: "F"},
				},
			},
		},
	}

	groups, err := Build(doc)
	require.NoError(t, err)
	require.Contains(t, groups, "g1")
	assert.Equal(t, "F", groups["g1"].RootKey())
}

func TestBuild_Composition(t *testing.T) {
	doc := &Document{
		Groups: []GroupSpec{
			{Name: "g1", Root: NodeSpec{Key: "A"}, PostRunDependents: []string{"g3"}},
			{Name: "g2", Root: NodeSpec{Key: "B"}, DependsOn: []string{"g1"}},
			{Name: "g3", Root: NodeSpec{Key: "C"}},
		},
	}

	groups, err := Build(doc)
	require.NoError(t, err)

	proxy, ok := groups["g1"].ProxyTaskGroup()
	require.True(t, ok)
	assert.Equal(t, "proxy-A", proxy.RootKey())
}

func TestBuild_DuplicateGroupName(t *testing.T) {
	doc := &Document{
		Groups: []GroupSpec{
			{Name: "g1", Root: NodeSpec{Key: "A"}},
			{Name: "g1", Root: NodeSpec{Key: "B"}},
		},
	}

	_, err := Build(doc)
	assert.Error(t, err)
}

func TestBuild_UnknownDependency(t *testing.T) {
	doc := &Document{
		Groups: []GroupSpec{
			{Name: "g1", Root: NodeSpec{Key: "A"}, DependsOn: []string{"ghost"}},
		},
	}

	_, err := Build(doc)
	assert.Error(t, err)
}

func TestBuild_UnknownStrategy(t *testing.T) {
	doc := &Document{
		Groups: []GroupSpec{
			{Name: "g1", Root: NodeSpec{Key: "A"}, Strategy: "not-a-strategy"},
		},
	}

	_, err := Build(doc)
	assert.Error(t, err)
}

func TestBuild_InvokeRunsEndToEnd(t *testing.T) {
	defer goleak.VerifyNone(t)

	doc := &Document{
		Groups: []GroupSpec{
			{
				Name: "g1",
				Root: NodeSpec{Key: "F"},
				Nodes: []NodeSpec{
					{Key: "A", Sleep: Duration(time.Millisecond)},
				},
				Edges: []EdgeSpec{{From: "A", To: "F"}},
			},
		},
	}

	groups, err := Build(doc)
	require.NoError(t, err)

	inv, err := groups["g1"].InvokeAsync(context.Background())
	require.NoError(t, err)

	seen := map[string]bool{}
	for e := range inv.Results {
		assert.NoError(t, e.Err)
		seen[e.Key] = true
	}
	assert.NoError(t, inv.Wait())
	assert.True(t, seen["A"])
	assert.True(t, seen["F"])
}
