package production

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comalice/playerstate"
)

// testGraph is t/Root -> {t/Idle, t/Dash}, Idle interruptible by Dash, plus a
// concurrent t/Upper -> {t/Aim}.
func testGraph(t *testing.T) *playerstate.Graph {
	t.Helper()
	b := playerstate.NewGraphBuilder("t")
	b.Machine("Root").Children("Idle", "Dash")
	b.Leaf("Idle").InterruptibleBy("Dash")
	b.Ability("Dash").Cooldown(3)
	b.Concurrent("Upper").Children("Aim")
	b.Leaf("Aim")
	r := playerstate.NewRegistry()
	require.NoError(t, b.Register(r))
	g, err := r.Build()
	require.NoError(t, err)
	return g
}

func TestExportDOT(t *testing.T) {
	g := testGraph(t)
	e, err := g.Instantiate(nil)
	require.NoError(t, err)
	e.Start()

	var v DefaultVisualizer
	dot := v.ExportDOT(g, e)
	assert.True(t, strings.HasPrefix(dot, "digraph PlayerState {"))
	assert.Contains(t, dot, `subgraph "cluster_t/Root"`)
	assert.Contains(t, dot, `"t/Idle" [label="t/Idle" style=filled fillcolor=lightgreen]`)
	assert.Contains(t, dot, `"t/Dash" [label="t/Dash"];`)
	assert.Contains(t, dot, `"t/Dash" -> "t/Idle" [label="interrupts" style=dashed]`)
	assert.Contains(t, dot, "fillcolor=lightblue")

	plain := v.ExportDOT(g, nil)
	assert.NotContains(t, plain, "lightgreen")
}

func TestExportJSON(t *testing.T) {
	var v DefaultVisualizer
	data, err := v.ExportJSON(testGraph(t))
	require.NoError(t, err)

	var nodes []NodeInfo
	require.NoError(t, json.Unmarshal(data, &nodes))
	require.Len(t, nodes, 5)
	assert.Equal(t, "t/Root", nodes[0].Name)
	assert.Equal(t, "machine", nodes[0].Kind)
	assert.Equal(t, []string{"t/Idle", "t/Dash"}, nodes[0].Children)
	assert.Equal(t, "t/Idle", nodes[0].Initial)
	assert.Equal(t, []string{"t/Dash"}, nodes[1].InterruptibleBy)
}
