package production

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/comalice/playerstate"
)

// DefaultVisualizer renders a graph, optionally highlighting one entity's active states.
type DefaultVisualizer struct{}

// ExportDOT generates Graphviz DOT source. Composites become clusters; interrupt edges
// are dashed and point from the interrupter to its target. e may be nil.
func (v *DefaultVisualizer) ExportDOT(g *playerstate.Graph, e *playerstate.Entity) string {
	var buf bytes.Buffer
	buf.WriteString(`digraph PlayerState {
  rankdir=LR;
  node [shape=box, fontsize=10, style=rounded];
  edge [fontsize=9];
`)
	active := activeStates(e)
	for _, root := range g.Roots() {
		renderState(&buf, g, root, active, "  ")
	}
	for _, edge := range collectEdges(g) {
		fmt.Fprintf(&buf, "  %q -> %q [label=%q style=dashed];\n", edge.From, edge.To, edge.Label)
	}
	buf.WriteString("}\n")
	return buf.String()
}

// NodeInfo is one template in the JSON export.
type NodeInfo struct {
	ID              playerstate.StateID `json:"id"`
	Name            string              `json:"name"`
	Kind            string              `json:"kind"`
	Parent          string              `json:"parent,omitempty"`
	Children        []string            `json:"children,omitempty"`
	Initial         string              `json:"initial,omitempty"`
	InterruptibleBy []string            `json:"interruptible_by,omitempty"`
}

// ExportJSON serializes the graph structure in pre-order.
func (v *DefaultVisualizer) ExportJSON(g *playerstate.Graph) ([]byte, error) {
	nodes := make([]NodeInfo, 0, g.Len())
	for _, id := range g.PreOrder() {
		h, err := g.Hierarchy(id)
		if err != nil {
			return nil, err
		}
		n := NodeInfo{ID: id, Name: name(g, id), Kind: g.Kind(id)}
		if h.Parent != playerstate.NoState {
			n.Parent = name(g, h.Parent)
		}
		for _, c := range h.Children {
			n.Children = append(n.Children, name(g, c))
		}
		if init := g.Initial(id); init != playerstate.NoState {
			n.Initial = name(g, init)
		}
		for _, x := range h.InterruptibleBy {
			n.InterruptibleBy = append(n.InterruptibleBy, name(g, x))
		}
		nodes = append(nodes, n)
	}
	return json.MarshalIndent(nodes, "", "  ")
}

func name(g *playerstate.Graph, id playerstate.StateID) string {
	def, err := g.Definition(id)
	if err != nil {
		return fmt.Sprintf("#%d", id)
	}
	return def.FullName()
}

func activeStates(e *playerstate.Entity) map[string]bool {
	active := make(map[string]bool)
	if e == nil {
		return active
	}
	for _, s := range e.ActiveStates() {
		active[s.FullName()] = true
	}
	return active
}

// Edge is one interrupt relation.
type Edge struct {
	From  string
	To    string
	Label string
}

func collectEdges(g *playerstate.Graph) []Edge {
	var edges []Edge
	for _, id := range g.PreOrder() {
		h, _ := g.Hierarchy(id)
		for _, x := range h.InterruptibleBy {
			edges = append(edges, Edge{From: name(g, x), To: name(g, id), Label: "interrupts"})
		}
	}
	return edges
}

func renderState(buf *bytes.Buffer, g *playerstate.Graph, id playerstate.StateID, active map[string]bool, indent string) {
	h, _ := g.Hierarchy(id)
	n := name(g, id)
	if len(h.Children) == 0 {
		style := ""
		if active[n] {
			style = " style=filled fillcolor=lightgreen"
		}
		fmt.Fprintf(buf, "%s%q [label=%q%s];\n", indent, n, n, style)
		return
	}
	fmt.Fprintf(buf, "%ssubgraph \"cluster_%s\" {\n", indent, n)
	fmt.Fprintf(buf, "%s  label=%q;\n", indent, fmt.Sprintf("%s (%s)", n, g.Kind(id)))
	if g.IsConcurrent(id) {
		fmt.Fprintf(buf, "%s  style=filled; fillcolor=lightblue;\n", indent)
	}
	parentStyle := ""
	if active[n] {
		parentStyle = " style=filled fillcolor=orange"
	}
	fmt.Fprintf(buf, "%s  %q [label=%q shape=ellipse%s];\n", indent, n, n, parentStyle)
	for _, c := range h.Children {
		renderState(buf, g, c, active, indent+"  ")
	}
	fmt.Fprintf(buf, "%s}\n", indent)
}
