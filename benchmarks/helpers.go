// Package benchmarks provides shared helpers for benchmark tests.
package benchmarks

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/comalice/playerstate"
	"github.com/comalice/playerstate/examples/player"
)

// leafName returns the name of leaf i.
func leafName(i int) string { return fmt.Sprintf("s%d", i) }

// GenFlatGraph creates a machine with n leaves; leaf i is interruptible by leaf i+1, so
// interrupts cycle through every leaf.
func GenFlatGraph(n int) (*playerstate.Graph, error) {
	if n < 2 {
		n = 2
	}
	b := playerstate.NewGraphBuilder("flat")
	names := make([]string, n)
	for i := range names {
		names[i] = leafName(i)
	}
	b.Machine("Root").Children(names...)
	for i := 0; i < n; i++ {
		b.Leaf(names[i]).
			InterruptibleBy(names[(i+1)%n]).
			Interrupt(func(_, _ playerstate.State) bool { return true })
	}
	return build(b)
}

// GenDeepGraph creates depth nested machines, each holding two leaves and the next
// machine down.
func GenDeepGraph(depth int) (*playerstate.Graph, error) {
	if depth < 1 {
		depth = 1
	}
	b := playerstate.NewGraphBuilder("deep")
	for i := 0; i < depth; i++ {
		children := []string{fmt.Sprintf("c%d_a", i), fmt.Sprintf("c%d_b", i)}
		if i+1 < depth {
			children = append(children, fmt.Sprintf("c%d", i+1))
		}
		b.Machine(fmt.Sprintf("c%d", i)).Children(children...)
		b.Leaf(children[0])
		b.Leaf(children[1])
	}
	return build(b)
}

// GenWideGraph creates a concurrent root over n leaves that all run an Update hook.
func GenWideGraph(n int, update playerstate.NodeFunc) (*playerstate.Graph, error) {
	if n < 1 {
		n = 1
	}
	b := playerstate.NewGraphBuilder("wide")
	names := make([]string, n)
	for i := range names {
		names[i] = leafName(i)
		b.Leaf(names[i]).OnUpdate(update)
	}
	b.Concurrent("Root").Children(names...)
	return build(b)
}

// PlayerGraph is the example player content.
func PlayerGraph() (*playerstate.Graph, error) { return player.Graph() }

// GenSaveYAML returns the YAML encoding of a started player entity's save data.
func GenSaveYAML() []byte {
	g, err := player.Graph()
	if err != nil {
		panic(err)
	}
	e, err := g.Instantiate(&player.Player{Name: "bench"})
	if err != nil {
		panic(err)
	}
	e.Tick()
	data, err := yaml.Marshal(e.Save("bench"))
	if err != nil {
		panic(err)
	}
	return data
}

func build(b *playerstate.GraphBuilder) (*playerstate.Graph, error) {
	r := playerstate.NewRegistry()
	if err := b.Register(r); err != nil {
		return nil, err
	}
	return r.Build()
}
