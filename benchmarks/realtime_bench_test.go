package benchmarks

import (
	"fmt"
	"testing"

	"github.com/comalice/playerstate"
	"github.com/comalice/playerstate/examples/player"
	"github.com/comalice/playerstate/realtime"
)

func BenchmarkRuntimeStep(b *testing.B) {
	for _, cmds := range []int{0, 10, 100} {
		b.Run(fmt.Sprintf("commands=%d", cmds), func(b *testing.B) {
			g, err := PlayerGraph()
			if err != nil {
				b.Fatal(err)
			}
			w := playerstate.NewWorld(g)
			p := &player.Player{}
			if _, err := w.Attach(p); err != nil {
				b.Fatal(err)
			}
			rt := realtime.NewRuntime(w, realtime.Config{MaxCommandsPerTick: cmds + 1})
			toggle := func(*playerstate.World) { p.Input.Move = !p.Input.Move }
			b.ResetTimer()
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				for j := 0; j < cmds; j++ {
					if err := rt.SubmitWithPriority(toggle, j%3); err != nil {
						b.Fatal(err)
					}
				}
				rt.Step()
			}
		})
	}
}
