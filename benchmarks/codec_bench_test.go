package benchmarks

import (
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/comalice/playerstate"
	"github.com/comalice/playerstate/examples/player"
	"github.com/comalice/playerstate/wire"
)

func playerPair(b *testing.B) (local, remote *playerstate.Entity, p *player.Player) {
	b.Helper()
	g, err := PlayerGraph()
	if err != nil {
		b.Fatal(err)
	}
	p = &player.Player{}
	local, err = g.Instantiate(p, playerstate.WithRef(1))
	if err != nil {
		b.Fatal(err)
	}
	remote, err = g.Instantiate(&player.Player{}, playerstate.WithRef(1), playerstate.WithAuthority(false))
	if err != nil {
		b.Fatal(err)
	}
	table, err := playerstate.BuildNetTable(g)
	if err != nil {
		b.Fatal(err)
	}
	local.Reconcile(table)
	remote.Reconcile(table)
	local.Start()
	remote.Start()
	return local, remote, p
}

func BenchmarkDeltaRoundTrip(b *testing.B) {
	local, remote, p := playerPair(b)
	w := wire.NewWriter(256)
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		p.Input = player.Input{Move: i%2 == 0}
		local.Tick()
		w.Reset()
		if _, err := local.WriteDelta(w); err != nil {
			b.Fatal(err)
		}
		local.ClearNetUpdates()
		if err := remote.ApplyDelta(w.Bytes()); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkFullSnapshot(b *testing.B) {
	local, remote, _ := playerPair(b)
	w := wire.NewWriter(256)
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		w.Reset()
		if _, err := local.WriteFull(w); err != nil {
			b.Fatal(err)
		}
		if err := remote.ApplyFull(w.Bytes()); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSaveLoadYAML(b *testing.B) {
	data := GenSaveYAML()
	local, _, _ := playerPair(b)
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		var sd playerstate.SaveData
		if err := yaml.Unmarshal(data, &sd); err != nil {
			b.Fatal(err)
		}
		if err := local.Load(sd); err != nil {
			b.Fatal(err)
		}
	}
}
