// Package realtime drives a playerstate World at a fixed tick rate.
//
// Each tick runs the same phases in the same order:
//  1. Commands submitted since the last tick, by priority then submission order
//  2. Inbound network messages (Syncer.ApplyInbound)
//  3. Every entity's Tick, in reference order
//  4. Outbound deltas (Syncer.Flush)
//
// All state changes happen on the tick goroutine. Other goroutines interact with the
// world only through Submit, so a run is reproducible given the same commands and
// inbound messages per tick.
//
// # Example Usage
//
//	world := playerstate.NewWorld(graph)
//	rt := realtime.NewRuntime(world, realtime.Config{
//		TickRate: 16667 * time.Microsecond, // 60 FPS
//	}, realtime.WithSyncer(session))
//	rt.Start(ctx)
//	rt.Submit(func(w *playerstate.World) { w.Attach(host) })
//
// Step runs one tick synchronously and is the entry point for tests and for hosts that
// own their own loop. It must not be mixed with Start.
package realtime
