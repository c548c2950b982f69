package realtime

// Step runs one complete tick on the calling goroutine.
func (rt *Runtime) Step() {
	cmds := rt.collectCommands()
	sortCommands(cmds)
	for _, c := range cmds {
		c.Apply(rt.world)
	}

	if rt.syncer != nil {
		rt.syncer.ApplyInbound()
	}
	rt.world.Tick()
	if rt.syncer != nil {
		rt.syncer.Flush()
	}

	rt.mu.Lock()
	rt.tickNum++
	n := rt.tickNum
	rt.mu.Unlock()
	if rt.onTick != nil {
		rt.onTick(n)
	}
}

func (rt *Runtime) collectCommands() []Command {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	cmds := rt.batch
	rt.batch = make([]Command, 0, rt.maxCommands)
	return cmds
}
