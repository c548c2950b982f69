package realtime

import (
	"sort"

	"github.com/comalice/playerstate"
)

// Command is a world mutation queued for the next tick.
type Command struct {
	Apply       func(*playerstate.World)
	SequenceNum uint64
	Priority    int
}

// sortCommands orders commands deterministically: higher priority first, then
// submission order.
func sortCommands(cmds []Command) {
	sort.SliceStable(cmds, func(i, j int) bool {
		if cmds[i].Priority != cmds[j].Priority {
			return cmds[i].Priority > cmds[j].Priority
		}
		return cmds[i].SequenceNum < cmds[j].SequenceNum
	})
}
