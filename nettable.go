package playerstate

import (
	"fmt"
	"math"
	"slices"
)

// NetTable is the canonical, session-wide list of template full names. The position of a
// name is its net id. Peers whose registries were populated in different orders agree
// on net ids through it.
type NetTable struct {
	names []string
	index map[string]int16
}

// BuildNetTable creates the authoritative table from the server's graph.
func BuildNetTable(g *Graph) (*NetTable, error) {
	names := make([]string, len(g.defs))
	for i, d := range g.defs {
		names[i] = d.FullName()
	}
	return NetTableFromNames(names)
}

// NetTableFromNames rebuilds a table received from the server.
func NetTableFromNames(names []string) (*NetTable, error) {
	if len(names) > math.MaxInt16 {
		return nil, fmt.Errorf("%w: %d names", ErrNetTable, len(names))
	}
	t := &NetTable{names: slices.Clone(names), index: make(map[string]int16, len(names))}
	for i, n := range names {
		if n == "" {
			return nil, fmt.Errorf("%w: empty name at %d", ErrNetTable, i)
		}
		if _, dup := t.index[n]; dup {
			return nil, fmt.Errorf("%w: duplicate %q", ErrNetTable, n)
		}
		t.index[n] = int16(i)
	}
	return t, nil
}

// Names returns the canonical names in net id order.
func (t *NetTable) Names() []string { return slices.Clone(t.names) }

// Len returns the number of entries.
func (t *NetTable) Len() int { return len(t.names) }

// NetID returns the net id of a full name.
func (t *NetTable) NetID(fullName string) (int16, bool) {
	id, ok := t.index[fullName]
	return id, ok
}

// Name returns the full name of a net id.
func (t *NetTable) Name(netID int16) (string, error) {
	if netID < 0 || int(netID) >= len(t.names) {
		return "", fmt.Errorf("%w: %d", ErrNetID, netID)
	}
	return t.names[netID], nil
}

// Reconcile assigns every instance the net id of its full name. Templates absent from
// the table keep net id -1 and are never sent; table entries with no local template are
// skipped on receive.
func (e *Entity) Reconcile(t *NetTable) {
	e.table = t
	e.byNet = make([]StateID, t.Len())
	for i := range e.byNet {
		e.byNet[i] = NoState
	}
	for i, s := range e.states {
		b := s.base()
		nid, ok := t.NetID(e.graph.defs[i].FullName())
		if !ok {
			b.netID = -1
			continue
		}
		b.netID = nid
		e.byNet[nid] = StateID(i)
	}
}

// Reconciled reports whether a net table has been applied.
func (e *Entity) Reconciled() bool { return e.table != nil }

// NetTable returns the applied net table, or nil.
func (e *Entity) NetTable() *NetTable { return e.table }
