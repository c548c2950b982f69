package netsync

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/comalice/playerstate"
	"github.com/comalice/playerstate/wire"
)

// hello is the first message a client sends.
type hello struct {
	Name string
}

func (h hello) encode() []byte {
	w := wire.NewWriter(len(h.Name) + 2)
	w.String(h.Name)
	return w.Bytes()
}

func decodeHello(b []byte) (hello, error) {
	r := wire.NewReader(b)
	h := hello{Name: r.String()}
	if err := r.Err(); err != nil {
		return hello{}, fmt.Errorf("decode hello: %w", err)
	}
	return h, nil
}

// welcome assigns the client its entity and the server's net table.
type welcome struct {
	Session uuid.UUID
	Ref     playerstate.EntityRef
	Names   []string
}

func (m welcome) encode() []byte {
	w := wire.NewWriter(64)
	w.BytesField(m.Session[:])
	w.Uvarint(uint64(m.Ref))
	w.Uvarint(uint64(len(m.Names)))
	for _, n := range m.Names {
		w.String(n)
	}
	return w.Bytes()
}

func decodeWelcome(b []byte) (welcome, error) {
	r := wire.NewReader(b)
	var m welcome
	id := r.BytesField()
	ref := r.Uvarint()
	n := r.Uvarint()
	if err := r.Err(); err != nil {
		return welcome{}, fmt.Errorf("decode welcome: %w", err)
	}
	sid, err := uuid.FromBytes(id)
	if err != nil {
		return welcome{}, fmt.Errorf("decode welcome: session id: %w", err)
	}
	if n > uint64(r.Remaining()) {
		return welcome{}, fmt.Errorf("decode welcome: %d names in %d bytes", n, r.Remaining())
	}
	m.Session, m.Ref = sid, playerstate.EntityRef(ref)
	m.Names = make([]string, 0, n)
	for k := uint64(0); k < n; k++ {
		m.Names = append(m.Names, r.String())
	}
	if err := r.Err(); err != nil {
		return welcome{}, fmt.Errorf("decode welcome: %w", err)
	}
	return m, nil
}

// Leave and FullRequest carry a single entity reference. Zero in a FullRequest means
// every entity.
func encodeRef(ref playerstate.EntityRef) []byte {
	w := wire.NewWriter(5)
	w.Uvarint(uint64(ref))
	return w.Bytes()
}

func decodeRef(b []byte) (playerstate.EntityRef, error) {
	r := wire.NewReader(b)
	ref := r.Uvarint()
	if err := r.Err(); err != nil {
		return 0, fmt.Errorf("decode ref: %w", err)
	}
	return playerstate.EntityRef(ref), nil
}
