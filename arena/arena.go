// Package arena provides a generational slot store. Handles pair a slot
// number with the generation the slot had when the value was inserted, so a
// handle to a removed entry never resolves to a later occupant of the slot.
package arena

import "fmt"

// Index is a generational handle into an Arena.
type Index struct {
	Slot uint32 `msgpack:"s"`
	Gen  uint32 `msgpack:"g"`
}

// Uint64 packs the index into a single pointer-sized value. This is the form
// printed for users and accepted by the remote command CLI.
func (i Index) Uint64() uint64 {
	return uint64(i.Gen)<<32 | uint64(i.Slot)
}

// FromUint64 reverses Index.Uint64.
func FromUint64(v uint64) Index {
	return Index{Slot: uint32(v), Gen: uint32(v >> 32)}
}

func (i Index) String() string {
	return fmt.Sprintf("%dv%d", i.Slot, i.Gen)
}

type entry[T any] struct {
	value    T
	gen      uint32
	occupied bool
}

// Arena stores values addressed by generational indexes. The zero value is
// ready to use. It is not safe for concurrent use.
type Arena[T any] struct {
	entries []entry[T]
	free    []uint32
	count   int
}

// Insert stores value and returns its handle. Freed slots are reused with a
// new generation.
func (a *Arena[T]) Insert(value T) Index {
	a.count++
	if n := len(a.free); n > 0 {
		slot := a.free[n-1]
		a.free = a.free[:n-1]
		e := &a.entries[slot]
		e.value = value
		e.occupied = true
		return Index{Slot: slot, Gen: e.gen}
	}
	// Generation starts at 1 so the zero Index never resolves.
	a.entries = append(a.entries, entry[T]{value: value, gen: 1, occupied: true})
	return Index{Slot: uint32(len(a.entries) - 1), Gen: 1}
}

// Get returns the value for idx. It fails closed: a removed or reused slot
// reports false.
func (a *Arena[T]) Get(idx Index) (T, bool) {
	var zero T
	if int(idx.Slot) >= len(a.entries) {
		return zero, false
	}
	e := &a.entries[idx.Slot]
	if !e.occupied || e.gen != idx.Gen {
		return zero, false
	}
	return e.value, true
}

// Contains reports whether idx refers to a live entry.
func (a *Arena[T]) Contains(idx Index) bool {
	_, ok := a.Get(idx)
	return ok
}

// Remove deletes the entry for idx and returns its value. The slot's
// generation is bumped so idx and any copies of it become stale.
func (a *Arena[T]) Remove(idx Index) (T, bool) {
	value, ok := a.Get(idx)
	if !ok {
		return value, false
	}
	e := &a.entries[idx.Slot]
	var zero T
	e.value = zero
	e.occupied = false
	e.gen++
	a.free = append(a.free, idx.Slot)
	a.count--
	return value, true
}

// Len returns the number of live entries.
func (a *Arena[T]) Len() int {
	return a.count
}

// First returns the live entry with the lowest slot number.
func (a *Arena[T]) First() (Index, T, bool) {
	for slot := range a.entries {
		e := &a.entries[slot]
		if e.occupied {
			return Index{Slot: uint32(slot), Gen: e.gen}, e.value, true
		}
	}
	var zero T
	return Index{}, zero, false
}

// Each calls fn for every live entry in slot order until fn returns false.
func (a *Arena[T]) Each(fn func(Index, T) bool) {
	for slot := range a.entries {
		e := &a.entries[slot]
		if !e.occupied {
			continue
		}
		if !fn(Index{Slot: uint32(slot), Gen: e.gen}, e.value) {
			return
		}
	}
}

// Keys returns the handles of all live entries in slot order.
func (a *Arena[T]) Keys() []Index {
	keys := make([]Index, 0, a.count)
	a.Each(func(idx Index, _ T) bool {
		keys = append(keys, idx)
		return true
	})
	return keys
}
