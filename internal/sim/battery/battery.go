// Package battery is the consumable energy pool that throttles build work.
//
// Amounts are in micro-MJ; MJ is one whole unit. Every operation clamps so the
// stored amount stays within [0, capacity] no matter what callers request.
package battery

const MJ uint64 = 1_000_000

type Battery struct {
	capacity uint64
	stored   uint64
}

func New(capacity uint64) *Battery {
	return &Battery{capacity: capacity}
}

func (b *Battery) Capacity() uint64 { return b.capacity }
func (b *Battery) Stored() uint64   { return b.stored }
func (b *Battery) IsFull() bool     { return b.stored >= b.capacity }

// SetStored restores a persisted level, clamped to capacity.
func (b *Battery) SetStored(v uint64) {
	if v > b.capacity {
		v = b.capacity
	}
	b.stored = v
}

// Extract removes between min and max. Nothing is removed when less than min
// is stored.
func (b *Battery) Extract(min, max uint64) uint64 {
	if max < min || b.stored < min {
		return 0
	}
	n := max
	if n > b.stored {
		n = b.stored
	}
	b.stored -= n
	return n
}

// Add stores up to amount and returns how much was accepted. With simulate
// set the battery is left untouched.
func (b *Battery) Add(amount uint64, simulate bool) uint64 {
	room := b.capacity - b.stored
	if amount > room {
		amount = room
	}
	if !simulate {
		b.stored += amount
	}
	return amount
}
