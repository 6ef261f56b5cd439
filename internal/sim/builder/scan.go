package builder

import "voxelbuild.ai/internal/sim/geom"

// scanBatch classifies up to MaxCheck cells. A new pass starts once the
// queue has drained; deferred place cells are retried at the start of it.
func (b *Builder) scanBatch() {
	if b.counts[stateScan] == 0 {
		b.requeueDeferred()
	}
	for i := 0; i < b.cfg.MaxCheck; i++ {
		pos, ok := b.scan.pop(b.state)
		if !ok {
			break
		}
		b.classify(pos)
	}
	if b.counts[stateScan] == 0 {
		b.scannedOnce = true
	}
}

func (b *Builder) requeueDeferred() {
	if len(b.deferred) == 0 {
		return
	}
	deferred := b.deferred
	b.deferred = nil
	for _, pos := range deferred {
		if b.state[pos] == stateDeferred {
			b.enqueueScan(pos)
		}
	}
}

func (b *Builder) classify(pos geom.Cell) {
	switch {
	case b.shape.IsCorrect(pos):
		b.setState(pos, stateNone)
	case !b.grid.IsEmpty(pos):
		if !b.shape.Excavates() {
			b.setState(pos, stateNone)
			return
		}
		if b.grid.Resistance(pos) >= Unbreakable {
			b.setState(pos, stateParked)
			return
		}
		b.setState(pos, stateClear)
		b.pendingClear.push(pos, b.score(pos))
	default:
		if _, ok := b.toPlace[pos]; ok {
			b.setState(pos, statePlace)
			b.pendingPlace.push(pos, b.score(pos))
			return
		}
		b.setState(pos, stateNone)
	}
}

// score orders candidates ascending: cells farthest from the builder's height
// first, then by horizontal distance from the shape centre.
func (b *Builder) score(pos geom.Cell) int64 {
	dx := int64(pos.X - b.center.X)
	dz := int64(pos.Z - b.center.Z)
	dy := int64(geom.AbsInt(pos.Y - b.cfg.Origin.Y))
	return dx*dx + dz*dz + 100000 - dy*100000
}
