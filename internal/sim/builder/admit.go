package builder

import (
	"voxelbuild.ai/internal/sim/geom"
	"voxelbuild.ai/internal/sim/inventory"
)

func (b *Builder) admit() {
	b.prune()

	for len(b.activeClear) < b.cfg.MaxActive {
		pos, ok := b.pendingClear.pop(b.state)
		if !ok {
			break
		}
		if b.grid.IsFluid(pos) {
			b.setState(pos, stateParked)
			continue
		}
		b.setState(pos, stateActiveClear)
		b.activeClear = append(b.activeClear, &ClearTask{Pos: pos})
		b.log.Debug().Stringer("pos", pos).Msg("clear admitted")
	}

	if b.shape.Excavates() && (len(b.activeClear) > 0 || b.counts[stateClear] > 0) {
		return
	}

	for len(b.activePlace) < b.cfg.MaxActive {
		pos, ok := b.pendingPlace.pop(b.state)
		if !ok {
			break
		}
		items := b.shape.RequiredItems(pos)
		if len(items) == 0 || inventory.ContainsEmpty(items) || !b.shape.CanPlace(pos) {
			b.inv.ReturnItems(items)
			b.deferPlace(pos)
			continue
		}
		b.setState(pos, stateActivePlace)
		b.activePlace = append(b.activePlace, &PlaceTask{Pos: pos, Items: items})
		b.log.Debug().Stringer("pos", pos).Int("items", len(items)).Msg("place admitted")
	}
}

func (b *Builder) deferPlace(pos geom.Cell) {
	b.setState(pos, stateDeferred)
	b.deferred = append(b.deferred, pos)
}

// prune drops active tasks whose cell no longer needs work and refunds the
// progress they had accumulated.
func (b *Builder) prune() {
	if len(b.activeClear) > 0 {
		kept := make([]*ClearTask, 0, len(b.activeClear))
		for _, t := range b.activeClear {
			empty := b.grid.IsEmpty(t.Pos)
			if !empty && !b.shape.IsCorrect(t.Pos) {
				kept = append(kept, t)
				continue
			}
			refund := b.refund(t.Progress)
			b.reportBreak(t.Pos, -1)
			b.setState(t.Pos, stateNone)
			b.writeAudit(AuditEntry{Action: AuditPrune, Pos: t.Pos.Array(), Refund: refund})
			if empty {
				b.enqueueScan(t.Pos)
			}
		}
		b.activeClear = kept
	}
	if len(b.activePlace) > 0 {
		kept := make([]*PlaceTask, 0, len(b.activePlace))
		for _, t := range b.activePlace {
			if !b.shape.IsCorrect(t.Pos) {
				kept = append(kept, t)
				continue
			}
			refund := b.refund(t.Progress)
			b.inv.ReturnItems(t.Items)
			b.setState(t.Pos, stateNone)
			b.writeAudit(AuditEntry{Action: AuditPrune, Pos: t.Pos.Array(), Refund: refund, Items: t.Items})
		}
		b.activePlace = kept
	}
}
