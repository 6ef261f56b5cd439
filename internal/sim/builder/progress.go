package builder

func (b *Builder) progressClear() {
	n := len(b.activeClear)
	if n == 0 {
		return
	}
	share := b.battery.Stored() / uint64(n)
	kept := make([]*ClearTask, 0, n)
	for _, t := range b.activeClear {
		target := t.Target(b.grid)
		if grant := min(remaining(target, t.Progress), share); grant > 0 {
			t.AddProgress(b.battery.Extract(0, grant))
		}
		if t.Progress >= target {
			b.commitClear(t, target)
			continue
		}
		b.reportBreak(t.Pos, int(t.Progress*9/target))
		kept = append(kept, t)
	}
	b.activeClear = kept
}

func (b *Builder) progressPlace() {
	n := len(b.activePlace)
	if n == 0 {
		return
	}
	share := b.battery.Stored() / uint64(n)
	kept := make([]*PlaceTask, 0, n)
	for _, t := range b.activePlace {
		target := t.Target(b.cfg.Origin)
		if grant := min(remaining(target, t.Progress), share); grant > 0 {
			t.AddProgress(b.battery.Extract(0, grant))
		}
		if t.Progress >= target {
			b.commitPlace(t, target)
			continue
		}
		kept = append(kept, t)
	}
	b.activePlace = kept
}

func (b *Builder) commitClear(t *ClearTask, target uint64) {
	ev := &DestroyEvent{Pos: t.Pos}
	for _, fn := range b.listeners {
		fn(ev)
	}
	b.reportBreak(t.Pos, -1)
	if ev.Canceled() {
		refund := b.refund(target)
		// A vetoed cell waits for the grid to change before it is retried.
		b.setState(t.Pos, stateParked)
		b.writeAudit(AuditEntry{Action: AuditDestroyCancelled, Pos: t.Pos.Array(), Target: target, Refund: refund})
		b.log.Debug().Stringer("pos", t.Pos).Msg("destroy cancelled")
		return
	}
	b.grid.Destroy(t.Pos)
	b.setState(t.Pos, stateNone)
	b.enqueueScan(t.Pos)
	b.writeAudit(AuditEntry{Action: AuditDestroy, Pos: t.Pos.Array(), Target: target})
}

func (b *Builder) commitPlace(t *PlaceTask, target uint64) {
	if b.shape.IsCorrect(t.Pos) {
		// Someone else placed it; the energy is spent but the items come back.
		b.inv.ReturnItems(t.Items)
		b.setState(t.Pos, stateNone)
		return
	}
	if b.shape.Place(t.Pos, t.Items) {
		b.setState(t.Pos, stateNone)
		b.enqueueScan(t.Pos)
		b.writeAudit(AuditEntry{Action: AuditPlace, Pos: t.Pos.Array(), Target: target, Items: t.Items})
		return
	}
	refund := b.refund(target)
	b.inv.ReturnItems(t.Items)
	b.setState(t.Pos, statePlace)
	b.pendingPlace.push(t.Pos, b.score(t.Pos))
	b.writeAudit(AuditEntry{Action: AuditPlaceFailed, Pos: t.Pos.Array(), Target: target, Refund: refund, Items: t.Items})
	b.log.Warn().Stringer("pos", t.Pos).Msg("place failed, rolled back")
}
