package builder

import (
	"container/heap"

	"voxelbuild.ai/internal/sim/geom"
)

type cellState uint8

const (
	stateNone cellState = iota // untracked: correct, satisfied or committed
	stateScan
	stateClear
	statePlace
	stateActiveClear
	stateActivePlace
	stateParked   // fluid, unbreakable or protected; re-armed by a grid change
	stateDeferred // place prerequisites missing; retried after each scan pass
	numStates
)

var stateNames = [...]string{"none", "scan", "clear", "place", "active_clear", "active_place", "parked", "deferred"}

func (s cellState) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "invalid"
}

type candidate struct {
	pos   geom.Cell
	score int64
}

// candidateHeap is a min-heap on (score, X, Y, Z). Entries are not removed
// when a cell leaves the queue; pop skips cells whose state no longer matches.
type candidateHeap []candidate

func (h candidateHeap) Len() int { return len(h) }
func (h candidateHeap) Less(i, j int) bool {
	if h[i].score != h[j].score {
		return h[i].score < h[j].score
	}
	return h[i].pos.Less(h[j].pos)
}
func (h candidateHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x any)   { *h = append(*h, x.(candidate)) }
func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

type candidateQueue struct {
	h    candidateHeap
	want cellState
}

func (q *candidateQueue) push(pos geom.Cell, score int64) {
	heap.Push(&q.h, candidate{pos: pos, score: score})
}

func (q *candidateQueue) pop(state map[geom.Cell]cellState) (geom.Cell, bool) {
	for q.h.Len() > 0 {
		it := heap.Pop(&q.h).(candidate)
		if state[it.pos] == q.want {
			return it.pos, true
		}
	}
	return geom.Cell{}, false
}

func (q *candidateQueue) reset() { q.h = q.h[:0] }

// scanQueue is a FIFO of cells awaiting classification. Like the heaps it
// tolerates stale entries.
type scanQueue struct {
	cells []geom.Cell
	head  int
}

func (q *scanQueue) push(pos geom.Cell) { q.cells = append(q.cells, pos) }

func (q *scanQueue) pop(state map[geom.Cell]cellState) (geom.Cell, bool) {
	for q.head < len(q.cells) {
		pos := q.cells[q.head]
		q.head++
		if state[pos] == stateScan {
			q.compact()
			return pos, true
		}
	}
	q.reset()
	return geom.Cell{}, false
}

func (q *scanQueue) compact() {
	if q.head > 1024 && q.head*2 > len(q.cells) {
		n := copy(q.cells, q.cells[q.head:])
		q.cells = q.cells[:n]
		q.head = 0
	}
}

func (q *scanQueue) reset() {
	q.cells = q.cells[:0]
	q.head = 0
}
