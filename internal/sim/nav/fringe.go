package nav

import (
	"github.com/zyedidia/generic/mapset"
)

type searchNode struct {
	pos     GridPoint
	parent  int32 // arena index, -1 for the root
	g       float64
	h       float64
	heapIdx int // position in the fringe, -1 once popped
}

func (n *searchNode) f() float64 { return n.g + n.h }

// search is the per-call scratch state. Nothing in it outlives FindPath.
type search struct {
	arena  []searchNode
	open   fringe
	byPos  map[GridPoint]int32
	closed mapset.Set[GridPoint]
}

func newSearch() *search {
	s := &search{
		arena:  make([]searchNode, 0, 256),
		byPos:  make(map[GridPoint]int32, 256),
		closed: mapset.New[GridPoint](),
	}
	s.open.s = s
	return s
}

func (s *search) add(pos GridPoint, parent int32, g, h float64) int32 {
	idx := int32(len(s.arena))
	s.arena = append(s.arena, searchNode{pos: pos, parent: parent, g: g, h: h, heapIdx: -1})
	s.byPos[pos] = idx
	return idx
}

// fringe implements heap.Interface over arena indices.
// Order: lowest f, then lowest g.
type fringe struct {
	s     *search
	items []int32
}

func (q *fringe) Len() int { return len(q.items) }

func (q *fringe) Less(i, j int) bool {
	a := &q.s.arena[q.items[i]]
	b := &q.s.arena[q.items[j]]
	af, bf := a.f(), b.f()
	if af != bf {
		return af < bf
	}
	return a.g < b.g
}

func (q *fringe) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.s.arena[q.items[i]].heapIdx = i
	q.s.arena[q.items[j]].heapIdx = j
}

func (q *fringe) Push(x any) {
	idx := x.(int32)
	q.s.arena[idx].heapIdx = len(q.items)
	q.items = append(q.items, idx)
}

func (q *fringe) Pop() any {
	old := q.items
	n := len(old)
	idx := old[n-1]
	q.items = old[:n-1]
	q.s.arena[idx].heapIdx = -1
	return idx
}
