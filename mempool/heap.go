package mempool

// priorityIndex is a container/heap.Interface implementation ordering
// pooled entries by (fee_per_byte desc, HashTimer asc) — the selection
// order §4.4 specifies. It is a max-heap on selection priority, so the
// highest-priority transaction is always at index 0.
type priorityIndex []*entry

func (h priorityIndex) Len() int { return len(h) }

func (h priorityIndex) Less(i, j int) bool {
	return lessPriority(h[j], h[i]) // h[i] has higher priority than h[j]
}

func (h priorityIndex) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIdx = i
	h[j].heapIdx = j
}

func (h *priorityIndex) Push(x interface{}) {
	e := x.(*entry)
	e.heapIdx = len(*h)
	*h = append(*h, e)
}

func (h *priorityIndex) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.heapIdx = -1
	*h = old[:n-1]
	return e
}
