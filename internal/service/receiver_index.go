package service

import (
	"container/heap"

	"github.com/noah-isme/donation-matrix-api/internal/models"
)

type slotHeap []*models.QueueSlot

func (h slotHeap) Len() int            { return len(h) }
func (h slotHeap) Less(i, j int) bool  { return h[i].Position < h[j].Position }
func (h slotHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *slotHeap) Push(x interface{}) { *h = append(*h, x.(*models.QueueSlot)) }
func (h *slotHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// ReceiverIndex answers "next receiver" queries for one level: the occupied, not yet
// completed slot with the lowest position. Successive Next calls walk the eligible slots
// in position order and start over once all of them were handed out.
type ReceiverIndex struct {
	level int
	ready slotHeap
	spent []*models.QueueSlot
}

// NewReceiverIndex indexes the eligible slots of a level. Slots held by excluded participants are skipped.
func NewReceiverIndex(level int, slots []models.QueueSlot, exclude ...string) *ReceiverIndex {
	skip := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}

	idx := &ReceiverIndex{level: level}
	for i := range slots {
		slot := slots[i]
		if slot.Level != level || !slot.Occupied() || slot.LevelCompleted {
			continue
		}
		if _, ok := skip[*slot.ParticipantID]; ok {
			continue
		}
		idx.ready = append(idx.ready, &slot)
	}
	heap.Init(&idx.ready)
	return idx
}

// Len returns the number of eligible receivers.
func (x *ReceiverIndex) Len() int {
	return len(x.ready) + len(x.spent)
}

// Peek returns the current next receiver without consuming it.
func (x *ReceiverIndex) Peek() (*models.QueueSlot, bool) {
	x.refill()
	if len(x.ready) == 0 {
		return nil, false
	}
	return x.ready[0], true
}

// Next hands out the current next receiver and advances to the following one.
func (x *ReceiverIndex) Next() (*models.QueueSlot, bool) {
	x.refill()
	if len(x.ready) == 0 {
		return nil, false
	}
	slot := heap.Pop(&x.ready).(*models.QueueSlot)
	x.spent = append(x.spent, slot)
	return slot, true
}

func (x *ReceiverIndex) refill() {
	if len(x.ready) > 0 || len(x.spent) == 0 {
		return
	}
	x.ready = slotHeap(x.spent)
	x.spent = nil
	heap.Init(&x.ready)
}
