package spawner

import (
	"container/heap"

	"github.com/cxd309/intersection-sim/internal/vehicle"
)

// DefaultQueueCapacity bounds each direction's pending queue.
const DefaultQueueCapacity = 10

// Request is demand for a vehicle that could not be admitted yet.
type Request struct {
	Class     vehicle.Class
	Direction vehicle.Direction
	Priority  int

	seq uint64
}

// requestHeap implements heap.Interface, highest priority first and
// insertion order among equal priorities.
type requestHeap []Request

func (h requestHeap) Len() int { return len(h) }

func (h requestHeap) Less(i, j int) bool {
	if h[i].Priority == h[j].Priority {
		return h[i].seq < h[j].seq
	}
	return h[i].Priority > h[j].Priority
}

func (h requestHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *requestHeap) Push(x any) { *h = append(*h, x.(Request)) }

func (h *requestHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// PendingQueue holds one bounded priority queue per direction.
type PendingQueue struct {
	capacity int
	queues   [vehicle.NumDirections]requestHeap
	seq      uint64
}

// NewPendingQueue returns empty queues holding at most capacity requests each.
func NewPendingQueue(capacity int) *PendingQueue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &PendingQueue{capacity: capacity}
}

// Enqueue adds demand for class in dir. A full queue drops the request and
// Enqueue returns false.
func (q *PendingQueue) Enqueue(class vehicle.Class, dir vehicle.Direction) bool {
	q.seq++
	return q.push(Request{Class: class, Direction: dir, Priority: class.Priority(), seq: q.seq})
}

// Requeue puts back a request taken by DequeueHighest, keeping its place
// among requests of the same priority.
func (q *PendingQueue) Requeue(r Request) bool {
	return q.push(r)
}

func (q *PendingQueue) push(r Request) bool {
	if q.IsFull(r.Direction) {
		return false
	}
	heap.Push(&q.queues[r.Direction], r)
	return true
}

// DequeueHighest removes and returns the highest-priority request for dir.
func (q *PendingQueue) DequeueHighest(dir vehicle.Direction) (Request, bool) {
	if q.IsEmpty(dir) {
		return Request{}, false
	}
	return heap.Pop(&q.queues[dir]).(Request), true
}

func (q *PendingQueue) IsEmpty(dir vehicle.Direction) bool { return len(q.queues[dir]) == 0 }
func (q *PendingQueue) IsFull(dir vehicle.Direction) bool  { return len(q.queues[dir]) >= q.capacity }
func (q *PendingQueue) Len(dir vehicle.Direction) int      { return len(q.queues[dir]) }
