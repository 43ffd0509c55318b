package dispatch

import (
	"container/heap"
	"time"
)

// Priority orders queued jobs; lower values run first. Concrete values
// mirror the packet-id priority table (spec.md §4.4), inverted from its
// "higher number runs first" convention into "lower Priority runs
// first" to match container/heap's min-heap ordering.
type Priority int

const (
	PriorityGameplay Priority = 0 // GameAction, MoveRequest, ObjectUpdate
	PriorityControl  Priority = 1 // ObjectSpawn, ObjectDespawn, GameState, Login*, Reconnect*
	PriorityDefault  Priority = 2 // ObjectSnapshot, unspecified
	PriorityIdle     Priority = 3 // Heartbeat
)

// Job is one unit of work waiting for a dispatcher worker: a decoded
// frame bound to the session it arrived on.
type Job struct {
	SessionID string
	Body      []byte
	RecvTime  time.Time
	Priority  Priority

	seq   uint64 // tiebreaker so equal-priority jobs stay FIFO
	index int    // heap bookkeeping
}

// jobQueue is a min-heap over Job ordered by (Priority, seq), grounded
// on the turn-queue priority-heap shape used elsewhere in the example
// pack: heap.Interface over a slice of pointers carrying their own heap
// index for O(log n) Fix/Remove.
type jobQueue []*Job

func (q jobQueue) Len() int { return len(q) }

func (q jobQueue) Less(i, j int) bool {
	if q[i].Priority != q[j].Priority {
		return q[i].Priority < q[j].Priority
	}
	return q[i].seq < q[j].seq
}

func (q jobQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *jobQueue) Push(x any) {
	job := x.(*Job)
	job.index = len(*q)
	*q = append(*q, job)
}

func (q *jobQueue) Pop() any {
	old := *q
	n := len(old)
	job := old[n-1]
	old[n-1] = nil
	job.index = -1
	*q = old[:n-1]
	return job
}

var _ = heap.Interface(&jobQueue{})
