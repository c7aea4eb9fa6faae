package sched

import (
	"sync/atomic"

	"github.com/chazu/riptide/future"
)

// ---------------------------------------------------------------------------
// TaskQueue: multi-producer, single-consumer ready list
// ---------------------------------------------------------------------------

// TaskQueue collects tasks whose queued flag was just won by a waker, plus
// the notify slot holding the driver's waker.
//
// Producers push lock-free from any goroutine through the tasks' intrusive
// next links. The single consumer takes the whole current list at once with
// drain. seal permanently closes the queue: subsequent pushes fail, which is
// how wakers detect a torn-down scheduler.
type TaskQueue struct {
	head   atomic.Pointer[task]
	sealed task // sentinel; head == &sealed means closed
	notify future.WakerSlot
}

// NewTaskQueue returns an empty, open queue.
func NewTaskQueue() *TaskQueue {
	return &TaskQueue{}
}

// push links t at the head of the ready list. It returns false if the queue
// has been sealed, in which case the caller keeps ownership of t.
func (q *TaskQueue) push(t *task) bool {
	for {
		head := q.head.Load()
		if head == &q.sealed {
			return false
		}
		t.next.Store(head)
		if q.head.CompareAndSwap(head, t) {
			return true
		}
	}
}

// drain atomically takes the entire current list, leaving the queue empty
// for new pushes, and returns it in FIFO order (pushes are LIFO; the batch
// is reversed here, on the consumer side). Single consumer only.
func (q *TaskQueue) drain() *task {
	head := q.head.Load()
	if head == nil || head == &q.sealed {
		return nil
	}
	head = q.head.Swap(nil)
	return reverseChain(head)
}

// seal closes the queue and returns any tasks that were still linked, in
// FIFO order. After seal every push fails. Single consumer only.
func (q *TaskQueue) seal() *task {
	head := q.head.Swap(&q.sealed)
	if head == &q.sealed {
		return nil
	}
	return reverseChain(head)
}

func reverseChain(head *task) *task {
	var rev *task
	for head != nil {
		next := head.next.Load()
		head.next.Store(rev)
		rev = head
		head = next
	}
	return rev
}
