package sched

import (
	"sync"
	"testing"
)

func drainAll(q *TaskQueue) []*task {
	var out []*task
	for t := q.drain(); t != nil; {
		next := t.next.Load()
		t.next.Store(nil)
		out = append(out, t)
		t = next
	}
	return out
}

func TestQueuePushDrainOrder(t *testing.T) {
	q := NewTaskQueue()
	a, b, c := &task{}, &task{}, &task{}
	for _, tk := range []*task{a, b, c} {
		if !q.push(tk) {
			t.Fatal("push on open queue failed")
		}
	}

	got := drainAll(q)
	want := []*task{a, b, c}
	if len(got) != len(want) {
		t.Fatalf("drained %d tasks, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: wrong task (drain must be FIFO)", i)
		}
	}
	if q.drain() != nil {
		t.Error("second drain should be empty")
	}
}

func TestQueueConcurrentPush(t *testing.T) {
	q := NewTaskQueue()
	const producers = 8
	const perProducer = 200

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				if !q.push(&task{}) {
					t.Error("push on open queue failed")
					return
				}
			}
		}()
	}
	wg.Wait()

	if got := len(drainAll(q)); got != producers*perProducer {
		t.Errorf("drained %d tasks, want %d", got, producers*perProducer)
	}
}

func TestQueueSeal(t *testing.T) {
	q := NewTaskQueue()
	a, b := &task{}, &task{}
	q.push(a)
	q.push(b)

	rest := q.seal()
	if rest != a || rest.next.Load() != b {
		t.Error("seal should return the remaining tasks in FIFO order")
	}

	if q.push(&task{}) {
		t.Error("push on a sealed queue must fail")
	}
	if q.drain() != nil {
		t.Error("drain on a sealed queue must be empty")
	}
	if q.seal() != nil {
		t.Error("second seal must be empty")
	}
}
