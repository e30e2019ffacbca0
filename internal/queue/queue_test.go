package queue

import (
	"sync"
	"testing"

	"github.com/andresmejia3/facegate/internal/types"
)

func detection(x int) types.Detection {
	return types.Detection{Box: types.BoundingBox{X: x, Y: 0, W: 10, H: 10}}
}

func TestTryEnqueueDropsNewestWhenFull(t *testing.T) {
	q := New(2)

	if !q.TryEnqueue(detection(1)) || !q.TryEnqueue(detection(2)) {
		t.Fatal("Expected the first two jobs to be accepted")
	}
	if q.TryEnqueue(detection(3)) {
		t.Error("Expected the third job to be dropped")
	}
	if q.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", q.Dropped())
	}

	// The jobs already queued are the oldest ones.
	first := <-q.Jobs()
	second := <-q.Jobs()
	if first.Detection.Box.X != 1 || second.Detection.Box.X != 2 {
		t.Errorf("Unexpected order: got %d, %d", first.Detection.Box.X, second.Detection.Box.X)
	}
	if first.Seq >= second.Seq {
		t.Errorf("Sequence numbers not increasing: %d then %d", first.Seq, second.Seq)
	}
}

func TestCapacityClamped(t *testing.T) {
	q := New(0)
	if q.Cap() != 1 {
		t.Errorf("Cap() = %d, want 1", q.Cap())
	}
}

func TestCloseStopsAccepting(t *testing.T) {
	q := New(4)
	q.TryEnqueue(detection(1))
	q.Close()
	q.Close() // idempotent

	if q.TryEnqueue(detection(2)) {
		t.Error("TryEnqueue succeeded on a closed queue")
	}

	// Buffered jobs remain readable, then the channel reports closed.
	n := 0
	for range q.Jobs() {
		n++
	}
	if n != 1 {
		t.Errorf("Drained %d jobs, want 1", n)
	}
}

func TestConcurrentEnqueueAndClose(t *testing.T) {
	q := New(8)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				q.TryEnqueue(detection(i))
			}
		}(i)
	}
	go func() {
		for range q.Jobs() {
		}
	}()
	q.Close()
	wg.Wait()
}
