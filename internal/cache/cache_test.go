package cache

import (
	"sync"
	"testing"

	"github.com/andresmejia3/facegate/internal/types"
)

var (
	boxA = types.BoundingBox{X: 10, Y: 10, W: 50, H: 50}
	boxB = types.BoundingBox{X: 200, Y: 40, W: 60, H: 60}
	boxC = types.BoundingBox{X: 400, Y: 90, W: 45, H: 45}
)

func TestGetAbsentIsPending(t *testing.T) {
	c := New()
	if got := c.Get(boxA); got != types.Pending {
		t.Errorf("Get on empty cache = %v, want Pending", got)
	}
}

func TestUpsertLastWriterWins(t *testing.T) {
	c := New()
	c.Upsert(boxA, types.Recognized)
	c.Upsert(boxA, types.NotRecognized)

	if got := c.Get(boxA); got != types.NotRecognized {
		t.Errorf("Get = %v, want NotRecognized", got)
	}
	if c.Len() != 1 {
		t.Errorf("Expected exactly 1 entry per box, got %d", c.Len())
	}
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name        string
		seed        map[types.BoundingBox]types.Verdict
		current     []types.BoundingBox
		wantRemoved int
		want        map[types.BoundingBox]types.Verdict
	}{
		{
			name:        "Empty cache",
			seed:        nil,
			current:     []types.BoundingBox{boxA},
			wantRemoved: 0,
			want:        map[types.BoundingBox]types.Verdict{},
		},
		{
			name: "All boxes still visible",
			seed: map[types.BoundingBox]types.Verdict{
				boxA: types.Recognized,
				boxB: types.NotRecognized,
			},
			current:     []types.BoundingBox{boxA, boxB},
			wantRemoved: 0,
			want: map[types.BoundingBox]types.Verdict{
				boxA: types.Recognized,
				boxB: types.NotRecognized,
			},
		},
		{
			name: "One face left the frame",
			seed: map[types.BoundingBox]types.Verdict{
				boxA: types.Recognized,
				boxB: types.NotRecognized,
				boxC: types.Recognized,
			},
			current:     []types.BoundingBox{boxA, boxC},
			wantRemoved: 1,
			want: map[types.BoundingBox]types.Verdict{
				boxA: types.Recognized,
				boxC: types.Recognized,
			},
		},
		{
			name: "No faces detected",
			seed: map[types.BoundingBox]types.Verdict{
				boxA: types.Recognized,
				boxB: types.NotRecognized,
			},
			current:     nil,
			wantRemoved: 2,
			want:        map[types.BoundingBox]types.Verdict{},
		},
		{
			name: "Overlapping duplicate boxes in the current set",
			seed: map[types.BoundingBox]types.Verdict{
				boxA: types.NotRecognized,
			},
			current:     []types.BoundingBox{boxA, boxA},
			wantRemoved: 0,
			want: map[types.BoundingBox]types.Verdict{
				boxA: types.NotRecognized,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New()
			for box, v := range tt.seed {
				c.Upsert(box, v)
			}

			if removed := c.Reconcile(tt.current); removed != tt.wantRemoved {
				t.Errorf("Reconcile removed %d, want %d", removed, tt.wantRemoved)
			}
			assertEntries(t, c, tt.want)

			// A second pass with the same set must be a no-op.
			if removed := c.Reconcile(tt.current); removed != 0 {
				t.Errorf("Second Reconcile removed %d, want 0", removed)
			}
			assertEntries(t, c, tt.want)
		})
	}
}

// A box reused by a different face in a later cycle overwrites the earlier verdict.
func TestPositionIsIdentity(t *testing.T) {
	c := New()

	// Cycle 1: a known face at boxA.
	c.Reconcile([]types.BoundingBox{boxA})
	c.Upsert(boxA, types.Recognized)

	// Cycle 2: a stranger happens to land on the exact same pixels.
	c.Reconcile([]types.BoundingBox{boxA})
	c.Upsert(boxA, types.NotRecognized)

	assertEntries(t, c, map[types.BoundingBox]types.Verdict{boxA: types.NotRecognized})
}

func TestConcurrentUpsertAndReconcile(t *testing.T) {
	c := New()
	boxes := []types.BoundingBox{boxA, boxB, boxC}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				box := boxes[(w+i)%len(boxes)]
				c.Upsert(box, types.NotRecognized)
				_ = c.Get(box)
			}
		}(w)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			c.Reconcile([]types.BoundingBox{boxA, boxB})
		}
	}()
	wg.Wait()

	c.Reconcile([]types.BoundingBox{boxA, boxB})
	snap := c.Snapshot()
	if _, ok := snap[boxC]; ok {
		t.Error("boxC survived a final reconcile that excluded it")
	}
	if len(snap) > 2 {
		t.Errorf("Expected at most 2 entries, got %d", len(snap))
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	c := New()
	c.Upsert(boxA, types.Recognized)

	snap := c.Snapshot()
	snap[boxB] = types.Recognized
	delete(snap, boxA)

	if c.Get(boxA) != types.Recognized || c.Len() != 1 {
		t.Error("Mutating the snapshot changed the cache")
	}
}

func assertEntries(t *testing.T, c *Cache, want map[types.BoundingBox]types.Verdict) {
	t.Helper()
	got := c.Snapshot()
	if len(got) != len(want) {
		t.Fatalf("Expected %d entries, got %d (%v)", len(want), len(got), got)
	}
	for box, v := range want {
		if got[box] != v {
			t.Errorf("Entry %v = %v, want %v", box, got[box], v)
		}
	}
}
