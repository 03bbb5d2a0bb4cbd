package ringlog

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		wantErr  bool
	}{
		{name: "capacity one", capacity: 1},
		{name: "default capacity", capacity: 100},
		{name: "zero capacity", capacity: 0, wantErr: true},
		{name: "negative capacity", capacity: -5, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New[int](tt.capacity)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidCapacity)
				assert.Nil(t, l)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.capacity, l.Cap())
			assert.Empty(t, l.Snapshot())
		})
	}
}

func TestLog_EvictsOldest(t *testing.T) {
	l, err := New[string](3)
	require.NoError(t, err)

	for _, s := range []string{"A", "B", "C", "D"} {
		l.Add(s)
	}

	assert.Equal(t, []string{"B", "C", "D"}, l.Snapshot())
	assert.Equal(t, 3, l.Len())
}

func TestLog_KeepsMostRecentInOrder(t *testing.T) {
	const capacity = 7
	l, err := New[int](capacity)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		l.Add(i)
	}

	want := make([]int, 0, capacity)
	for i := 50 - capacity; i < 50; i++ {
		want = append(want, i)
	}
	assert.Equal(t, want, l.Snapshot())
}

func TestLog_BelowCapacity(t *testing.T) {
	l, err := New[int](10)
	require.NoError(t, err)

	l.Add(1)
	l.Add(2)

	assert.Equal(t, []int{1, 2}, l.Snapshot())
	assert.Equal(t, 2, l.Len())
}

func TestLog_SnapshotReturnsCopy(t *testing.T) {
	l, err := New[int](3)
	require.NoError(t, err)
	l.Add(1)
	l.Add(2)

	snap := l.Snapshot()
	snap[0] = 99

	assert.Equal(t, []int{1, 2}, l.Snapshot(), "modifying a snapshot should not affect the log")
}

func TestLog_EvictHook(t *testing.T) {
	var evicted []string
	l, err := New[string](2, WithEvictHook(func(s string) {
		evicted = append(evicted, s)
	}))
	require.NoError(t, err)

	l.Add("a")
	l.Add("b")
	assert.Empty(t, evicted)

	l.Add("c")
	l.Add("d")
	assert.Equal(t, []string{"a", "b"}, evicted)
	assert.Equal(t, []string{"c", "d"}, l.Snapshot())
}

func TestLog_Concurrent(t *testing.T) {
	const (
		capacity   = 100
		writers    = 10
		perWriter  = 500
		totalItems = writers * perWriter
	)

	var (
		evictMu sync.Mutex
		evicted = make(map[int]bool)
	)
	l, err := New[int](capacity, WithEvictHook(func(i int) {
		evictMu.Lock()
		defer evictMu.Unlock()
		evicted[i] = true
	}))
	require.NoError(t, err)

	var wg sync.WaitGroup
	done := make(chan struct{})

	// Reader snapshotting while writes are in flight.
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			select {
			case <-done:
				return
			default:
			}
			snap := l.Snapshot()
			assert.LessOrEqual(t, len(snap), capacity)
			seen := make(map[int]bool, len(snap))
			for _, v := range snap {
				assert.False(t, seen[v], "duplicate item %d in snapshot", v)
				seen[v] = true
			}
		}
	}()

	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				l.Add(w*perWriter + i)
			}
		}(w)
	}

	wg.Wait()
	close(done)
	<-readerDone

	snap := l.Snapshot()
	require.Len(t, snap, capacity)

	// Every item is either retained or was evicted exactly once.
	evictMu.Lock()
	defer evictMu.Unlock()
	assert.Len(t, evicted, totalItems-capacity)
	for _, v := range snap {
		assert.False(t, evicted[v], "retained item %d was also reported evicted", v)
	}
}
