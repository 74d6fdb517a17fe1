package inmemorystore

import (
	"fmt"
	"sync"
	"testing"

	"github.com/specialistvlad/nodegraph/internal/node"
	"github.com/specialistvlad/nodegraph/internal/resultstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAndGet(t *testing.T) {
	s := New()

	// A node that was never run has no result and is pending.
	_, ok := s.Get("a")
	assert.False(t, ok)
	assert.Equal(t, node.StatusPending, resultstore.Status(s, "a"))

	s.Set(node.Result{NodeID: "a", Status: node.StatusRunning})
	assert.Equal(t, node.StatusRunning, resultstore.Status(s, "a"))

	// Last write wins.
	s.Set(node.Result{NodeID: "a", Status: node.StatusSuccess, Value: map[string]any{"x": 5}})
	r, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, node.StatusSuccess, r.Status)
	assert.Equal(t, map[string]any{"x": 5}, r.Value)
}

func TestRemoveAndClearAll(t *testing.T) {
	s := New()
	s.Set(node.Result{NodeID: "a", Status: node.StatusSuccess})
	s.Set(node.Result{NodeID: "b", Status: node.StatusError})

	s.Remove("a")
	s.Remove("does-not-exist")
	_, ok := s.Get("a")
	assert.False(t, ok)
	assert.Len(t, s.Snapshot(), 1)

	s.ClearAll()
	assert.Empty(t, s.Snapshot())
}

func TestUpdate(t *testing.T) {
	s := New()

	t.Run("creates when absent", func(t *testing.T) {
		r, ok := s.Update("a", func(cur node.Result, exists bool) (node.Result, bool) {
			assert.False(t, exists)
			return node.Result{Status: node.StatusRunning}, true
		})
		require.True(t, ok)
		assert.Equal(t, "a", r.NodeID)
		assert.Equal(t, node.StatusRunning, resultstore.Status(s, "a"))
	})

	t.Run("keep=false leaves the store untouched", func(t *testing.T) {
		r, ok := s.Update("a", func(cur node.Result, exists bool) (node.Result, bool) {
			return node.Result{Status: node.StatusError}, false
		})
		require.True(t, ok)
		assert.Equal(t, node.StatusRunning, r.Status)
		assert.Equal(t, node.StatusRunning, resultstore.Status(s, "a"))
	})

	t.Run("values holding maps can be swapped", func(t *testing.T) {
		s.Set(node.Result{NodeID: "m", Status: node.StatusSuccess, Value: map[string]any{"k": "v"}})
		assert.NotPanics(t, func() {
			s.Update("m", func(cur node.Result, _ bool) (node.Result, bool) {
				cur.Value = map[string]any{"k": "w"}
				return cur, true
			})
		})
		r, _ := s.Get("m")
		assert.Equal(t, map[string]any{"k": "w"}, r.Value)
	})
}

// TestStore_ConcurrentAccess verifies that the store can be safely accessed by
// multiple goroutines simultaneously without data races or lost writes.
func TestStore_ConcurrentAccess(t *testing.T) {
	s := New()
	numGoroutines := 100
	var wg sync.WaitGroup

	// Phase 1: Concurrent writes to unique node IDs.
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(i int) {
			defer wg.Done()
			s.Set(node.Result{NodeID: fmt.Sprintf("node-%d", i), Status: node.StatusSuccess, Value: i})
		}(i)
	}
	wg.Wait()

	// Phase 2: Concurrent reads.
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(i int) {
			defer wg.Done()
			r, ok := s.Get(fmt.Sprintf("node-%d", i))
			assert.True(t, ok)
			assert.Equal(t, i, r.Value, "mismatched value for node %d", i)
		}(i)
	}
	wg.Wait()

	assert.Len(t, s.Snapshot(), numGoroutines)
}

// TestStore_ConcurrentUpdateSameKey checks that read-modify-write on a single
// key never loses an increment.
func TestStore_ConcurrentUpdateSameKey(t *testing.T) {
	s := New()
	numGoroutines := 100
	var wg sync.WaitGroup

	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			s.Update("counter", func(cur node.Result, ok bool) (node.Result, bool) {
				n := 0
				if ok {
					n = cur.Value.(int)
				}
				cur.Value = n + 1
				return cur, true
			})
		}()
	}
	wg.Wait()

	r, ok := s.Get("counter")
	require.True(t, ok)
	assert.Equal(t, numGoroutines, r.Value)
}
