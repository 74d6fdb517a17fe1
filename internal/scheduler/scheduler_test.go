package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/specialistvlad/nodegraph/internal/graphstore"
	"github.com/specialistvlad/nodegraph/internal/inmemorystore"
	"github.com/specialistvlad/nodegraph/internal/node"
	"github.com/specialistvlad/nodegraph/internal/resolver"
	"github.com/specialistvlad/nodegraph/internal/resultstore"
	"github.com/specialistvlad/nodegraph/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	graph   *graphstore.Store
	results *inmemorystore.Store
	exec    *testutil.RecordingExecutor
	sched   *Scheduler
	ctx     context.Context
	logs    *testutil.SafeBuffer
}

func newHarness(t *testing.T, nodes []*node.Node, edges []node.Edge, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		graph:   graphstore.New(),
		results: inmemorystore.New(),
		exec:    testutil.NewRecordingExecutor(),
	}
	for _, n := range nodes {
		require.NoError(t, h.graph.AddNode(n))
	}
	require.NoError(t, h.graph.SetEdges(edges))
	h.ctx, h.logs = testutil.Context(t)
	h.sched = New(h.graph, h.results, resolver.New(h.results, h.graph), h.exec, opts...)
	t.Cleanup(func() {
		if t.Failed() {
			t.Logf("--- Log output for %s ---\n%s", t.Name(), h.logs.String())
		}
	})
	return h
}

func nodes(ids ...string) []*node.Node {
	out := make([]*node.Node, 0, len(ids))
	for _, id := range ids {
		out = append(out, testutil.NewNode(id))
	}
	return out
}

func e(source, target string) node.Edge {
	return node.Edge{Source: source, Target: target}
}

func diamond() []node.Edge {
	return []node.Edge{e("A", "B"), e("A", "C"), e("B", "D"), e("C", "D")}
}

func (h *harness) status(id string) node.Status {
	return resultstore.Status(h.results, id)
}

func TestRunNode_ChainPropagation(t *testing.T) {
	h := newHarness(t, nodes("A", "B", "C"), []node.Edge{e("A", "B"), e("B", "C")})

	require.NoError(t, h.sched.RunNode(h.ctx, "A"))

	assert.Equal(t, []string{"A", "B", "C"}, h.exec.Calls())
	for _, id := range []string{"A", "B", "C"} {
		assert.Equal(t, node.StatusSuccess, h.status(id), "node %s", id)
	}
}

func TestRunNode_FailStop(t *testing.T) {
	h := newHarness(t, nodes("A", "B", "C"), []node.Edge{e("A", "B"), e("B", "C")})
	h.exec.Fail["B"] = errors.New("HTTP 500: Internal Server Error")

	require.NoError(t, h.sched.RunNode(h.ctx, "A"))

	assert.Equal(t, []string{"A", "B"}, h.exec.Calls())
	res, ok := h.results.Get("B")
	require.True(t, ok)
	assert.Equal(t, node.StatusError, res.Status)
	assert.Equal(t, "HTTP 500: Internal Server Error", res.Error)

	_, ok = h.results.Get("C")
	assert.False(t, ok, "dependents of a failed node keep no result")
}

func TestRunNode_InvalidDownstreamNode(t *testing.T) {
	for _, workers := range []int{1, 3} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			ns := []*node.Node{
				testutil.NewNode("A"),
				node.New("B", "", &node.APIConfig{URL: ""}),
				testutil.NewNode("C"),
			}
			h := newHarness(t, ns, []node.Edge{e("A", "B"), e("B", "C")}, WithWorkers(workers))

			require.NoError(t, h.sched.StartExecution(h.ctx, "A"))

			assert.Equal(t, []string{"A"}, h.exec.Calls(), "invalid node must not reach the executor")
			res, ok := h.results.Get("B")
			require.True(t, ok)
			assert.Equal(t, node.StatusError, res.Status)
			assert.Contains(t, res.Error, "invalid node configuration")
			assert.Contains(t, res.Error, "url is required")

			_, ok = h.results.Get("C")
			assert.False(t, ok)
		})
	}
}

func TestRunNode_NodeIDInExecutorContext(t *testing.T) {
	h := newHarness(t, nodes("A", "B"), []node.Edge{e("A", "B")})
	var mu sync.Mutex
	seen := map[string]string{}
	h.exec.Hook = func(ctx context.Context, id string) {
		got, _ := NodeIDFromContext(ctx)
		mu.Lock()
		defer mu.Unlock()
		seen[id] = got
	}

	require.NoError(t, h.sched.RunNode(h.ctx, "A"))

	assert.Equal(t, map[string]string{"A": "A", "B": "B"}, seen)
	_, ok := NodeIDFromContext(h.ctx)
	assert.False(t, ok)
}

func TestRunNode_JoinSemantics(t *testing.T) {
	t.Run("diamond runs the join node last", func(t *testing.T) {
		h := newHarness(t, nodes("A", "B", "C", "D"), diamond())

		require.NoError(t, h.sched.RunNode(h.ctx, "A"))

		assert.Equal(t, []string{"A", "B", "C", "D"}, h.exec.Calls())
		assert.Equal(t, node.StatusSuccess, h.status("D"))
	})

	t.Run("join node is not ready while a branch is pending", func(t *testing.T) {
		h := newHarness(t, nodes("A", "B", "C", "D"), diamond())
		h.results.Set(node.Result{NodeID: "A", Status: node.StatusSuccess})

		assert.Equal(t, []string{"B", "C"}, h.sched.ReadyNodeIDs("A"))

		h.results.Set(node.Result{NodeID: "B", Status: node.StatusSuccess})
		assert.Empty(t, h.sched.ReadyNodeIDs("B"))

		h.results.Set(node.Result{NodeID: "C", Status: node.StatusError})
		assert.Empty(t, h.sched.ReadyNodeIDs("B"))

		h.results.Set(node.Result{NodeID: "C", Status: node.StatusSuccess})
		assert.Equal(t, []string{"D"}, h.sched.ReadyNodeIDs("B"))
	})

	t.Run("failed branch keeps join node pending", func(t *testing.T) {
		h := newHarness(t, nodes("A", "B", "C", "D"), diamond())
		h.exec.Fail["C"] = errors.New("boom")

		require.NoError(t, h.sched.RunNode(h.ctx, "A"))

		assert.Equal(t, []string{"A", "B", "C"}, h.exec.Calls())
		assert.Equal(t, node.StatusPending, h.status("D"))
	})
}

func TestRunNode_UnknownNode(t *testing.T) {
	h := newHarness(t, nil, nil)

	require.NoError(t, h.sched.RunNode(h.ctx, "ghost"))

	res, ok := h.results.Get("ghost")
	require.True(t, ok)
	assert.Equal(t, node.StatusError, res.Status)
	assert.Equal(t, "node not found", res.Error)
	assert.Empty(t, h.exec.Calls())
}

func TestRunNode_RunningIsVisibleBeforeWork(t *testing.T) {
	h := newHarness(t, nodes("A"), nil)
	var seen node.Status
	h.exec.Hook = func(_ context.Context, id string) {
		seen = h.status(id)
	}

	require.NoError(t, h.sched.RunNode(h.ctx, "A"))

	assert.Equal(t, node.StatusRunning, seen)
	assert.Equal(t, node.StatusSuccess, h.status("A"))
}

func TestRunNode_ResolvesTemplates(t *testing.T) {
	b := testutil.NewNode("B", "url", "https://api/{{A.result.id}}/{{A.result.missing}}")
	h := newHarness(t, []*node.Node{testutil.NewNode("A"), b}, []node.Edge{e("A", "B")})

	require.NoError(t, h.sched.RunNode(h.ctx, "A"))

	assert.Equal(t, "https://api/A/{{A.result.missing}}", h.exec.Config("B")["url"])

	// The stored node keeps its templates.
	stored, _ := h.graph.Node("B")
	assert.Equal(t, "https://api/{{A.result.id}}/{{A.result.missing}}", stored.Config.(*node.GenericConfig).Fields["url"])
}

func TestRunNode_TimestampsFromClock(t *testing.T) {
	start := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	h := newHarness(t, nodes("A"), nil, WithClock(testutil.FixedClock(start, 25*time.Millisecond)))

	require.NoError(t, h.sched.RunNode(h.ctx, "A"))

	res, _ := h.results.Get("A")
	assert.Equal(t, start, res.StartedAt)
	assert.Equal(t, int64(25), res.DurationMs())
}

func TestRunNode_ExecutorPanic(t *testing.T) {
	h := newHarness(t, nodes("A", "B"), []node.Edge{e("A", "B")})
	h.exec.Hook = func(_ context.Context, id string) {
		if id == "A" {
			panic("kaboom")
		}
	}

	require.NoError(t, h.sched.RunNode(h.ctx, "A"))

	res, _ := h.results.Get("A")
	assert.Equal(t, node.StatusError, res.Status)
	assert.Contains(t, res.Error, "kaboom")
	assert.Equal(t, node.StatusPending, h.status("B"))
}

func TestRunNode_Cancellation(t *testing.T) {
	h := newHarness(t, nodes("A", "B", "C"), []node.Edge{e("A", "B"), e("B", "C")})
	ctx, cancel := context.WithCancel(h.ctx)
	defer cancel()
	h.exec.Hook = func(_ context.Context, id string) {
		if id == "B" {
			cancel()
		}
	}

	err := h.sched.RunNode(ctx, "A")

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"A", "B"}, h.exec.Calls())
	assert.Equal(t, node.StatusPending, h.status("C"))
}

func TestStartExecution_ClearsResults(t *testing.T) {
	h := newHarness(t, nodes("A", "B", "Z"), []node.Edge{e("A", "B")})
	h.results.Set(node.Result{NodeID: "Z", Status: node.StatusSuccess})
	h.results.Set(node.Result{NodeID: "B", Status: node.StatusError, Error: "old"})

	require.NoError(t, h.sched.StartExecution(h.ctx, "A"))

	_, ok := h.results.Get("Z")
	assert.False(t, ok)
	assert.Equal(t, node.StatusSuccess, h.status("B"))
	assert.Contains(t, h.logs.String(), "Starting execution")
	assert.Contains(t, h.logs.String(), "Execution finished")
}

func TestStartAll(t *testing.T) {
	h := newHarness(t, nodes("X", "Y", "Z"), []node.Edge{e("X", "Z"), e("Y", "Z")})

	require.NoError(t, h.sched.StartAll(h.ctx))

	assert.Equal(t, []string{"X", "Y", "Z"}, h.exec.Calls())
}

func TestObservers(t *testing.T) {
	var mu sync.Mutex
	var events []Event
	obs := ObserverFunc(func(_ context.Context, ev Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	})
	h := newHarness(t, nodes("A", "B"), []node.Edge{e("A", "B")}, WithObserver(obs))

	ctx := WithRunID(h.ctx, "run-1")
	require.NoError(t, h.sched.RunNode(ctx, "A"))

	require.Len(t, events, 4)
	var got []string
	for _, ev := range events {
		assert.Equal(t, "run-1", ev.RunID)
		require.NotNil(t, ev.Node)
		got = append(got, ev.Node.ID+":"+string(ev.Result.Status))
	}
	assert.Equal(t, []string{"A:running", "A:success", "B:running", "B:success"}, got)
}

func TestRunNode_GeneratesRunID(t *testing.T) {
	var runIDs []string
	obs := ObserverFunc(func(_ context.Context, ev Event) { runIDs = append(runIDs, ev.RunID) })
	h := newHarness(t, nodes("A"), nil, WithObserver(obs))

	require.NoError(t, h.sched.RunNode(h.ctx, "A"))

	require.Len(t, runIDs, 2)
	assert.NotEmpty(t, runIDs[0])
	assert.Equal(t, runIDs[0], runIDs[1])
}

func TestBlockedPropagation(t *testing.T) {
	t.Run("disabled by default", func(t *testing.T) {
		h := newHarness(t, nodes("A", "B", "C"), []node.Edge{e("A", "B"), e("B", "C")})
		h.exec.Fail["A"] = errors.New("boom")

		require.NoError(t, h.sched.RunNode(h.ctx, "A"))

		assert.Equal(t, node.StatusPending, h.status("B"))
		assert.Equal(t, node.StatusPending, h.status("C"))
	})

	t.Run("marks every descendant", func(t *testing.T) {
		h := newHarness(t, nodes("A", "B", "C", "D"), diamond(), WithBlockedPropagation(true))
		h.exec.Fail["B"] = errors.New("boom")

		require.NoError(t, h.sched.RunNode(h.ctx, "A"))

		assert.Equal(t, node.StatusError, h.status("B"))
		assert.Equal(t, node.StatusSuccess, h.status("C"))
		res, _ := h.results.Get("D")
		assert.Equal(t, node.StatusBlocked, res.Status)
		assert.Equal(t, `upstream node "B" failed`, res.Error)
		assert.NotContains(t, h.exec.Calls(), "D")
	})
}

func TestParallel(t *testing.T) {
	t.Run("independent branches overlap and the join waits", func(t *testing.T) {
		h := newHarness(t, nodes("A", "B", "C", "D"), diamond(), WithWorkers(4))
		h.exec.Delay = 50 * time.Millisecond

		require.NoError(t, h.sched.RunNode(h.ctx, "A"))

		for _, id := range []string{"A", "B", "C", "D"} {
			assert.Equal(t, node.StatusSuccess, h.status(id), "node %s", id)
		}
		assert.GreaterOrEqual(t, h.exec.MaxConcurrency(), 2)

		recB, _ := h.exec.Record("B")
		recC, _ := h.exec.Record("C")
		recD, _ := h.exec.Record("D")
		assert.False(t, recD.Start.Before(recB.End), "D started before B finished")
		assert.False(t, recD.Start.Before(recC.End), "D started before C finished")
		assert.Len(t, h.exec.Calls(), 4, "every node runs exactly once")
	})

	t.Run("worker limit is respected", func(t *testing.T) {
		ids := []string{"root", "n1", "n2", "n3", "n4", "n5"}
		var edges []node.Edge
		for _, id := range ids[1:] {
			edges = append(edges, e("root", id))
		}
		h := newHarness(t, nodes(ids...), edges, WithWorkers(2))
		h.exec.Delay = 20 * time.Millisecond

		require.NoError(t, h.sched.RunNode(h.ctx, "root"))

		assert.Len(t, h.exec.Calls(), 6)
		assert.LessOrEqual(t, h.exec.MaxConcurrency(), 2)
	})

	t.Run("a chain reuses the freed slot", func(t *testing.T) {
		ids := []string{"n1", "n2", "n3", "n4", "n5", "n6"}
		var edges []node.Edge
		for i := 1; i < len(ids); i++ {
			edges = append(edges, e(ids[i-1], ids[i]))
		}
		h := newHarness(t, nodes(ids...), edges, WithWorkers(2))

		require.NoError(t, h.sched.RunNode(h.ctx, "n1"))

		assert.Equal(t, ids, h.exec.Calls())
		assert.Equal(t, 1, h.exec.MaxConcurrency())
	})

	t.Run("stale results inside the run are not trusted", func(t *testing.T) {
		h := newHarness(t, nodes("A", "B", "C"), []node.Edge{e("A", "B"), e("B", "C")}, WithWorkers(4))
		h.results.Set(node.Result{NodeID: "B", Status: node.StatusSuccess})
		h.results.Set(node.Result{NodeID: "C", Status: node.StatusSuccess})
		h.exec.Delay = 10 * time.Millisecond

		require.NoError(t, h.sched.RunNode(h.ctx, "A"))

		assert.Equal(t, []string{"A", "B", "C"}, h.exec.Calls())
	})

	t.Run("failure stops only its branch", func(t *testing.T) {
		h := newHarness(t, nodes("A", "B", "C", "D"), diamond(), WithWorkers(4), WithBlockedPropagation(true))
		h.exec.Fail["B"] = errors.New("boom")

		require.NoError(t, h.sched.StartAll(h.ctx))

		assert.Equal(t, node.StatusError, h.status("B"))
		assert.Equal(t, node.StatusSuccess, h.status("C"))
		assert.Equal(t, node.StatusBlocked, h.status("D"))
	})

	t.Run("cancellation stops dispatching", func(t *testing.T) {
		h := newHarness(t, nodes("A", "B", "C"), []node.Edge{e("A", "B"), e("B", "C")}, WithWorkers(2))
		ctx, cancel := context.WithCancel(h.ctx)
		defer cancel()
		h.exec.Hook = func(_ context.Context, id string) {
			if id == "A" {
				cancel()
			}
		}

		err := h.sched.RunNode(ctx, "A")

		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, []string{"A"}, h.exec.Calls())
	})
}
