package buildgraph

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nozem-build/nozem/internal/unitdef"
)

func chainGraph(t *testing.T) *Graph {
	t.Helper()
	doc := unitdef.Document{Units: []unitdef.Unit{
		unit("base"),
		unit("mid", unitdef.LinkNpmEdge{NodeID: "base"}),
		unit("top", unitdef.LinkNpmEdge{NodeID: "mid"}),
	}}
	g, err := Load(doc)
	require.NoError(t, err)
	return g
}

func TestQueueBuildsInDependencyOrder(t *testing.T) {
	g := chainGraph(t)

	var mu sync.Mutex
	var order []string
	build := func(ctx context.Context, n *Node) error {
		mu.Lock()
		order = append(order, n.ID())
		mu.Unlock()
		return nil
	}

	q := NewQueue(SelectAll(g), 4, Bail, build)
	result, err := q.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Failed)

	pos := func(id string) int {
		for i, v := range order {
			if v == id {
				return i
			}
		}
		return -1
	}
	assert.Less(t, pos("base"), pos("mid"))
	assert.Less(t, pos("mid"), pos("top"))
}

func TestQueueRespectsConcurrencyLimit(t *testing.T) {
	doc := unitdef.Document{Units: []unitdef.Unit{unit("a"), unit("b"), unit("c"), unit("d")}}
	g, err := Load(doc)
	require.NoError(t, err)

	var active, maxActive int32
	release := make(chan struct{})
	started := make(chan struct{}, 4)

	build := func(ctx context.Context, n *Node) error {
		cur := atomic.AddInt32(&active, 1)
		for {
			old := atomic.LoadInt32(&maxActive)
			if cur <= old || atomic.CompareAndSwapInt32(&maxActive, old, cur) {
				break
			}
		}
		started <- struct{}{}
		<-release
		atomic.AddInt32(&active, -1)
		return nil
	}

	q := NewQueue(SelectAll(g), 2, Bail, build)
	done := make(chan struct{})
	go func() {
		_, _ = q.Run(context.Background())
		close(done)
	}()

	// Wait for the concurrency limit to be saturated before releasing.
	<-started
	<-started
	close(release)
	<-done

	assert.EqualValues(t, 2, maxActive)
}

func TestQueueBailStopsSchedulingNewWork(t *testing.T) {
	doc := unitdef.Document{Units: []unitdef.Unit{
		unit("base"),
		unit("dependent", unitdef.LinkNpmEdge{NodeID: "base"}),
	}}
	g, err := Load(doc)
	require.NoError(t, err)

	var built []string
	var mu sync.Mutex
	build := func(ctx context.Context, n *Node) error {
		mu.Lock()
		built = append(built, n.ID())
		mu.Unlock()
		if n.ID() == "base" {
			return errors.New("boom")
		}
		return nil
	}

	q := NewQueue(SelectAll(g), 4, Bail, build)
	_, err = q.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"base"}, built)
}

func TestQueueContinuePrunesDownstreamOfFailure(t *testing.T) {
	g := chainGraph(t)

	build := func(ctx context.Context, n *Node) error {
		if n.ID() == "base" {
			return errors.New("boom")
		}
		return nil
	}

	q := NewQueue(SelectAll(g), 4, Continue, build)
	result, err := q.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"base"}, result.Failed)
	assert.Equal(t, 2, result.Pruned)
}

func TestQueueContinuePrunesSingleDependentOfFailedNode(t *testing.T) {
	doc := unitdef.Document{Units: []unitdef.Unit{
		unit("base"),
		unit("dependent", unitdef.LinkNpmEdge{NodeID: "base"}),
	}}
	g, err := Load(doc)
	require.NoError(t, err)

	build := func(ctx context.Context, n *Node) error {
		if n.ID() == "base" {
			return errors.New("boom")
		}
		return nil
	}

	q := NewQueue(SelectAll(g), 4, Continue, build)
	result, err := q.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"base"}, result.Failed)
	assert.Equal(t, 1, result.Pruned)
}
