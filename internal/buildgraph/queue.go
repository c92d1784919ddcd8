package buildgraph

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// FailureMode controls how the queue reacts to a build() failure.
type FailureMode int

const (
	// Bail rejects the overall run on the first failure. In-flight tasks
	// still run to completion; no new tasks are scheduled.
	Bail FailureMode = iota
	// Continue marks the failing node and everything reachable from it
	// as pruned, and keeps building the rest of the graph.
	Continue
)

// BuildFunc builds a single node. Its error, if any, is what triggers
// bail/continue handling.
type BuildFunc func(ctx context.Context, n *Node) error

// Result summarizes a completed (non-bailed) run.
type Result struct {
	Failed []string
	Pruned int
	// Stuck maps a node identifier that was never scheduled to the
	// identifiers of its dependencies that never became available.
	// Populated only when the run didn't cover the whole selection
	// (diagnostic only, not itself a failure).
	Stuck map[string][]string
}

// Queue schedules Nodes' builds with bounded concurrency, honoring
// dependency order: a node's build is never launched until every
// dependency within the selection has completed successfully.
type Queue struct {
	nodes       []*Node
	concurrency int
	mode        FailureMode
	build       BuildFunc
}

// NewQueue builds a Queue over nodes (typically the incoming closure of a
// target selection) with the given concurrency limit and failure mode.
func NewQueue(nodes []*Node, concurrency int, mode FailureMode, build BuildFunc) *Queue {
	return &Queue{nodes: nodes, concurrency: concurrency, mode: mode, build: build}
}

type completion struct {
	node *Node
	err  error
}

// Run drives the scheduler to completion. Dependencies outside the
// selected node set are assumed already satisfied (built or cached by an
// earlier phase) and never block scheduling.
//
// Once ctx is canceled no new builds are launched; builds already in
// flight finish, and Run returns ctx's error if a buildable node was left
// unlaunched.
//
// errgroup.Group supplies only the final synchronized wait and
// first-error capture for bail mode; it is deliberately not used to
// cancel a shared context, since continue mode must let sibling builds
// run to completion even after one has failed. Plain ctx (not the
// group's derived context) is passed to build for that reason;
// semaphore.Weighted alone bounds concurrency.
func (q *Queue) Run(ctx context.Context) (*Result, error) {
	nodeSet := make(map[string]*Node, len(q.nodes))
	for _, n := range q.nodes {
		nodeSet[n.ID()] = n
	}

	available := make(map[string]bool, len(nodeSet))
	enqueued := make(map[string]bool, len(nodeSet))
	failed := make(map[string]bool)
	pruned := 0

	sem := semaphore.NewWeighted(int64(q.concurrency))
	g, _ := errgroup.WithContext(ctx)
	completions := make(chan completion, len(nodeSet))

	var buildable []*Node
	enqueueIfReady := func(n *Node) {
		if enqueued[n.ID()] {
			return
		}
		for _, dep := range n.Dependencies {
			if _, inSet := nodeSet[dep.ID()]; !inSet {
				continue
			}
			if !available[dep.ID()] {
				return
			}
		}
		enqueued[n.ID()] = true
		buildable = append(buildable, n)
	}

	for _, n := range q.nodes {
		enqueueIfReady(n)
	}

	active := 0
	bailed := false

	for len(buildable) > 0 || active > 0 {
		for !bailed && ctx.Err() == nil && len(buildable) > 0 {
			if !sem.TryAcquire(1) {
				break
			}
			node := buildable[0]
			buildable = buildable[1:]
			active++
			g.Go(func() error {
				err := q.build(ctx, node)
				sem.Release(1)
				completions <- completion{node: node, err: err}
				return err
			})
		}

		if active == 0 {
			break
		}

		c := <-completions
		active--

		if c.err != nil {
			failed[c.node.ID()] = true
			switch q.mode {
			case Bail:
				bailed = true
			case Continue:
				for _, p := range OutgoingClosure([]*Node{c.node}) {
					if p.ID() == c.node.ID() {
						continue
					}
					if _, inSet := nodeSet[p.ID()]; !inSet {
						continue
					}
					if !enqueued[p.ID()] {
						enqueued[p.ID()] = true
						pruned++
					}
				}
			}
			continue
		}

		if bailed {
			continue
		}

		available[c.node.ID()] = true
		for _, dependent := range c.node.Dependents {
			if _, inSet := nodeSet[dependent.ID()]; inSet {
				enqueueIfReady(dependent)
			}
		}
	}

	waitErr := g.Wait()
	if q.mode == Bail {
		if waitErr != nil {
			return nil, waitErr
		}
	}
	if err := ctx.Err(); err != nil && len(buildable) > 0 {
		return nil, err
	}

	result := &Result{Pruned: pruned}
	for id := range failed {
		result.Failed = append(result.Failed, id)
	}

	if len(enqueued) < len(nodeSet) {
		result.Stuck = make(map[string][]string)
		for _, n := range q.nodes {
			if enqueued[n.ID()] {
				continue
			}
			var unavailable []string
			for _, dep := range n.Dependencies {
				if _, inSet := nodeSet[dep.ID()]; inSet && !available[dep.ID()] {
					unavailable = append(unavailable, dep.ID())
				}
			}
			result.Stuck[n.ID()] = unavailable
		}
	}

	return result, nil
}
