// Package buildgraph assembles unitdef.Unit definitions into a directed
// graph of build nodes and schedules their execution with bounded
// concurrency, honoring dependency order.
package buildgraph

import (
	"strings"

	"github.com/nozem-build/nozem/internal/nozemerr"
	"github.com/nozem-build/nozem/internal/unitdef"
)

// Rooter is implemented by Unit variants that declare a filesystem root,
// used for directory-based target selection.
type Rooter interface {
	Root() string
}

// Node is one buildable entity in the graph plus its resolved edges.
// Dependencies are the nodes this node's build() must wait on;
// Dependents are the nodes waiting on this one.
type Node struct {
	Unit         unitdef.Unit
	Dependencies []*Node
	Dependents   []*Node
}

func (n *Node) ID() string { return n.Unit.ID() }

// Graph is the full set of nodes loaded from a unit-definitions document,
// keyed by identifier.
type Graph struct {
	Nodes map[string]*Node
}

// Load builds one Node per unit in doc and wires dependency edges for
// every link-npm and copy dependency (the two variants that reference
// another unit by identifier). External-npm and os-tool dependencies are
// leaf inputs, not graph edges.
func Load(doc unitdef.Document) (*Graph, error) {
	g := &Graph{Nodes: make(map[string]*Node, len(doc.Units))}
	for _, u := range doc.Units {
		if _, exists := g.Nodes[u.ID()]; exists {
			return nil, nozemerr.ConfigErrorf("duplicate unit identifier %q", u.ID())
		}
		g.Nodes[u.ID()] = &Node{Unit: u}
	}

	if len(g.Nodes) == 0 {
		return nil, &nozemerr.GraphError{Kind: nozemerr.GraphEmpty}
	}

	for _, node := range g.Nodes {
		for _, dep := range node.Unit.Deps() {
			producerID, ok := producerIdentifier(dep)
			if !ok {
				continue
			}
			producer, found := g.Nodes[producerID]
			if !found {
				return nil, &nozemerr.GraphError{
					Kind:        nozemerr.GraphMissingDependency,
					Identifiers: []string{node.ID(), producerID},
				}
			}
			node.Dependencies = append(node.Dependencies, producer)
			producer.Dependents = append(producer.Dependents, node)
		}
	}

	if cyc := findCycle(g); len(cyc) > 0 {
		return nil, &nozemerr.GraphError{Kind: nozemerr.GraphCycle, Identifiers: cyc}
	}

	return g, nil
}

func producerIdentifier(dep unitdef.DependencyEdge) (string, bool) {
	switch d := dep.(type) {
	case unitdef.LinkNpmEdge:
		return d.NodeID, true
	case unitdef.CopyEdge:
		return d.NodeID, true
	default:
		return "", false
	}
}

// findCycle returns the identifiers of a cycle if one exists, or nil.
func findCycle(g *Graph) []string {
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(g.Nodes))
	var stack []string

	var visit func(n *Node) []string
	visit = func(n *Node) []string {
		color[n.ID()] = gray
		stack = append(stack, n.ID())
		for _, dep := range n.Dependencies {
			switch color[dep.ID()] {
			case gray:
				idx := indexOf(stack, dep.ID())
				return append(append([]string{}, stack[idx:]...), dep.ID())
			case white:
				if cyc := visit(dep); len(cyc) > 0 {
					return cyc
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[n.ID()] = black
		return nil
	}

	for _, n := range g.Nodes {
		if color[n.ID()] == white {
			if cyc := visit(n); len(cyc) > 0 {
				return cyc
			}
		}
	}
	return nil
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return 0
}

// SelectAll returns every node in the graph.
func SelectAll(g *Graph) []*Node {
	out := make([]*Node, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		out = append(out, n)
	}
	return out
}

// SelectByIdentifiers returns the named nodes.
func SelectByIdentifiers(g *Graph, identifiers []string) ([]*Node, error) {
	out := make([]*Node, 0, len(identifiers))
	for _, id := range identifiers {
		n, ok := g.Nodes[id]
		if !ok {
			return nil, nozemerr.ConfigErrorf("unknown unit identifier %q", id)
		}
		out = append(out, n)
	}
	return out, nil
}

// SelectByDirectories returns every node whose Root (for Rooter-typed
// units) falls within one of the given directories.
func SelectByDirectories(g *Graph, dirs []string) []*Node {
	var out []*Node
	for _, n := range g.Nodes {
		rooter, ok := n.Unit.(Rooter)
		if !ok {
			continue
		}
		root := rooter.Root()
		for _, dir := range dirs {
			if root == dir || strings.HasPrefix(root, dir+"/") {
				out = append(out, n)
				break
			}
		}
	}
	return out
}

// IncomingClosure returns seed plus every node transitively depended
// upon by seed (what must build before seed can).
func IncomingClosure(seed []*Node) []*Node {
	return closure(seed, func(n *Node) []*Node { return n.Dependencies })
}

// OutgoingClosure returns seed plus every node that transitively depends
// on seed (what becomes stale if seed rebuilds).
func OutgoingClosure(seed []*Node) []*Node {
	return closure(seed, func(n *Node) []*Node { return n.Dependents })
}

func closure(seed []*Node, next func(*Node) []*Node) []*Node {
	seen := make(map[string]*Node, len(seed))
	var queue []*Node
	queue = append(queue, seed...)
	for _, n := range seed {
		seen[n.ID()] = n
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, m := range next(n) {
			if _, ok := seen[m.ID()]; !ok {
				seen[m.ID()] = m
				queue = append(queue, m)
			}
		}
	}
	out := make([]*Node, 0, len(seen))
	for _, n := range seen {
		out = append(out, n)
	}
	return out
}

// Union merges node sets by identifier.
func Union(sets ...[]*Node) []*Node {
	seen := make(map[string]*Node)
	for _, set := range sets {
		for _, n := range set {
			seen[n.ID()] = n
		}
	}
	out := make([]*Node, 0, len(seen))
	for _, n := range seen {
		out = append(out, n)
	}
	return out
}

func nodeIDs(nodes []*Node) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID()
	}
	return ids
}
