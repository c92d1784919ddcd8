package hoist

// Hoist flattens root's dependency tree in place: a two-phase, monotone
// algorithm (move up, then clean up) rather than a single move-and-delete
// pass, because hoisting a package into a slot vacated by removing a
// conflicting version could otherwise cause a later package to resolve
// against the wrong version. Snapshot-based cleanup guarantees no package
// is ever hoisted into a position that misleads another package's
// resolution.
//
// shouldHoistInside may be nil, meaning recurse into every node.
func Hoist(root *DependencyNode, shouldHoistInside ShouldHoistInside) {
	snapshotOriginal(root, map[*DependencyNode]bool{})

	for {
		changed := false
		moveUp(root, nil, map[*DependencyNode]bool{}, &changed, shouldHoistInside)
		if !changed {
			break
		}
	}

	removeDuplicates(root, map[string]string{})
	removeUseless(root)
	pruneEmpty(root, map[*DependencyNode]bool{})
}

func snapshotOriginal(n *DependencyNode, visited map[*DependencyNode]bool) {
	if visited[n] {
		return
	}
	visited[n] = true

	n.original = make(map[string]string, len(n.Dependencies))
	for name, child := range n.Dependencies {
		n.original[name] = child.Version
	}
	for _, child := range n.Dependencies {
		snapshotOriginal(child, visited)
	}
}

// moveUp implements Phase A: for each node n with parent p, for each
// (name, child) in n.Dependencies, add (name, child) to p.Dependencies if p
// has no entry for that name yet. The child is left in place under n too —
// cleanup removes it later if it turns out to be redundant or useless.
//
// visited is per-pass only, to bound work when the same node is reachable
// through more than one still-surviving reference; any entries it misses
// this way are picked up on the next outer pass, since the algorithm only
// ever adds references and so converges to a fixed point.
func moveUp(n, parent *DependencyNode, visited map[*DependencyNode]bool, changed *bool, shouldHoistInside ShouldHoistInside) {
	if visited[n] {
		return
	}
	visited[n] = true

	if shouldHoistInside != nil && !shouldHoistInside(n) {
		return
	}

	if parent != nil {
		for name, child := range n.Dependencies {
			if _, exists := parent.Dependencies[name]; !exists {
				parent.Dependencies[name] = child
				*changed = true
			}
		}
	}

	for _, child := range n.Dependencies {
		moveUp(child, n, visited, changed, shouldHoistInside)
	}
}

// removeDuplicates implements Phase B pass 1: delete (name, child) from n's
// map if some strict ancestor of n already provides the same name at the
// same version. provided is name->version supplied by an ancestor, not
// including n itself.
func removeDuplicates(n *DependencyNode, provided map[string]string) {
	for name, child := range n.Dependencies {
		if v, ok := provided[name]; ok && v == child.Version {
			delete(n.Dependencies, name)
		}
	}

	childProvided := make(map[string]string, len(provided)+len(n.Dependencies))
	for k, v := range provided {
		childProvided[k] = v
	}
	for name, child := range n.Dependencies {
		childProvided[name] = child.Version
	}
	for _, child := range n.Dependencies {
		removeDuplicates(child, childProvided)
	}
}

// removeUseless implements Phase B pass 2: delete (name, child) from n's map
// if name@child.Version does not appear in the original (pre-Phase-A)
// requirements of n or any node in the subtree currently rooted at n. A
// dependency hoisted up into some ancestor is necessary there exactly when
// a descendant of that ancestor originally declared it — checking upward
// toward the root, rather than downward into the subtree, would delete
// every dependency moveUp ever hoists, since no ancestor ever originally
// declared what it borrowed from a child.
func removeUseless(root *DependencyNode) {
	memo := map[*DependencyNode]map[string]bool{}
	var required func(n *DependencyNode) map[string]bool
	required = func(n *DependencyNode) map[string]bool {
		if set, ok := memo[n]; ok {
			return set
		}
		set := make(map[string]bool, len(n.original))
		memo[n] = set // guards against cycles before recursing into children
		for name, version := range n.original {
			set[name+"@"+version] = true
		}
		for _, child := range n.Dependencies {
			for k := range required(child) {
				set[k] = true
			}
		}
		return set
	}

	var clean func(n *DependencyNode, visited map[*DependencyNode]bool)
	clean = func(n *DependencyNode, visited map[*DependencyNode]bool) {
		if visited[n] {
			return
		}
		visited[n] = true

		need := required(n)
		for name, child := range n.Dependencies {
			if !need[name+"@"+child.Version] {
				delete(n.Dependencies, name)
			}
		}
		for _, child := range n.Dependencies {
			clean(child, visited)
		}
	}
	clean(root, map[*DependencyNode]bool{})
}

func pruneEmpty(n *DependencyNode, visited map[*DependencyNode]bool) {
	if visited[n] {
		return
	}
	visited[n] = true

	for _, child := range n.Dependencies {
		pruneEmpty(child, visited)
	}
	if len(n.Dependencies) == 0 {
		n.Dependencies = nil
	}
}
