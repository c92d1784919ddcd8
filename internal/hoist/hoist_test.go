package hoist

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func chain(names ...[2]string) *DependencyNode {
	root := NewDependencyNode(names[0][0], names[0][1])
	cur := root
	for _, nv := range names[1:] {
		child := NewDependencyNode(nv[0], nv[1])
		cur.AddDependency(child)
		cur = child
	}
	return root
}

func TestHoistNonConflictingTreeFlattens(t *testing.T) {
	root := NewDependencyNode("root", "0.0.0")
	stringutil := NewDependencyNode("stringutil", "1.0.0")
	stringutil.AddDependency(NewDependencyNode("leftpad", "2.0.0"))
	numutil := NewDependencyNode("numutil", "3.0.0")
	numutil.AddDependency(NewDependencyNode("isodd", "4.0.0"))
	root.AddDependency(stringutil)
	root.AddDependency(numutil)

	Hoist(root, nil)

	assert.Equal(t, map[string]string{
		"stringutil": "1.0.0",
		"leftpad":     "2.0.0",
		"numutil":     "3.0.0",
		"isodd":       "4.0.0",
	}, Flatten(root))
}

func TestHoistDuplicatesDedupedToOneCopyAtRoot(t *testing.T) {
	root := NewDependencyNode("root", "0.0.0")
	alpha := NewDependencyNode("alpha", "1.0.0")
	alpha.AddDependency(NewDependencyNode("leftpad", "2.0.0"))
	beta := NewDependencyNode("beta", "1.0.0")
	beta.AddDependency(NewDependencyNode("leftpad", "2.0.0"))
	root.AddDependency(alpha)
	root.AddDependency(beta)

	Hoist(root, nil)

	assert.Equal(t, map[string]string{
		"alpha":   "1.0.0",
		"beta":    "1.0.0",
		"leftpad": "2.0.0",
	}, Flatten(root))
}

func TestHoistConflictingVersionsStayNested(t *testing.T) {
	root := NewDependencyNode("root", "0.0.0")
	root.AddDependency(NewDependencyNode("leftpad", "2.0.0"))

	alpha := NewDependencyNode("alpha", "1.0.0")
	alpha.AddDependency(NewDependencyNode("leftpad", "3.0.0"))
	root.AddDependency(alpha)

	Hoist(root, nil)

	flat := Flatten(root)
	assert.Equal(t, "2.0.0", flat["leftpad"])
	assert.Equal(t, "3.0.0", flat["alpha.leftpad"], "a conflicting version must stay nested under the package that needs it, not get overwritten or dropped")
}

// TestHoistDependenciesOfDedupedPackageNotLeftUseless builds a package that
// exists at two positions in the tree (a root-level occurrence and a copy
// reached through another package), each declaring the same further
// dependency. Once the nested occurrence is deduplicated away in favor of
// the root-level one, its own dependency must not survive stranded at the
// intermediate position it was hoisted through along the way.
func TestHoistDependenciesOfDedupedPackageNotLeftUseless(t *testing.T) {
	root := NewDependencyNode("root", "0.0.0")

	stringutil := NewDependencyNode("stringutil", "1.0.0")
	nestedLeftpad := NewDependencyNode("leftpad", "2.0.0")
	nestedLeftpad.AddDependency(NewDependencyNode("spacemaker", "3.0.0"))
	stringutil.AddDependency(nestedLeftpad)
	root.AddDependency(stringutil)

	rootLeftpad := NewDependencyNode("leftpad", "2.0.0")
	rootLeftpad.AddDependency(NewDependencyNode("spacemaker", "3.0.0"))
	root.AddDependency(rootLeftpad)

	root.AddDependency(NewDependencyNode("spacemaker", "4.0.0"))

	Hoist(root, nil)

	assert.Equal(t, map[string]string{
		"stringutil":        "1.0.0",
		"leftpad":           "2.0.0",
		"leftpad.spacemaker": "3.0.0",
		"spacemaker":        "4.0.0",
	}, Flatten(root), "stringutil's own copy of spacemaker@3.0.0, hoisted only because it once fed the now-deduplicated nested leftpad, must not survive")
}

// TestHoistOrderIndependent builds the same tree with dependencies declared
// in different orders (which, given Go's randomized map iteration, already
// exercises differing traversal orders within a single run) and asserts the
// flattened result never depends on which order hoisting happened to visit
// nodes in.
func TestHoistOrderIndependent(t *testing.T) {
	build := func() *DependencyNode {
		root := NewDependencyNode("root", "0.0.0")
		stringutil := NewDependencyNode("stringutil", "1.0.0")
		wrapper := NewDependencyNode("wrapper", "100.0.0")
		leftPad := NewDependencyNode("leftPad", "2.0.0")
		leftPad.AddDependency(NewDependencyNode("spacemaker", "3.0.0"))
		wrapper.AddDependency(leftPad)
		stringutil.AddDependency(wrapper)
		stringutil.AddDependency(NewDependencyNode("spacemaker", "4.0.0"))
		root.AddDependency(stringutil)
		return root
	}

	var results []map[string]string
	for i := 0; i < 5; i++ {
		root := build()
		Hoist(root, nil)
		results = append(results, Flatten(root))
	}
	for i := 1; i < len(results); i++ {
		assert.Equal(t, results[0], results[i], "hoisting the same input tree must always produce the same flattened result")
	}
}

func TestHoistRespectsShouldHoistInside(t *testing.T) {
	root := NewDependencyNode("root", "0.0.0")
	sealed := NewDependencyNode("sealed", "1.0.0")
	sealed.AddDependency(NewDependencyNode("inner", "2.0.0"))
	root.AddDependency(sealed)

	Hoist(root, func(n *DependencyNode) bool {
		return n.Name != "sealed"
	})

	flat := Flatten(root)
	assert.Equal(t, "1.0.0", flat["sealed"])
	assert.Equal(t, "2.0.0", flat["sealed.inner"])
	_, hoisted := flat["inner"]
	assert.False(t, hoisted, "inner must not be hoisted out of a node shouldHoistInside excludes")
}
