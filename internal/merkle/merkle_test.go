package merkle

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashDeterministic(t *testing.T) {
	c := NewComposite(map[string]Hashable{
		"a": NewDirect("aaaa"),
		"b": NewDirect("bbbb"),
	})

	h1 := c.Hash()
	h2 := c.Hash()
	assert.Equal(t, h1, h2, "repeated Hash() within one process must agree")

	other := NewComposite(map[string]Hashable{
		"a": NewDirect("aaaa"),
		"b": NewDirect("bbbb"),
	})
	assert.Equal(t, h1, other.Hash(), "two separately-built composites over identical content hash identically")
}

func TestCanonicalOrdering(t *testing.T) {
	ab := NewComposite(map[string]Hashable{
		"a": NewDirect("h1"),
		"b": NewDirect("h2"),
	})
	ba := NewComposite(map[string]Hashable{
		"b": NewDirect("h2"),
		"a": NewDirect("h1"),
	})
	assert.Equal(t, ab.Hash(), ba.Hash(), "key order must not affect the hash")
}

func TestRoundTripSerialization(t *testing.T) {
	tree := NewComposite(map[string]Hashable{
		"source": NewComposite(map[string]Hashable{
			"a.ts": NewDirect("deadbeef"),
			"b.ts": NewDirect("cafef00d"),
		}),
		"env": NewComposite(map[string]Hashable{
			"NODE_ENV": NewDirect("70726f64"),
		}),
	})

	for _, depth := range []int{0, 1, 2, 5} {
		serialized := Serialize(tree, depth)

		// Round-trip through JSON, the way the sidecar file does.
		raw, err := json.Marshal(serialized)
		require.NoError(t, err)
		var decoded any
		require.NoError(t, json.Unmarshal(raw, &decoded))

		reconstructed, err := Deserialize(decoded)
		require.NoError(t, err, "depth=%d", depth)
		assert.Equal(t, tree.Hash(), reconstructed.Hash(), "depth=%d", depth)
	}
}

func TestDeserializeRejectsHashMismatch(t *testing.T) {
	bad := map[string]any{
		"hash": "0000000000000000000000000000000000000000",
		"elements": map[string]any{
			"a": "deadbeef",
		},
	}
	_, err := Deserialize(bad)
	assert.Error(t, err)
}

func TestCompareSame(t *testing.T) {
	a := NewComposite(map[string]Hashable{"x": NewDirect("1")})
	b := NewComposite(map[string]Hashable{"x": NewDirect("1")})
	result := Compare(a, b)
	assert.True(t, result.Same)
	assert.Empty(t, result.Diffs)
}

func TestCompareAddRemoveChange(t *testing.T) {
	a := NewComposite(map[string]Hashable{
		"kept":    NewDirect("1"),
		"changed": NewDirect("1"),
		"removed": NewDirect("1"),
	})
	b := NewComposite(map[string]Hashable{
		"kept":    NewDirect("1"),
		"changed": NewDirect("2"),
		"added":   NewDirect("1"),
	})

	result := Compare(a, b)
	assert.False(t, result.Same)

	byPath := map[string]Diff{}
	for _, d := range result.Diffs {
		byPath[d.Path] = d
	}

	require.Contains(t, byPath, "changed")
	assert.Equal(t, Changed, byPath["changed"].Kind)

	require.Contains(t, byPath, "removed")
	assert.Equal(t, Removed, byPath["removed"].Kind)

	require.Contains(t, byPath, "added")
	assert.Equal(t, Added, byPath["added"].Kind)

	assert.NotContains(t, byPath, "kept")
}

func TestCompareDescendsIntoNestedComposites(t *testing.T) {
	a := NewComposite(map[string]Hashable{
		"dir": NewComposite(map[string]Hashable{
			"file.ts": NewDirect("old"),
		}),
	})
	b := NewComposite(map[string]Hashable{
		"dir": NewComposite(map[string]Hashable{
			"file.ts": NewDirect("new"),
		}),
	})

	result := Compare(a, b)
	require.Len(t, result.Diffs, 1)
	assert.Equal(t, "dir/file.ts", result.Diffs[0].Path)
	assert.Equal(t, Changed, result.Diffs[0].Kind)
}

func TestCompareDirectVsCompositeEmitsSingleChange(t *testing.T) {
	a := NewDirect("leaf-hash")
	b := NewComposite(map[string]Hashable{"x": NewDirect("1")})

	result := Compare(a, b)
	require.Len(t, result.Diffs, 1)
	assert.Equal(t, Changed, result.Diffs[0].Kind)
	assert.Equal(t, "", result.Diffs[0].Path)
}
