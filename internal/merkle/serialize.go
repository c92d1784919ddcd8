package merkle

import "fmt"

// Serialize produces a JSON-shaped value for H: for a Composite,
// {"hash": ..., "elements": {name: serialized-or-hash}}; for a Direct
// leaf, the bare hash string. depth bounds how many Composite levels are
// expanded before a subtree collapses to its leaf hash string only — a
// depth of 0 collapses H itself (unless it's already a Direct leaf, which
// always serializes to its bare hash).
func Serialize(h Hashable, depth int) any {
	cp, ok := h.(ElementProvider)
	if !ok {
		return h.Hash()
	}
	if depth <= 0 {
		return h.Hash()
	}

	elements := make(map[string]any, len(cp.HashableElements()))
	for k, child := range cp.HashableElements() {
		elements[k] = Serialize(child, depth-1)
	}
	return map[string]any{
		"hash":     h.Hash(),
		"elements": elements,
	}
}

// Deserialize reconstructs a Hashable tree from a value produced by
// Serialize (or decoded from the equivalent JSON). It validates as it
// goes: a reconstructed Composite's own Hash() must match the recorded
// "hash" field, or Deserialize rejects the input. Subtrees collapsed by a
// depth-bounded Serialize come back as Direct leaves over their recorded
// hash — hashing such a round-tripped tree yields the same root hash as
// the original, even though interior structure beyond the collapse point
// is lost.
func Deserialize(v any) (Hashable, error) {
	switch vv := v.(type) {
	case string:
		return NewDirect(vv), nil
	case map[string]any:
		return deserializeComposite(vv)
	default:
		return nil, fmt.Errorf("merkle: cannot deserialize value of type %T", v)
	}
}

func deserializeComposite(vv map[string]any) (Hashable, error) {
	wantHash, ok := vv["hash"].(string)
	if !ok {
		return nil, fmt.Errorf("merkle: serialized node missing string \"hash\" field")
	}

	elementsRaw, _ := vv["elements"].(map[string]any)
	elements := make(map[string]Hashable, len(elementsRaw))
	for k, ev := range elementsRaw {
		child, err := Deserialize(ev)
		if err != nil {
			return nil, fmt.Errorf("merkle: element %q: %w", k, err)
		}
		elements[k] = child
	}

	composite := NewComposite(elements)
	if got := composite.Hash(); got != wantHash {
		return nil, fmt.Errorf("merkle: reconstructed hash %s does not match recorded hash %s", got, wantHash)
	}
	return composite, nil
}
