package autocomplete

import "sort"

// Suggestion is one completion candidate.
type Suggestion struct {
	Term      string `json:"term"`
	Frequency int    `json:"frequency"`
}

// trieNode is one node of the prefix trie.
type trieNode struct {
	children map[rune]*trieNode
	// terminal marks a complete term; frequency is only meaningful then.
	terminal  bool
	term      string
	frequency int
}

// trie is an in-memory prefix tree over the completion vocabulary. It is
// built once and read concurrently; mutation happens only by full rebuild.
type trie struct {
	root *trieNode
	size int
}

func newTrie() *trie {
	return &trie{root: &trieNode{children: make(map[rune]*trieNode)}}
}

func (t *trie) insert(term string, frequency int) {
	node := t.root
	for _, r := range term {
		child, ok := node.children[r]
		if !ok {
			child = &trieNode{children: make(map[rune]*trieNode)}
			node.children[r] = child
		}
		node = child
	}
	if !node.terminal {
		t.size++
	}
	node.terminal = true
	node.term = term
	node.frequency = frequency
}

// search returns up to limit terms under prefix, most frequent first, ties
// alphabetical.
func (t *trie) search(prefix string, limit int) []Suggestion {
	node := t.root
	for _, r := range prefix {
		child, ok := node.children[r]
		if !ok {
			return nil
		}
		node = child
	}

	var out []Suggestion
	collect(node, &out)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Frequency != out[j].Frequency {
			return out[i].Frequency > out[j].Frequency
		}
		return out[i].Term < out[j].Term
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func collect(node *trieNode, out *[]Suggestion) {
	if node.terminal {
		*out = append(*out, Suggestion{Term: node.term, Frequency: node.frequency})
	}
	for _, child := range node.children {
		collect(child, out)
	}
}
