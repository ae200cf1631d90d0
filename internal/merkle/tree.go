// Package merkle implements the prefix-trie summary tree used for
// anti-entropy: a fixed-depth hex-routed trie keyed by the hash of a
// record's key, with sum-based parent hashes for O(depth) incremental
// update.
package merkle

import (
	"fmt"
	"sync"

	"github.com/replikv/replikv/internal/idgen"
)

// DefaultDepth is the routing depth used when Tree is constructed without
// an explicit depth.
const DefaultDepth = 3

type node struct {
	hash     uint32
	children map[byte]*node
	entries  map[string]uint32 // leaf only: key -> contentHash
}

func newNode() *node {
	return &node{children: make(map[byte]*node)}
}

// Tree is a fixed-depth prefix trie over hex-digit routing paths. It holds
// no record values, only per-key content fingerprints, and is safe for
// concurrent use.
type Tree struct {
	mu    sync.RWMutex
	depth int
	root  *node
}

// New creates a Tree with the given routing depth. depth <= 0 uses
// DefaultDepth.
func New(depth int) *Tree {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &Tree{depth: depth, root: newNode()}
}

func routingPath(key string, depth int) string {
	hex := idgen.Hash32Hex(key)
	if len(hex) < depth {
		return hex
	}
	return hex[:depth]
}

func contentHash(key, timestamp string) uint32 {
	return idgen.Hash32(key + ":" + timestamp)
}

// Update routes key to its leaf, sets its content fingerprint from
// (key, timestamp), and recomputes hashes from the leaf up to the root.
func (t *Tree) Update(key, timestamp string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	path := routingPath(key, t.depth)
	leaf := t.descendCreate(path)
	if leaf.entries == nil {
		leaf.entries = make(map[string]uint32)
	}
	leaf.entries[key] = contentHash(key, timestamp)
	t.recompute(path)
}

// Remove deletes key's fingerprint from its leaf and recomputes hashes up
// to the root. The (now possibly empty) leaf node is retained.
func (t *Tree) Remove(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	path := routingPath(key, t.depth)
	leaf, ok := t.descend(path)
	if !ok || leaf.entries == nil {
		return
	}
	delete(leaf.entries, key)
	t.recompute(path)
}

// RootHash returns the tree's current root fingerprint.
func (t *Tree) RootHash() uint32 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.root.hash
}

// GetBuckets returns, for the node addressed by path (the empty string for
// the root), the hash of each immediate child keyed by its routing hex
// digit. Used by anti-entropy diff algorithms to decide which subtrees to
// descend into.
func (t *Tree) GetBuckets(path string) map[byte]uint32 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n, ok := t.descend(path)
	out := make(map[byte]uint32)
	if !ok {
		return out
	}
	for digit, child := range n.children {
		out[digit] = child.hash
	}
	return out
}

// GetKeysInBucket returns the keys held at the leaf addressed by leafPath,
// used after GetBuckets has located a divergent subtree.
func (t *Tree) GetKeysInBucket(leafPath string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n, ok := t.descend(leafPath)
	if !ok || n.entries == nil {
		return nil
	}
	keys := make([]string, 0, len(n.entries))
	for k := range n.entries {
		keys = append(keys, k)
	}
	return keys
}

// Depth returns the tree's configured routing depth.
func (t *Tree) Depth() int { return t.depth }

// descend walks existing nodes along path, returning ok=false if any
// segment is missing.
func (t *Tree) descend(path string) (*node, bool) {
	n := t.root
	for i := 0; i < len(path); i++ {
		child, ok := n.children[path[i]]
		if !ok {
			return nil, false
		}
		n = child
	}
	return n, true
}

// descendCreate walks path, creating intermediate nodes as needed.
func (t *Tree) descendCreate(path string) *node {
	n := t.root
	for i := 0; i < len(path); i++ {
		digit := path[i]
		child, ok := n.children[digit]
		if !ok {
			child = newNode()
			n.children[digit] = child
		}
		n = child
	}
	return n
}

// recompute recomputes the leaf hash at path and propagates sum-based
// updates up through every ancestor to the root.
func (t *Tree) recompute(path string) {
	leaf, ok := t.descend(path)
	if !ok {
		panic(fmt.Sprintf("merkle: recompute on missing path %q", path))
	}
	leaf.hash = sumEntries(leaf.entries)

	n := t.root
	ancestors := make([]*node, 0, len(path)+1)
	ancestors = append(ancestors, n)
	for i := 0; i < len(path); i++ {
		n = n.children[path[i]]
		ancestors = append(ancestors, n)
	}
	for i := len(ancestors) - 1; i > 0; i-- {
		ancestors[i-1].hash = sumChildren(ancestors[i-1])
	}
	if len(ancestors) == 1 {
		ancestors[0].hash = sumChildrenOrEntries(ancestors[0])
	}
}

func sumEntries(entries map[string]uint32) uint32 {
	var sum uint32
	for _, h := range entries {
		sum += h
	}
	return sum
}

func sumChildren(n *node) uint32 {
	if len(n.children) == 0 {
		return sumEntries(n.entries)
	}
	var sum uint32
	for _, c := range n.children {
		sum += c.hash
	}
	return sum
}

func sumChildrenOrEntries(n *node) uint32 {
	return sumChildren(n)
}
