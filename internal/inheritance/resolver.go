// Package inheritance materializes ancestor and descendant trees from the
// fact store's inheritance edges.
package inheritance

import (
	"github.com/trailofbits/slither-mcp/internal/errors"
	"github.com/trailofbits/slither-mcp/internal/facts"
)

// DefaultMaxDepth bounds tree expansion when the caller does not choose one.
const DefaultMaxDepth = 3

// Node is one contract in an ancestor or descendant tree. Children are the
// direct parents (ancestor queries) or direct heirs (descendant queries),
// recursively expanded. CycleDetected marks a contract that reappeared on
// its own path; expansion stops there and the node is emitted once.
type Node struct {
	Key           facts.ContractKey `json:"contract_key"`
	Children      []*Node           `json:"children,omitempty"`
	CycleDetected bool              `json:"cycle_detected,omitempty"`
}

// Result is a resolved tree. Truncated is set when MaxDepth cut off
// unexpanded children somewhere in the tree.
type Result struct {
	Root      *Node `json:"root"`
	Truncated bool  `json:"truncated,omitempty"`
}

// Options control tree expansion
type Options struct {
	// MaxDepth limits expansion depth; 0 means unlimited. Depth is counted
	// in edges from the root.
	MaxDepth int
}

// Resolver answers inheritance queries against a frozen fact store
type Resolver struct {
	store *facts.Store
}

// NewResolver creates a resolver over the given store
func NewResolver(store *facts.Store) *Resolver {
	return &Resolver{store: store}
}

// Ancestors returns the transitive-parents tree for a contract. Diamond
// ancestors reachable through two parents appear once per path; cycle
// detection is per path, so expansion is bounded by the number of distinct
// contracts even on mis-declared circular inheritance.
func (r *Resolver) Ancestors(key facts.ContractKey, opts Options) (*Result, error) {
	if _, ok := r.store.Contract(key); !ok {
		return nil, errors.Newf(errors.ContractNotFound,
			"contract not found: %s at %s", key.Name, key.Path)
	}

	res := &Result{}
	res.Root = r.expand(key, r.parentsOf, map[facts.ContractKey]bool{}, 0, opts.MaxDepth, &res.Truncated)
	return res, nil
}

// Descendants returns the transitive-children tree for a contract, using the
// reverse-inheritance index built at store construction.
func (r *Resolver) Descendants(key facts.ContractKey, opts Options) (*Result, error) {
	if _, ok := r.store.Contract(key); !ok {
		return nil, errors.Newf(errors.ContractNotFound,
			"contract not found: %s at %s", key.Name, key.Path)
	}

	res := &Result{}
	res.Root = r.expand(key, r.store.Children, map[facts.ContractKey]bool{}, 0, opts.MaxDepth, &res.Truncated)
	return res, nil
}

func (r *Resolver) parentsOf(key facts.ContractKey) []facts.ContractKey {
	c, ok := r.store.Contract(key)
	if !ok {
		// Parents referenced but never ingested (e.g. out-of-project
		// imports) become leaf nodes rather than failures.
		return nil
	}
	return c.DirectParents
}

// expand walks edges depth-first with an explicit path-visited set. The set
// is mutated on the way down and restored on the way up, giving per-path
// cycle detection without deduplicating diamonds across sibling branches.
func (r *Resolver) expand(
	key facts.ContractKey,
	edges func(facts.ContractKey) []facts.ContractKey,
	path map[facts.ContractKey]bool,
	depth, maxDepth int,
	truncated *bool,
) *Node {
	if path[key] {
		return &Node{Key: key, CycleDetected: true}
	}

	next := edges(key)
	if len(next) == 0 {
		return &Node{Key: key}
	}
	if maxDepth > 0 && depth >= maxDepth {
		*truncated = true
		return &Node{Key: key}
	}

	path[key] = true
	node := &Node{Key: key, Children: make([]*Node, 0, len(next))}
	for _, childKey := range next {
		node.Children = append(node.Children,
			r.expand(childKey, edges, path, depth+1, maxDepth, truncated))
	}
	delete(path, key)
	return node
}

// Walk visits every node in the tree in depth-first order
func (n *Node) Walk(visit func(*Node)) {
	if n == nil {
		return
	}
	visit(n)
	for _, child := range n.Children {
		child.Walk(visit)
	}
}

// Contains reports whether key appears anywhere in the tree
func (n *Node) Contains(key facts.ContractKey) bool {
	found := false
	n.Walk(func(node *Node) {
		if node.Key == key {
			found = true
		}
	})
	return found
}
