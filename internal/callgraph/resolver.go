// Package callgraph classifies call sites and answers caller/callee/
// implementation queries against the fact store.
package callgraph

import (
	"sort"

	"github.com/trailofbits/slither-mcp/internal/errors"
	"github.com/trailofbits/slither-mcp/internal/facts"
)

// Callee is one resolved (or best-effort) call target. Target is nil when
// the analyzer left no contract hint and the signature could not be resolved
// inside the fact store; the qualified signature string is still reported,
// since partial information beats a hard failure.
type Callee struct {
	Signature string             `json:"signature"`
	Target    *facts.FunctionKey `json:"target,omitempty"`
}

// CalleesResult partitions every raw call site of a function into exactly
// one of the four kinds. HasLowLevelCalls is a warning signal: the analyzer
// saw a call it could not statically type.
type CalleesResult struct {
	Internal         []Callee `json:"internal"`
	External         []Callee `json:"external"`
	Library          []Callee `json:"library"`
	LowLevel         []string `json:"low_level,omitempty"`
	HasLowLevelCalls bool     `json:"has_low_level_calls"`
}

// CallersResult groups callers of a function by the kind observed at each
// call site.
type CallersResult struct {
	Internal []facts.FunctionKey `json:"internal"`
	External []facts.FunctionKey `json:"external"`
	Library  []facts.FunctionKey `json:"library"`
}

// Resolver answers call graph queries against a frozen fact store
type Resolver struct {
	store *facts.Store
}

// NewResolver creates a resolver over the given store
func NewResolver(store *facts.Store) *Resolver {
	return &Resolver{store: store}
}

// Callees classifies every call site of the given function. callingContext
// optionally names the concrete contract the function is invoked through;
// hint-less internal sites are resolved against that contract's declared and
// inherited functions first, falling back to the statically-declared owner,
// which is what makes inherited overrides resolve correctly.
func (r *Resolver) Callees(key facts.FunctionKey, callingContext *facts.ContractKey) (*CalleesResult, error) {
	fact, actual, err := r.lookup(key)
	if err != nil {
		return nil, err
	}

	res := &CalleesResult{
		Internal: []Callee{},
		External: []Callee{},
		Library:  []Callee{},
	}

	for _, site := range fact.CallSites {
		switch site.Kind {
		case facts.CallInternal:
			res.Internal = append(res.Internal, r.resolveInternal(site, actual, callingContext))
		case facts.CallExternal:
			res.External = append(res.External, r.resolveHinted(site))
		case facts.CallLibrary:
			res.Library = append(res.Library, r.resolveHinted(site))
		case facts.CallLowLevel:
			res.LowLevel = append(res.LowLevel, site.TargetSignature)
			res.HasLowLevelCalls = true
		}
	}
	return res, nil
}

// resolveInternal resolves an internal call site. Precedence: explicit
// analyzer hint, then the calling context's own function set, then the
// statically-declared owner of the calling function.
func (r *Resolver) resolveInternal(site facts.CallSite, owner facts.FunctionKey, callingContext *facts.ContractKey) Callee {
	if site.TargetContract != nil {
		return r.resolveIn(*site.TargetContract, site.TargetSignature)
	}
	if callingContext != nil {
		if _, target, ok := r.store.ResolveFunction(facts.FunctionKey{
			Signature: site.TargetSignature,
			Contract:  *callingContext,
		}); ok {
			return Callee{Signature: target.Qualified(), Target: &target}
		}
	}
	return r.resolveIn(owner.Contract, site.TargetSignature)
}

// resolveHinted resolves an external or library call site from its hint;
// without a hint the bare signature is reported unresolved.
func (r *Resolver) resolveHinted(site facts.CallSite) Callee {
	if site.TargetContract == nil {
		return Callee{Signature: site.TargetSignature}
	}
	return r.resolveIn(*site.TargetContract, site.TargetSignature)
}

func (r *Resolver) resolveIn(contract facts.ContractKey, sig string) Callee {
	if _, target, ok := r.store.ResolveFunction(facts.FunctionKey{Signature: sig, Contract: contract}); ok {
		return Callee{Signature: target.Qualified(), Target: &target}
	}
	return Callee{Signature: contract.Name + "." + sig}
}

// Callers returns every function whose call sites target the given function,
// grouped by kind. Lookup goes through the inverted index built at store
// construction; ambiguous bare-signature targets legitimately produce callers
// from unrelated contracts and are reported verbatim.
func (r *Resolver) Callers(key facts.FunctionKey) (*CallersResult, error) {
	_, actual, err := r.lookup(key)
	if err != nil {
		return nil, err
	}

	res := &CallersResult{
		Internal: []facts.FunctionKey{},
		External: []facts.FunctionKey{},
		Library:  []facts.FunctionKey{},
	}

	refs := r.store.CallersOf(actual.Qualified())
	if key.Contract != actual.Contract {
		// Queried through an inheriting contract: calls naming the derived
		// contract also target this function.
		refs = append(refs, r.store.CallersOf(key.Qualified())...)
	}

	seen := make(map[string]bool)
	for _, ref := range refs {
		dedupeKey := string(ref.Kind) + "|" + ref.Caller.String()
		if seen[dedupeKey] {
			continue
		}
		seen[dedupeKey] = true

		switch ref.Kind {
		case facts.CallInternal:
			res.Internal = append(res.Internal, ref.Caller)
		case facts.CallExternal:
			res.External = append(res.External, ref.Caller)
		case facts.CallLibrary:
			res.Library = append(res.Library, ref.Caller)
		}
	}

	sortKeys(res.Internal)
	sortKeys(res.External)
	sortKeys(res.Library)
	return res, nil
}

// Implementations returns the functions declaring the given signature,
// optionally restricted to root's descendant subtree (root included).
// Results are in sorted contract order so repeated queries are deterministic.
func (r *Resolver) Implementations(signature string, root *facts.ContractKey) ([]facts.FunctionKey, error) {
	var scope map[facts.ContractKey]bool
	if root != nil {
		if _, ok := r.store.Contract(*root); !ok {
			return nil, errors.Newf(errors.ContractNotFound,
				"contract not found: %s at %s", root.Name, root.Path)
		}
		scope = r.descendantSet(*root)
	}

	impls := []facts.FunctionKey{}
	for _, key := range r.store.ContractKeys() {
		if scope != nil && !scope[key] {
			continue
		}
		c, _ := r.store.Contract(key)
		for _, fk := range c.DeclaredFunctions {
			if fk.Signature == signature {
				impls = append(impls, fk)
			}
		}
	}
	return impls, nil
}

// descendantSet collects root and its transitive children with a visited set,
// so inheritance cycles cannot loop the scan.
func (r *Resolver) descendantSet(root facts.ContractKey) map[facts.ContractKey]bool {
	set := make(map[facts.ContractKey]bool)
	queue := []facts.ContractKey{root}
	for len(queue) > 0 {
		key := queue[0]
		queue = queue[1:]
		if set[key] {
			continue
		}
		set[key] = true
		queue = append(queue, r.store.Children(key)...)
	}
	return set
}

// lookup resolves a function key, distinguishing unknown contracts from
// unknown signatures so callers get the right error kind.
func (r *Resolver) lookup(key facts.FunctionKey) (*facts.FunctionFact, facts.FunctionKey, error) {
	if _, ok := r.store.Contract(key.Contract); !ok {
		return nil, facts.FunctionKey{}, errors.Newf(errors.ContractNotFound,
			"contract not found: %s at %s", key.Contract.Name, key.Contract.Path)
	}
	fact, actual, ok := r.store.ResolveFunction(key)
	if !ok {
		return nil, facts.FunctionKey{}, errors.Newf(errors.FunctionNotFound,
			"function %q not found in contract %s", key.Signature, key.Contract.Name)
	}
	return fact, actual, nil
}

func sortKeys(keys []facts.FunctionKey) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
}
