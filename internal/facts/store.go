package facts

import (
	"sort"

	"github.com/trailofbits/slither-mcp/internal/errors"
)

// CallerRef records one function calling a target, with the call kind
// observed at the call site.
type CallerRef struct {
	Caller FunctionKey `json:"caller"`
	Kind   CallKind    `json:"kind"`
}

// Store is the immutable in-memory fact graph for one analyzed project.
// It is constructed once from analyzer output (or loaded from a cache
// artifact) and is safe for unlimited concurrent readers afterwards; no
// method mutates it.
type Store struct {
	projectRoot string

	contracts map[ContractKey]*ContractFact
	functions map[FunctionKey]*FunctionFact
	owner     map[FunctionKey]ContractKey

	detectorResults    map[string][]Finding
	availableDetectors []DetectorMetadata

	// Derived indexes, built once at construction.
	contractOrder []ContractKey             // sorted, for deterministic iteration
	children      map[ContractKey][]ContractKey // reverse of DirectParents
	callers       map[string][]CallerRef    // normalized target signature -> callers
}

// NewStore builds a Store from ingested facts, validating the fact-graph
// invariants: contract keys are unique, every function fact belongs to a
// known contract, and the function-to-contract mapping is exactly the union
// of each contract's declared functions.
func NewStore(
	projectRoot string,
	contracts []*ContractFact,
	functions []*FunctionFact,
	detectorResults map[string][]Finding,
	availableDetectors []DetectorMetadata,
) (*Store, error) {
	s := &Store{
		projectRoot:        projectRoot,
		contracts:          make(map[ContractKey]*ContractFact, len(contracts)),
		functions:          make(map[FunctionKey]*FunctionFact, len(functions)),
		owner:              make(map[FunctionKey]ContractKey, len(functions)),
		detectorResults:    detectorResults,
		availableDetectors: availableDetectors,
		children:           make(map[ContractKey][]ContractKey),
		callers:            make(map[string][]CallerRef),
	}
	if s.detectorResults == nil {
		s.detectorResults = make(map[string][]Finding)
	}

	for _, c := range contracts {
		if _, dup := s.contracts[c.Key]; dup {
			return nil, errors.Newf(errors.IngestError,
				"duplicate contract key %s", c.Key)
		}
		s.contracts[c.Key] = c
	}

	for _, f := range functions {
		if _, ok := s.contracts[f.Key.Contract]; !ok {
			return nil, errors.Newf(errors.IngestError,
				"function %s references unknown contract %s", f.Key, f.Key.Contract)
		}
		if _, dup := s.functions[f.Key]; dup {
			return nil, errors.Newf(errors.IngestError,
				"duplicate function key %s", f.Key)
		}
		s.functions[f.Key] = f
	}

	// functions_to_contract is exactly the union of declared functions.
	for key, c := range s.contracts {
		for _, fk := range c.DeclaredFunctions {
			if _, ok := s.functions[fk]; !ok {
				return nil, errors.Newf(errors.IngestError,
					"contract %s declares %s but no function fact was ingested", key, fk)
			}
			s.owner[fk] = key
		}
		for _, fk := range c.InheritedFunctions {
			if _, ok := s.contracts[fk.Contract]; !ok {
				return nil, errors.Newf(errors.IngestError,
					"contract %s inherits %s from unknown contract %s", key, fk, fk.Contract)
			}
		}
	}
	for fk := range s.functions {
		if _, ok := s.owner[fk]; !ok {
			return nil, errors.Newf(errors.IngestError,
				"function fact %s is not declared by its contract", fk)
		}
	}

	s.contractOrder = make([]ContractKey, 0, len(s.contracts))
	for key := range s.contracts {
		s.contractOrder = append(s.contractOrder, key)
	}
	sort.Slice(s.contractOrder, func(i, j int) bool {
		return s.contractOrder[i].Less(s.contractOrder[j])
	})

	s.buildChildrenIndex()
	s.buildCallersIndex()
	return s, nil
}

// buildChildrenIndex inverts DirectParents into a direct-children adjacency
// list. Children are appended in sorted contract order so descendant
// traversal is deterministic.
func (s *Store) buildChildrenIndex() {
	for _, childKey := range s.contractOrder {
		for _, parent := range s.contracts[childKey].DirectParents {
			s.children[parent] = append(s.children[parent], childKey)
		}
	}
}

// buildCallersIndex builds the inverted call index keyed on the normalized,
// contract-qualified target signature. Internal sites without a contract hint
// resolve through the calling contract's declared and inherited functions to
// the declaring ancestor, the same resolution callee queries use, so the two
// directions of the call graph agree. Unresolvable targets are indexed under
// the bare signature.
func (s *Store) buildCallersIndex() {
	for _, contractKey := range s.contractOrder {
		c := s.contracts[contractKey]
		for _, fk := range c.DeclaredFunctions {
			f := s.functions[fk]
			for _, site := range f.CallSites {
				key := s.callTargetKey(fk, site)
				s.callers[key] = append(s.callers[key], CallerRef{Caller: fk, Kind: site.Kind})
			}
		}
	}
}

func (s *Store) callTargetKey(caller FunctionKey, site CallSite) string {
	switch {
	case site.TargetContract != nil:
		return NormalizeSignature(site.TargetContract.Name + "." + site.TargetSignature)
	case site.Kind == CallInternal:
		if _, target, ok := s.ResolveFunction(FunctionKey{
			Signature: site.TargetSignature,
			Contract:  caller.Contract,
		}); ok {
			return NormalizeSignature(target.Qualified())
		}
		return NormalizeSignature(caller.Contract.Name + "." + site.TargetSignature)
	default:
		return NormalizeSignature(site.TargetSignature)
	}
}

// ProjectRoot returns the analyzed project's root directory
func (s *Store) ProjectRoot() string {
	return s.projectRoot
}

// Contract looks up a contract fact by key
func (s *Store) Contract(key ContractKey) (*ContractFact, bool) {
	c, ok := s.contracts[key]
	return c, ok
}

// ContractKeys returns all contract keys in sorted order
func (s *Store) ContractKeys() []ContractKey {
	return s.contractOrder
}

// ContractCount returns the number of contracts in the store
func (s *Store) ContractCount() int {
	return len(s.contracts)
}

// FunctionCount returns the number of declared functions in the store
func (s *Store) FunctionCount() int {
	return len(s.functions)
}

// Function looks up a function fact by exact key
func (s *Store) Function(key FunctionKey) (*FunctionFact, bool) {
	f, ok := s.functions[key]
	return f, ok
}

// OwnerOf returns the contract declaring the given function
func (s *Store) OwnerOf(key FunctionKey) (ContractKey, bool) {
	owner, ok := s.owner[key]
	return owner, ok
}

// Children returns the contracts directly inheriting from key,
// in deterministic order.
func (s *Store) Children(key ContractKey) []ContractKey {
	return s.children[key]
}

// CallersOf returns the recorded callers for a contract-qualified target
// signature. Matching is normalized; ambiguous bare-signature call sites may
// legitimately surface callers from unrelated contracts. The returned slice
// is always a fresh copy; appending to index-backed slices would write into
// the shared arrays and race with other readers.
func (s *Store) CallersOf(qualified string) []CallerRef {
	exact := s.callers[NormalizeSignature(qualified)]
	refs := make([]CallerRef, 0, len(exact))
	refs = append(refs, exact...)

	_, bare := SplitQualified(qualified)
	if bare != qualified {
		// Hint-less external call sites are indexed under the bare signature.
		refs = append(refs, s.callers[NormalizeSignature(bare)]...)
	}
	return refs
}

// ResolveFunction resolves a function key against its contract's declared and
// inherited function sets, using exact matching first and normalized
// signature matching as a fallback. The returned key is the actual stored
// key, which for inherited functions belongs to the declaring ancestor.
func (s *Store) ResolveFunction(key FunctionKey) (*FunctionFact, FunctionKey, bool) {
	c, ok := s.contracts[key.Contract]
	if !ok {
		return nil, FunctionKey{}, false
	}
	if fk, ok := matchSignature(key.Signature, c.DeclaredFunctions); ok {
		return s.functions[fk], fk, true
	}
	if fk, ok := matchSignature(key.Signature, c.InheritedFunctions); ok {
		if f, ok := s.functions[fk]; ok {
			return f, fk, true
		}
	}
	return nil, FunctionKey{}, false
}

func matchSignature(sig string, keys []FunctionKey) (FunctionKey, bool) {
	for _, fk := range keys {
		if fk.Signature == sig {
			return fk, true
		}
	}
	normalized := NormalizeSignature(sig)
	for _, fk := range keys {
		if NormalizeSignature(fk.Signature) == normalized {
			return fk, true
		}
	}
	return FunctionKey{}, false
}

// DetectorResults returns findings for one detector
func (s *Store) DetectorResults(name string) ([]Finding, bool) {
	findings, ok := s.detectorResults[name]
	return findings, ok
}

// DetectorNames returns the names of detectors with recorded findings, sorted.
func (s *Store) DetectorNames() []string {
	names := make([]string, 0, len(s.detectorResults))
	for name := range s.detectorResults {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AvailableDetectors returns metadata for all detectors the analyzer offers
func (s *Store) AvailableDetectors() []DetectorMetadata {
	return s.availableDetectors
}
