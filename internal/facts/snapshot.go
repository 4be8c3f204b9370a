package facts

// Snapshot is the serializable form of a Store. Maps are keyed by the
// canonical string forms of ContractKey/FunctionKey so the JSON encoding is
// stable and human-inspectable; the derived indexes are not serialized and
// are rebuilt on restore.
type Snapshot struct {
	ProjectRoot        string                   `json:"project_root"`
	Contracts          map[string]*ContractFact `json:"contracts"`
	Functions          map[string]*FunctionFact `json:"functions"`
	DetectorResults    map[string][]Finding     `json:"detector_results,omitempty"`
	AvailableDetectors []DetectorMetadata       `json:"available_detectors,omitempty"`
}

// Snapshot captures the store's full contents for serialization.
func (s *Store) Snapshot() *Snapshot {
	snap := &Snapshot{
		ProjectRoot:        s.projectRoot,
		Contracts:          make(map[string]*ContractFact, len(s.contracts)),
		Functions:          make(map[string]*FunctionFact, len(s.functions)),
		DetectorResults:    s.detectorResults,
		AvailableDetectors: s.availableDetectors,
	}
	for key, c := range s.contracts {
		snap.Contracts[key.String()] = c
	}
	for key, f := range s.functions {
		snap.Functions[key.String()] = f
	}
	return snap
}

// FromSnapshot reconstructs a Store, re-running construction-time validation
// and rebuilding the derived indexes. A restored store is structurally equal
// to the one that produced the snapshot; this round-trip is a correctness
// invariant of the artifact cache.
func FromSnapshot(snap *Snapshot) (*Store, error) {
	contracts := make([]*ContractFact, 0, len(snap.Contracts))
	for _, c := range snap.Contracts {
		contracts = append(contracts, c)
	}
	functions := make([]*FunctionFact, 0, len(snap.Functions))
	for _, f := range snap.Functions {
		functions = append(functions, f)
	}
	return NewStore(snap.ProjectRoot, contracts, functions,
		snap.DetectorResults, snap.AvailableDetectors)
}
