// Package ingest translates analyzer-native project dumps into the fact
// store's validated record model.
package ingest

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/trailofbits/slither-mcp/internal/errors"
	"github.com/trailofbits/slither-mcp/internal/facts"
	"github.com/trailofbits/slither-mcp/internal/logging"
)

// RawProject is the analyzer's project dump, taken as-is from its JSON
// output. Field layout mirrors what the analyzer emits, not what the store
// needs; the translation happens in Build.
type RawProject struct {
	ProjectRoot        string                   `json:"project_root"`
	Contracts          []RawContract            `json:"contracts"`
	DetectorResults    map[string][]RawFinding  `json:"detector_results,omitempty"`
	AvailableDetectors []facts.DetectorMetadata `json:"available_detectors,omitempty"`
}

// RawContract is one contract as the analyzer reports it
type RawContract struct {
	Name               string        `json:"name"`
	Path               string        `json:"path"`
	IsAbstract         bool          `json:"is_abstract"`
	IsInterface        bool          `json:"is_interface"`
	IsLibrary          bool          `json:"is_library"`
	IsFullyImplemented bool          `json:"is_fully_implemented"`
	Inherits           []RawRef      `json:"directly_inherits"`
	Declared           []RawFunction `json:"functions_declared"`
	Inherited          []RawInherited `json:"functions_inherited"`
}

// RawRef names a contract by name and defining file
type RawRef struct {
	Name string `json:"contract_name"`
	Path string `json:"path"`
}

// RawInherited points at a function declared in an ancestor
type RawInherited struct {
	Signature string `json:"signature"`
	Declarer  RawRef `json:"implementation_contract"`
}

// RawFunction is one declared function as the analyzer reports it. The
// analyzer folds view/pure/payable/virtual into a single modifier list;
// Build unfolds them into the store's explicit flags.
type RawFunction struct {
	Signature         string    `json:"signature"`
	Visibility        string    `json:"visibility"`
	SolidityModifiers []string  `json:"solidity_modifiers"`
	FunctionModifiers []string  `json:"function_modifiers"`
	Arguments         []string  `json:"arguments"`
	Returns           []string  `json:"returns"`
	LineStart         int       `json:"line_start"`
	LineEnd           int       `json:"line_end"`
	Calls             []RawCall `json:"callees"`
}

// RawCall is one observed call site. Contract is absent when the analyzer
// could not resolve the receiver.
type RawCall struct {
	Signature string  `json:"signature"`
	Contract  *RawRef `json:"contract,omitempty"`
	Kind      string  `json:"kind"`
}

// Decode reads an analyzer project dump from r
func Decode(r io.Reader) (*RawProject, error) {
	var raw RawProject
	dec := json.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil {
		return nil, errors.Wrap(errors.IngestError, "decoding analyzer output", err)
	}
	return &raw, nil
}

// Build translates a raw dump into a frozen fact store. Referential
// integrity (duplicate contracts, call hints, declared-function coverage)
// is enforced by store construction; anything it rejects surfaces as
// INGEST_ERROR with the offending record named.
func Build(raw *RawProject, logger *logging.Logger) (*facts.Store, error) {
	if raw.ProjectRoot == "" {
		return nil, errors.New(errors.IngestError, "analyzer output has no project root")
	}

	contracts := make([]*facts.ContractFact, 0, len(raw.Contracts))
	var functions []*facts.FunctionFact

	for i := range raw.Contracts {
		rc := &raw.Contracts[i]
		if rc.Name == "" || rc.Path == "" {
			return nil, errors.Newf(errors.IngestError,
				"contract record %d is missing a name or path", i)
		}
		key := facts.ContractKey{Name: rc.Name, Path: rc.Path}

		cf := &facts.ContractFact{
			Key:                key,
			IsAbstract:         rc.IsAbstract,
			IsInterface:        rc.IsInterface,
			IsLibrary:          rc.IsLibrary,
			IsFullyImplemented: rc.IsFullyImplemented,
		}
		for _, ref := range rc.Inherits {
			cf.DirectParents = append(cf.DirectParents, contractKey(ref))
		}
		for _, inh := range rc.Inherited {
			if inh.Declarer.Name == "" {
				return nil, errors.Newf(errors.IngestError,
					"inherited function %q on %s names no declaring contract",
					inh.Signature, rc.Name)
			}
			cf.InheritedFunctions = append(cf.InheritedFunctions, facts.FunctionKey{
				Signature: inh.Signature,
				Contract:  contractKey(inh.Declarer),
			})
		}

		for j := range rc.Declared {
			rf := &rc.Declared[j]
			if rf.Signature == "" {
				return nil, errors.Newf(errors.IngestError,
					"contract %s declares a function with no signature", rc.Name)
			}
			fk := facts.FunctionKey{Signature: rf.Signature, Contract: key}
			cf.DeclaredFunctions = append(cf.DeclaredFunctions, fk)

			fact, err := buildFunction(fk, rf)
			if err != nil {
				return nil, err
			}
			functions = append(functions, fact)
		}

		contracts = append(contracts, cf)
	}

	results, err := buildFindings(raw.DetectorResults)
	if err != nil {
		return nil, err
	}

	store, err := facts.NewStore(raw.ProjectRoot, contracts, functions, results, raw.AvailableDetectors)
	if err != nil {
		return nil, err
	}

	logger.Info("ingested analyzer output", logging.Fields{
		"project_root": raw.ProjectRoot,
		"contracts":    store.ContractCount(),
		"functions":    store.FunctionCount(),
	})
	return store, nil
}

func buildFunction(key facts.FunctionKey, rf *RawFunction) (*facts.FunctionFact, error) {
	fact := &facts.FunctionFact{
		Key:        key,
		Visibility: rf.Visibility,
		Modifiers:  rf.FunctionModifiers,
		Parameters: rf.Arguments,
		Returns:    rf.Returns,
		Location: facts.SourceLocation{
			File:      key.Contract.Path,
			StartLine: rf.LineStart,
			EndLine:   rf.LineEnd,
		},
		IsConstructor: strings.HasPrefix(rf.Signature, "constructor("),
	}

	for _, mod := range rf.SolidityModifiers {
		switch mod {
		case "view":
			fact.IsView = true
		case "pure":
			fact.IsPure = true
		case "payable":
			fact.IsPayable = true
		case "virtual":
			fact.IsVirtual = true
		}
	}

	for _, call := range rf.Calls {
		site, err := buildCallSite(key, call)
		if err != nil {
			return nil, err
		}
		fact.CallSites = append(fact.CallSites, site)
	}
	return fact, nil
}

func buildCallSite(owner facts.FunctionKey, call RawCall) (facts.CallSite, error) {
	kind, ok := callKind(call.Kind)
	if !ok {
		return facts.CallSite{}, errors.Newf(errors.IngestError,
			"function %s has a call site with unknown kind %q", owner, call.Kind)
	}
	if call.Signature == "" {
		return facts.CallSite{}, errors.Newf(errors.IngestError,
			"function %s has a call site with no target signature", owner)
	}

	site := facts.CallSite{TargetSignature: call.Signature, Kind: kind}
	if call.Contract != nil {
		hint := contractKey(*call.Contract)
		site.TargetContract = &hint
	}
	return site, nil
}

func callKind(s string) (facts.CallKind, bool) {
	switch facts.CallKind(s) {
	case facts.CallInternal, facts.CallExternal, facts.CallLibrary, facts.CallLowLevel:
		return facts.CallKind(s), true
	}
	return "", false
}

func buildFindings(raw map[string][]RawFinding) (map[string][]facts.Finding, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	results := make(map[string][]facts.Finding, len(raw))
	for detector, findings := range raw {
		if detector == "" {
			return nil, errors.New(errors.IngestError, "detector result with empty detector name")
		}
		out := make([]facts.Finding, 0, len(findings))
		for _, f := range findings {
			out = append(out, facts.Finding{
				Detector:    detector,
				Check:       f.Check,
				Impact:      f.Impact,
				Confidence:  f.Confidence,
				Description: f.Description,
				Locations:   buildLocations(f.Elements),
			})
		}
		results[detector] = out
	}
	return results, nil
}

// RawFinding is one detector finding as the analyzer reports it
type RawFinding struct {
	Check       string       `json:"check"`
	Impact      string       `json:"impact"`
	Confidence  string       `json:"confidence"`
	Description string       `json:"description"`
	Elements    []RawElement `json:"elements,omitempty"`
}

// RawElement locates a finding in source
type RawElement struct {
	File      string `json:"file"`
	LineStart int    `json:"line_start"`
	LineEnd   int    `json:"line_end"`
}

func buildLocations(elements []RawElement) []facts.SourceLocation {
	if len(elements) == 0 {
		return nil
	}
	locs := make([]facts.SourceLocation, 0, len(elements))
	for _, e := range elements {
		locs = append(locs, facts.SourceLocation{
			File:      e.File,
			StartLine: e.LineStart,
			EndLine:   e.LineEnd,
		})
	}
	return locs
}

func contractKey(ref RawRef) facts.ContractKey {
	return facts.ContractKey{Name: ref.Name, Path: ref.Path}
}
