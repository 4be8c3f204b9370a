package engine

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/trailofbits/slither-mcp/internal/callgraph"
	"github.com/trailofbits/slither-mcp/internal/errors"
	"github.com/trailofbits/slither-mcp/internal/facts"
	"github.com/trailofbits/slither-mcp/internal/inheritance"
	"github.com/trailofbits/slither-mcp/internal/pagination"
	"github.com/trailofbits/slither-mcp/internal/search"
)

// ContractFilter restricts contract listings by kind
type ContractFilter string

const (
	FilterAll       ContractFilter = "all"
	FilterConcrete  ContractFilter = "concrete"
	FilterInterface ContractFilter = "interface"
	FilterLibrary   ContractFilter = "library"
	FilterAbstract  ContractFilter = "abstract"
)

// ContractInfo is one row of a contract listing
type ContractInfo struct {
	Key                facts.ContractKey `json:"key"`
	IsAbstract         bool              `json:"is_abstract"`
	IsInterface        bool              `json:"is_interface"`
	IsLibrary          bool              `json:"is_library"`
	IsFullyImplemented bool              `json:"is_fully_implemented"`
	FunctionCount      int               `json:"function_count"`
}

// ListContractsRequest filters and windows a contract listing
type ListContractsRequest struct {
	Filter       ContractFilter     `json:"filter,omitempty"`
	NamePattern  string             `json:"name_pattern,omitempty"`
	ExcludePaths []string           `json:"exclude_paths,omitempty"`
	Page         pagination.Request `json:"page,omitempty"`
}

// ListContractsResult is a page of contracts
type ListContractsResult struct {
	Contracts []ContractInfo  `json:"contracts"`
	Page      pagination.Page `json:"page"`
}

// ListContracts lists contracts in sorted key order, filtered by kind, name
// pattern, and excluded path prefixes.
func (e *Engine) ListContracts(ctx context.Context, projectRoot string, req ListContractsRequest) (*ListContractsResult, error) {
	if err := req.Page.Validate(); err != nil {
		return nil, err
	}
	store, err := e.Facts(ctx, projectRoot)
	if err != nil {
		return nil, err
	}

	var nameRe *regexp.Regexp
	if req.NamePattern != "" {
		nameRe, err = search.Compile(req.NamePattern, true)
		if err != nil {
			return nil, err
		}
	}

	infos := []ContractInfo{}
	for _, key := range store.ContractKeys() {
		c, _ := store.Contract(key)
		if !matchesFilter(c, req.Filter) {
			continue
		}
		if excluded(key.Path, req.ExcludePaths) {
			continue
		}
		if nameRe != nil && !nameRe.MatchString(key.Name) {
			continue
		}
		infos = append(infos, ContractInfo{
			Key:                key,
			IsAbstract:         c.IsAbstract,
			IsInterface:        c.IsInterface,
			IsLibrary:          c.IsLibrary,
			IsFullyImplemented: c.IsFullyImplemented,
			FunctionCount:      len(c.DeclaredFunctions) + len(c.InheritedFunctions),
		})
	}

	page, meta := pagination.Apply(infos, req.Page)
	return &ListContractsResult{Contracts: page, Page: meta}, nil
}

// Contract returns the full fact record for a contract key
func (e *Engine) Contract(ctx context.Context, projectRoot string, key facts.ContractKey) (*facts.ContractFact, error) {
	store, err := e.Facts(ctx, projectRoot)
	if err != nil {
		return nil, err
	}
	c, ok := store.Contract(key)
	if !ok {
		return nil, errors.Newf(errors.ContractNotFound,
			"contract not found: %s at %s", key.Name, key.Path)
	}
	return c, nil
}

// ContractByName resolves a contract by bare name. Names are unique per
// file, not per project; a name declared in several files is ambiguous and
// the caller must retry with a full key, which the error details list.
func (e *Engine) ContractByName(ctx context.Context, projectRoot, name string) (*facts.ContractFact, error) {
	store, err := e.Facts(ctx, projectRoot)
	if err != nil {
		return nil, err
	}

	var matches []facts.ContractKey
	for _, key := range store.ContractKeys() {
		if key.Name == name {
			matches = append(matches, key)
		}
	}

	switch len(matches) {
	case 0:
		return nil, errors.Newf(errors.ContractNotFound, "contract not found: %s", name)
	case 1:
		c, _ := store.Contract(matches[0])
		return c, nil
	default:
		return nil, errors.Newf(errors.AmbiguousResolution,
			"contract %s is declared in %d files; query with an explicit path", name, len(matches)).
			WithDetails(map[string]any{"candidates": matches})
	}
}

// Function returns the fact record for a function, resolving through
// inheritance. The returned key is the declaring contract's, which may
// differ from the queried contract.
func (e *Engine) Function(ctx context.Context, projectRoot string, key facts.FunctionKey) (*facts.FunctionFact, facts.FunctionKey, error) {
	store, err := e.Facts(ctx, projectRoot)
	if err != nil {
		return nil, facts.FunctionKey{}, err
	}
	if _, ok := store.Contract(key.Contract); !ok {
		return nil, facts.FunctionKey{}, errors.Newf(errors.ContractNotFound,
			"contract not found: %s at %s", key.Contract.Name, key.Contract.Path)
	}
	fact, actual, ok := store.ResolveFunction(key)
	if !ok {
		return nil, facts.FunctionKey{}, errors.Newf(errors.FunctionNotFound,
			"function %q not found in contract %s", key.Signature, key.Contract.Name)
	}
	return fact, actual, nil
}

// FunctionMatch is one search hit
type FunctionMatch struct {
	Key        facts.FunctionKey `json:"key"`
	Visibility string            `json:"visibility"`
}

// SearchFunctions matches a regex against qualified signatures of all
// declared functions, in sorted contract order.
func (e *Engine) SearchFunctions(ctx context.Context, projectRoot, pattern string, page pagination.Request) ([]FunctionMatch, pagination.Page, error) {
	if err := page.Validate(); err != nil {
		return nil, pagination.Page{}, err
	}
	store, err := e.Facts(ctx, projectRoot)
	if err != nil {
		return nil, pagination.Page{}, err
	}
	re, err := search.Compile(pattern, true)
	if err != nil {
		return nil, pagination.Page{}, err
	}

	matches := []FunctionMatch{}
	for _, ckey := range store.ContractKeys() {
		c, _ := store.Contract(ckey)
		for _, fk := range c.DeclaredFunctions {
			if !re.MatchString(fk.Qualified()) {
				continue
			}
			fact, _, _ := store.ResolveFunction(fk)
			matches = append(matches, FunctionMatch{Key: fk, Visibility: fact.Visibility})
		}
	}

	windowed, meta := pagination.Apply(matches, page)
	return windowed, meta, nil
}

// Ancestors returns the inheritance tree above a contract. maxDepth 0
// applies the configured default; a negative value lifts the limit.
func (e *Engine) Ancestors(ctx context.Context, projectRoot string, key facts.ContractKey, maxDepth int) (*inheritance.Result, error) {
	store, err := e.Facts(ctx, projectRoot)
	if err != nil {
		return nil, err
	}
	return inheritance.NewResolver(store).Ancestors(key, e.treeOptions(maxDepth))
}

// Descendants returns the inheritance tree below a contract
func (e *Engine) Descendants(ctx context.Context, projectRoot string, key facts.ContractKey, maxDepth int) (*inheritance.Result, error) {
	store, err := e.Facts(ctx, projectRoot)
	if err != nil {
		return nil, err
	}
	return inheritance.NewResolver(store).Descendants(key, e.treeOptions(maxDepth))
}

// treeOptions maps a wire-level depth onto resolver options: 0 applies the
// configured default and negative values request an unbounded walk.
func (e *Engine) treeOptions(maxDepth int) inheritance.Options {
	switch {
	case maxDepth < 0:
		return inheritance.Options{}
	case maxDepth == 0:
		return inheritance.Options{MaxDepth: e.cfg.Query.MaxInheritanceDepth}
	default:
		return inheritance.Options{MaxDepth: maxDepth}
	}
}

// Callees classifies the call sites of a function
func (e *Engine) Callees(ctx context.Context, projectRoot string, key facts.FunctionKey, callingContext *facts.ContractKey) (*callgraph.CalleesResult, error) {
	store, err := e.Facts(ctx, projectRoot)
	if err != nil {
		return nil, err
	}
	return callgraph.NewResolver(store).Callees(key, callingContext)
}

// Callers returns the functions calling the given function, grouped by kind
func (e *Engine) Callers(ctx context.Context, projectRoot string, key facts.FunctionKey) (*callgraph.CallersResult, error) {
	store, err := e.Facts(ctx, projectRoot)
	if err != nil {
		return nil, err
	}
	return callgraph.NewResolver(store).Callers(key)
}

// Implementations returns the contracts declaring a signature, optionally
// scoped to a subtree
func (e *Engine) Implementations(ctx context.Context, projectRoot, signature string, root *facts.ContractKey) ([]facts.FunctionKey, error) {
	store, err := e.Facts(ctx, projectRoot)
	if err != nil {
		return nil, err
	}
	return callgraph.NewResolver(store).Implementations(signature, root)
}

// DetectorSummary names a detector together with its finding count
type DetectorSummary struct {
	facts.DetectorMetadata
	FindingCount int `json:"finding_count"`
}

// ListDetectors reports the detectors known to the analysis, with finding
// counts for those that ran.
func (e *Engine) ListDetectors(ctx context.Context, projectRoot string) ([]DetectorSummary, error) {
	store, err := e.Facts(ctx, projectRoot)
	if err != nil {
		return nil, err
	}

	summaries := []DetectorSummary{}
	seen := map[string]bool{}
	for _, meta := range store.AvailableDetectors() {
		findings, _ := store.DetectorResults(meta.Name)
		summaries = append(summaries, DetectorSummary{DetectorMetadata: meta, FindingCount: len(findings)})
		seen[meta.Name] = true
	}
	// Results for detectors the registry does not describe still surface.
	for _, name := range store.DetectorNames() {
		if seen[name] {
			continue
		}
		findings, _ := store.DetectorResults(name)
		summaries = append(summaries, DetectorSummary{
			DetectorMetadata: facts.DetectorMetadata{Name: name},
			FindingCount:     len(findings),
		})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Name < summaries[j].Name })
	return summaries, nil
}

// DetectorFindings returns the findings of one detector run
func (e *Engine) DetectorFindings(ctx context.Context, projectRoot, detector string) ([]facts.Finding, error) {
	store, err := e.Facts(ctx, projectRoot)
	if err != nil {
		return nil, err
	}
	findings, ok := store.DetectorResults(detector)
	if !ok {
		return nil, errors.Newf(errors.DetectorNotFound,
			"no results for detector %q; run analysis with it enabled", detector)
	}
	return findings, nil
}

// Overview summarizes one analyzed project
type Overview struct {
	ProjectRoot   string `json:"project_root"`
	ContractCount int    `json:"contract_count"`
	FunctionCount int    `json:"function_count"`
	DetectorRuns  int    `json:"detector_runs"`
}

// ProjectOverview returns headline counts for a project
func (e *Engine) ProjectOverview(ctx context.Context, projectRoot string) (*Overview, error) {
	store, err := e.Facts(ctx, projectRoot)
	if err != nil {
		return nil, err
	}
	return &Overview{
		ProjectRoot:   store.ProjectRoot(),
		ContractCount: store.ContractCount(),
		FunctionCount: store.FunctionCount(),
		DetectorRuns:  len(store.DetectorNames()),
	}, nil
}

func matchesFilter(c *facts.ContractFact, filter ContractFilter) bool {
	switch filter {
	case "", FilterAll:
		return true
	case FilterConcrete:
		return !c.IsAbstract && !c.IsInterface && !c.IsLibrary
	case FilterInterface:
		return c.IsInterface
	case FilterLibrary:
		return c.IsLibrary
	case FilterAbstract:
		return c.IsAbstract
	}
	return false
}

func excluded(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if prefix != "" && strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
