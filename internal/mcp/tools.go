package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/trailofbits/slither-mcp/internal/engine"
	"github.com/trailofbits/slither-mcp/internal/errors"
	"github.com/trailofbits/slither-mcp/internal/facts"
	"github.com/trailofbits/slither-mcp/internal/pagination"
)

// Tool describes one tool exposed via tools/list
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// contractRef names a contract in tool arguments. Path is optional; without
// it the name must be unique in the project.
type contractRef struct {
	ContractName string `json:"contract_name"`
	ContractPath string `json:"contract_path,omitempty"`
}

// resolve turns a ref into a full contract key, resolving bare names through
// the engine so ambiguity is reported instead of guessed at.
func (s *Server) resolve(ctx context.Context, projectPath string, ref contractRef) (facts.ContractKey, error) {
	if ref.ContractName == "" {
		return facts.ContractKey{}, errors.New(errors.InvalidArgument, "contract_name is required")
	}
	if ref.ContractPath != "" {
		key := facts.ContractKey{Name: ref.ContractName, Path: ref.ContractPath}
		if _, err := s.engine.Contract(ctx, projectPath, key); err != nil {
			return facts.ContractKey{}, err
		}
		return key, nil
	}
	c, err := s.engine.ContractByName(ctx, projectPath, ref.ContractName)
	if err != nil {
		return facts.ContractKey{}, err
	}
	return c.Key, nil
}

func (s *Server) registerTools() {
	s.tools["analyze_project"] = s.toolAnalyzeProject
	s.tools["get_project_overview"] = s.toolProjectOverview
	s.tools["list_contracts"] = s.toolListContracts
	s.tools["get_contract"] = s.toolGetContract
	s.tools["get_function"] = s.toolGetFunction
	s.tools["get_function_source"] = s.toolFunctionSource
	s.tools["get_contract_source"] = s.toolContractSource
	s.tools["get_inheritance_hierarchy"] = s.toolAncestors
	s.tools["get_derived_contracts"] = s.toolDescendants
	s.tools["list_function_callees"] = s.toolCallees
	s.tools["list_function_callers"] = s.toolCallers
	s.tools["list_function_implementations"] = s.toolImplementations
	s.tools["search_functions"] = s.toolSearchFunctions
	s.tools["list_detectors"] = s.toolListDetectors
	s.tools["get_detector_findings"] = s.toolDetectorFindings
}

// decodeArgs maps loosely-typed tool arguments onto a typed request
func decodeArgs(args map[string]interface{}, into interface{}) error {
	data, err := json.Marshal(args)
	if err != nil {
		return errors.Wrap(errors.InvalidArgument, "encoding tool arguments", err)
	}
	if err := json.Unmarshal(data, into); err != nil {
		return errors.Wrap(errors.InvalidArgument, "invalid tool arguments", err)
	}
	return nil
}

type projectArgs struct {
	Path string `json:"path"`
}

func (a projectArgs) validate() error {
	if a.Path == "" {
		return errors.New(errors.InvalidArgument, "path is required")
	}
	return nil
}

func (s *Server) toolAnalyzeProject(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var req projectArgs
	if err := decodeArgs(args, &req); err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	if _, err := s.engine.Refresh(ctx, req.Path); err != nil {
		return nil, err
	}
	return s.engine.ProjectOverview(ctx, req.Path)
}

func (s *Server) toolProjectOverview(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var req projectArgs
	if err := decodeArgs(args, &req); err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	return s.engine.ProjectOverview(ctx, req.Path)
}

func (s *Server) toolListContracts(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var req struct {
		projectArgs
		Filter       string   `json:"filter,omitempty"`
		NamePattern  string   `json:"name_pattern,omitempty"`
		ExcludePaths []string `json:"exclude_paths,omitempty"`
		Offset       int      `json:"offset,omitempty"`
		Limit        int      `json:"limit,omitempty"`
	}
	if err := decodeArgs(args, &req); err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	return s.engine.ListContracts(ctx, req.Path, engine.ListContractsRequest{
		Filter:       engine.ContractFilter(req.Filter),
		NamePattern:  req.NamePattern,
		ExcludePaths: req.ExcludePaths,
		Page:         pagination.Request{Offset: req.Offset, Limit: req.Limit},
	})
}

func (s *Server) toolGetContract(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var req struct {
		projectArgs
		contractRef
	}
	if err := decodeArgs(args, &req); err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	key, err := s.resolve(ctx, req.Path, req.contractRef)
	if err != nil {
		return nil, err
	}
	return s.engine.Contract(ctx, req.Path, key)
}

type functionArgs struct {
	projectArgs
	contractRef
	Signature string `json:"signature"`
}

func (a functionArgs) validate() error {
	if err := a.projectArgs.validate(); err != nil {
		return err
	}
	if a.Signature == "" {
		return errors.New(errors.InvalidArgument, "signature is required")
	}
	return nil
}

func (s *Server) functionKey(ctx context.Context, a functionArgs) (facts.FunctionKey, error) {
	key, err := s.resolve(ctx, a.Path, a.contractRef)
	if err != nil {
		return facts.FunctionKey{}, err
	}
	return facts.FunctionKey{Signature: a.Signature, Contract: key}, nil
}

func (s *Server) toolGetFunction(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var req functionArgs
	if err := decodeArgs(args, &req); err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	key, err := s.functionKey(ctx, req)
	if err != nil {
		return nil, err
	}
	fact, actual, err := s.engine.Function(ctx, req.Path, key)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"function":    fact,
		"declared_by": actual.Contract,
	}, nil
}

func (s *Server) toolFunctionSource(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var req functionArgs
	if err := decodeArgs(args, &req); err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	key, err := s.functionKey(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.engine.FunctionSource(ctx, req.Path, key)
}

func (s *Server) toolContractSource(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var req struct {
		projectArgs
		contractRef
	}
	if err := decodeArgs(args, &req); err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	key, err := s.resolve(ctx, req.Path, req.contractRef)
	if err != nil {
		return nil, err
	}
	return s.engine.ContractSource(ctx, req.Path, key)
}

type treeArgs struct {
	projectArgs
	contractRef
	MaxDepth int `json:"max_depth,omitempty"`
}

func (s *Server) toolAncestors(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var req treeArgs
	if err := decodeArgs(args, &req); err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	key, err := s.resolve(ctx, req.Path, req.contractRef)
	if err != nil {
		return nil, err
	}
	return s.engine.Ancestors(ctx, req.Path, key, req.MaxDepth)
}

func (s *Server) toolDescendants(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var req treeArgs
	if err := decodeArgs(args, &req); err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	key, err := s.resolve(ctx, req.Path, req.contractRef)
	if err != nil {
		return nil, err
	}
	return s.engine.Descendants(ctx, req.Path, key, req.MaxDepth)
}

func (s *Server) toolCallees(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var req struct {
		functionArgs
		CallingContext *contractRef `json:"calling_context,omitempty"`
	}
	if err := decodeArgs(args, &req); err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	key, err := s.functionKey(ctx, req.functionArgs)
	if err != nil {
		return nil, err
	}
	var callingContext *facts.ContractKey
	if req.CallingContext != nil {
		ctxKey, err := s.resolve(ctx, req.Path, *req.CallingContext)
		if err != nil {
			return nil, err
		}
		callingContext = &ctxKey
	}
	return s.engine.Callees(ctx, req.Path, key, callingContext)
}

func (s *Server) toolCallers(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var req functionArgs
	if err := decodeArgs(args, &req); err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	key, err := s.functionKey(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.engine.Callers(ctx, req.Path, key)
}

func (s *Server) toolImplementations(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var req struct {
		projectArgs
		Signature string       `json:"signature"`
		Root      *contractRef `json:"root_contract,omitempty"`
	}
	if err := decodeArgs(args, &req); err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	if req.Signature == "" {
		return nil, errors.New(errors.InvalidArgument, "signature is required")
	}
	var root *facts.ContractKey
	if req.Root != nil {
		key, err := s.resolve(ctx, req.Path, *req.Root)
		if err != nil {
			return nil, err
		}
		root = &key
	}
	impls, err := s.engine.Implementations(ctx, req.Path, req.Signature, root)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"implementations": impls}, nil
}

func (s *Server) toolSearchFunctions(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var req struct {
		projectArgs
		Pattern string `json:"pattern"`
		Offset  int    `json:"offset,omitempty"`
		Limit   int    `json:"limit,omitempty"`
	}
	if err := decodeArgs(args, &req); err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	if req.Pattern == "" {
		return nil, errors.New(errors.InvalidArgument, "pattern is required")
	}
	matches, page, err := s.engine.SearchFunctions(ctx, req.Path, req.Pattern,
		pagination.Request{Offset: req.Offset, Limit: req.Limit})
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"matches": matches, "page": page}, nil
}

func (s *Server) toolListDetectors(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var req projectArgs
	if err := decodeArgs(args, &req); err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	detectors, err := s.engine.ListDetectors(ctx, req.Path)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"detectors": detectors}, nil
}

func (s *Server) toolDetectorFindings(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var req struct {
		projectArgs
		Detector string `json:"detector"`
	}
	if err := decodeArgs(args, &req); err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	if req.Detector == "" {
		return nil, errors.New(errors.InvalidArgument, "detector is required")
	}
	findings, err := s.engine.DetectorFindings(ctx, req.Path, req.Detector)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"findings": findings}, nil
}

// successContent wraps a tool result in MCP content format
func successContent(result interface{}) map[string]interface{} {
	data, err := json.Marshal(result)
	if err != nil {
		return errorContent(errors.Wrap(errors.InternalError, "encoding tool result", err))
	}
	return map[string]interface{}{
		"content": []map[string]interface{}{
			{"type": "text", "text": string(data)},
		},
	}
}

// errorContent reports a tool failure with its stable code, so clients can
// branch without parsing messages.
func errorContent(err error) map[string]interface{} {
	payload := map[string]interface{}{
		"code":    errors.CodeOf(err),
		"message": err.Error(),
	}
	var qe *errors.QueryError
	if stderrors.As(err, &qe) && qe.Details != nil {
		payload["details"] = qe.Details
	}
	data, _ := json.Marshal(payload)
	return map[string]interface{}{
		"content": []map[string]interface{}{
			{"type": "text", "text": string(data)},
		},
		"isError": true,
	}
}

// toolDefinitions returns the tools/list payload
func (s *Server) toolDefinitions() []Tool {
	pathProp := map[string]interface{}{
		"type":        "string",
		"description": "Path to the Solidity project directory",
	}
	contractProps := map[string]interface{}{
		"path": pathProp,
		"contract_name": map[string]interface{}{
			"type":        "string",
			"description": "Contract name; must be unique in the project unless contract_path is given",
		},
		"contract_path": map[string]interface{}{
			"type":        "string",
			"description": "Source file declaring the contract, for disambiguation",
		},
	}
	functionProps := map[string]interface{}{}
	for k, v := range contractProps {
		functionProps[k] = v
	}
	functionProps["signature"] = map[string]interface{}{
		"type":        "string",
		"description": "Function signature, e.g. transfer(address,uint256)",
	}

	obj := func(props map[string]interface{}, required ...string) map[string]interface{} {
		schema := map[string]interface{}{"type": "object", "properties": props}
		if len(required) > 0 {
			schema["required"] = required
		}
		return schema
	}

	return []Tool{
		{
			Name:        "analyze_project",
			Description: "Run slither on a project and cache the resulting fact graph, replacing any previous analysis",
			InputSchema: obj(map[string]interface{}{"path": pathProp}, "path"),
		},
		{
			Name:        "get_project_overview",
			Description: "Get contract, function, and detector counts for an analyzed project",
			InputSchema: obj(map[string]interface{}{"path": pathProp}, "path"),
		},
		{
			Name:        "list_contracts",
			Description: "List contracts with optional kind filter (all, concrete, interface, library, abstract), name regex, and path exclusions",
			InputSchema: obj(map[string]interface{}{
				"path":          pathProp,
				"filter":        map[string]interface{}{"type": "string", "enum": []string{"all", "concrete", "interface", "library", "abstract"}},
				"name_pattern":  map[string]interface{}{"type": "string", "description": "Regex applied to contract names"},
				"exclude_paths": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
				"offset":        map[string]interface{}{"type": "integer"},
				"limit":         map[string]interface{}{"type": "integer"},
			}, "path"),
		},
		{
			Name:        "get_contract",
			Description: "Get the full fact record for a contract: flags, parents, declared and inherited functions",
			InputSchema: obj(contractProps, "path", "contract_name"),
		},
		{
			Name:        "get_function",
			Description: "Get the fact record for a function, resolving through inheritance to the declaring contract",
			InputSchema: obj(functionProps, "path", "contract_name", "signature"),
		},
		{
			Name:        "get_function_source",
			Description: "Read a function's source text from its recorded file and line range",
			InputSchema: obj(functionProps, "path", "contract_name", "signature"),
		},
		{
			Name:        "get_contract_source",
			Description: "Read the full source file declaring a contract",
			InputSchema: obj(contractProps, "path", "contract_name"),
		},
		{
			Name:        "get_inheritance_hierarchy",
			Description: "Get the ancestor tree of a contract (direct and transitive parents)",
			InputSchema: obj(withDepth(contractProps), "path", "contract_name"),
		},
		{
			Name:        "get_derived_contracts",
			Description: "Get the descendant tree of a contract (contracts inheriting from it)",
			InputSchema: obj(withDepth(contractProps), "path", "contract_name"),
		},
		{
			Name:        "list_function_callees",
			Description: "Classify a function's call sites into internal, external, library, and low-level calls",
			InputSchema: obj(functionProps, "path", "contract_name", "signature"),
		},
		{
			Name:        "list_function_callers",
			Description: "List the functions that call a given function, grouped by call kind",
			InputSchema: obj(functionProps, "path", "contract_name", "signature"),
		},
		{
			Name:        "list_function_implementations",
			Description: "List contracts declaring a signature, optionally restricted to one contract's descendants",
			InputSchema: obj(map[string]interface{}{
				"path":      pathProp,
				"signature": functionProps["signature"],
			}, "path", "signature"),
		},
		{
			Name:        "search_functions",
			Description: "Search declared functions by regex over their qualified signatures",
			InputSchema: obj(map[string]interface{}{
				"path":    pathProp,
				"pattern": map[string]interface{}{"type": "string", "description": "Regex pattern"},
				"offset":  map[string]interface{}{"type": "integer"},
				"limit":   map[string]interface{}{"type": "integer"},
			}, "path", "pattern"),
		},
		{
			Name:        "list_detectors",
			Description: "List detectors known to the analysis with finding counts",
			InputSchema: obj(map[string]interface{}{"path": pathProp}, "path"),
		},
		{
			Name:        "get_detector_findings",
			Description: "Get the findings of one detector run",
			InputSchema: obj(map[string]interface{}{
				"path":     pathProp,
				"detector": map[string]interface{}{"type": "string", "description": "Detector name, e.g. reentrancy-eth"},
			}, "path", "detector"),
		},
	}
}

func withDepth(props map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{}
	for k, v := range props {
		out[k] = v
	}
	out["max_depth"] = map[string]interface{}{
		"type":        "integer",
		"description": "Maximum tree depth; 0 applies the configured default, -1 walks the full tree",
	}
	return out
}
