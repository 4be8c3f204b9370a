package facts

// CallKind classifies a call site by its target relationship
type CallKind string

const (
	// CallInternal is a call into the same contract or an inherited function
	CallInternal CallKind = "internal"
	// CallExternal is a cross-contract call
	CallExternal CallKind = "external"
	// CallLibrary is a call into a library
	CallLibrary CallKind = "library"
	// CallLowLevel is a raw call whose target the analyzer could not type
	// (e.g. address.call). Reported as a warning signal, never an error.
	CallLowLevel CallKind = "low_level"
)

// CallSite is one statically observed call expression inside a function body.
// TargetContract is nil when the analyzer could not resolve the receiver type;
// the call graph resolver handles that ambiguity at query time.
type CallSite struct {
	TargetSignature string       `json:"target_signature"`
	TargetContract  *ContractKey `json:"target_contract,omitempty"`
	Kind            CallKind     `json:"kind"`
}

// SourceLocation is a line range within a source file
type SourceLocation struct {
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
}

// FunctionFact is the per-function record extracted by the analyzer
type FunctionFact struct {
	Key           FunctionKey    `json:"key"`
	Visibility    string         `json:"visibility"`
	IsView        bool           `json:"is_view,omitempty"`
	IsPure        bool           `json:"is_pure,omitempty"`
	IsPayable     bool           `json:"is_payable,omitempty"`
	IsConstructor bool           `json:"is_constructor,omitempty"`
	IsVirtual     bool           `json:"is_virtual,omitempty"`
	Modifiers     []string       `json:"modifiers,omitempty"`
	Parameters    []string       `json:"parameters,omitempty"`
	Returns       []string       `json:"returns,omitempty"`
	Location      SourceLocation `json:"location"`
	CallSites     []CallSite     `json:"call_sites,omitempty"`
}

// ContractFact is the per-contract record extracted by the analyzer.
// The ordered sequences preserve declaration order, which is significant
// for parent linearization and for deterministic query output.
type ContractFact struct {
	Key                ContractKey   `json:"key"`
	IsAbstract         bool          `json:"is_abstract,omitempty"`
	IsInterface        bool          `json:"is_interface,omitempty"`
	IsLibrary          bool          `json:"is_library,omitempty"`
	IsFullyImplemented bool          `json:"is_fully_implemented"`
	DirectParents      []ContractKey `json:"direct_parents,omitempty"`
	DeclaredFunctions  []FunctionKey `json:"declared_functions,omitempty"`
	InheritedFunctions []FunctionKey `json:"inherited_functions,omitempty"`
}

// DetectorMetadata describes one available detector
type DetectorMetadata struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Impact      string `json:"impact"`
	Confidence  string `json:"confidence"`
}

// Finding is a single detector result
type Finding struct {
	Detector    string           `json:"detector"`
	Check       string           `json:"check"`
	Impact      string           `json:"impact"`
	Confidence  string           `json:"confidence"`
	Description string           `json:"description"`
	Locations   []SourceLocation `json:"locations,omitempty"`
}
