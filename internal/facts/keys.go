package facts

import (
	"fmt"
	"strings"
)

// ContractKey identifies a contract by name and declaring file path.
// Two contracts with the same name in different files are distinct entities.
// The path is relative to the project root, with forward slashes.
type ContractKey struct {
	Name string `json:"contract_name"`
	Path string `json:"path"`
}

// String renders the key in its canonical one-line form, Name@path,
// with "/" escaped as "!" so the result stays a single path-safe token.
func (k ContractKey) String() string {
	return k.Name + "@" + strings.ReplaceAll(k.Path, "/", "!")
}

// ParseContractKey parses the canonical string form produced by String.
func ParseContractKey(s string) (ContractKey, error) {
	name, path, ok := strings.Cut(s, "@")
	if !ok || name == "" {
		return ContractKey{}, fmt.Errorf("invalid contract key %q: want Name@path", s)
	}
	return ContractKey{Name: name, Path: strings.ReplaceAll(path, "!", "/")}, nil
}

// Less defines a total order over contract keys (name, then path),
// used everywhere deterministic output is required.
func (k ContractKey) Less(other ContractKey) bool {
	if k.Name != other.Name {
		return k.Name < other.Name
	}
	return k.Path < other.Path
}

// IsZero reports whether the key is the zero value
func (k ContractKey) IsZero() bool {
	return k.Name == "" && k.Path == ""
}

// FunctionKey identifies a function by its canonical parameter-typed
// signature and the contract that declares it. The signature carries
// name and ordered parameter types, e.g. "transfer(address,uint256)",
// which disambiguates overloads.
type FunctionKey struct {
	Signature string      `json:"signature"`
	Contract  ContractKey `json:"contract"`
}

// String renders the key as Contract.signature@path with "/" escaped as "-".
func (k FunctionKey) String() string {
	return k.Contract.Name + "." + k.Signature + "@" + strings.ReplaceAll(k.Contract.Path, "/", "-")
}

// ParseFunctionKey parses the canonical string form produced by String.
func ParseFunctionKey(s string) (FunctionKey, error) {
	full, path, ok := strings.Cut(s, "@")
	if !ok {
		return FunctionKey{}, fmt.Errorf("invalid function key %q: want Contract.sig@path", s)
	}
	// The signature itself may contain dots in qualified parameter types,
	// so only the first dot separates contract from signature.
	contract, sig, ok := strings.Cut(full, ".")
	if !ok || contract == "" || sig == "" {
		return FunctionKey{}, fmt.Errorf("invalid function key %q: want Contract.sig@path", s)
	}
	return FunctionKey{
		Signature: sig,
		Contract:  ContractKey{Name: contract, Path: strings.ReplaceAll(path, "-", "/")},
	}, nil
}

// Less defines a total order over function keys (contract, then signature).
func (k FunctionKey) Less(other FunctionKey) bool {
	if k.Contract != other.Contract {
		return k.Contract.Less(other.Contract)
	}
	return k.Signature < other.Signature
}

// Qualified returns the contract-qualified signature, "Contract.sig(args)".
// This is the form call sites use to name their targets.
func (k FunctionKey) Qualified() string {
	return k.Contract.Name + "." + k.Signature
}
