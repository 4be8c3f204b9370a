// Package testutil provides shared fact-store fixtures for resolver tests.
package testutil

import (
	"testing"

	"github.com/trailofbits/slither-mcp/internal/facts"
)

// Key returns a contract key for the fixture project.
func Key(name, path string) facts.ContractKey {
	return facts.ContractKey{Name: name, Path: path}
}

// FnKey returns a function key for the fixture project.
func FnKey(sig string, contract facts.ContractKey) facts.FunctionKey {
	return facts.FunctionKey{Signature: sig, Contract: contract}
}

// Fixture contract keys, shared across resolver tests.
var (
	Ownable  = Key("Ownable", "src/auth/Ownable.sol")
	IVault   = Key("IVault", "src/IVault.sol")
	SafeMath = Key("SafeMath", "src/lib/SafeMath.sol")
	Token    = Key("Token", "src/Token.sol")
	Vault    = Key("Vault", "src/Vault.sol")
	VaultV2  = Key("VaultV2", "src/VaultV2.sol")
)

// SampleStore builds a small but representative fact store:
//
//	IVault (interface)   Ownable
//	        \            /
//	          Vault ---- uses SafeMath (library), calls Token externally
//	            |
//	         VaultV2 (overrides withdraw)
//
// Vault.withdraw makes an external call to Token.transfer and a low-level
// call; Vault.deposit makes an internal call to _update and a library call
// to SafeMath.add.
func SampleStore(t *testing.T) *facts.Store {
	t.Helper()

	contracts := []*facts.ContractFact{
		{
			Key:                Ownable,
			IsFullyImplemented: true,
			DeclaredFunctions: []facts.FunctionKey{
				FnKey("owner()", Ownable),
				FnKey("transferOwnership(address)", Ownable),
			},
		},
		{
			Key:         IVault,
			IsInterface: true,
			DeclaredFunctions: []facts.FunctionKey{
				FnKey("deposit(uint256)", IVault),
				FnKey("withdraw(uint256)", IVault),
			},
		},
		{
			Key:                SafeMath,
			IsLibrary:          true,
			IsFullyImplemented: true,
			DeclaredFunctions: []facts.FunctionKey{
				FnKey("add(uint256,uint256)", SafeMath),
			},
		},
		{
			Key:                Token,
			IsFullyImplemented: true,
			DeclaredFunctions: []facts.FunctionKey{
				FnKey("transfer(address,uint256)", Token),
			},
		},
		{
			Key:                Vault,
			IsFullyImplemented: true,
			DirectParents:      []facts.ContractKey{IVault, Ownable},
			DeclaredFunctions: []facts.FunctionKey{
				FnKey("deposit(uint256)", Vault),
				FnKey("withdraw(uint256)", Vault),
				FnKey("_update(uint256)", Vault),
			},
			InheritedFunctions: []facts.FunctionKey{
				FnKey("owner()", Ownable),
				FnKey("transferOwnership(address)", Ownable),
			},
		},
		{
			Key:                VaultV2,
			IsFullyImplemented: true,
			DirectParents:      []facts.ContractKey{Vault},
			DeclaredFunctions: []facts.FunctionKey{
				FnKey("withdraw(uint256)", VaultV2),
			},
			InheritedFunctions: []facts.FunctionKey{
				FnKey("deposit(uint256)", Vault),
				FnKey("_update(uint256)", Vault),
				FnKey("owner()", Ownable),
				FnKey("transferOwnership(address)", Ownable),
			},
		},
	}

	functions := []*facts.FunctionFact{
		{
			Key:        FnKey("owner()", Ownable),
			Visibility: "public",
			IsView:     true,
			Location:   facts.SourceLocation{File: "src/auth/Ownable.sol", StartLine: 10, EndLine: 12},
		},
		{
			Key:        FnKey("transferOwnership(address)", Ownable),
			Visibility: "public",
			IsVirtual:  true,
			Parameters: []string{"address"},
			Location:   facts.SourceLocation{File: "src/auth/Ownable.sol", StartLine: 14, EndLine: 18},
		},
		{
			Key:        FnKey("deposit(uint256)", IVault),
			Visibility: "external",
			Parameters: []string{"uint256"},
			Location:   facts.SourceLocation{File: "src/IVault.sol", StartLine: 4, EndLine: 4},
		},
		{
			Key:        FnKey("withdraw(uint256)", IVault),
			Visibility: "external",
			Parameters: []string{"uint256"},
			Location:   facts.SourceLocation{File: "src/IVault.sol", StartLine: 5, EndLine: 5},
		},
		{
			Key:        FnKey("add(uint256,uint256)", SafeMath),
			Visibility: "internal",
			IsPure:     true,
			Parameters: []string{"uint256", "uint256"},
			Returns:    []string{"uint256"},
			Location:   facts.SourceLocation{File: "src/lib/SafeMath.sol", StartLine: 3, EndLine: 5},
		},
		{
			Key:        FnKey("transfer(address,uint256)", Token),
			Visibility: "public",
			Parameters: []string{"address", "uint256"},
			Returns:    []string{"bool"},
			Location:   facts.SourceLocation{File: "src/Token.sol", StartLine: 20, EndLine: 25},
		},
		{
			Key:        FnKey("deposit(uint256)", Vault),
			Visibility: "external",
			IsPayable:  true,
			Parameters: []string{"uint256"},
			Location:   facts.SourceLocation{File: "src/Vault.sol", StartLine: 15, EndLine: 22},
			CallSites: []facts.CallSite{
				{TargetSignature: "_update(uint256)", Kind: facts.CallInternal},
				{TargetSignature: "add(uint256,uint256)", TargetContract: &SafeMath, Kind: facts.CallLibrary},
			},
		},
		{
			Key:        FnKey("withdraw(uint256)", Vault),
			Visibility: "external",
			IsVirtual:  true,
			Parameters: []string{"uint256"},
			Location:   facts.SourceLocation{File: "src/Vault.sol", StartLine: 24, EndLine: 35},
			CallSites: []facts.CallSite{
				{TargetSignature: "transfer(address,uint256)", TargetContract: &Token, Kind: facts.CallExternal},
				{TargetSignature: "call(bytes)", Kind: facts.CallLowLevel},
			},
		},
		{
			Key:        FnKey("_update(uint256)", Vault),
			Visibility: "internal",
			Parameters: []string{"uint256"},
			Location:   facts.SourceLocation{File: "src/Vault.sol", StartLine: 37, EndLine: 40},
		},
		{
			Key:        FnKey("withdraw(uint256)", VaultV2),
			Visibility: "external",
			Parameters: []string{"uint256"},
			Modifiers:  []string{"onlyOwner"},
			Location:   facts.SourceLocation{File: "src/VaultV2.sol", StartLine: 8, EndLine: 14},
			CallSites: []facts.CallSite{
				{TargetSignature: "_update(uint256)", Kind: facts.CallInternal},
			},
		},
	}

	detectorResults := map[string][]facts.Finding{
		"reentrancy-eth": {
			{
				Detector:    "reentrancy-eth",
				Check:       "reentrancy-eth",
				Impact:      "High",
				Confidence:  "Medium",
				Description: "Reentrancy in Vault.withdraw(uint256)",
				Locations: []facts.SourceLocation{
					{File: "src/Vault.sol", StartLine: 24, EndLine: 35},
				},
			},
		},
	}

	detectors := []facts.DetectorMetadata{
		{Name: "reentrancy-eth", Description: "Reentrancy vulnerabilities (theft of ethers)", Impact: "High", Confidence: "Medium"},
		{Name: "unused-state", Description: "Unused state variables", Impact: "Informational", Confidence: "High"},
	}

	store, err := facts.NewStore("/tmp/sample-project", contracts, functions, detectorResults, detectors)
	if err != nil {
		t.Fatalf("building sample store: %v", err)
	}
	return store
}

// CyclicStore builds a store whose inheritance graph contains a cycle
// (A -> B -> C -> A), for cycle-guard tests. Mis-declared circular
// inheritance must be survivable, not fatal.
func CyclicStore(t *testing.T) *facts.Store {
	t.Helper()

	a := Key("A", "src/A.sol")
	b := Key("B", "src/B.sol")
	c := Key("C", "src/C.sol")

	contracts := []*facts.ContractFact{
		{Key: a, DirectParents: []facts.ContractKey{b}},
		{Key: b, DirectParents: []facts.ContractKey{c}},
		{Key: c, DirectParents: []facts.ContractKey{a}},
	}

	store, err := facts.NewStore("/tmp/cyclic-project", contracts, nil, nil, nil)
	if err != nil {
		t.Fatalf("building cyclic store: %v", err)
	}
	return store
}

// DiamondStore builds a diamond: D inherits B and C, both inheriting A.
func DiamondStore(t *testing.T) *facts.Store {
	t.Helper()

	a := Key("A", "src/A.sol")
	b := Key("B", "src/B.sol")
	c := Key("C", "src/C.sol")
	d := Key("D", "src/D.sol")

	contracts := []*facts.ContractFact{
		{Key: a},
		{Key: b, DirectParents: []facts.ContractKey{a}},
		{Key: c, DirectParents: []facts.ContractKey{a}},
		{Key: d, DirectParents: []facts.ContractKey{b, c}},
	}

	store, err := facts.NewStore("/tmp/diamond-project", contracts, nil, nil, nil)
	if err != nil {
		t.Fatalf("building diamond store: %v", err)
	}
	return store
}
