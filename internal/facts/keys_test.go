package facts

import "testing"

func TestContractKeyStringRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		key  ContractKey
		want string
	}{
		{"simple", ContractKey{Name: "Vault", Path: "Vault.sol"}, "Vault@Vault.sol"},
		{"nested path", ContractKey{Name: "Vault", Path: "src/core/Vault.sol"}, "Vault@src!core!Vault.sol"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
			parsed, err := ParseContractKey(tt.key.String())
			if err != nil {
				t.Fatalf("ParseContractKey() error: %v", err)
			}
			if parsed != tt.key {
				t.Errorf("round trip = %+v, want %+v", parsed, tt.key)
			}
		})
	}
}

func TestParseContractKeyInvalid(t *testing.T) {
	for _, s := range []string{"", "NoSeparator", "@path.sol"} {
		if _, err := ParseContractKey(s); err == nil {
			t.Errorf("ParseContractKey(%q) expected error", s)
		}
	}
}

func TestFunctionKeyStringRoundTrip(t *testing.T) {
	key := FunctionKey{
		Signature: "transfer(address,uint256)",
		Contract:  ContractKey{Name: "Token", Path: "src/Token.sol"},
	}

	s := key.String()
	if s != "Token.transfer(address,uint256)@src-Token.sol" {
		t.Errorf("String() = %q", s)
	}

	parsed, err := ParseFunctionKey(s)
	if err != nil {
		t.Fatalf("ParseFunctionKey() error: %v", err)
	}
	if parsed != key {
		t.Errorf("round trip = %+v, want %+v", parsed, key)
	}
}

func TestParseFunctionKeyQualifiedParamTypes(t *testing.T) {
	// Only the first dot separates contract from signature; later dots
	// belong to qualified parameter types.
	parsed, err := ParseFunctionKey("Router.swap(IPool.Params,bytes)@src-Router.sol")
	if err != nil {
		t.Fatalf("ParseFunctionKey() error: %v", err)
	}
	if parsed.Contract.Name != "Router" {
		t.Errorf("contract = %q, want Router", parsed.Contract.Name)
	}
	if parsed.Signature != "swap(IPool.Params,bytes)" {
		t.Errorf("signature = %q", parsed.Signature)
	}
}

func TestContractKeyOrdering(t *testing.T) {
	a := ContractKey{Name: "A", Path: "z.sol"}
	b := ContractKey{Name: "B", Path: "a.sol"}
	sameName := ContractKey{Name: "A", Path: "a.sol"}

	if !a.Less(b) {
		t.Error("expected name to order first")
	}
	if !sameName.Less(a) {
		t.Error("expected path to break name ties")
	}
	if a.Less(a) {
		t.Error("Less must be irreflexive")
	}
}

func TestFunctionKeyQualified(t *testing.T) {
	key := FunctionKey{
		Signature: "withdraw(uint256)",
		Contract:  ContractKey{Name: "Vault", Path: "src/Vault.sol"},
	}
	if got := key.Qualified(); got != "Vault.withdraw(uint256)" {
		t.Errorf("Qualified() = %q", got)
	}
}
