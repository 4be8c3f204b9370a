package facts_test

import (
	"reflect"
	"sync"
	"testing"

	"github.com/trailofbits/slither-mcp/internal/errors"
	"github.com/trailofbits/slither-mcp/internal/facts"
	"github.com/trailofbits/slither-mcp/internal/testutil"
)

func TestNewStoreRejectsDuplicateContracts(t *testing.T) {
	key := testutil.Key("Vault", "src/Vault.sol")
	_, err := facts.NewStore("/tmp/p", []*facts.ContractFact{{Key: key}, {Key: key}}, nil, nil, nil)
	if err == nil {
		t.Fatal("expected duplicate contract key to be rejected")
	}
	if !errors.IsCode(err, errors.IngestError) {
		t.Errorf("expected INGEST_ERROR, got %v", err)
	}
}

func TestNewStoreRejectsOrphanFunction(t *testing.T) {
	vault := testutil.Key("Vault", "src/Vault.sol")
	ghost := testutil.FnKey("ghost()", testutil.Key("Ghost", "src/Ghost.sol"))

	_, err := facts.NewStore("/tmp/p",
		[]*facts.ContractFact{{Key: vault}},
		[]*facts.FunctionFact{{Key: ghost}},
		nil, nil)
	if err == nil {
		t.Fatal("expected function referencing unknown contract to be rejected")
	}
}

func TestNewStoreRejectsUndeclaredFunction(t *testing.T) {
	vault := testutil.Key("Vault", "src/Vault.sol")
	fn := testutil.FnKey("orphan()", vault)

	// Function fact exists but the contract does not declare it.
	_, err := facts.NewStore("/tmp/p",
		[]*facts.ContractFact{{Key: vault}},
		[]*facts.FunctionFact{{Key: fn}},
		nil, nil)
	if err == nil {
		t.Fatal("expected undeclared function fact to be rejected")
	}
}

func TestNewStoreRejectsDeclaredWithoutFact(t *testing.T) {
	vault := testutil.Key("Vault", "src/Vault.sol")
	fn := testutil.FnKey("missing()", vault)

	_, err := facts.NewStore("/tmp/p",
		[]*facts.ContractFact{{Key: vault, DeclaredFunctions: []facts.FunctionKey{fn}}},
		nil, nil, nil)
	if err == nil {
		t.Fatal("expected declared function without a fact to be rejected")
	}
}

func TestOwnerMappingIsUnionOfDeclared(t *testing.T) {
	store := testutil.SampleStore(t)

	owner, ok := store.OwnerOf(testutil.FnKey("withdraw(uint256)", testutil.Vault))
	if !ok || owner != testutil.Vault {
		t.Errorf("OwnerOf(Vault.withdraw) = %v, %v", owner, ok)
	}

	// Inherited functions are owned by their declaring ancestor, so the
	// derived contract must not appear as an owner.
	if _, ok := store.OwnerOf(testutil.FnKey("owner()", testutil.Vault)); ok {
		t.Error("inherited function must not be owned by the inheriting contract")
	}
}

func TestChildrenIndex(t *testing.T) {
	store := testutil.SampleStore(t)

	children := store.Children(testutil.Vault)
	if len(children) != 1 || children[0] != testutil.VaultV2 {
		t.Errorf("Children(Vault) = %v, want [VaultV2]", children)
	}
	if got := store.Children(testutil.VaultV2); len(got) != 0 {
		t.Errorf("Children(VaultV2) = %v, want empty", got)
	}
}

func TestContractKeysSorted(t *testing.T) {
	store := testutil.SampleStore(t)

	keys := store.ContractKeys()
	for i := 1; i < len(keys); i++ {
		if !keys[i-1].Less(keys[i]) {
			t.Fatalf("contract keys not sorted at %d: %v >= %v", i, keys[i-1], keys[i])
		}
	}
}

func TestResolveFunction(t *testing.T) {
	store := testutil.SampleStore(t)

	tests := []struct {
		name      string
		key       facts.FunctionKey
		wantOwner facts.ContractKey
		wantOK    bool
	}{
		{"declared", testutil.FnKey("withdraw(uint256)", testutil.Vault), testutil.Vault, true},
		{"inherited resolves to ancestor", testutil.FnKey("owner()", testutil.Vault), testutil.Ownable, true},
		{"inherited two levels", testutil.FnKey("deposit(uint256)", testutil.VaultV2), testutil.Vault, true},
		{"unknown signature", testutil.FnKey("nope()", testutil.Vault), facts.ContractKey{}, false},
		{"unknown contract", testutil.FnKey("owner()", testutil.Key("Nope", "x.sol")), facts.ContractKey{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fact, actual, ok := store.ResolveFunction(tt.key)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if actual.Contract != tt.wantOwner {
				t.Errorf("resolved owner = %v, want %v", actual.Contract, tt.wantOwner)
			}
			if fact == nil {
				t.Error("expected non-nil fact")
			}
		})
	}
}

func TestResolveFunctionNormalizedMatch(t *testing.T) {
	vault := testutil.Key("Vault", "src/Vault.sol")
	fn := testutil.FnKey("swap(IPool.Params)", vault)

	store, err := facts.NewStore("/tmp/p",
		[]*facts.ContractFact{{Key: vault, DeclaredFunctions: []facts.FunctionKey{fn}}},
		[]*facts.FunctionFact{{Key: fn, Visibility: "external"}},
		nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	// Caller uses the short struct name; stored signature is qualified.
	_, actual, ok := store.ResolveFunction(testutil.FnKey("swap(Params)", vault))
	if !ok {
		t.Fatal("expected normalized match to resolve")
	}
	if actual != fn {
		t.Errorf("resolved = %v, want %v", actual, fn)
	}
}

func TestCallersIndex(t *testing.T) {
	store := testutil.SampleStore(t)

	refs := store.CallersOf("Token.transfer(address,uint256)")
	if len(refs) != 1 {
		t.Fatalf("CallersOf(Token.transfer) = %v, want one caller", refs)
	}
	if refs[0].Caller != testutil.FnKey("withdraw(uint256)", testutil.Vault) {
		t.Errorf("caller = %v, want Vault.withdraw", refs[0].Caller)
	}
	if refs[0].Kind != facts.CallExternal {
		t.Errorf("kind = %v, want external", refs[0].Kind)
	}
}

// Hint-less internal calls to an inherited function are indexed under the
// declaring ancestor, not the calling contract, so caller lookups agree with
// callee resolution.
func TestCallersIndexResolvesInheritedTargets(t *testing.T) {
	store := testutil.SampleStore(t)

	refs := store.CallersOf("Vault._update(uint256)")
	callers := map[facts.FunctionKey]bool{}
	for _, ref := range refs {
		if ref.Kind != facts.CallInternal {
			t.Errorf("kind = %v, want internal", ref.Kind)
		}
		callers[ref.Caller] = true
	}
	if len(refs) != 2 ||
		!callers[testutil.FnKey("deposit(uint256)", testutil.Vault)] ||
		!callers[testutil.FnKey("withdraw(uint256)", testutil.VaultV2)] {
		t.Errorf("CallersOf(Vault._update) = %v, want Vault.deposit and VaultV2.withdraw", refs)
	}

	// The calling contract's name never enters the index for resolved targets.
	if stray := store.CallersOf("VaultV2._update(uint256)"); len(stray) != 0 {
		t.Errorf("CallersOf(VaultV2._update) = %v, want none", stray)
	}
}

// Returned caller slices must not alias the index; a reader that appends to
// or overwrites its result would otherwise corrupt the store for everyone.
func TestCallersOfReturnsFreshSlice(t *testing.T) {
	store := testutil.SampleStore(t)

	refs := store.CallersOf("Vault._update(uint256)")
	if len(refs) == 0 {
		t.Fatal("expected callers for Vault._update")
	}
	refs[0] = facts.CallerRef{}
	_ = append(refs, facts.CallerRef{Kind: facts.CallLibrary})

	again := store.CallersOf("Vault._update(uint256)")
	for _, ref := range again {
		if ref.Caller.Signature == "" || ref.Kind == facts.CallLibrary {
			t.Fatalf("index mutated through a returned slice: %v", again)
		}
	}
}

func TestCallersOfConcurrentReaders(t *testing.T) {
	store := testutil.SampleStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				refs := store.CallersOf("Vault._update(uint256)")
				_ = append(refs, facts.CallerRef{})
			}
		}()
	}
	wg.Wait()
}

func TestDetectorAccessors(t *testing.T) {
	store := testutil.SampleStore(t)

	findings, ok := store.DetectorResults("reentrancy-eth")
	if !ok || len(findings) != 1 {
		t.Fatalf("DetectorResults(reentrancy-eth) = %v, %v", findings, ok)
	}
	if _, ok := store.DetectorResults("no-such-detector"); ok {
		t.Error("expected unknown detector to report not found")
	}
	if names := store.DetectorNames(); !reflect.DeepEqual(names, []string{"reentrancy-eth"}) {
		t.Errorf("DetectorNames() = %v", names)
	}
	if len(store.AvailableDetectors()) != 2 {
		t.Errorf("AvailableDetectors() = %v", store.AvailableDetectors())
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	store := testutil.SampleStore(t)

	restored, err := facts.FromSnapshot(store.Snapshot())
	if err != nil {
		t.Fatalf("FromSnapshot() error: %v", err)
	}

	if !reflect.DeepEqual(store.Snapshot(), restored.Snapshot()) {
		t.Error("snapshot round trip is not structurally equal")
	}
	if restored.ProjectRoot() != store.ProjectRoot() {
		t.Errorf("project root = %q, want %q", restored.ProjectRoot(), store.ProjectRoot())
	}
	if restored.ContractCount() != store.ContractCount() {
		t.Errorf("contract count = %d, want %d", restored.ContractCount(), store.ContractCount())
	}
}
