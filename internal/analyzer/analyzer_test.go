package analyzer

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/trailofbits/slither-mcp/internal/errors"
	"github.com/trailofbits/slither-mcp/internal/logging"
)

// fakeSlither writes a shell script standing in for the slither binary, so
// the runner's subprocess handling is tested without the real analyzer.
func fakeSlither(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "slither")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

const fakeDump = `{
  "project_root": "/work/p",
  "contracts": [
    {"name": "A", "path": "a.sol", "is_fully_implemented": true,
     "functions_declared": [{"signature": "f()", "visibility": "public", "callees": []}]}
  ]
}`

func TestAnalyzeIngestsDump(t *testing.T) {
	r := NewSlitherRunner(logging.Discard())
	r.SlitherBin = fakeSlither(t, "cat <<'EOF'\n"+fakeDump+"\nEOF")

	store, err := r.Analyze(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if store.ContractCount() != 1 {
		t.Errorf("contracts = %d, want 1", store.ContractCount())
	}
}

func TestAnalyzeMissingProjectRoot(t *testing.T) {
	r := NewSlitherRunner(logging.Discard())
	r.SlitherBin = fakeSlither(t, "exit 0")

	_, err := r.Analyze(context.Background(), "/nonexistent/project")
	if !errors.IsCode(err, errors.AnalysisFailed) {
		t.Errorf("got %v, want ANALYSIS_FAILED", err)
	}
}

func TestAnalyzeReportsFailureWithStderr(t *testing.T) {
	r := NewSlitherRunner(logging.Discard())
	r.SlitherBin = fakeSlither(t, "echo 'compilation failed' >&2; exit 1")

	_, err := r.Analyze(context.Background(), t.TempDir())
	if !errors.IsCode(err, errors.AnalysisFailed) {
		t.Fatalf("got %v, want ANALYSIS_FAILED", err)
	}

	var qe *errors.QueryError
	if !stderrors.As(err, &qe) {
		t.Fatal("expected QueryError")
	}
	details, ok := qe.Details.(map[string]any)
	if !ok || details["stderr"] != "compilation failed\n" {
		t.Errorf("details = %v", qe.Details)
	}
}

func TestAnalyzeRejectsGarbageOutput(t *testing.T) {
	r := NewSlitherRunner(logging.Discard())
	r.SlitherBin = fakeSlither(t, "echo 'not json'")

	_, err := r.Analyze(context.Background(), t.TempDir())
	if !errors.IsCode(err, errors.IngestError) {
		t.Errorf("got %v, want INGEST_ERROR", err)
	}
}

func TestAnalyzeHonorsCancellation(t *testing.T) {
	r := NewSlitherRunner(logging.Discard())
	r.SlitherBin = fakeSlither(t, "sleep 30")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Analyze(ctx, t.TempDir())
	if !errors.IsCode(err, errors.AnalysisFailed) {
		t.Errorf("got %v, want ANALYSIS_FAILED", err)
	}
}

func TestListDetectors(t *testing.T) {
	r := NewSlitherRunner(logging.Discard())
	r.SlitherBin = fakeSlither(t,
		`echo '[{"name": "reentrancy-eth", "description": "reentrancy", "impact": "High", "confidence": "Medium"}]'`)

	detectors, err := r.ListDetectors(context.Background())
	if err != nil {
		t.Fatalf("ListDetectors() error: %v", err)
	}
	if len(detectors) != 1 || detectors[0].Name != "reentrancy-eth" {
		t.Errorf("detectors = %v", detectors)
	}
}

func TestFindExecutableFallbackLocations(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "toolx")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	found, err := findExecutable("definitely-not-on-path-xyz", []string{bin})
	if err != nil {
		t.Fatalf("findExecutable() error: %v", err)
	}
	if found != bin {
		t.Errorf("found = %q, want %q", found, bin)
	}

	// Non-executable candidates are skipped.
	plain := filepath.Join(dir, "plain")
	if err := os.WriteFile(plain, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := findExecutable("definitely-not-on-path-xyz", []string{plain}); err == nil {
		t.Error("expected lookup failure for non-executable candidate")
	}
}
