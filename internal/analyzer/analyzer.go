// Package analyzer shells out to slither and turns its project dump into a
// fact store.
package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/trailofbits/slither-mcp/internal/errors"
	"github.com/trailofbits/slither-mcp/internal/facts"
	"github.com/trailofbits/slither-mcp/internal/ingest"
	"github.com/trailofbits/slither-mcp/internal/logging"
)

// Analyzer produces project facts. The engine depends on this interface, not
// on the slither binary, so tests substitute in-process fakes.
type Analyzer interface {
	// Analyze runs a full analysis of the project and returns a frozen store
	Analyze(ctx context.Context, projectRoot string) (*facts.Store, error)
	// ListDetectors reports the detectors the installed analyzer supports
	ListDetectors(ctx context.Context) ([]facts.DetectorMetadata, error)
}

// SlitherRunner invokes the slither CLI. A Foundry project is built with
// forge first, since slither needs build artifacts to resolve imports.
type SlitherRunner struct {
	// SlitherBin overrides executable discovery when set
	SlitherBin string
	// ExtraArgs are appended to every slither invocation
	ExtraArgs []string
	// Detectors restricts analysis to the named detectors; empty runs the
	// analyzer's default set
	Detectors []string

	logger *logging.Logger
}

// NewSlitherRunner creates a runner with executable auto-discovery
func NewSlitherRunner(logger *logging.Logger) *SlitherRunner {
	return &SlitherRunner{logger: logger}
}

// Analyze builds the project if needed, runs slither, and ingests its JSON
// dump. Slither's exit status alone is not trusted; the dump must decode and
// pass referential validation before a store is returned.
func (r *SlitherRunner) Analyze(ctx context.Context, projectRoot string) (*facts.Store, error) {
	if _, err := os.Stat(projectRoot); err != nil {
		return nil, errors.Wrap(errors.AnalysisFailed, "project root is not readable", err)
	}

	if err := r.buildIfFoundry(ctx, projectRoot); err != nil {
		return nil, err
	}

	bin, err := r.slitherExecutable()
	if err != nil {
		return nil, err
	}

	args := append([]string{projectRoot, "--json", "-"}, r.ExtraArgs...)
	for _, d := range r.Detectors {
		args = append(args, "--detect", d)
	}

	r.logger.Info("running analyzer", logging.Fields{
		"bin":          bin,
		"project_root": projectRoot,
	})

	stdout, err := r.run(ctx, projectRoot, bin, args...)
	if err != nil {
		return nil, err
	}

	raw, err := ingest.Decode(bytes.NewReader(stdout))
	if err != nil {
		return nil, err
	}
	if raw.ProjectRoot == "" {
		raw.ProjectRoot = projectRoot
	}
	return ingest.Build(raw, r.logger)
}

// ListDetectors queries slither for its detector registry
func (r *SlitherRunner) ListDetectors(ctx context.Context) ([]facts.DetectorMetadata, error) {
	bin, err := r.slitherExecutable()
	if err != nil {
		return nil, err
	}

	stdout, err := r.run(ctx, "", bin, "--list-detectors-json")
	if err != nil {
		return nil, err
	}

	var detectors []facts.DetectorMetadata
	if err := json.Unmarshal(stdout, &detectors); err != nil {
		return nil, errors.Wrap(errors.AnalysisFailed, "decoding detector registry", err)
	}
	return detectors, nil
}

// buildIfFoundry runs forge build when the project is Foundry-based. Other
// build systems are left to slither's own compilation platform detection.
func (r *SlitherRunner) buildIfFoundry(ctx context.Context, projectRoot string) error {
	if _, err := os.Stat(filepath.Join(projectRoot, "foundry.toml")); err != nil {
		return nil
	}

	forge, err := findExecutable("forge", []string{
		"~/.foundry/bin/forge",
		"~/.cargo/bin/forge",
		"/usr/local/bin/forge",
		"/opt/homebrew/bin/forge",
		"/usr/bin/forge",
	})
	if err != nil {
		return errors.Wrap(errors.AnalysisFailed,
			"project uses Foundry but forge was not found", err)
	}

	r.logger.Info("building Foundry project", logging.Fields{"project_root": projectRoot})
	if _, err := r.run(ctx, projectRoot, forge, "build", "--build-info"); err != nil {
		return err
	}
	return nil
}

func (r *SlitherRunner) slitherExecutable() (string, error) {
	if r.SlitherBin != "" {
		return r.SlitherBin, nil
	}
	bin, err := findExecutable("slither", []string{
		"~/.local/bin/slither",
		"/usr/local/bin/slither",
		"/opt/homebrew/bin/slither",
		"/usr/bin/slither",
	})
	if err != nil {
		return "", errors.Wrap(errors.AnalysisFailed,
			"slither executable not found; install it or set analyzer.slither_bin", err)
	}
	return bin, nil
}

// run executes one subprocess, capturing stdout and keeping a stderr tail
// for error reporting. Cancellation kills the process via the context.
func (r *SlitherRunner) run(ctx context.Context, dir, bin string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrap(errors.AnalysisFailed, "analysis cancelled", ctx.Err())
		}
		return nil, errors.Wrap(errors.AnalysisFailed, bin+" failed", err).
			WithDetails(map[string]any{"stderr": tail(stderr.String(), 2048)})
	}
	return stdout.Bytes(), nil
}

// findExecutable looks in PATH first, then a list of common install
// locations, since MCP hosts often launch servers with a minimal PATH.
func findExecutable(name string, fallbacks []string) (string, error) {
	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}

	home, _ := os.UserHomeDir()
	for _, candidate := range fallbacks {
		if len(candidate) > 1 && candidate[0] == '~' {
			candidate = filepath.Join(home, candidate[2:])
		}
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}
		if info.Mode()&0o111 != 0 {
			return candidate, nil
		}
	}
	return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
