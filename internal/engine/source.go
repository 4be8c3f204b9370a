package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/trailofbits/slither-mcp/internal/errors"
	"github.com/trailofbits/slither-mcp/internal/facts"
)

// SourceResult carries a span of project source text. StartLine and EndLine
// are 1-indexed and inclusive; a whole-file result leaves them zero.
type SourceResult struct {
	File      string `json:"file"`
	StartLine int    `json:"start_line,omitempty"`
	EndLine   int    `json:"end_line,omitempty"`
	Source    string `json:"source"`
}

// FunctionSource reads a function's source text from the file and line range
// the analyzer recorded. The key resolves through inheritance like every
// other function query, so an inherited function reads from its declaring
// ancestor's file.
func (e *Engine) FunctionSource(ctx context.Context, projectRoot string, key facts.FunctionKey) (*SourceResult, error) {
	fact, _, err := e.Function(ctx, projectRoot, key)
	if err != nil {
		return nil, err
	}

	loc := fact.Location
	if loc.File == "" {
		return nil, errors.Newf(errors.IOError, "no source location recorded for %s", key)
	}
	lines, err := readLines(sourcePath(projectRoot, loc.File))
	if err != nil {
		return nil, err
	}
	if loc.StartLine < 1 || loc.EndLine < loc.StartLine || loc.EndLine > len(lines) {
		return nil, errors.Newf(errors.IOError,
			"recorded range %d-%d does not fit %s (%d lines); the file may have changed since analysis",
			loc.StartLine, loc.EndLine, loc.File, len(lines))
	}

	return &SourceResult{
		File:      loc.File,
		StartLine: loc.StartLine,
		EndLine:   loc.EndLine,
		Source:    strings.Join(lines[loc.StartLine-1:loc.EndLine], "\n") + "\n",
	}, nil
}

// ContractSource reads the full source file declaring a contract
func (e *Engine) ContractSource(ctx context.Context, projectRoot string, key facts.ContractKey) (*SourceResult, error) {
	c, err := e.Contract(ctx, projectRoot, key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(sourcePath(projectRoot, c.Key.Path))
	if err != nil {
		return nil, errors.Wrap(errors.IOError, "reading contract source", err)
	}
	return &SourceResult{File: c.Key.Path, Source: string(data)}, nil
}

// sourcePath anchors a fact-graph path at the project root. Absolute paths
// pass through unchanged.
func sourcePath(projectRoot, file string) string {
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(projectRoot, file)
}

func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.IOError, "reading source file", err)
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	return strings.Split(text, "\n"), nil
}
