package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/trailofbits/slither-mcp/internal/engine"
	"github.com/trailofbits/slither-mcp/internal/inheritance"
)

// OutputFormat selects how command results are rendered
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
	FormatHuman OutputFormat = "human"
)

// FormatResponse renders a command result in the requested format
func FormatResponse(resp interface{}, format OutputFormat) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(resp)
	case FormatYAML:
		return formatYAML(resp)
	case FormatHuman:
		return formatHuman(resp)
	default:
		return "", fmt.Errorf("unsupported format: %s (use human, json, or yaml)", format)
	}
}

func formatJSON(resp interface{}) (string, error) {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

// formatYAML round-trips through JSON first so yaml output honors the same
// field names and omitempty choices as json output.
func formatYAML(resp interface{}) (string, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return "", fmt.Errorf("failed to marshal response: %w", err)
	}
	var generic interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return "", err
	}
	out, err := yaml.Marshal(generic)
	if err != nil {
		return "", fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return strings.TrimRight(string(out), "\n"), nil
}

func formatHuman(resp interface{}) (string, error) {
	switch v := resp.(type) {
	case *engine.ListContractsResult:
		return formatContractsHuman(v), nil
	case *engine.Overview:
		return formatOverviewHuman(v), nil
	case *inheritance.Result:
		return formatTreeHuman(v), nil
	default:
		// Detailed records read fine as JSON.
		return formatJSON(resp)
	}
}

func formatContractsHuman(res *engine.ListContractsResult) string {
	var b strings.Builder
	for _, c := range res.Contracts {
		kind := "contract"
		switch {
		case c.IsInterface:
			kind = "interface"
		case c.IsLibrary:
			kind = "library"
		case c.IsAbstract:
			kind = "abstract"
		}
		b.WriteString(fmt.Sprintf("%-10s %-30s %s (%d functions)\n",
			kind, c.Key.Name, c.Key.Path, c.FunctionCount))
	}
	b.WriteString(fmt.Sprintf("\n%d of %d contracts", len(res.Contracts), res.Page.Total))
	if res.Page.HasMore {
		b.WriteString(" (more available; use --offset)")
	}
	return b.String()
}

func formatOverviewHuman(ov *engine.Overview) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Project:   %s\n", ov.ProjectRoot))
	b.WriteString(fmt.Sprintf("Contracts: %d\n", ov.ContractCount))
	b.WriteString(fmt.Sprintf("Functions: %d\n", ov.FunctionCount))
	b.WriteString(fmt.Sprintf("Detectors: %d run", ov.DetectorRuns))
	return b.String()
}

func formatTreeHuman(res *inheritance.Result) string {
	var b strings.Builder
	writeTreeNode(&b, res.Root, 0)
	if res.Truncated {
		b.WriteString("(truncated; raise --max-depth to expand further)\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeTreeNode(b *strings.Builder, n *inheritance.Node, depth int) {
	if n == nil {
		return
	}
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(n.Key.Name)
	if n.CycleDetected {
		b.WriteString(" (cycle)")
	}
	b.WriteString("\n")
	for _, child := range n.Children {
		writeTreeNode(b, child, depth+1)
	}
}
