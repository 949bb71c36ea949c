package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/nodeflow/pkg/domain"
)

// GraphOverlay contains dynamic state data to visualize on the graph.
type GraphOverlay struct {
	Results map[string]domain.TestResult
	Invalid map[string]bool
}

// OverlayFromState collects results and nodes with error-level validation issues.
func OverlayFromState(s *domain.State) *GraphOverlay {
	o := &GraphOverlay{Results: s.TestResults, Invalid: make(map[string]bool)}
	for id, issues := range s.ValidationErrors {
		for _, issue := range issues {
			if issue.Severity != domain.SeverityWarning {
				o.Invalid[id] = true
				break
			}
		}
	}
	return o
}

// GenerateMermaid produces a Mermaid flowchart of the graph.
// It applies semantic styling:
// - Source: [/Parallelogram/] labelled with method and URL
// - Transform: {{Hexagon}} labelled with the operation
// Edges carrying field names are labelled "source -> target".
// Overlay styles mark succeeded, failed and invalid nodes.
func GenerateMermaid(s *domain.State, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")

	for _, id := range s.NodeIDs() {
		cfg := s.Configurations[id]
		safeID := sanitizeMermaidID(id)

		opener, closer := "[", "]"
		detail := ""
		switch cfg.Kind {
		case domain.NodeKindSource:
			opener, closer = "[/", "/]"
			if cfg.Request != nil {
				detail = cfg.Request.Method + " " + cfg.Request.URL
			}
		case domain.NodeKindTransform:
			opener, closer = "{{", "}}"
			if cfg.Operation != nil {
				detail = string(cfg.Operation.Operation)
			}
		}

		title := id
		if cfg.Label != "" {
			title = cfg.Label
		}
		label := escapeLabel(title)
		if detail != "" {
			label += " <br/> " + escapeLabel(detail)
		}
		if n := len(cfg.OutputFieldSelections); n > 0 {
			label += fmt.Sprintf(" <br/> %d selected", n)
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, label, closer)
	}

	for _, c := range s.Connections {
		arrow := "-->"
		if c.SourceField != "" || c.TargetField != "" {
			arrow = fmt.Sprintf("-- \"%s\" -->", escapeLabel(edgeLabel(c)))
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", sanitizeMermaidID(c.SourceNodeID), arrow, sanitizeMermaidID(c.TargetNodeID))
	}

	// Apply Overlay Styles
	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for contrast regardless of theme (Light/Dark)
		sb.WriteString("    classDef ok fill:#c8e6c9,stroke:#2e7d32,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef failed fill:#ffcdd2,stroke:#c62828,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef invalid fill:#fff9c4,stroke:#f9a825,stroke-width:2px,stroke-dasharray:4,color:#000;\n")

		for _, id := range s.NodeIDs() {
			safeID := sanitizeMermaidID(id)
			switch {
			case overlay.Invalid[id]:
				fmt.Fprintf(&sb, "    class %s invalid;\n", safeID)
			case hasResult(overlay.Results, id, true):
				fmt.Fprintf(&sb, "    class %s ok;\n", safeID)
			case hasResult(overlay.Results, id, false):
				fmt.Fprintf(&sb, "    class %s failed;\n", safeID)
			}
		}
	}

	return sb.String()
}

func hasResult(results map[string]domain.TestResult, id string, success bool) bool {
	r, ok := results[id]
	return ok && r.Success == success
}

func edgeLabel(c domain.Connection) string {
	src, dst := c.SourceField, c.TargetField
	if src == "" {
		src = "*"
	}
	if dst == "" {
		dst = "*"
	}
	return src + " -> " + dst
}

// escapeLabel swaps double quotes for single ones so labels stay quoted.
func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
