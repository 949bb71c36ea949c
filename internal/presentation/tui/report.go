package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/nodeflow/pkg/domain"
	"github.com/aretw0/nodeflow/pkg/fieldpath"
	"github.com/aretw0/nodeflow/pkg/resolver"
)

// maxPreview bounds the JSON preview of a result.
const maxPreview = 600

// Report writes a markdown summary of the graph: one section per node with its
// configuration, upstream nodes, validation issues and last result.
func Report(title string, s *domain.State) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", title)
	fmt.Fprintf(&sb, "%d nodes, %d connections, revision %d\n\n", len(s.Configurations), len(s.Connections), s.Revision)

	for _, id := range s.NodeIDs() {
		writeNode(&sb, s, s.Configurations[id])
	}
	return sb.String()
}

func writeNode(sb *strings.Builder, s *domain.State, cfg domain.NodeConfiguration) {
	fmt.Fprintf(sb, "## %s\n\n", cfg.ID)
	if cfg.Label != "" {
		fmt.Fprintf(sb, "*%s*\n\n", cfg.Label)
	}

	switch {
	case cfg.Kind == domain.NodeKindSource && cfg.Request != nil:
		fmt.Fprintf(sb, "- **kind**: source\n- **request**: `%s %s`\n", cfg.Request.Method, cfg.Request.URL)
	case cfg.Kind == domain.NodeKindTransform && cfg.Operation != nil:
		fmt.Fprintf(sb, "- **kind**: transform\n- **operation**: `%s`\n", cfg.Operation.Operation)
	default:
		fmt.Fprintf(sb, "- **kind**: %s\n", cfg.Kind)
	}

	if len(cfg.OutputFieldSelections) > 0 {
		fmt.Fprintf(sb, "- **selected**: `%s`\n", strings.Join(cfg.OutputFieldSelections, "`, `"))
	}
	if up := resolver.UpstreamNodes(s, cfg.ID); len(up) > 0 {
		ids := make([]string, len(up))
		for i, u := range up {
			ids[i] = u.ID
		}
		fmt.Fprintf(sb, "- **upstream**: %s\n", strings.Join(ids, ", "))
	}
	sb.WriteString("\n")

	if issues := s.ValidationErrors[cfg.ID]; len(issues) > 0 {
		sb.WriteString("| severity | field | message |\n|---|---|---|\n")
		for _, issue := range issues {
			fmt.Fprintf(sb, "| %s | %s | %s |\n", issue.Severity, issue.Field, strings.ReplaceAll(issue.Message, "|", "\\|"))
		}
		sb.WriteString("\n")
	}

	res, ok := s.TestResults[cfg.ID]
	if !ok {
		sb.WriteString("_not run yet_\n\n")
		return
	}
	if !res.Success {
		fmt.Fprintf(sb, "> **failed** (%s): %s\n\n", res.ErrorType, res.Error)
		return
	}
	fmt.Fprintf(sb, "> **ok** run %d", res.RunID)
	if res.StatusCode != 0 {
		fmt.Fprintf(sb, ", HTTP %d", res.StatusCode)
	}
	fmt.Fprintf(sb, ", %s\n\n", res.Duration)

	if paths := fieldpath.Enumerate(res.Value, fieldpath.ModeTemplate); len(paths) > 0 {
		fmt.Fprintf(sb, "Available paths: `%s`\n\n", strings.Join(paths, "`, `"))
	}
	preview := res.Value.String()
	if len(preview) > maxPreview {
		preview = preview[:maxPreview] + "..."
	}
	fmt.Fprintf(sb, "```json\n%s\n```\n\n", preview)
}
