package tree

import (
	"fmt"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/charmbracelet/glamour"
)

// Markdown renders a merge report: the tree as a nested list followed by the
// reported errors.
func Markdown(title string, snap domain.NodeSnapshot, errs []domain.ReportedError) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n\n", title))
	sb.WriteString(fmt.Sprintf("%d nodes merged.\n\n", snap.Count()-1))

	sb.WriteString("## Tree\n\n")
	if len(snap.Children) == 0 {
		sb.WriteString("_empty_\n")
	}
	for _, c := range snap.Children {
		writeMarkdownNode(&sb, c, 0)
	}

	if len(errs) > 0 {
		sb.WriteString("\n## Errors\n\n")
		sb.WriteString("| Severity | Module | Message |\n")
		sb.WriteString("|---|---|---|\n")
		for _, e := range errs {
			severity := "error"
			if e.Warning {
				severity = "warning"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s |\n", severity, e.ModuleID, escapeCell(e.Message)))
		}
	}
	return sb.String()
}

func writeMarkdownNode(sb *strings.Builder, n domain.NodeSnapshot, depth int) {
	sb.WriteString(strings.Repeat("  ", depth))
	sb.WriteString("- **")
	sb.WriteString(n.ID)
	sb.WriteString("**")
	if n.NodeName != "" {
		sb.WriteString(fmt.Sprintf(" `%s`", n.NodeName))
	}
	if n.ModuleID != "" {
		sb.WriteString(fmt.Sprintf(" _(%s)_", n.ModuleID))
	}
	if n.Condition != "" {
		sb.WriteString(fmt.Sprintf(" when `%s`", n.Condition))
	}
	sb.WriteString("\n")
	for _, c := range n.Children {
		writeMarkdownNode(sb, c, depth+1)
	}
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

// NewGlamourRenderer returns a function that renders markdown for the terminal.
func NewGlamourRenderer() (func(string) (string, error), error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
	)
	if err != nil {
		return nil, err
	}

	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}, nil
}
