package tree

import (
	"fmt"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
)

// Mermaid produces a Mermaid flowchart of a tree snapshot.
// Shapes follow the role of the node:
// - Root: ((Circle))
// - Extension point or plain path node (no node type): [/Parallelogram/]
// - Extension node: [Rectangle]
// Edges to conditional nodes are dotted and labelled with the condition.
func Mermaid(snap domain.NodeSnapshot) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	writeMermaidNode(&sb, snap)

	sb.WriteString("\n    %% Styles\n")
	sb.WriteString("    classDef conditional stroke-dasharray: 5 5;\n")
	snap.Walk(func(n domain.NodeSnapshot) {
		if n.Condition != "" {
			sb.WriteString(fmt.Sprintf("    class %s conditional;\n", mermaidID(n.Path)))
		}
	})
	return sb.String()
}

func writeMermaidNode(sb *strings.Builder, n domain.NodeSnapshot) {
	id := mermaidID(n.Path)
	label := n.ID
	opener, closer := "[", "]"
	switch {
	case n.Path == "":
		opener, closer = "((", "))"
		label = "/"
	case n.NodeName == "":
		opener, closer = "[/", "/]"
	default:
		label = fmt.Sprintf("%s <br/> %s", n.ID, n.NodeName)
	}
	sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", id, opener, escapeLabel(label), closer))

	for _, c := range n.Children {
		arrow := "-->"
		if c.Condition != "" {
			arrow = fmt.Sprintf("-. \"%s\" .->", escapeLabel(c.Condition))
		}
		sb.WriteString(fmt.Sprintf("    %s %s %s\n", id, arrow, mermaidID(c.Path)))
		writeMermaidNode(sb, c)
	}
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func mermaidID(path string) string {
	if path == "" {
		return "root"
	}
	s := strings.TrimPrefix(path, domain.PathSeparator)
	s = strings.ReplaceAll(s, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "__")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return "n_" + s
}
