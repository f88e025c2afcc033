package tree

import (
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/muesli/termenv"
)

// TextRenderer prints a snapshot as an indented tree using box-drawing
// characters, colored for the given terminal profile.
type TextRenderer struct {
	Profile termenv.Profile
}

// NewTextRenderer creates a renderer for the given profile.
// termenv.Ascii disables colors.
func NewTextRenderer(p termenv.Profile) *TextRenderer {
	return &TextRenderer{Profile: p}
}

// Render writes snap to w.
func (r *TextRenderer) Render(w io.Writer, snap domain.NodeSnapshot) error {
	root := snap.Path
	if root == "" {
		root = domain.PathSeparator
	}
	if _, err := fmt.Fprintln(w, r.style(root, "#818cf8", true)); err != nil {
		return err
	}
	return r.children(w, snap.Children, "")
}

func (r *TextRenderer) children(w io.Writer, children []domain.NodeSnapshot, indent string) error {
	for i, c := range children {
		branch, next := "├── ", "│   "
		if i == len(children)-1 {
			branch, next = "└── ", "    "
		}
		if _, err := fmt.Fprintln(w, indent+branch+r.line(c)); err != nil {
			return err
		}
		if err := r.children(w, c.Children, indent+next); err != nil {
			return err
		}
	}
	return nil
}

func (r *TextRenderer) line(n domain.NodeSnapshot) string {
	var sb strings.Builder
	sb.WriteString(r.style(n.ID, "#c084fc", n.NodeName == ""))
	if n.NodeName != "" {
		sb.WriteString(" ")
		sb.WriteString(r.style("<"+n.NodeName+">", "#60a5fa", false))
	}
	if n.ModuleID != "" {
		sb.WriteString(" ")
		sb.WriteString(r.faint("[" + n.ModuleID + "]"))
	}
	if n.Condition != "" {
		sb.WriteString(" ")
		sb.WriteString(r.style("if "+n.Condition, "#fbbf24", false))
	}
	return sb.String()
}

func (r *TextRenderer) style(s, color string, bold bool) string {
	if r.Profile == termenv.Ascii {
		return s
	}
	out := termenv.String(s).Foreground(r.Profile.Color(color))
	if bold {
		out = out.Bold()
	}
	return out.String()
}

func (r *TextRenderer) faint(s string) string {
	if r.Profile == termenv.Ascii {
		return s
	}
	return termenv.String(s).Faint().String()
}
