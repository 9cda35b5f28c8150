package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/easel/pkg/domain"
)

// GraphOverlay marks the editor pointers to visualize on the graph.
type GraphOverlay struct {
	Active    string
	Highlight string
}

// GenerateMermaid produces a Mermaid flowchart of an element tree.
// Shapes follow the element's role:
// - Tree root: ((Circle))
// - Container (has children): [Rectangle]
// - Leaf: (Rounded)
// Edges run from parent to child in child order. Overlay styles are
// applied when an overlay is given.
func GenerateMermaid(tree *domain.ElementTree, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	tree.Walk(func(n *domain.ElementTree) bool {
		safeID := sanitizeMermaidID(n.ID)

		opener, closer := "(", ")"
		switch {
		case n == tree:
			opener, closer = "((", "))"
		case len(n.Elements) > 0:
			opener, closer = "[", "]"
		}

		label := n.ID
		if n.Type != "" {
			label = fmt.Sprintf("%s <br/> %s", n.ID, n.Type)
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, strings.ReplaceAll(label, "\"", "'"), closer)

		for _, child := range n.Elements {
			fmt.Fprintf(&sb, "    %s --> %s\n", safeID, sanitizeMermaidID(child.ID))
		}
		return true
	})

	if overlay != nil && (overlay.Active != "" || overlay.Highlight != "") {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme.
		sb.WriteString("    classDef highlight fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef active fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		if overlay.Highlight != "" && overlay.Highlight != overlay.Active {
			fmt.Fprintf(&sb, "    class %s highlight;\n", sanitizeMermaidID(overlay.Highlight))
		}
		if overlay.Active != "" {
			fmt.Fprintf(&sb, "    class %s active;\n", sanitizeMermaidID(overlay.Active))
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
