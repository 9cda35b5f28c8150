package tui

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aretw0/easel/pkg/domain"
	"github.com/muesli/termenv"
)

// PrintTree writes an indented outline of the element tree to w.
// The element matching active, if any, is highlighted.
func PrintTree(w io.Writer, tree *domain.ElementTree, active string) {
	out := termenv.NewOutput(w)
	tree.Walk(func(n *domain.ElementTree) bool {
		indent := strings.Repeat("  ", len(n.Path))
		id := out.String(n.ID).Bold()
		if n.ID == active {
			id = id.Foreground(out.Color("#f472b6"))
		}
		line := fmt.Sprintf("%s- %s", indent, id)
		if n.Type != "" {
			line += " " + out.String("("+n.Type+")").Faint().String()
		}
		if len(n.Data) > 0 {
			line += " " + out.String(compact(n.Data)).Foreground(out.Color("#818cf8")).String()
		}
		fmt.Fprintln(w, line)
		return true
	})
}

// SnapshotMarkdown describes a snapshot as markdown: a slice summary plus
// the raw slices as a JSON block.
func SnapshotMarkdown(sessionID string, snap *domain.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Session `%s`\n\n", sessionID)
	fmt.Fprintf(&b, "Snapshot **#%d** taken at %s\n\n", snap.Seq, snap.TakenAt.Format("2006-01-02 15:04:05 MST"))

	b.WriteString("| Slice | Summary |\n|---|---|\n")
	for _, name := range snap.Slices.Slices() {
		fmt.Fprintf(&b, "| %s | %s |\n", name, summary(name, snap.Slices[name]))
	}

	data, err := json.MarshalIndent(snap.Slices, "", "  ")
	if err == nil {
		fmt.Fprintf(&b, "\n```json\n%s\n```\n", data)
	}
	return b.String()
}

func summary(name domain.SliceName, v any) string {
	if name == domain.SliceElements {
		els, err := domain.AsElements(v)
		if err != nil {
			return "invalid"
		}
		return fmt.Sprintf("%d elements", len(els))
	}
	switch typed := v.(type) {
	case nil:
		return "_empty_"
	case string:
		return "`" + typed + "`"
	case map[string]any:
		keys := make([]string, 0, len(typed))
		for k := range typed {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return strings.Join(keys, ", ")
	default:
		return fmt.Sprintf("%T", v)
	}
}

func compact(data map[string]any) string {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Sprint(data)
	}
	return string(raw)
}
