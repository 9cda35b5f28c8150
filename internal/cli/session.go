package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/aretw0/easel"
	"github.com/aretw0/easel/internal/presentation/graph"
	"github.com/aretw0/easel/internal/presentation/tui"
	"github.com/aretw0/easel/pkg/domain"
	"github.com/aretw0/easel/pkg/ports"
)

// ListSessions prints the stored session ids, one per line.
func ListSessions(ctx context.Context, repo ports.SnapshotRepository, w io.Writer) error {
	sessions, err := repo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No active sessions found.")
		return nil
	}
	for _, id := range sessions {
		fmt.Fprintln(w, id)
	}
	return nil
}

// InspectSession prints a session checkpoint. Pretty output goes through the
// markdown renderer; otherwise the snapshot is printed as indented JSON.
func InspectSession(ctx context.Context, repo ports.SnapshotRepository, sessionID string, pretty bool, w io.Writer) error {
	snap, err := repo.Load(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load session %q: %w", sessionID, err)
	}

	if !pretty {
		data, err := jsonIndent(snap)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	out, err := tui.NewRenderer()(tui.SnapshotMarkdown(sessionID, snap))
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(w, out)
	return err
}

// RemoveSession deletes a session checkpoint.
func RemoveSession(ctx context.Context, repo ports.SnapshotRepository, sessionID string, w io.Writer) error {
	if err := repo.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session %q: %w", sessionID, err)
	}
	printSystemMessage(w, "Session '%s' deleted.", sessionID)
	return nil
}

// Tree output formats.
const (
	FormatText    = "text"
	FormatMermaid = "mermaid"
)

// PrintSessionTree prints the element tree of a session checkpoint, starting
// at rootID or at the session's root element when rootID is empty.
func PrintSessionTree(ctx context.Context, repo ports.SnapshotRepository, sessionID, rootID, format string, w io.Writer) error {
	if format == "" {
		format = FormatText
	}
	if format != FormatText && format != FormatMermaid {
		return fmt.Errorf("unknown format %q", format)
	}

	snap, err := repo.Load(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load session %q: %w", sessionID, err)
	}
	ed, err := easel.New()
	if err != nil {
		return err
	}
	if err := ed.Load(snap); err != nil {
		return err
	}
	tree, err := ed.GetElementTree(ctx, rootID)
	if err != nil {
		return err
	}
	active := snap.Slices.String(domain.SliceActiveElement)
	if format == FormatMermaid {
		_, err = fmt.Fprint(w, graph.GenerateMermaid(tree, &graph.GraphOverlay{
			Active:    active,
			Highlight: snap.Slices.String(domain.SliceHighlightElement),
		}))
		return err
	}
	tui.PrintTree(w, tree, active)
	return nil
}
