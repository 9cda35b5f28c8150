/*
Package easel is the event-action core of a visual page builder.

A host application (the editor UI) emits semantic actions. Easel routes each
action to the handlers registered for its name, merges the partial state they
return, dispatches the follow-up actions they queue, and commits the result
into a shared state store while keeping an undo/redo history of snapshots.

# Concept

State is split into named slices (elements, page, ui, sidebar, activeElement,
highlightElement, plugins, revisions, rootElement). Handlers never write
state directly: they return proposals, and only the editor's commit step
writes. Elements reference each other by id, so the document tree is
resolved on demand with GetElementTree.

# Usage

	ed, err := easel.New(easel.WithInitialState(domain.State{
		domain.SliceRootElement: "root",
	}))
	if err != nil {
		log.Fatal(err)
	}

	_, _ = ed.OnFunc("SELECT", func(ctx context.Context, s *registry.CallableState, h *registry.HandlerContext, args domain.Args) (domain.Result, error) {
		return domain.Result{State: domain.State{domain.SliceActiveElement: args["id"]}}, nil
	})

	if _, err := ed.Trigger(ctx, domain.NewAction("SELECT", domain.Args{"id": "el-1"})); err != nil {
		log.Fatal(err)
	}

# History

Commits that touch a tracked slice (elements by default) push a snapshot of
the previous state. StartBatch/EndBatch collapse a multi-step operation into
one undo step; DisableHistory suppresses capture for transient changes such as
hover highlights. Undo and Redo calls that arrive while another one is in
flight are dropped.
*/
package easel
