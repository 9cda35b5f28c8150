/*
Package domain contains the core models shared by every easel component.

It defines the values that flow through the event-action pipeline: Actions,
partial State keyed by slice name, document Elements and the Snapshots used
for undo/redo. This package is kept pure and free of I/O or persistence so
that the registry, the dispatch engine and the history manager can agree on
the same vocabulary without depending on each other.

# Key Entities

  - Action: a named request for behaviour change, carrying Args.
  - State: a (partial) mapping from SliceName to an opaque slice value.
  - Element: one node of the page document, related to others by id.
  - ElementTree: a materialised view of an element and its descendants.
  - Snapshot: an immutable capture of every slice, used by history.
*/
package domain
