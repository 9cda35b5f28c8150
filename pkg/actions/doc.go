// Package actions provides a reusable set of handlers for generic document
// edits: slice writes, element create/update/delete/move, and selection.
//
// The CLI script runner and the HTTP server register them on every editor
// they create, so scripts and clients can edit a document without custom code.
package actions
