/*
Package ports defines the driven ports (interfaces) of the editor core.

These interfaces decouple the core from external implementations, so the
same editor can checkpoint to memory, files or Redis and be driven from a
CLI or an HTTP server.

# Key Interfaces

  - SnapshotRepository: persists and loads session checkpoints.
  - DistributedLocker: provides distributed locking for concurrent session access.
  - Editor: the operations outer adapters call on an editor.
*/
package ports
