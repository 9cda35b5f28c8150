package middleware

import "github.com/aretw0/easel/pkg/ports"

// Middleware allows wrapping a SnapshotRepository to add behavior.
type Middleware func(ports.SnapshotRepository) ports.SnapshotRepository

// Chain applies middlewares so that the first one listed is the outermost.
func Chain(repo ports.SnapshotRepository, mws ...Middleware) ports.SnapshotRepository {
	for i := len(mws) - 1; i >= 0; i-- {
		repo = mws[i](repo)
	}
	return repo
}
