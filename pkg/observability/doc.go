/*
Package observability provides tools for monitoring an easel editor.

Everything here is expressed as domain.LifecycleHooks, so it plugs into
easel.WithLifecycleHooks and combines with other hooks through
domain.ComposeHooks:

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	hooks := domain.ComposeHooks(metrics.Hooks(), observability.LoggingHooks(logger))
	editor, err := easel.New(easel.WithLifecycleHooks(hooks))
*/
package observability
