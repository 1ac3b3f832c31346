/*
Package observability turns coupling hooks into prometheus metrics and
structured log lines.

Both are plain domain.Hooks values, so they compose with Merge:

	m := observability.NewMetrics()
	hooks := m.Hooks().Merge(observability.LogHooks(logger))
*/
package observability
