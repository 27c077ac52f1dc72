// Package health reports the health of a memoization setup.
//
// A Checker reports a Status (Healthy, Degraded or Unhealthy) with details.
// RegistryChecker watches a cache.TagRegistry: every check drops entries for
// stores that have been garbage collected and degrades once the number of
// live tagged stores passes a threshold, which usually means instances are
// being created and kept faster than expected.
//
//	reg := cache.DefaultRegistry()
//	agg := health.NewAggregator()
//	agg.Register("memo-registry", health.NewRegistryChecker(reg, health.RegistryCheckerConfig{
//	    MaxStores: 10000,
//	}))
//
//	results := agg.CheckAll(ctx)
//	overall := agg.OverallStatus(results)
package health
