// Package observe provides observability for memoized members.
//
// It is a pure instrumentation library: an Observer owns the OpenTelemetry
// tracer and meter providers plus a structured logger, and NewRecorder turns
// them into a cache.Recorder that counts hits, misses, evictions and tag
// clears, and traces every underlying computation.
package observe
