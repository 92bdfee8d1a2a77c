// Package planner produces query plans through the compute scheduler
// and caches them.
//
// CachingPlanner is the read-through layer: a plan request first
// consults the tiered cache, and only on a miss is a planning job
// submitted to the scheduler. Planning failures that are a property of
// the operation itself (a malformed or unplannable query) are cached
// too, so a hot bad query does not occupy a worker on every request.
// Transient failures — queue backpressure, abandoned jobs — are never
// cached.
package planner
