// Package warmup pre-plans operations after a schema or configuration
// reload, so the first live requests against the new schema hit warm
// caches instead of paying planning latency.
//
// History tracks which operations recent traffic actually used; the
// Orchestrator merges that history with a configured allowlist,
// shuffles the batch, and re-plans it at the scheduler's lowest
// priorities under a rate limit. Operations whose plans survived the
// reload in the distributed cache are skipped, which keeps warm-up
// cheap in the common rolling-deploy case.
package warmup
