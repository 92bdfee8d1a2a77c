// Package operation holds the GraphQL-side inputs to the compute
// pipeline: the operation itself (query text plus optional operation
// name), the parsed schema state it executes against, and the planner
// configuration whose hash scopes cache keys.
//
// Parse and Validate are the CPU-bound steps the scheduler runs on
// worker goroutines; ParseJob and ValidateJob wrap them as job
// payloads with cancellation checkpoints between phases.
package operation
