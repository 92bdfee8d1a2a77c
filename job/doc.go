// Package job defines the compute job model: the closed set of job
// kinds, their priority mapping, the outcome taxonomy, and the Job
// struct that flows through the queue to a worker.
//
// A Job is owned exclusively by the queue until dequeued, then
// exclusively by the executing worker. It lives only long enough to
// produce a result (delivered once on Job.Done) and is never retried
// by the scheduler; retry policy belongs to the caller.
package job
