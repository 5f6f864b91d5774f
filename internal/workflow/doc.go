// Package workflow coordinates task execution: admission, per-key
// single-flight scheduling, a bounded worker pool, retry with exponential
// backoff, cooperative cancellation, and retention of finished tasks.
//
// The Manager is the single authoritative owner of task identity and the
// only writer of the pending queue's ordering. Within a contention key,
// tasks execute strictly in submission order and never concurrently;
// across keys the workers interleave freely up to the configured
// concurrency limit.
package workflow
