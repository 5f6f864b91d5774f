// Package executor defines the contract between the task queue and the code
// that performs the actual external operations, plus the registry mapping
// task kinds to executors.
//
// The queue never interprets task params; it validates them through the
// executor at submission time and hands them back verbatim at execution
// time. Executors classify their failures as retryable or fatal and the
// queue trusts that classification.
package executor
