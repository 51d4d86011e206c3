// Package pipeline coordinates module runs: it resolves a module's chain,
// runs it on the execution engine and reports the result.
//
// A Coordinator is safe for concurrent use. Every Run gets its own execution
// state; the emitter table and the validator cache are shared by all runs of
// the coordinator. RunAll processes a batch with a bounded worker pool where
// a failing module never cancels its siblings.
package pipeline
