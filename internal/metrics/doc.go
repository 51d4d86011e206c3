// Package metrics provides observability hooks for the module transform pipeline.
//
// # Design
//
// Components receive a Recorder through dependency injection. NoopRecorder is
// the default and makes every hook a no-op, so callers never nil-check:
//
//	coord := pipeline.New(pipeline.Options{Recorder: metrics.NoopRecorder{}})
//
// # Activation
//
// The CLI swaps in the Prometheus implementation when metrics are enabled and
// serves it through HTTPHandler:
//
//	reg := prom.NewRegistry()
//	rec := metrics.NewPrometheusRecorder(reg)
//	router.Handle("/metrics", metrics.HTTPHandler(reg))
//
// CountingRecorder keeps plain counters in memory and is used by tests that
// assert on what the pipeline recorded.
package metrics
