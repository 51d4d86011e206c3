// Package loader defines transform stages and runs ordered chains of them.
//
// A chain runs in two passes. The pitch pass visits stages first to last and
// lets any stage answer for the rest of the chain; the normal pass then runs
// the stages back to front, each receiving its successor's output. When stage
// k pitches a result, stages after k never run and stages before k run their
// normal handlers over the pitched value.
//
//	pitch:  S0 -> S1 -> ... -> Sn-1
//	normal: S0 <- S1 <- ... <- Sn-1 <- raw
//
// Each stage's options are validated against its schema before its first
// handler is invoked.
package loader
