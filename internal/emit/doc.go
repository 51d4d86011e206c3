// Package emit names auxiliary files by content hash and writes each distinct
// content exactly once.
//
// A Table maps content hashes to the path first assigned to them. It is
// created once per process (or per build session) and shared by every module
// run; identical bytes emitted by different modules, or twice by the same
// module, resolve to the same path and a single store write.
package emit
