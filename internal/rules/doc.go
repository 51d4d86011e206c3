// Package rules resolves the ordered stage chain for a module identifier.
//
// Configured rules are compiled once into a flat list of stage descriptors.
// Resolving a module filters that list by each descriptor's predicate,
// keeping declaration order within the pre, normal and post groups. A module
// identifier may instead carry an inline chain ("a!b?opts!path/to/file"),
// which replaces the configured chain entirely.
package rules
