// Package stages provides the built-in transform stages.
//
// Register adds every built-in to a loader.Registry:
//
//	noop         pass-through
//	banner       prefixes an author banner
//	file         emits content as a hashed file and exports its path
//	style        pitches a script that injects the rest of the chain as a <style>
//	clean-log    strips console.log statements
//	markdown     renders Markdown to HTML (goldmark)
//	fingerprint  maintains the fingerprint front matter field (mdfp)
//	html         normalises HTML and records referenced files
//	yaml         exports a YAML document as JSON
//	raw          exports text content as a string
package stages
