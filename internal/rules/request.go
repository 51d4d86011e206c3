package rules

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/loadchain/internal/loader"
	"git.home.luguber.info/inful/loadchain/internal/options"
)

// Delimiter separates stages and the resource in a request.
const Delimiter = "!"

// Segment is one inline stage reference.
type Segment struct {
	Name    string
	Options options.Value
	Raw     string
}

// Request is a parsed module identifier.
type Request struct {
	Raw        string
	Prefix     string // "", "!", "!!" or "-!"
	Inline     []Segment
	Identifier loader.Identifier
}

// HasInline reports whether the request names its own chain.
func (r Request) HasInline() bool {
	return r.Prefix != "" || len(r.Inline) > 0
}

// ParseRequest splits a module identifier into inline stage segments and the
// resource. Delimiters inside {...} option objects are not split on. Every
// prefix form is a plain replacement of the configured chain.
func ParseRequest(raw string) (Request, error) {
	req := Request{Raw: raw}
	rest := raw
	for _, p := range []string{"-!", "!!", "!"} {
		if strings.HasPrefix(rest, p) {
			req.Prefix = p
			rest = rest[len(p):]
			break
		}
	}

	parts := splitTopLevel(rest)
	resource := parts[len(parts)-1]
	if resource == "" {
		return Request{}, fmt.Errorf("request %q has no resource", raw)
	}
	path, query, _ := strings.Cut(resource, "?")
	req.Identifier = loader.Identifier{Path: path}
	if query != "" || strings.Contains(resource, "?") {
		req.Identifier.Query = "?" + query
	}

	for _, seg := range parts[:len(parts)-1] {
		if seg == "" {
			continue
		}
		name, rawOpts, _ := strings.Cut(seg, "?")
		if name == "" {
			return Request{}, fmt.Errorf("request %q: inline segment %q has no stage name", raw, seg)
		}
		opts, err := options.ParseQuery(rawOpts)
		if err != nil {
			return Request{}, fmt.Errorf("request %q: stage %q: %w", raw, name, err)
		}
		req.Inline = append(req.Inline, Segment{Name: name, Options: opts, Raw: seg})
	}
	return req, nil
}

// splitTopLevel splits s on '!' outside of {...} and [...] option values.
// Inside those, JSON string literals are skipped so brackets and delimiters
// within option strings are not counted.
func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{', '[':
			depth++
		case '}', ']':
			if depth > 0 {
				depth--
			}
		case '!':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}
