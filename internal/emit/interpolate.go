package emit

import (
	"crypto/sha256"
	"encoding/hex"
	"path"
	"regexp"
	"strconv"
	"strings"
)

// Asset describes the module that emits a file. Its fields feed the
// [name], [ext], [path] and [query] tokens and the stored metadata.
type Asset struct {
	Resource string // slash-separated resource path, without query
	Query    string // resource query including the leading '?', or ""
	Module   string // full module identifier
	Stage    string // emitting stage
}

// Hash returns the hex SHA-256 digest of content.
func Hash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

var tokenPattern = regexp.MustCompile(`\[(hash|contenthash|name|ext|path|query)(?::(\d+))?\]`)

// Interpolate renders pattern for an asset with the given digest. [hash] and
// [contenthash] are truncated to hashLength characters unless a token carries
// its own length ([hash:8]). Unknown tokens are left untouched.
func Interpolate(pattern string, a Asset, digest string, hashLength int) string {
	base := path.Base(a.Resource)
	if a.Resource == "" {
		base = "file"
	}
	ext := path.Ext(base)
	name := strings.TrimSuffix(base, ext)
	dir := path.Dir(a.Resource)
	if dir == "." || dir == "/" || a.Resource == "" {
		dir = ""
	} else {
		dir = strings.TrimPrefix(dir, "/") + "/"
	}
	query := a.Query
	if query != "" && !strings.HasPrefix(query, "?") {
		query = "?" + query
	}

	return tokenPattern.ReplaceAllStringFunc(pattern, func(tok string) string {
		m := tokenPattern.FindStringSubmatch(tok)
		switch m[1] {
		case "hash", "contenthash":
			n := hashLength
			if m[2] != "" {
				if v, err := strconv.Atoi(m[2]); err == nil {
					n = v
				}
			}
			if n <= 0 || n > len(digest) {
				n = len(digest)
			}
			return digest[:n]
		case "name":
			return name
		case "ext":
			return strings.TrimPrefix(ext, ".")
		case "path":
			return dir
		case "query":
			return query
		}
		return tok
	})
}
