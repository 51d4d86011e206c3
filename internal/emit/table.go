package emit

import (
	"sort"
	"sync"
)

// Record is one emitted file.
type Record struct {
	Hash    string `json:"hash"`
	Path    string `json:"path"`
	Size    int    `json:"size"`
	Content []byte `json:"-"`
}

type entry struct {
	rec  Record
	done chan struct{} // closed once the write finished
	err  error         // set before done is closed
}

// Table is the session-wide mapping from content hash to emitted record.
// Entries are never overwritten; a failed write removes its entry.
type Table struct {
	mu     sync.Mutex
	byHash map[string]*entry
	byPath map[string]string
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{byHash: map[string]*entry{}, byPath: map[string]string{}}
}

// claim returns the existing entry for hash, or registers a new pending one.
// A path held by a different hash yields ErrPathConflict.
func (t *Table) claim(hash, path string, content []byte) (*entry, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if en, ok := t.byHash[hash]; ok {
		return en, false, nil
	}
	if owner, ok := t.byPath[path]; ok && owner != hash {
		return nil, false, ErrPathConflict
	}
	en := &entry{
		rec:  Record{Hash: hash, Path: path, Size: len(content), Content: append([]byte(nil), content...)},
		done: make(chan struct{}),
	}
	t.byHash[hash] = en
	t.byPath[path] = hash
	return en, true, nil
}

func (t *Table) finish(en *entry, err error) {
	if err != nil {
		t.mu.Lock()
		delete(t.byHash, en.rec.Hash)
		delete(t.byPath, en.rec.Path)
		t.mu.Unlock()
		en.err = err
	}
	close(en.done)
}

func (t *Table) committed() []*entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*entry, 0, len(t.byHash))
	for _, en := range t.byHash {
		select {
		case <-en.done:
			out = append(out, en)
		default:
		}
	}
	return out
}

// Len returns the number of successfully written entries.
func (t *Table) Len() int {
	return len(t.committed())
}

// Lookup returns the committed record for hash.
func (t *Table) Lookup(hash string) (Record, bool) {
	t.mu.Lock()
	en, ok := t.byHash[hash]
	t.mu.Unlock()
	if !ok {
		return Record{}, false
	}
	select {
	case <-en.done:
		return en.rec, true
	default:
		return Record{}, false
	}
}

// Records returns all committed records sorted by path.
func (t *Table) Records() []Record {
	entries := t.committed()
	out := make([]Record, len(entries))
	for i, en := range entries {
		out[i] = en.rec
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
