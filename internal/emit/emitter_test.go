package emit

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/loadchain/internal/config"
	"git.home.luguber.info/inful/loadchain/internal/retry"
	"git.home.luguber.info/inful/loadchain/internal/storage"
)

func fastRetry(n int) Option {
	return WithRetryPolicy(retry.NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, n))
}

func TestEmitFreshThenDeduplicated(t *testing.T) {
	store := storage.NewMemoryStore()
	em := NewEmitter(NewTable(), store)
	ctx := context.Background()
	asset := Asset{Resource: "img/a.png", Module: "img/a.png", Stage: "file"}

	first, fresh, err := em.Emit(ctx, []byte("payload"), "images/[hash].[ext]", asset)
	require.NoError(t, err)
	assert.True(t, fresh)
	assert.Equal(t, Hash([]byte("payload")), first.Hash)
	assert.Equal(t, "images/"+first.Hash[:20]+".png", first.Path)

	// A different resource with the same bytes keeps the first path.
	second, fresh, err := em.Emit(ctx, []byte("payload"), "images/[hash].[ext]", Asset{Resource: "other/b.jpg"})
	require.NoError(t, err)
	assert.False(t, fresh)
	assert.Equal(t, first.Path, second.Path)

	assert.Equal(t, 1, store.Len())
	assert.Equal(t, 1, store.Calls().Put)
	assert.Equal(t, 1, em.Table().Len())

	rec, ok := em.Table().Lookup(first.Hash)
	require.True(t, ok)
	assert.Equal(t, first.Path, rec.Path)

	obj, err := store.Get(ctx, first.Hash)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), obj.Data)
	assert.Equal(t, first.Path, obj.Metadata.Custom[storage.MetaPath])
	assert.Equal(t, "file", obj.Metadata.Custom[storage.MetaStage])
}

func TestEmitImageTwiceInOneRun(t *testing.T) {
	image := bytes.Repeat([]byte{0x89, 'P', 'N', 'G'}, 2048) // 8 KiB
	store := storage.NewMemoryStore()
	em := NewEmitter(nil, store)

	a, freshA, err := em.Emit(context.Background(), image, "images/[hash].[ext]", Asset{Resource: "logo.png"})
	require.NoError(t, err)
	b, freshB, err := em.Emit(context.Background(), image, "images/[hash].[ext]", Asset{Resource: "logo.png"})
	require.NoError(t, err)

	assert.True(t, freshA)
	assert.False(t, freshB)
	assert.Equal(t, a.Path, b.Path)
	assert.Equal(t, 8192, a.Size)
	assert.Len(t, em.Table().Records(), 1)
	assert.Equal(t, 1, store.Len())
}

func TestEmitConcurrentIdenticalContent(t *testing.T) {
	store := storage.NewMemoryStore()
	em := NewEmitter(NewTable(), store)

	const n = 32
	paths := make([]string, n)
	freshCount := 0
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, fresh, err := em.Emit(context.Background(), []byte("shared"), "[hash]", Asset{})
			assert.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			paths[i] = rec.Path
			if fresh {
				freshCount++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, freshCount)
	for _, p := range paths {
		assert.Equal(t, paths[0], p)
	}
	assert.Equal(t, 1, store.Calls().Put)
}

func TestEmitPathConflict(t *testing.T) {
	em := NewEmitter(NewTable(), storage.NewMemoryStore())
	_, _, err := em.Emit(context.Background(), []byte("one"), "static/name.txt", Asset{Stage: "file"})
	require.NoError(t, err)

	_, _, err = em.Emit(context.Background(), []byte("two"), "static/name.txt", Asset{Stage: "file"})
	require.Error(t, err)
	var ee *EmissionError
	require.ErrorAs(t, err, &ee)
	assert.ErrorIs(t, err, ErrPathConflict)
	assert.Equal(t, "static/name.txt", ee.Path)
	assert.Equal(t, Hash([]byte("two")), ee.Hash)
	assert.Equal(t, "file", ee.Stage)
}

func TestEmitStoreFailureRemovesEntry(t *testing.T) {
	store := storage.NewMemoryStore()
	boom := errors.New("disk full")
	store.FailPut = func(*storage.Object) error { return boom }
	em := NewEmitter(NewTable(), store, fastRetry(2))

	_, fresh, err := em.Emit(context.Background(), []byte("data"), "[hash]", Asset{Stage: "file"})
	require.Error(t, err)
	assert.False(t, fresh)
	var ee *EmissionError
	require.ErrorAs(t, err, &ee)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, Hash([]byte("data")), ee.Hash)
	assert.Equal(t, Hash([]byte("data"))[:20], ee.Path)
	assert.Equal(t, 1, store.Calls().Put, "permanent errors are not retried")
	assert.Zero(t, em.Table().Len())

	store.FailPut = nil
	rec, fresh, err := em.Emit(context.Background(), []byte("data"), "[hash]", Asset{})
	require.NoError(t, err)
	assert.True(t, fresh)
	assert.Equal(t, ee.Path, rec.Path)
}

func TestEmitRetriesTransientStoreErrors(t *testing.T) {
	store := storage.NewMemoryStore()
	failures := 2
	store.FailPut = func(*storage.Object) error {
		if failures > 0 {
			failures--
			return syscall.EAGAIN
		}
		return nil
	}
	em := NewEmitter(NewTable(), store, fastRetry(3))

	_, fresh, err := em.Emit(context.Background(), []byte("retry me"), "[hash]", Asset{})
	require.NoError(t, err)
	assert.True(t, fresh)
	assert.Equal(t, 3, store.Calls().Put)
}

func TestTableRecordsSortedByPath(t *testing.T) {
	em := NewEmitter(NewTable(), storage.NewMemoryStore(), WithHashLength(6))
	for _, name := range []string{"c.txt", "a.txt", "b.txt"} {
		_, _, err := em.Emit(context.Background(), []byte(name), "[name]-[hash].[ext]", Asset{Resource: name})
		require.NoError(t, err)
	}
	recs := em.Table().Records()
	require.Len(t, recs, 3)
	assert.Equal(t, "a-", recs[0].Path[:2])
	assert.Equal(t, "b-", recs[1].Path[:2])
	assert.Equal(t, "c-", recs[2].Path[:2])
	assert.Len(t, recs[0].Path, len("a-")+6+len(".txt"))
}
