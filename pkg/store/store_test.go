package store

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/edgeflare/pgmock/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorePutSnapshotOrder(t *testing.T) {
	s := New("phones", "phone_inquiries")

	require.NoError(t, s.Put("phones",
		Record{"id": "b", "price": float64(2)},
		Record{"id": "a", "price": float64(1)},
	))
	require.NoError(t, s.Put("phones", Record{"id": "b", "price": float64(3)}))

	rows, err := s.Snapshot("phones")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "b", rows[0]["id"], "replacing a row keeps its position")
	assert.Equal(t, float64(3), rows[0]["price"])
	assert.Equal(t, "a", rows[1]["id"])

	rows[0]["price"] = float64(99)
	got, ok := s.Get("phones", "b")
	require.True(t, ok)
	assert.Equal(t, float64(3), got["price"], "snapshots are copies")
}

func TestStoreUnknownTable(t *testing.T) {
	s := New("phones")
	_, err := s.Snapshot("users")
	assert.True(t, errors.Is(err, ErrUnknownTable))
	assert.False(t, s.Has("users"))
	assert.True(t, s.Has("phones"))
	assert.Equal(t, 0, s.Len("users"))
}

func TestStoreMissingID(t *testing.T) {
	s := New("phones")
	err := s.Put("phones", Record{"price": float64(1)})
	assert.ErrorIs(t, err, ErrMissingID)
	assert.Equal(t, 0, s.Len("phones"))
}

func TestStoreKeysByNormalizedKeyColumn(t *testing.T) {
	reg := schema.Default(schema.WithIDGenerator(func() string { return "gen-1" }))
	rec, err := reg.Normalize(schema.TablePhones, map[string]any{"title": "Galaxy"}, nil)
	require.NoError(t, err)

	s := New(schema.TablePhones)
	require.NoError(t, s.Put(schema.TablePhones, rec))

	got, ok := s.Get(schema.TablePhones, "gen-1")
	require.True(t, ok)
	assert.Equal(t, "Galaxy", got["title"])
	assert.Equal(t, "gen-1", got[schema.KeyColumn])
}

func TestTxnRollback(t *testing.T) {
	s := New("phones")
	require.NoError(t, s.Put("phones", Record{"id": "keep"}))

	boom := errors.New("boom")
	err := s.Txn("phones", func(tx *Txn) error {
		require.NoError(t, tx.Put(Record{"id": "new"}))
		tx.Delete("keep")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	rows, err := s.Snapshot("phones")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "keep", rows[0]["id"])
}

func TestTxnPanicReleasesLocks(t *testing.T) {
	s := New("phones")
	assert.Panics(t, func() {
		_ = s.Txn("phones", func(tx *Txn) error {
			require.NoError(t, tx.Put(Record{"id": "lost"}))
			panic("boom")
		})
	})

	done := make(chan error, 1)
	go func() {
		done <- s.Put("phones", Record{"id": "after"})
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("store still locked after panic")
	}

	rows, err := s.Snapshot("phones")
	require.NoError(t, err)
	require.Len(t, rows, 1, "staged writes of the panicking txn are dropped")
	assert.Equal(t, "after", rows[0]["id"])
	s.Reset()
}

func TestStoreDelete(t *testing.T) {
	s := New("phones")
	require.NoError(t, s.Put("phones", Record{"id": "a"}, Record{"id": "b"}, Record{"id": "c"}))

	n, err := s.Delete("phones", "a", "c", "missing")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows, err := s.Snapshot("phones")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "b", rows[0]["id"])
}

func TestStoreResetAndObserve(t *testing.T) {
	s := New("phones", "phone_reactions")

	var (
		mu      sync.Mutex
		changes []Change
	)
	s.Observe(func(c Change) {
		mu.Lock()
		defer mu.Unlock()
		changes = append(changes, c)
	})

	require.NoError(t, s.Put("phones", Record{"id": "a"}))
	require.NoError(t, s.Put("phones", Record{"id": "a", "title": "x"}))
	_, err := s.Delete("phones", "a")
	require.NoError(t, err)
	require.NoError(t, s.Put("phone_reactions", Record{"id": "r"}))
	s.Reset()

	assert.Equal(t, 0, s.Len("phones"))
	assert.Equal(t, 0, s.Len("phone_reactions"))

	ops := make([]Op, 0, len(changes))
	for _, c := range changes {
		ops = append(ops, c.Op)
	}
	assert.Equal(t, []Op{OpCreate, OpUpdate, OpDelete, OpCreate, OpTruncate, OpTruncate}, ops)
	assert.Equal(t, "x", changes[1].After["title"])
	assert.Nil(t, changes[1].Before["title"])
	assert.Equal(t, "a", changes[2].Before["id"])
}

func TestStoreConcurrentWrites(t *testing.T) {
	s := New("phones")
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Put("phones", Record{"id": float64(i)}))
			_, _ = s.Snapshot("phones")
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, s.Len("phones"))
}

func TestLoadFixtures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixtures.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
phones:
  - id: P1
    price: 100
    tags: [a, b]
    metadata:
      sellerNote: keep case
phone_inquiries:
  - id: Q1
    content: hello
`), 0o600))

	fx, err := LoadFixtures(path)
	require.NoError(t, err)
	require.Len(t, fx["phones"], 1)
	assert.Equal(t, float64(100), fx["phones"][0]["price"])
	assert.Equal(t, []any{"a", "b"}, fx["phones"][0]["tags"])
	assert.Equal(t, map[string]any{"sellerNote": "keep case"}, fx["phones"][0]["metadata"])
	assert.Equal(t, "hello", fx["phone_inquiries"][0]["content"])

	_, err = LoadFixtures(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseFixturesJSON(t *testing.T) {
	fx, err := ParseFixtures([]byte(`{"phone_reactions":[{"id":"R1","type":"favorite"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "favorite", fx["phone_reactions"][0]["type"])
}
