// Package store holds the in-memory tables behind one mock context.
//
// A Store maps table name → record id → record and remembers insertion order
// so unordered reads are stable. Each table has its own mutex; Reset takes the
// store-wide lock and swaps every table at once.
package store

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/edgeflare/pgmock/pkg/schema"
)

var (
	ErrUnknownTable = errors.New("unknown table")
	ErrMissingID    = errors.New("record has no id")
)

// Record is one row. Values are nil, string, float64, bool, []string,
// []any or map[string]any.
type Record map[string]any

// ID returns the store key of r, the value of its schema.KeyColumn.
func (r Record) ID() (string, bool) {
	return Key(r[schema.KeyColumn])
}

// Clone deep-copies r.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

// Key renders an id value as a store key.
func Key(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, x != ""
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case nil:
		return "", false
	default:
		return fmt.Sprint(x), true
	}
}

type table struct {
	rows map[string]Record
	ids  []string
	mu   sync.Mutex
}

func newTable() *table {
	return &table{rows: make(map[string]Record)}
}

func (t *table) put(id string, rec Record) (before Record, existed bool) {
	before, existed = t.rows[id]
	if !existed {
		t.ids = append(t.ids, id)
	}
	t.rows[id] = rec
	return before, existed
}

func (t *table) delete(id string) (Record, bool) {
	before, ok := t.rows[id]
	if !ok {
		return nil, false
	}
	delete(t.rows, id)
	if i := slices.Index(t.ids, id); i >= 0 {
		t.ids = slices.Delete(t.ids, i, i+1)
	}
	return before, true
}

func (t *table) snapshot() []Record {
	out := make([]Record, 0, len(t.ids))
	for _, id := range t.ids {
		out = append(out, t.rows[id].Clone())
	}
	return out
}

// Store is safe for concurrent use.
type Store struct {
	tables    map[string]*table
	names     []string
	observers []Observer
	mu        sync.RWMutex
	obsMu     sync.RWMutex
}

// New returns an empty store serving the named tables.
func New(tables ...string) *Store {
	s := &Store{
		tables: make(map[string]*table, len(tables)),
		names:  slices.Sorted(slices.Values(tables)),
	}
	s.names = slices.Compact(s.names)
	for _, name := range s.names {
		s.tables[name] = newTable()
	}
	return s
}

// Tables returns the served table names in sorted order.
func (s *Store) Tables() []string {
	return slices.Clone(s.names)
}

func (s *Store) Has(name string) bool {
	_, found := slices.BinarySearch(s.names, name)
	return found
}

// lock returns the table named name with the store read lock held.
// The caller must call s.mu.RUnlock.
func (s *Store) lock(name string) (*table, error) {
	s.mu.RLock()
	t, ok := s.tables[name]
	if !ok {
		s.mu.RUnlock()
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, name)
	}
	return t, nil
}

// Reset empties every table atomically.
func (s *Store) Reset() {
	s.mu.Lock()
	changes := make([]Change, 0, len(s.names))
	for _, name := range s.names {
		s.tables[name] = newTable()
		changes = append(changes, newChange(OpTruncate, name, nil, nil))
	}
	s.mu.Unlock()
	s.emit(changes)
}

// Snapshot returns deep copies of the rows of name in insertion order.
func (s *Store) Snapshot(name string) ([]Record, error) {
	t, err := s.lock(name)
	if err != nil {
		return nil, err
	}
	defer s.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot(), nil
}

// Get returns a copy of the record with the given id.
func (s *Store) Get(name, id string) (Record, bool) {
	t, err := s.lock(name)
	if err != nil {
		return nil, false
	}
	defer s.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.rows[id]
	return rec.Clone(), ok
}

// Len returns the number of rows in name, or 0 for unknown tables.
func (s *Store) Len(name string) int {
	t, err := s.lock(name)
	if err != nil {
		return 0
	}
	defer s.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rows)
}

// Put writes records keyed by their id, replacing existing rows in place.
func (s *Store) Put(name string, recs ...Record) error {
	return s.Txn(name, func(tx *Txn) error {
		for _, rec := range recs {
			if err := tx.Put(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes the given ids and reports how many rows existed.
func (s *Store) Delete(name string, ids ...string) (int, error) {
	n := 0
	err := s.Txn(name, func(tx *Txn) error {
		for _, id := range ids {
			if _, ok := tx.Get(id); ok {
				n++
			}
			tx.Delete(id)
		}
		return nil
	})
	return n, err
}

// Txn runs fn with exclusive access to table name. Writes staged on tx are
// applied in order only if fn returns nil.
func (s *Store) Txn(name string, fn func(tx *Txn) error) error {
	changes, err := s.txn(name, fn)
	if err != nil {
		return err
	}
	s.emit(changes)
	return nil
}

// txn holds the locks only while fn runs and the writes are applied, so a
// panic in fn leaves the store usable.
func (s *Store) txn(name string, fn func(tx *Txn) error) ([]Change, error) {
	t, err := s.lock(name)
	if err != nil {
		return nil, err
	}
	defer s.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()

	tx := &Txn{table: t, name: name}
	if err := fn(tx); err != nil {
		return nil, err
	}
	return tx.commit(), nil
}

type stagedWrite struct {
	rec    Record
	id     string
	delete bool
}

// Txn is a staged set of writes against one table.
// Reads observe the committed state, not earlier staged writes.
type Txn struct {
	table  *table
	name   string
	writes []stagedWrite
}

// Table returns the name of the table the transaction runs against.
func (tx *Txn) Table() string { return tx.name }

// Rows returns copies of the committed rows in insertion order.
func (tx *Txn) Rows() []Record {
	return tx.table.snapshot()
}

func (tx *Txn) Get(id string) (Record, bool) {
	rec, ok := tx.table.rows[id]
	return rec.Clone(), ok
}

// Put stages a write of rec keyed by its id.
func (tx *Txn) Put(rec Record) error {
	id, ok := rec.ID()
	if !ok {
		return ErrMissingID
	}
	tx.writes = append(tx.writes, stagedWrite{id: id, rec: rec.Clone()})
	return nil
}

// Delete stages the removal of id. Missing ids are ignored.
func (tx *Txn) Delete(id string) {
	tx.writes = append(tx.writes, stagedWrite{id: id, delete: true})
}

func (tx *Txn) commit() []Change {
	changes := make([]Change, 0, len(tx.writes))
	for _, w := range tx.writes {
		if w.delete {
			if before, ok := tx.table.delete(w.id); ok {
				changes = append(changes, newChange(OpDelete, tx.name, before, nil))
			}
			continue
		}
		before, existed := tx.table.put(w.id, w.rec)
		op := OpCreate
		if existed {
			op = OpUpdate
		}
		changes = append(changes, newChange(op, tx.name, before, w.rec))
	}
	return changes
}

func newChange(op Op, name string, before, after Record) Change {
	return Change{
		Op:     op,
		Table:  name,
		Before: before.Clone(),
		After:  after.Clone(),
		TsMs:   time.Now().UnixMilli(),
	}
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, e := range x {
			m[k] = cloneValue(e)
		}
		return m
	case Record:
		return x.Clone()
	case []any:
		s := make([]any, len(x))
		for i, e := range x {
			s[i] = cloneValue(e)
		}
		return s
	case []string:
		return slices.Clone(x)
	default:
		return v
	}
}
