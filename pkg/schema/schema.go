// Package schema describes the fixed set of tables served by the mock and
// normalizes the records written to them.
//
// Every table is declared once with its columns, types and default values.
// A Registry maps table names to those declarations and to the Normalizer
// that shapes insert and update payloads, so adding or auditing a table never
// touches request dispatch.
package schema

import (
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

type ColumnType string

const (
	TypeText      ColumnType = "text"
	TypeNumber    ColumnType = "numeric"
	TypeBool      ColumnType = "boolean"
	TypeTextArray ColumnType = "text[]"
	TypeJSON      ColumnType = "jsonb"
	TypeTimestamp ColumnType = "timestamptz"
)

// KeyColumn is the column every table is keyed by. It is generated on insert
// when absent and never changes on update.
const KeyColumn = "id"

// DefaultFunc produces the value of a column that is absent on insert.
// now is shared by every column of one record so created_at and updated_at agree.
type DefaultFunc func(now time.Time) any

type Column struct {
	Name       string      `json:"name"`
	DataType   ColumnType  `json:"data_type"`
	IsNullable bool        `json:"is_nullable"`
	Default    DefaultFunc `json:"-"`
}

type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
	// UpdatedAt names the server-managed modification timestamp, if any.
	UpdatedAt string `json:"updated_at,omitempty"`
}

// Column returns the column definition named name.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Normalizer fills defaults and coerces types for input. existing is nil on
// insert and holds the current record on update; the returned record is
// always a fresh map.
type Normalizer func(input, existing map[string]any) (map[string]any, error)

type RegistryOption func(*Registry)

// WithClock overrides the time source used for timestamp defaults.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.now = now
	}
}

// WithIDGenerator overrides how missing primary keys are generated.
func WithIDGenerator(gen func() string) RegistryOption {
	return func(r *Registry) {
		r.newID = gen
	}
}

// Registry maps table names to their definitions and normalizers.
type Registry struct {
	tables      map[string]Table
	normalizers map[string]Normalizer
	now         func() time.Time
	newID       func() string
	mu          sync.RWMutex
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		tables:      make(map[string]Table),
		normalizers: make(map[string]Normalizer),
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Default returns a new registry holding the marketplace tables.
func Default(opts ...RegistryOption) *Registry {
	r := NewRegistry(opts...)
	for _, t := range MarketplaceTables() {
		r.Register(t)
	}
	return r
}

// Register adds t with a normalizer derived from its column definitions.
// Registering a name twice replaces the previous definition.
func (r *Registry) Register(t Table) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tables[t.Name] = t
	r.normalizers[t.Name] = r.columnNormalizer(t)
}

// RegisterNormalizer replaces the normalizer of an already registered table.
func (r *Registry) RegisterNormalizer(name string, n Normalizer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tables[name]; !ok {
		return fmt.Errorf("table %s not registered", name)
	}
	r.normalizers[name] = n
	return nil
}

func (r *Registry) Table(name string) (Table, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tables[name]
	return t, ok
}

func (r *Registry) Has(name string) bool {
	_, ok := r.Table(name)
	return ok
}

// Names returns the registered table names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.tables))
}

// Normalize shapes input for table. See Normalizer.
func (r *Registry) Normalize(table string, input, existing map[string]any) (map[string]any, error) {
	r.mu.RLock()
	n, ok := r.normalizers[table]
	r.mu.RUnlock()
	if !ok {
		return nil, &pgconn.PgError{
			Code:    "42P01",
			Message: fmt.Sprintf("relation %q does not exist", table),
		}
	}
	return n(input, existing)
}

func (r *Registry) columnNormalizer(t Table) Normalizer {
	return func(input, existing map[string]any) (map[string]any, error) {
		out := make(map[string]any, len(t.Columns)+len(input))
		for k, v := range existing {
			out[k] = cloneValue(v)
		}

		changed := false
		for k, v := range input {
			if existing != nil && k == KeyColumn {
				continue
			}
			col, ok := t.Column(k)
			if !ok {
				out[k] = cloneValue(v)
				changed = true
				continue
			}
			cv, err := Coerce(col, v)
			if err != nil {
				return nil, err
			}
			out[k] = cv
			changed = true
		}

		now := r.now()
		if existing == nil {
			for _, col := range t.Columns {
				if _, ok := out[col.Name]; ok {
					continue
				}
				switch {
				case col.Name == KeyColumn:
					out[col.Name] = r.newID()
				case col.Default != nil:
					out[col.Name] = col.Default(now)
				default:
					out[col.Name] = nil
				}
			}
			return out, nil
		}

		if changed && t.UpdatedAt != "" {
			if _, set := input[t.UpdatedAt]; !set {
				out[t.UpdatedAt] = FormatTime(now)
			}
		}
		return out, nil
	}
}

// FormatTime renders t the way timestamptz values are stored.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
