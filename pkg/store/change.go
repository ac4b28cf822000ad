package store

// Op is the kind of a change, using the Debezium operation codes.
type Op string

const (
	OpCreate   Op = "c"
	OpUpdate   Op = "u"
	OpDelete   Op = "d"
	OpTruncate Op = "t"
)

// Change describes one committed write. Before is nil for creates and
// truncates; After is nil for deletes and truncates.
type Change struct {
	Before Record `json:"before"`
	After  Record `json:"after"`
	Op     Op     `json:"op"`
	Table  string `json:"table"`
	TsMs   int64  `json:"ts_ms"`
}

// Observer receives committed changes. It is called after the table lock is
// released, so it may read from the store.
type Observer func(Change)

// Observe registers o for every future change.
func (s *Store) Observe(o Observer) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.observers = append(s.observers, o)
}

func (s *Store) emit(changes []Change) {
	if len(changes) == 0 {
		return
	}
	s.obsMu.RLock()
	observers := s.observers
	s.obsMu.RUnlock()

	for _, c := range changes {
		for _, o := range observers {
			o(c)
		}
	}
}
