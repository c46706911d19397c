package core

import (
	"fmt"
	"iter"
	"slices"
	"time"
)

// Store maps record ids to records. Iteration follows insertion order.
// Store is not safe for concurrent use; the controller owns the locking.
type Store struct {
	records map[string]Record
	order   []string
	retired map[string]struct{}
}

func NewStore() *Store {
	return &Store{
		records: make(map[string]Record),
		retired: make(map[string]struct{}),
	}
}

// Add inserts r under r.ID. Ids that exist or were deleted are rejected.
func (s *Store) Add(r Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if _, ok := s.records[r.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, r.ID)
	}
	if _, ok := s.retired[r.ID]; ok {
		return fmt.Errorf("%w: %s was deleted", ErrDuplicateID, r.ID)
	}
	s.records[r.ID] = r
	s.order = append(s.order, r.ID)
	return nil
}

// Put stores r, replacing any record with the same id. Loaders use it to
// rebuild a store from a backend where duplicate keys overwrite.
func (s *Store) Put(r Record) {
	if _, ok := s.records[r.ID]; !ok {
		s.order = append(s.order, r.ID)
	}
	s.records[r.ID] = r
}

func (s *Store) Get(id string) (Record, error) {
	r, ok := s.records[id]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, nil
}

func (s *Store) Delete(id string) error {
	if _, ok := s.records[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.records, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
	s.retired[id] = struct{}{}
	return nil
}

// Update applies mutate to the record and stamps LastModified with now.
// Id and CreatedAt cannot be changed through mutate.
func (s *Store) Update(id string, now time.Time, mutate func(*Record)) error {
	r, ok := s.records[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	createdAt := r.CreatedAt
	mutate(&r)
	r.ID = id
	r.CreatedAt = createdAt
	r.LastModified = NewTimestamp(now)
	s.records[id] = r
	return nil
}

// All yields every record. The sequence can be ranged over more than once.
func (s *Store) All() iter.Seq[Record] {
	return func(yield func(Record) bool) {
		for _, id := range s.order {
			if !yield(s.records[id]) {
				return
			}
		}
	}
}

func (s *Store) Len() int {
	return len(s.records)
}

// Clear removes every record. Cleared ids stay retired.
func (s *Store) Clear() {
	for id := range s.records {
		s.retired[id] = struct{}{}
	}
	s.records = make(map[string]Record)
	s.order = nil
}

// Clone returns a deep copy, retired ids included.
func (s *Store) Clone() *Store {
	c := &Store{
		records: make(map[string]Record, len(s.records)),
		order:   slices.Clone(s.order),
		retired: make(map[string]struct{}, len(s.retired)),
	}
	for id, r := range s.records {
		c.records[id] = r
	}
	for id := range s.retired {
		c.retired[id] = struct{}{}
	}
	return c
}

// Map returns a copy of the id to record mapping.
func (s *Store) Map() map[string]Record {
	out := make(map[string]Record, len(s.records))
	for id, r := range s.records {
		out[id] = r
	}
	return out
}
