package memory

import (
	"context"
	"sync"

	"verimed/pkg/platform/audit"
)

// Store is an in-memory audit sink for unit tests and single-node use.
type Store struct {
	mu     sync.RWMutex
	events []audit.Event
}

func New() *Store {
	return &Store{}
}

func (s *Store) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *Store) ListByPatient(_ context.Context, patientID string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Event
	for _, e := range s.events {
		if e.PatientID == patientID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) DeleteByPatient(_ context.Context, patientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.events[:0]
	for _, e := range s.events {
		if e.PatientID != patientID {
			kept = append(kept, e)
		}
	}
	s.events = kept
	return nil
}
