package export

import (
	"context"
	"sync"

	"verimed/pkg/platform/sentinel"
)

// InMemoryStore backs unit tests and single-node development.
type InMemoryStore struct {
	mu            sync.RWMutex
	snapshots     map[string]*Snapshot
	coverageCodes map[string][]*CoverageCode
	messages      map[string][]*Message
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		snapshots:     make(map[string]*Snapshot),
		coverageCodes: make(map[string][]*CoverageCode),
		messages:      make(map[string][]*Message),
	}
}

func (s *InMemoryStore) CreateSnapshot(_ context.Context, snapshot *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.snapshots[snapshot.ID]; exists {
		return sentinel.ErrConflict
	}
	clone := *snapshot
	s.snapshots[snapshot.ID] = &clone
	return nil
}

func (s *InMemoryStore) GetSnapshot(_ context.Context, id string) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot, ok := s.snapshots[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *snapshot
	return &clone, nil
}

func (s *InMemoryStore) ListByPatient(_ context.Context, patientID string) ([]*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Snapshot
	for _, snapshot := range s.snapshots {
		if snapshot.PatientID == patientID {
			clone := *snapshot
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (s *InMemoryStore) AddCoverageCode(_ context.Context, row *CoverageCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.snapshots[row.SnapshotID]; !ok {
		return sentinel.ErrNotFound
	}
	clone := *row
	s.coverageCodes[row.SnapshotID] = append(s.coverageCodes[row.SnapshotID], &clone)
	return nil
}

func (s *InMemoryStore) ListCoverageCodes(_ context.Context, snapshotID string) ([]*CoverageCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*CoverageCode
	for _, row := range s.coverageCodes[snapshotID] {
		clone := *row
		out = append(out, &clone)
	}
	return out, nil
}

func (s *InMemoryStore) AddMessage(_ context.Context, message *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.snapshots[message.SnapshotID]; !ok {
		return sentinel.ErrNotFound
	}
	clone := *message
	s.messages[message.SnapshotID] = append(s.messages[message.SnapshotID], &clone)
	return nil
}

func (s *InMemoryStore) ListMessages(_ context.Context, snapshotID string) ([]*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Message
	for _, message := range s.messages[snapshotID] {
		clone := *message
		out = append(out, &clone)
	}
	return out, nil
}

func (s *InMemoryStore) DeleteSnapshot(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteSnapshotLocked(id)
	return nil
}

func (s *InMemoryStore) DeleteByPatient(_ context.Context, patientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, snapshot := range s.snapshots {
		if snapshot.PatientID == patientID {
			s.deleteSnapshotLocked(id)
		}
	}
	return nil
}

func (s *InMemoryStore) deleteSnapshotLocked(id string) {
	delete(s.messages, id)
	delete(s.coverageCodes, id)
	delete(s.snapshots, id)
}

func (s *InMemoryStore) CountByPatient(_ context.Context, patientID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for id, snapshot := range s.snapshots {
		if snapshot.PatientID == patientID {
			count += 1 + len(s.coverageCodes[id]) + len(s.messages[id])
		}
	}
	return count, nil
}
