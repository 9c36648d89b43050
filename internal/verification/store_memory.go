package verification

import (
	"context"
	"sort"
	"sync"
	"time"

	"verimed/pkg/domain"
	"verimed/pkg/platform/sentinel"
)

// InMemoryStore keeps the transaction log in process memory. It backs unit
// tests and single-node development; the mutex gives UpdateStatus the same
// compare-and-set atomicity the SQL store gets from its WHERE clause.
type InMemoryStore struct {
	mu            sync.RWMutex
	transactions  map[domain.TransactionID]*Transaction
	messages      map[domain.TransactionID][]*CallCommunication
	tags          map[domain.TransactionID][]*VerifiedItemTag
	statusRecords map[domain.PatientID]*StatusRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		transactions:  make(map[domain.TransactionID]*Transaction),
		messages:      make(map[domain.TransactionID][]*CallCommunication),
		tags:          make(map[domain.TransactionID][]*VerifiedItemTag),
		statusRecords: make(map[domain.PatientID]*StatusRecord),
	}
}

func (s *InMemoryStore) Create(_ context.Context, transaction *Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.transactions[transaction.ID]; exists {
		return sentinel.ErrConflict
	}
	clone := *transaction
	s.transactions[transaction.ID] = &clone
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id domain.TransactionID) (*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	transaction, ok := s.transactions[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *transaction
	return &clone, nil
}

func (s *InMemoryStore) ListByPatient(_ context.Context, patientID domain.PatientID) ([]*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Transaction
	for _, transaction := range s.transactions {
		if transaction.PatientID == patientID {
			clone := *transaction
			out = append(out, &clone)
		}
	}
	sortByStartTime(out)
	return out, nil
}

// sortByStartTime orders transactions by start time ascending; attempts that
// have not begun (nil start) sort last. Ties keep creation order.
func sortByStartTime(transactions []*Transaction) {
	sort.SliceStable(transactions, func(i, j int) bool {
		left, right := transactions[i].StartTime, transactions[j].StartTime
		switch {
		case left == nil && right == nil:
			return transactions[i].CreatedAt.Before(transactions[j].CreatedAt)
		case left == nil:
			return false
		case right == nil:
			return true
		default:
			return left.Before(*right)
		}
	})
}

func (s *InMemoryStore) UpdateStatus(_ context.Context, id domain.TransactionID, expected, next domain.TransactionStatus, fields ResultFields) (*Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	transaction, ok := s.transactions[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if transaction.Status != expected {
		return nil, sentinel.ErrStaleStatus
	}
	transaction.Status = next
	applyResultFields(transaction, fields)
	transaction.UpdatedAt = time.Now()
	clone := *transaction
	return &clone, nil
}

func applyResultFields(transaction *Transaction, fields ResultFields) {
	if fields.StartTime != nil {
		transaction.StartTime = fields.StartTime
	}
	if fields.EndTime != nil {
		transaction.EndTime = fields.EndTime
	}
	if fields.EligibilitySummary != nil {
		transaction.EligibilitySummary = *fields.EligibilitySummary
	}
	if fields.BenefitsSummary != nil {
		transaction.BenefitsSummary = *fields.BenefitsSummary
	}
	if fields.Transcript != nil {
		transaction.Transcript = *fields.Transcript
	}
	if fields.RawProviderResponse != nil {
		transaction.RawProviderResponse = *fields.RawProviderResponse
	}
	if fields.InsuranceProvider != nil {
		transaction.InsuranceProvider = *fields.InsuranceProvider
	}
	if fields.InsuranceRep != nil {
		transaction.InsuranceRep = *fields.InsuranceRep
	}
}

func (s *InMemoryStore) AddCommunication(_ context.Context, message *CallCommunication) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[message.TransactionID]; !ok {
		return sentinel.ErrNotFound
	}
	clone := *message
	s.messages[message.TransactionID] = append(s.messages[message.TransactionID], &clone)
	return nil
}

func (s *InMemoryStore) ListCommunications(_ context.Context, transactionID domain.TransactionID) ([]*CallCommunication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*CallCommunication
	for _, message := range s.messages[transactionID] {
		clone := *message
		out = append(out, &clone)
	}
	return out, nil
}

func (s *InMemoryStore) AddTag(_ context.Context, tag *VerifiedItemTag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[tag.TransactionID]; !ok {
		return sentinel.ErrNotFound
	}
	clone := *tag
	s.tags[tag.TransactionID] = append(s.tags[tag.TransactionID], &clone)
	return nil
}

func (s *InMemoryStore) ListTags(_ context.Context, transactionID domain.TransactionID) ([]*VerifiedItemTag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*VerifiedItemTag
	for _, tag := range s.tags[transactionID] {
		clone := *tag
		out = append(out, &clone)
	}
	return out, nil
}

func (s *InMemoryStore) GetStatusRecord(_ context.Context, patientID domain.PatientID) (*StatusRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.statusRecords[patientID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *record
	return &clone, nil
}

func (s *InMemoryStore) PutStatusRecord(_ context.Context, record *StatusRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *record
	clone.UpdatedAt = time.Now()
	s.statusRecords[record.PatientID] = &clone
	return nil
}

func (s *InMemoryStore) DeleteByPatient(_ context.Context, patientID domain.PatientID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, transaction := range s.transactions {
		if transaction.PatientID == patientID {
			delete(s.messages, id)
			delete(s.tags, id)
			delete(s.transactions, id)
		}
	}
	delete(s.statusRecords, patientID)
	return nil
}
