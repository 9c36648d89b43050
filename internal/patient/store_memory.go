package patient

import (
	"context"
	"sort"
	"sync"

	"verimed/internal/sensitive"
	"verimed/pkg/domain"
	"verimed/pkg/platform/sentinel"
)

// InMemoryStore backs unit tests and single-node development.
type InMemoryStore struct {
	mu              sync.RWMutex
	patients        map[domain.PatientID]*Patient
	insurances      map[domain.PatientID][]*Insurance
	coverageByCode  map[domain.PatientID][]*CoverageByCode
	coverageDetails map[domain.PatientID][]*CoverageDetail
	callHistory     map[domain.PatientID][]*CallHistory
	treatments      map[domain.PatientID][]*Treatment
	appointments    map[domain.PatientID][]*Appointment
	addresses       map[domain.PatientID][]*PostalAddress
	contactPoints   map[domain.PatientID][]*ContactPoint
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		patients:        make(map[domain.PatientID]*Patient),
		insurances:      make(map[domain.PatientID][]*Insurance),
		coverageByCode:  make(map[domain.PatientID][]*CoverageByCode),
		coverageDetails: make(map[domain.PatientID][]*CoverageDetail),
		callHistory:     make(map[domain.PatientID][]*CallHistory),
		treatments:      make(map[domain.PatientID][]*Treatment),
		appointments:    make(map[domain.PatientID][]*Appointment),
		addresses:       make(map[domain.PatientID][]*PostalAddress),
		contactPoints:   make(map[domain.PatientID][]*ContactPoint),
	}
}

func (s *InMemoryStore) CreatePatient(_ context.Context, p *Patient) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.patients[p.ID]; exists {
		return sentinel.ErrConflict
	}
	clone := *p
	s.patients[p.ID] = &clone
	return nil
}

func (s *InMemoryStore) GetPatient(_ context.Context, id domain.PatientID) (*Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patients[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

// patientFields maps attribute names to their location on the patient record.
func patientField(p *Patient, name domain.FieldName) *sensitive.Field {
	switch name {
	case domain.FieldBirthDate:
		return &p.BirthDate
	case domain.FieldNationalID:
		return &p.NationalID
	case domain.FieldPhone:
		return &p.Phone
	case domain.FieldEmail:
		return &p.Email
	case domain.FieldAddress:
		return &p.Address
	default:
		return nil
	}
}

func insuranceField(ins *Insurance, name domain.FieldName) *sensitive.Field {
	switch name {
	case domain.FieldPolicyNumber:
		return &ins.PolicyNumber
	case domain.FieldGroupNumber:
		return &ins.GroupNumber
	case domain.FieldSubscriberID:
		return &ins.SubscriberID
	default:
		return nil
	}
}

func (s *InMemoryStore) GetField(_ context.Context, patientID domain.PatientID, name domain.FieldName) (sensitive.Field, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patients[patientID]
	if !ok {
		return sensitive.Field{}, sentinel.ErrNotFound
	}
	if field := patientField(p, name); field != nil {
		return *field, nil
	}
	ins := s.primaryInsuranceLocked(patientID)
	if ins == nil {
		return sensitive.Field{}, sentinel.ErrNotFound
	}
	if field := insuranceField(ins, name); field != nil {
		return *field, nil
	}
	return sensitive.Field{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) PutField(_ context.Context, patientID domain.PatientID, name domain.FieldName, field sensitive.Field) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patients[patientID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if target := patientField(p, name); target != nil {
		*target = field
		return nil
	}
	ins := s.primaryInsuranceLocked(patientID)
	if ins == nil {
		return sentinel.ErrNotFound
	}
	if target := insuranceField(ins, name); target != nil {
		*target = field
		return nil
	}
	return sentinel.ErrNotFound
}

func (s *InMemoryStore) primaryInsuranceLocked(patientID domain.PatientID) *Insurance {
	list := s.insurances[patientID]
	if len(list) == 0 {
		return nil
	}
	best := list[0]
	for _, ins := range list[1:] {
		if ins.Rank < best.Rank {
			best = ins
		}
	}
	return best
}

func (s *InMemoryStore) AddInsurance(_ context.Context, ins *Insurance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *ins
	s.insurances[ins.PatientID] = append(s.insurances[ins.PatientID], &clone)
	return nil
}

func (s *InMemoryStore) ListInsurances(_ context.Context, patientID domain.PatientID) ([]*Insurance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Insurance
	for _, ins := range s.insurances[patientID] {
		clone := *ins
		out = append(out, &clone)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out, nil
}

func (s *InMemoryStore) AddCoverageByCode(_ context.Context, row *CoverageByCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *row
	s.coverageByCode[row.PatientID] = append(s.coverageByCode[row.PatientID], &clone)
	return nil
}

func (s *InMemoryStore) ListCoverageByCode(_ context.Context, patientID domain.PatientID) ([]*CoverageByCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*CoverageByCode
	for _, row := range s.coverageByCode[patientID] {
		clone := *row
		out = append(out, &clone)
	}
	return out, nil
}

func (s *InMemoryStore) AddCoverageDetail(_ context.Context, detail *CoverageDetail) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *detail
	clone.Rows = append([]ProcedureRow{}, detail.Rows...)
	s.coverageDetails[detail.PatientID] = append(s.coverageDetails[detail.PatientID], &clone)
	return nil
}

func (s *InMemoryStore) ListCoverageDetails(_ context.Context, patientID domain.PatientID) ([]*CoverageDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*CoverageDetail
	for _, detail := range s.coverageDetails[patientID] {
		clone := *detail
		clone.Rows = append([]ProcedureRow{}, detail.Rows...)
		out = append(out, &clone)
	}
	return out, nil
}

func (s *InMemoryStore) AddCallHistory(_ context.Context, row *CallHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *row
	s.callHistory[row.PatientID] = append(s.callHistory[row.PatientID], &clone)
	return nil
}

func (s *InMemoryStore) AddTreatment(_ context.Context, row *Treatment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *row
	s.treatments[row.PatientID] = append(s.treatments[row.PatientID], &clone)
	return nil
}

func (s *InMemoryStore) AddAppointment(_ context.Context, row *Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *row
	s.appointments[row.PatientID] = append(s.appointments[row.PatientID], &clone)
	return nil
}

func (s *InMemoryStore) AddPostalAddress(_ context.Context, row *PostalAddress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *row
	s.addresses[row.PatientID] = append(s.addresses[row.PatientID], &clone)
	return nil
}

func (s *InMemoryStore) AddContactPoint(_ context.Context, row *ContactPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *row
	s.contactPoints[row.PatientID] = append(s.contactPoints[row.PatientID], &clone)
	return nil
}

func (s *InMemoryStore) CountScopedRows(_ context.Context, patientID domain.PatientID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := len(s.insurances[patientID]) +
		len(s.coverageByCode[patientID]) +
		len(s.callHistory[patientID]) +
		len(s.treatments[patientID]) +
		len(s.appointments[patientID]) +
		len(s.addresses[patientID]) +
		len(s.contactPoints[patientID])
	for _, detail := range s.coverageDetails[patientID] {
		count += 1 + len(detail.Rows)
	}
	if _, ok := s.patients[patientID]; ok {
		count++
	}
	return count, nil
}

func (s *InMemoryStore) DeleteCoverageDetails(_ context.Context, patientID domain.PatientID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.coverageDetails, patientID)
	return nil
}

func (s *InMemoryStore) DeleteScopedCollections(_ context.Context, patientID domain.PatientID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.coverageByCode, patientID)
	delete(s.callHistory, patientID)
	delete(s.treatments, patientID)
	delete(s.appointments, patientID)
	delete(s.insurances, patientID)
	delete(s.addresses, patientID)
	delete(s.contactPoints, patientID)
	return nil
}

func (s *InMemoryStore) DeletePatient(_ context.Context, patientID domain.PatientID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.patients, patientID)
	return nil
}
