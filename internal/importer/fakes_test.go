package importer

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/leadcraft/leadflow/internal/lead"
)

// fakeLeadStore is an in-memory LeadStore for pipeline tests. failOnCall
// makes the nth InsertLeads call fail (1-based), which is how chunk-failure
// scenarios are driven.
type fakeLeadStore struct {
	mu sync.Mutex

	identities []LeadIdentity
	idsErr     error

	findErr   error
	findCalls int

	inserted    []*Record
	insertedIDs []uuid.UUID
	insertCalls int
	failOnCall  int
	insertErr   error

	marks   []markCall
	markErr error
}

type markCall struct {
	id         uuid.UUID
	originalID uuid.UUID
	fields     []string
}

func (s *fakeLeadStore) Identities(context.Context) ([]LeadIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idsErr != nil {
		return nil, s.idsErr
	}
	return append([]LeadIdentity(nil), s.identities...), nil
}

func (s *fakeLeadStore) FindByEmailOrPhone(_ context.Context, email, phone string) (*LeadIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findCalls++
	if s.findErr != nil {
		return nil, s.findErr
	}
	for _, id := range s.identities {
		if email != "" && NormalizeEmail(id.Email) == email {
			match := id
			return &match, nil
		}
		if phone != "" && NormalizePhone(id.Phone) == phone {
			match := id
			return &match, nil
		}
	}
	return nil, nil
}

func (s *fakeLeadStore) InsertLeads(_ context.Context, records []*Record) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertCalls++
	if s.failOnCall > 0 && s.insertCalls == s.failOnCall {
		if s.insertErr != nil {
			return nil, s.insertErr
		}
		return nil, errFakeInsert
	}

	ids := make([]uuid.UUID, len(records))
	for i, rec := range records {
		ids[i] = uuid.New()
		s.inserted = append(s.inserted, rec)
		s.insertedIDs = append(s.insertedIDs, ids[i])
		s.identities = append(s.identities, LeadIdentity{ID: ids[i], Email: rec.Email, Phone: rec.Phone})
	}
	return ids, nil
}

func (s *fakeLeadStore) MarkDuplicate(_ context.Context, id, originalID uuid.UUID, matchingFields []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markErr != nil {
		return s.markErr
	}
	s.marks = append(s.marks, markCall{id: id, originalID: originalID, fields: matchingFields})
	return nil
}

var errFakeInsert = &ImportError{Stage: "persist", Message: "simulated insert failure"}

type fakeFormationStore struct {
	mu         sync.Mutex
	formations []lead.Formation
	listErr    error
	createErr  error
}

func (s *fakeFormationStore) List(context.Context) ([]lead.Formation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]lead.Formation(nil), s.formations...), nil
}

func (s *fakeFormationStore) Create(_ context.Context, f lead.Formation) (lead.Formation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return lead.Formation{}, s.createErr
	}
	f.ID = uuid.New()
	s.formations = append(s.formations, f)
	return f, nil
}

type fakeTeamStore struct {
	members []lead.TeamMember
	err     error
}

func (s *fakeTeamStore) Roster(context.Context) ([]lead.TeamMember, error) {
	if s.err != nil {
		return nil, s.err
	}
	return append([]lead.TeamMember(nil), s.members...), nil
}

func roster(n int) []lead.TeamMember {
	members := make([]lead.TeamMember, n)
	for i := range members {
		members[i] = lead.TeamMember{ID: uuid.New()}
	}
	return members
}
