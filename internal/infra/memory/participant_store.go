package memory

import (
	"context"
	"sort"
	"sync"

	"live-quiz-engine/internal/domain"
)

// ParticipantStore is an in-memory implementation of app.ParticipantStore.
// Each record carries its own mutex, so Update gives the same isolation a
// row-level database transaction would: fn always sees the freshest record
// and two updates for the same participant serialize.
type ParticipantStore struct {
	mu       sync.RWMutex
	sessions map[string]map[string]*slot
}

type slot struct {
	mu sync.Mutex
	p  domain.Participant
}

func NewParticipantStore() *ParticipantStore {
	return &ParticipantStore{sessions: make(map[string]map[string]*slot)}
}

func (s *ParticipantStore) Create(_ context.Context, sessionID string, participant domain.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, ok := s.sessions[sessionID]
	if !ok {
		records = make(map[string]*slot)
		s.sessions[sessionID] = records
	}
	if _, exists := records[participant.ID]; exists {
		// Rejoining refreshes the display name but keeps the record.
		records[participant.ID].mu.Lock()
		records[participant.ID].p.DisplayName = participant.DisplayName
		records[participant.ID].mu.Unlock()
		return nil
	}
	records[participant.ID] = &slot{p: participant.Clone()}
	return nil
}

func (s *ParticipantStore) Get(_ context.Context, sessionID, participantID string) (domain.Participant, error) {
	sl, err := s.slot(sessionID, participantID)
	if err != nil {
		return domain.Participant{}, err
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.p.Clone(), nil
}

func (s *ParticipantStore) List(_ context.Context, sessionID string) ([]domain.Participant, error) {
	s.mu.RLock()
	records := s.sessions[sessionID]
	slots := make([]*slot, 0, len(records))
	for _, sl := range records {
		slots = append(slots, sl)
	}
	s.mu.RUnlock()

	participants := make([]domain.Participant, 0, len(slots))
	for _, sl := range slots {
		sl.mu.Lock()
		participants = append(participants, sl.p.Clone())
		sl.mu.Unlock()
	}
	sort.Slice(participants, func(i, j int) bool {
		return participants[i].ID < participants[j].ID
	})
	return participants, nil
}

func (s *ParticipantStore) Update(_ context.Context, sessionID, participantID string, fn func(*domain.Participant) error) (domain.Participant, error) {
	sl, err := s.slot(sessionID, participantID)
	if err != nil {
		return domain.Participant{}, err
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()
	// fn works on a copy; the stored record only changes on success.
	updated := sl.p.Clone()
	if err := fn(&updated); err != nil {
		return domain.Participant{}, err
	}
	sl.p = updated
	return updated.Clone(), nil
}

func (s *ParticipantStore) SetStreaks(_ context.Context, sessionID string, streaks map[string]int) error {
	s.mu.RLock()
	records := s.sessions[sessionID]
	s.mu.RUnlock()
	for id, streak := range streaks {
		sl, ok := records[id]
		if !ok {
			continue
		}
		sl.mu.Lock()
		sl.p.Streak = streak
		sl.mu.Unlock()
	}
	return nil
}

func (s *ParticipantStore) slot(sessionID, participantID string) (*slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records, ok := s.sessions[sessionID]
	if !ok {
		return nil, domain.ErrParticipantNotFound
	}
	sl, ok := records[participantID]
	if !ok {
		return nil, domain.ErrParticipantNotFound
	}
	return sl, nil
}
