package memory

import (
	"context"
	"sync"

	"live-quiz-engine/internal/app"
	"live-quiz-engine/internal/domain"
)

// SnapshotStore keeps the latest leaderboard snapshot per session.
type SnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string]domain.LeaderboardSnapshot
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{snapshots: make(map[string]domain.LeaderboardSnapshot)}
}

func (s *SnapshotStore) Publish(_ context.Context, snapshot domain.LeaderboardSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snapshot.SessionID] = snapshot
	return nil
}

func (s *SnapshotStore) Latest(_ context.Context, sessionID string) (domain.LeaderboardSnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot, ok := s.snapshots[sessionID]
	return snapshot, ok, nil
}

// LiveCounterStore tracks best-effort per-question counters.
type LiveCounterStore struct {
	mu       sync.Mutex
	progress map[counterKey]*app.LiveProgress
}

type counterKey struct {
	sessionID     string
	questionIndex int
}

func NewLiveCounterStore() *LiveCounterStore {
	return &LiveCounterStore{progress: make(map[counterKey]*app.LiveProgress)}
}

func (s *LiveCounterStore) RecordAnswer(_ context.Context, sessionID string, questionIndex int, optionIndices []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := counterKey{sessionID: sessionID, questionIndex: questionIndex}
	p, ok := s.progress[key]
	if !ok {
		p = &app.LiveProgress{OptionCounts: make(map[int]int)}
		s.progress[key] = p
	}
	p.Answered++
	for _, idx := range optionIndices {
		p.OptionCounts[idx]++
	}
	return nil
}

func (s *LiveCounterStore) Progress(_ context.Context, sessionID string, questionIndex int) (app.LiveProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.progress[counterKey{sessionID: sessionID, questionIndex: questionIndex}]
	if !ok {
		return app.LiveProgress{OptionCounts: map[int]int{}}, nil
	}
	counts := make(map[int]int, len(p.OptionCounts))
	for k, v := range p.OptionCounts {
		counts[k] = v
	}
	return app.LiveProgress{Answered: p.Answered, OptionCounts: counts}, nil
}

// AnalyticsStore keeps the post-session rollup per session.
type AnalyticsStore struct {
	mu      sync.RWMutex
	rollups map[string]domain.SessionAnalytics
}

func NewAnalyticsStore() *AnalyticsStore {
	return &AnalyticsStore{rollups: make(map[string]domain.SessionAnalytics)}
}

func (s *AnalyticsStore) Save(_ context.Context, analytics domain.SessionAnalytics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollups[analytics.SessionID] = analytics
	return nil
}

func (s *AnalyticsStore) Get(_ context.Context, sessionID string) (domain.SessionAnalytics, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	analytics, ok := s.rollups[sessionID]
	return analytics, ok, nil
}
