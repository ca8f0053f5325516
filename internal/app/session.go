package app

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"live-quiz-engine/internal/domain"
)

// SessionService owns the host-driven lifecycle: create, join, start,
// advance, end, cancel. Advancing past a question is the trigger for the
// authoritative leaderboard recomputation.
type SessionService struct {
	sessions     SessionStore
	participants ParticipantStore
	keys         AnswerKeyStore
	leaderboard  *LeaderboardService
	submissions  *SubmissionService
	now          func() time.Time

	mu          sync.Mutex
	subscribers map[string]map[chan domain.LeaderboardSnapshot]struct{}
}

func NewSessionService(
	sessions SessionStore,
	participants ParticipantStore,
	keys AnswerKeyStore,
	leaderboard *LeaderboardService,
	submissions *SubmissionService,
) *SessionService {
	return &SessionService{
		sessions:     sessions,
		participants: participants,
		keys:         keys,
		leaderboard:  leaderboard,
		submissions:  submissions,
		now:          time.Now,
		subscribers:  make(map[string]map[chan domain.LeaderboardSnapshot]struct{}),
	}
}

// Create mints a session in the lobby state and writes its answer key.
// The key is write-once: it is the session's fixed correctness contract.
func (s *SessionService) Create(ctx context.Context, hostID string, entries []domain.AnswerKeyEntry) (domain.Session, error) {
	if hostID == "" {
		return domain.Session{}, domain.Invalidf("host id is required")
	}
	if len(entries) == 0 {
		return domain.Session{}, domain.Invalidf("at least one question is required")
	}
	for i, entry := range entries {
		if entry.QuestionIndex != i {
			return domain.Session{}, domain.Invalidf("question %d has index %d", i, entry.QuestionIndex)
		}
		if !entry.Type.Valid() {
			return domain.Session{}, domain.Invalidf("question %d has unknown type %q", i, entry.Type)
		}
		if entry.TimeLimit <= 0 {
			return domain.Session{}, domain.Invalidf("question %d needs a positive time limit", i)
		}
	}

	session := domain.Session{
		ID:            uuid.NewString(),
		HostID:        hostID,
		State:         domain.StateLobby,
		QuestionCount: len(entries),
		CreatedAt:     s.now(),
	}
	if err := s.keys.Save(ctx, session.ID, entries); err != nil {
		return domain.Session{}, err
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return domain.Session{}, err
	}
	return session, nil
}

// Get returns the session document.
func (s *SessionService) Get(ctx context.Context, sessionID string) (domain.Session, error) {
	return s.sessions.Get(ctx, sessionID)
}

// Join registers a participant while the session is still in the lobby.
func (s *SessionService) Join(ctx context.Context, sessionID, participantID, displayName string) error {
	if participantID == "" || displayName == "" {
		return domain.Invalidf("participant id and display name are required")
	}
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.State != domain.StateLobby && session.State != domain.StatePreparing {
		return domain.ErrSessionNotAnswerable
	}
	return s.participants.Create(ctx, sessionID, domain.Participant{
		ID:          participantID,
		DisplayName: displayName,
		JoinedAt:    s.now(),
	})
}

// Start moves the session to its first question.
func (s *SessionService) Start(ctx context.Context, sessionID, callerID string) (domain.Session, error) {
	return s.transition(ctx, sessionID, callerID, func(session *domain.Session) error {
		if !session.State.CanTransition(domain.StateQuestion) {
			return domain.ErrInvalidTransition
		}
		session.State = domain.StateQuestion
		session.CurrentQuestionIndex = 0
		session.QuestionStartedAt = s.now()
		return nil
	})
}

// Advance is the host's pacing control. From a question it closes the
// question and publishes the leaderboard; from the leaderboard it either
// opens the next question or, after the last one, moves to results.
func (s *SessionService) Advance(ctx context.Context, sessionID, callerID string) (domain.Session, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return domain.Session{}, err
	}
	if session.HostID != callerID {
		return domain.Session{}, domain.ErrNotHost
	}

	switch session.State {
	case domain.StateQuestion:
		closed, err := s.transition(ctx, sessionID, callerID, func(session *domain.Session) error {
			if !session.State.CanTransition(domain.StateLeaderboard) {
				return domain.ErrInvalidTransition
			}
			session.State = domain.StateLeaderboard
			return nil
		})
		if err != nil {
			return domain.Session{}, err
		}
		// Submissions for the closed question have stopped; record
		// timeouts for everyone who never submitted, then one full
		// aggregation pass produces the authoritative snapshot.
		s.sweepUnanswered(ctx, sessionID, closed.CurrentQuestionIndex)
		snapshot, err := s.leaderboard.ComputeQuestionResults(ctx, sessionID, closed.CurrentQuestionIndex)
		if err != nil {
			return domain.Session{}, err
		}
		s.broadcast(sessionID, snapshot)
		return closed, nil

	case domain.StateLeaderboard:
		// If the publish failed on the closing advance, the session is
		// already here with no snapshot for the closed question. The
		// aggregation pass is idempotent, so rerun it before moving on.
		if err := s.ensurePublished(ctx, sessionID, session.CurrentQuestionIndex); err != nil {
			return domain.Session{}, err
		}
		return s.transition(ctx, sessionID, callerID, func(session *domain.Session) error {
			if session.CurrentQuestionIndex+1 >= session.QuestionCount {
				session.State = domain.StateResults
				return nil
			}
			session.State = domain.StateQuestion
			session.CurrentQuestionIndex++
			session.QuestionStartedAt = s.now()
			return nil
		})

	default:
		return domain.Session{}, domain.ErrInvalidTransition
	}
}

// ensurePublished republishes the snapshot closing questionIndex when the
// store has none for it, so a failed publish never strands a question.
func (s *SessionService) ensurePublished(ctx context.Context, sessionID string, questionIndex int) error {
	latest, ok, err := s.leaderboard.Latest(ctx, sessionID)
	if err != nil {
		return err
	}
	if ok && latest.QuestionIndex == questionIndex {
		return nil
	}
	snapshot, err := s.leaderboard.ComputeQuestionResults(ctx, sessionID, questionIndex)
	if err != nil {
		return err
	}
	s.broadcast(sessionID, snapshot)
	return nil
}

// sweepUnanswered writes the synthetic no-answer record for every
// participant who let the closed question lapse. Best-effort: downstream
// aggregation already treats a missing record as a timeout, so a failed
// write only loses the explicit record, never the semantics. Losing the
// race against a late submission is fine too; whichever committed first
// stands.
func (s *SessionService) sweepUnanswered(ctx context.Context, sessionID string, questionIndex int) {
	if s.submissions == nil {
		return
	}
	participants, err := s.participants.List(ctx, sessionID)
	if err != nil {
		log.Printf("timeout sweep list failed for session %s: %v", sessionID, err)
		return
	}
	for _, p := range participants {
		if p.Answered(questionIndex) {
			continue
		}
		if err := s.submissions.RecordTimeout(ctx, sessionID, p.ID, questionIndex); err != nil && !IsDuplicate(err) {
			log.Printf("timeout sweep failed for participant %s in session %s: %v", p.ID, sessionID, err)
		}
	}
}

// End closes a session that has shown its results.
func (s *SessionService) End(ctx context.Context, sessionID, callerID string) (domain.Session, error) {
	return s.transition(ctx, sessionID, callerID, func(session *domain.Session) error {
		if !session.State.CanTransition(domain.StateEnded) {
			return domain.ErrInvalidTransition
		}
		session.State = domain.StateEnded
		return nil
	})
}

// Cancel aborts a session from any non-terminal state.
func (s *SessionService) Cancel(ctx context.Context, sessionID, callerID string) (domain.Session, error) {
	return s.transition(ctx, sessionID, callerID, func(session *domain.Session) error {
		if !session.State.CanTransition(domain.StateCancelled) {
			return domain.ErrInvalidTransition
		}
		session.State = domain.StateCancelled
		return nil
	})
}

func (s *SessionService) transition(ctx context.Context, sessionID, callerID string, fn func(*domain.Session) error) (domain.Session, error) {
	return s.sessions.Update(ctx, sessionID, func(session *domain.Session) error {
		if session.HostID != callerID {
			return domain.ErrNotHost
		}
		return fn(session)
	})
}

// Subscribe returns a channel receiving each published leaderboard
// snapshot. The caller must invoke cancel to avoid leaks.
func (s *SessionService) Subscribe(sessionID string) (<-chan domain.LeaderboardSnapshot, func()) {
	ch := make(chan domain.LeaderboardSnapshot, 8)

	s.mu.Lock()
	subs, ok := s.subscribers[sessionID]
	if !ok {
		subs = make(map[chan domain.LeaderboardSnapshot]struct{})
		s.subscribers[sessionID] = subs
	}
	subs[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if subs, ok := s.subscribers[sessionID]; ok {
			if _, present := subs[ch]; present {
				delete(subs, ch)
				close(ch)
			}
			if len(subs) == 0 {
				delete(s.subscribers, sessionID)
			}
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *SessionService) broadcast(sessionID string, snapshot domain.LeaderboardSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subscribers[sessionID] {
		select {
		case ch <- snapshot:
		default:
			// Drop the stale snapshot so a slow client never blocks the
			// host's advance.
			select {
			case <-ch:
			default:
			}
			ch <- snapshot
		}
	}
}
