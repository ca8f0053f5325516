package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"live-quiz-engine/internal/app"
	"live-quiz-engine/internal/domain"
	"live-quiz-engine/internal/infra/memory"
	"live-quiz-engine/internal/ratelimit"
)

type testEnv struct {
	sessions     *memory.SessionStore
	participants *memory.ParticipantStore
	keyStore     *memory.AnswerKeyStore
	keys         *memory.AnswerKeyRepository
	snapshots    *memory.SnapshotStore
	counters     *memory.LiveCounterStore
	submissions  *app.SubmissionService
	leaderboard  *app.LeaderboardService
}

func newTestEnv(t *testing.T, limiter *ratelimit.Limiter) *testEnv {
	t.Helper()
	env := &testEnv{
		sessions:     memory.NewSessionStore(),
		participants: memory.NewParticipantStore(),
		keyStore:     memory.NewAnswerKeyStore(),
		snapshots:    memory.NewSnapshotStore(),
		counters:     memory.NewLiveCounterStore(),
	}
	env.keys = memory.NewAnswerKeyRepository(env.keyStore, 5*time.Minute)
	env.submissions = app.NewSubmissionService(env.sessions, env.participants, env.keys, env.counters, limiter)
	env.leaderboard = app.NewLeaderboardService(env.sessions, env.participants, env.keys, env.snapshots)
	return env
}

func (env *testEnv) seedSession(t *testing.T, entries []domain.AnswerKeyEntry, participantIDs ...string) domain.Session {
	t.Helper()
	ctx := context.Background()
	session := domain.Session{
		ID:                "session-1",
		HostID:            "host-1",
		State:             domain.StateQuestion,
		QuestionCount:     len(entries),
		QuestionStartedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		CreatedAt:         time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC),
	}
	if err := env.sessions.Create(ctx, session); err != nil {
		t.Fatalf("create session: %v", err)
	}
	if err := env.keyStore.Save(ctx, session.ID, entries); err != nil {
		t.Fatalf("save answer key: %v", err)
	}
	for _, id := range participantIDs {
		err := env.participants.Create(ctx, session.ID, domain.Participant{
			ID:          id,
			DisplayName: "Player " + id,
			JoinedAt:    session.CreatedAt,
		})
		if err != nil {
			t.Fatalf("create participant: %v", err)
		}
	}
	return session
}

func singleChoiceKey() []domain.AnswerKeyEntry {
	return []domain.AnswerKeyEntry{
		{
			QuestionIndex: 0,
			Type:          domain.SingleChoice,
			TimeLimit:     20,
			OptionCount:   4,
			CorrectIndex:  2,
		},
	}
}

func TestSubmitAnswerHappyPath(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedSession(t, singleChoiceKey(), "p1")
	ctx := context.Background()

	res, err := env.submissions.SubmitAnswer(ctx, app.SubmitRequest{
		SessionID:     "session-1",
		ParticipantID: "p1",
		QuestionIndex: 0,
		TimeRemaining: 10,
		Answer:        domain.ChoiceAnswer{Index: 2},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Points != 550 || !res.Correct || res.NewScore != 550 {
		t.Fatalf("expected 550 points, got %+v", res)
	}

	p, err := env.participants.Get(ctx, "session-1", "p1")
	if err != nil {
		t.Fatalf("get participant: %v", err)
	}
	if p.Score != 550 || !p.Answered(0) {
		t.Fatalf("expected committed record, got %+v", p)
	}
}

func TestSubmitAnswerDuplicateRejected(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedSession(t, singleChoiceKey(), "p1")
	ctx := context.Background()

	req := app.SubmitRequest{
		SessionID:     "session-1",
		ParticipantID: "p1",
		QuestionIndex: 0,
		TimeRemaining: 10,
		Answer:        domain.ChoiceAnswer{Index: 2},
	}
	if _, err := env.submissions.SubmitAnswer(ctx, req); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	_, err := env.submissions.SubmitAnswer(ctx, req)
	if !errors.Is(err, domain.ErrAlreadyAnswered) {
		t.Fatalf("expected already-answered, got %v", err)
	}
	if !app.IsDuplicate(err) {
		t.Fatalf("IsDuplicate must recognize the rejection")
	}
}

func TestSubmitAnswerExactlyOneWinnerUnderConcurrency(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedSession(t, singleChoiceKey(), "p1")
	ctx := context.Background()

	const attempts = 32
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	results := make([]app.SubmitResult, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Distinct payloads: alternate correct and wrong options.
			results[i], errs[i] = env.submissions.SubmitAnswer(ctx, app.SubmitRequest{
				SessionID:     "session-1",
				ParticipantID: "p1",
				QuestionIndex: 0,
				TimeRemaining: 10,
				Answer:        domain.ChoiceAnswer{Index: i % 4},
			})
		}(i)
	}
	wg.Wait()

	winners := 0
	winnerPoints := 0
	for i := 0; i < attempts; i++ {
		if errs[i] == nil {
			winners++
			winnerPoints = results[i].Points
			continue
		}
		if !errors.Is(errs[i], domain.ErrAlreadyAnswered) {
			t.Fatalf("loser %d got unexpected error %v", i, errs[i])
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}

	p, err := env.participants.Get(ctx, "session-1", "p1")
	if err != nil {
		t.Fatalf("get participant: %v", err)
	}
	if len(p.Answers) != 1 {
		t.Fatalf("expected exactly one record, got %d", len(p.Answers))
	}
	if p.Score != winnerPoints {
		t.Fatalf("score %d must reflect only the winning submission (%d points)", p.Score, winnerPoints)
	}
}

func TestSubmitAnswerRejectsWrongPhase(t *testing.T) {
	env := newTestEnv(t, nil)
	session := env.seedSession(t, singleChoiceKey(), "p1")
	ctx := context.Background()

	if _, err := env.sessions.Update(ctx, session.ID, func(s *domain.Session) error {
		s.State = domain.StateLeaderboard
		return nil
	}); err != nil {
		t.Fatalf("update session: %v", err)
	}

	_, err := env.submissions.SubmitAnswer(ctx, app.SubmitRequest{
		SessionID:     "session-1",
		ParticipantID: "p1",
		QuestionIndex: 0,
		TimeRemaining: 10,
		Answer:        domain.ChoiceAnswer{Index: 2},
	})
	if !errors.Is(err, domain.ErrSessionNotAnswerable) {
		t.Fatalf("expected not-answerable, got %v", err)
	}
}

func TestSubmitAnswerRejectsStaleQuestionIndex(t *testing.T) {
	env := newTestEnv(t, nil)
	entries := append(singleChoiceKey(), domain.AnswerKeyEntry{
		QuestionIndex: 1,
		Type:          domain.SingleChoice,
		TimeLimit:     20,
		OptionCount:   4,
		CorrectIndex:  0,
	})
	env.seedSession(t, entries, "p1")
	ctx := context.Background()

	if _, err := env.sessions.Update(ctx, "session-1", func(s *domain.Session) error {
		s.CurrentQuestionIndex = 1
		return nil
	}); err != nil {
		t.Fatalf("advance session: %v", err)
	}

	_, err := env.submissions.SubmitAnswer(ctx, app.SubmitRequest{
		SessionID:     "session-1",
		ParticipantID: "p1",
		QuestionIndex: 0,
		TimeRemaining: 10,
		Answer:        domain.ChoiceAnswer{Index: 2},
	})
	if !errors.Is(err, domain.ErrSessionNotAnswerable) {
		t.Fatalf("expected rejection for stale index, got %v", err)
	}
}

func TestSubmitAnswerValidationPrecedesCommit(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedSession(t, singleChoiceKey(), "p1")
	ctx := context.Background()

	_, err := env.submissions.SubmitAnswer(ctx, app.SubmitRequest{
		SessionID:     "session-1",
		ParticipantID: "p1",
		QuestionIndex: 0,
		TimeRemaining: 10,
		Answer:        domain.ChoiceAnswer{Index: 9},
	})
	if domain.KindOf(err) != domain.KindInvalidArgument {
		t.Fatalf("expected invalid-argument, got %v", err)
	}

	// The rejected submission must not have consumed the slot.
	p, _ := env.participants.Get(ctx, "session-1", "p1")
	if p.Answered(0) {
		t.Fatalf("rejected submission must not be recorded")
	}
}

func TestSubmitAnswerRateLimited(t *testing.T) {
	limiter := ratelimit.New(ratelimit.Config{Requests: 1, Window: time.Minute})
	defer limiter.Close()

	env := newTestEnv(t, limiter)
	env.seedSession(t, singleChoiceKey(), "p1")
	ctx := context.Background()

	if _, err := env.submissions.SubmitAnswer(ctx, app.SubmitRequest{
		SessionID:     "session-1",
		ParticipantID: "p1",
		QuestionIndex: 0,
		TimeRemaining: 10,
		Answer:        domain.ChoiceAnswer{Index: 1},
	}); err != nil {
		t.Fatalf("first request must pass the limiter: %v", err)
	}

	_, err := env.submissions.SubmitAnswer(ctx, app.SubmitRequest{
		SessionID:     "session-1",
		ParticipantID: "p1",
		QuestionIndex: 0,
		TimeRemaining: 9,
		Answer:        domain.ChoiceAnswer{Index: 2},
	})
	var e *domain.Error
	if !errors.As(err, &e) || e.Kind != domain.KindResourceExhausted {
		t.Fatalf("expected resource-exhausted, got %v", err)
	}
	if e.RetryAfter <= 0 {
		t.Fatalf("expected retry-after hint, got %v", e.RetryAfter)
	}
}

func TestRecordTimeout(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedSession(t, singleChoiceKey(), "p1")
	ctx := context.Background()

	if err := env.submissions.RecordTimeout(ctx, "session-1", "p1", 0); err != nil {
		t.Fatalf("record timeout: %v", err)
	}

	p, _ := env.participants.Get(ctx, "session-1", "p1")
	record, ok := p.Answers[0]
	if !ok || !record.TimedOut || record.Points != 0 {
		t.Fatalf("expected timeout record, got %+v", record)
	}
	if _, isNoAnswer := record.Answer.(domain.NoAnswer); !isNoAnswer {
		t.Fatalf("timeout must store the no-answer sentinel")
	}

	// A late submission after the timeout committed loses.
	_, err := env.submissions.SubmitAnswer(ctx, app.SubmitRequest{
		SessionID:     "session-1",
		ParticipantID: "p1",
		QuestionIndex: 0,
		TimeRemaining: 0,
		Answer:        domain.ChoiceAnswer{Index: 2},
	})
	if !errors.Is(err, domain.ErrAlreadyAnswered) {
		t.Fatalf("expected already-answered after timeout, got %v", err)
	}
}

func TestLiveCountersAreEventuallyRecorded(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedSession(t, singleChoiceKey(), "p1", "p2")
	ctx := context.Background()

	for i, id := range []string{"p1", "p2"} {
		if _, err := env.submissions.SubmitAnswer(ctx, app.SubmitRequest{
			SessionID:     "session-1",
			ParticipantID: id,
			QuestionIndex: 0,
			TimeRemaining: 10,
			Answer:        domain.ChoiceAnswer{Index: i},
		}); err != nil {
			t.Fatalf("submit %s: %v", id, err)
		}
	}

	// Counter writes happen off the request path; poll briefly.
	deadline := time.Now().Add(2 * time.Second)
	for {
		progress, err := env.submissions.Progress(ctx, "session-1", 0)
		if err != nil {
			t.Fatalf("progress: %v", err)
		}
		if progress.Answered == 2 {
			if progress.OptionCounts[0] != 1 || progress.OptionCounts[1] != 1 {
				t.Fatalf("unexpected option counts %+v", progress.OptionCounts)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("counters never reached 2, last %+v", progress)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSubmitAnswerUnknownSessionAndParticipant(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedSession(t, singleChoiceKey(), "p1")
	ctx := context.Background()

	_, err := env.submissions.SubmitAnswer(ctx, app.SubmitRequest{
		SessionID:     "missing",
		ParticipantID: "p1",
		QuestionIndex: 0,
		TimeRemaining: 10,
		Answer:        domain.ChoiceAnswer{Index: 2},
	})
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session-not-found, got %v", err)
	}

	_, err = env.submissions.SubmitAnswer(ctx, app.SubmitRequest{
		SessionID:     "session-1",
		ParticipantID: "ghost",
		QuestionIndex: 0,
		TimeRemaining: 10,
		Answer:        domain.ChoiceAnswer{Index: 2},
	})
	if !errors.Is(err, domain.ErrParticipantNotFound) {
		t.Fatalf("expected participant-not-found, got %v", err)
	}
}

func TestScoresAreMonotonic(t *testing.T) {
	env := newTestEnv(t, nil)
	entries := []domain.AnswerKeyEntry{
		{QuestionIndex: 0, Type: domain.SingleChoice, TimeLimit: 20, OptionCount: 4, CorrectIndex: 0},
		{QuestionIndex: 1, Type: domain.SingleChoice, TimeLimit: 20, OptionCount: 4, CorrectIndex: 0},
		{QuestionIndex: 2, Type: domain.SingleChoice, TimeLimit: 20, OptionCount: 4, CorrectIndex: 0},
	}
	env.seedSession(t, entries, "p1")
	ctx := context.Background()

	prevScore := 0
	for q := 0; q < 3; q++ {
		if q > 0 {
			if _, err := env.sessions.Update(ctx, "session-1", func(s *domain.Session) error {
				s.CurrentQuestionIndex = q
				return nil
			}); err != nil {
				t.Fatalf("advance: %v", err)
			}
		}
		// Alternate correct and wrong answers.
		res, err := env.submissions.SubmitAnswer(ctx, app.SubmitRequest{
			SessionID:     "session-1",
			ParticipantID: "p1",
			QuestionIndex: q,
			TimeRemaining: 5,
			Answer:        domain.ChoiceAnswer{Index: q % 2},
		})
		if err != nil {
			t.Fatalf("submit q%d: %v", q, err)
		}
		if res.NewScore < prevScore {
			t.Fatalf("score decreased from %d to %d", prevScore, res.NewScore)
		}
		prevScore = res.NewScore
	}
}
