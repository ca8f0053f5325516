package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"live-quiz-engine/internal/app"
	"live-quiz-engine/internal/domain"
)

func seedAnswer(t *testing.T, env *testEnv, participantID string, questionIndex, points int, correct bool, at time.Time, answer domain.Submission) {
	t.Helper()
	_, err := env.participants.Update(context.Background(), "session-1", participantID, func(p *domain.Participant) error {
		if p.Answers == nil {
			p.Answers = make(map[int]domain.AnswerRecord)
		}
		p.Answers[questionIndex] = domain.AnswerRecord{
			QuestionIndex: questionIndex,
			Type:          domain.SingleChoice,
			Answer:        answer,
			SubmittedAt:   at,
			Points:        points,
			Correct:       correct,
		}
		p.Score += points
		p.LastScoredAt = at
		return nil
	})
	if err != nil {
		t.Fatalf("seed answer for %s: %v", participantID, err)
	}
}

func TestComputeQuestionResultsRanksAndDistribution(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedSession(t, singleChoiceKey(), "p1", "p2", "p3", "p4")
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 5, 0, time.UTC)

	seedAnswer(t, env, "p1", 0, 800, true, base, domain.ChoiceAnswer{Index: 2})
	seedAnswer(t, env, "p2", 0, 800, true, base.Add(time.Second), domain.ChoiceAnswer{Index: 2})
	seedAnswer(t, env, "p3", 0, 0, false, base, domain.ChoiceAnswer{Index: 1})
	// p4 never answered.

	snapshot, err := env.leaderboard.ComputeQuestionResults(ctx, "session-1", 0)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	if snapshot.TotalParticipants != 4 || snapshot.TotalAnswered != 3 {
		t.Fatalf("totals: %d participants, %d answered", snapshot.TotalParticipants, snapshot.TotalAnswered)
	}
	// p1 and p2 share 800 points; the earlier submission lists first but both
	// hold the same rank. p3 and p4 share 0 points and rank 2.
	wantRanks := map[string]int{"p1": 1, "p2": 1, "p3": 2, "p4": 2}
	for id, want := range wantRanks {
		if got := snapshot.Ranks[id]; got != want {
			t.Errorf("rank[%s] = %d, want %d", id, got, want)
		}
	}
	if snapshot.Entries[0].ParticipantID != "p1" || snapshot.Entries[1].ParticipantID != "p2" {
		t.Fatalf("tie order must favor the earlier score: %+v", snapshot.Entries[:2])
	}

	wantDistribution := []int{0, 1, 2, 0}
	for i, want := range wantDistribution {
		if snapshot.Distribution[i] != want {
			t.Fatalf("distribution = %v, want %v", snapshot.Distribution, wantDistribution)
		}
	}
	if !snapshot.ComputedAt.Equal(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("ComputedAt must derive from the question anchor, got %v", snapshot.ComputedAt)
	}
}

func TestComputeQuestionResultsIsIdempotent(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedSession(t, singleChoiceKey(), "p1", "p2", "p3")
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 3, 0, time.UTC)

	seedAnswer(t, env, "p1", 0, 900, true, base, domain.ChoiceAnswer{Index: 2})
	seedAnswer(t, env, "p2", 0, 0, false, base.Add(time.Second), domain.ChoiceAnswer{Index: 0})

	first, err := env.leaderboard.ComputeQuestionResults(ctx, "session-1", 0)
	if err != nil {
		t.Fatalf("first compute: %v", err)
	}
	second, err := env.leaderboard.ComputeQuestionResults(ctx, "session-1", 0)
	if err != nil {
		t.Fatalf("second compute: %v", err)
	}

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if !bytes.Equal(a, b) {
		t.Fatalf("repeated aggregation diverged:\n%s\n%s", a, b)
	}

	// The streak write-back must not have disturbed the scores either.
	p1, _ := env.participants.Get(ctx, "session-1", "p1")
	if p1.Score != 900 || p1.Streak != 1 {
		t.Fatalf("p1 after recompute: score=%d streak=%d", p1.Score, p1.Streak)
	}
}

func TestStreaksRecomputedFromRecords(t *testing.T) {
	env := newTestEnv(t, nil)
	entries := make([]domain.AnswerKeyEntry, 4)
	for i := range entries {
		entries[i] = domain.AnswerKeyEntry{
			QuestionIndex: i,
			Type:          domain.SingleChoice,
			TimeLimit:     20,
			OptionCount:   4,
			CorrectIndex:  0,
		}
	}
	entries[2].Type = domain.PollSingle
	entries[2].CorrectIndex = 0
	env.seedSession(t, entries, "p1")
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// correct, correct, poll (no effect), wrong.
	seedAnswer(t, env, "p1", 0, 500, true, base, domain.ChoiceAnswer{Index: 0})
	seedAnswer(t, env, "p1", 1, 500, true, base.Add(time.Second), domain.ChoiceAnswer{Index: 0})
	_, err := env.participants.Update(ctx, "session-1", "p1", func(p *domain.Participant) error {
		p.Answers[2] = domain.AnswerRecord{
			QuestionIndex: 2,
			Type:          domain.PollSingle,
			Answer:        domain.ChoiceAnswer{Index: 1},
			SubmittedAt:   base.Add(2 * time.Second),
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed poll answer: %v", err)
	}

	snapshot, err := env.leaderboard.ComputeQuestionResults(ctx, "session-1", 2)
	if err != nil {
		t.Fatalf("compute through poll: %v", err)
	}
	if snapshot.Streaks["p1"] != 2 {
		t.Fatalf("poll must not break the streak, got %d", snapshot.Streaks["p1"])
	}

	seedAnswer(t, env, "p1", 3, 0, false, base.Add(3*time.Second), domain.ChoiceAnswer{Index: 1})
	snapshot, err = env.leaderboard.ComputeQuestionResults(ctx, "session-1", 3)
	if err != nil {
		t.Fatalf("compute after wrong answer: %v", err)
	}
	if snapshot.Streaks["p1"] != 0 {
		t.Fatalf("wrong answer must reset the streak, got %d", snapshot.Streaks["p1"])
	}
}

func TestUnansweredQuestionResetsStreak(t *testing.T) {
	env := newTestEnv(t, nil)
	entries := []domain.AnswerKeyEntry{
		{QuestionIndex: 0, Type: domain.SingleChoice, TimeLimit: 20, OptionCount: 4, CorrectIndex: 0},
		{QuestionIndex: 1, Type: domain.SingleChoice, TimeLimit: 20, OptionCount: 4, CorrectIndex: 0},
	}
	env.seedSession(t, entries, "p1")
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	seedAnswer(t, env, "p1", 0, 500, true, base, domain.ChoiceAnswer{Index: 0})
	// Question 1 has no record at all.

	snapshot, err := env.leaderboard.ComputeQuestionResults(ctx, "session-1", 1)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if snapshot.Streaks["p1"] != 0 {
		t.Fatalf("missing record must reset the streak, got %d", snapshot.Streaks["p1"])
	}
}

func TestLeaderboardTruncatesToVisibleSize(t *testing.T) {
	env := newTestEnv(t, nil)
	ids := make([]string, 0, 25)
	for i := 0; i < 25; i++ {
		ids = append(ids, fmt.Sprintf("p%02d", i))
	}
	env.seedSession(t, singleChoiceKey(), ids...)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range ids {
		seedAnswer(t, env, id, 0, 1000-i*10, true, base.Add(time.Duration(i)*time.Second), domain.ChoiceAnswer{Index: 2})
	}

	snapshot, err := env.leaderboard.ComputeQuestionResults(ctx, "session-1", 0)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if len(snapshot.Entries) != app.VisibleLeaderboardSize {
		t.Fatalf("visible entries = %d, want %d", len(snapshot.Entries), app.VisibleLeaderboardSize)
	}
	// Ranks still cover everyone, including those below the cut.
	if len(snapshot.Ranks) != 25 {
		t.Fatalf("ranks must cover all participants, got %d", len(snapshot.Ranks))
	}
	if snapshot.Ranks["p24"] != 25 {
		t.Fatalf("last participant rank = %d, want 25", snapshot.Ranks["p24"])
	}
}

func TestLatestReflectsPublishedSnapshot(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedSession(t, singleChoiceKey(), "p1")
	ctx := context.Background()

	if _, ok, err := env.leaderboard.Latest(ctx, "session-1"); err != nil || ok {
		t.Fatalf("expected no snapshot yet, ok=%v err=%v", ok, err)
	}

	want, err := env.leaderboard.ComputeQuestionResults(ctx, "session-1", 0)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	got, ok, err := env.leaderboard.Latest(ctx, "session-1")
	if err != nil || !ok {
		t.Fatalf("latest: ok=%v err=%v", ok, err)
	}
	if got.QuestionIndex != want.QuestionIndex || got.TotalParticipants != want.TotalParticipants {
		t.Fatalf("latest snapshot mismatch: got %+v", got)
	}
}
