package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"live-quiz-engine/internal/domain"
)

func TestLiveCountersRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewLiveCounterStore(newClient(mr), time.Minute)
	ctx := context.Background()

	if err := store.RecordAnswer(ctx, "s1", 0, []int{1}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := store.RecordAnswer(ctx, "s1", 0, []int{1, 2}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := store.RecordAnswer(ctx, "s1", 0, nil); err != nil {
		t.Fatalf("record free-text: %v", err)
	}

	progress, err := store.Progress(ctx, "s1", 0)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if progress.Answered != 3 {
		t.Fatalf("expected 3 answered, got %d", progress.Answered)
	}
	if progress.OptionCounts[1] != 2 || progress.OptionCounts[2] != 1 {
		t.Fatalf("unexpected option counts %+v", progress.OptionCounts)
	}
}

func TestSnapshotStoreReplacesWholesale(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewSnapshotStore(newClient(mr), time.Minute)
	ctx := context.Background()

	if _, ok, err := store.Latest(ctx, "s1"); err != nil || ok {
		t.Fatalf("expected no snapshot yet, ok=%v err=%v", ok, err)
	}

	first := domain.LeaderboardSnapshot{
		SessionID:     "s1",
		QuestionIndex: 0,
		Entries: []domain.LeaderboardEntry{
			{ParticipantID: "p1", DisplayName: "Alice", Score: 550, Rank: 1},
		},
		TotalParticipants: 1,
		Ranks:             map[string]int{"p1": 1},
		Streaks:           map[string]int{"p1": 1},
	}
	if err := store.Publish(ctx, first); err != nil {
		t.Fatalf("publish: %v", err)
	}

	second := first
	second.QuestionIndex = 1
	second.Entries = []domain.LeaderboardEntry{
		{ParticipantID: "p1", DisplayName: "Alice", Score: 1550, Rank: 1},
	}
	if err := store.Publish(ctx, second); err != nil {
		t.Fatalf("publish: %v", err)
	}

	got, ok, err := store.Latest(ctx, "s1")
	if err != nil || !ok {
		t.Fatalf("latest: ok=%v err=%v", ok, err)
	}
	if got.QuestionIndex != 1 || got.Entries[0].Score != 1550 {
		t.Fatalf("expected replaced snapshot, got %+v", got)
	}
}
