package app

import (
	"context"

	"live-quiz-engine/internal/domain"
)

// SessionStore keeps live session documents. Mutations go through Update so
// implementations can serialize host-driven transitions.
type SessionStore interface {
	Create(ctx context.Context, session domain.Session) error
	Get(ctx context.Context, id string) (domain.Session, error)
	Update(ctx context.Context, id string, fn func(*domain.Session) error) (domain.Session, error)
}

// ParticipantStore holds per-participant records. Update runs fn inside a
// transaction scoped to one record: fn sees the freshest state, and its
// changes commit atomically or not at all. This transaction is the only
// code path allowed to append answers or raise the score.
type ParticipantStore interface {
	Create(ctx context.Context, sessionID string, participant domain.Participant) error
	Get(ctx context.Context, sessionID, participantID string) (domain.Participant, error)
	List(ctx context.Context, sessionID string) ([]domain.Participant, error)
	Update(ctx context.Context, sessionID, participantID string, fn func(*domain.Participant) error) (domain.Participant, error)
	// SetStreaks batch-writes the authoritative streaks recomputed by the
	// leaderboard aggregator.
	SetStreaks(ctx context.Context, sessionID string, streaks map[string]int) error
}

// AnswerKeyStore is the durable, write-once home of a session's answer key.
type AnswerKeyStore interface {
	Save(ctx context.Context, sessionID string, entries []domain.AnswerKeyEntry) error
	Load(ctx context.Context, sessionID string) ([]domain.AnswerKeyEntry, error)
}

// AnswerKeyRepository is the cached read path over an AnswerKeyStore.
type AnswerKeyRepository interface {
	Entry(ctx context.Context, sessionID string, questionIndex int) (domain.AnswerKeyEntry, error)
	Entries(ctx context.Context, sessionID string) ([]domain.AnswerKeyEntry, error)
}

// SnapshotStore publishes leaderboard snapshots. Publish fully replaces any
// previous snapshot for the session.
type SnapshotStore interface {
	Publish(ctx context.Context, snapshot domain.LeaderboardSnapshot) error
	Latest(ctx context.Context, sessionID string) (domain.LeaderboardSnapshot, bool, error)
}

// LiveProgress is the host's in-flight view of a running question. It is
// eventually consistent; the authoritative numbers come from the
// leaderboard aggregation at the question boundary.
type LiveProgress struct {
	Answered     int
	OptionCounts map[int]int
}

// LiveCounterStore tracks best-effort live counters per running question.
type LiveCounterStore interface {
	RecordAnswer(ctx context.Context, sessionID string, questionIndex int, optionIndices []int) error
	Progress(ctx context.Context, sessionID string, questionIndex int) (LiveProgress, error)
}

// AnalyticsStore persists the one-shot post-session rollup.
type AnalyticsStore interface {
	Save(ctx context.Context, analytics domain.SessionAnalytics) error
	Get(ctx context.Context, sessionID string) (domain.SessionAnalytics, bool, error)
}
