package app

import (
	"context"
	"sort"

	"live-quiz-engine/internal/domain"
)

// VisibleLeaderboardSize is how many ranked entries the snapshot exposes.
const VisibleLeaderboardSize = 20

// LeaderboardService recomputes the authoritative ranked snapshot once per
// question boundary. It never merges incrementally: every snapshot is the
// product of one full pass over all participants, so concurrent submissions
// can never leave it torn.
type LeaderboardService struct {
	sessions     SessionStore
	participants ParticipantStore
	keys         AnswerKeyRepository
	snapshots    SnapshotStore
}

func NewLeaderboardService(
	sessions SessionStore,
	participants ParticipantStore,
	keys AnswerKeyRepository,
	snapshots SnapshotStore,
) *LeaderboardService {
	return &LeaderboardService{
		sessions:     sessions,
		participants: participants,
		keys:         keys,
		snapshots:    snapshots,
	}
}

// ComputeQuestionResults builds and publishes the snapshot closing
// questionIndex, and batch-writes the recomputed streaks back onto the
// participant records. Repeating it against unchanged participants yields
// an identical snapshot: every field, including the timestamp, derives from
// stored state.
func (s *LeaderboardService) ComputeQuestionResults(ctx context.Context, sessionID string, questionIndex int) (domain.LeaderboardSnapshot, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return domain.LeaderboardSnapshot{}, err
	}
	entry, err := s.keys.Entry(ctx, sessionID, questionIndex)
	if err != nil {
		return domain.LeaderboardSnapshot{}, err
	}
	participants, err := s.participants.List(ctx, sessionID)
	if err != nil {
		return domain.LeaderboardSnapshot{}, err
	}

	snapshot := buildSnapshot(session, entry, participants, questionIndex)

	if err := s.participants.SetStreaks(ctx, sessionID, snapshot.Streaks); err != nil {
		return domain.LeaderboardSnapshot{}, err
	}
	if err := s.snapshots.Publish(ctx, snapshot); err != nil {
		return domain.LeaderboardSnapshot{}, err
	}
	return snapshot, nil
}

// Latest returns the most recently published snapshot for the session.
func (s *LeaderboardService) Latest(ctx context.Context, sessionID string) (domain.LeaderboardSnapshot, bool, error) {
	return s.snapshots.Latest(ctx, sessionID)
}

// buildSnapshot is the single aggregation pass: scores, the finished
// question's answer distribution, and recomputed streaks.
func buildSnapshot(session domain.Session, entry domain.AnswerKeyEntry, participants []domain.Participant, questionIndex int) domain.LeaderboardSnapshot {
	var distribution []int
	if entry.OptionCount > 0 {
		distribution = make([]int, entry.OptionCount)
	}

	totalAnswered := 0
	streaks := make(map[string]int, len(participants))
	for _, p := range participants {
		// Streaks are derived from the stored records each time, never
		// incremented in place, so recomputation cannot double-count.
		streaks[p.ID] = streakThrough(p, questionIndex)

		record, ok := p.Answers[questionIndex]
		if !ok || record.TimedOut {
			continue
		}
		totalAnswered++
		tallyDistribution(distribution, record.Answer)
	}

	ordered := append([]domain.Participant(nil), participants...)
	sort.Slice(ordered, func(i, j int) bool {
		return lessRanked(ordered[i], ordered[j])
	})

	ranks := make(map[string]int, len(ordered))
	rank := 0
	prevScore := -1
	for i, p := range ordered {
		if i == 0 || p.Score != prevScore {
			rank++
			prevScore = p.Score
		}
		ranks[p.ID] = rank
	}

	top := ordered
	if len(top) > VisibleLeaderboardSize {
		top = top[:VisibleLeaderboardSize]
	}
	entries := make([]domain.LeaderboardEntry, 0, len(top))
	for _, p := range top {
		entries = append(entries, domain.LeaderboardEntry{
			ParticipantID: p.ID,
			DisplayName:   p.DisplayName,
			Score:         p.Score,
			Rank:          ranks[p.ID],
			Streak:        streaks[p.ID],
		})
	}

	return domain.LeaderboardSnapshot{
		SessionID:         session.ID,
		QuestionIndex:     questionIndex,
		ComputedAt:        session.QuestionStartedAt,
		Entries:           entries,
		TotalParticipants: len(participants),
		TotalAnswered:     totalAnswered,
		Distribution:      distribution,
		Ranks:             ranks,
		Streaks:           streaks,
	}
}

// lessRanked orders participants score-descending with a deterministic
// tie-break: whoever reached their score first ranks higher, then the
// participant id settles exact ties.
func lessRanked(a, b domain.Participant) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if !a.LastScoredAt.Equal(b.LastScoredAt) {
		return a.LastScoredAt.Before(b.LastScoredAt)
	}
	return a.ID < b.ID
}

// streakThrough recomputes the consecutive-correct streak as of
// questionIndex from the participant's records: a timeout or a wrong
// answer resets it, polls leave it untouched.
func streakThrough(p domain.Participant, questionIndex int) int {
	streak := 0
	for q := 0; q <= questionIndex; q++ {
		record, ok := p.Answers[q]
		switch {
		case !ok || record.TimedOut:
			streak = 0
		case record.Type.IsPoll():
			// unchanged
		case record.Correct:
			streak++
		default:
			streak = 0
		}
	}
	return streak
}

func tallyDistribution(distribution []int, sub domain.Submission) {
	if distribution == nil {
		return
	}
	switch answer := sub.(type) {
	case domain.ChoiceAnswer:
		if answer.Index >= 0 && answer.Index < len(distribution) {
			distribution[answer.Index]++
		}
	case domain.MultiChoiceAnswer:
		for _, idx := range answer.Indices {
			if idx >= 0 && idx < len(distribution) {
				distribution[idx]++
			}
		}
	}
}
