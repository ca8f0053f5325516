package domain

import "time"

// LeaderboardEntry is one ranked row of the visible leaderboard.
type LeaderboardEntry struct {
	ParticipantID string `json:"participantId"`
	DisplayName   string `json:"displayName"`
	Score         int    `json:"score"`
	Rank          int    `json:"rank"`
	Streak        int    `json:"streak"`
}

// LeaderboardSnapshot is the authoritative ranked view produced by one full
// aggregation pass at a question boundary. It is always replaced whole,
// never patched.
type LeaderboardSnapshot struct {
	SessionID         string             `json:"sessionId"`
	QuestionIndex     int                `json:"questionIndex"`
	ComputedAt        time.Time          `json:"computedAt"`
	Entries           []LeaderboardEntry `json:"entries"`
	TotalParticipants int                `json:"totalParticipants"`
	TotalAnswered     int                `json:"totalAnswered"`
	// Distribution counts submissions per option index for the question
	// the snapshot closes; empty for slider/free-text questions.
	Distribution []int          `json:"distribution,omitempty"`
	Ranks        map[string]int `json:"ranks"`
	Streaks      map[string]int `json:"streaks"`
}
