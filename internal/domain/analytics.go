package domain

import "time"

// TextCount is one grouped free-text answer and its frequency.
type TextCount struct {
	Text  string `json:"text"`
	Count int    `json:"count"`
}

// QuestionStats is the post-session rollup for one question.
type QuestionStats struct {
	QuestionIndex int          `json:"questionIndex"`
	Type          QuestionType `json:"type"`
	Answered      int          `json:"answered"`
	TimedOut      int          `json:"timedOut"`
	AnswerRate    float64      `json:"answerRate"`
	TimeoutRate   float64      `json:"timeoutRate"`
	// CorrectRate is only meaningful for scored question types.
	CorrectRate   float64     `json:"correctRate,omitempty"`
	OptionCounts  []int       `json:"optionCounts,omitempty"`
	SliderValues  []float64   `json:"sliderValues,omitempty"`
	TextCounts    []TextCount `json:"textCounts,omitempty"`
	AveragePoints float64     `json:"averagePoints"`
}

// FinalStanding is one row of the full post-session leaderboard.
type FinalStanding struct {
	ParticipantID string  `json:"participantId"`
	DisplayName   string  `json:"displayName"`
	Rank          int     `json:"rank"`
	Score         int     `json:"score"`
	Correct       int     `json:"correct"`
	Answered      int     `json:"answered"`
	TimedOut      int     `json:"timedOut"`
	Accuracy      float64 `json:"accuracy"`
	LongestStreak int     `json:"longestStreak"`
}

// PositionHistory tracks a participant's rank after each question, kept for
// anyone who was ever ranked in the visible top 20.
type PositionHistory struct {
	ParticipantID string `json:"participantId"`
	DisplayName   string `json:"displayName"`
	Ranks         []int  `json:"ranks"`
}

// SessionAnalytics is the one-shot rollup written after a session ends.
type SessionAnalytics struct {
	ID          string            `json:"id"`
	SessionID   string            `json:"sessionId"`
	GeneratedAt time.Time         `json:"generatedAt"`
	Questions   []QuestionStats   `json:"questions"`
	Standings   []FinalStanding   `json:"standings"`
	History     []PositionHistory `json:"history,omitempty"`
}

// ConsensusLevel buckets how much raters agreed on a metric.
type ConsensusLevel string

const (
	ConsensusHigh   ConsensusLevel = "high"
	ConsensusMedium ConsensusLevel = "medium"
	ConsensusLow    ConsensusLevel = "low"
)

// RatingMetric describes one axis of the rating activity variant.
type RatingMetric struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Min           float64 `json:"min"`
	Max           float64 `json:"max"`
	Weight        float64 `json:"weight"`
	LowerIsBetter bool    `json:"lowerIsBetter,omitempty"`
}

// Width returns the metric's scale width.
func (m RatingMetric) Width() float64 { return m.Max - m.Min }

// RatingItem is one thing being rated.
type RatingItem struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// RatingResponse is one participant's rating of one item on one metric.
type RatingResponse struct {
	ParticipantID string  `json:"participantId"`
	ItemID        string  `json:"itemId"`
	MetricID      string  `json:"metricId"`
	Value         float64 `json:"value"`
}

// MetricStats is the per-item, per-metric statistical rollup.
type MetricStats struct {
	Average           float64 `json:"average"`
	NormalizedAverage float64 `json:"normalizedAverage"`
	Median            float64 `json:"median"`
	StdDev            float64 `json:"stdDev"`
	// Distribution counts responses per integer step of the scale,
	// index 0 being the metric minimum.
	Distribution  []int          `json:"distribution,omitempty"`
	ResponseCount int            `json:"responseCount"`
	Consensus     ConsensusLevel `json:"consensus"`
}

// RankingItemResult is the final ranked outcome for one rated item.
type RankingItemResult struct {
	ItemID       string                 `json:"itemId"`
	Text         string                 `json:"text"`
	OverallScore float64                `json:"overallScore"`
	Rank         int                    `json:"rank"`
	Metrics      map[string]MetricStats `json:"metrics"`
	Consensus    ConsensusLevel         `json:"consensus"`
}
