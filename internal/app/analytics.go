package app

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"live-quiz-engine/internal/domain"
	"live-quiz-engine/internal/match"
)

// freeTextGroupLimit caps the free-text distribution at the most frequent
// normalized answers.
const freeTextGroupLimit = 20

// Consensus buckets, as fractions of the metric's scale width.
const (
	consensusHighBand   = 0.15
	consensusMediumBand = 0.30
)

// AnalyticsService produces the one-shot post-session rollup. Everything it
// reads is immutable once the session has ended, so unlike submission
// handling there is no concurrency hazard here, only arithmetic.
type AnalyticsService struct {
	sessions     SessionStore
	participants ParticipantStore
	keys         AnswerKeyRepository
	store        AnalyticsStore
	now          func() time.Time
	newID        func() string
}

func NewAnalyticsService(
	sessions SessionStore,
	participants ParticipantStore,
	keys AnswerKeyRepository,
	store AnalyticsStore,
) *AnalyticsService {
	return &AnalyticsService{
		sessions:     sessions,
		participants: participants,
		keys:         keys,
		store:        store,
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

// ComputeSessionAnalytics builds and persists the rollup. Preconditions:
// the session has ended and the caller is its host.
func (s *AnalyticsService) ComputeSessionAnalytics(ctx context.Context, sessionID, callerID string) (domain.SessionAnalytics, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return domain.SessionAnalytics{}, err
	}
	if session.HostID != callerID {
		return domain.SessionAnalytics{}, domain.ErrNotHost
	}
	if session.State != domain.StateEnded {
		return domain.SessionAnalytics{}, domain.ErrSessionNotEnded
	}

	entries, err := s.keys.Entries(ctx, sessionID)
	if err != nil {
		return domain.SessionAnalytics{}, err
	}
	participants, err := s.participants.List(ctx, sessionID)
	if err != nil {
		return domain.SessionAnalytics{}, err
	}

	analytics := domain.SessionAnalytics{
		ID:          s.newID(),
		SessionID:   sessionID,
		GeneratedAt: s.now(),
		Questions:   questionRollups(entries, participants),
		Standings:   finalStandings(entries, participants),
		History:     positionHistories(entries, participants),
	}
	if err := s.store.Save(ctx, analytics); err != nil {
		return domain.SessionAnalytics{}, err
	}
	return analytics, nil
}

func questionRollups(entries []domain.AnswerKeyEntry, participants []domain.Participant) []domain.QuestionStats {
	stats := make([]domain.QuestionStats, 0, len(entries))
	for _, entry := range entries {
		stats = append(stats, questionRollup(entry, participants))
	}
	return stats
}

func questionRollup(entry domain.AnswerKeyEntry, participants []domain.Participant) domain.QuestionStats {
	stat := domain.QuestionStats{
		QuestionIndex: entry.QuestionIndex,
		Type:          entry.Type,
	}
	if entry.OptionCount > 0 {
		stat.OptionCounts = make([]int, entry.OptionCount)
	}

	correct := 0
	totalPoints := 0
	textGroups := make(map[string]int)
	for _, p := range participants {
		record, ok := p.Answers[entry.QuestionIndex]
		if !ok || record.TimedOut {
			// A missing record means the participant never submitted;
			// it counts as a timeout in the rates.
			stat.TimedOut++
			continue
		}
		stat.Answered++
		totalPoints += record.Points
		if record.Correct {
			correct++
		}
		switch answer := record.Answer.(type) {
		case domain.ChoiceAnswer:
			if answer.Index >= 0 && answer.Index < len(stat.OptionCounts) {
				stat.OptionCounts[answer.Index]++
			}
		case domain.MultiChoiceAnswer:
			for _, idx := range answer.Indices {
				if idx >= 0 && idx < len(stat.OptionCounts) {
					stat.OptionCounts[idx]++
				}
			}
		case domain.SliderAnswer:
			stat.SliderValues = append(stat.SliderValues, answer.Value)
		case domain.TextAnswer:
			textGroups[match.Normalize(answer.Text, entry.CaseSensitive)]++
		}
	}

	if total := len(participants); total > 0 {
		stat.AnswerRate = float64(stat.Answered) / float64(total)
		stat.TimeoutRate = float64(stat.TimedOut) / float64(total)
	}
	if stat.Answered > 0 {
		if entry.Type.IsScored() {
			stat.CorrectRate = float64(correct) / float64(stat.Answered)
		}
		stat.AveragePoints = float64(totalPoints) / float64(stat.Answered)
	}
	sort.Float64s(stat.SliderValues)
	stat.TextCounts = topTextCounts(textGroups, freeTextGroupLimit)
	return stat
}

func topTextCounts(groups map[string]int, limit int) []domain.TextCount {
	if len(groups) == 0 {
		return nil
	}
	counts := make([]domain.TextCount, 0, len(groups))
	for text, count := range groups {
		counts = append(counts, domain.TextCount{Text: text, Count: count})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Text < counts[j].Text
	})
	if len(counts) > limit {
		counts = counts[:limit]
	}
	return counts
}

func finalStandings(entries []domain.AnswerKeyEntry, participants []domain.Participant) []domain.FinalStanding {
	ordered := append([]domain.Participant(nil), participants...)
	sort.Slice(ordered, func(i, j int) bool {
		return lessRanked(ordered[i], ordered[j])
	})

	standings := make([]domain.FinalStanding, 0, len(ordered))
	rank := 0
	prevScore := -1
	for i, p := range ordered {
		if i == 0 || p.Score != prevScore {
			rank++
			prevScore = p.Score
		}
		standing := domain.FinalStanding{
			ParticipantID: p.ID,
			DisplayName:   p.DisplayName,
			Rank:          rank,
			Score:         p.Score,
			LongestStreak: longestStreak(p, len(entries)),
		}
		scoredAnswered := 0
		for _, record := range p.Answers {
			if record.TimedOut {
				standing.TimedOut++
				continue
			}
			standing.Answered++
			if record.Type.IsScored() {
				scoredAnswered++
				if record.Correct {
					standing.Correct++
				}
			}
		}
		if scoredAnswered > 0 {
			standing.Accuracy = float64(standing.Correct) / float64(scoredAnswered)
		}
		standings = append(standings, standing)
	}
	return standings
}

func longestStreak(p domain.Participant, questionCount int) int {
	longest, streak := 0, 0
	for q := 0; q < questionCount; q++ {
		record, ok := p.Answers[q]
		switch {
		case !ok || record.TimedOut:
			streak = 0
		case record.Type.IsPoll():
			// unchanged
		case record.Correct:
			streak++
			if streak > longest {
				longest = streak
			}
		default:
			streak = 0
		}
	}
	return longest
}

// positionHistories replays cumulative scores question by question and keeps
// the rank trajectory of everyone who ever appeared in the visible top 20,
// so clients can show climbers and fallers.
func positionHistories(entries []domain.AnswerKeyEntry, participants []domain.Participant) []domain.PositionHistory {
	if len(entries) == 0 || len(participants) == 0 {
		return nil
	}

	type trajectory struct {
		ranks      []int
		everTopped bool
	}
	trajectories := make(map[string]*trajectory, len(participants))
	cumulative := make(map[string]int, len(participants))
	for _, p := range participants {
		trajectories[p.ID] = &trajectory{ranks: make([]int, 0, len(entries))}
		cumulative[p.ID] = 0
	}

	ids := make([]string, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.ID)
	}
	byID := make(map[string]domain.Participant, len(participants))
	for _, p := range participants {
		byID[p.ID] = p
	}

	for q := 0; q < len(entries); q++ {
		for _, p := range participants {
			if record, ok := p.Answers[q]; ok {
				cumulative[p.ID] += record.Points
			}
		}
		sort.Slice(ids, func(i, j int) bool {
			si, sj := cumulative[ids[i]], cumulative[ids[j]]
			if si != sj {
				return si > sj
			}
			return ids[i] < ids[j]
		})
		rank := 0
		prevScore := -1
		for i, id := range ids {
			if i == 0 || cumulative[id] != prevScore {
				rank++
				prevScore = cumulative[id]
			}
			tr := trajectories[id]
			tr.ranks = append(tr.ranks, rank)
			// Dense rank, not sorted position: everyone tied across the
			// cut counts as visible.
			if rank <= VisibleLeaderboardSize {
				tr.everTopped = true
			}
		}
	}

	histories := make([]domain.PositionHistory, 0, len(participants))
	sort.Strings(ids)
	for _, id := range ids {
		tr := trajectories[id]
		if !tr.everTopped {
			continue
		}
		histories = append(histories, domain.PositionHistory{
			ParticipantID: id,
			DisplayName:   byID[id].DisplayName,
			Ranks:         tr.ranks,
		})
	}
	return histories
}

// ComputeRankingResults aggregates the rating activity variant: per item,
// per metric statistics plus a weight-normalized overall score and a
// consensus level. Pure; responses are immutable once the session ends.
func ComputeRankingResults(items []domain.RatingItem, metrics []domain.RatingMetric, responses []domain.RatingResponse) []domain.RankingItemResult {
	values := make(map[string]map[string][]float64, len(items)) // item -> metric -> values
	for _, r := range responses {
		byMetric, ok := values[r.ItemID]
		if !ok {
			byMetric = make(map[string][]float64, len(metrics))
			values[r.ItemID] = byMetric
		}
		byMetric[r.MetricID] = append(byMetric[r.MetricID], r.Value)
	}

	// Min-max normalization needs each metric's average range across items.
	minAvg := make(map[string]float64, len(metrics))
	maxAvg := make(map[string]float64, len(metrics))
	for _, metric := range metrics {
		first := true
		for _, item := range items {
			vals := values[item.ID][metric.ID]
			if len(vals) == 0 {
				continue
			}
			avg := mean(vals)
			if first || avg < minAvg[metric.ID] {
				minAvg[metric.ID] = avg
			}
			if first || avg > maxAvg[metric.ID] {
				maxAvg[metric.ID] = avg
			}
			first = false
		}
	}

	results := make([]domain.RankingItemResult, 0, len(items))
	for _, item := range items {
		result := domain.RankingItemResult{
			ItemID:  item.ID,
			Text:    item.Text,
			Metrics: make(map[string]domain.MetricStats, len(metrics)),
		}

		weightSum := 0.0
		weighted := 0.0
		ratioSum := 0.0
		ratioCount := 0
		for _, metric := range metrics {
			vals := values[item.ID][metric.ID]
			stats := metricStats(vals, metric, minAvg[metric.ID], maxAvg[metric.ID])
			result.Metrics[metric.ID] = stats
			if stats.ResponseCount == 0 {
				continue
			}
			weight := metric.Weight
			if weight <= 0 {
				weight = 1
			}
			weighted += weight * stats.NormalizedAverage
			weightSum += weight
			if width := metric.Width(); width > 0 {
				ratioSum += stats.StdDev / width
				ratioCount++
			}
		}
		if weightSum > 0 {
			result.OverallScore = weighted / weightSum
		}
		if ratioCount > 0 {
			result.Consensus = consensusLevel(ratioSum / float64(ratioCount))
		} else {
			result.Consensus = domain.ConsensusLow
		}
		results = append(results, result)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].OverallScore != results[j].OverallScore {
			return results[i].OverallScore > results[j].OverallScore
		}
		return results[i].ItemID < results[j].ItemID
	})
	rank := 0
	prevScore := math.Inf(1)
	for i := range results {
		if results[i].OverallScore != prevScore {
			rank++
			prevScore = results[i].OverallScore
		}
		results[i].Rank = rank
	}
	return results
}

func metricStats(vals []float64, metric domain.RatingMetric, minAvg, maxAvg float64) domain.MetricStats {
	stats := domain.MetricStats{ResponseCount: len(vals), Consensus: domain.ConsensusLow}
	if len(vals) == 0 {
		return stats
	}

	stats.Average = mean(vals)
	stats.Median = median(vals)
	stats.StdDev = populationStdDev(vals, stats.Average)

	// Normalized average is min-max scaled across items, inverted when the
	// metric reads "lower is better". A degenerate spread maps to 1.
	if spread := maxAvg - minAvg; spread > 0 {
		stats.NormalizedAverage = (stats.Average - minAvg) / spread
	} else {
		stats.NormalizedAverage = 1
	}
	if metric.LowerIsBetter {
		stats.NormalizedAverage = 1 - stats.NormalizedAverage
	}

	if width := metric.Width(); width > 0 {
		stats.Consensus = consensusLevel(stats.StdDev / width)
		steps := int(math.Round(width)) + 1
		if steps > 1 {
			stats.Distribution = make([]int, steps)
			for _, v := range vals {
				idx := int(math.Round(v - metric.Min))
				if idx >= 0 && idx < steps {
					stats.Distribution[idx]++
				}
			}
		}
	}
	return stats
}

func consensusLevel(ratio float64) domain.ConsensusLevel {
	switch {
	case ratio < consensusHighBand:
		return domain.ConsensusHigh
	case ratio < consensusMediumBand:
		return domain.ConsensusMedium
	default:
		return domain.ConsensusLow
	}
}

func mean(vals []float64) float64 {
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func median(vals []float64) float64 {
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func populationStdDev(vals []float64, avg float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		d := v - avg
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(vals)))
}
