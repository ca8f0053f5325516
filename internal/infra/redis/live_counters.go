package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"live-quiz-engine/internal/app"
)

// LiveCounterStore keeps the best-effort per-question progress counters in
// a Redis hash per (session, question):
//
//	HINCRBY quiz:{sessionID}:live:{q} answered 1
//	HINCRBY quiz:{sessionID}:live:{q} opt:{i}  1
//
// These feed the host display only; the authoritative distribution is
// recomputed at the question boundary.
type LiveCounterStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLiveCounterStore(client *redis.Client, ttl time.Duration) *LiveCounterStore {
	return &LiveCounterStore{client: client, ttl: ttl}
}

func (s *LiveCounterStore) RecordAnswer(ctx context.Context, sessionID string, questionIndex int, optionIndices []int) error {
	key := s.key(sessionID, questionIndex)
	pipe := s.client.Pipeline()
	pipe.HIncrBy(ctx, key, "answered", 1)
	for _, idx := range optionIndices {
		pipe.HIncrBy(ctx, key, optionField(idx), 1)
	}
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *LiveCounterStore) Progress(ctx context.Context, sessionID string, questionIndex int) (app.LiveProgress, error) {
	fields, err := s.client.HGetAll(ctx, s.key(sessionID, questionIndex)).Result()
	if err != nil {
		return app.LiveProgress{}, err
	}
	progress := app.LiveProgress{OptionCounts: make(map[int]int)}
	for field, raw := range fields {
		count, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		if field == "answered" {
			progress.Answered = count
			continue
		}
		var idx int
		if _, err := fmt.Sscanf(field, "opt:%d", &idx); err == nil {
			progress.OptionCounts[idx] = count
		}
	}
	return progress, nil
}

func (s *LiveCounterStore) key(sessionID string, questionIndex int) string {
	return fmt.Sprintf("quiz:%s:live:%d", sessionID, questionIndex)
}

func optionField(idx int) string {
	return "opt:" + strconv.Itoa(idx)
}
