package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"live-quiz-engine/internal/app"
	"live-quiz-engine/internal/domain"
)

// AnswerKeyRepository caches a session's answer key in Redis and falls back
// to the durable loader on cache miss.
// Keys are stored as: SET quiz:{sessionID}:key {entries JSON}
type AnswerKeyRepository struct {
	client *redis.Client
	loader app.AnswerKeyStore
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewAnswerKeyRepository(client *redis.Client, loader app.AnswerKeyStore, ttl time.Duration) *AnswerKeyRepository {
	return &AnswerKeyRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *AnswerKeyRepository) Entry(ctx context.Context, sessionID string, questionIndex int) (domain.AnswerKeyEntry, error) {
	entries, err := r.Entries(ctx, sessionID)
	if err != nil {
		return domain.AnswerKeyEntry{}, err
	}
	if questionIndex < 0 || questionIndex >= len(entries) {
		return domain.AnswerKeyEntry{}, domain.ErrAnswerKeyNotFound
	}
	return entries[questionIndex], nil
}

func (r *AnswerKeyRepository) Entries(ctx context.Context, sessionID string) ([]domain.AnswerKeyEntry, error) {
	key := r.key(sessionID)

	raw, err := r.client.Get(ctx, key).Bytes()
	if err == nil {
		return decodeEntries(raw)
	}

	result, err, _ := r.sf.Do(sessionID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		raw, err := r.client.Get(ctx, key).Bytes()
		if err == nil {
			return decodeEntriesAny(raw)
		}

		entries, err := r.loader.Load(ctx, sessionID)
		if err != nil {
			return nil, err
		}

		if data, err := json.Marshal(entries); err == nil {
			_ = r.client.Set(ctx, key, data, r.ttlWithJitter()).Err()
		}
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.AnswerKeyEntry), nil
}

func (r *AnswerKeyRepository) key(sessionID string) string {
	return "quiz:" + sessionID + ":key"
}

func (r *AnswerKeyRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

func decodeEntries(raw []byte) ([]domain.AnswerKeyEntry, error) {
	var entries []domain.AnswerKeyEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, domain.Internalf(err, "decode cached answer key")
	}
	return entries, nil
}

func decodeEntriesAny(raw []byte) (interface{}, error) {
	return decodeEntries(raw)
}
