package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"live-quiz-engine/internal/app"
	"live-quiz-engine/internal/domain"
)

// AnswerKeyStore is the in-memory, write-once home of session answer keys.
type AnswerKeyStore struct {
	mu   sync.RWMutex
	keys map[string][]domain.AnswerKeyEntry
}

func NewAnswerKeyStore() *AnswerKeyStore {
	return &AnswerKeyStore{keys: make(map[string][]domain.AnswerKeyEntry)}
}

func (s *AnswerKeyStore) Save(_ context.Context, sessionID string, entries []domain.AnswerKeyEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.keys[sessionID]; exists {
		return domain.ErrAnswerKeyExists
	}
	s.keys[sessionID] = append([]domain.AnswerKeyEntry(nil), entries...)
	return nil
}

func (s *AnswerKeyStore) Load(_ context.Context, sessionID string) ([]domain.AnswerKeyEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries, ok := s.keys[sessionID]
	if !ok {
		return nil, domain.ErrAnswerKeyNotFound
	}
	return append([]domain.AnswerKeyEntry(nil), entries...), nil
}

// AnswerKeyRepository caches answer keys with a TTL to avoid repeated loads
// from the backing store during a running question.
type AnswerKeyRepository struct {
	loader app.AnswerKeyStore
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedKey
}

type cachedKey struct {
	entries   []domain.AnswerKeyEntry
	expiresAt time.Time
}

func NewAnswerKeyRepository(loader app.AnswerKeyStore, ttl time.Duration) *AnswerKeyRepository {
	return &AnswerKeyRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedKey),
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
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[sessionID]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.entries, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(sessionID, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[sessionID]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.entries, nil
		}
		r.mu.RUnlock()

		entries, err := r.loader.Load(ctx, sessionID)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.cache[sessionID] = cachedKey{entries: entries, expiresAt: now.Add(r.ttlWithJitter())}
		r.mu.Unlock()
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.AnswerKeyEntry), nil
}

func (r *AnswerKeyRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
