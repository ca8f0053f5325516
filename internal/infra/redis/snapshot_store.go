package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"live-quiz-engine/internal/domain"
)

// SnapshotStore publishes leaderboard snapshots as one JSON document per
// session. Publish replaces the document wholesale; readers never observe
// a partially updated snapshot.
type SnapshotStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSnapshotStore(client *redis.Client, ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{client: client, ttl: ttl}
}

func (s *SnapshotStore) Publish(ctx context.Context, snapshot domain.LeaderboardSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return domain.Internalf(err, "encode snapshot")
	}
	return s.client.Set(ctx, s.key(snapshot.SessionID), data, s.ttl).Err()
}

func (s *SnapshotStore) Latest(ctx context.Context, sessionID string) (domain.LeaderboardSnapshot, bool, error) {
	raw, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if err == redis.Nil {
		return domain.LeaderboardSnapshot{}, false, nil
	}
	if err != nil {
		return domain.LeaderboardSnapshot{}, false, err
	}
	var snapshot domain.LeaderboardSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return domain.LeaderboardSnapshot{}, false, domain.Internalf(err, "decode snapshot")
	}
	return snapshot, true, nil
}

func (s *SnapshotStore) key(sessionID string) string {
	return "quiz:" + sessionID + ":leaderboard"
}
