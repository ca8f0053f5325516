package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"live-quiz-engine/internal/domain"
)

// AnalyticsStore persists the post-session rollup as one JSONB document
// per session, replaced on rewrite.
type AnalyticsStore struct {
	pool *pgxpool.Pool
}

func NewAnalyticsStore(pool *pgxpool.Pool) *AnalyticsStore {
	return &AnalyticsStore{pool: pool}
}

func (s *AnalyticsStore) Save(ctx context.Context, analytics domain.SessionAnalytics) error {
	data, err := json.Marshal(analytics)
	if err != nil {
		return domain.Internalf(err, "encode analytics")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO session_analytics (session_id, data) VALUES ($1, $2)
		 ON CONFLICT (session_id) DO UPDATE SET data = EXCLUDED.data`,
		analytics.SessionID, data)
	if err != nil {
		return domain.Internalf(err, "save analytics")
	}
	return nil
}

func (s *AnalyticsStore) Get(ctx context.Context, sessionID string) (domain.SessionAnalytics, bool, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM session_analytics WHERE session_id=$1`, sessionID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.SessionAnalytics{}, false, nil
	}
	if err != nil {
		return domain.SessionAnalytics{}, false, domain.Internalf(err, "load analytics")
	}
	var analytics domain.SessionAnalytics
	if err := json.Unmarshal(raw, &analytics); err != nil {
		return domain.SessionAnalytics{}, false, domain.Internalf(err, "decode analytics")
	}
	return analytics, true, nil
}
