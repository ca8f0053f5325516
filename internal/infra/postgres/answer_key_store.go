package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"live-quiz-engine/internal/domain"
)

// AnswerKeyStore persists session answer keys as JSONB, write-once.
type AnswerKeyStore struct {
	pool *pgxpool.Pool
}

func NewAnswerKeyStore(pool *pgxpool.Pool) *AnswerKeyStore {
	return &AnswerKeyStore{pool: pool}
}

func (s *AnswerKeyStore) Save(ctx context.Context, sessionID string, entries []domain.AnswerKeyEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return domain.Internalf(err, "encode answer key")
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO answer_keys (session_id, data) VALUES ($1, $2) ON CONFLICT (session_id) DO NOTHING`,
		sessionID, data)
	if err != nil {
		return domain.Internalf(err, "save answer key")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAnswerKeyExists
	}
	return nil
}

func (s *AnswerKeyStore) Load(ctx context.Context, sessionID string) ([]domain.AnswerKeyEntry, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM answer_keys WHERE session_id=$1`, sessionID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAnswerKeyNotFound
	}
	if err != nil {
		return nil, domain.Internalf(err, "load answer key")
	}
	var entries []domain.AnswerKeyEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, domain.Internalf(err, "decode answer key")
	}
	return entries, nil
}
