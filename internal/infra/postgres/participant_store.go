package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"live-quiz-engine/internal/domain"
)

// ParticipantStore persists participant records as one JSONB row each.
// Update implements the submission coordinator's transaction with
// SELECT ... FOR UPDATE: the row lock serializes concurrent submissions
// for the same participant, and fn re-checks against the locked state
// before anything is written.
type ParticipantStore struct {
	pool *pgxpool.Pool
}

func NewParticipantStore(pool *pgxpool.Pool) *ParticipantStore {
	return &ParticipantStore{pool: pool}
}

func (s *ParticipantStore) Create(ctx context.Context, sessionID string, participant domain.Participant) error {
	data, err := json.Marshal(participant)
	if err != nil {
		return domain.Internalf(err, "encode participant")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO participants (session_id, participant_id, data) VALUES ($1, $2, $3)
		 ON CONFLICT (session_id, participant_id)
		 DO UPDATE SET data = jsonb_set(participants.data, '{displayName}', to_jsonb($4::text))`,
		sessionID, participant.ID, data, participant.DisplayName)
	if err != nil {
		return domain.Internalf(err, "create participant")
	}
	return nil
}

func (s *ParticipantStore) Get(ctx context.Context, sessionID, participantID string) (domain.Participant, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM participants WHERE session_id=$1 AND participant_id=$2`,
		sessionID, participantID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	if err != nil {
		return domain.Participant{}, domain.Internalf(err, "load participant")
	}
	return decodeParticipant(raw)
}

func (s *ParticipantStore) List(ctx context.Context, sessionID string) ([]domain.Participant, error) {
	rows, err := s.pool.Query(ctx, `SELECT data FROM participants WHERE session_id=$1`, sessionID)
	if err != nil {
		return nil, domain.Internalf(err, "list participants")
	}
	defer rows.Close()

	var participants []domain.Participant
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, domain.Internalf(err, "scan participant")
		}
		p, err := decodeParticipant(raw)
		if err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internalf(err, "list participants")
	}
	sort.Slice(participants, func(i, j int) bool {
		return participants[i].ID < participants[j].ID
	})
	return participants, nil
}

func (s *ParticipantStore) Update(ctx context.Context, sessionID, participantID string, fn func(*domain.Participant) error) (domain.Participant, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Participant{}, domain.Internalf(err, "begin transaction")
	}
	defer tx.Rollback(ctx)

	var raw []byte
	err = tx.QueryRow(ctx,
		`SELECT data FROM participants WHERE session_id=$1 AND participant_id=$2 FOR UPDATE`,
		sessionID, participantID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	if err != nil {
		return domain.Participant{}, domain.Internalf(err, "lock participant")
	}

	participant, err := decodeParticipant(raw)
	if err != nil {
		return domain.Participant{}, err
	}
	if err := fn(&participant); err != nil {
		return domain.Participant{}, err
	}

	data, err := json.Marshal(participant)
	if err != nil {
		return domain.Participant{}, domain.Internalf(err, "encode participant")
	}
	if _, err := tx.Exec(ctx,
		`UPDATE participants SET data=$3 WHERE session_id=$1 AND participant_id=$2`,
		sessionID, participantID, data); err != nil {
		return domain.Participant{}, domain.Internalf(err, "update participant")
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Participant{}, domain.Internalf(err, "commit participant update")
	}
	return participant, nil
}

func (s *ParticipantStore) SetStreaks(ctx context.Context, sessionID string, streaks map[string]int) error {
	batch := &pgx.Batch{}
	for id, streak := range streaks {
		batch.Queue(
			`UPDATE participants SET data = jsonb_set(data, '{streak}', to_jsonb($3::int))
			 WHERE session_id=$1 AND participant_id=$2`,
			sessionID, id, streak)
	}
	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range streaks {
		if _, err := results.Exec(); err != nil {
			return domain.Internalf(err, "write streaks")
		}
	}
	return nil
}

func decodeParticipant(raw []byte) (domain.Participant, error) {
	var p domain.Participant
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.Participant{}, domain.Internalf(err, "decode participant")
	}
	return p, nil
}
