package app

import (
	"context"
	"errors"
	"log"
	"time"

	"live-quiz-engine/internal/domain"
	"live-quiz-engine/internal/ratelimit"
	"live-quiz-engine/internal/scoring"
	"live-quiz-engine/internal/validate"
)

// SubmitRequest is one participant answer for one question.
type SubmitRequest struct {
	SessionID     string
	ParticipantID string
	QuestionIndex int
	TimeRemaining float64
	Answer        domain.Submission
}

// SubmitResult is the authoritative outcome of a scored submission.
type SubmitResult struct {
	Points           int
	Correct          bool
	PartiallyCorrect bool
	NewScore         int
}

// SubmissionService is the submission coordinator: it admits, validates,
// scores and commits answers, guaranteeing exactly one scored record per
// (participant, question) under arbitrary concurrency.
type SubmissionService struct {
	sessions     SessionStore
	participants ParticipantStore
	keys         AnswerKeyRepository
	counters     LiveCounterStore
	limiter      *ratelimit.Limiter
	now          func() time.Time
}

func NewSubmissionService(
	sessions SessionStore,
	participants ParticipantStore,
	keys AnswerKeyRepository,
	counters LiveCounterStore,
	limiter *ratelimit.Limiter,
) *SubmissionService {
	return &SubmissionService{
		sessions:     sessions,
		participants: participants,
		keys:         keys,
		counters:     counters,
		limiter:      limiter,
		now:          time.Now,
	}
}

// SubmitAnswer runs the full pipeline for one submission.
//
// The duplicate check runs twice on purpose: once against a plain read,
// which rejects the common retry cheaply, and again inside the participant
// transaction, which is the actual guarantee when two submissions for the
// same question race.
func (s *SubmissionService) SubmitAnswer(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	if req.SessionID == "" || req.ParticipantID == "" {
		return SubmitResult{}, domain.Invalidf("sessionId and participantId are required")
	}
	if req.QuestionIndex < 0 {
		return SubmitResult{}, domain.Invalidf("question index must not be negative")
	}
	if s.limiter != nil {
		if ok, retry := s.limiter.AllowWithRetry(req.SessionID + "/" + req.ParticipantID); !ok {
			return SubmitResult{}, domain.RateLimited(retry)
		}
	}

	session, err := s.sessions.Get(ctx, req.SessionID)
	if err != nil {
		return SubmitResult{}, err
	}
	if !session.Answerable(req.QuestionIndex) {
		return SubmitResult{}, domain.ErrSessionNotAnswerable
	}

	entry, err := s.keys.Entry(ctx, req.SessionID, req.QuestionIndex)
	if err != nil {
		return SubmitResult{}, err
	}

	// Fast-path rejection before validating or opening a transaction.
	participant, err := s.participants.Get(ctx, req.SessionID, req.ParticipantID)
	if err != nil {
		return SubmitResult{}, err
	}
	if participant.Answered(req.QuestionIndex) {
		return SubmitResult{}, domain.ErrAlreadyAnswered
	}

	if err := validate.Submission(req.Answer, entry, req.TimeRemaining); err != nil {
		return SubmitResult{}, err
	}

	scored, err := scoring.Score(req.Answer, entry, req.TimeRemaining)
	if err != nil {
		return SubmitResult{}, domain.Internalf(err, "scoring failed")
	}

	record := domain.AnswerRecord{
		QuestionIndex:    req.QuestionIndex,
		Type:             entry.Type,
		Answer:           req.Answer,
		SubmittedAt:      s.now(),
		Points:           scored.Points,
		Correct:          scored.Correct,
		PartiallyCorrect: scored.PartiallyCorrect,
	}
	updated, err := s.commit(ctx, req.SessionID, req.ParticipantID, record)
	if err != nil {
		return SubmitResult{}, err
	}

	// Live counters are best-effort and never fail the submission; the
	// authoritative distribution is recomputed at the question boundary.
	go s.recordLive(req.SessionID, req.QuestionIndex, req.Answer)

	return SubmitResult{
		Points:           scored.Points,
		Correct:          scored.Correct,
		PartiallyCorrect: scored.PartiallyCorrect,
		NewScore:         updated.Score,
	}, nil
}

// RecordTimeout writes the synthetic "no answer" record for a participant
// who let the deadline pass. The session lifecycle invokes it for every
// unanswered participant when the host closes a question. Racing against a
// real submission is resolved by the same transaction: whichever commits
// first wins.
func (s *SubmissionService) RecordTimeout(ctx context.Context, sessionID, participantID string, questionIndex int) error {
	entry, err := s.keys.Entry(ctx, sessionID, questionIndex)
	if err != nil {
		return err
	}
	record := domain.AnswerRecord{
		QuestionIndex: questionIndex,
		Type:          entry.Type,
		Answer:        domain.NoAnswer{},
		SubmittedAt:   s.now(),
		TimedOut:      true,
	}
	_, err = s.commit(ctx, sessionID, participantID, record)
	return err
}

// commit appends the record and bumps the score in one transaction,
// re-checking for a concurrent winner first.
func (s *SubmissionService) commit(ctx context.Context, sessionID, participantID string, record domain.AnswerRecord) (domain.Participant, error) {
	return s.participants.Update(ctx, sessionID, participantID, func(p *domain.Participant) error {
		if p.Answered(record.QuestionIndex) {
			return domain.ErrAlreadyAnswered
		}
		if p.Answers == nil {
			p.Answers = make(map[int]domain.AnswerRecord)
		}
		p.Answers[record.QuestionIndex] = record
		p.Score += record.Points
		p.LastScoredAt = record.SubmittedAt
		return nil
	})
}

func (s *SubmissionService) recordLive(sessionID string, questionIndex int, sub domain.Submission) {
	if s.counters == nil {
		return
	}
	var options []int
	switch answer := sub.(type) {
	case domain.ChoiceAnswer:
		options = []int{answer.Index}
	case domain.MultiChoiceAnswer:
		options = answer.Indices
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.counters.RecordAnswer(ctx, sessionID, questionIndex, options); err != nil {
		log.Printf("live counter update failed for session %s: %v", sessionID, err)
	}
}

// Progress exposes the best-effort live counters for the host display.
func (s *SubmissionService) Progress(ctx context.Context, sessionID string, questionIndex int) (LiveProgress, error) {
	if s.counters == nil {
		return LiveProgress{}, nil
	}
	return s.counters.Progress(ctx, sessionID, questionIndex)
}

// IsDuplicate reports whether err is the already-answered rejection, which
// clients must not retry.
func IsDuplicate(err error) bool {
	return errors.Is(err, domain.ErrAlreadyAnswered)
}
