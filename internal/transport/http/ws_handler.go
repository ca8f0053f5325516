package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"live-quiz-engine/internal/app"
	"live-quiz-engine/internal/domain"
)

// WSHandler exposes the engine over one websocket per participant. Hosts
// connect with their own id and drive the session through command messages;
// players submit answers and receive leaderboard pushes.
type WSHandler struct {
	sessions    *app.SessionService
	submissions *app.SubmissionService
	leaderboard *app.LeaderboardService
	analytics   *app.AnalyticsService
	upgrader    websocket.Upgrader
}

func NewWSHandler(
	sessions *app.SessionService,
	submissions *app.SubmissionService,
	leaderboard *app.LeaderboardService,
	analytics *app.AnalyticsService,
) *WSHandler {
	return &WSHandler{
		sessions:    sessions,
		submissions: submissions,
		leaderboard: leaderboard,
		analytics:   analytics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionIndex int             `json:"questionIndex"`
	TimeRemaining float64         `json:"timeRemaining"`
	Answer        json.RawMessage `json:"answer"`
}

type answerResult struct {
	QuestionIndex    int  `json:"questionIndex"`
	Points           int  `json:"points"`
	Correct          bool `json:"correct"`
	PartiallyCorrect bool `json:"partiallyCorrect,omitempty"`
	TotalScore       int  `json:"totalScore"`
}

type joinedPayload struct {
	SessionID     string              `json:"sessionId"`
	ParticipantID string              `json:"participantId"`
	State         domain.SessionState `json:"state"`
	QuestionCount int                 `json:"questionCount"`
	Host          bool                `json:"host,omitempty"`
}

type sessionPayload struct {
	State                domain.SessionState `json:"state"`
	CurrentQuestionIndex int                 `json:"currentQuestionIndex"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Kind    domain.ErrorKind `json:"kind"`
	Message string           `json:"message"`
	// RetryAfterMs is set on rate-limit rejections.
	RetryAfterMs int64 `json:"retryAfterMs,omitempty"`
}

// errorPayloadFrom maps an engine error onto the wire without leaking
// internal causes: only the typed kind and message go out.
func errorPayloadFrom(err error) errorPayload {
	var e *domain.Error
	if errors.As(err, &e) {
		payload := errorPayload{Kind: e.Kind, Message: e.Message}
		if e.RetryAfter > 0 {
			payload.RetryAfterMs = e.RetryAfter.Milliseconds()
		}
		return payload
	}
	return errorPayload{Kind: domain.KindInternal, Message: "internal error"}
}

// ServeWS upgrades the request and runs the connection's message loop.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	participantID := r.URL.Query().Get("participantId")
	displayName := r.URL.Query().Get("name")
	if sessionID == "" || participantID == "" {
		http.Error(w, "missing sessionId or participantId", http.StatusBadRequest)
		return
	}

	session, err := h.sessions.Get(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	isHost := session.HostID == participantID
	if !isHost {
		if displayName == "" {
			http.Error(w, "missing name", http.StatusBadRequest)
			return
		}
		if err := h.sessions.Join(r.Context(), sessionID, participantID, displayName); err != nil {
			writeRejection(w, err)
			return
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	updates, cancel := h.sessions.Subscribe(sessionID)
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "leaderboard", Payload: update}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "joined", Payload: joinedPayload{
		SessionID:     sessionID,
		ParticipantID: participantID,
		State:         session.State,
		QuestionCount: session.QuestionCount,
		Host:          isHost,
	}}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.dispatch(r, send, sessionID, participantID, inbound)
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *WSHandler) dispatch(r *http.Request, send chan<- outboundMessage[any], sessionID, participantID string, inbound inboundMessage) {
	ctx := r.Context()
	switch inbound.Type {
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{
				Kind: domain.KindInvalidArgument, Message: "invalid answer payload",
			}}
			return
		}
		sub, err := domain.UnmarshalSubmission(payload.Answer)
		if err != nil {
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{
				Kind: domain.KindInvalidArgument, Message: "invalid answer payload",
			}}
			return
		}
		result, err := h.submissions.SubmitAnswer(ctx, app.SubmitRequest{
			SessionID:     sessionID,
			ParticipantID: participantID,
			QuestionIndex: payload.QuestionIndex,
			TimeRemaining: payload.TimeRemaining,
			Answer:        sub,
		})
		if err != nil {
			send <- outboundMessage[any]{Type: "error", Payload: errorPayloadFrom(err)}
			return
		}
		send <- outboundMessage[any]{Type: "answerResult", Payload: answerResult{
			QuestionIndex:    payload.QuestionIndex,
			Points:           result.Points,
			Correct:          result.Correct,
			PartiallyCorrect: result.PartiallyCorrect,
			TotalScore:       result.NewScore,
		}}

	case "start":
		h.hostCommand(ctx, send, h.sessions.Start, sessionID, participantID)
	case "advance":
		h.hostCommand(ctx, send, h.sessions.Advance, sessionID, participantID)
	case "end":
		h.hostCommand(ctx, send, h.sessions.End, sessionID, participantID)
	case "cancel":
		h.hostCommand(ctx, send, h.sessions.Cancel, sessionID, participantID)

	case "finalize":
		analytics, err := h.analytics.ComputeSessionAnalytics(ctx, sessionID, participantID)
		if err != nil {
			send <- outboundMessage[any]{Type: "error", Payload: errorPayloadFrom(err)}
			return
		}
		send <- outboundMessage[any]{Type: "analytics", Payload: analytics}

	case "progress":
		progress, err := h.currentProgress(ctx, sessionID)
		if err != nil {
			send <- outboundMessage[any]{Type: "error", Payload: errorPayloadFrom(err)}
			return
		}
		send <- outboundMessage[any]{Type: "progress", Payload: progress}

	default:
		send <- outboundMessage[any]{Type: "error", Payload: errorPayload{
			Kind: domain.KindInvalidArgument, Message: "unsupported message type",
		}}
	}
}

type hostCommandFunc func(ctx context.Context, sessionID, callerID string) (domain.Session, error)

func (h *WSHandler) hostCommand(ctx context.Context, send chan<- outboundMessage[any], fn hostCommandFunc, sessionID, participantID string) {
	session, err := fn(ctx, sessionID, participantID)
	if err != nil {
		send <- outboundMessage[any]{Type: "error", Payload: errorPayloadFrom(err)}
		return
	}
	send <- outboundMessage[any]{Type: "session", Payload: sessionPayload{
		State:                session.State,
		CurrentQuestionIndex: session.CurrentQuestionIndex,
	}}
}

type progressPayload struct {
	QuestionIndex int         `json:"questionIndex"`
	Answered      int         `json:"answered"`
	OptionCounts  map[int]int `json:"optionCounts,omitempty"`
}

func (h *WSHandler) currentProgress(ctx context.Context, sessionID string) (progressPayload, error) {
	session, err := h.sessions.Get(ctx, sessionID)
	if err != nil {
		return progressPayload{}, err
	}
	progress, err := h.submissions.Progress(ctx, sessionID, session.CurrentQuestionIndex)
	if err != nil {
		return progressPayload{}, err
	}
	return progressPayload{
		QuestionIndex: session.CurrentQuestionIndex,
		Answered:      progress.Answered,
		OptionCounts:  progress.OptionCounts,
	}, nil
}

// writeRejection surfaces a pre-upgrade failure as a plain HTTP status.
func writeRejection(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch domain.KindOf(err) {
	case domain.KindInvalidArgument:
		status = http.StatusBadRequest
	case domain.KindNotFound:
		status = http.StatusNotFound
	case domain.KindFailedPrecondition:
		status = http.StatusConflict
	case domain.KindResourceExhausted:
		status = http.StatusTooManyRequests
	}
	http.Error(w, errorPayloadFrom(err).Message, status)
}
