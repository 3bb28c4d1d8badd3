package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"quizclash/internal/api/middleware"
	"quizclash/internal/app/service"
	"quizclash/internal/common"
	"quizclash/internal/domain/model"
	"quizclash/internal/domain/repository"
	"quizclash/internal/realtime"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// AchievementEnqueuer hands completed solo-quiz results to the achievements
// subsystem, which drains its queue outside this process.
type AchievementEnqueuer interface {
	EnqueueAchievementEval(ctx context.Context, payload any) error
}

// RealtimeHandler binds the live-play wire protocol to the session registry
// and the challenge lifecycle. The persistent connection is an SSE stream;
// client→server messages arrive on companion POST endpoints carrying the
// connection id issued with the stream.
type RealtimeHandler struct {
	logger           *slog.Logger
	hub              *realtime.Hub
	sessions         *realtime.SessionRegistry
	challengeService *service.ChallengeService
	quizRepo         repository.QuizRepository
	resultRepo       repository.ResultRepository
	queue            AchievementEnqueuer
}

func NewRealtimeHandler(
	logger *slog.Logger,
	hub *realtime.Hub,
	sessions *realtime.SessionRegistry,
	challengeService *service.ChallengeService,
	quizRepo repository.QuizRepository,
	resultRepo repository.ResultRepository,
	queue AchievementEnqueuer,
) *RealtimeHandler {
	return &RealtimeHandler{
		logger:           logger,
		hub:              hub,
		sessions:         sessions,
		challengeService: challengeService,
		quizRepo:         quizRepo,
		resultRepo:       resultRepo,
		queue:            queue,
	}
}

func (h *RealtimeHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Authenticator)
	r.Get("/events", h.events)
	r.Post("/join", h.join)
	r.Post("/answer", h.answer)
	r.Post("/finish", h.finish)
}

// events opens the SSE stream for one connection. The connection id is
// minted here and delivered as the first event; all companion POSTs carry
// it back.
func (h *RealtimeHandler) events(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	username, _ := middleware.GetUsernameFromContext(r.Context())

	flusher, ok := w.(http.Flusher)
	if !ok {
		common.RespondWithError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	connID := uuid.NewString()
	events := h.hub.Register(connID, userID, username)
	defer func() {
		h.hub.Unregister(connID)
		h.sessions.EndSession(connID)
		h.logger.Info("realtime connection closed", "conn_id", connID, "user_id", userID)
	}()

	fmt.Fprintf(w, "event: connected\ndata: {\"connection_id\":%q}\n\n", connID)
	flusher.Flush()
	h.logger.Info("realtime connection established", "conn_id", connID, "user_id", userID)

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(event.Data)
			if err != nil {
				h.logger.Error("failed to marshal event", "error", err, "conn_id", connID)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			flusher.Flush()
		}
	}
}

type joinRequest struct {
	ConnectionID string `json:"connection_id"`
	ChallengeID  string `json:"challenge_id"`
}

func (h *RealtimeHandler) join(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	username, _ := middleware.GetUsernameFromContext(r.Context())

	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	challenge, err := h.challengeService.GetChallenge(r.Context(), userID, req.ChallengeID)
	if err != nil {
		h.nack(req.ConnectionID, err)
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}

	h.sessions.StartSession(req.ConnectionID, userID, challenge.QuizID)
	opponents := h.hub.JoinChallenge(req.ChallengeID, req.ConnectionID, userID)

	if len(opponents) == 0 {
		h.hub.Send(req.ConnectionID, realtime.Event{Type: realtime.EventWaitingForOpponent})
		common.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "waiting"})
		return
	}

	// The opposing participant is present: both sides learn who they face,
	// then everyone gets the start signals.
	for _, other := range opponents {
		h.hub.Send(other, realtime.Event{
			Type: realtime.EventOpponentJoined,
			Data: realtime.OpponentJoinedPayload{Username: username},
		})
	}
	h.hub.Send(req.ConnectionID, realtime.Event{
		Type: realtime.EventOpponentJoined,
		Data: realtime.OpponentJoinedPayload{Username: h.hub.Username(opponents[0])},
	})
	for _, connID := range append(opponents, req.ConnectionID) {
		h.hub.Send(connID, realtime.Event{Type: realtime.EventBothPlayersReady})
		h.hub.Send(connID, realtime.Event{Type: realtime.EventChallengeStart})
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type answerRequest struct {
	ConnectionID string `json:"connection_id"`
	QuizID       string `json:"quiz_id"`
	QuestionID   string `json:"question_id"`
	Answer       string `json:"answer"`
	TimeTaken    int    `json:"time_taken"`
}

// answer validates one submission against the stored correct answer,
// updates the session score, records a durable attempt, and reports the
// outcome to the submitting connection only.
func (h *RealtimeHandler) answer(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())

	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	session, ok := h.sessions.GetSession(req.ConnectionID)
	if !ok {
		err := fmt.Errorf("no live session for this connection: %w", common.ErrInvalidState)
		h.nack(req.ConnectionID, err)
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}

	quiz, err := h.quizRepo.FindQuizByID(r.Context(), session.QuizID)
	if err != nil {
		h.nack(req.ConnectionID, err)
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}

	var question *model.Question
	for i := range quiz.Questions {
		if quiz.Questions[i].ID == req.QuestionID {
			question = &quiz.Questions[i]
			break
		}
	}
	if question == nil {
		err := fmt.Errorf("question %s: %w", req.QuestionID, common.ErrNotFound)
		h.nack(req.ConnectionID, err)
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}

	correct := model.ValidateAnswer(*question, req.Answer)
	newScore := session.Score
	if correct {
		newScore = h.sessions.UpdateScore(req.ConnectionID, question.Points)
	}
	h.sessions.AdvanceQuestion(req.ConnectionID)

	attempt := &model.QuestionAttempt{
		UserID:           userID,
		QuizID:           session.QuizID,
		QuestionID:       question.ID,
		Answer:           req.Answer,
		Correct:          correct,
		TimeTakenSeconds: req.TimeTaken,
	}
	if err := h.resultRepo.SaveQuestionAttempt(r.Context(), attempt); err != nil {
		h.logger.Error("failed to save question attempt", "error", err, "user_id", userID)
		h.nack(req.ConnectionID, err)
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}

	h.hub.Send(req.ConnectionID, realtime.Event{
		Type: realtime.EventAnswerResult,
		Data: realtime.AnswerResultPayload{Correct: correct, CorrectAnswer: question.CorrectAnswer},
	})
	h.hub.Send(req.ConnectionID, realtime.Event{
		Type: realtime.EventScoreUpdate,
		Data: realtime.ScoreUpdatePayload{Score: newScore},
	})
	common.RespondWithJSON(w, http.StatusOK, map[string]bool{"correct": correct})
}

type finishRequest struct {
	ConnectionID string `json:"connection_id"`
	QuizID       string `json:"quiz_id"`
	TimeTaken    int    `json:"time_taken"`
}

// finish persists the session's final score as a quiz result, submits it to
// the challenge lifecycle, then tears the session down. The session score
// is authoritative; the client only supplies elapsed time.
func (h *RealtimeHandler) finish(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())

	var req finishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	session, ok := h.sessions.GetSession(req.ConnectionID)
	if !ok {
		err := fmt.Errorf("no live session for this connection: %w", common.ErrInvalidState)
		h.nack(req.ConnectionID, err)
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}

	timeTaken := req.TimeTaken
	if timeTaken <= 0 {
		timeTaken = int(time.Since(session.StartTime).Seconds())
	}

	result := &model.QuizResult{
		UserID:           userID,
		QuizID:           session.QuizID,
		Score:            session.Score,
		TotalTimeSeconds: timeTaken,
	}
	resultID, err := h.resultRepo.CreateResult(r.Context(), result)
	if err != nil {
		h.nack(req.ConnectionID, err)
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}

	challengeID, joined := h.hub.ChallengeFor(req.ConnectionID)
	if joined {
		if err := h.challengeService.SubmitResult(r.Context(), userID, challengeID, session.Score, timeTaken, &resultID); err != nil {
			h.nack(req.ConnectionID, err)
			common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
			return
		}
	}

	h.sessions.EndSession(req.ConnectionID)

	// Achievement evaluation happens in a separate subsystem; losing the
	// enqueue must not fail the save.
	if err := h.queue.EnqueueAchievementEval(r.Context(), result); err != nil {
		h.logger.Error("failed to enqueue achievement eval", "error", err, "result_id", resultID)
	}

	h.hub.Send(req.ConnectionID, realtime.Event{
		Type: realtime.EventResultSaved,
		Data: realtime.ResultSavedPayload{Success: true, ResultID: resultID, NewAchievements: []string{}},
	})
	common.RespondWithJSON(w, http.StatusOK, map[string]any{"success": true, "result_id": resultID})
}

// nack delivers the explicit negative acknowledgment the protocol requires:
// a failed message never ends in silence on the stream.
func (h *RealtimeHandler) nack(connID string, err error) {
	if connID == "" {
		return
	}
	h.hub.Send(connID, realtime.Event{
		Type: realtime.EventError,
		Data: realtime.ErrorPayload{Message: err.Error()},
	})
}
