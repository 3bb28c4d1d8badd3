package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"quizclash/internal/api/middleware"
	"quizclash/internal/app/service"
	"quizclash/internal/common"
	"quizclash/internal/domain/model"
	"quizclash/internal/domain/repository"

	"github.com/go-chi/chi/v5"
)

type ChallengeHandler struct {
	challengeService *service.ChallengeService
}

func NewChallengeHandler(cs *service.ChallengeService) *ChallengeHandler {
	return &ChallengeHandler{challengeService: cs}
}

func (h *ChallengeHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Authenticator)
	r.Post("/", h.create)
	r.Get("/my-challenges", h.listMine)
	r.Get("/stats/{userID}", h.stats)
	r.Get("/{id}", h.get)
	r.Get("/{id}/participants", h.participants)
	r.Post("/{id}/accept", h.accept)
	r.Post("/{id}/decline", h.decline)
	r.Delete("/{id}/cancel", h.cancel)
	r.Post("/{id}/rematch", h.rematch)
}

func (h *ChallengeHandler) create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	var req service.CreateChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	challenge, err := h.challengeService.CreateChallenge(r.Context(), userID, req)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, map[string]any{"challenge": challenge})
}

func (h *ChallengeHandler) listMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	filter := repository.ChallengeFilter{
		Status: model.ChallengeStatus(r.URL.Query().Get("status")),
		Type:   repository.ChallengeFilterType(r.URL.Query().Get("type")),
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	challenges, err := h.challengeService.ListMyChallenges(r.Context(), userID, filter)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]any{"challenges": challenges})
}

func (h *ChallengeHandler) get(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	challenge, err := h.challengeService.GetChallenge(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]any{"challenge": challenge})
}

func (h *ChallengeHandler) participants(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	participants, err := h.challengeService.GetChallengeParticipants(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]any{"participants": participants})
}

func (h *ChallengeHandler) accept(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	challenge, err := h.challengeService.Accept(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]any{"challenge": challenge})
}

func (h *ChallengeHandler) decline(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	if err := h.challengeService.Decline(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "declined"})
}

func (h *ChallengeHandler) cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	if err := h.challengeService.Cancel(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (h *ChallengeHandler) rematch(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	challenge, err := h.challengeService.Rematch(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, map[string]any{"challenge": challenge})
}

func (h *ChallengeHandler) stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	stats, err := h.challengeService.GetStats(r.Context(), userID, chi.URLParam(r, "userID"))
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]any{"stats": stats})
}
