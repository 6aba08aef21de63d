package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/cardclash-backend/internal/apperr"
	"github.com/DoyleJ11/cardclash-backend/internal/models"
	"github.com/DoyleJ11/cardclash-backend/internal/pack"
)

type PackAPI interface {
	StartTimer(ctx context.Context, ownerID string, packType models.PackType, hours int) (*models.Timer, error)
	ClaimReward(ctx context.Context, timerID, ownerID string) (*models.Card, error)
	ListTimers(ctx context.Context, ownerID string) ([]pack.TimerView, error)
	ListCards(ctx context.Context, ownerID string) ([]models.Card, error)
}

type BattleAPI interface {
	CreateChallenge(ctx context.Context, challengerID, stakedCardID, opponentID string) (*models.Battle, error)
	AcceptChallenge(ctx context.Context, battleID, responderID string) (*models.Battle, error)
	DeclineChallenge(ctx context.Context, battleID, playerID string) (*models.Battle, error)
	AbandonBattle(ctx context.Context, battleID, playerID string) (*models.Battle, error)
	SelectCard(ctx context.Context, battleID, playerID, cardID string) (*models.Battle, error)
	ResolveBattleAs(ctx context.Context, battleID, playerID string) (*models.Battle, error)
	GetBattle(ctx context.Context, battleID, playerID string) (*models.Battle, error)
	GetSelection(ctx context.Context, battleID, playerID string) (*models.BattleSelection, error)
	ListOpenChallenges(ctx context.Context, limit int) ([]models.Battle, error)
	ListPlayerBattles(ctx context.Context, playerID string) ([]models.Battle, error)
	CardHistory(ctx context.Context, cardID, playerID string) ([]models.CardOwnershipHistory, error)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func statusFor(kind error) int {
	switch kind {
	case apperr.ErrValidation:
		return http.StatusBadRequest
	case apperr.ErrAuth:
		return http.StatusUnauthorized
	case apperr.ErrAuthorization, apperr.ErrCardNotOwned:
		return http.StatusForbidden
	case apperr.ErrNotFound:
		return http.StatusNotFound
	case apperr.ErrInvalidState, apperr.ErrCardAlreadySelected:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	kind := apperr.Kind(err)
	if kind == apperr.ErrInternal {
		log.Error("request failed", zap.Error(err))
	}
	writeJSON(w, statusFor(kind), errorBody{Error: kind.Error(), Message: apperr.Message(err)})
}

func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is required")
		}
		return apperr.Validation("invalid request body: %v", err)
	}
	return nil
}

type handlers struct {
	packs   PackAPI
	battles BattleAPI
	log     *zap.Logger
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *handlers) listCards(w http.ResponseWriter, r *http.Request) {
	cs, err := h.packs.ListCards(r.Context(), PlayerID(r))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

func (h *handlers) cardHistory(w http.ResponseWriter, r *http.Request) {
	hs, err := h.battles.CardHistory(r.Context(), chi.URLParam(r, "id"), PlayerID(r))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, hs)
}

func (h *handlers) listTimers(w http.ResponseWriter, r *http.Request) {
	ts, err := h.packs.ListTimers(r.Context(), PlayerID(r))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, ts)
}

type startTimerRequest struct {
	PackType models.PackType `json:"pack_type"`
	Hours    int             `json:"hours"`
}

func (h *handlers) startTimer(w http.ResponseWriter, r *http.Request) {
	var req startTimerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	t, err := h.packs.StartTimer(r.Context(), PlayerID(r), req.PackType, req.Hours)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *handlers) claimReward(w http.ResponseWriter, r *http.Request) {
	c, err := h.packs.ClaimReward(r.Context(), chi.URLParam(r, "id"), PlayerID(r))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *handlers) listBattles(w http.ResponseWriter, r *http.Request) {
	var (
		bs  []models.Battle
		err error
	)
	if open, _ := strconv.ParseBool(r.URL.Query().Get("open")); open {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		bs, err = h.battles.ListOpenChallenges(r.Context(), limit)
	} else {
		bs, err = h.battles.ListPlayerBattles(r.Context(), PlayerID(r))
	}
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, bs)
}

type createChallengeRequest struct {
	StakedCardID string `json:"staked_card_id"`
	OpponentID   string `json:"opponent_id,omitempty"`
}

func (h *handlers) createChallenge(w http.ResponseWriter, r *http.Request) {
	var req createChallengeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	b, err := h.battles.CreateChallenge(r.Context(), PlayerID(r), req.StakedCardID, req.OpponentID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (h *handlers) getBattle(w http.ResponseWriter, r *http.Request) {
	b, err := h.battles.GetBattle(r.Context(), chi.URLParam(r, "id"), PlayerID(r))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *handlers) getSelection(w http.ResponseWriter, r *http.Request) {
	sel, err := h.battles.GetSelection(r.Context(), chi.URLParam(r, "id"), PlayerID(r))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, sel)
}

type selectCardRequest struct {
	CardID string `json:"card_id"`
}

func (h *handlers) selectCard(w http.ResponseWriter, r *http.Request) {
	var req selectCardRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	b, err := h.battles.SelectCard(r.Context(), chi.URLParam(r, "id"), PlayerID(r), req.CardID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// battleAction adapts the battle operations that only need the battle id and
// the caller.
func (h *handlers) battleAction(op func(ctx context.Context, battleID, playerID string) (*models.Battle, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := op(r.Context(), chi.URLParam(r, "id"), PlayerID(r))
		if err != nil {
			writeError(w, h.log, err)
			return
		}
		writeJSON(w, http.StatusOK, b)
	}
}
