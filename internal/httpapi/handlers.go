package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/quiz-match-backend/internal/hub"
	"github.com/DoyleJ11/quiz-match-backend/internal/matchdata"
	"github.com/DoyleJ11/quiz-match-backend/internal/matcherr"
	"github.com/DoyleJ11/quiz-match-backend/internal/registry"
	"github.com/DoyleJ11/quiz-match-backend/internal/room"
	"github.com/DoyleJ11/quiz-match-backend/pkg/types"
)

const requestTimeout = 5 * time.Second

// Rooms is the part of the hub the HTTP surface reads.
type Rooms interface {
	Lookup(ctx context.Context, ref matchdata.MatchRef) (*room.Room, error)
	Stats(ctx context.Context) (hub.Stats, error)
}

// Members reports connection counts.
type Members interface {
	Stats() registry.Stats
}

type roomStats struct {
	hub.Stats
	Registry registry.Stats `json:"registry"`
}

type voteBody struct {
	Option string `json:"option"`
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func RoomStats(rooms Rooms, members Members) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		st, err := rooms.Stats(ctx)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, roomStats{Stats: st, Registry: members.Stats()})
	}
}

func MatchState(rooms Rooms) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		rm, err := rooms.Lookup(ctx, matchdata.MatchRef{MatchID: chi.URLParam(r, "matchId")})
		if err != nil {
			writeError(w, err)
			return
		}
		view, err := rm.Inspect(ctx)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

// CastVote lets a QR landing page vote without holding a socket. The reply
// has the same shape as a socket ack.
func CastVote(rooms Rooms, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		var body voteBody
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&body); err != nil {
			writeError(w, matcherr.Validation("invalid vote body: %v", err))
			return
		}

		slug := chi.URLParam(r, "matchSlug")
		rm, err := rooms.Lookup(ctx, matchdata.MatchRef{Slug: slug})
		if err != nil {
			writeError(w, err)
			return
		}
		tally, err := rm.Submit(ctx, registry.RoleAudience, room.Vote{
			RescueID: chi.URLParam(r, "rescueId"),
			Option:   body.Option,
		})
		if err != nil {
			logger.Debug("vote rejected", zap.String("slug", slug), zap.Error(err))
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, types.Ack{Success: true, Data: tally})
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, matcherr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, matcherr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, matcherr.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, matcherr.ErrTransport):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), types.Ack{Success: false, Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
