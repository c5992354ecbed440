package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

type Deps struct {
	Rooms          Rooms
	Members        Members
	Socket         http.HandlerFunc
	AllowedOrigins []string
	Logger         *zap.Logger
}

func SetupRoutes(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	logger := deps.Logger.Named("http")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: deps.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"*"},
	}).Handler)

	r.Get("/healthz", Healthz)
	r.Get("/ws", deps.Socket)
	r.Get("/rooms/stats", RoomStats(deps.Rooms, deps.Members))
	r.Get("/matches/{matchId}/state", MatchState(deps.Rooms))
	r.Post("/matches/{matchSlug}/rescues/{rescueId}/votes", CastVote(deps.Rooms, logger))
	return r
}
