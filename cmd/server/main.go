package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/DoyleJ11/quiz-match-backend/internal/config"
	"github.com/DoyleJ11/quiz-match-backend/internal/dispatch"
	"github.com/DoyleJ11/quiz-match-backend/internal/httpapi"
	"github.com/DoyleJ11/quiz-match-backend/internal/hub"
	"github.com/DoyleJ11/quiz-match-backend/internal/logging"
	"github.com/DoyleJ11/quiz-match-backend/internal/matchdata"
	"github.com/DoyleJ11/quiz-match-backend/internal/registry"
	"github.com/DoyleJ11/quiz-match-backend/internal/store"
	"github.com/DoyleJ11/quiz-match-backend/internal/ws"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logging:", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, err := openSource(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, source.Close()) }()

	clock := clockwork.NewRealClock()
	st := store.New()
	reg := registry.New(registry.Config{
		States: st,
		Clock:  clock,
		Grace:  cfg.EvictionGrace,
		Logger: logger.Named("registry"),
	})
	d := dispatch.New(reg, logger.Named("dispatch"))
	h := hub.NewHub(ctx, hub.Deps{
		Store:      st,
		Registry:   reg,
		Dispatcher: d,
		Source:     source,
		Clock:      clock,
		Logger:     logger,
	})
	defer h.Shutdown()

	socket := ws.Handler(ws.Deps{
		Rooms:      h,
		Members:    reg,
		Dispatcher: d,
		Logger:     logger,
	}, ws.Config{
		WriteTimeout:   cfg.WSWriteTimeout,
		IdleTimeout:    cfg.WSIdleTimeout,
		PingInterval:   cfg.WSPingInterval,
		SendBuffer:     cfg.WSSendBuffer,
		OperatorToken:  cfg.OperatorToken,
		OriginPatterns: originPatterns(cfg.CORSAllowedOrigins),
	})

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.SetupRoutes(httpapi.Deps{
			Rooms:          h,
			Members:        reg,
			Socket:         socket,
			AllowedOrigins: cfg.CORSAllowedOrigins,
			Logger:         logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openSource prefers direct database access when DATABASE_URL is set.
func openSource(cfg config.Config, logger *zap.Logger) (matchdata.Source, error) {
	if cfg.DatabaseURL != "" {
		logger.Info("match data from postgres")
		src, err := matchdata.NewPostgresSource(cfg.DatabaseURL, logger.Named("matchdata"))
		if err != nil {
			return nil, err
		}
		return src, nil
	}
	logger.Info("match data from api", zap.String("url", cfg.MatchAPIURL))
	return matchdata.NewHTTPSource(cfg.MatchAPIURL, cfg.MatchAPITimeout, logger.Named("matchdata")), nil
}

// originPatterns converts CORS origins to the host patterns the socket
// handshake checks.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if _, host, ok := strings.Cut(o, "://"); ok {
			o = host
		}
		out = append(out, o)
	}
	return out
}
