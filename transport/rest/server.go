package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/rocketscienceinc/gameroom-backend/internal/roomstore"
)

type roomStats interface {
	Stats() roomstore.Stats
}

type connectionCounter interface {
	ConnectionCount() int
}

// Server - read-only observability endpoints; carries no protocol state.
type Server struct {
	logger      *slog.Logger
	rooms       roomStats
	connections connectionCounter
	startedAt   time.Time
}

func New(logger *slog.Logger, rooms roomStats, connections connectionCounter) *Server {
	return &Server{
		logger:      logger.With("component", "rest"),
		rooms:       rooms,
		connections: connections,
		startedAt:   time.Now(),
	}
}

func (that *Server) Start(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", that.healthHandler)
	mux.HandleFunc("/stats", that.statsHandler)
	mux.HandleFunc("/ping", pingHandler)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}
