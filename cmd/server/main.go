package main

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/brainclash/backend/internal/config"
	"github.com/brainclash/backend/internal/engine"
	"github.com/brainclash/backend/internal/httpapi"
	"github.com/brainclash/backend/internal/questions"
	"github.com/brainclash/backend/internal/registry"
	"github.com/brainclash/backend/internal/room"
	"github.com/brainclash/backend/internal/store"
)

// logSink stands in for the rank-point persistence collaborator when no
// database is configured.
type logSink struct{ log *zap.Logger }

func (s logSink) Record(_ context.Context, r engine.Result) error {
	s.log.Info("match result",
		zap.String("room", r.RoomID),
		zap.String("winner", r.WinnerID),
		zap.String("loser", r.LoserID),
		zap.Duration("duration", r.Duration))
	return nil
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	var (
		bank questions.Bank
		sink room.ResultSink
	)
	if cfg.DatabaseURL != "" {
		st, err := store.Open(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("store", zap.Error(err))
		}
		bank, sink = st, st
		logger.Info("using postgres question bank")
	} else {
		bank = questions.NewMemoryBank(questions.DemoPool(), time.Now().UnixNano())
		sink = logSink{log: logger}
		logger.Info("no database configured, using demo question bank")
	}

	ctx := context.Background()
	reg := registry.New(ctx, logger, room.Config{
		AnswerTimeout: cfg.AnswerTimeout,
		PowerUpChance: cfg.PowerUpChance,
		MaxHP:         cfg.MaxHP,
		HandSize:      cfg.HandSize,
		ArchiveDelay:  cfg.ArchiveDelay,
	}, bank, sink)

	handler := httpapi.SetupRoutes(reg, logger)

	logger.Info("listening", zap.String("addr", cfg.Addr))
	if err := http.ListenAndServe(cfg.Addr, handler); err != nil {
		logger.Fatal("server", zap.Error(err))
	}
}
