package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	indicatorservice "qsync/internal/indicator/service"
	profilestore "qsync/internal/indicator/store/profile"
	submissionstore "qsync/internal/indicator/store/submission"
	"qsync/internal/platform/config"
	"qsync/internal/platform/postgres"
	riskservice "qsync/internal/risk/service"
	riskstore "qsync/internal/risk/store"
	"qsync/pkg/platform/audit"
	auditmemory "qsync/pkg/platform/audit/store/memory"
	auditpostgres "qsync/pkg/platform/audit/store/postgres"
	"qsync/pkg/platform/tx"
)

// stores bundles the storage backends. Without DATABASE_URL everything lives in
// memory and transactions are a process-wide lock.
type stores struct {
	kind        string
	db          *sql.DB
	profiles    indicatorservice.ProfileStore
	submissions indicatorservice.SubmissionStore
	risks       riskservice.Store
	audit       audit.Store
	tx          tx.Runner
}

func openStores(ctx context.Context, cfg config.Server, log *slog.Logger) (*stores, error) {
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		return &stores{
			kind:        "memory",
			profiles:    profilestore.NewInMemory(),
			submissions: submissionstore.NewInMemory(),
			risks:       riskstore.NewInMemory(),
			audit:       auditmemory.NewInMemoryStore(),
			tx:          tx.NewLockRunner(),
		}, nil
	}

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &stores{
		kind:        "postgres",
		db:          db,
		profiles:    profilestore.NewPostgres(db),
		submissions: submissionstore.NewPostgres(db),
		risks:       riskstore.NewPostgres(db),
		audit:       auditpostgres.New(db),
		tx:          tx.NewSQLRunner(db),
	}, nil
}

func (s *stores) ping(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.PingContext(ctx)
}

func (s *stores) close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}
