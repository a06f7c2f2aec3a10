package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"graderservice/internal/config"
	"graderservice/internal/logging"
	"graderservice/internal/utils"
)

const (
	pingAttempts  = 5
	pingBaseDelay = 500 * time.Millisecond
)

func New(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*pgxpool.Pool, error) {
	if cfg.PostgresAutoMigrate {
		if err := runMigrations(ctx, cfg, logger); err != nil {
			return nil, err
		}
	}

	pgxCfg, err := pgxpool.ParseConfig(cfg.PostgresURL)
	if err != nil {
		return nil, err
	}

	pgxCfg.MaxConns = cfg.PostgresMaxConn
	pgxCfg.MinConns = cfg.PostgresMinConn

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, err
	}

	_, err = utils.RetryWithBackoff(ctx, pingAttempts, pingBaseDelay, func() (struct{}, error) {
		return struct{}{}, pool.Ping(ctx)
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return pool, nil
}

func runMigrations(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	m, err := migrate.New(
		"file://migrations",
		cfg.PostgresURL,
	)
	if err != nil {
		return err
	}
	defer m.Close()

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	version, _, _ := m.Version()
	logger.Info(ctx, "Migrations successfully applied", zap.Uint("version", version))
	return nil
}
