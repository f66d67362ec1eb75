package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/samber/do/v2"

	"github.com/foxseedlab/punchclock/internal/config"
	"github.com/foxseedlab/punchclock/internal/repository"
)

const databaseInitTimeout = 15 * time.Second

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (repository.Repository, error) {
		cfg := do.MustInvoke[*config.Config](i)
		ctx, cancel := context.WithTimeout(context.Background(), databaseInitTimeout)
		defer cancel()
		return Open(ctx, cfg)
	})
}

// Open connects to the store named by cfg.DatabaseURL and applies pending
// migrations.
func Open(ctx context.Context, cfg *config.Config) (repository.Repository, error) {
	if cfg.IsSQLite() {
		return openSQLite(ctx, cfg.SQLitePath())
	}
	return openPostgres(ctx, cfg.DatabaseURL)
}

func openPostgres(ctx context.Context, databaseURL string) (repository.Repository, error) {
	p, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	db := stdlib.OpenDBFromPool(p)
	defer func() {
		_ = db.Close()
	}()
	if err := RunMigration(ctx, db, goose.DialectPostgres, "postgres"); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to run migration: %w", err)
	}
	return NewPostgresRepository(p), nil
}

func openSQLite(ctx context.Context, path string) (repository.Repository, error) {
	gdb, err := OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	repo := NewSQLiteRepository(gdb)
	db, err := gdb.DB()
	if err != nil {
		_ = repo.Close()
		return nil, err
	}
	if err := RunMigration(ctx, db, goose.DialectSQLite3, "sqlite"); err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("failed to run migration: %w", err)
	}
	return repo, nil
}
