package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"nflpicks/tracker/internal/metrics"
	"nflpicks/tracker/internal/registry"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

//go:embed schema.sql
var schemaSQL string

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Database holds the database connection pool and provides access to repositories
type Database struct {
	Pool *pgxpool.Pool

	// Repositories
	Teams *TeamRepository
	Games *GameRepository
}

// Config holds database configuration
type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewDatabase creates a new database connection pool and initializes repositories
func NewDatabase(ctx context.Context, cfg Config) (*Database, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
		cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().
		Str("host", cfg.Host).
		Str("port", cfg.Port).
		Str("database", cfg.Database).
		Msg("Successfully connected to database")

	db := &Database{Pool: pool}
	db.Teams = &TeamRepository{q: pool}
	db.Games = &GameRepository{q: pool}

	return db, nil
}

// EnsureSchema creates the registry tables when missing.
func (db *Database) EnsureSchema(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Close closes the database connection pool
func (db *Database) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		log.Info().Msg("Database connection pool closed")
	}
}

// Health checks if the database is healthy
func (db *Database) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.Pool.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	return nil
}

// PoolStats returns database pool statistics and refreshes the pool gauges
func (db *Database) PoolStats() map[string]interface{} {
	stat := db.Pool.Stat()
	metrics.UpdateDBConnectionStats(stat.AcquiredConns(), stat.IdleConns())
	return map[string]interface{}{
		"total_conns":    stat.TotalConns(),
		"acquired_conns": stat.AcquiredConns(),
		"idle_conns":     stat.IdleConns(),
		"max_conns":      stat.MaxConns(),
	}
}

// Load builds the registry from the database. An empty database is seeded
// from the embedded schedule.
func (db *Database) Load(ctx context.Context) (*registry.Registry, error) {
	var doc registry.Document
	var updatedAt *time.Time
	err := db.Pool.QueryRow(ctx, `SELECT season, updated_at FROM registry_meta WHERE id = 1`).
		Scan(&doc.Season, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		log.Info().Msg("Registry tables empty, seeding from embedded schedule")
		reg, err := registry.Default()
		if err != nil {
			return nil, err
		}
		if err := db.Save(ctx, reg); err != nil {
			return nil, err
		}
		return reg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read registry metadata: %w", err)
	}
	if updatedAt != nil {
		doc.UpdatedAt = *updatedAt
	}

	teams, err := db.Teams.List(ctx)
	if err != nil {
		return nil, err
	}
	games, err := db.Games.List(ctx)
	if err != nil {
		return nil, err
	}
	doc.Teams = teams
	doc.Games = games
	return registry.New(doc)
}

// Save writes the whole registry inside one transaction.
func (db *Database) Save(ctx context.Context, reg *registry.Registry) error {
	start := time.Now()
	doc := reg.Document()

	err := pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		var updatedAt *time.Time
		if !doc.UpdatedAt.IsZero() {
			updatedAt = &doc.UpdatedAt
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO registry_meta (id, season, updated_at) VALUES (1, $1, $2)
			ON CONFLICT (id) DO UPDATE SET season = EXCLUDED.season, updated_at = EXCLUDED.updated_at
		`, doc.Season, updatedAt); err != nil {
			return fmt.Errorf("failed to write registry metadata: %w", err)
		}

		teams := &TeamRepository{q: tx}
		for i := range doc.Teams {
			if err := teams.Upsert(ctx, &doc.Teams[i]); err != nil {
				return err
			}
		}
		games := &GameRepository{q: tx}
		for i := range doc.Games {
			if err := games.Upsert(ctx, &doc.Games[i]); err != nil {
				return err
			}
		}
		return nil
	})

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecordDBQuery("save", "registry", status, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("failed to save registry: %w", err)
	}

	log.Debug().
		Int("teams", len(doc.Teams)).
		Int("games", len(doc.Games)).
		Dur("duration", time.Since(start)).
		Msg("Registry saved to database")
	return nil
}
