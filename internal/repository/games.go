package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nflpicks/tracker/internal/models"

	"github.com/jackc/pgx/v5"
)

// GameRepository handles game database operations
type GameRepository struct {
	q querier
}

const gameColumns = `game_id, week, home_team, away_team, game_date, game_time, status, home_score, away_score, winner`

// Upsert inserts or updates a game
func (r *GameRepository) Upsert(ctx context.Context, game *models.Game) error {
	start := time.Now()
	query := `
		INSERT INTO games (
			game_id, week, home_team, away_team, game_date, game_time,
			status, home_score, away_score, winner
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (game_id) DO UPDATE SET
			week = EXCLUDED.week,
			home_team = EXCLUDED.home_team,
			away_team = EXCLUDED.away_team,
			game_date = EXCLUDED.game_date,
			game_time = EXCLUDED.game_time,
			status = EXCLUDED.status,
			home_score = EXCLUDED.home_score,
			away_score = EXCLUDED.away_score,
			winner = EXCLUDED.winner,
			updated_at = NOW()
	`

	_, err := r.q.Exec(ctx, query,
		game.ID, game.Week, game.HomeTeam, game.AwayTeam, game.Date, game.Time,
		string(game.Status), game.HomeScore, game.AwayScore, game.Winner,
	)
	recordQuery("upsert", "games", start, err)
	if err != nil {
		return fmt.Errorf("failed to upsert game %s: %w", game.ID, err)
	}
	return nil
}

// GetByID retrieves a game by its id
func (r *GameRepository) GetByID(ctx context.Context, id string) (*models.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE game_id = $1`

	game, err := scanGame(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("game %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	return game, nil
}

// List retrieves all games in schedule order
func (r *GameRepository) List(ctx context.Context) ([]models.Game, error) {
	return r.query(ctx, "list",
		`SELECT `+gameColumns+` FROM games ORDER BY week, game_date, game_time, game_id`)
}

// GetByWeek retrieves the games of one week
func (r *GameRepository) GetByWeek(ctx context.Context, week int) ([]models.Game, error) {
	return r.query(ctx, "get_by_week",
		`SELECT `+gameColumns+` FROM games WHERE week = $1 ORDER BY game_date, game_time, game_id`, week)
}

// GetByStatus retrieves games with the given status
func (r *GameRepository) GetByStatus(ctx context.Context, status models.GameStatus) ([]models.Game, error) {
	return r.query(ctx, "get_by_status",
		`SELECT `+gameColumns+` FROM games WHERE status = $1 ORDER BY week, game_date, game_id`, string(status))
}

func (r *GameRepository) query(ctx context.Context, op, sql string, args ...any) ([]models.Game, error) {
	start := time.Now()
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		recordQuery(op, "games", start, err)
		return nil, fmt.Errorf("failed to query games: %w", err)
	}
	defer rows.Close()

	var games []models.Game
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		games = append(games, *game)
	}
	err = rows.Err()
	recordQuery(op, "games", start, err)
	if err != nil {
		return nil, fmt.Errorf("error iterating games: %w", err)
	}
	return games, nil
}

func scanGame(row pgx.Row) (*models.Game, error) {
	var game models.Game
	var status string
	if err := row.Scan(
		&game.ID, &game.Week, &game.HomeTeam, &game.AwayTeam, &game.Date, &game.Time,
		&status, &game.HomeScore, &game.AwayScore, &game.Winner,
	); err != nil {
		return nil, err
	}
	game.Status = models.GameStatus(status)
	return &game, nil
}
