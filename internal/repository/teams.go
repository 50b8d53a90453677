package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nflpicks/tracker/internal/metrics"
	"nflpicks/tracker/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// TeamRepository handles team database operations
type TeamRepository struct {
	q querier
}

const teamColumns = `team_code, name, conference, division, wins, losses`

// Upsert inserts or updates a team
func (r *TeamRepository) Upsert(ctx context.Context, team *models.Team) error {
	start := time.Now()
	query := `
		INSERT INTO teams (team_code, name, conference, division, wins, losses)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (team_code) DO UPDATE SET
			name = EXCLUDED.name,
			conference = EXCLUDED.conference,
			division = EXCLUDED.division,
			wins = EXCLUDED.wins,
			losses = EXCLUDED.losses,
			updated_at = NOW()
	`

	_, err := r.q.Exec(ctx, query,
		team.Code, team.Name, string(team.Conference), string(team.Division),
		team.Record.Wins, team.Record.Losses,
	)
	recordQuery("upsert", "teams", start, err)
	if err != nil {
		return fmt.Errorf("failed to upsert team %s: %w", team.Code, err)
	}

	log.Debug().
		Str("code", team.Code).
		Str("record", team.Record.String()).
		Msg("Team upserted")
	return nil
}

// GetByCode retrieves a team by its code
func (r *TeamRepository) GetByCode(ctx context.Context, code string) (*models.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE team_code = $1`

	team, err := scanTeam(r.q.QueryRow(ctx, query, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("team %s: %w", code, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team: %w", err)
	}
	return team, nil
}

// List retrieves all teams ordered by conference, division and code
func (r *TeamRepository) List(ctx context.Context) ([]models.Team, error) {
	start := time.Now()
	query := `SELECT ` + teamColumns + ` FROM teams ORDER BY conference, division, team_code`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		recordQuery("list", "teams", start, err)
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	defer rows.Close()

	var teams []models.Team
	for rows.Next() {
		team, err := scanTeam(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, *team)
	}
	err = rows.Err()
	recordQuery("list", "teams", start, err)
	if err != nil {
		return nil, fmt.Errorf("error iterating teams: %w", err)
	}
	return teams, nil
}

// UpdateRecord sets a team's actual win/loss record
func (r *TeamRepository) UpdateRecord(ctx context.Context, code string, rec models.Record) error {
	start := time.Now()
	tag, err := r.q.Exec(ctx,
		`UPDATE teams SET wins = $2, losses = $3, updated_at = NOW() WHERE team_code = $1`,
		code, rec.Wins, rec.Losses,
	)
	recordQuery("update_record", "teams", start, err)
	if err != nil {
		return fmt.Errorf("failed to update team record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("team %s: %w", code, ErrNotFound)
	}
	return nil
}

func scanTeam(row pgx.Row) (*models.Team, error) {
	var team models.Team
	var conference, division string
	if err := row.Scan(
		&team.Code, &team.Name, &conference, &division,
		&team.Record.Wins, &team.Record.Losses,
	); err != nil {
		return nil, err
	}
	team.Conference = models.Conference(conference)
	team.Division = models.Division(division)
	return &team, nil
}

func recordQuery(op, table string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecordDBQuery(op, table, status, time.Since(start).Seconds())
}
