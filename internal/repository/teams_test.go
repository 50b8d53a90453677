//go:build integration

package repository

import (
	"errors"
	"testing"

	"nflpicks/tracker/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTeamRepository_Upsert(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	team := &models.Team{Code: "BUF", Name: "Buffalo Bills", Conference: models.AFC, Division: models.East}
	require.NoError(t, db.Teams.Upsert(ctx, team), "Should successfully insert team")

	retrieved, err := db.Teams.GetByCode(ctx, "BUF")
	require.NoError(t, err, "Should retrieve inserted team")
	assert.Equal(t, "Buffalo Bills", retrieved.Name)
	assert.Equal(t, models.AFC, retrieved.Conference)

	team.Name = "Buffalo"
	require.NoError(t, db.Teams.Upsert(ctx, team), "Should successfully update team")

	updated, err := db.Teams.GetByCode(ctx, "BUF")
	require.NoError(t, err)
	assert.Equal(t, "Buffalo", updated.Name, "Name should be updated")
}

func TestTeamRepository_GetByCodeNotFound(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	_, err := db.Teams.GetByCode(ctx, "XXX")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestTeamRepository_ListAndUpdateRecord(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	teams := []*models.Team{
		{Code: "PHI", Name: "Philadelphia Eagles", Conference: models.NFC, Division: models.East},
		{Code: "KC", Name: "Kansas City Chiefs", Conference: models.AFC, Division: models.West},
		{Code: "MIA", Name: "Miami Dolphins", Conference: models.AFC, Division: models.East},
	}
	for _, team := range teams {
		require.NoError(t, db.Teams.Upsert(ctx, team))
	}

	list, err := db.Teams.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "MIA", list[0].Code, "AFC East sorts first")

	require.NoError(t, db.Teams.UpdateRecord(ctx, "KC", models.Record{Wins: 3, Losses: 1}))
	kc, err := db.Teams.GetByCode(ctx, "KC")
	require.NoError(t, err)
	assert.Equal(t, models.Record{Wins: 3, Losses: 1}, kc.Record)

	err = db.Teams.UpdateRecord(ctx, "XXX", models.Record{})
	assert.True(t, errors.Is(err, ErrNotFound))
}
