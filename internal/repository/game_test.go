package repository

import (
	"context"
	"testing"

	"meeplehall/internal/models"
	"meeplehall/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGameRepository_RatingsAndFilters(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewGameRepository(db)
	ctx := context.Background()
	a := testutil.CreateUser(t, db, "a")
	b := testutil.CreateUser(t, db, "b")

	catan := &models.Game{Name: "Catan", Slug: "catan", MinPlayers: 3, MaxPlayers: 4, Categories: "Strategy, Trading"}
	patchwork := &models.Game{Name: "Patchwork", Slug: "patchwork", MinPlayers: 2, MaxPlayers: 2, Categories: "Puzzle"}
	require.NoError(t, repo.Create(ctx, catan))
	require.NoError(t, repo.Create(ctx, patchwork))

	err := repo.Create(ctx, &models.Game{Name: "Catan 2", Slug: "catan", MinPlayers: 1, MaxPlayers: 1})
	assert.Equal(t, 409, models.StatusForError(err))

	require.NoError(t, repo.Rate(ctx, a.ID, catan.ID, 8))
	require.NoError(t, repo.Rate(ctx, b.ID, catan.ID, 6))
	require.NoError(t, repo.Rate(ctx, a.ID, catan.ID, 10))

	got, err := repo.GetBySlug(ctx, "catan")
	require.NoError(t, err)
	assert.EqualValues(t, 2, got.RatingCount)
	assert.InDelta(t, 8.0, got.RatingAverage, 0.001)

	mine, err := repo.UserRating(ctx, a.ID, catan.ID)
	require.NoError(t, err)
	require.NotNil(t, mine)
	assert.Equal(t, 10, *mine)

	removed, err := repo.DeleteRating(ctx, b.ID, catan.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	games, total, err := repo.List(ctx, GameFilter{Players: 2}, 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "patchwork", games[0].Slug)

	_, total, err = repo.List(ctx, GameFilter{Category: "trading"}, 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	ordered, err := repo.GetByIDs(ctx, []uint{patchwork.ID, 999, catan.ID})
	require.NoError(t, err)
	require.Len(t, ordered, 2)
	assert.Equal(t, patchwork.ID, ordered[0].ID)
	assert.Equal(t, catan.ID, ordered[1].ID)

	var seen int
	require.NoError(t, repo.All(ctx, 1, func(batch []models.Game) error {
		seen += len(batch)
		return nil
	}))
	assert.Equal(t, 2, seen)

	require.NoError(t, repo.Delete(ctx, patchwork.ID))
	_, err = repo.GetByID(ctx, patchwork.ID)
	assert.Equal(t, 404, models.StatusForError(err))
	exists, err := repo.SlugExists(ctx, "patchwork", 0)
	require.NoError(t, err)
	assert.True(t, exists, "deleted slugs stay reserved")
}
