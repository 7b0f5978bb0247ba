package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"meeplehall/internal/models"
	"meeplehall/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestUserRepository_GetByID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	tests := []struct {
		name          string
		userID        uint
		mockBehavior  func()
		expectedUser  string
		expectedError int
	}{
		{
			name:   "Success",
			userID: 1,
			mockBehavior: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1`)).
					WithArgs(1, 1).
					WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email"}).AddRow(1, "meeple", "m@example.com"))
			},
			expectedUser: "meeple",
		},
		{
			name:   "Not Found",
			userID: 2,
			mockBehavior: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1`)).
					WithArgs(2, 1).
					WillReturnError(gorm.ErrRecordNotFound)
			},
			expectedError: 404,
		},
		{
			name:   "Database Error",
			userID: 3,
			mockBehavior: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1`)).
					WithArgs(3, 1).
					WillReturnError(errors.New("connection reset"))
			},
			expectedError: 500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockBehavior()
			user, err := repo.GetByID(ctx, tt.userID)
			if tt.expectedError != 0 {
				assert.Error(t, err)
				assert.Equal(t, tt.expectedError, models.StatusForError(err))
				assert.Nil(t, user)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expectedUser, user.Username)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_SoftDeleteAllowsReuse(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	first := &models.User{Username: "alice", Email: "alice@example.com", Password: "x"}
	require.NoError(t, repo.Create(ctx, first))

	dup := &models.User{Username: "alice", Email: "other@example.com", Password: "x"}
	err := repo.Create(ctx, dup)
	require.Error(t, err)
	assert.Equal(t, 409, models.StatusForError(err))

	require.NoError(t, repo.SoftDelete(ctx, first.ID))

	found, err := repo.GetByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.Nil(t, found, "deleted accounts are invisible to login lookups")

	second := &models.User{Username: "alice", Email: "alice@example.com", Password: "y"}
	require.NoError(t, repo.Create(ctx, second))
	assert.NotEqual(t, first.ID, second.ID)

	deleted, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted)
	assert.NotNil(t, deleted.DeletedOn)

	err = repo.Restore(ctx, deleted)
	require.Error(t, err)
	assert.Equal(t, 409, models.StatusForError(err))
}

func TestUserRepository_RestoreAndSearch(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	bob := testutil.CreateUser(t, db, "bob")
	testutil.CreateUser(t, db, "bobby")
	testutil.CreateUser(t, db, "carol")

	users, total, err := repo.Search(ctx, "bob", 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, users, 2)

	require.NoError(t, repo.SoftDelete(ctx, bob.ID))
	_, total, err = repo.Search(ctx, "bob", 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	_, total, err = repo.AdminList(ctx, "bob", true, 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)

	deleted, err := repo.GetByID(ctx, bob.ID)
	require.NoError(t, err)
	require.NoError(t, repo.Restore(ctx, deleted))
	assert.False(t, deleted.IsDeleted)

	login, err := repo.GetByLogin(ctx, "BOB")
	require.NoError(t, err)
	require.NotNil(t, login)
	assert.Equal(t, bob.ID, login.ID)
}

func TestUserRepository_SearchEscapesWildcards(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db)
	testutil.CreateUser(t, db, "dice_roller")
	testutil.CreateUser(t, db, "diceXroller")

	users, total, err := repo.Search(context.Background(), "dice_", 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, users, 1)
	assert.Equal(t, "dice_roller", users[0].Username)
}
