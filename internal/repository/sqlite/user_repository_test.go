package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"account-service/internal/domain"
	"account-service/internal/repository"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newUserRepo(t *testing.T) repository.UserRepository {
	t.Helper()
	repo := NewUserRepository(newTestDB(t))
	require.NoError(t, repo.Init(context.Background()))
	return repo
}

func sampleUser(email string) *domain.User {
	return &domain.User{
		FirstName:    "Ann",
		LastName:     "Lee",
		Email:        email,
		MobileNumber: "555",
		PasswordHash: "hash",
		Status:       true,
		Role:         domain.RoleUser,
	}
}

func strPtr(s string) *string { return &s }

func TestUserRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := newUserRepo(t)

	u := sampleUser("ann@x.com")
	u.ProfileImage = strPtr("a.png")
	id, err := repo.Create(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "ann@x.com", got.Email)
	assert.Equal(t, domain.RoleUser, got.Role)
	assert.True(t, got.Status)
	require.NotNil(t, got.ProfileImage)
	assert.Equal(t, "a.png", *got.ProfileImage)
	assert.Nil(t, got.Document)
	assert.False(t, got.CreatedAt.IsZero())

	byEmail, err := repo.GetByEmail(ctx, "ann@x.com")
	require.NoError(t, err)
	assert.Equal(t, id, byEmail.ID)
}

func TestUserRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := newUserRepo(t)

	_, err := repo.GetByID(ctx, 99)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = repo.GetByEmail(ctx, "nobody@x.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, repo.UpdatePassword(ctx, 99, "h"), repository.ErrNotFound)
	assert.ErrorIs(t, repo.SoftDelete(ctx, 99), repository.ErrNotFound)

	ghost := sampleUser("ghost@x.com")
	ghost.ID = 99
	assert.ErrorIs(t, repo.Update(ctx, ghost), repository.ErrNotFound)
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	repo := newUserRepo(t)

	_, err := repo.Create(ctx, sampleUser("ann@x.com"))
	require.NoError(t, err)
	_, err = repo.Create(ctx, sampleUser("ann@x.com"))
	assert.ErrorIs(t, err, repository.ErrDuplicateEmail)

	other := sampleUser("bob@x.com")
	_, err = repo.Create(ctx, other)
	require.NoError(t, err)
	other.Email = "ann@x.com"
	assert.ErrorIs(t, repo.Update(ctx, other), repository.ErrDuplicateEmail)
}

func TestUserRepository_UpdatePassword(t *testing.T) {
	ctx := context.Background()
	repo := newUserRepo(t)

	id, err := repo.Create(ctx, sampleUser("ann@x.com"))
	require.NoError(t, err)
	require.NoError(t, repo.UpdatePassword(ctx, id, "new-hash"))

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", got.PasswordHash)
}

func TestUserRepository_SoftDelete(t *testing.T) {
	ctx := context.Background()
	repo := newUserRepo(t)

	u := sampleUser("ann@x.com")
	u.ProfileImage = strPtr("a.png")
	u.Document = strPtr("b.pdf")
	id, err := repo.Create(ctx, u)
	require.NoError(t, err)

	require.NoError(t, repo.SoftDelete(ctx, id))

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.False(t, got.Status)
	assert.Nil(t, got.ProfileImage)
	assert.Nil(t, got.Document)

	users, total, err := repo.ListActive(ctx, repository.UserFilter{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Empty(t, users)
	assert.NotNil(t, users)
}

func TestUserRepository_ListActive(t *testing.T) {
	ctx := context.Background()
	repo := newUserRepo(t)

	for i := 1; i <= 7; i++ {
		u := sampleUser(fmt.Sprintf("user%d@x.com", i))
		u.FirstName = fmt.Sprintf("Name%d", i)
		_, err := repo.Create(ctx, u)
		require.NoError(t, err)
	}

	users, total, err := repo.ListActive(ctx, repository.UserFilter{Page: 1, Limit: 6})
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	require.Len(t, users, 6)
	assert.Equal(t, "user7@x.com", users[0].Email)

	users, _, err = repo.ListActive(ctx, repository.UserFilter{Page: 2, Limit: 6})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "user1@x.com", users[0].Email)
}

func TestUserRepository_ListActiveSearch(t *testing.T) {
	ctx := context.Background()
	repo := newUserRepo(t)

	a := sampleUser("ann@x.com")
	a.FirstName = "Annabel"
	b := sampleUser("bob@x.com")
	b.FirstName = "Bob"
	b.LastName = "Smith"
	b.MobileNumber = "100_200"
	c := sampleUser("carl@x.com")
	c.FirstName = "Carl"
	c.LastName = "Jones"
	c.MobileNumber = "1000200"
	for _, u := range []*domain.User{a, b, c} {
		_, err := repo.Create(ctx, u)
		require.NoError(t, err)
	}

	users, total, err := repo.ListActive(ctx, repository.UserFilter{Search: "ANNA", Page: 1, Limit: 6})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, users, 1)
	assert.Equal(t, "ann@x.com", users[0].Email)

	// underscore must match literally, not as a single character wildcard
	users, total, err = repo.ListActive(ctx, repository.UserFilter{Search: "0_2", Page: 1, Limit: 6})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, users, 1)
	assert.Equal(t, "bob@x.com", users[0].Email)

	_, total, err = repo.ListActive(ctx, repository.UserFilter{Search: "%", Page: 1, Limit: 6})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestUserRepository_QueryFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT COUNT").WillReturnError(errors.New("disk I/O error"))

	repo := NewUserRepository(db)
	_, _, err = repo.ListActive(context.Background(), repository.UserFilter{Page: 1, Limit: 6})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count users")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_CreateMapsUniqueViolation(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO users").
		WillReturnError(errors.New("constraint failed: UNIQUE constraint failed: users.email (2067)"))

	_, err = NewUserRepository(db).Create(context.Background(), sampleUser("ann@x.com"))
	assert.ErrorIs(t, err, repository.ErrDuplicateEmail)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_InitUpgradesOldTable(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	_, err := db.ExecContext(ctx, `
CREATE TABLE users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	first_name TEXT NOT NULL,
	last_name TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	mobile_number TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
)`)
	require.NoError(t, err)

	repo := NewUserRepository(db)
	require.NoError(t, repo.Init(ctx))
	// idempotent
	require.NoError(t, repo.Init(ctx))

	u := sampleUser("ann@x.com")
	u.Role = domain.RoleAdmin
	u.Document = strPtr("cv.pdf")
	id, err := repo.Create(ctx, u)
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, got.Role)
	assert.True(t, got.Status)
	require.NotNil(t, got.Document)
	assert.Equal(t, "cv.pdf", *got.Document)
}

func TestUserRepository_RejectsUnknownRole(t *testing.T) {
	repo := newUserRepo(t)
	u := sampleUser("ann@x.com")
	u.Role = "root"
	_, err := repo.Create(context.Background(), u)
	assert.Error(t, err)
}
