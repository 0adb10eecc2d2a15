package users

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"golang.org/x/crypto/bcrypt"

	"emochat/internal/database"
	"emochat/internal/registration"
)

func mustStartDatabase(t *testing.T) database.Service {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	ctx := context.Background()
	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("emochat"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := database.Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Migrate(ctx))
	return db
}

func TestCreateAccount_Validation(t *testing.T) {
	svc := NewAccountService(nil)
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		password string
		want     error
	}{
		{"short password", "alice@emochat.com", "12345", ErrWeakPassword},
		{"empty email", "", "secret1", ErrInvalidEmail},
		{"no local part", "@emochat.com", "secret1", ErrInvalidEmail},
		{"no domain", "alice@", "secret1", ErrInvalidEmail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateAccount(ctx, tt.email, tt.password)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAccountService_Postgres(t *testing.T) {
	db := mustStartDatabase(t)
	svc := NewAccountService(db)
	svc.cost = bcrypt.MinCost

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	uid, err := svc.CreateAccount(ctx, "alice@emochat.com", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, uid)

	_, err = svc.CreateAccount(ctx, "Alice@emochat.com", "another1")
	assert.ErrorIs(t, err, ErrAccountExists)

	got, err := svc.Authenticate(ctx, "alice@emochat.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, uid, got)

	_, err = svc.Authenticate(ctx, "alice@emochat.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody@emochat.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	var hash string
	require.NoError(t, db.QueryRow(ctx, `SELECT password_hash FROM accounts WHERE uid = $1`, uid).Scan(&hash))
	assert.NotEqual(t, "secret1", hash, "password is stored hashed")
}

func TestRepository_Postgres(t *testing.T) {
	db := mustStartDatabase(t)
	repo := NewRepository(db)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	found, err := repo.FindUserByPhone(ctx, "01012345678")
	require.NoError(t, err)
	assert.Nil(t, found, "free number")

	_, err = repo.GetUser(ctx, "uid-1")
	assert.ErrorIs(t, err, ErrUserNotFound)

	user := registration.User{UID: "uid-1", ID: "alice", Nickname: "Al", Phone: "01012345678"}
	require.NoError(t, repo.AddUser(ctx, user))

	found, err = repo.FindUserByPhone(ctx, "01012345678")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, user, *found)

	user.Nickname = "Alice"
	require.NoError(t, repo.AddUser(ctx, user), "add replaces the document")

	got, err := repo.GetUser(ctx, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Nickname)
}
