package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"emochat/internal/database"
	"emochat/internal/registration"
)

var (
	// ErrWeakPassword is returned when the password is shorter than the minimum
	ErrWeakPassword = errors.New("password too weak")
	// ErrAccountExists is returned when the email is already registered
	ErrAccountExists = errors.New("account already exists")
	// ErrInvalidEmail is returned for an empty or malformed login
	ErrInvalidEmail = errors.New("invalid email")
	// ErrInvalidCredentials is returned when the login or password does not match
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// uniqueViolation is the Postgres SQLSTATE for unique constraint failures
const uniqueViolation = "23505"

// AccountService creates email and password accounts
type AccountService struct {
	db   database.Service
	cost int
}

// NewAccountService creates an account service using bcrypt's default cost
func NewAccountService(db database.Service) *AccountService {
	return &AccountService{db: db, cost: bcrypt.DefaultCost}
}

// CreateAccount registers email with password and returns the new account uid
func (s *AccountService) CreateAccount(ctx context.Context, email, password string) (string, error) {
	if at := strings.IndexByte(email, '@'); at <= 0 || at == len(email)-1 {
		return "", ErrInvalidEmail
	}
	if len([]rune(password)) < registration.MinPasswordLength {
		return "", ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	uid := uuid.New().String()
	query := `INSERT INTO accounts (uid, email, password_hash) VALUES ($1, $2, $3)`

	if _, err := s.db.Exec(ctx, query, uid, strings.ToLower(email), string(hash)); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return "", ErrAccountExists
		}
		return "", fmt.Errorf("failed to create account: %w", err)
	}

	return uid, nil
}

// Authenticate checks a login and returns the account uid
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (string, error) {
	query := `SELECT uid, password_hash FROM accounts WHERE email = $1`

	var uid, hash string
	err := s.db.QueryRow(ctx, query, strings.ToLower(email)).Scan(&uid, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("failed to load account: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return uid, nil
}
