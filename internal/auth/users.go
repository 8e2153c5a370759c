package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"naskah/config/database"
	"naskah/pkg/logger"

	"github.com/google/uuid"
)

var ErrUserNotFound = errors.New("user not found")

// User is an account usable by the credentials strategy.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
}

type UserRepository struct {
	DB database.Source
}

func NewUserRepository(db database.Source) *UserRepository {
	return &UserRepository{DB: db}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	db, err := r.DB.Get(ctx)
	if err != nil {
		return nil, err
	}

	var u User
	err = db.QueryRowContext(ctx,
		"SELECT id, email, name, password_hash, created_at FROM users WHERE email = $1", normalizeEmail(email),
	).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to get user by email %s: %v", email, err)
		return nil, err
	}
	return &u, nil
}

// Create stores a new account with an Argon2id password hash.
func (r *UserRepository) Create(ctx context.Context, email, name, password string) (*User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("create user: email and password are required")
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	db, err := r.DB.Get(ctx)
	if err != nil {
		return nil, err
	}

	u := &User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	_, err = db.ExecContext(ctx,
		"INSERT INTO users (id, email, name, password_hash, created_at) VALUES ($1, $2, $3, $4, $5)",
		u.ID, u.Email, u.Name, u.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		logger.Sugar.Errorf("Failed to create user %s: %v", email, err)
		return nil, err
	}
	return u, nil
}
