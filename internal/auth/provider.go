package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	TypeCredentials = "credentials"
	TypeToken       = "token"
)

// Credentials are the raw fields a client submitted to a sign-in endpoint.
type Credentials map[string]string

// Provider is one credential-verification strategy. Authorize returns
// ErrInvalidCredentials (possibly wrapped) for anything the client got wrong;
// other errors are server faults.
type Provider interface {
	ID() string
	Name() string
	Type() string
	Authorize(ctx context.Context, creds Credentials) (*Identity, error)
}

// UserFinder is the lookup the credentials strategy needs.
type UserFinder interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
}

// CredentialsProvider checks an email and password against stored accounts.
type CredentialsProvider struct {
	Users  UserFinder
	verify func(password, encodedHash string) (bool, error)
}

func NewCredentialsProvider(users UserFinder) *CredentialsProvider {
	return &CredentialsProvider{Users: users, verify: VerifyPassword}
}

// unknownUserHash is verified when no account matches, so a miss costs the
// same Argon2 work as a wrong password.
var unknownUserHash = sync.OnceValue(func() string {
	h, err := HashPassword("naskah-unknown-user")
	if err != nil {
		panic(fmt.Sprintf("auth: hash placeholder password: %v", err))
	}
	return h
})

func (p *CredentialsProvider) ID() string   { return "credentials" }
func (p *CredentialsProvider) Name() string { return "Email and password" }
func (p *CredentialsProvider) Type() string { return TypeCredentials }

func (p *CredentialsProvider) Authorize(ctx context.Context, creds Credentials) (*Identity, error) {
	email, password := creds["email"], creds["password"]
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrInvalidCredentials)
	}

	verify := p.verify
	if verify == nil {
		verify = VerifyPassword
	}

	u, err := p.Users.FindByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		_, _ = verify(password, unknownUserHash())
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	ok, err := verify(password, u.PasswordHash)
	switch {
	case errors.Is(err, ErrInvalidHash), errors.Is(err, ErrIncompatibleVersion),
		errors.Is(err, bcrypt.ErrPasswordTooLong):
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	case err != nil:
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return &Identity{UserID: u.ID, Name: u.Name, Email: u.Email}, nil
}

// TokenProvider exchanges an HS256 token signed by a trusted external issuer
// for a local session. The external user id is taken from "sub".
type TokenProvider struct {
	secret []byte
}

func NewTokenProvider(secret string) *TokenProvider {
	return &TokenProvider{secret: []byte(secret)}
}

func (p *TokenProvider) ID() string   { return "token" }
func (p *TokenProvider) Name() string { return "External token" }
func (p *TokenProvider) Type() string { return TypeToken }

func (p *TokenProvider) Authorize(_ context.Context, creds Credentials) (*Identity, error) {
	tokenString := creds["token"]
	if tokenString == "" {
		return nil, fmt.Errorf("%w: no token provided", ErrInvalidCredentials)
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return p.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: could not parse token claims", ErrInvalidCredentials)
	}
	sub, _ := mc["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("%w: sub claim is missing or invalid", ErrInvalidCredentials)
	}
	email, _ := mc["email"].(string)
	name, _ := mc["name"].(string)
	return &Identity{UserID: sub, Name: name, Email: email}, nil
}
