// Package auth verifies admin credentials and keeps server-side login sessions.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/karloscodes/cartridge/crypto"
	"gorm.io/gorm"

	"sitepulse/internal/users"
)

// ErrInvalidCredentials is returned for any failed verification.
// It never reveals whether the username exists.
var ErrInvalidCredentials = errors.New("invalid credentials")

var (
	dummyHash     string
	dummyHashOnce sync.Once
)

// unknownUserHash returns a bcrypt hash of "dummy", checked against for unknown
// users so a miss costs as much as a wrong password
func unknownUserHash() string {
	dummyHashOnce.Do(func() {
		if hash, err := crypto.GeneratePasswordHash("dummy"); err == nil {
			dummyHash = string(hash)
		}
	})
	return dummyHash
}

// Credentials is what a login form submits
type Credentials struct {
	Username string
	Password string
}

// Principal is the authenticated identity attached to a request
type Principal struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
}

// Verifier turns credentials into a principal or ErrInvalidCredentials
type Verifier interface {
	Verify(ctx context.Context, creds Credentials) (*Principal, error)
}

// UserVerifier checks credentials against bcrypt hashes in the users table
type UserVerifier struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewUserVerifier creates a Verifier backed by the users table
func NewUserVerifier(db *gorm.DB, logger *slog.Logger) *UserVerifier {
	return &UserVerifier{db: db, logger: logger}
}

// Verify implements Verifier
func (v *UserVerifier) Verify(ctx context.Context, creds Credentials) (*Principal, error) {
	if creds.Password == "" {
		return nil, ErrInvalidCredentials
	}

	username := users.NormalizeUsername(creds.Username)
	user, err := users.FindByUsername(v.db.WithContext(ctx), username)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			v.logger.Error("Failed to look up user", slog.Any("error", err))
			return nil, err
		}
		v.logger.Debug("User not found during login", slog.String("username", username))
		crypto.VerifyPassword(unknownUserHash(), creds.Password)
		return nil, ErrInvalidCredentials
	}

	if !crypto.VerifyPassword(user.EncryptedPassword, creds.Password) {
		v.logger.Debug("Invalid password attempt", slog.String("username", username))
		return nil, ErrInvalidCredentials
	}

	return &Principal{UserID: user.ID, Username: user.Username}, nil
}
