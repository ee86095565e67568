package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
)

// ErrSessionNotFound is returned when a token is unknown, revoked or expired
var ErrSessionNotFound = errors.New("login session not found")

// refreshAfter limits how often a sliding expiry is written back
const refreshAfter = time.Minute

// LoginSession is a server-side record of an authenticated browser.
// Only the SHA-256 of the cookie token is stored.
type LoginSession struct {
	ID          uint      `gorm:"primaryKey"`
	TokenHash   string    `gorm:"uniqueIndex;size:64;not null"`
	UserID      uint      `gorm:"index;not null"`
	ExpiresAt   time.Time `gorm:"index;not null"`
	RefreshedAt time.Time `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null"`
}

// SessionStore creates, resolves and revokes login sessions
type SessionStore struct {
	db     *gorm.DB
	logger *slog.Logger
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionStore creates a store whose sessions live for ttl after last use
func NewSessionStore(db *gorm.DB, logger *slog.Logger, ttl time.Duration) *SessionStore {
	return &SessionStore{
		db:     db,
		logger: logger,
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source, for tests
func (s *SessionStore) WithClock(now func() time.Time) *SessionStore {
	s.now = now
	return s
}

// TTL returns the sliding session lifetime
func (s *SessionStore) TTL() time.Duration {
	return s.ttl
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Create opens a session for principal and returns the raw cookie token
func (s *SessionStore) Create(ctx context.Context, principal *Principal) (string, time.Time, error) {
	token, err := newToken()
	if err != nil {
		return "", time.Time{}, err
	}

	now := s.now()
	record := &LoginSession{
		TokenHash:   hashToken(token),
		UserID:      principal.UserID,
		ExpiresAt:   now.Add(s.ttl),
		RefreshedAt: now,
		CreatedAt:   now,
	}

	err = sqlite.PerformWrite(s.logger, s.db.WithContext(ctx), func(tx *gorm.DB) error {
		return tx.Create(record).Error
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to create login session: %w", err)
	}

	return token, record.ExpiresAt, nil
}

// Lookup resolves a token to its principal and slides the expiry forward
func (s *SessionStore) Lookup(ctx context.Context, token string) (*Principal, time.Time, error) {
	if token == "" {
		return nil, time.Time{}, ErrSessionNotFound
	}

	now := s.now()
	var row struct {
		ID          uint
		UserID      uint
		Username    string
		ExpiresAt   time.Time
		RefreshedAt time.Time
	}
	err := s.db.WithContext(ctx).
		Table("login_sessions").
		Select("login_sessions.id, login_sessions.user_id, users.username, login_sessions.expires_at, login_sessions.refreshed_at").
		Joins("JOIN users ON users.id = login_sessions.user_id").
		Where("login_sessions.token_hash = ? AND login_sessions.expires_at > ?", hashToken(token), now).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, time.Time{}, ErrSessionNotFound
		}
		return nil, time.Time{}, err
	}

	expiresAt := row.ExpiresAt
	if now.Sub(row.RefreshedAt) >= refreshAfter {
		expiresAt = now.Add(s.ttl)
		err = sqlite.PerformWrite(s.logger, s.db.WithContext(ctx), func(tx *gorm.DB) error {
			return tx.Model(&LoginSession{}).Where("id = ?", row.ID).
				Updates(map[string]any{"expires_at": expiresAt, "refreshed_at": now}).Error
		})
		if err != nil {
			s.logger.Warn("Failed to extend login session", slog.Any("error", err))
			expiresAt = row.ExpiresAt
		}
	}

	return &Principal{UserID: row.UserID, Username: row.Username}, expiresAt, nil
}

// Revoke deletes the session behind token. Unknown tokens are ignored.
func (s *SessionStore) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return sqlite.PerformWrite(s.logger, s.db.WithContext(ctx), func(tx *gorm.DB) error {
		return tx.Where("token_hash = ?", hashToken(token)).Delete(&LoginSession{}).Error
	})
}

// RevokeAllForUser deletes every session of a user, e.g. after a password change
func (s *SessionStore) RevokeAllForUser(ctx context.Context, userID uint) error {
	return sqlite.PerformWrite(s.logger, s.db.WithContext(ctx), func(tx *gorm.DB) error {
		return tx.Where("user_id = ?", userID).Delete(&LoginSession{}).Error
	})
}

// PurgeExpired removes expired sessions and reports how many were deleted
func (s *SessionStore) PurgeExpired(ctx context.Context) (int64, error) {
	var deleted int64
	err := sqlite.PerformWrite(s.logger, s.db.WithContext(ctx), func(tx *gorm.DB) error {
		result := tx.Where("expires_at <= ?", s.now()).Delete(&LoginSession{})
		deleted = result.RowsAffected
		return result.Error
	})
	return deleted, err
}
