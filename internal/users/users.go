package users

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/karloscodes/cartridge/crypto"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
)

// DefaultUsername is used when a login form only carries a password.
const DefaultUsername = "admin"

type User struct {
	ID                uint      `gorm:"primaryKey"`
	Username          string    `gorm:"uniqueIndex;not null"`
	EncryptedPassword string    `gorm:"not null"`
	CreatedAt         time.Time `gorm:"autoCreateTime"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime"`
}

// ErrUserExists is returned when attempting to create a user that already exists.
var ErrUserExists = errors.New("user already exists")

// ErrUserNotFound is returned when a user lookup fails.
var ErrUserNotFound = gorm.ErrRecordNotFound

// NormalizeUsername trims and lower-cases a username, falling back to DefaultUsername.
func NormalizeUsername(username string) string {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return DefaultUsername
	}
	return username
}

// FindByUsername retrieves a user by username.
func FindByUsername(db *gorm.DB, username string) (*User, error) {
	var user User
	if err := db.Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID retrieves a user by ID.
func FindByID(db *gorm.DB, id uint) (*User, error) {
	var user User
	if err := db.Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Count returns the number of users.
func Count(db *gorm.DB) (int64, error) {
	var count int64
	err := db.Model(&User{}).Count(&count).Error
	return count, err
}

// CreateAdminUser creates a new admin user with the supplied credentials. It returns ErrUserExists if the user already exists.
func CreateAdminUser(dbConn *gorm.DB, username, password string) (*User, error) {
	if strings.TrimSpace(username) == "" {
		return nil, errors.New("username cannot be empty")
	}
	if password == "" {
		return nil, errors.New("password cannot be empty")
	}
	username = NormalizeUsername(username)

	if _, err := FindByUsername(dbConn, username); err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hashedPassword, err := crypto.GeneratePasswordHash(password)
	if err != nil {
		return nil, err
	}

	newUser := User{
		Username:          username,
		EncryptedPassword: string(hashedPassword),
	}

	logger := slog.Default()
	err = sqlite.PerformWrite(logger, dbConn, func(tx *gorm.DB) error {
		return tx.Create(&newUser).Error
	})
	if err != nil {
		return nil, err
	}
	return &newUser, nil
}

// ChangePassword updates a user's password given their username.
func ChangePassword(dbConn *gorm.DB, username, password string) error {
	if password == "" {
		return errors.New("password cannot be empty")
	}

	user, err := FindByUsername(dbConn, NormalizeUsername(username))
	if err != nil {
		return err
	}

	hashedPassword, err := crypto.GeneratePasswordHash(password)
	if err != nil {
		return err
	}

	logger := slog.Default()
	return sqlite.PerformWrite(logger, dbConn, func(tx *gorm.DB) error {
		return tx.Model(user).Update("encrypted_password", string(hashedPassword)).Error
	})
}

// EnsureAdminUser creates the configured admin account if it is missing.
// An existing account keeps its password.
func EnsureAdminUser(dbConn *gorm.DB, logger *slog.Logger, username, password string) error {
	username = NormalizeUsername(username)
	hashedPassword, err := crypto.GeneratePasswordHash(password)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	err = sqlite.PerformWrite(logger, dbConn, func(tx *gorm.DB) error {
		return tx.Exec(`
            INSERT INTO users (username, encrypted_password, created_at, updated_at)
            VALUES (?, ?, ?, ?)
            ON CONFLICT(username) DO NOTHING
        `, username, string(hashedPassword), now, now).Error
	})
	if err != nil {
		logger.Error("Failed to upsert admin user", slog.String("username", username), slog.Any("error", err))
		return err
	}
	logger.Info("Ensured admin user exists", slog.String("username", username))
	return nil
}
