package websites

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"sitepulse/internal/pkg/validation"
)

// WebsiteNotFoundError represents an error when no website matches a tracking code
type WebsiteNotFoundError struct {
	TrackingCode string
}

func (e *WebsiteNotFoundError) Error() string {
	return fmt.Sprintf("website not found for tracking code: %s", e.TrackingCode)
}

// NewWebsiteNotFoundError creates a new WebsiteNotFoundError
func NewWebsiteNotFoundError(trackingCode string) *WebsiteNotFoundError {
	return &WebsiteNotFoundError{TrackingCode: trackingCode}
}

// Website represents a tracked website. TrackingCode is the bearer credential
// the tracker script sends with every event.
type Website struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	TrackingCode string    `gorm:"uniqueIndex;size:64;not null" json:"tracking_code"`
	URL          string    `gorm:"not null" json:"url"`
	Name         string    `gorm:"not null" json:"name"`
	UserID       uint      `gorm:"index;not null" json:"user_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreateWebsiteInput holds the fields accepted from the website form
type CreateWebsiteInput struct {
	URL    string `json:"url" validate:"required,http_url,max=2048"`
	Name   string `json:"name" validate:"required,max=255"`
	UserID uint   `json:"-"`
}

// GenerateTrackingCode returns 32 random hex characters
func GenerateTrackingCode() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate tracking code: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// GetWebsiteByTrackingCode resolves the website a tracking code belongs to.
// Returns *WebsiteNotFoundError when the code is unknown.
func GetWebsiteByTrackingCode(db *gorm.DB, trackingCode string) (*Website, error) {
	var website Website
	if err := db.Where("tracking_code = ?", trackingCode).First(&website).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewWebsiteNotFoundError(trackingCode)
		}
		return nil, fmt.Errorf("unexpected error querying website: %w", err)
	}
	return &website, nil
}

// GetAllWebsites retrieves all websites
func GetAllWebsites(db *gorm.DB) ([]Website, error) {
	var websites []Website
	if err := db.Order("id ASC").Find(&websites).Error; err != nil {
		return nil, fmt.Errorf("failed to get websites: %w", err)
	}
	return websites, nil
}

// GetWebsitesForOwner retrieves the websites owned by a user
func GetWebsitesForOwner(db *gorm.DB, userID uint) ([]Website, error) {
	var websites []Website
	if err := db.Where("user_id = ?", userID).Order("created_at DESC, id DESC").Find(&websites).Error; err != nil {
		return nil, fmt.Errorf("failed to get websites: %w", err)
	}
	return websites, nil
}

// GetWebsiteByID retrieves a website by its ID
func GetWebsiteByID(db *gorm.DB, id uint) (Website, error) {
	var website Website
	if err := db.First(&website, id).Error; err != nil {
		return Website{}, err
	}
	return website, nil
}

// GetWebsiteForOwner retrieves a website only if it belongs to userID.
// Returns gorm.ErrRecordNotFound otherwise.
func GetWebsiteForOwner(db *gorm.DB, id, userID uint) (Website, error) {
	var website Website
	if err := db.Where("id = ? AND user_id = ?", id, userID).First(&website).Error; err != nil {
		return Website{}, err
	}
	return website, nil
}

// CreateWebsite validates the input and stores a new website with a fresh tracking code
func CreateWebsite(db *gorm.DB, logger *slog.Logger, input CreateWebsiteInput) (*Website, error) {
	input.URL = strings.TrimSpace(input.URL)
	input.Name = strings.TrimSpace(input.Name)
	if err := validation.Struct(&input); err != nil {
		return nil, err
	}
	if input.UserID == 0 {
		return nil, errors.New("website owner is required")
	}

	code, err := GenerateTrackingCode()
	if err != nil {
		return nil, err
	}

	website := &Website{
		TrackingCode: code,
		URL:          strings.TrimRight(input.URL, "/"),
		Name:         input.Name,
		UserID:       input.UserID,
		CreatedAt:    time.Now().UTC(),
	}

	err = sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		return tx.Create(website).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create website: %w", err)
	}

	logger.Info("Website created",
		slog.Uint64("website_id", uint64(website.ID)),
		slog.String("url", website.URL))
	return website, nil
}

// Snippet returns the HTML tag that embeds the tracker for this website
func (w Website) Snippet(baseURL string) string {
	return fmt.Sprintf(`<script src="%s/tracker.js?code=%s" async></script>`,
		strings.TrimRight(baseURL, "/"), w.TrackingCode)
}
