// Package sessions stores visit sessions. A visitor's most recently created
// session is the one duration updates apply to.
package sessions

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

type Session struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	VisitorID       uint       `gorm:"not null;index:idx_sessions_visitor_created,priority:1" json:"visitor_id"`
	WebsiteID       uint       `gorm:"not null;index" json:"website_id"`
	CreatedAt       time.Time  `gorm:"not null;index:idx_sessions_visitor_created,priority:2" json:"created_at"`
	EndedAt         *time.Time `json:"ended_at"`
	SessionDuration *int       `json:"session_duration"`
}

// Start opens a session for a visitor at the given time
func Start(tx *gorm.DB, websiteID, visitorID uint, at time.Time) (*Session, error) {
	session := &Session{
		VisitorID: visitorID,
		WebsiteID: websiteID,
		CreatedAt: at.UTC(),
	}
	if err := tx.Create(session).Error; err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	return session, nil
}

// UpdateLatestDuration sets duration and ended_at on the visitor's most
// recently created session and returns the number of rows changed (0 or 1).
func UpdateLatestDuration(tx *gorm.DB, visitorID uint, durationSeconds int, endedAt time.Time) (int64, error) {
	result := tx.Exec(`
		UPDATE sessions
		SET session_duration = ?, ended_at = ?
		WHERE id = (
			SELECT id FROM sessions
			WHERE visitor_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		)`, durationSeconds, endedAt.UTC(), visitorID)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to update session duration: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Latest returns the visitor's most recently created session
func Latest(db *gorm.DB, visitorID uint) (*Session, error) {
	var session Session
	err := db.Where("visitor_id = ?", visitorID).Order("created_at DESC, id DESC").Take(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}
