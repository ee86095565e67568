// Package pageviews is the append-only log of page views. Time-on-page
// corrections are stored as additional rows, never as updates.
package pageviews

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

type PageView struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	VisitorID  uint      `gorm:"not null;index" json:"visitor_id"`
	WebsiteID  uint      `gorm:"not null;index:idx_page_views_website_created,priority:1" json:"website_id"`
	PageURL    string    `json:"page_url"`
	PageTitle  string    `json:"page_title"`
	TimeOnPage int       `gorm:"not null;default:0" json:"time_on_page"`
	CreatedAt  time.Time `gorm:"not null;index:idx_page_views_website_created,priority:2" json:"created_at"`
}

// Record appends a page view
func Record(tx *gorm.DB, view *PageView) error {
	if view.CreatedAt.IsZero() {
		view.CreatedAt = time.Now().UTC()
	}
	if view.TimeOnPage < 0 {
		view.TimeOnPage = 0
	}
	if err := tx.Create(view).Error; err != nil {
		return fmt.Errorf("failed to record page view: %w", err)
	}
	return nil
}
