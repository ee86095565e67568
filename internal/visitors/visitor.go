package visitors

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Visitor is a browser known to one website. The (website, visitor UID) pair
// is unique; the same UID on two websites belongs to two visitors.
type Visitor struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	WebsiteID       uint      `gorm:"not null;uniqueIndex:idx_visitors_website_uid,priority:1" json:"website_id"`
	VisitorUID      string    `gorm:"size:128;not null;uniqueIndex:idx_visitors_website_uid,priority:2" json:"visitor_id"`
	IPAddress       string    `gorm:"size:64" json:"ip_address"`
	Referrer        string    `json:"referrer"`
	UTMSource       string    `json:"utm_source"`
	UTMMedium       string    `json:"utm_medium"`
	UTMCampaign     string    `json:"utm_campaign"`
	UTMTerm         string    `json:"utm_term"`
	UTMContent      string    `json:"utm_content"`
	UserAgent       string    `json:"user_agent"`
	Device          string    `gorm:"size:64" json:"device"`
	OperatingSystem string    `gorm:"size:64" json:"operating_system"`
	Browser         string    `gorm:"size:64" json:"browser"`
	Country         string    `gorm:"size:2" json:"country"`
	CreatedAt       time.Time `gorm:"not null" json:"created_at"`
}

// FindByUID looks a visitor up by its (website, visitor UID) pair.
// Returns gorm.ErrRecordNotFound when there is no match.
func FindByUID(db *gorm.DB, websiteID uint, uid string) (*Visitor, error) {
	var visitor Visitor
	err := db.Where("website_id = ? AND visitor_uid = ?", websiteID, uid).Take(&visitor).Error
	if err != nil {
		return nil, err
	}
	return &visitor, nil
}

// InsertIfAbsent stores visitor unless its (website, visitor UID) pair already
// exists. created reports whether this call inserted the row; either way
// visitor.ID is set to the stored row's id on return.
func InsertIfAbsent(tx *gorm.DB, visitor *Visitor) (created bool, err error) {
	if visitor.CreatedAt.IsZero() {
		visitor.CreatedAt = time.Now().UTC()
	}

	result := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "website_id"}, {Name: "visitor_uid"}},
		DoNothing: true,
	}).Create(visitor)
	if result.Error != nil {
		return false, fmt.Errorf("failed to insert visitor: %w", result.Error)
	}
	if result.RowsAffected == 1 && visitor.ID != 0 {
		return true, nil
	}

	existing, err := FindByUID(tx, visitor.WebsiteID, visitor.VisitorUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, fmt.Errorf("visitor %q vanished after conflicting insert", visitor.VisitorUID)
		}
		return false, err
	}
	*visitor = *existing
	return false, nil
}

// CountForWebsite returns how many visitors a website has
func CountForWebsite(db *gorm.DB, websiteID uint) (int64, error) {
	var count int64
	err := db.Model(&Visitor{}).Where("website_id = ?", websiteID).Count(&count).Error
	return count, err
}
