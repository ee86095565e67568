// Package events validates tracker beacons and records them as visitors,
// sessions and page views.
package events

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"sitepulse/internal/pageviews"
	"sitepulse/internal/pkg/user_agent"
	"sitepulse/internal/pkg/validation"
	"sitepulse/internal/sessions"
	"sitepulse/internal/visitors"
	"sitepulse/internal/websites"
)

// Options tune how events are enriched before storage
type Options struct {
	// ClassifyUserAgent fills missing device, OS and browser server-side
	ClassifyUserAgent bool
	// LookupCountry maps an IP address to a country code; nil disables it
	LookupCountry func(ip string) string
	// Now overrides the clock, for tests
	Now func() time.Time
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now().UTC()
	}
	return time.Now().UTC()
}

// CollectResult describes what a collected event did
type CollectResult struct {
	EventType      EventType
	WebsiteID      uint
	VisitorID      string
	VisitorCreated bool
	SessionUpdated bool
}

// Collect validates input, resolves the website from its tracking code and
// dispatches to the page view or session update path.
func Collect(ctx context.Context, dbManager cartridge.DBManager, logger *slog.Logger, input *CollectInput, opts Options) (*CollectResult, error) {
	input.normalize()

	if input.TrackingCode == "" {
		return nil, &ValidationError{Message: MsgMissingTrackingCode}
	}
	if len(input.TrackingCode) > MaxTrackingCodeLength {
		return nil, &AuthorizationError{TrackingCode: input.TrackingCode}
	}

	db := dbManager.GetConnection().WithContext(ctx)

	website, err := websites.GetWebsiteByTrackingCode(db, input.TrackingCode)
	if err != nil {
		var notFound *websites.WebsiteNotFoundError
		if errors.As(err, &notFound) {
			return nil, &AuthorizationError{TrackingCode: input.TrackingCode}
		}
		return nil, &PersistenceError{Op: "resolve website", Err: err}
	}

	// Field checks only apply once the tracking code is known to be valid
	if !input.EventType.IsValid() {
		return nil, &ValidationError{Message: MsgInvalidEventType}
	}
	if err := validation.Struct(input); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}

	if input.EventType == EventTypeSessionUpdate {
		return collectSessionUpdate(db, logger, website, input, opts)
	}
	return collectPageView(db, logger, website, input, opts)
}

// collectPageView resolves the visitor, creating visitor and session on first
// sight, and appends the page view. All rows commit together or not at all.
func collectPageView(db *gorm.DB, logger *slog.Logger, website *websites.Website, input *CollectInput, opts Options) (*CollectResult, error) {
	uid := input.VisitorID
	generated := uid == ""
	if generated {
		uid = visitors.GenerateUID()
	}
	now := opts.now()

	result := &CollectResult{
		EventType: EventTypePageView,
		WebsiteID: website.ID,
		VisitorID: uid,
	}

	var candidate *visitors.Visitor
	err := sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		return tx.Transaction(func(tx *gorm.DB) error {
			result.VisitorCreated = false

			var visitorID uint
			if !generated {
				existing, err := visitors.FindByUID(tx, website.ID, uid)
				switch {
				case err == nil:
					visitorID = existing.ID
				case !errors.Is(err, gorm.ErrRecordNotFound):
					return err
				}
			}

			if visitorID == 0 {
				if candidate == nil {
					candidate = newVisitor(website.ID, uid, input, opts, now)
				}
				visitor := *candidate
				created, err := visitors.InsertIfAbsent(tx, &visitor)
				if err != nil {
					return err
				}
				if created {
					if _, err := sessions.Start(tx, website.ID, visitor.ID, now); err != nil {
						return err
					}
				}
				result.VisitorCreated = created
				visitorID = visitor.ID
			}

			return pageviews.Record(tx, &pageviews.PageView{
				VisitorID:  visitorID,
				WebsiteID:  website.ID,
				PageURL:    input.PageURL,
				PageTitle:  input.PageTitle,
				TimeOnPage: seconds(input.TimeOnPage),
				CreatedAt:  now,
			})
		})
	})
	if err != nil {
		logger.Error("Failed to record page view",
			slog.Uint64("website_id", uint64(website.ID)),
			slog.Any("error", err))
		return nil, &PersistenceError{Op: "record page view", Err: err}
	}

	logger.Debug("Recorded page view",
		slog.Uint64("website_id", uint64(website.ID)),
		slog.Bool("new_visitor", result.VisitorCreated))
	return result, nil
}

// collectSessionUpdate stamps the visitor's latest session with a duration.
// Unknown visitors produce a *NotFoundError and no writes.
func collectSessionUpdate(db *gorm.DB, logger *slog.Logger, website *websites.Website, input *CollectInput, opts Options) (*CollectResult, error) {
	result := &CollectResult{
		EventType: EventTypeSessionUpdate,
		WebsiteID: website.ID,
		VisitorID: input.VisitorID,
	}
	if input.VisitorID == "" {
		return result, &NotFoundError{}
	}

	visitor, err := visitors.FindByUID(db, website.ID, input.VisitorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return result, &NotFoundError{VisitorID: input.VisitorID}
		}
		return nil, &PersistenceError{Op: "resolve visitor", Err: err}
	}

	duration := seconds(input.SessionDuration)
	now := opts.now()
	err = sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		updated, err := sessions.UpdateLatestDuration(tx, visitor.ID, duration, now)
		result.SessionUpdated = updated > 0
		return err
	})
	if err != nil {
		logger.Error("Failed to update session duration",
			slog.Uint64("visitor_id", uint64(visitor.ID)),
			slog.Any("error", err))
		return nil, &PersistenceError{Op: "update session", Err: err}
	}

	return result, nil
}

func newVisitor(websiteID uint, uid string, input *CollectInput, opts Options, now time.Time) *visitors.Visitor {
	v := &visitors.Visitor{
		WebsiteID:       websiteID,
		VisitorUID:      uid,
		IPAddress:       input.IPAddress,
		Referrer:        input.Referrer,
		UTMSource:       input.UTMSource,
		UTMMedium:       input.UTMMedium,
		UTMCampaign:     input.UTMCampaign,
		UTMTerm:         input.UTMTerm,
		UTMContent:      input.UTMContent,
		UserAgent:       input.UserAgent,
		Device:          input.Device,
		OperatingSystem: input.OperatingSystem,
		Browser:         input.Browser,
		CreatedAt:       now,
	}

	if opts.ClassifyUserAgent && v.UserAgent != "" && (v.Device == "" || v.OperatingSystem == "" || v.Browser == "") {
		ua := user_agent.ParseUserAgent(v.UserAgent)
		if v.Device == "" {
			v.Device = ua.Device
		}
		if v.OperatingSystem == "" {
			v.OperatingSystem = ua.OS
		}
		if v.Browser == "" {
			v.Browser = ua.Browser
		}
	}

	if opts.LookupCountry != nil && input.IPAddress != "" {
		v.Country = opts.LookupCountry(input.IPAddress)
	}

	return v
}
