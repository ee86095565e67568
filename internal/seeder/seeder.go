// Package seeder fills a database with demo traffic by replaying tracker
// requests through the ingestion pipeline.
package seeder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/karloscodes/cartridge"
	"gorm.io/gorm"

	"sitepulse/internal/events"
	"sitepulse/internal/users"
	"sitepulse/internal/websites"
)

// DefaultPassword is the password of the seeded admin account
const DefaultPassword = "password"

// Seeder generates visits for demo websites
type Seeder struct {
	DBManager cartridge.DBManager
	Logger    *slog.Logger
	Visits    int
	// Days spreads visits over this many days before now
	Days int

	rng *rand.Rand
	now func() time.Time
}

// NewSeeder creates a seeder producing visits visits per website
func NewSeeder(dbManager cartridge.DBManager, logger *slog.Logger, visits int) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{
		DBManager: dbManager,
		Logger:    logger,
		Visits:    visits,
		Days:      30,
		rng:       rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 42)),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithSeed makes the generated traffic reproducible
func (s *Seeder) WithSeed(seed uint64) *Seeder {
	s.rng = rand.New(rand.NewPCG(seed, seed))
	return s
}

// Run ensures the admin user and demo websites exist and seeds each of them
func (s *Seeder) Run(ctx context.Context) error {
	start := time.Now()
	s.Logger.Info("Starting database seeding...", slog.Int("visits", s.Visits))

	user, err := s.seedUser()
	if err != nil {
		return fmt.Errorf("failed to seed user: %w", err)
	}

	sites, err := s.seedWebsites(user.ID)
	if err != nil {
		return fmt.Errorf("failed to seed websites: %w", err)
	}

	for _, website := range sites {
		if err := s.SeedWebsite(ctx, website); err != nil {
			return fmt.Errorf("failed to generate data for %s: %w", website.URL, err)
		}
	}

	s.Logger.Info("Seeding completed successfully", slog.Duration("elapsed", time.Since(start)))
	return nil
}

// SeedTrackingCode seeds one existing website
func (s *Seeder) SeedTrackingCode(ctx context.Context, trackingCode string) error {
	website, err := websites.GetWebsiteByTrackingCode(s.DBManager.GetConnection(), trackingCode)
	if err != nil {
		return err
	}
	return s.SeedWebsite(ctx, website)
}

// SeedWebsite simulates s.Visits visitors browsing website. Each visitor
// follows a journey of page views and reports its session duration at the end.
func (s *Seeder) SeedWebsite(ctx context.Context, website *websites.Website) error {
	ipPool := generateIPPool(s.rng, 100)
	userAgents := getUserAgents()
	referrers := getReferrers()
	pageViews := 0

	for i := 0; i < s.Visits; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		journey := journeyTemplates[s.rng.IntN(len(journeyTemplates))]
		at := s.now().Add(-time.Duration(s.rng.Int64N(int64(s.Days) * int64(24*time.Hour))))
		clock := at

		base := events.CollectInput{
			TrackingCode:    website.TrackingCode,
			IPAddress:       ipPool[s.rng.IntN(len(ipPool))],
			HeaderUserAgent: userAgents[s.rng.IntN(len(userAgents))],
			Referrer:        referrers[s.rng.IntN(len(referrers))],
		}
		if s.rng.IntN(5) == 0 {
			utm := utmSources[s.rng.IntN(len(utmSources))]
			base.UTMSource, base.UTMMedium, base.UTMCampaign = utm[0], utm[1], utm[2]
		}

		var visitorID string
		for step, page := range journey {
			timeOnPage := float64(s.rng.IntN(110) + 10)
			input := base
			input.EventType = events.EventTypePageView
			input.VisitorID = visitorID
			input.PageURL = page.path
			input.PageTitle = page.title
			input.TimeOnPage = &timeOnPage
			if step > 0 {
				input.Referrer = ""
			}

			result, err := events.Collect(ctx, s.DBManager, s.Logger, &input, s.options(clock))
			if err != nil {
				return fmt.Errorf("failed to record seeded page view: %w", err)
			}
			visitorID = result.VisitorID
			pageViews++
			clock = clock.Add(time.Duration(timeOnPage) * time.Second)
		}

		duration := clock.Sub(at).Seconds()
		update := events.CollectInput{
			TrackingCode:    website.TrackingCode,
			VisitorID:       visitorID,
			EventType:       events.EventTypeSessionUpdate,
			SessionDuration: &duration,
		}
		if _, err := events.Collect(ctx, s.DBManager, s.Logger, &update, s.options(clock)); err != nil {
			return fmt.Errorf("failed to record seeded session duration: %w", err)
		}
	}

	s.Logger.Info("Generated visits for website",
		slog.String("url", website.URL),
		slog.Int("visits", s.Visits),
		slog.Int("page_views", pageViews))
	return nil
}

func (s *Seeder) options(at time.Time) events.Options {
	return events.Options{
		ClassifyUserAgent: true,
		Now:               func() time.Time { return at },
	}
}

// seedUser ensures the default admin user exists
func (s *Seeder) seedUser() (*users.User, error) {
	db := s.DBManager.GetConnection()
	user, err := users.FindByUsername(db, users.DefaultUsername)
	if err == nil {
		s.Logger.Info("Admin user already exists", slog.String("username", user.Username))
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check for existing user: %w", err)
	}

	s.Logger.Info("Creating admin user")
	return users.CreateAdminUser(db, users.DefaultUsername, DefaultPassword)
}

// seedWebsites creates the demo websites that do not exist yet
func (s *Seeder) seedWebsites(userID uint) ([]*websites.Website, error) {
	db := s.DBManager.GetConnection()
	existing, err := websites.GetWebsitesForOwner(db, userID)
	if err != nil {
		return nil, err
	}
	byURL := make(map[string]websites.Website, len(existing))
	for _, website := range existing {
		byURL[website.URL] = website
	}

	var list []*websites.Website
	for _, demo := range demoWebsites {
		if website, ok := byURL[demo.url]; ok {
			s.Logger.Info("Website already exists", slog.String("url", website.URL))
			list = append(list, &website)
			continue
		}

		website, err := websites.CreateWebsite(db, s.Logger, websites.CreateWebsiteInput{
			URL:    demo.url,
			Name:   demo.name,
			UserID: userID,
		})
		if err != nil {
			return nil, err
		}
		list = append(list, website)
	}
	return list, nil
}
