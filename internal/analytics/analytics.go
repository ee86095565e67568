// Package analytics builds per-website traffic reports from visitors,
// sessions and page views.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"sitepulse/internal/pkg/async"
)

// reportWorkers bounds how many report queries run at once
const reportWorkers = 4

// Report is the full stats payload for one website and date range
type Report struct {
	StartDate       string              `json:"start_date"`
	EndDate         string              `json:"end_date"`
	Summary         Summary             `json:"summary"`
	Daily           []DailyStat         `json:"daily"`
	TopReferrers    []MetricCountResult `json:"top_referrers"`
	TopPages        []PageStat          `json:"top_pages"`
	Devices         []MetricCountResult `json:"devices"`
	Browsers        []MetricCountResult `json:"browsers"`
	OperatingSystem []MetricCountResult `json:"operating_systems"`
	Countries       []MetricCountResult `json:"countries"`
	UTMSources      []MetricCountResult `json:"utm_sources"`
}

func breakdownTask(db *gorm.DB, params WebsiteScopedQueryParams, name, column string, convert func([]MetricCountResult) []MetricCountResult) async.Task {
	return async.Task{
		Name: name,
		Execute: func(ctx context.Context) (any, error) {
			rows, err := GetVisitorBreakdown(db.WithContext(ctx), params, column)
			if err != nil {
				return nil, err
			}
			return convert(rows), nil
		},
	}
}

// BuildReport runs every report query concurrently and assembles the result.
// The first failing query fails the whole report.
func BuildReport(ctx context.Context, db *gorm.DB, logger *slog.Logger, params WebsiteScopedQueryParams) (*Report, error) {
	tasks := []async.Task{
		{Name: "summary", Execute: func(ctx context.Context) (any, error) {
			return GetSummary(db.WithContext(ctx), params)
		}},
		{Name: "daily", Execute: func(ctx context.Context) (any, error) {
			return GetDailySeries(db.WithContext(ctx), params)
		}},
		{Name: "referrers", Execute: func(ctx context.Context) (any, error) {
			return GetTopReferrers(db.WithContext(ctx), params)
		}},
		{Name: "pages", Execute: func(ctx context.Context) (any, error) {
			return GetTopPages(db.WithContext(ctx), params)
		}},
		breakdownTask(db, params, "devices", "device", convertTitleStats),
		breakdownTask(db, params, "browsers", "browser", convertTitleStats),
		breakdownTask(db, params, "operating_systems", "operating_system", convertOSStats),
		breakdownTask(db, params, "countries", "country", convertCountryStats),
		breakdownTask(db, params, "utm_sources", "utm_source", convertPlainStats),
	}

	results := async.NewPool(reportWorkers).Execute(ctx, tasks)

	var errs []error
	for _, task := range tasks {
		if err := results[task.Name].Err; err != nil {
			logger.Error("Report query failed",
				slog.String("query", task.Name),
				slog.Uint64("website_id", uint64(params.WebsiteID)),
				slog.Any("error", err))
			errs = append(errs, fmt.Errorf("%s: %w", task.Name, err))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	report := &Report{
		StartDate:       params.Range.From.Format(dateLayout),
		EndDate:         params.Range.To.Format(dateLayout),
		Summary:         results["summary"].Data.(Summary),
		Daily:           results["daily"].Data.([]DailyStat),
		TopReferrers:    results["referrers"].Data.([]MetricCountResult),
		TopPages:        results["pages"].Data.([]PageStat),
		Devices:         results["devices"].Data.([]MetricCountResult),
		Browsers:        results["browsers"].Data.([]MetricCountResult),
		OperatingSystem: results["operating_systems"].Data.([]MetricCountResult),
		Countries:       results["countries"].Data.([]MetricCountResult),
		UTMSources:      results["utm_sources"].Data.([]MetricCountResult),
	}
	if report.TopPages == nil {
		report.TopPages = []PageStat{}
	}
	return report, nil
}
