package analytics

import (
	"fmt"
	"math"
	"sort"

	"gorm.io/gorm"

	"sitepulse/internal/pkg/referrers"
)

// Summary holds the headline numbers for a date range
type Summary struct {
	Visitors           int64   `json:"visitors"`
	PageViews          int64   `json:"page_views"`
	PagesPerVisitor    float64 `json:"pages_per_visitor"`
	AvgSessionDuration float64 `json:"avg_session_duration"`
}

// DailyStat is one zero-filled day of the series
type DailyStat struct {
	Date      string `json:"date"`
	Visitors  int64  `json:"visitors"`
	PageViews int64  `json:"page_views"`
}

// MetricCountResult is a labelled count in a breakdown
type MetricCountResult struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// PageStat is a page ranked by views
type PageStat struct {
	PageURL       string  `json:"page_url"`
	PageViews     int64   `json:"page_views"`
	AvgTimeOnPage float64 `json:"avg_time_on_page"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// GetSummary counts visitors first seen and page views recorded in the range
func GetSummary(db *gorm.DB, params WebsiteScopedQueryParams) (Summary, error) {
	var summary Summary
	start, end := params.Range.Start(), params.Range.End()

	err := db.Raw(`
        SELECT COUNT(*) FROM visitors
        WHERE website_id = ? AND created_at >= ? AND created_at < ?
    `, params.WebsiteID, start, end).Scan(&summary.Visitors).Error
	if err != nil {
		return Summary{}, fmt.Errorf("error counting visitors: %w", err)
	}

	err = db.Raw(`
        SELECT COUNT(*) FROM page_views
        WHERE website_id = ? AND created_at >= ? AND created_at < ?
    `, params.WebsiteID, start, end).Scan(&summary.PageViews).Error
	if err != nil {
		return Summary{}, fmt.Errorf("error counting page views: %w", err)
	}

	var avg struct{ Value *float64 }
	err = db.Raw(`
        SELECT AVG(session_duration) AS value FROM sessions
        WHERE website_id = ? AND created_at >= ? AND created_at < ?
        AND session_duration IS NOT NULL
    `, params.WebsiteID, start, end).Scan(&avg).Error
	if err != nil {
		return Summary{}, fmt.Errorf("error averaging session duration: %w", err)
	}
	if avg.Value != nil {
		summary.AvgSessionDuration = round2(*avg.Value)
	}

	if summary.Visitors > 0 {
		summary.PagesPerVisitor = round2(float64(summary.PageViews) / float64(summary.Visitors))
	}
	return summary, nil
}

// GetDailySeries returns visitors and page views per day, one entry for
// every day of the range
func GetDailySeries(db *gorm.DB, params WebsiteScopedQueryParams) ([]DailyStat, error) {
	start, end := params.Range.Start(), params.Range.End()

	var visitorRows []struct {
		Date  string
		Count int64
	}
	err := db.Raw(`
        SELECT DATE(created_at) AS date, COUNT(*) AS count FROM visitors
        WHERE website_id = ? AND created_at >= ? AND created_at < ?
        GROUP BY DATE(created_at)
    `, params.WebsiteID, start, end).Scan(&visitorRows).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching daily visitors: %w", err)
	}

	var viewRows []struct {
		Date  string
		Count int64
	}
	err = db.Raw(`
        SELECT DATE(created_at) AS date, COUNT(*) AS count FROM page_views
        WHERE website_id = ? AND created_at >= ? AND created_at < ?
        GROUP BY DATE(created_at)
    `, params.WebsiteID, start, end).Scan(&viewRows).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching daily page views: %w", err)
	}

	byDate := make(map[string]*DailyStat)
	series := make([]DailyStat, 0, params.Range.Days())
	for _, date := range params.Range.Dates() {
		series = append(series, DailyStat{Date: date})
	}
	for i := range series {
		byDate[series[i].Date] = &series[i]
	}
	for _, row := range visitorRows {
		if stat, ok := byDate[row.Date]; ok {
			stat.Visitors = row.Count
		}
	}
	for _, row := range viewRows {
		if stat, ok := byDate[row.Date]; ok {
			stat.PageViews = row.Count
		}
	}
	return series, nil
}

// GetTopReferrers groups new visitors by referrer source. Visitors without a
// referrer are reported as referrers.Direct.
func GetTopReferrers(db *gorm.DB, params WebsiteScopedQueryParams) ([]MetricCountResult, error) {
	var rows []MetricCountResult
	err := db.Raw(`
        SELECT COALESCE(referrer, '') AS name, COUNT(*) AS count FROM visitors
        WHERE website_id = ? AND created_at >= ? AND created_at < ?
        GROUP BY COALESCE(referrer, '')
    `, params.WebsiteID, params.Range.Start(), params.Range.End()).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching referrers: %w", err)
	}

	grouped := make(map[string]int64)
	for _, row := range rows {
		grouped[referrers.Label(row.Name)] += row.Count
	}
	return rankCounts(grouped, params.limit()), nil
}

// GetTopPages ranks pages by views with their average time on page
func GetTopPages(db *gorm.DB, params WebsiteScopedQueryParams) ([]PageStat, error) {
	var rows []PageStat
	err := db.Raw(`
        SELECT page_url, COUNT(*) AS page_views, AVG(time_on_page) AS avg_time_on_page
        FROM page_views
        WHERE website_id = ? AND created_at >= ? AND created_at < ?
        GROUP BY page_url
        ORDER BY page_views DESC, page_url ASC
        LIMIT ?
    `, params.WebsiteID, params.Range.Start(), params.Range.End(), params.limit()).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching top pages: %w", err)
	}
	for i := range rows {
		rows[i].AvgTimeOnPage = round2(rows[i].AvgTimeOnPage)
	}
	return rows, nil
}

// breakdownColumns whitelists the visitor columns GetVisitorBreakdown may group by
var breakdownColumns = map[string]bool{
	"device":           true,
	"browser":          true,
	"operating_system": true,
	"country":          true,
	"utm_source":       true,
	"utm_medium":       true,
	"utm_campaign":     true,
}

// GetVisitorBreakdown counts new visitors grouped by one visitor column.
// Empty values are returned as an empty name.
func GetVisitorBreakdown(db *gorm.DB, params WebsiteScopedQueryParams, column string) ([]MetricCountResult, error) {
	if !breakdownColumns[column] {
		return nil, fmt.Errorf("unsupported breakdown column: %s", column)
	}

	var rows []MetricCountResult
	query := fmt.Sprintf(`
        SELECT COALESCE(%[1]s, '') AS name, COUNT(*) AS count FROM visitors
        WHERE website_id = ? AND created_at >= ? AND created_at < ?
        GROUP BY COALESCE(%[1]s, '')
        ORDER BY count DESC, name ASC
    `, column)
	err := db.Raw(query, params.WebsiteID, params.Range.Start(), params.Range.End()).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching %s breakdown: %w", column, err)
	}
	return rows, nil
}

// rankCounts sorts grouped counts descending, ties by name, and truncates
func rankCounts(grouped map[string]int64, limit int) []MetricCountResult {
	results := make([]MetricCountResult, 0, len(grouped))
	for name, count := range grouped {
		results = append(results, MetricCountResult{Name: name, Count: count})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Count != results[j].Count {
			return results[i].Count > results[j].Count
		}
		return results[i].Name < results[j].Name
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}
