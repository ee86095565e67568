package analytics

// DefaultLimit caps ranked lists such as top pages and referrers
const DefaultLimit = 10

// WebsiteScopedQueryParams contains common parameters for website-scoped queries
type WebsiteScopedQueryParams struct {
	WebsiteID uint
	Range     DateRange
	Limit     int
}

// NewWebsiteScopedQueryParams creates query params with the default limit
func NewWebsiteScopedQueryParams(websiteID uint, r DateRange) WebsiteScopedQueryParams {
	return WebsiteScopedQueryParams{
		WebsiteID: websiteID,
		Range:     r,
		Limit:     DefaultLimit,
	}
}

func (p WebsiteScopedQueryParams) limit() int {
	if p.Limit <= 0 {
		return DefaultLimit
	}
	return p.Limit
}
