package analytics

import (
	"strings"
	"sync"

	"github.com/pariz/gountries"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Unknown labels empty breakdown values
const Unknown = "Unknown"

var (
	countryQuery     *gountries.Query
	countryQueryOnce sync.Once
)

func countries() *gountries.Query {
	countryQueryOnce.Do(func() {
		countryQuery = gountries.New()
	})
	return countryQuery
}

// convertCountryStats replaces ISO alpha-2 codes with common country names
func convertCountryStats(items []MetricCountResult) []MetricCountResult {
	caser := cases.Upper(language.AmericanEnglish)
	result := make([]MetricCountResult, 0, len(items))
	for _, item := range items {
		name := strings.TrimSpace(item.Name)
		switch {
		case name == "":
			name = Unknown
		default:
			if country, err := countries().FindCountryByAlpha(name); err == nil {
				name = country.Name.Common
			} else {
				name = caser.String(name)
			}
		}
		result = append(result, MetricCountResult{Name: name, Count: item.Count})
	}
	return mergeByName(result)
}

// convertOSStats normalizes operating system names
func convertOSStats(items []MetricCountResult) []MetricCountResult {
	caser := cases.Title(language.AmericanEnglish)
	result := make([]MetricCountResult, 0, len(items))
	for _, item := range items {
		name := strings.TrimSpace(item.Name)
		switch strings.ToLower(name) {
		case "", "unknown":
			name = Unknown
		case "ios", "iphone os":
			name = "iOS"
		case "macos", "mac os", "mac os x":
			name = "MacOS"
		case "chromeos", "chrome os":
			name = "ChromeOS"
		default:
			name = caser.String(name)
		}
		result = append(result, MetricCountResult{Name: name, Count: item.Count})
	}
	return mergeByName(result)
}

// convertTitleStats title-cases labels such as devices and browsers
func convertTitleStats(items []MetricCountResult) []MetricCountResult {
	caser := cases.Title(language.AmericanEnglish)
	result := make([]MetricCountResult, 0, len(items))
	for _, item := range items {
		name := strings.TrimSpace(item.Name)
		if name == "" || strings.EqualFold(name, Unknown) {
			name = Unknown
		} else if strings.ToLower(name) == name {
			name = caser.String(name)
		}
		result = append(result, MetricCountResult{Name: name, Count: item.Count})
	}
	return mergeByName(result)
}

// convertPlainStats labels empty values as Unknown
func convertPlainStats(items []MetricCountResult) []MetricCountResult {
	result := make([]MetricCountResult, 0, len(items))
	for _, item := range items {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			name = Unknown
		}
		result = append(result, MetricCountResult{Name: name, Count: item.Count})
	}
	return mergeByName(result)
}

// mergeByName folds rows whose labels collapsed to the same name
func mergeByName(items []MetricCountResult) []MetricCountResult {
	grouped := make(map[string]int64, len(items))
	for _, item := range items {
		grouped[item.Name] += item.Count
	}
	return rankCounts(grouped, 0)
}
