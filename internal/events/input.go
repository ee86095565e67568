package events

import (
	"math"
	"strings"
)

// EventType is the kind of beacon a tracker sends
type EventType string

const (
	EventTypePageView      EventType = "pageview"
	EventTypeSessionUpdate EventType = "session_update"
)

// IsValid reports whether t is a recognized event type
func (t EventType) IsValid() bool {
	return t == EventTypePageView || t == EventTypeSessionUpdate
}

// MaxTrackingCodeLength bounds tracking codes; longer codes never match a website
const MaxTrackingCodeLength = 64

// CollectInput is a decoded tracker request plus what the server knows
// about the connection. Every field other than TrackingCode is optional.
type CollectInput struct {
	TrackingCode    string    `json:"tracking_code"`
	VisitorID       string    `json:"visitor_id" validate:"max=128"`
	EventType       EventType `json:"event_type"`
	Referrer        string    `json:"referrer" validate:"max=2048"`
	UTMSource       string    `json:"utm_source" validate:"max=255"`
	UTMMedium       string    `json:"utm_medium" validate:"max=255"`
	UTMCampaign     string    `json:"utm_campaign" validate:"max=255"`
	UTMTerm         string    `json:"utm_term" validate:"max=255"`
	UTMContent      string    `json:"utm_content" validate:"max=255"`
	UserAgent       string    `json:"user_agent" validate:"max=1024"`
	Device          string    `json:"device" validate:"max=64"`
	OperatingSystem string    `json:"operating_system" validate:"max=64"`
	Browser         string    `json:"browser" validate:"max=64"`
	PageURL         string    `json:"page_url" validate:"max=2048"`
	PageTitle       string    `json:"page_title" validate:"max=1024"`
	TimeOnPage      *float64  `json:"time_on_page" validate:"omitempty,gte=0"`
	SessionDuration *float64  `json:"session_duration" validate:"omitempty,gte=0"`

	// Filled by the transport, never decoded from the body
	IPAddress       string `json:"-"`
	HeaderUserAgent string `json:"-"`
}

// normalize applies defaults. Identifiers are compared exactly as sent.
func (in *CollectInput) normalize() {
	if in.EventType == "" {
		in.EventType = EventTypePageView
	}
	if strings.TrimSpace(in.UserAgent) == "" {
		in.UserAgent = in.HeaderUserAgent
	}
}

// seconds rounds an optional duration, defaulting to 0
func seconds(v *float64) int {
	if v == nil || math.IsNaN(*v) || *v < 0 {
		return 0
	}
	if *v > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(math.Round(*v))
}
