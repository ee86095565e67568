package user_agent

import (
	_ "embed"
	"fmt"
	"log/slog"
	"sync"

	"go.elara.ws/pcre"
	"gopkg.in/yaml.v3"
)

const (
	DeviceDesktop = "Desktop"
	DeviceMobile  = "Mobile"
	DeviceTablet  = "Tablet"
	DeviceBot     = "Bot"
	Unknown       = "Unknown"
)

type UserAgent struct {
	UserAgent string
	OS        string
	Browser   string
	Device    string
	Mobile    bool
	Tablet    bool
	Desktop   bool
	Bot       bool
}

//go:embed rules.yml
var rulesFile []byte

// Rule is one ordered pattern from rules.yml
type Rule struct {
	Regex   string `yaml:"regex"`
	Exclude string `yaml:"exclude"`
	Name    string `yaml:"name"`
	Refine  []Rule `yaml:"refine"`
}

// Rules is the full rule set, one ordered list per dimension
type Rules struct {
	Bots             []Rule `yaml:"bots"`
	Devices          []Rule `yaml:"devices"`
	OperatingSystems []Rule `yaml:"operating_systems"`
	Browsers         []Rule `yaml:"browsers"`
}

// Compiled regex cache
type RegexCache struct {
	compiled map[string]*pcre.Regexp
	mutex    sync.RWMutex
}

func newRegexCache() *RegexCache {
	return &RegexCache{
		compiled: make(map[string]*pcre.Regexp),
	}
}

func (rc *RegexCache) get(pattern string) (*pcre.Regexp, error) {
	rc.mutex.RLock()
	if regex, exists := rc.compiled[pattern]; exists {
		rc.mutex.RUnlock()
		return regex, nil
	}
	rc.mutex.RUnlock()

	rc.mutex.Lock()
	defer rc.mutex.Unlock()

	if regex, exists := rc.compiled[pattern]; exists {
		return regex, nil
	}

	regex, err := pcre.Compile(pattern)
	if err != nil {
		return nil, err
	}
	rc.compiled[pattern] = regex
	return regex, nil
}

// Parser classifies user agents with an ordered rule set
type Parser struct {
	rules      Rules
	regexCache *RegexCache
}

var (
	parser *Parser
	once   sync.Once
)

// NewParser builds a parser from YAML rules
func NewParser(data []byte) (*Parser, error) {
	var rules Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse user agent rules: %w", err)
	}
	return &Parser{rules: rules, regexCache: newRegexCache()}, nil
}

func getParser() *Parser {
	once.Do(func() {
		p, err := NewParser(rulesFile)
		if err != nil {
			slog.Default().Error("Failed to load embedded user agent rules", slog.Any("error", err))
			p = &Parser{regexCache: newRegexCache()}
		}
		parser = p
	})
	return parser
}

func (p *Parser) matches(pattern, userAgent string) bool {
	if pattern == "" {
		return false
	}
	regex, err := p.regexCache.get(pattern)
	if err != nil {
		slog.Default().Warn("Invalid user agent pattern", slog.String("pattern", pattern), slog.Any("error", err))
		return false
	}
	return regex.MatchString(userAgent)
}

// first returns the name of the first rule matching userAgent, following refinements
func (p *Parser) first(rules []Rule, userAgent string) (string, bool) {
	for _, rule := range rules {
		if !p.matches(rule.Regex, userAgent) {
			continue
		}
		if rule.Exclude != "" && p.matches(rule.Exclude, userAgent) {
			continue
		}
		if name, ok := p.first(rule.Refine, userAgent); ok {
			return name, true
		}
		return rule.Name, true
	}
	return "", false
}

// Parse classifies userAgent. Unmatched dimensions fall back to Desktop and Unknown.
func (p *Parser) Parse(userAgent string) UserAgent {
	result := UserAgent{
		UserAgent: userAgent,
		OS:        Unknown,
		Browser:   Unknown,
		Device:    DeviceDesktop,
	}

	if name, ok := p.first(p.rules.OperatingSystems, userAgent); ok {
		result.OS = name
	}
	if name, ok := p.first(p.rules.Browsers, userAgent); ok {
		result.Browser = name
	}

	if _, ok := p.first(p.rules.Bots, userAgent); ok {
		result.Device = DeviceBot
		result.Bot = true
		return result
	}

	if name, ok := p.first(p.rules.Devices, userAgent); ok {
		result.Device = name
	}
	result.Mobile = result.Device == DeviceMobile
	result.Tablet = result.Device == DeviceTablet
	result.Desktop = result.Device == DeviceDesktop
	return result
}

// ParseUserAgent classifies userAgent with the embedded rules
func ParseUserAgent(userAgent string) UserAgent {
	return getParser().Parse(userAgent)
}
