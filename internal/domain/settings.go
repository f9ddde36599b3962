package domain

import "net/url"

// Tone selects the writing style requested from the model.
type Tone string

const (
	ToneAnalytical    Tone = "analytical"
	ToneHumorous      Tone = "humorous"
	ToneInspirational Tone = "inspirational"
)

func (t Tone) Valid() bool {
	switch t {
	case ToneAnalytical, ToneHumorous, ToneInspirational:
		return true
	}
	return false
}

// Provider selects the model backend for BYOK advanced settings.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
	ProviderCustom    Provider = "custom"
)

func (p Provider) Valid() bool {
	switch p {
	case ProviderOpenAI, ProviderAnthropic, ProviderGemini, ProviderCustom:
		return true
	}
	return false
}

// Settings are the user-facing enhancement preferences. Persisted records are
// validated on read; anything malformed falls back to DefaultSettings.
type Settings struct {
	Tone             Tone `json:"tone"`
	GenerateHashtags bool `json:"generateHashtags"`
	// Entitlement-gated; the settings store forces this off for non-pro accounts.
	IncludeWeather bool `json:"includeWeather"`
}

func DefaultSettings() Settings {
	return Settings{Tone: ToneInspirational}
}

// Validate reports whether the record is usable as stored.
func (s Settings) Validate() bool {
	return s.Tone.Valid()
}

// AdvancedSettings are the BYOK provider preferences. An unset provider means
// the default backend.
type AdvancedSettings struct {
	Provider Provider `json:"provider,omitempty"`
	Endpoint string   `json:"endpoint,omitempty"`
	APIKey   string   `json:"apiKey,omitempty"`
}

func DefaultAdvancedSettings() AdvancedSettings {
	return AdvancedSettings{}
}

func (a AdvancedSettings) Validate() bool {
	if a.Provider != "" && !a.Provider.Valid() {
		return false
	}
	if a.Endpoint != "" {
		u, err := url.Parse(a.Endpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return false
		}
	}
	return true
}

// DomainPrefs maps a host to its enable flag. Hosts absent from the map are
// enabled.
type DomainPrefs map[string]bool

// Enabled returns false only when the host is explicitly disabled.
func (d DomainPrefs) Enabled(host string) bool {
	v, ok := d[host]
	return !ok || v
}

// Account is the entitlement record owned by the popup UI.
type Account struct {
	Pro             bool   `json:"pro"`
	UserName        string `json:"userName,omitempty"`
	Email           string `json:"email,omitempty"`
	PlanName        string `json:"planName,omitempty"`
	NextBillingDate string `json:"nextBillingDate,omitempty"`
}

func DefaultAccount() Account {
	return Account{}
}

// Metrics tracks the monthly usage counter, keyed by calendar month so the
// count resets when the month rolls over.
type Metrics struct {
	MonthlyEnhancementCount int    `json:"monthlyEnhancementCount"`
	LastResetMonth          string `json:"lastResetMonth,omitempty"`
}

func DefaultMetrics() Metrics {
	return Metrics{}
}
