package constants

import "time"

// ContentLimits is the prompt/output contract shared by the prompt builder and
// the response parser. The numeric limits appear verbatim in prompt text.
var ContentLimits = struct {
	TitleMax       int
	DescriptionMax int
	HashtagsMin    int
	HashtagsMax    int
}{
	TitleMax:       60,
	DescriptionMax: 280,
	HashtagsMin:    3,
	HashtagsMax:    5,
}

var EngineConfig = struct {
	NavigationCheckInterval time.Duration
	EnhanceDebounce         time.Duration
	PendingPollInterval     time.Duration
	MaxWaitForEnhancedData  time.Duration
}{
	NavigationCheckInterval: 500 * time.Millisecond,
	EnhanceDebounce:         500 * time.Millisecond,
	PendingPollInterval:     500 * time.Millisecond,
	MaxWaitForEnhancedData:  30 * time.Second,
}

var SessionConfig = struct {
	PendingTTL time.Duration
}{
	PendingTTL: 10 * time.Minute,
}

// DOMAttributes are marker attributes used for idempotent injection. An
// element carrying one of these has already been processed.
var DOMAttributes = struct {
	EnhanceButton      string
	Processed          string
	PreviewPanel       string
	EnhancementPreview string
	ResetButton        string
}{
	EnhanceButton:      "data-ae-enhance-btn",
	Processed:          "data-ae-processed",
	PreviewPanel:       "data-ae-preview",
	EnhancementPreview: "data-ae-enhancement-preview",
	ResetButton:        "data-ae-reset-btn",
}

var CSSClasses = struct {
	EnhanceButton      string
	PreviewPanel       string
	EnhancementPreview string
	Loading            string
	Error              string
}{
	EnhanceButton:      "ae-enhance-btn",
	PreviewPanel:       "ae-preview-panel",
	EnhancementPreview: "ae-enhancement-preview",
	Loading:            "ae-loading",
	Error:              "ae-error",
}

var CircuitBreakerConfig = struct {
	FailureThreshold    int
	ResetTimeout        time.Duration
	RateLimitTimeout    time.Duration
	HealthCheckInterval time.Duration
	HealthCheckTimeout  time.Duration
}{
	FailureThreshold:    3,
	ResetTimeout:        30 * time.Second,
	RateLimitTimeout:    1 * time.Hour,
	HealthCheckInterval: 10 * time.Minute,
	HealthCheckTimeout:  10 * time.Second,
}

var RedisConfig = struct {
	ReadyTimeout time.Duration
}{
	ReadyTimeout: 5 * time.Second,
}

var ProviderConfig = struct {
	RequestTimeout  time.Duration
	MaxOutputTokens int
}{
	RequestTimeout:  20 * time.Second,
	MaxOutputTokens: 512,
}

var BridgeConfig = struct {
	WriteTimeout    time.Duration
	MaxMessageBytes int64
	ShutdownDrain   time.Duration
}{
	WriteTimeout:    10 * time.Second,
	MaxMessageBytes: 4 << 20,
	ShutdownDrain:   5 * time.Second,
}
