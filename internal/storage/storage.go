package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/veloform/activity-enhancer-go/internal/domain"
	"github.com/veloform/activity-enhancer-go/internal/util"
	"github.com/veloform/activity-enhancer-go/pkg/errors"
	"go.uber.org/zap"
)

const (
	settingsKey    = "ae:settings"
	advancedKey    = "ae:advanced_settings"
	domainPrefsKey = "ae:domain_prefs"
	accountKey     = "ae:account"
	metricsKey     = "ae:metrics"
)

// SettingsStore persists user preferences, entitlements, and usage metrics.
// Reads validate the stored record and fall back to defaults instead of
// failing, so a corrupted record never blocks the enhancement flow.
type SettingsStore struct {
	kv     KV
	logger *zap.Logger
	now    func() time.Time
}

func NewSettingsStore(kv KV, logger *zap.Logger) *SettingsStore {
	return &SettingsStore{
		kv:     kv,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (s *SettingsStore) SetClock(now func() time.Time) {
	s.now = now
}

func (s *SettingsStore) GetSettings(ctx context.Context) domain.Settings {
	var settings domain.Settings
	if !s.read(ctx, settingsKey, &settings) || !settings.Validate() {
		return domain.DefaultSettings()
	}

	// Weather enrichment is a pro feature; enforce the gate on read so a
	// stale flag in storage cannot outlive a downgrade.
	if settings.IncludeWeather && !s.GetAccount(ctx).Pro {
		settings.IncludeWeather = false
	}

	return settings
}

func (s *SettingsStore) SaveSettings(ctx context.Context, settings domain.Settings) error {
	if !settings.Validate() {
		return errors.NewCacheError("invalid settings record", "set", settingsKey, nil)
	}
	return s.write(ctx, settingsKey, settings)
}

func (s *SettingsStore) GetAdvancedSettings(ctx context.Context) domain.AdvancedSettings {
	var advanced domain.AdvancedSettings
	if !s.read(ctx, advancedKey, &advanced) || !advanced.Validate() {
		return domain.DefaultAdvancedSettings()
	}
	return advanced
}

func (s *SettingsStore) SaveAdvancedSettings(ctx context.Context, advanced domain.AdvancedSettings) error {
	if !advanced.Validate() {
		return errors.NewCacheError("invalid advanced settings record", "set", advancedKey, nil)
	}
	return s.write(ctx, advancedKey, advanced)
}

func (s *SettingsStore) GetDomainPrefs(ctx context.Context) domain.DomainPrefs {
	var prefs domain.DomainPrefs
	if !s.read(ctx, domainPrefsKey, &prefs) || prefs == nil {
		return domain.DomainPrefs{}
	}
	return prefs
}

func (s *SettingsStore) SaveDomainPrefs(ctx context.Context, prefs domain.DomainPrefs) error {
	return s.write(ctx, domainPrefsKey, prefs)
}

// IsDomainEnabled applies the absent-means-enabled rule to the stored prefs.
func (s *SettingsStore) IsDomainEnabled(ctx context.Context, host string) bool {
	return s.GetDomainPrefs(ctx).Enabled(host)
}

func (s *SettingsStore) GetAccount(ctx context.Context) domain.Account {
	var account domain.Account
	if !s.read(ctx, accountKey, &account) {
		return domain.DefaultAccount()
	}
	return account
}

func (s *SettingsStore) SaveAccount(ctx context.Context, account domain.Account) error {
	return s.write(ctx, accountKey, account)
}

func (s *SettingsStore) GetMetrics(ctx context.Context) domain.Metrics {
	var metrics domain.Metrics
	if !s.read(ctx, metricsKey, &metrics) {
		return domain.DefaultMetrics()
	}

	if metrics.LastResetMonth != util.MonthKey(s.now()) {
		return domain.Metrics{LastResetMonth: util.MonthKey(s.now())}
	}

	return metrics
}

// IncrementEnhancementCount bumps the monthly counter, resetting it first when
// the calendar month has rolled over since the last increment.
func (s *SettingsStore) IncrementEnhancementCount(ctx context.Context) (domain.Metrics, error) {
	metrics := s.GetMetrics(ctx)

	month := util.MonthKey(s.now())
	if metrics.LastResetMonth != month {
		metrics = domain.Metrics{LastResetMonth: month}
	}
	metrics.MonthlyEnhancementCount++
	metrics.LastResetMonth = month

	if err := s.write(ctx, metricsKey, metrics); err != nil {
		return metrics, err
	}

	s.logger.Debug("Enhancement count incremented",
		zap.Int("count", metrics.MonthlyEnhancementCount),
		zap.String("month", month),
	)
	return metrics, nil
}

// read returns false on miss, backend failure, or malformed JSON. Callers
// treat all three the same: use defaults.
func (s *SettingsStore) read(ctx context.Context, key string, dest any) bool {
	value, found, err := s.kv.Read(ctx, key)
	if err != nil {
		s.logger.Error("Settings read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if !found {
		return false
	}

	if err := json.Unmarshal([]byte(value), dest); err != nil {
		s.logger.Warn("Settings record malformed, using defaults",
			zap.String("key", key),
			zap.Error(err),
		)
		return false
	}

	return true
}

func (s *SettingsStore) write(ctx context.Context, key string, value any) error {
	jsonData, err := json.Marshal(value)
	if err != nil {
		return errors.NewCacheError("marshal failed", "set", key, err)
	}

	if err := s.kv.Write(ctx, key, string(jsonData)); err != nil {
		s.logger.Error("Settings write failed", zap.String("key", key), zap.Error(err))
		return errors.NewCacheError("set failed", "set", key, err)
	}

	return nil
}
