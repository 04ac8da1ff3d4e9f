package tracker

import (
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/utrack/internal/browser"
	"github.com/hazyhaar/utrack/internal/collector"
	"github.com/hazyhaar/utrack/internal/transport"
)

// Options is the merged, validated configuration a Tracker runs with.
type Options struct {
	Enabled       bool              `yaml:"enabled"`
	AppName       string            `yaml:"app_name"`
	AppVersion    string            `yaml:"app_version"`
	Endpoint      string            `yaml:"endpoint"`
	Mechanism     transport.Mechanism `yaml:"mechanism"`
	BatchSize     int               `yaml:"batch_size"`
	BatchInterval time.Duration     `yaml:"batch_interval"`
	QueueCapacity int               `yaml:"queue_capacity"`
	DedupCapacity int               `yaml:"dedup_capacity"`
	AutoPageView  bool              `yaml:"auto_page_view"`

	SampleRate       float64          `yaml:"sample_rate"`
	AdvancedSampling AdvancedSampling `yaml:"advanced_sampling"`

	UserID           string         `yaml:"user_id"`
	GlobalProperties map[string]any `yaml:"global_properties"`

	Browser    BrowserOptions    `yaml:"browser"`
	Collectors CollectorOptions  `yaml:"collectors"`
	Retry      transport.RetryPolicy `yaml:"retry"`
	Offline    OfflineOptions    `yaml:"offline"`

	Logger *slog.Logger `yaml:"-"`
}

// AdvancedSampling, when Enabled, replaces the simplified SampleRate
// field: SampleRate is then not read.
type AdvancedSampling struct {
	Enabled  bool               `yaml:"enabled"`
	PerType  map[string]float64 `yaml:"per_type"`
	Global   float64            `yaml:"global"`
	Consistent bool             `yaml:"consistent"` // not read: sampling hashes on UserID whenever one is set
}

type BrowserOptions struct {
	Remote           string                `yaml:"remote"`
	MemoryLimit      int64                 `yaml:"memory_limit"`
	RecycleInterval  time.Duration         `yaml:"recycle_interval"`
	ResourceBlocking []string              `yaml:"resource_blocking"`
	Stealth          string                `yaml:"stealth"` // headless | headful
	XvfbDisplay      string                `yaml:"xvfb_display"`
}

// ToBrowserConfig converts tracker-facing browser options into the
// browser package's launch configuration.
func (b BrowserOptions) ToBrowserConfig(logger *slog.Logger) browser.Config {
	level := browser.LevelHeadless
	if b.Stealth == "headful" {
		level = browser.LevelHeadful
	}
	return browser.Config{
		RemoteURL:        b.Remote,
		MemoryLimit:      b.MemoryLimit,
		RecycleInterval:  b.RecycleInterval,
		ResourceBlocking: b.ResourceBlocking,
		Stealth:          level,
		XvfbDisplay:      b.XvfbDisplay,
		Logger:           logger,
	}
}

type CollectorOptions struct {
	Click      ClickOptions      `yaml:"click"`
	Scroll     ScrollOptions     `yaml:"scroll"`
	Input      InputOptions      `yaml:"input"`
	Navigation ToggleOptions     `yaml:"navigation"`
	Error      ErrorOptions      `yaml:"error"`
	Perf       PerfOptions       `yaml:"performance"`
	Exposure   ExposureOptions   `yaml:"exposure"`
}

type ToggleOptions struct {
	Enabled bool `yaml:"enabled"`
}

type ClickOptions struct {
	Enabled               bool     `yaml:"enabled"`
	DebounceDelayMS       int      `yaml:"debounce_delay_ms"`
	BubbleToClickable     bool     `yaml:"bubble_to_clickable"`
	IgnoreSelectors       []string `yaml:"ignore_selectors"`
	TrackDoubleClick      bool     `yaml:"track_double_click"`
	TrackContextMenu      bool     `yaml:"track_context_menu"`
}

func (c ClickOptions) toConfig() collector.ClickConfig {
	return collector.ClickConfig{
		DebounceDelayMS:   c.DebounceDelayMS,
		BubbleToClickable: c.BubbleToClickable,
		IgnoreSelectors:   c.IgnoreSelectors,
		TrackDoubleClick:  c.TrackDoubleClick,
		TrackContextMenu:  c.TrackContextMenu,
	}
}

type ScrollOptions struct {
	Enabled    bool  `yaml:"enabled"`
	ThrottleMS int   `yaml:"throttle_ms"`
	Thresholds []int `yaml:"thresholds"`
}

func (s ScrollOptions) toConfig() collector.ScrollConfig {
	return collector.ScrollConfig{ThrottleMS: s.ThrottleMS, Thresholds: s.Thresholds}
}

type InputOptions struct {
	Enabled           bool     `yaml:"enabled"`
	SensitivePatterns []string `yaml:"sensitive_patterns"`
	ValueMaxLen       int      `yaml:"value_max_len"`
	IncludeValue      bool     `yaml:"include_value"`
}

func (i InputOptions) toConfig() collector.InputConfig {
	return collector.InputConfig{SensitivePatterns: i.SensitivePatterns, ValueMaxLen: i.ValueMaxLen, IncludeValue: i.IncludeValue}
}

type ErrorOptions struct {
	Enabled        bool     `yaml:"enabled"`
	SampleRate     float64  `yaml:"sample_rate"`
	IgnorePatterns []string `yaml:"ignore_patterns"`
}

func (e ErrorOptions) toConfig() collector.ErrorConfig {
	cfg := collector.DefaultErrorConfig()
	if e.SampleRate > 0 {
		cfg.SampleRate = e.SampleRate
	}
	if len(e.IgnorePatterns) > 0 {
		cfg.IgnorePatterns = append(cfg.IgnorePatterns, e.IgnorePatterns...)
	}
	return cfg
}

type PerfOptions struct {
	Enabled             bool   `yaml:"enabled"`
	LongTaskThresholdMS int    `yaml:"long_task_threshold_ms"`
	ResourceCap         int    `yaml:"resource_cap"`
}

func (p PerfOptions) toConfig(ownEndpoint string) collector.PerfConfig {
	cfg := collector.DefaultPerfConfig()
	if p.LongTaskThresholdMS > 0 {
		cfg.LongTaskThresholdMS = p.LongTaskThresholdMS
	}
	if p.ResourceCap > 0 {
		cfg.ResourceCap = p.ResourceCap
	}
	cfg.OwnEndpoint = ownEndpoint
	return cfg
}

type ExposureOptions struct {
	Enabled     bool        `yaml:"enabled"`
	Threshold   interface{} `yaml:"threshold"`
	Selectors   []string    `yaml:"selectors"`
	MinDuration int         `yaml:"min_duration_ms"`
	TriggerOnce bool        `yaml:"trigger_once"`
}

func (x ExposureOptions) toConfig() collector.ExposureConfig {
	cfg := collector.DefaultExposureConfig()
	if x.Threshold != nil {
		cfg.Threshold = x.Threshold
	}
	if len(x.Selectors) > 0 {
		cfg.Selectors = x.Selectors
	}
	if x.MinDuration > 0 {
		cfg.MinDuration = x.MinDuration
	}
	cfg.TriggerOnce = x.TriggerOnce
	return cfg
}

type OfflineOptions struct {
	Enabled    bool          `yaml:"enabled"`
	Path       string        `yaml:"path"`
	MaxEvents  int           `yaml:"max_events"`
	ExpireTime time.Duration `yaml:"expire_time"`
}

// DefaultOptions returns the baseline configuration every field in this
// package falls back to when a YAML file or functional option leaves it
// unset.
func DefaultOptions() Options {
	return Options{
		Enabled:       true,
		Mechanism:     transport.MechanismFetch,
		BatchSize:     20,
		BatchInterval: 5 * time.Second,
		QueueCapacity: 1000,
		DedupCapacity: 1000,
		AutoPageView:  true,
		SampleRate:    1.0,
		Browser: BrowserOptions{
			MemoryLimit:     1 << 30,
			RecycleInterval: 4 * time.Hour,
			Stealth:         "headless",
			XvfbDisplay:     ":99",
		},
		Collectors: CollectorOptions{
			Click:      ClickOptions{Enabled: true, DebounceDelayMS: 100, BubbleToClickable: true, TrackDoubleClick: true},
			Scroll:     ScrollOptions{Enabled: true, ThrottleMS: 500, Thresholds: []int{25, 50, 75, 100}},
			Input:      InputOptions{Enabled: true, ValueMaxLen: 200},
			Navigation: ToggleOptions{Enabled: true},
			Error:      ErrorOptions{Enabled: true, SampleRate: 1.0},
			Perf:       PerfOptions{Enabled: true, LongTaskThresholdMS: 50, ResourceCap: 50},
			Exposure:   ExposureOptions{Enabled: false, Threshold: 0.5, MinDuration: 1000, TriggerOnce: true},
		},
		Retry: transport.RetryPolicy{MaxRetries: 3, BaseDelay: 500 * time.Millisecond, MaxDelay: 10 * time.Second, ExponentialBackoff: true},
		Offline: OfflineOptions{
			Enabled:    true,
			Path:       "utrack-offline.db",
			MaxEvents:  500,
			ExpireTime: 24 * time.Hour,
		},
	}
}

// LoadFile reads YAML configuration layered on top of DefaultOptions.
func LoadFile(path string) (Options, error) {
	opts := DefaultOptions()
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, err
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, err
	}
	return opts, nil
}

// Option mutates an Options value during programmatic construction.
type Option func(*Options)

func WithEndpoint(url string) Option { return func(o *Options) { o.Endpoint = url } }
func WithAppName(name, version string) Option {
	return func(o *Options) { o.AppName = name; o.AppVersion = version }
}
func WithLogger(logger *slog.Logger) Option { return func(o *Options) { o.Logger = logger } }
func WithSampleRate(rate float64) Option    { return func(o *Options) { o.SampleRate = rate } }
func WithBatch(size int, interval time.Duration) Option {
	return func(o *Options) { o.BatchSize = size; o.BatchInterval = interval }
}

func (o *Options) apply(opts ...Option) {
	for _, fn := range opts {
		fn(o)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// merge overlays non-zero fields of partial onto o, used by
// Tracker.UpdateOptions for a partial runtime update.
func (o *Options) merge(partial Options) {
	if partial.BatchSize > 0 {
		o.BatchSize = partial.BatchSize
	}
	if partial.BatchInterval > 0 {
		o.BatchInterval = partial.BatchInterval
	}
	if partial.SampleRate > 0 {
		o.SampleRate = partial.SampleRate
	}
	if partial.Endpoint != "" {
		o.Endpoint = partial.Endpoint
	}
	if partial.UserID != "" {
		o.UserID = partial.UserID
	}
	if partial.GlobalProperties != nil {
		if o.GlobalProperties == nil {
			o.GlobalProperties = make(map[string]any)
		}
		for k, v := range partial.GlobalProperties {
			o.GlobalProperties[k] = v
		}
	}
}
