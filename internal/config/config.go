package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	defaultServiceName         = "radar"
	defaultPollIntervalSec     = 5
	defaultRecoveryDelaySec    = 10
	defaultRecoveryMaxSec      = 120
	defaultSourceTimeoutSec    = 5
	defaultDedupWindowSec      = 300
	defaultDedupMaxEntries     = 512
	defaultPriorityResetSec    = 1200
	defaultReminderIntervalSec = 900
	defaultDayOffsetHours      = 2
	defaultHTTPListen          = ":8080"
	defaultHealthPath          = "/healthz"
	defaultReadyPath           = "/readyz"
	defaultStatusPath          = "/api/alerts"
	defaultMapStatusPath       = "/api/map/alerts"
	defaultMetricsPath         = "/metrics"
	defaultFeedIngestPath      = "/feed"
	defaultFeedMaxBodyBytes    = 1 << 20
	defaultFeedSubject         = "radar.feed"
	defaultFeedStream          = "RADAR_FEED"
	defaultFeedConsumer        = "radar-feed"
	defaultFeedDeliverGroup    = "radar-workers"
	defaultFeedAckWaitSec      = 30
	defaultFeedNackDelayMS     = 1000
	defaultFeedMaxDeliver      = 5
	defaultFeedMaxAckPending   = 256
	defaultTelegramAPIBase     = "https://api.telegram.org"
	defaultRetryAttempts       = 3
	defaultRetryInitialMS      = 2000
	defaultRetryMaxMS          = 30000

	// envBotToken overrides notify.telegram.bot_token.
	envBotToken = "RADAR_BOT_TOKEN"
	// envChatID overrides notify.telegram.chat_id.
	envChatID = "RADAR_CHAT_ID"
	// envSourceToken overrides source.token.
	envSourceToken = "RADAR_SOURCE_TOKEN"

	// ParseModeMarkdown is legacy Telegram Markdown formatting.
	ParseModeMarkdown = "markdown"
	// ParseModeMarkdownV2 is strict Telegram MarkdownV2 formatting (escaping required).
	ParseModeMarkdownV2 = "markdownv2"
	// ParseModeHTML is Telegram HTML formatting.
	ParseModeHTML = "html"

	// UnmatchedDrop drops free-text items without a recognized location.
	UnmatchedDrop = "drop"
	// UnmatchedAreaWide attributes unmatched free-text items to the whole area.
	UnmatchedAreaWide = "area-wide"
)

// Config holds radar service runtime settings.
// Params: TOML sections decoded from one config file.
// Returns: validated runtime configuration.
type Config struct {
	Service  ServiceConfig  `toml:"service"`
	Log      LogConfig      `toml:"log"`
	Source   SourceConfig   `toml:"source"`
	Area     AreaConfig     `toml:"area"`
	Classify ClassifyConfig `toml:"classify"`
	Dedup    DedupConfig    `toml:"dedup"`
	Priority PriorityConfig `toml:"priority"`
	Session  SessionConfig  `toml:"session"`
	Daily    DailyConfig    `toml:"daily"`
	Feed     FeedConfig     `toml:"feed"`
	HTTP     HTTPConfig     `toml:"http"`
	Notify   NotifyConfig   `toml:"notify"`
}

// ServiceConfig contains process-level settings.
// Params: name, poll cadence, and tick failure recovery delays.
// Returns: service behavior defaults.
type ServiceConfig struct {
	Name                string `toml:"name"`
	PollIntervalSec     int    `toml:"poll_interval_sec"`
	RecoveryDelaySec    int    `toml:"recovery_delay_sec"`
	RecoveryMaxDelaySec int    `toml:"recovery_max_delay_sec"`
}

// LogConfig contains console/file logging sinks.
// Params: sink settings for each output target.
// Returns: logger setup options.
type LogConfig struct {
	Console LogSinkConfig `toml:"console"`
	File    LogSinkConfig `toml:"file"`
}

// LogSinkConfig defines one logging sink.
// Params: sink enable flag, level, format, and path.
// Returns: sink-specific behavior.
type LogSinkConfig struct {
	Enabled bool   `toml:"enabled"`
	Level   string `toml:"level"`
	Format  string `toml:"format"`
	Path    string `toml:"path"`
}

// SourceConfig defines the hazard-status data source fetch.
// Params: endpoint URL, bearer token, and request timeout.
// Returns: poll fetch settings.
type SourceConfig struct {
	URL        string `toml:"url"`
	Token      string `toml:"token"`
	TimeoutSec int    `toml:"timeout_sec"`
}

// AreaConfig scopes the tracked area of interest.
// Params: area name with aliases, sub-unit list, and direction phrases.
// Returns: region normalizer vocabulary.
type AreaConfig struct {
	Name       string     `toml:"name"`
	Aliases    []string   `toml:"aliases"`
	Unit       []AreaUnit `toml:"unit"`
	Directions []string   `toml:"directions"`
}

// AreaUnit defines one canonical sub-unit of the area of interest.
// Params: canonical unit name and match aliases.
// Returns: one normalizer vocabulary entry.
type AreaUnit struct {
	Name    string   `toml:"name"`
	Aliases []string `toml:"aliases"`
}

// ClassifyConfig extends built-in threat patterns.
// Params: extra case-insensitive patterns keyed by category name.
// Returns: classifier vocabulary additions.
type ClassifyConfig struct {
	Extra map[string][]string `toml:"extra"`
}

// DedupConfig bounds the duplicate suppression window.
// Params: retention window, entry cap, and optional state file path.
// Returns: deduplicator settings.
type DedupConfig struct {
	WindowSec  int    `toml:"window_sec"`
	MaxEntries int    `toml:"max_entries"`
	StatePath  string `toml:"state_path"`
}

// PriorityConfig controls the escalation gate reset window.
// Params: seconds after which the remembered level resets to zero.
// Returns: priority gate settings.
type PriorityConfig struct {
	ResetSec int `toml:"reset_sec"`
}

// SessionConfig controls session lifecycle behavior.
// Params: reminder cadence and the short-session end suppression floor.
// Returns: session state machine settings.
type SessionConfig struct {
	ReminderIntervalSec int  `toml:"reminder_interval_sec"`
	MinDurationMin      int  `toml:"min_duration_min"`
	SuppressShortEnd    bool `toml:"suppress_short_end"`
}

// DailyConfig controls the same-day aggregation boundary.
// Params: fixed offset from UTC defining the local day.
// Returns: daily aggregator settings.
type DailyConfig struct {
	UTCOffsetHours int `toml:"utc_offset_hours"`
}

// FeedConfig defines the optional free-text feed path.
// Params: unmatched-location policy and HTTP/NATS ingest settings.
// Returns: free-text pipeline options.
type FeedConfig struct {
	Unmatched string         `toml:"unmatched"`
	HTTP      FeedHTTPConfig `toml:"http"`
	NATS      FeedNATSConfig `toml:"nats"`
}

// FeedHTTPConfig configures the HTTP feed ingest endpoint.
// Params: enable flag, path, and request body cap.
// Returns: HTTP ingest behavior.
type FeedHTTPConfig struct {
	Enabled      bool   `toml:"enabled"`
	Path         string `toml:"path"`
	MaxBodyBytes int64  `toml:"max_body_bytes"`
}

// FeedNATSConfig configures the JetStream queue-consumer feed ingest.
// Params: connection URLs, stream routing, and ack/redelivery policy.
// Returns: NATS ingest behavior.
type FeedNATSConfig struct {
	Enabled       bool     `toml:"enabled"`
	URL           []string `toml:"url"`
	Subject       string   `toml:"subject"`
	Stream        string   `toml:"stream"`
	ConsumerName  string   `toml:"consumer_name"`
	DeliverGroup  string   `toml:"deliver_group"`
	AckWaitSec    int      `toml:"ack_wait_sec"`
	NackDelayMS   int      `toml:"nack_delay_ms"`
	MaxDeliver    int      `toml:"max_deliver"`
	MaxAckPending int      `toml:"max_ack_pending"`
}

// HTTPConfig defines the status/observability HTTP server.
// Params: listen address and endpoint paths.
// Returns: status server routing.
type HTTPConfig struct {
	Listen      string `toml:"listen"`
	HealthPath  string `toml:"health_path"`
	ReadyPath   string `toml:"ready_path"`
	StatusPath  string `toml:"status_path"`
	MapPath     string `toml:"map_path"`
	MetricsPath string `toml:"metrics_path"`
}

// NotifyConfig defines outbound notification behavior.
// Params: Telegram transport settings and message template overrides.
// Returns: notification controls.
type NotifyConfig struct {
	Telegram  TelegramNotifier  `toml:"telegram"`
	Templates map[string]string `toml:"templates"`
}

// TelegramNotifier defines the Telegram delivery channel.
// Params: enabled flag, credentials, API base, parse mode, and retry policy.
// Returns: Telegram sender configuration.
type TelegramNotifier struct {
	Enabled   bool        `toml:"enabled"`
	BotToken  string      `toml:"bot_token"`
	ChatID    string      `toml:"chat_id"`
	APIBase   string      `toml:"api_base"`
	ParseMode string      `toml:"parse_mode"`
	Retry     NotifyRetry `toml:"retry"`
}

// NotifyRetry configures outbound delivery retries.
// Params: attempt limit, backoff bounds, and per-attempt logging.
// Returns: retry policy for the dispatcher.
type NotifyRetry struct {
	MaxAttempts    int  `toml:"max_attempts"`
	InitialMS      int  `toml:"initial_ms"`
	MaxMS          int  `toml:"max_ms"`
	LogEachAttempt bool `toml:"log_each_attempt"`
}

// Load reads, defaults, and validates one TOML configuration file.
// Params: file path to config snapshot.
// Returns: validated config or read/decode/validation error.
func Load(path string) (Config, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %q: %w", path, err)
	}
	var cfg Config
	if err := toml.Unmarshal(body, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config file %q: %w", path, err)
	}
	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnvOverrides injects secrets from process environment over file values.
// Params: cfg pointer to decoded snapshot.
// Returns: overrides applied in place.
func applyEnvOverrides(cfg *Config) {
	if value := strings.TrimSpace(os.Getenv(envBotToken)); value != "" {
		cfg.Notify.Telegram.BotToken = value
	}
	if value := strings.TrimSpace(os.Getenv(envChatID)); value != "" {
		cfg.Notify.Telegram.ChatID = value
	}
	if value := strings.TrimSpace(os.Getenv(envSourceToken)); value != "" {
		cfg.Source.Token = value
	}
}

// applyDefaults fills omitted config fields with safe defaults.
// Params: cfg pointer to decoded snapshot.
// Returns: defaults applied in place.
func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Service.Name) == "" {
		cfg.Service.Name = defaultServiceName
	}
	if cfg.Service.PollIntervalSec <= 0 {
		cfg.Service.PollIntervalSec = defaultPollIntervalSec
	}
	if cfg.Service.RecoveryDelaySec <= 0 {
		cfg.Service.RecoveryDelaySec = defaultRecoveryDelaySec
	}
	if cfg.Service.RecoveryMaxDelaySec <= 0 {
		cfg.Service.RecoveryMaxDelaySec = defaultRecoveryMaxSec
	}

	if cfg.Log.Console.Level == "" {
		cfg.Log.Console.Level = "info"
	}
	if cfg.Log.Console.Format == "" {
		cfg.Log.Console.Format = "line"
	}
	if !cfg.Log.Console.Enabled && !cfg.Log.File.Enabled {
		cfg.Log.Console.Enabled = true
	}
	if cfg.Log.File.Level == "" {
		cfg.Log.File.Level = "info"
	}
	if cfg.Log.File.Format == "" {
		cfg.Log.File.Format = "json"
	}

	if cfg.Source.TimeoutSec <= 0 {
		cfg.Source.TimeoutSec = defaultSourceTimeoutSec
	}

	if strings.TrimSpace(cfg.Area.Name) == "" {
		cfg.Area.Name = "Харківська область"
		cfg.Area.Aliases = []string{"харків", "kharkiv"}
	}
	if len(cfg.Area.Unit) == 0 {
		cfg.Area.Unit = defaultAreaUnits()
	}
	if len(cfg.Area.Directions) == 0 {
		cfg.Area.Directions = []string{"з півночі", "з півдня", "зі сходу", "з заходу"}
	}

	if cfg.Dedup.WindowSec <= 0 {
		cfg.Dedup.WindowSec = defaultDedupWindowSec
	}
	if cfg.Dedup.MaxEntries <= 0 {
		cfg.Dedup.MaxEntries = defaultDedupMaxEntries
	}
	if cfg.Priority.ResetSec <= 0 {
		cfg.Priority.ResetSec = defaultPriorityResetSec
	}
	if cfg.Session.ReminderIntervalSec <= 0 {
		cfg.Session.ReminderIntervalSec = defaultReminderIntervalSec
	}
	if cfg.Daily.UTCOffsetHours == 0 {
		cfg.Daily.UTCOffsetHours = defaultDayOffsetHours
	}

	if strings.TrimSpace(cfg.Feed.Unmatched) == "" {
		cfg.Feed.Unmatched = UnmatchedDrop
	}
	cfg.Feed.Unmatched = strings.ToLower(strings.TrimSpace(cfg.Feed.Unmatched))
	if strings.TrimSpace(cfg.Feed.HTTP.Path) == "" {
		cfg.Feed.HTTP.Path = defaultFeedIngestPath
	}
	if cfg.Feed.HTTP.MaxBodyBytes <= 0 {
		cfg.Feed.HTTP.MaxBodyBytes = defaultFeedMaxBodyBytes
	}
	applyFeedNATSDefaults(&cfg.Feed.NATS)

	if strings.TrimSpace(cfg.HTTP.Listen) == "" {
		cfg.HTTP.Listen = defaultHTTPListen
	}
	if strings.TrimSpace(cfg.HTTP.HealthPath) == "" {
		cfg.HTTP.HealthPath = defaultHealthPath
	}
	if strings.TrimSpace(cfg.HTTP.ReadyPath) == "" {
		cfg.HTTP.ReadyPath = defaultReadyPath
	}
	if strings.TrimSpace(cfg.HTTP.StatusPath) == "" {
		cfg.HTTP.StatusPath = defaultStatusPath
	}
	if strings.TrimSpace(cfg.HTTP.MapPath) == "" {
		cfg.HTTP.MapPath = defaultMapStatusPath
	}
	if strings.TrimSpace(cfg.HTTP.MetricsPath) == "" {
		cfg.HTTP.MetricsPath = defaultMetricsPath
	}

	if strings.TrimSpace(cfg.Notify.Telegram.APIBase) == "" {
		cfg.Notify.Telegram.APIBase = defaultTelegramAPIBase
	}
	if strings.TrimSpace(cfg.Notify.Telegram.ParseMode) == "" {
		cfg.Notify.Telegram.ParseMode = ParseModeMarkdown
	}
	cfg.Notify.Telegram.ParseMode = strings.ToLower(strings.TrimSpace(cfg.Notify.Telegram.ParseMode))
	if cfg.Notify.Telegram.Retry.MaxAttempts <= 0 {
		cfg.Notify.Telegram.Retry.MaxAttempts = defaultRetryAttempts
	}
	if cfg.Notify.Telegram.Retry.InitialMS <= 0 {
		cfg.Notify.Telegram.Retry.InitialMS = defaultRetryInitialMS
	}
	if cfg.Notify.Telegram.Retry.MaxMS <= 0 {
		cfg.Notify.Telegram.Retry.MaxMS = defaultRetryMaxMS
	}
}

// applyFeedNATSDefaults fills omitted NATS ingest fields.
// Params: cfg pointer to feed NATS section.
// Returns: defaults applied in place.
func applyFeedNATSDefaults(cfg *FeedNATSConfig) {
	if strings.TrimSpace(cfg.Subject) == "" {
		cfg.Subject = defaultFeedSubject
	}
	if strings.TrimSpace(cfg.Stream) == "" {
		cfg.Stream = defaultFeedStream
	}
	if strings.TrimSpace(cfg.ConsumerName) == "" {
		cfg.ConsumerName = defaultFeedConsumer
	}
	if strings.TrimSpace(cfg.DeliverGroup) == "" {
		cfg.DeliverGroup = defaultFeedDeliverGroup
	}
	if cfg.AckWaitSec <= 0 {
		cfg.AckWaitSec = defaultFeedAckWaitSec
	}
	if cfg.NackDelayMS <= 0 {
		cfg.NackDelayMS = defaultFeedNackDelayMS
	}
	if cfg.MaxDeliver == 0 {
		cfg.MaxDeliver = defaultFeedMaxDeliver
	}
	if cfg.MaxAckPending <= 0 {
		cfg.MaxAckPending = defaultFeedMaxAckPending
	}
}

// defaultAreaUnits returns built-in Kharkiv district vocabulary.
// Params: none.
// Returns: canonical sub-unit list with match aliases.
func defaultAreaUnits() []AreaUnit {
	return []AreaUnit{
		{Name: "Центр", Aliases: []string{"центр"}},
		{Name: "Салтівка", Aliases: []string{"салтівка", "салтовка"}},
		{Name: "Павлове Поле", Aliases: []string{"павлове поле", "павлово поле"}},
		{Name: "Олексіївка", Aliases: []string{"олексіївка", "алексеевка"}},
		{Name: "ХТЗ", Aliases: []string{"хтз"}},
		{Name: "Нові Будинки", Aliases: []string{"нові будинки", "новые дома"}},
	}
}

// validateConfig checks required fields and cross-field constraints.
// Params: cfg is defaulted snapshot.
// Returns: first validation error.
func validateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.Source.URL) == "" {
		return errors.New("source.url is required")
	}
	if strings.TrimSpace(cfg.Source.Token) == "" {
		return fmt.Errorf("source.token is required (or set %s)", envSourceToken)
	}
	if cfg.Notify.Telegram.Enabled {
		if strings.TrimSpace(cfg.Notify.Telegram.BotToken) == "" {
			return fmt.Errorf("notify.telegram.bot_token is required (or set %s)", envBotToken)
		}
		if strings.TrimSpace(cfg.Notify.Telegram.ChatID) == "" {
			return fmt.Errorf("notify.telegram.chat_id is required (or set %s)", envChatID)
		}
	}
	switch cfg.Notify.Telegram.ParseMode {
	case ParseModeMarkdown, ParseModeMarkdownV2, ParseModeHTML:
	default:
		return fmt.Errorf("notify.telegram.parse_mode %q is not supported", cfg.Notify.Telegram.ParseMode)
	}
	switch cfg.Feed.Unmatched {
	case UnmatchedDrop, UnmatchedAreaWide:
	default:
		return fmt.Errorf("feed.unmatched %q is not supported (use %q or %q)", cfg.Feed.Unmatched, UnmatchedDrop, UnmatchedAreaWide)
	}
	if cfg.Feed.NATS.Enabled && len(cfg.Feed.NATS.URL) == 0 {
		return errors.New("feed.nats.url is required when feed.nats.enabled")
	}
	if cfg.Session.MinDurationMin < 0 {
		return errors.New("session.min_duration_min must not be negative")
	}
	for _, unit := range cfg.Area.Unit {
		if strings.TrimSpace(unit.Name) == "" {
			return errors.New("area.unit.name must not be empty")
		}
	}
	return nil
}
