package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	configPathEnv      = "CVEWATCH_CONFIG"
	databaseDSNEnv     = "DATABASE_DSN"
	redisAddrEnv       = "REDIS_ADDR"
	stateBackendEnv    = "STATE_BACKEND"
	openAIAPIKeyEnv    = "OPENAI_API_KEY"
	chatGPTAPIKeyEnv   = "CHATGPT_API_KEY"
	chatGPTModelEnv    = "CHATGPT_MODEL"
	discordTokenEnv    = "DISCORD_TOKEN"
	discordChannelEnv  = "DISCORD_CHANNEL_ID"
	discordClientEnv   = "DISCORD_CLIENT_ID"
	discordGuildEnv    = "DISCORD_GUILD_ID"
	telegramTokenEnv   = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv  = "TELEGRAM_CHAT_ID"
	nvdAPIKeyEnv       = "NVD_API_KEY"
	portEnv            = "PORT"
	logLevelEnv        = "LOG_LEVEL"
	pollIntervalEnv    = "POLL_INTERVAL"
	defaultStateKey    = "last_cve_id"
	defaultRedisKey    = "cvewatch:last_seen"
	defaultPollEvery   = 5 * time.Minute
	defaultPort        = 8080
	defaultLanguage    = "Korean"
	defaultChatModel   = "gpt-4.1-mini"
	defaultTemperature = 0.2
)

// State backends.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Notification providers.
const (
	ProviderDiscord  = "discord"
	ProviderTelegram = "telegram"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Server        ServerConfig       `yaml:"server"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	State         StateConfig        `yaml:"state"`
	Database      DatabaseConfig     `yaml:"database"`
	Redis         RedisConfig        `yaml:"redis"`
	Feed          FeedConfig         `yaml:"feed"`
	NVD           NVDConfig          `yaml:"nvd"`
	ChatGPT       ChatGPTConfig      `yaml:"chatgpt"`
	Translation   TranslationConfig  `yaml:"translation"`
	Notifications NotificationConfig `yaml:"notifications"`
	Timeouts      TimeoutConfig      `yaml:"timeouts"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// ServerConfig describes the HTTP API listener.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// SchedulerConfig defines how often the feed is polled.
type SchedulerConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// CronSpec renders the interval as a robfig/cron descriptor.
func (s SchedulerConfig) CronSpec() string {
	return "@every " + s.Interval.String()
}

// StateConfig selects where the last-seen id lives.
type StateConfig struct {
	Backend string `yaml:"backend"`
	Key     string `yaml:"key"`
	Retries uint   `yaml:"retries"`
}

// DatabaseConfig describes Postgres connection details.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// RedisConfig describes the Redis state backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

// FeedConfig points at the advisory RSS feed.
type FeedConfig struct {
	URL             string `yaml:"url"`
	SortByPublished *bool  `yaml:"sortByPublished"`
}

// SortEnabled reports whether entries are re-sorted by publish date.
func (f FeedConfig) SortEnabled() bool {
	return f.SortByPublished == nil || *f.SortByPublished
}

// NVDConfig wires the CVE API 2.0 client.
type NVDConfig struct {
	BaseURL           string `yaml:"baseUrl"`
	APIKey            string `yaml:"apiKey"`
	RequestsPerWindow int    `yaml:"requestsPerWindow"`
}

// ChatGPTConfig defines how to contact the ChatGPT API.
type ChatGPTConfig struct {
	Endpoint    string   `yaml:"endpoint"`
	Model       string   `yaml:"model"`
	APIKey      string   `yaml:"apiKey"`
	Temperature *float64 `yaml:"temperature"`
}

// TemperatureValue returns the sampling temperature; zero is a valid setting.
func (c ChatGPTConfig) TemperatureValue() float64 {
	if c.Temperature == nil {
		return defaultTemperature
	}
	return *c.Temperature
}

// TranslationConfig sets the target language for notifications.
type TranslationConfig struct {
	Language string `yaml:"language"`
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	Provider string         `yaml:"provider"`
	Discord  DiscordConfig  `yaml:"discord"`
	Telegram TelegramConfig `yaml:"telegram"`
}

// DiscordConfig holds bot credentials and the alert channel.
type DiscordConfig struct {
	Token     string `yaml:"token"`
	ChannelID string `yaml:"channelId"`
	ClientID  string `yaml:"clientId"`
	GuildID   string `yaml:"guildId"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
	APIBase  string `yaml:"apiBase"`
}

// TimeoutConfig bounds each class of external call.
type TimeoutConfig struct {
	Feed       time.Duration `yaml:"feed"`
	Enrichment time.Duration `yaml:"enrichment"`
	Generation time.Duration `yaml:"generation"`
	Notify     time.Duration `yaml:"notify"`
	State      time.Duration `yaml:"state"`
}

// Load reads .env and YAML configuration (if present) and applies
// environment overrides.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: cannot load .env: %v", err)
	}

	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

// Validate reports settings the service cannot start without.
func (c Config) Validate() error {
	switch c.State.Backend {
	case BackendPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("state backend postgres requires %s", databaseDSNEnv)
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("state backend redis requires %s", redisAddrEnv)
		}
	default:
		return fmt.Errorf("unknown state backend %q", c.State.Backend)
	}

	switch c.Notifications.Provider {
	case ProviderDiscord:
		if c.Notifications.Discord.Token == "" || c.Notifications.Discord.ChannelID == "" {
			return fmt.Errorf("discord notifications require %s and %s", discordTokenEnv, discordChannelEnv)
		}
	case ProviderTelegram:
		if c.Notifications.Telegram.BotToken == "" || c.Notifications.Telegram.ChatID == "" {
			return fmt.Errorf("telegram notifications require %s and %s", telegramTokenEnv, telegramChatIDEnv)
		}
	default:
		return fmt.Errorf("unknown notification provider %q", c.Notifications.Provider)
	}

	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.Scheduler.Interval)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	setString(&c.Logging.Level, logLevelEnv)
	setString(&c.Database.DSN, databaseDSNEnv)
	setString(&c.Redis.Addr, redisAddrEnv)
	setString(&c.ChatGPT.APIKey, chatGPTAPIKeyEnv)
	setString(&c.ChatGPT.APIKey, openAIAPIKeyEnv)
	setString(&c.ChatGPT.Model, chatGPTModelEnv)
	setString(&c.Notifications.Discord.Token, discordTokenEnv)
	setString(&c.Notifications.Discord.ChannelID, discordChannelEnv)
	setString(&c.Notifications.Discord.ClientID, discordClientEnv)
	setString(&c.Notifications.Discord.GuildID, discordGuildEnv)
	setString(&c.Notifications.Telegram.BotToken, telegramTokenEnv)
	setString(&c.Notifications.Telegram.ChatID, telegramChatIDEnv)
	setString(&c.NVD.APIKey, nvdAPIKeyEnv)

	if v := os.Getenv(stateBackendEnv); v != "" {
		c.State.Backend = strings.ToLower(strings.TrimSpace(v))
	}

	if v := os.Getenv(portEnv); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Server.Port = port
		} else {
			log.Printf("config: ignoring invalid %s=%q", portEnv, v)
		}
	}

	if v := os.Getenv(pollIntervalEnv); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.Scheduler.Interval = d
		} else {
			log.Printf("config: ignoring invalid %s=%q", pollIntervalEnv, v)
		}
	}
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func mergeConfig(base, override Config) Config {
	mergeString(&base.Logging.Level, override.Logging.Level)

	if override.Server.Port > 0 {
		base.Server.Port = override.Server.Port
	}
	if override.Scheduler.Interval > 0 {
		base.Scheduler.Interval = override.Scheduler.Interval
	}

	mergeString(&base.State.Backend, strings.ToLower(override.State.Backend))
	mergeString(&base.State.Key, override.State.Key)
	if override.State.Retries > 0 {
		base.State.Retries = override.State.Retries
	}

	mergeString(&base.Database.DSN, override.Database.DSN)

	mergeString(&base.Redis.Addr, override.Redis.Addr)
	mergeString(&base.Redis.Password, override.Redis.Password)
	mergeString(&base.Redis.Key, override.Redis.Key)
	if override.Redis.DB > 0 {
		base.Redis.DB = override.Redis.DB
	}

	mergeString(&base.Feed.URL, override.Feed.URL)
	if override.Feed.SortByPublished != nil {
		base.Feed.SortByPublished = override.Feed.SortByPublished
	}

	mergeString(&base.NVD.BaseURL, override.NVD.BaseURL)
	mergeString(&base.NVD.APIKey, override.NVD.APIKey)
	if override.NVD.RequestsPerWindow > 0 {
		base.NVD.RequestsPerWindow = override.NVD.RequestsPerWindow
	}

	mergeString(&base.ChatGPT.Endpoint, override.ChatGPT.Endpoint)
	mergeString(&base.ChatGPT.Model, override.ChatGPT.Model)
	mergeString(&base.ChatGPT.APIKey, override.ChatGPT.APIKey)
	if override.ChatGPT.Temperature != nil {
		base.ChatGPT.Temperature = override.ChatGPT.Temperature
	}

	mergeString(&base.Translation.Language, override.Translation.Language)

	mergeString(&base.Notifications.Provider, strings.ToLower(override.Notifications.Provider))
	mergeString(&base.Notifications.Discord.Token, override.Notifications.Discord.Token)
	mergeString(&base.Notifications.Discord.ChannelID, override.Notifications.Discord.ChannelID)
	mergeString(&base.Notifications.Discord.ClientID, override.Notifications.Discord.ClientID)
	mergeString(&base.Notifications.Discord.GuildID, override.Notifications.Discord.GuildID)
	mergeString(&base.Notifications.Telegram.BotToken, override.Notifications.Telegram.BotToken)
	mergeString(&base.Notifications.Telegram.ChatID, override.Notifications.Telegram.ChatID)
	mergeString(&base.Notifications.Telegram.APIBase, override.Notifications.Telegram.APIBase)

	mergeDuration(&base.Timeouts.Feed, override.Timeouts.Feed)
	mergeDuration(&base.Timeouts.Enrichment, override.Timeouts.Enrichment)
	mergeDuration(&base.Timeouts.Generation, override.Timeouts.Generation)
	mergeDuration(&base.Timeouts.Notify, override.Timeouts.Notify)
	mergeDuration(&base.Timeouts.State, override.Timeouts.State)

	return base
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func mergeDuration(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}

func defaultConfig() Config {
	return Config{
		Logging:   LoggingConfig{Level: "info"},
		Server:    ServerConfig{Port: defaultPort},
		Scheduler: SchedulerConfig{Interval: defaultPollEvery},
		State:     StateConfig{Backend: BackendPostgres, Key: defaultStateKey, Retries: 3},
		Database:  DatabaseConfig{DSN: ""},
		Redis:     RedisConfig{Key: defaultRedisKey},
		Feed:      FeedConfig{URL: "https://nvd.nist.gov/feeds/xml/cve/misc/nvd-rss.xml"},
		NVD:       NVDConfig{BaseURL: "https://services.nvd.nist.gov/rest/json/cves/2.0"},
		ChatGPT: ChatGPTConfig{
			Endpoint: "https://api.openai.com/v1/chat/completions",
			Model:    defaultChatModel,
		},
		Translation:   TranslationConfig{Language: defaultLanguage},
		Notifications: NotificationConfig{Provider: ProviderDiscord},
		Timeouts: TimeoutConfig{
			Feed:       20 * time.Second,
			Enrichment: 15 * time.Second,
			Generation: 30 * time.Second,
			Notify:     10 * time.Second,
			State:      5 * time.Second,
		},
	}
}
