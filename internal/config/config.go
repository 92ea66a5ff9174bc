package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type Config struct {
	Environment  string
	HTTPAddr     string
	DataDir      string
	DBPath       string
	StagingDir   string
	CatalogPath  string
	WatchCatalog bool

	TelegramToken      string
	TelegramAPI        string
	TelegramPoll       int
	CommandSyncEnabled bool

	JiraBaseURL      string
	JiraEmail        string
	JiraAPIToken     string
	JiraProjectKey   string
	JiraBugParentKey string
	JiraReporterID   string
	TicketTimezone   string

	DispatchShards    int
	DispatchQueueSize int

	MaxAttachmentMB      int
	StagingMaxAgeMin     int
	RefreshSchedule      string
	RefreshOnStart       bool
	PurgeSchedule        string
	ResetStatesOnStart   bool
	HeartbeatEnabled     bool
	HeartbeatIntervalSec int
	HeartbeatStaleSec    int
}

func FromEnv() Config {
	dataDir := stringOrDefault("INTAKEBOT_DATA_DIR", "/data")

	return Config{
		Environment:  stringOrDefault("INTAKEBOT_ENV", "development"),
		HTTPAddr:     httpAddr(),
		DataDir:      dataDir,
		DBPath:       stringOrDefault("INTAKEBOT_DB_PATH", filepath.Join(dataDir, "intakebot.sqlite")),
		StagingDir:   stringOrDefault("INTAKEBOT_STAGING_DIR", filepath.Join(dataDir, "uploads")),
		CatalogPath:  strings.TrimSpace(os.Getenv("INTAKEBOT_CATALOG_FILE")),
		WatchCatalog: boolOrDefault("INTAKEBOT_WATCH_CATALOG", true),

		TelegramToken:      strings.TrimSpace(os.Getenv("INTAKEBOT_TELEGRAM_TOKEN")),
		TelegramAPI:        stringOrDefault("INTAKEBOT_TELEGRAM_API_BASE", "https://api.telegram.org"),
		TelegramPoll:       intOrDefault("INTAKEBOT_TELEGRAM_POLL_SECONDS", 25),
		CommandSyncEnabled: boolOrDefault("INTAKEBOT_COMMAND_SYNC_ENABLED", true),

		JiraBaseURL:      strings.TrimSpace(os.Getenv("INTAKEBOT_JIRA_URL")),
		JiraEmail:        strings.TrimSpace(os.Getenv("INTAKEBOT_JIRA_EMAIL")),
		JiraAPIToken:     strings.TrimSpace(os.Getenv("INTAKEBOT_JIRA_API_TOKEN")),
		JiraProjectKey:   stringOrDefault("INTAKEBOT_JIRA_PROJECT_KEY", "MOP"),
		JiraBugParentKey: strings.TrimSpace(os.Getenv("INTAKEBOT_JIRA_BUG_PARENT_KEY")),
		JiraReporterID:   strings.TrimSpace(os.Getenv("INTAKEBOT_JIRA_REPORTER_ID")),
		TicketTimezone:   stringOrDefault("INTAKEBOT_TICKET_TIMEZONE", "UTC"),

		DispatchShards:    intOrDefault("INTAKEBOT_DISPATCH_SHARDS", 8),
		DispatchQueueSize: intOrDefault("INTAKEBOT_DISPATCH_QUEUE_SIZE", 64),

		MaxAttachmentMB:      intOrDefault("INTAKEBOT_MAX_ATTACHMENT_MB", 20),
		StagingMaxAgeMin:     intOrDefault("INTAKEBOT_STAGING_MAX_AGE_MINUTES", 24*60),
		RefreshSchedule:      stringOrDefault("INTAKEBOT_REFRESH_SCHEDULE", "0 */6 * * *"),
		RefreshOnStart:       boolOrDefault("INTAKEBOT_REFRESH_ON_START", true),
		PurgeSchedule:        stringOrDefault("INTAKEBOT_PURGE_SCHEDULE", "@every 1h"),
		ResetStatesOnStart:   boolOrDefault("INTAKEBOT_RESET_STATES_ON_START", false),
		HeartbeatEnabled:     boolOrDefault("INTAKEBOT_HEARTBEAT_ENABLED", true),
		HeartbeatIntervalSec: intOrDefault("INTAKEBOT_HEARTBEAT_INTERVAL_SECONDS", 30),
		HeartbeatStaleSec:    intOrDefault("INTAKEBOT_HEARTBEAT_STALE_SECONDS", 120),
	}
}

// TelegramEnabled reports whether a bot token is configured.
func (c Config) TelegramEnabled() bool {
	return c.TelegramToken != ""
}

func (c Config) JiraEnabled() bool {
	return c.JiraBaseURL != "" && c.JiraEmail != "" && c.JiraAPIToken != ""
}

// httpAddr honours a bare PORT as hosting platforms set it.
func httpAddr() string {
	if value := strings.TrimSpace(os.Getenv("INTAKEBOT_HTTP_ADDR")); value != "" {
		return value
	}
	if port := intOrDefault("PORT", 0); port > 0 {
		return ":" + strconv.Itoa(port)
	}
	return ":3000"
}

func stringOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func intOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 1 {
		return fallback
	}
	return parsed
}

func boolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
