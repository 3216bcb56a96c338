package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string // "json" or "pretty"

	// PublicBaseURL prefixes invite links handed to clients. Empty means
	// derive it from the listen address (dev mode).
	PublicBaseURL string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL    string
	DBSchema       string
	DBMaxConns     int32
	DBMinConns     int32
	MigrateOnStart bool

	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int

	// If true, /readyz returns 503 unless the database is configured and
	// reachable.
	ReadinessRequireDB bool

	// Security policy:
	// if true, RALLY_TOKEN_HMAC_KEY MUST be set (>= 32 bytes) and invite
	// token hashing must be HMAC-based.
	RequireTokenHMAC bool

	ArchiveEnabled     bool
	ArchiveInactiveFor time.Duration
	ArchiveInterval    time.Duration
	ArchiveBatchLimit  int
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("RALLY_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("RALLY_LOG_LEVEL", "info"),
		LogFormat: EnvString("RALLY_LOG_FORMAT", "json"),

		PublicBaseURL: EnvString("RALLY_PUBLIC_BASE_URL", ""),

		ReadHeaderTimeout: EnvDuration("RALLY_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("RALLY_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("RALLY_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("RALLY_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("RALLY_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL:    EnvString("RALLY_DATABASE_URL", ""),
		DBSchema:       EnvString("RALLY_DB_SCHEMA", "rally"),
		DBMaxConns:     EnvInt32("RALLY_DB_MAX_CONNS", 10),
		DBMinConns:     EnvInt32("RALLY_DB_MIN_CONNS", 0),
		MigrateOnStart: EnvBool("RALLY_DB_MIGRATE", true),

		CORSAllowedOrigins:   EnvCSV("RALLY_CORS_ALLOWED_ORIGINS", "http://localhost:*,http://127.0.0.1:*"),
		CORSAllowCredentials: EnvBool("RALLY_CORS_ALLOW_CREDENTIALS", false),
		CORSMaxAgeSeconds:    EnvInt("RALLY_CORS_MAX_AGE_SECONDS", 600),

		ReadinessRequireDB: EnvBool("RALLY_READINESS_REQUIRE_DB", false),

		RequireTokenHMAC: EnvBool("RALLY_REQUIRE_TOKEN_HMAC", false),

		ArchiveEnabled:     EnvBool("RALLY_ARCHIVE_ENABLED", true),
		ArchiveInactiveFor: EnvDuration("RALLY_ARCHIVE_INACTIVE_FOR", 72*time.Hour),
		ArchiveInterval:    EnvDuration("RALLY_ARCHIVE_INTERVAL", 10*time.Minute),
		ArchiveBatchLimit:  EnvInt("RALLY_ARCHIVE_BATCH_LIMIT", 100),
	}
}
