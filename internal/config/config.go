// Package config loads runtime configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Config holds runtime configuration for the server.
type Config struct {
	Port            string
	LogLevel        string
	LogFormat       string
	JWTSecret       string
	TokenTTL        time.Duration
	CookieSecure    bool
	AllowedOrigins  []string
	LeaderboardSize int
	Store           StoreConfig
	Football        FootballConfig
	Snapshot        SnapshotConfig
}

// StoreConfig selects and configures the record store backend.
type StoreConfig struct {
	Backend           string
	DBPath            string
	UsersTable        string
	PredictionsTable  string
	Timeout           time.Duration
	AWSRegion         string
	DynamoEndpoint    string // DynamoDB Local, e.g. http://localhost:8000
	DynamoMaxAttempts int
}

// FootballConfig configures the football-data.org client.
type FootballConfig struct {
	BaseURL       string
	Token         string
	CompetitionID int
	Window        time.Duration
	Timeout       time.Duration
	RetryAttempts int
	RetryBackoff  time.Duration
}

// SnapshotConfig controls the leaderboard snapshot job. An empty Bucket
// disables it.
type SnapshotConfig struct {
	Bucket   string
	Interval time.Duration
	Endpoint string // S3-compatible endpoint such as R2; empty means AWS
	Prefix   string
}

// Enabled reports whether snapshots should be published.
func (c SnapshotConfig) Enabled() bool { return c.Bucket != "" }

// Load reads configuration from environment variables with sensible defaults.
// Call LoadDotEnv first to pick up a .env file.
func Load() Config {
	return Config{
		Port:            envOrDefault(envPort, defaultPort),
		LogLevel:        envOrDefault(envLogLevel, defaultLogLevel),
		LogFormat:       envOrDefault(envLogFormat, defaultLogFormat),
		JWTSecret:       envOrDefault(envJWTSecret, ""),
		TokenTTL:        durationEnvOrDefault(envTokenTTL, defaultTokenTTL),
		CookieSecure:    boolEnvOrDefault(envCookieSecure, false),
		AllowedOrigins:  listEnvOrDefault(envAllowedOrigins, defaultAllowedOrigins),
		LeaderboardSize: intEnvOrDefault(envLeaderboardSize, defaultLeaderboardSize),
		Store:           loadStore(),
		Football:        loadFootball(),
		Snapshot:        loadSnapshot(),
	}
}

func loadStore() StoreConfig {
	return StoreConfig{
		Backend:           strings.ToLower(envOrDefault(envStoreBackend, defaultStoreBackend)),
		DBPath:            envOrDefault(envDBPath, defaultDBPath),
		UsersTable:        envOrDefault(envUsersTable, defaultUsersTable),
		PredictionsTable:  envOrDefault(envPredictionsTable, defaultPredictionsTable),
		Timeout:           durationEnvOrDefault(envStoreTimeout, defaultStoreTimeout),
		AWSRegion:         envOrDefault(envAWSRegion, defaultAWSRegion),
		DynamoEndpoint:    envOrDefault(envDynamoEndpoint, ""),
		DynamoMaxAttempts: intEnvOrDefault(envDynamoMaxAttempts, defaultDynamoMaxAttempts),
	}
}

func loadFootball() FootballConfig {
	return FootballConfig{
		BaseURL:       envOrDefault(envFootballURL, defaultFootballURL),
		Token:         envOrDefault(envFootballToken, ""),
		CompetitionID: intEnvOrDefault(envCompetitionID, defaultCompetitionID),
		Window:        durationEnvOrDefault(envMatchWindow, defaultMatchWindow),
		Timeout:       durationEnvOrDefault(envFootballTimeout, defaultFootballTimeout),
		RetryAttempts: intEnvOrDefault(envFootballRetryAttempts, defaultFootballRetryAttempts),
		RetryBackoff:  durationEnvOrDefault(envFootballRetryBackoff, defaultFootballRetryBackoff),
	}
}

func loadSnapshot() SnapshotConfig {
	return SnapshotConfig{
		Bucket:   envOrDefault(envSnapshotBucket, ""),
		Interval: durationEnvOrDefault(envSnapshotInterval, defaultSnapshotInterval),
		Endpoint: envOrDefault(envSnapshotEndpoint, ""),
		Prefix:   strings.Trim(envOrDefault(envSnapshotPrefix, defaultSnapshotPrefix), "/"),
	}
}

// Validate reports settings the server cannot start without.
func (c Config) Validate() error {
	var errs []error
	if len(c.JWTSecret) < 16 {
		errs = append(errs, fmt.Errorf("%s must be at least 16 characters", envJWTSecret))
	}
	switch c.Store.Backend {
	case BackendMemory, BackendSQLite, BackendDynamoDB:
	default:
		errs = append(errs, fmt.Errorf("%s %q is not one of memory, sqlite, dynamodb", envStoreBackend, c.Store.Backend))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("%s %q is not text or json", envLogFormat, c.LogFormat))
	}
	return errors.Join(errs...)
}

// SlogLevel parses LogLevel, defaulting to Info on unknown values.
func (c Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
