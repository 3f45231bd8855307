package config

import "time"

const (
	envPort            = "PORT"
	envLogLevel        = "LOG_LEVEL"
	envLogFormat       = "LOG_FORMAT"
	envJWTSecret       = "JWT_SECRET"
	envTokenTTL        = "TOKEN_TTL"
	envCookieSecure    = "COOKIE_SECURE"
	envAllowedOrigins  = "ALLOWED_ORIGINS"
	envLeaderboardSize = "LEADERBOARD_SIZE"

	envStoreBackend      = "STORE_BACKEND"
	envDBPath            = "DB_PATH"
	envUsersTable        = "USERS_TABLE"
	envPredictionsTable  = "PREDICTIONS_TABLE"
	envStoreTimeout      = "STORE_TIMEOUT"
	envAWSRegion         = "AWS_REGION"
	envDynamoEndpoint    = "DYNAMO_ENDPOINT"
	envDynamoMaxAttempts = "DYNAMO_MAX_ATTEMPTS"

	envFootballURL           = "FOOTBALL_API_URL"
	envFootballToken         = "FOOTBALL_API_TOKEN"
	envCompetitionID         = "COMPETITION_ID"
	envMatchWindow           = "MATCH_WINDOW"
	envFootballTimeout       = "FOOTBALL_TIMEOUT"
	envFootballRetryAttempts = "FOOTBALL_RETRY_ATTEMPTS"
	envFootballRetryBackoff  = "FOOTBALL_RETRY_BACKOFF"

	envSnapshotBucket   = "SNAPSHOT_BUCKET"
	envSnapshotInterval = "SNAPSHOT_INTERVAL"
	envSnapshotEndpoint = "SNAPSHOT_ENDPOINT"
	envSnapshotPrefix   = "SNAPSHOT_PREFIX"

	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultLogFormat       = "text"
	defaultTokenTTL        = 7 * 24 * time.Hour
	defaultAllowedOrigins  = "http://localhost:3000"
	defaultLeaderboardSize = 10

	defaultStoreBackend      = BackendSQLite
	defaultDBPath            = "data/predictions.db"
	defaultUsersTable        = "users"
	defaultPredictionsTable  = "premier-league-predictions"
	defaultStoreTimeout      = 5 * time.Second
	defaultAWSRegion         = "eu-west-2"
	defaultDynamoMaxAttempts = 3

	defaultFootballURL           = "https://api.football-data.org/v4"
	defaultCompetitionID         = 2021 // Premier League
	defaultMatchWindow           = 14 * 24 * time.Hour
	defaultFootballTimeout       = 10 * time.Second
	defaultFootballRetryAttempts = 3
	defaultFootballRetryBackoff  = 250 * time.Millisecond

	defaultSnapshotInterval = 15 * time.Minute
	defaultSnapshotPrefix   = "leaderboard"
)

// Store backends accepted by STORE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendDynamoDB = "dynamodb"
)
