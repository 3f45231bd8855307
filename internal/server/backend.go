package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sakif/matchday-predictor/internal/config"
	"github.com/sakif/matchday-predictor/internal/repository/keyvalue"
	"github.com/sakif/matchday-predictor/internal/store"
	"github.com/sakif/matchday-predictor/internal/store/dynamo"
	"github.com/sakif/matchday-predictor/internal/store/memory"
	"github.com/sakif/matchday-predictor/internal/store/sqlite"
)

const ensureTableTimeout = 2 * time.Minute

// backend is an opened record store: the two tables, a health probe and
// the function that releases it.
type backend struct {
	users       store.Table
	predictions store.Table
	ping        func(context.Context) error
	close       func() error
}

// openBackend opens the store selected by cfg.Backend.
//
//	memory   → process-local tables, lost on restart (tests, demos)
//	sqlite   → single file at cfg.DBPath (default)
//	dynamodb → real DynamoDB tables, created on first run if missing
func openBackend(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (*backend, error) {
	usersSchema := keyvalue.UsersSchema(cfg.UsersTable)
	predictionsSchema := keyvalue.PredictionsSchema(cfg.PredictionsTable)

	switch cfg.Backend {
	case config.BackendMemory:
		logger.Warn("using in-memory store; data is lost on restart")
		return &backend{
			users:       memory.New(usersSchema),
			predictions: memory.New(predictionsSchema),
			close:       func() error { return nil },
		}, nil

	case config.BackendSQLite:
		if cfg.DBPath != ":memory:" {
			// 0755 = owner can read/write/execute, others can read/execute.
			if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		db, err := sqlite.New(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		return &backend{
			users:       db.Table(usersSchema),
			predictions: db.Table(predictionsSchema),
			ping:        db.Ping,
			close:       db.Close,
		}, nil

	case config.BackendDynamoDB:
		client, err := dynamo.NewClient(ctx, dynamo.ClientConfig{
			Region:      cfg.AWSRegion,
			Endpoint:    cfg.DynamoEndpoint,
			MaxAttempts: cfg.DynamoMaxAttempts,
		})
		if err != nil {
			return nil, err
		}
		users := dynamo.NewTable(client, usersSchema)
		predictions := dynamo.NewTable(client, predictionsSchema)

		ensureCtx, cancel := context.WithTimeout(ctx, ensureTableTimeout)
		defer cancel()
		for _, t := range []*dynamo.Table{users, predictions} {
			if err := t.EnsureTable(ensureCtx); err != nil {
				return nil, err
			}
		}
		return &backend{
			users:       users,
			predictions: predictions,
			ping:        users.Ping,
			close:       func() error { return nil },
		}, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
