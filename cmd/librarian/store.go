package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AntonStoeckl/library-lending-go/internal/config"
	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/lending/filestore"
	"github.com/AntonStoeckl/library-lending-go/lending/postgresstore"
	"github.com/AntonStoeckl/library-lending-go/lending/redisstore"
)

// openedStore is the configured Store plus what the commands need besides Save and Load.
type openedStore struct {
	store       lending.Store
	close       func()
	ensureTable func(ctx context.Context) error
	history     func(ctx context.Context, n int) ([]lending.Snapshot, error)
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (*openedStore, error) {
	switch cfg.Store {
	case config.StorePostgres:
		return openPostgresStore(ctx, cfg, logger)

	case config.StoreRedis:
		client, err := config.NewRedisClient(cfg.RedisAddr)
		if err != nil {
			return nil, err
		}

		store, err := redisstore.NewStore(client, redisstore.WithKey(cfg.RedisKey), redisstore.WithLogger(logger))
		if err != nil {
			_ = client.Close()
			return nil, err
		}

		return &openedStore{
			store:   store,
			close:   func() { _ = client.Close() },
			history: store.History,
		}, nil

	default:
		store, err := filestore.NewStore(cfg.DataFile, filestore.WithLogger(logger))
		if err != nil {
			return nil, err
		}

		return &openedStore{store: store, close: func() {}}, nil
	}
}

func openPostgresStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (*openedStore, error) {
	options := []postgresstore.Option{
		postgresstore.WithTableName(cfg.PostgresTable),
		postgresstore.WithLibraryName(cfg.LibraryName),
		postgresstore.WithLogger(logger),
	}

	var store *postgresstore.Store
	var closeDB func()

	switch cfg.PostgresAdapter {
	case config.AdapterSQLDB:
		db, err := config.NewSQLDB(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}

		closeDB = func() { _ = db.Close() }
		store, err = postgresstore.NewStoreFromSQLDB(db, options...)
		if err != nil {
			closeDB()
			return nil, err
		}

	case config.AdapterSQLX:
		db, err := config.NewSQLX(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}

		closeDB = func() { _ = db.Close() }
		store, err = postgresstore.NewStoreFromSQLX(db, options...)
		if err != nil {
			closeDB()
			return nil, err
		}

	case config.AdapterPGXPool:
		pool, err := config.NewPGXPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}

		closeDB = pool.Close
		store, err = postgresstore.NewStoreFromPGXPool(pool, options...)
		if err != nil {
			closeDB()
			return nil, err
		}

	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownPostgresAdapter, cfg.PostgresAdapter)
	}

	return &openedStore{store: store, close: closeDB, ensureTable: store.EnsureTable}, nil
}
