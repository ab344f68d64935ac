package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/goliatone/go-bdpay/core"
	"github.com/goliatone/go-bdpay/inbound"
	"github.com/goliatone/go-bdpay/ledger"
	bdpaymigrations "github.com/goliatone/go-bdpay/migrations"
	mongostore "github.com/goliatone/go-bdpay/store/mongo"
	redisstore "github.com/goliatone/go-bdpay/store/redis"
	sqlstore "github.com/goliatone/go-bdpay/store/sql"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

const (
	driverSQLite   = "sqlite"
	driverPostgres = "postgres"
	driverMongo    = "mongo"
	driverMemory   = "memory"
)

type persistenceConfig struct {
	driver string
	server string
}

func (c persistenceConfig) GetDebug() bool                { return false }
func (c persistenceConfig) GetDriver() string             { return c.driver }
func (c persistenceConfig) GetServer() string             { return c.server }
func (c persistenceConfig) GetPingTimeout() time.Duration { return 5 * time.Second }
func (c persistenceConfig) GetOtelIdentifier() string     { return "go-bdpay" }

// stores is the storage selected by store.driver. Claims are only opened
// when webhook.dedup_redeliveries is set; they use the SQL store, then
// redis, then memory.
type stores struct {
	Transactions core.TransactionStore
	Claims       core.IdempotencyClaimStore
	DeadLetters  core.DeadLetterSink

	closers []func() error
}

func (s *stores) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func normalizeDriver(driver string) string {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite", "sqlite3":
		return driverSQLite
	case "postgres", "postgresql", "pg":
		return driverPostgres
	case "mongo", "mongodb":
		return driverMongo
	case "memory":
		return driverMemory
	default:
		return strings.ToLower(strings.TrimSpace(driver))
	}
}

func openStores(ctx context.Context, cfg core.Config, logger core.Logger) (*stores, error) {
	out := &stores{}
	switch driver := normalizeDriver(cfg.Store.Driver); driver {
	case driverSQLite, driverPostgres:
		client, dialect, err := openPersistence(cfg.Store)
		if err != nil {
			return nil, err
		}
		out.closers = append(out.closers, client.Close)
		if err := migrate(ctx, client, dialect); err != nil {
			_ = out.Close()
			return nil, err
		}
		cacheConfig := repositorycache.DefaultConfig()
		cacheConfig.TTL = time.Minute
		cacheService, err := repositorycache.NewCacheService(cacheConfig)
		if err != nil {
			_ = out.Close()
			return nil, fmt.Errorf("transaction cache: %w", err)
		}
		factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client, sqlstore.WithTransactionCache(cacheService))
		if err != nil {
			_ = out.Close()
			return nil, err
		}
		out.Transactions = factory.TransactionStore()
		if cfg.Webhook.DedupRedeliveries {
			out.Claims = factory.ClaimStore()
		}
	case driverMongo:
		if strings.TrimSpace(cfg.Mongo.URI) == "" {
			return nil, fmt.Errorf("mongo.uri is required for the mongo store")
		}
		client, err := mongostore.Connect(ctx, cfg.Mongo.URI)
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		out.closers = append(out.closers, func() error { return client.Disconnect(context.Background()) })
		store, err := mongostore.NewTransactionStore(client.Database(cfg.Mongo.Database), mongostore.WithCollection(cfg.Mongo.Collection))
		if err != nil {
			_ = out.Close()
			return nil, err
		}
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = out.Close()
			return nil, fmt.Errorf("mongo indexes: %w", err)
		}
		out.Transactions = store
	case driverMemory:
		out.Transactions = ledger.NewMemoryStore()
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}

	if addr := strings.TrimSpace(cfg.Redis.Addr); addr != "" {
		client, err := redisstore.Connect(ctx, addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			_ = out.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		out.closers = append(out.closers, client.Close)
		if cfg.Webhook.DedupRedeliveries && out.Claims == nil {
			claims, err := redisstore.NewClaimStore(client)
			if err != nil {
				_ = out.Close()
				return nil, err
			}
			out.Claims = claims
		}
		queue, err := redisstore.NewDeadLetterQueue(client)
		if err != nil {
			_ = out.Close()
			return nil, err
		}
		out.DeadLetters = queue
	}
	if cfg.Webhook.DedupRedeliveries && out.Claims == nil {
		logger.Warn("webhook claims are kept in memory; duplicate suppression resets on restart")
		out.Claims = inbound.NewInMemoryClaimStore()
	}
	return out, nil
}

func openPersistence(cfg core.StoreConfig) (*persistence.Client, string, error) {
	var (
		sqlDriver string
		dialect   schema.Dialect
		name      string
	)
	switch normalizeDriver(cfg.Driver) {
	case driverPostgres:
		sqlDriver, dialect, name = "postgres", pgdialect.New(), bdpaymigrations.DialectPostgres
	default:
		sqlDriver, dialect, name = "sqlite3", sqlitedialect.New(), bdpaymigrations.DialectSQLite
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, "", fmt.Errorf("store.dsn is required for the %s store", name)
	}
	sqlDB, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, "", fmt.Errorf("open %s: %w", name, err)
	}
	if name == bdpaymigrations.DialectSQLite {
		sqlDB.SetMaxOpenConns(1)
	}
	client, err := persistence.New(persistenceConfig{driver: sqlDriver, server: dsn}, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, "", fmt.Errorf("persistence client: %w", err)
	}
	return client, name, nil
}

func migrate(ctx context.Context, client *persistence.Client, dialect string) error {
	_, err := bdpaymigrations.Register(ctx, func(_ context.Context, target string, _ string, fsys fs.FS) error {
		if target != dialect {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, bdpaymigrations.WithValidationTargets(dialect))
	if err != nil {
		return err
	}
	if err := client.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate %s: %w", dialect, err)
	}
	return nil
}
