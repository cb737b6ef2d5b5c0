package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tasktrack/cmd/identity"
	"tasktrack/cmd/internal/storage/sqlitedb"
	"tasktrack/cmd/internal/tasks"
)

// backend bundles the user store and task repository of one persistence engine.
// The app owns the underlying connection and closes it on shutdown.
type backend struct {
	kind  string
	users identity.Store
	tasks tasks.Repository

	ping  func(ctx context.Context) error
	close func(ctx context.Context) error
}

func (b *backend) Ping(ctx context.Context) error {
	if b == nil || b.ping == nil {
		return nil
	}
	return b.ping(ctx)
}

func (b *backend) Close(ctx context.Context) error {
	if b == nil || b.close == nil {
		return nil
	}
	return b.close(ctx)
}

// openBackend connects the configured store and prepares its schema.
func openBackend(ctx context.Context, cfg Config, log Logger) (*backend, error) {
	kind, err := cfg.StoreKind()
	if err != nil {
		return nil, err
	}

	var b *backend
	switch kind {
	case StorePostgres:
		b, err = openPostgres(ctx, cfg)
	case StoreMongo:
		b, err = openMongo(ctx, cfg)
	case StoreSQLite:
		b, err = openSQLite(ctx, cfg)
	default:
		b = &backend{users: identity.NewMemoryStore(), tasks: tasks.NewMemoryRepository()}
	}
	if err != nil {
		return nil, err
	}
	b.kind = kind

	log.Info("store.ready", "store", kind)
	return b, nil
}

func openPostgres(ctx context.Context, cfg Config) (*backend, error) {
	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}

	var (
		userOpts []identity.PostgresOption
		taskOpts []tasks.PostgresOption
	)
	if cfg.DBSchema != "" {
		userOpts = append(userOpts, identity.WithSchema(cfg.DBSchema))
		taskOpts = append(taskOpts, tasks.WithSchema(cfg.DBSchema))
	}

	users, err := identity.NewPostgresStore(pool, userOpts...)
	if err != nil {
		pool.Close()
		return nil, err
	}
	repo, err := tasks.NewPostgresRepository(pool, taskOpts...)
	if err != nil {
		pool.Close()
		return nil, err
	}
	if err := users.ApplySchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if err := repo.ApplySchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &backend{
		users: users,
		tasks: repo,
		ping:  func(ctx context.Context) error { return PingDB(ctx, pool, 2*time.Second) },
		close: func(context.Context) error {
			pool.Close()
			return nil
		},
	}, nil
}

func openMongo(ctx context.Context, cfg Config) (*backend, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}
	fail := func(err error) (*backend, error) {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		return fail(fmt.Errorf("mongo: ping: %w", err))
	}

	db := client.Database(cfg.MongoDatabase)
	users, err := identity.NewMongoStore(db)
	if err != nil {
		return fail(err)
	}
	repo, err := tasks.NewMongoRepository(db)
	if err != nil {
		return fail(err)
	}
	if err := users.EnsureIndexes(connectCtx); err != nil {
		return fail(err)
	}
	if err := repo.EnsureIndexes(connectCtx); err != nil {
		return fail(err)
	}

	return &backend{
		users: users,
		tasks: repo,
		ping: func(ctx context.Context) error {
			pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			return client.Ping(pingCtx, nil)
		},
		close: client.Disconnect,
	}, nil
}

func openSQLite(ctx context.Context, cfg Config) (*backend, error) {
	db, err := sqlitedb.Open(ctx, cfg.SQLitePath)
	if err != nil {
		return nil, err
	}
	fail := func(err error) (*backend, error) {
		_ = db.Close()
		return nil, err
	}

	users, err := identity.NewSQLiteStore(db)
	if err != nil {
		return fail(err)
	}
	repo, err := tasks.NewSQLiteRepository(db)
	if err != nil {
		return fail(err)
	}
	if err := users.Migrate(ctx); err != nil {
		return fail(err)
	}
	if err := repo.Migrate(ctx); err != nil {
		return fail(err)
	}

	return &backend{
		users: users,
		tasks: repo,
		ping:  func(ctx context.Context) error { return pingSQL(ctx, db) },
		close: func(context.Context) error { return db.Close() },
	}, nil
}

func pingSQL(parent context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(parent, 2*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// poolConfig parses the DSN and applies positive connection limits from cfg.
// Zero keeps whatever the DSN (or pgx) chose.
func poolConfig(cfg Config) (*pgxpool.Config, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	if cfg.DBMaxConns > 0 {
		pcfg.MaxConns = cfg.DBMaxConns
	}
	if cfg.DBMinConns > 0 {
		pcfg.MinConns = cfg.DBMinConns
	}
	if pcfg.MinConns > pcfg.MaxConns {
		return nil, errors.New("TASKTRACK_DB_MIN_CONNS exceeds TASKTRACK_DB_MAX_CONNS")
	}
	return pcfg, nil
}

// NewDBPool builds a pgxpool and validates connectivity.
func NewDBPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	pcfg, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	if err := PingDB(ctx, pool, 3*time.Second); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

// PingDB checks if we can acquire a connection within timeout.
func PingDB(parent context.Context, pool *pgxpool.Pool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	conn.Release()
	return nil
}
