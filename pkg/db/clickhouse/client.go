package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/canopy-network/rewardx/pkg/retry"
	"github.com/canopy-network/rewardx/pkg/utils"
)

// Table engines used by the reward store.
const (
	MergeTree          = "MergeTree"
	ReplacingMergeTree = "ReplacingMergeTree"
)

// Client wraps a ClickHouse connection bound to one database.
type Client struct {
	Logger *zap.Logger
	Db     driver.Conn
	Name   string
}

// New connects to ClickHouse using CLICKHOUSE_ADDR and ensures the target
// database exists. The initial connection is retried with backoff because the
// store usually starts alongside the database in the same deployment.
func New(ctx context.Context, logger *zap.Logger, dbName string) (Client, error) {
	connCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dsn := utils.Env("CLICKHOUSE_ADDR", "clickhouse://localhost:9000?sslmode=disable")
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return Client{}, fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	opts.MaxOpenConns = utils.EnvInt("CLICKHOUSE_MAX_OPEN_CONNS", 10)
	opts.MaxIdleConns = utils.EnvInt("CLICKHOUSE_MAX_IDLE_CONNS", 5)
	opts.ConnMaxLifetime = time.Hour
	opts.DialTimeout = 10 * time.Second

	var conn driver.Conn
	connectErr := retry.Do(connCtx, retry.Connect(), logger, "clickhouse connect", func() error {
		var openErr error
		conn, openErr = clickhouse.Open(opts)
		if openErr != nil {
			return openErr
		}
		return conn.Ping(connCtx)
	})
	if connectErr != nil {
		return Client{}, connectErr
	}

	client := Client{Logger: logger, Db: conn, Name: dbName}
	if err := client.CreateDbIfNotExists(connCtx, dbName); err != nil {
		return Client{}, err
	}

	logger.Info("Connected to ClickHouse", zap.String("database", dbName))
	return client, nil
}

// CreateDbIfNotExists creates the named database when missing.
func (c Client) CreateDbIfNotExists(ctx context.Context, name string) error {
	query := fmt.Sprintf(`CREATE DATABASE IF NOT EXISTS "%s"`, name)
	if err := c.Db.Exec(ctx, query); err != nil {
		return fmt.Errorf("create database %s: %w", name, err)
	}
	return nil
}

// Ping checks the connection.
func (c Client) Ping(ctx context.Context) error {
	return c.Db.Ping(ctx)
}

// Close terminates the underlying connection.
func (c Client) Close() error {
	return c.Db.Close()
}
