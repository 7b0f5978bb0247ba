package database

import (
	"context"
	"fmt"

	"meeplehall/internal/config"

	"github.com/jackc/pgx/v5"
)

// maintenanceConfig targets the server's "postgres" database, which always
// exists, so the application database can be created from it.
func maintenanceConfig(cfg *config.Config) (*pgx.ConnConfig, error) {
	admin := *cfg
	admin.DBName = "postgres"
	return pgx.ParseConfig(PostgresDSN(&admin))
}

// CreateDatabase creates the configured postgres database when it is missing.
// It reports whether a database was created.
func CreateDatabase(ctx context.Context, cfg *config.Config) (bool, error) {
	if cfg.DBDriver == "sqlite" {
		return false, fmt.Errorf("create-db only applies to postgres")
	}
	connCfg, err := maintenanceConfig(cfg)
	if err != nil {
		return false, fmt.Errorf("parse dsn: %w", err)
	}
	conn, err := pgx.ConnectConfig(ctx, connCfg)
	if err != nil {
		return false, fmt.Errorf("connect maintenance database: %w", err)
	}
	defer conn.Close(ctx)

	var exists bool
	if err := conn.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", cfg.DBName).Scan(&exists); err != nil {
		return false, fmt.Errorf("check database: %w", err)
	}
	if exists {
		return false, nil
	}
	// CREATE DATABASE takes no bind parameters.
	if _, err := conn.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{cfg.DBName}.Sanitize()); err != nil {
		return false, fmt.Errorf("create database %s: %w", cfg.DBName, err)
	}
	return true, nil
}

// TableSize is the on-disk footprint of one table.
type TableSize struct {
	Table      string
	Rows       int64
	TotalBytes int64
}

// TableSizes lists public tables by total size, largest first.
func TableSizes(ctx context.Context, cfg *config.Config) ([]TableSize, error) {
	connCfg, err := pgx.ParseConfig(PostgresDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	conn, err := pgx.ConnectConfig(ctx, connCfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	defer conn.Close(ctx)

	rows, err := conn.Query(ctx, `
		SELECT relname, n_live_tup, pg_total_relation_size(relid)
		FROM pg_stat_user_tables
		WHERE schemaname = 'public'
		ORDER BY pg_total_relation_size(relid) DESC`)
	if err != nil {
		return nil, fmt.Errorf("query table sizes: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (TableSize, error) {
		var t TableSize
		err := row.Scan(&t.Table, &t.Rows, &t.TotalBytes)
		return t, err
	})
}
