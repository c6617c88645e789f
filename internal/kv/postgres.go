// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// postgres.go — PostgreSQL-backed Store keeping all keys in a single
// two-column table with upsert writes. The table name is fixed so no
// identifier is ever interpolated into SQL.

package kv

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgMigrateSQL = `CREATE TABLE IF NOT EXISTS tempo_kv (key TEXT PRIMARY KEY, value TEXT NOT NULL)`
	pgSelectSQL  = `SELECT value FROM tempo_kv WHERE key = $1`
	pgUpsertSQL  = `INSERT INTO tempo_kv (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`
	pgDeleteSQL = `DELETE FROM tempo_kv WHERE key = $1`
)

// Postgres is a Store backed by a pgx connection pool. All keys live in
// the tempo_kv table.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an existing pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Migrate creates the backing table if it does not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, pgMigrateSQL)
	if err != nil {
		return fmt.Errorf("kv: migrate tempo_kv: %w", err)
	}
	return nil
}

// GetInt64 returns the integer stored under key.
func (p *Postgres) GetInt64(ctx context.Context, key string) (int64, bool, error) {
	raw, ok, err := p.GetString(ctx, key)
	if err != nil || !ok {
		return 0, ok, err
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

// SetInt64 stores v under key.
func (p *Postgres) SetInt64(ctx context.Context, key string, v int64) error {
	return p.SetString(ctx, key, strconv.FormatInt(v, 10))
}

// GetString returns the string stored under key.
func (p *Postgres) GetString(ctx context.Context, key string) (string, bool, error) {
	var raw string
	err := p.pool.QueryRow(ctx, pgSelectSQL, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return raw, true, nil
}

// SetString stores v under key.
func (p *Postgres) SetString(ctx context.Context, key, v string) error {
	_, err := p.pool.Exec(ctx, pgUpsertSQL, key, v)
	return err
}

// Remove deletes key.
func (p *Postgres) Remove(ctx context.Context, key string) error {
	_, err := p.pool.Exec(ctx, pgDeleteSQL, key)
	return err
}
