package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"photoseleven/internal/models"
	"photoseleven/internal/storage/migrations"
)

// PostgresConfig tunes the connection pool backing the Postgres repository.
type PostgresConfig struct {
	DSN             string
	MaxConnections  int32
	MinConnections  int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	AcquireTimeout  time.Duration
	ApplicationName string
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

var _ Repository = (*postgresRepository)(nil)

// NewPostgresRepository opens a Postgres-backed repository and applies any
// pending schema migrations before returning.
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (Repository, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("postgres dsn required")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if cfg.MaxConnections > 0 {
		poolCfg.MaxConns = cfg.MaxConnections
	}
	if cfg.MinConnections > 0 {
		poolCfg.MinConns = cfg.MinConnections
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.AcquireTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.AcquireTimeout
	}
	if cfg.ApplicationName != "" {
		if poolCfg.ConnConfig.RuntimeParams == nil {
			poolCfg.ConnConfig.RuntimeParams = make(map[string]string)
		}
		poolCfg.ConnConfig.RuntimeParams["application_name"] = cfg.ApplicationName
	}

	if err := runMigrations(ctx, cfg.DSN); err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	return &postgresRepository{pool: pool}, nil
}

func runMigrations(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Close releases the connection pool, bounded by ctx.
func (r *postgresRepository) Close(ctx context.Context) error {
	if r == nil || r.pool == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		r.pool.Close()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (r *postgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *postgresRepository) CreateUser(ctx context.Context, username, password string) (models.User, error) {
	hashed, err := hashPassword(password)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}
	user := models.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hashed,
		CreatedAt:    time.Now().UTC(),
	}
	tag, err := r.pool.Exec(ctx, `
INSERT INTO users (id, username, password_hash, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (lower(username)) DO NOTHING
`, user.ID, user.Username, user.PasswordHash, user.CreatedAt)
	if err != nil {
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.User{}, ErrUserExists
	}
	return user, nil
}

func (r *postgresRepository) GetUser(ctx context.Context, username string) (models.User, bool, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, username, password_hash, created_at
FROM users
WHERE lower(username) = lower($1)
`, username)
	var user models.User
	if err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, false, nil
		}
		return models.User{}, false, fmt.Errorf("select user: %w", err)
	}
	return user, true, nil
}

func (r *postgresRepository) AuthenticateUser(ctx context.Context, username, password string) (models.User, error) {
	user, ok, err := r.GetUser(ctx, username)
	if err != nil {
		return models.User{}, err
	}
	if !ok {
		return models.User{}, ErrUserNotExist
	}
	if err := verifyPassword(user.PasswordHash, password); err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *postgresRepository) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	user, ok, err := r.GetUser(ctx, username)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUserNotExist
	}
	if err := verifyPassword(user.PasswordHash, oldPassword); err != nil {
		return err
	}
	if err := verifyPassword(user.PasswordHash, newPassword); err == nil {
		return ErrSamePassword
	} else if !errors.Is(err, ErrWrongPassword) {
		return err
	}

	hashed, err := hashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	tag, err := r.pool.Exec(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, hashed, user.ID)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("update password: expected 1 row, updated %d", tag.RowsAffected())
	}
	return nil
}

// SetUserPassword replaces a user's password without checking the old one.
// It backs operator tooling and is not reachable from the HTTP API.
func (r *postgresRepository) SetUserPassword(ctx context.Context, username, password string) error {
	user, ok, err := r.GetUser(ctx, username)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUserNotExist
	}
	hashed, err := hashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	tag, err := r.pool.Exec(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, hashed, user.ID)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("update password: expected 1 row, updated %d", tag.RowsAffected())
	}
	return nil
}

func (r *postgresRepository) DeleteUser(ctx context.Context, username, password string) error {
	user, ok, err := r.GetUser(ctx, username)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUserNotExist
	}
	if err := verifyPassword(user.PasswordHash, password); err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, user.ID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("delete user: expected 1 row, deleted %d", tag.RowsAffected())
	}
	_, err = r.pool.Exec(ctx, `DELETE FROM feed_entries WHERE owner = lower($1)`, username)
	if err != nil {
		return fmt.Errorf("delete feed entries: %w", err)
	}
	return nil
}

func (r *postgresRepository) AppendFeedEntry(ctx context.Context, entry models.FeedEntry) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO feed_entries (owner, filename, is_new_photo, uploaded_at, created_at, uploader_token, request_path)
VALUES (lower($1), $2, $3, $4, $5, $6, $7)
`, entry.Owner, entry.Filename, entry.IsNewPhoto, entry.UploadedAt.UTC(), entry.CreatedAt, entry.UploaderToken, entry.RequestPath)
	if err != nil {
		return fmt.Errorf("insert feed entry: %w", err)
	}
	return nil
}

func (r *postgresRepository) ListFeedUpdates(ctx context.Context, owner string, since time.Time, excludeToken string, limit int) ([]models.FeedEntry, error) {
	rows, err := r.pool.Query(ctx, `
SELECT owner, filename, is_new_photo, uploaded_at, created_at, uploader_token, request_path
FROM feed_entries
WHERE owner = lower($1) AND uploaded_at > $2 AND uploader_token <> $3
ORDER BY uploaded_at ASC
LIMIT $4
`, owner, since.UTC(), excludeToken, limit)
	if err != nil {
		return nil, fmt.Errorf("select feed entries: %w", err)
	}
	defer rows.Close()

	entries := make([]models.FeedEntry, 0, limit)
	for rows.Next() {
		var entry models.FeedEntry
		if err := rows.Scan(&entry.Owner, &entry.Filename, &entry.IsNewPhoto, &entry.UploadedAt, &entry.CreatedAt, &entry.UploaderToken, &entry.RequestPath); err != nil {
			return nil, fmt.Errorf("scan feed entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feed entries: %w", err)
	}
	return entries, nil
}
