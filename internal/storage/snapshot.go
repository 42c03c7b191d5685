package storage

import (
	"context"
	"fmt"
	"sort"

	"photoseleven/internal/models"
)

// Snapshot is a point-in-time export of the datastore, used to move data
// between backends.
type Snapshot struct {
	Users []models.User      `json:"users"`
	Feed  []models.FeedEntry `json:"feed"`
}

// SnapshotCounts summarises a snapshot for logging and verification.
type SnapshotCounts struct {
	Users       int
	FeedEntries int
}

// Counts tallies the snapshot contents.
func (s Snapshot) Counts() SnapshotCounts {
	return SnapshotCounts{Users: len(s.Users), FeedEntries: len(s.Feed)}
}

// LoadSnapshotFromFile reads the JSON datastore at path and exports its
// contents.
func LoadSnapshotFromFile(path string) (Snapshot, error) {
	if path == "" {
		return Snapshot{}, fmt.Errorf("snapshot path required")
	}
	repo, err := NewFileRepository(path)
	if err != nil {
		return Snapshot{}, err
	}
	return repo.Snapshot(), nil
}

// Snapshot exports the current dataset in a deterministic order.
func (s *FileRepository) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Users: make([]models.User, 0, len(s.data.Users)),
		Feed:  make([]models.FeedEntry, 0),
	}
	for _, user := range s.data.Users {
		snap.Users = append(snap.Users, user)
	}
	sort.Slice(snap.Users, func(i, j int) bool {
		return snap.Users[i].Username < snap.Users[j].Username
	})
	owners := make([]string, 0, len(s.data.Feed))
	for owner := range s.data.Feed {
		owners = append(owners, owner)
	}
	sort.Strings(owners)
	for _, owner := range owners {
		snap.Feed = append(snap.Feed, s.data.Feed[owner]...)
	}
	return snap
}

type snapshotImporter interface {
	ImportSnapshot(ctx context.Context, snap Snapshot) error
}

// ImportSnapshotToPostgres loads a snapshot into a Postgres-backed repository.
// Existing rows with matching usernames are left untouched.
func ImportSnapshotToPostgres(ctx context.Context, repo Repository, snap Snapshot) error {
	importer, ok := repo.(snapshotImporter)
	if !ok {
		return fmt.Errorf("repository %T does not support snapshot import", repo)
	}
	return importer.ImportSnapshot(ctx, snap)
}

// ImportSnapshot inserts snapshot rows, preserving password hashes and
// timestamps as exported.
func (r *postgresRepository) ImportSnapshot(ctx context.Context, snap Snapshot) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, user := range snap.Users {
		if _, err := tx.Exec(ctx, `
INSERT INTO users (id, username, password_hash, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (lower(username)) DO NOTHING
`, user.ID, user.Username, user.PasswordHash, user.CreatedAt); err != nil {
			return fmt.Errorf("import user %s: %w", user.Username, err)
		}
	}
	for _, entry := range snap.Feed {
		if _, err := tx.Exec(ctx, `
INSERT INTO feed_entries (owner, filename, is_new_photo, uploaded_at, created_at, uploader_token, request_path)
VALUES (lower($1), $2, $3, $4, $5, $6, $7)
`, entry.Owner, entry.Filename, entry.IsNewPhoto, entry.UploadedAt.UTC(), entry.CreatedAt, entry.UploaderToken, entry.RequestPath); err != nil {
			return fmt.Errorf("import feed entry %s/%s: %w", entry.Owner, entry.Filename, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	return nil
}
