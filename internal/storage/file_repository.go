package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"photoseleven/internal/models"
)

type dataset struct {
	Users map[string]models.User        `json:"users"`
	Feed  map[string][]models.FeedEntry `json:"feed"`
}

func newDataset() dataset {
	return dataset{
		Users: make(map[string]models.User),
		Feed:  make(map[string][]models.FeedEntry),
	}
}

// FileRepository keeps the full dataset in memory guarded by a mutex and, when
// a path is configured, persists every mutation to a JSON file via an atomic
// temp-file rename. An empty path keeps the dataset memory-only, which is what
// the tests use.
type FileRepository struct {
	mu       sync.RWMutex
	filePath string
	data     dataset
	// persistOverride allows tests to intercept persist operations.
	persistOverride func(dataset) error
}

// NewFileRepository opens the JSON-backed datastore at path, creating the
// parent directory when needed. An empty path disables persistence.
func NewFileRepository(path string) (*FileRepository, error) {
	store := &FileRepository{filePath: path}
	if err := store.load(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *FileRepository) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.filePath == "" {
		s.data = newDataset()
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	file, err := os.Open(s.filePath)
	if errors.Is(err, os.ErrNotExist) {
		s.data = newDataset()
		return nil
	} else if err != nil {
		return fmt.Errorf("open store file: %w", err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&s.data); err != nil {
		if errors.Is(err, io.EOF) {
			s.data = newDataset()
			return nil
		}
		return fmt.Errorf("decode store file: %w", err)
	}
	if s.data.Users == nil {
		s.data.Users = make(map[string]models.User)
	}
	if s.data.Feed == nil {
		s.data.Feed = make(map[string][]models.FeedEntry)
	}
	return nil
}

func (s *FileRepository) persistDataset(data dataset) error {
	if s.persistOverride != nil {
		if err := s.persistOverride(data); err != nil {
			return err
		}
	}
	if s.filePath == "" {
		return nil
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, "store-*.json")
	if err != nil {
		return fmt.Errorf("create temp store file: %w", err)
	}
	tmpPath := tmpFile.Name()
	success := false
	defer func() {
		if !success {
			_ = tmpFile.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	encoder := json.NewEncoder(tmpFile)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encode store file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("flush store file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp store file: %w", err)
	}

	if err := os.Rename(tmpPath, s.filePath); err != nil {
		return fmt.Errorf("replace store file: %w", err)
	}
	success = true
	return nil
}

func cloneDataset(src dataset) dataset {
	clone := newDataset()
	for username, user := range src.Users {
		clone.Users[username] = user
	}
	for owner, entries := range src.Feed {
		clone.Feed[owner] = append([]models.FeedEntry(nil), entries...)
	}
	return clone
}

// Ping reports the store as healthy; the in-memory dataset has no external
// dependency to probe.
func (s *FileRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *FileRepository) CreateUser(ctx context.Context, username, password string) (models.User, error) {
	hashed, err := hashPassword(password)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := normalizeUsername(username)
	if _, exists := s.data.Users[key]; exists {
		return models.User{}, ErrUserExists
	}

	updated := cloneDataset(s.data)
	user := models.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hashed,
		CreatedAt:    time.Now().UTC(),
	}
	updated.Users[key] = user

	if err := s.persistDataset(updated); err != nil {
		return models.User{}, err
	}
	s.data = updated
	return user, nil
}

func (s *FileRepository) GetUser(ctx context.Context, username string) (models.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.data.Users[normalizeUsername(username)]
	return user, ok, nil
}

func (s *FileRepository) AuthenticateUser(ctx context.Context, username, password string) (models.User, error) {
	s.mu.RLock()
	user, ok := s.data.Users[normalizeUsername(username)]
	s.mu.RUnlock()
	if !ok {
		return models.User{}, ErrUserNotExist
	}
	if err := verifyPassword(user.PasswordHash, password); err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (s *FileRepository) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := normalizeUsername(username)
	user, ok := s.data.Users[key]
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

	updated := cloneDataset(s.data)
	user.PasswordHash = hashed
	updated.Users[key] = user

	if err := s.persistDataset(updated); err != nil {
		return err
	}
	s.data = updated
	return nil
}

// SetUserPassword replaces a user's password without checking the old one.
// It backs operator tooling and is not reachable from the HTTP API.
func (s *FileRepository) SetUserPassword(ctx context.Context, username, password string) error {
	hashed, err := hashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := normalizeUsername(username)
	user, ok := s.data.Users[key]
	if !ok {
		return ErrUserNotExist
	}

	updated := cloneDataset(s.data)
	user.PasswordHash = hashed
	updated.Users[key] = user

	if err := s.persistDataset(updated); err != nil {
		return err
	}
	s.data = updated
	return nil
}

func (s *FileRepository) DeleteUser(ctx context.Context, username, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := normalizeUsername(username)
	user, ok := s.data.Users[key]
	if !ok {
		return ErrUserNotExist
	}
	if err := verifyPassword(user.PasswordHash, password); err != nil {
		return err
	}

	updated := cloneDataset(s.data)
	delete(updated.Users, key)
	delete(updated.Feed, key)

	if err := s.persistDataset(updated); err != nil {
		return err
	}
	s.data = updated
	return nil
}

func (s *FileRepository) AppendFeedEntry(ctx context.Context, entry models.FeedEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	owner := normalizeUsername(entry.Owner)
	updated := cloneDataset(s.data)
	updated.Feed[owner] = append(updated.Feed[owner], entry)

	if err := s.persistDataset(updated); err != nil {
		return err
	}
	s.data = updated
	return nil
}

func (s *FileRepository) ListFeedUpdates(ctx context.Context, owner string, since time.Time, excludeToken string, limit int) ([]models.FeedEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.data.Feed[normalizeUsername(owner)]
	matched := make([]models.FeedEntry, 0, len(entries))
	for _, entry := range entries {
		if !entry.UploadedAt.After(since) {
			continue
		}
		if entry.UploaderToken == excludeToken {
			continue
		}
		matched = append(matched, entry)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].UploadedAt.Before(matched[j].UploadedAt)
	})
	if limit >= 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
