package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"photoseleven/internal/models"
)

func newMemoryRepository(t *testing.T) *FileRepository {
	t.Helper()
	repo, err := NewFileRepository("")
	if err != nil {
		t.Fatalf("NewFileRepository: %v", err)
	}
	return repo
}

func TestCreateUserDuplicate(t *testing.T) {
	repo := newMemoryRepository(t)
	ctx := context.Background()

	user, err := repo.CreateUser(ctx, "alice", "pw1")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.ID == "" {
		t.Fatalf("CreateUser returned empty ID")
	}
	if user.Username != "alice" {
		t.Fatalf("Username = %q, want %q", user.Username, "alice")
	}

	if _, err := repo.CreateUser(ctx, "alice", "pw2"); !errors.Is(err, ErrUserExists) {
		t.Fatalf("duplicate CreateUser = %v, want ErrUserExists", err)
	}
	if _, err := repo.CreateUser(ctx, "  Alice  ", "pw2"); !errors.Is(err, ErrUserExists) {
		t.Fatalf("case-insensitive duplicate CreateUser = %v, want ErrUserExists", err)
	}
}

func TestAuthenticateUser(t *testing.T) {
	repo := newMemoryRepository(t)
	ctx := context.Background()
	if _, err := repo.CreateUser(ctx, "alice", "pw1"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	user, err := repo.AuthenticateUser(ctx, "alice", "pw1")
	if err != nil {
		t.Fatalf("AuthenticateUser: %v", err)
	}
	if user.Username != "alice" {
		t.Fatalf("Username = %q, want %q", user.Username, "alice")
	}

	if _, err := repo.AuthenticateUser(ctx, "alice", "nope"); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("wrong password = %v, want ErrWrongPassword", err)
	}
	if _, err := repo.AuthenticateUser(ctx, "ghost", "pw1"); !errors.Is(err, ErrUserNotExist) {
		t.Fatalf("unknown user = %v, want ErrUserNotExist", err)
	}
}

func TestChangePassword(t *testing.T) {
	repo := newMemoryRepository(t)
	ctx := context.Background()
	if _, err := repo.CreateUser(ctx, "alice", "pw1"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	if err := repo.ChangePassword(ctx, "ghost", "pw1", "pw2"); !errors.Is(err, ErrUserNotExist) {
		t.Fatalf("unknown user = %v, want ErrUserNotExist", err)
	}
	if err := repo.ChangePassword(ctx, "alice", "nope", "pw2"); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("wrong password = %v, want ErrWrongPassword", err)
	}
	if err := repo.ChangePassword(ctx, "alice", "pw1", "pw1"); !errors.Is(err, ErrSamePassword) {
		t.Fatalf("unchanged password = %v, want ErrSamePassword", err)
	}

	if err := repo.ChangePassword(ctx, "alice", "pw1", "pw2"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if _, err := repo.AuthenticateUser(ctx, "alice", "pw2"); err != nil {
		t.Fatalf("AuthenticateUser with new password: %v", err)
	}
	if _, err := repo.AuthenticateUser(ctx, "alice", "pw1"); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("old password still accepted: %v", err)
	}
}

func TestSetUserPassword(t *testing.T) {
	repo := newMemoryRepository(t)
	ctx := context.Background()
	if _, err := repo.CreateUser(ctx, "alice", "pw1"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	if err := repo.SetUserPassword(ctx, "ghost", "pw2"); !errors.Is(err, ErrUserNotExist) {
		t.Fatalf("unknown user = %v, want ErrUserNotExist", err)
	}
	if err := repo.SetUserPassword(ctx, "alice", "pw2"); err != nil {
		t.Fatalf("SetUserPassword: %v", err)
	}
	if _, err := repo.AuthenticateUser(ctx, "alice", "pw2"); err != nil {
		t.Fatalf("AuthenticateUser with rotated password: %v", err)
	}
}

func TestDeleteUserRemovesFeed(t *testing.T) {
	repo := newMemoryRepository(t)
	ctx := context.Background()
	if _, err := repo.CreateUser(ctx, "alice", "pw1"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	entry := models.FeedEntry{
		Owner:      "alice",
		Filename:   "photo.jpg",
		UploadedAt: time.Now().UTC(),
	}
	if err := repo.AppendFeedEntry(ctx, entry); err != nil {
		t.Fatalf("AppendFeedEntry: %v", err)
	}

	if err := repo.DeleteUser(ctx, "alice", "nope"); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("wrong password = %v, want ErrWrongPassword", err)
	}
	if err := repo.DeleteUser(ctx, "alice", "pw1"); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if err := repo.DeleteUser(ctx, "alice", "pw1"); !errors.Is(err, ErrUserNotExist) {
		t.Fatalf("second delete = %v, want ErrUserNotExist", err)
	}

	if _, ok, err := repo.GetUser(ctx, "alice"); err != nil || ok {
		t.Fatalf("GetUser after delete = (%v, %v), want miss", ok, err)
	}
	entries, err := repo.ListFeedUpdates(ctx, "alice", time.Time{}, "", -1)
	if err != nil {
		t.Fatalf("ListFeedUpdates: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("feed entries after delete = %d, want 0", len(entries))
	}
}

func TestListFeedUpdatesFiltersAndOrders(t *testing.T) {
	repo := newMemoryRepository(t)
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := []models.FeedEntry{
		{Owner: "alice", Filename: "old.jpg", UploaderToken: "phone", UploadedAt: base.Add(-time.Hour)},
		{Owner: "alice", Filename: "c.jpg", UploaderToken: "phone", UploadedAt: base.Add(3 * time.Minute)},
		{Owner: "alice", Filename: "a.jpg", UploaderToken: "phone", UploadedAt: base.Add(1 * time.Minute)},
		{Owner: "alice", Filename: "mine.jpg", UploaderToken: "laptop", UploadedAt: base.Add(2 * time.Minute)},
		{Owner: "bob", Filename: "other.jpg", UploaderToken: "phone", UploadedAt: base.Add(4 * time.Minute)},
	}
	for _, entry := range entries {
		if err := repo.AppendFeedEntry(ctx, entry); err != nil {
			t.Fatalf("AppendFeedEntry(%s): %v", entry.Filename, err)
		}
	}

	got, err := repo.ListFeedUpdates(ctx, "alice", base, "laptop", 10)
	if err != nil {
		t.Fatalf("ListFeedUpdates: %v", err)
	}
	want := []string{"a.jpg", "c.jpg"}
	if len(got) != len(want) {
		t.Fatalf("ListFeedUpdates returned %d entries, want %d", len(got), len(want))
	}
	for i, filename := range want {
		if got[i].Filename != filename {
			t.Fatalf("entry %d = %q, want %q", i, got[i].Filename, filename)
		}
	}
}

func TestListFeedUpdatesCursorIsExclusive(t *testing.T) {
	repo := newMemoryRepository(t)
	ctx := context.Background()

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	entry := models.FeedEntry{Owner: "alice", Filename: "exact.jpg", UploaderToken: "phone", UploadedAt: at}
	if err := repo.AppendFeedEntry(ctx, entry); err != nil {
		t.Fatalf("AppendFeedEntry: %v", err)
	}

	got, err := repo.ListFeedUpdates(ctx, "alice", at, "laptop", 10)
	if err != nil {
		t.Fatalf("ListFeedUpdates: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("entry at the cursor timestamp returned, want excluded")
	}
}

func TestListFeedUpdatesHonorsLimit(t *testing.T) {
	repo := newMemoryRepository(t)
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		entry := models.FeedEntry{
			Owner:         "alice",
			Filename:      fmt.Sprintf("photo-%d.jpg", i),
			UploaderToken: "phone",
			UploadedAt:    base.Add(time.Duration(i+1) * time.Minute),
		}
		if err := repo.AppendFeedEntry(ctx, entry); err != nil {
			t.Fatalf("AppendFeedEntry: %v", err)
		}
	}

	got, err := repo.ListFeedUpdates(ctx, "alice", base, "laptop", 2)
	if err != nil {
		t.Fatalf("ListFeedUpdates: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("limited result = %d entries, want 2", len(got))
	}
	if got[0].Filename != "photo-0.jpg" || got[1].Filename != "photo-1.jpg" {
		t.Fatalf("limit kept %q, %q; want the two oldest", got[0].Filename, got[1].Filename)
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	ctx := context.Background()

	repo, err := NewFileRepository(path)
	if err != nil {
		t.Fatalf("NewFileRepository: %v", err)
	}
	if _, err := repo.CreateUser(ctx, "alice", "pw1"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	entry := models.FeedEntry{
		Owner:      "alice",
		Filename:   "photo.jpg",
		UploadedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := repo.AppendFeedEntry(ctx, entry); err != nil {
		t.Fatalf("AppendFeedEntry: %v", err)
	}

	reopened, err := NewFileRepository(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if _, err := reopened.AuthenticateUser(ctx, "alice", "pw1"); err != nil {
		t.Fatalf("AuthenticateUser after reopen: %v", err)
	}
	entries, err := reopened.ListFeedUpdates(ctx, "alice", time.Time{}, "", -1)
	if err != nil {
		t.Fatalf("ListFeedUpdates after reopen: %v", err)
	}
	if len(entries) != 1 || entries[0].Filename != "photo.jpg" {
		t.Fatalf("feed after reopen = %+v, want the persisted entry", entries)
	}
}

func TestPersistFailureLeavesStateUntouched(t *testing.T) {
	repo := newMemoryRepository(t)
	ctx := context.Background()
	if _, err := repo.CreateUser(ctx, "alice", "pw1"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	repo.persistOverride = func(dataset) error { return errors.New("disk full") }
	if err := repo.ChangePassword(ctx, "alice", "pw1", "pw2"); err == nil {
		t.Fatalf("ChangePassword succeeded despite persist failure")
	}
	repo.persistOverride = nil

	if _, err := repo.AuthenticateUser(ctx, "alice", "pw1"); err != nil {
		t.Fatalf("original password rejected after failed persist: %v", err)
	}
}
