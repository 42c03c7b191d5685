package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"photoseleven/internal/models"
)

func TestSnapshotExportsDeterministicOrder(t *testing.T) {
	repo := newMemoryRepository(t)
	ctx := context.Background()

	for _, username := range []string{"carol", "alice", "bob"} {
		if _, err := repo.CreateUser(ctx, username, "pw"); err != nil {
			t.Fatalf("CreateUser(%s): %v", username, err)
		}
	}
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, owner := range []string{"bob", "alice"} {
		entry := models.FeedEntry{Owner: owner, Filename: "photo.jpg", UploadedAt: at}
		if err := repo.AppendFeedEntry(ctx, entry); err != nil {
			t.Fatalf("AppendFeedEntry(%s): %v", owner, err)
		}
	}

	snap := repo.Snapshot()
	counts := snap.Counts()
	if counts.Users != 3 || counts.FeedEntries != 2 {
		t.Fatalf("counts = %+v, want 3 users and 2 feed entries", counts)
	}
	wantUsers := []string{"alice", "bob", "carol"}
	for i, username := range wantUsers {
		if snap.Users[i].Username != username {
			t.Fatalf("user %d = %q, want %q", i, snap.Users[i].Username, username)
		}
	}
	if snap.Feed[0].Owner != "alice" || snap.Feed[1].Owner != "bob" {
		t.Fatalf("feed owners = %q, %q; want alice, bob", snap.Feed[0].Owner, snap.Feed[1].Owner)
	}
}

func TestLoadSnapshotFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	ctx := context.Background()

	repo, err := NewFileRepository(path)
	if err != nil {
		t.Fatalf("NewFileRepository: %v", err)
	}
	if _, err := repo.CreateUser(ctx, "alice", "pw"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	snap, err := LoadSnapshotFromFile(path)
	if err != nil {
		t.Fatalf("LoadSnapshotFromFile: %v", err)
	}
	if got := snap.Counts().Users; got != 1 {
		t.Fatalf("users = %d, want 1", got)
	}

	if _, err := LoadSnapshotFromFile(""); err == nil {
		t.Fatalf("empty path accepted, want error")
	}
}
