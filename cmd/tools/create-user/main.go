// Command create-user seeds an account directly in the datastore, bypassing
// the HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"photoseleven/internal/storage"
)

func main() {
	var (
		dataPath    string
		postgresDSN string
		username    string
		password    string
		rotate      bool
	)

	flag.StringVar(&dataPath, "data", "", "Path to the JSON datastore (users.json)")
	flag.StringVar(&postgresDSN, "postgres-dsn", "", "Postgres connection string")
	flag.StringVar(&username, "username", "", "Username for the account")
	flag.StringVar(&password, "password", "", "Password for the account")
	flag.BoolVar(&rotate, "rotate", false, "Reset the password if the account already exists")
	flag.Parse()

	if dataPath == "" && postgresDSN == "" {
		fatalf("either --data or --postgres-dsn must be provided")
	}
	if dataPath != "" && postgresDSN != "" {
		fatalf("only one datastore option may be provided")
	}
	if strings.TrimSpace(username) == "" {
		fatalf("--username is required")
	}
	if len(password) < 8 {
		fatalf("--password must be at least 8 characters")
	}

	repo, err := openRepository(dataPath, postgresDSN)
	if err != nil {
		fatalf("open datastore: %v", err)
	}
	defer closeRepository(repo)

	username = strings.TrimSpace(username)
	ctx := context.Background()

	user, err := repo.CreateUser(ctx, username, password)
	switch {
	case err == nil:
		fmt.Printf("User %s created successfully.\n", user.Username)
	case errors.Is(err, storage.ErrUserExists) && rotate:
		if err := rotatePassword(ctx, repo, username, password); err != nil {
			fatalf("rotate password: %v", err)
		}
		fmt.Printf("User %s already existed; password updated.\n", username)
	case errors.Is(err, storage.ErrUserExists):
		fatalf("user %s already exists (use --rotate to reset the password)", username)
	default:
		fatalf("create user: %v", err)
	}
}

func rotatePassword(ctx context.Context, repo storage.Repository, username, password string) error {
	type passwordSetter interface {
		SetUserPassword(ctx context.Context, username, password string) error
	}
	setter, ok := repo.(passwordSetter)
	if !ok {
		return fmt.Errorf("datastore %T does not support password rotation", repo)
	}
	return setter.SetUserPassword(ctx, username, password)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func openRepository(dataPath, postgresDSN string) (storage.Repository, error) {
	if dataPath != "" {
		return storage.NewFileRepository(dataPath)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return storage.NewPostgresRepository(ctx, storage.PostgresConfig{DSN: postgresDSN})
}

func closeRepository(repo storage.Repository) {
	type closer interface {
		Close(context.Context) error
	}
	if c, ok := repo.(closer); ok {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = c.Close(ctx)
	}
}
