package models

import "time"

// User is a registered account. Passwords are never stored in plaintext; the
// hash format is produced by the storage package.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

// FeedEntry records a single successful media upload in the owner's update
// ledger. UploaderToken is the raw bearer token of the uploading session; the
// updates query excludes entries carrying the caller's own token so a client
// only sees uploads made by its peers.
type FeedEntry struct {
	Owner         string    `json:"owner"`
	Filename      string    `json:"filename"`
	IsNewPhoto    bool      `json:"isNewPhoto"`
	UploadedAt    time.Time `json:"uploadedAt"`
	CreatedAt     string    `json:"createdAt"`
	UploaderToken string    `json:"uploaderToken"`
	RequestPath   string    `json:"requestPath"`
}
