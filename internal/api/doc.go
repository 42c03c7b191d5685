// Package api implements the HTTP handlers for the photoseleven service:
// account management, token login, media upload/download, and the per-user
// updates feed.
package api
