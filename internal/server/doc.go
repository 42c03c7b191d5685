// Package server assembles the photoseleven HTTP surface: route registration
// plus a fixed middleware chain of security headers, request IDs, logging,
// rate limiting, and bearer-token authentication, so handlers all share the
// same protections.
package server
