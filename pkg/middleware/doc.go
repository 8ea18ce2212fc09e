// Package middleware provides HTTP middleware for the API server.
// Authentication resolves bearer tokens to principals; authorization
// decisions are made downstream by pkg/guard.
package middleware
