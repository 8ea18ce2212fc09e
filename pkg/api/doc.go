// Package api provides the HTTP serving surface: a gorilla/mux router
// wiring organization, membership, invitation and role assignment
// routes behind authentication middleware and per-route authorization
// guards.
package api
