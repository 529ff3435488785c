// Package rest implements the gateway interfaces against a Supabase-compatible
// HTTP backend: GoTrue for sessions (/auth/v1) and PostgREST for tables
// (/rest/v1).
//
// Auth keeps the current session in memory and in a SessionStore, refreshes
// expired access tokens, and publishes session-change events to subscribers
// in order. Tables authorizes each request with the current access token, or
// the anon key when nobody is signed in.
package rest
