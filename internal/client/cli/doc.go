// Package cli provides the interactive farmmarket terminal client.
//
// NewApp wires configuration, the local state database, the backend
// gateways and the services; App.Run restores the saved session, starts a
// connectivity watcher and serves a REPL until the user exits.
//
// Pages are opened with "open <path>" and go through the navigation guard,
// so a guest asking for /dashboard lands on /login. Commands that manage
// listings require the same access as the dashboard.
package cli
