// Package pgtable implements gateway.TableGateway directly on PostgreSQL.
//
// It is the alternative to the PostgREST adapter for deployments that reach
// the database itself (operators, local development). Rows are produced by
// the database as JSON with row_to_json, so embeds and column shaping match
// what the REST adapter returns.
package pgtable
