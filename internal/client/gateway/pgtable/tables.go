package pgtable

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dmitrijs2005/farmmarket/internal/client/gateway"
	"github.com/dmitrijs2005/farmmarket/internal/dbx"
)

// Open connects to PostgreSQL through the pgx database/sql driver and checks
// the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, gateway.Transport("db ping", err)
	}
	return db, nil
}

// Tables implements gateway.TableGateway on a PostgreSQL connection.
type Tables struct {
	db dbx.DBTX
}

var _ gateway.TableGateway = (*Tables)(nil)

func New(db dbx.DBTX) *Tables {
	return &Tables{db: db}
}

func (r *Tables) Select(ctx context.Context, q gateway.Query) ([]gateway.Row, error) {
	query, args := buildSelect(q)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError("select "+q.Table, err)
	}
	defer rows.Close()

	out := []gateway.Row{}
	for rows.Next() {
		var b []byte
		if err := rows.Scan(&b); err != nil {
			return nil, mapError("select "+q.Table, err)
		}
		out = append(out, json.RawMessage(b))
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("select "+q.Table, err)
	}
	return out, nil
}

func (r *Tables) writeOne(ctx context.Context, op, table, id, query string, args []any) (gateway.Row, error) {
	var b []byte
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, gateway.NoRows(table, id)
	}
	if err != nil {
		return nil, mapError(op, err)
	}
	return json.RawMessage(b), nil
}

func (r *Tables) Insert(ctx context.Context, table string, row any, ret gateway.Returning) (gateway.Row, error) {
	query, args, err := buildInsert(table, row, ret)
	if err != nil {
		return nil, err
	}
	return r.writeOne(ctx, "insert "+table, table, "", query, args)
}

func (r *Tables) Update(ctx context.Context, table, id string, patch any, ret gateway.Returning) (gateway.Row, error) {
	query, args, err := buildUpdate(table, id, patch, ret)
	if err != nil {
		return nil, err
	}
	return r.writeOne(ctx, "update "+table, table, id, query, args)
}

func (r *Tables) Delete(ctx context.Context, table, id string) error {
	query, args := buildDelete(table, id)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return mapError("delete "+table, err)
	}
	return nil
}

// mapError turns database errors into gateway errors: server-side rejections
// become *gateway.RemoteError, everything else is a transport failure.
func mapError(op string, err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgerrcode.IsConnectionException(pgErr.Code) {
		return gateway.Transport(op, err)
	}
	return fmt.Errorf("%s: %w", op, &gateway.RemoteError{
		Status:  statusFor(pgErr.Code),
		Code:    pgErr.Code,
		Message: pgErr.Message,
	})
}

// statusFor maps SQLSTATE classes onto the HTTP statuses PostgREST uses.
func statusFor(code string) int {
	switch {
	case code == pgerrcode.UniqueViolation, code == pgerrcode.ForeignKeyViolation:
		return http.StatusConflict
	case code == pgerrcode.InsufficientPrivilege:
		return http.StatusForbidden
	case code == pgerrcode.UndefinedTable:
		return http.StatusNotFound
	case pgerrcode.IsIntegrityConstraintViolation(code), pgerrcode.IsDataException(code):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
