package pgtable

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/farmmarket/internal/client/gateway"
	"github.com/dmitrijs2005/farmmarket/internal/common"
)

var farmerEmbed = gateway.Embed{
	Alias:      "farmer",
	Table:      "users",
	ForeignKey: "farmer_id",
	Columns:    []string{"username", "phone"},
}

const (
	selectProductsSQL = `SELECT row_to_json(r) FROM (SELECT t.*, ` +
		`(SELECT json_build_object('username', e."username", 'phone', e."phone") FROM "users" e WHERE e."id" = t."farmer_id") AS "farmer" ` +
		`FROM "products" t WHERE t."category"::text = $1 ORDER BY t."created_at" DESC LIMIT 5) r`
	insertProductSQL = `WITH t AS (INSERT INTO "products" ("name", "price_per_kg") VALUES ($1, $2) RETURNING *) ` +
		`SELECT row_to_json(r) FROM (SELECT t.* FROM t) r`
	updateProductSQL = `WITH t AS (UPDATE "products" SET "name" = $1 WHERE "id"::text = $2 RETURNING *) ` +
		`SELECT row_to_json(r) FROM (SELECT t.* FROM t) r`
	deleteProductSQL = `DELETE FROM "products" WHERE "id"::text = $1`
)

func newTablesWithMock(t *testing.T) (*Tables, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return New(db), mock, db
}

func TestBuildSelect(t *testing.T) {
	q, args := buildSelect(gateway.Query{
		Table:   "products",
		Embeds:  []gateway.Embed{farmerEmbed},
		Filters: []gateway.Eq{{Column: "category", Value: "vegetables"}},
		Order:   []gateway.Order{{Column: "created_at", Desc: true}},
		Limit:   5,
	})
	assert.Equal(t, selectProductsSQL, q)
	assert.Equal(t, []any{"vegetables"}, args)

	q, args = buildSelect(gateway.Query{
		Table:   "market_prices",
		Columns: []string{"id", "price"},
		Filters: []gateway.Eq{{Column: "crop_name", Value: "maize"}, {Column: "market_location", Value: "Nakuru"}},
		Order:   []gateway.Order{{Column: "date_recorded", Desc: true}, {Column: "id"}},
	})
	assert.Equal(t, `SELECT row_to_json(r) FROM (SELECT t."id", t."price" FROM "market_prices" t `+
		`WHERE t."crop_name"::text = $1 AND t."market_location"::text = $2 ORDER BY t."date_recorded" DESC, t."id") r`, q)
	assert.Equal(t, []any{"maize", "Nakuru"}, args)
}

func TestBuildSelect_QuotesIdentifiers(t *testing.T) {
	q, _ := buildSelect(gateway.Query{
		Table:  `weird"table`,
		Embeds: []gateway.Embed{{Alias: "o", Table: "users", ForeignKey: "owner_id", Columns: []string{"it's"}}},
	})
	assert.Contains(t, q, `FROM "weird""table" t`)
	assert.Contains(t, q, `json_build_object('it''s', e."it's")`)
}

func TestBuildWrites(t *testing.T) {
	q, args, err := buildInsert("products", map[string]any{"price_per_kg": 2.5, "name": "Kale"}, gateway.Returning{})
	require.NoError(t, err)
	assert.Equal(t, insertProductSQL, q)
	assert.Equal(t, []any{"Kale", 2.5}, args)

	q, args, err = buildUpdate("products", "p1", struct {
		Name string `json:"name"`
		Skip string `json:"skip,omitempty"`
	}{Name: "Kale"}, gateway.Returning{})
	require.NoError(t, err)
	assert.Equal(t, updateProductSQL, q)
	assert.Equal(t, []any{"Kale", "p1"}, args)

	_, _, err = buildUpdate("products", "p1", map[string]any{}, gateway.Returning{})
	assert.ErrorIs(t, err, common.ErrValidation)

	_, _, err = buildInsert("products", []int{1}, gateway.Returning{})
	assert.ErrorIs(t, err, common.ErrValidation)

	q, args = buildDelete("products", "p1")
	assert.Equal(t, deleteProductSQL, q)
	assert.Equal(t, []any{"p1"}, args)
}

func TestTables_Select(t *testing.T) {
	r, mock, db := newTablesWithMock(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(selectProductsSQL)).
		WithArgs("vegetables").
		WillReturnRows(sqlmock.NewRows([]string{"row_to_json"}).
			AddRow([]byte(`{"id":"p1","farmer":{"username":"ann","phone":null}}`)).
			AddRow([]byte(`{"id":"p2","farmer":null}`)))

	rows, err := r.Select(context.Background(), gateway.Query{
		Table:   "products",
		Embeds:  []gateway.Embed{farmerEmbed},
		Filters: []gateway.Eq{{Column: "category", Value: "vegetables"}},
		Order:   []gateway.Order{{Column: "created_at", Desc: true}},
		Limit:   5,
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.JSONEq(t, `{"id":"p1","farmer":{"username":"ann","phone":null}}`, string(rows[0]))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTables_SelectEmpty(t *testing.T) {
	r, mock, db := newTablesWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT row_to_json`).WillReturnRows(sqlmock.NewRows([]string{"row_to_json"}))

	rows, err := r.Select(context.Background(), gateway.Query{Table: "products"})
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestTables_InsertAndUpdate(t *testing.T) {
	ctx := context.Background()
	r, mock, db := newTablesWithMock(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(insertProductSQL)).
		WithArgs("Kale", 2.5).
		WillReturnRows(sqlmock.NewRows([]string{"row_to_json"}).AddRow([]byte(`{"id":"p1","name":"Kale"}`)))

	row, err := r.Insert(ctx, "products", map[string]any{"name": "Kale", "price_per_kg": 2.5}, gateway.Returning{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"p1","name":"Kale"}`, string(row))

	mock.ExpectQuery(regexp.QuoteMeta(updateProductSQL)).
		WithArgs("Curly kale", "p1").
		WillReturnRows(sqlmock.NewRows([]string{"row_to_json"}).AddRow([]byte(`{"id":"p1","name":"Curly kale"}`)))

	row, err = r.Update(ctx, "products", "p1", map[string]any{"name": "Curly kale"}, gateway.Returning{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"p1","name":"Curly kale"}`, string(row))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTables_UpdateMissingRow(t *testing.T) {
	r, mock, db := newTablesWithMock(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(updateProductSQL)).
		WithArgs("Kale", "nope").
		WillReturnRows(sqlmock.NewRows([]string{"row_to_json"}))

	_, err := r.Update(context.Background(), "products", "nope", map[string]any{"name": "Kale"}, gateway.Returning{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestTables_Delete(t *testing.T) {
	r, mock, db := newTablesWithMock(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(deleteProductSQL)).
		WithArgs("p1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, r.Delete(context.Background(), "products", "p1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTables_ErrorMapping(t *testing.T) {
	ctx := context.Background()

	t.Run("constraint violation", func(t *testing.T) {
		r, mock, db := newTablesWithMock(t)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta(insertProductSQL)).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, Message: "duplicate key value"})

		_, err := r.Insert(ctx, "products", map[string]any{"name": "Kale", "price_per_kg": 2.5}, gateway.Returning{})
		var re *gateway.RemoteError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, http.StatusConflict, re.Status)
		assert.Equal(t, pgerrcode.UniqueViolation, re.Code)
		assert.Equal(t, "duplicate key value", re.Message)
		assert.True(t, errors.Is(err, common.ErrRemoteRejected))
	})

	t.Run("connection", func(t *testing.T) {
		r, mock, db := newTablesWithMock(t)
		defer db.Close()

		mock.ExpectExec(regexp.QuoteMeta(deleteProductSQL)).WillReturnError(errors.New("connection reset"))

		err := r.Delete(ctx, "products", "p1")
		assert.True(t, errors.Is(err, common.ErrTransport))
		assert.False(t, errors.Is(err, common.ErrRemoteRejected))
	})
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{pgerrcode.UniqueViolation, http.StatusConflict},
		{pgerrcode.ForeignKeyViolation, http.StatusConflict},
		{pgerrcode.CheckViolation, http.StatusBadRequest},
		{pgerrcode.InvalidTextRepresentation, http.StatusBadRequest},
		{pgerrcode.InsufficientPrivilege, http.StatusForbidden},
		{pgerrcode.UndefinedTable, http.StatusNotFound},
		{pgerrcode.InternalError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.code))
		})
	}
}
