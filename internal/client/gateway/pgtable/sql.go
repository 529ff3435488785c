package pgtable

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrijs2005/farmmarket/internal/client/gateway"
	"github.com/dmitrijs2005/farmmarket/internal/common"
)

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// embedExpr renders a correlated subquery producing the embed as a JSON
// object (NULL when the related row is missing).
func embedExpr(base string, e gateway.Embed) string {
	obj := "row_to_json(e)"
	if len(e.Columns) > 0 {
		pairs := make([]string, 0, len(e.Columns))
		for _, c := range e.Columns {
			pairs = append(pairs, "'"+strings.ReplaceAll(c, "'", "''")+"', e."+ident(c))
		}
		obj = "json_build_object(" + strings.Join(pairs, ", ") + ")"
	}
	return fmt.Sprintf("(SELECT %s FROM %s e WHERE e.%s = %s.%s) AS %s",
		obj, ident(e.Table), ident("id"), base, ident(e.ForeignKey), ident(e.Alias))
}

func projection(base string, columns []string, embeds []gateway.Embed) string {
	parts := []string{base + ".*"}
	if len(columns) > 0 {
		parts = parts[:0]
		for _, c := range columns {
			parts = append(parts, base+"."+ident(c))
		}
	}
	for _, e := range embeds {
		parts = append(parts, embedExpr(base, e))
	}
	return strings.Join(parts, ", ")
}

func buildSelect(q gateway.Query) (string, []any) {
	var (
		b    strings.Builder
		args []any
	)
	b.WriteString("SELECT row_to_json(r) FROM (SELECT ")
	b.WriteString(projection("t", q.Columns, q.Embeds))
	b.WriteString(" FROM ")
	b.WriteString(ident(q.Table))
	b.WriteString(" t")

	for i, f := range q.Filters {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		args = append(args, f.Value)
		fmt.Fprintf(&b, "t.%s::text = $%d", ident(f.Column), len(args))
	}

	for i, o := range q.Order {
		if i == 0 {
			b.WriteString(" ORDER BY ")
		} else {
			b.WriteString(", ")
		}
		b.WriteString("t." + ident(o.Column))
		if o.Desc {
			b.WriteString(" DESC")
		}
	}

	if q.Limit > 0 {
		b.WriteString(" LIMIT " + strconv.Itoa(q.Limit))
	}
	b.WriteString(") r")
	return b.String(), args
}

// columnsOf flattens v (a struct or map with JSON tags) into sorted column
// names and matching values.
func columnsOf(v any) ([]string, []any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("%w: row must be a JSON object", common.ErrValidation)
	}

	cols := slices.Sorted(maps.Keys(m))
	vals := make([]any, 0, len(cols))
	for _, c := range cols {
		val := m[c]
		switch val.(type) {
		case map[string]any, []any:
			b, _ := json.Marshal(val)
			val = string(b)
		}
		vals = append(vals, val)
	}
	return cols, vals, nil
}

func returning(write string, ret gateway.Returning) string {
	return "WITH t AS (" + write + " RETURNING *) SELECT row_to_json(r) FROM (SELECT " +
		projection("t", nil, ret.Embeds) + " FROM t) r"
}

func buildInsert(table string, row any, ret gateway.Returning) (string, []any, error) {
	cols, vals, err := columnsOf(row)
	if err != nil {
		return "", nil, err
	}
	if len(cols) == 0 {
		return "", nil, fmt.Errorf("%w: empty row", common.ErrValidation)
	}

	quoted := make([]string, len(cols))
	params := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = ident(c)
		params[i] = "$" + strconv.Itoa(i+1)
	}

	write := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		ident(table), strings.Join(quoted, ", "), strings.Join(params, ", "))
	return returning(write, ret), vals, nil
}

func buildUpdate(table, id string, patch any, ret gateway.Returning) (string, []any, error) {
	cols, vals, err := columnsOf(patch)
	if err != nil {
		return "", nil, err
	}
	if len(cols) == 0 {
		return "", nil, fmt.Errorf("%w: empty patch", common.ErrValidation)
	}

	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = $%d", ident(c), i+1)
	}
	args := append(vals, id)

	write := fmt.Sprintf("UPDATE %s SET %s WHERE %s::text = $%d",
		ident(table), strings.Join(sets, ", "), ident("id"), len(args))
	return returning(write, ret), args, nil
}

func buildDelete(table, id string) (string, []any) {
	return fmt.Sprintf("DELETE FROM %s WHERE %s::text = $1", ident(table), ident("id")), []any{id}
}
