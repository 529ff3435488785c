package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/farmmarket/internal/client/gateway"
)

const restPrefix = "/rest/v1/"

// Tables is the PostgREST client. It implements gateway.TableGateway.
type Tables struct {
	t      *transport
	tokens TokenSource
}

var _ gateway.TableGateway = (*Tables)(nil)

// NewTables creates a PostgREST client. tokens supplies the bearer token of
// each request; nil means the anon key is always used.
func NewTables(baseURL, apiKey string, hc *http.Client, tokens TokenSource) *Tables {
	return &Tables{t: newTransport(baseURL, apiKey, hc), tokens: tokens}
}

func (c *Tables) request(ctx context.Context, method, table string, q url.Values, body any) (*http.Request, error) {
	req, err := c.t.newRequest(ctx, method, restPrefix+url.PathEscape(table), q, body)
	if err != nil {
		return nil, err
	}

	token := c.t.apiKey
	if c.tokens != nil {
		if token, err = c.tokens.AccessToken(ctx); err != nil {
			return nil, err
		}
	}
	setBearer(req, token)
	return req, nil
}

// selectParam renders columns and embeds in PostgREST select syntax, e.g.
// "*,farmer:users!farmer_id(username,phone)".
func selectParam(columns []string, embeds []gateway.Embed) string {
	parts := []string{"*"}
	if len(columns) > 0 {
		parts = append([]string(nil), columns...)
	}
	for _, e := range embeds {
		cols := "*"
		if len(e.Columns) > 0 {
			cols = strings.Join(e.Columns, ",")
		}
		parts = append(parts, e.Alias+":"+e.Table+"!"+e.ForeignKey+"("+cols+")")
	}
	return strings.Join(parts, ",")
}

func orderParam(order []gateway.Order) string {
	parts := make([]string, 0, len(order))
	for _, o := range order {
		dir := "asc"
		if o.Desc {
			dir = "desc"
		}
		parts = append(parts, o.Column+"."+dir)
	}
	return strings.Join(parts, ",")
}

func (c *Tables) Select(ctx context.Context, q gateway.Query) ([]gateway.Row, error) {
	v := url.Values{}
	v.Set("select", selectParam(q.Columns, q.Embeds))
	for _, f := range q.Filters {
		v.Add(f.Column, "eq."+f.Value)
	}
	if len(q.Order) > 0 {
		v.Set("order", orderParam(q.Order))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}

	req, err := c.request(ctx, http.MethodGet, q.Table, v, nil)
	if err != nil {
		return nil, err
	}

	var rows []json.RawMessage
	if err := c.t.do(req, "select "+q.Table, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Tables) Insert(ctx context.Context, table string, row any, ret gateway.Returning) (gateway.Row, error) {
	v := url.Values{"select": {selectParam(nil, ret.Embeds)}}

	req, err := c.request(ctx, http.MethodPost, table, v, row)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Prefer", "return=representation")

	var rows []json.RawMessage
	if err := c.t.do(req, "insert "+table, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, gateway.NoRows(table, "")
	}
	return rows[0], nil
}

func (c *Tables) Update(ctx context.Context, table, id string, patch any, ret gateway.Returning) (gateway.Row, error) {
	v := url.Values{
		"id":     {"eq." + id},
		"select": {selectParam(nil, ret.Embeds)},
	}

	req, err := c.request(ctx, http.MethodPatch, table, v, patch)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Prefer", "return=representation")

	var rows []json.RawMessage
	if err := c.t.do(req, "update "+table, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, gateway.NoRows(table, id)
	}
	return rows[0], nil
}

func (c *Tables) Delete(ctx context.Context, table, id string) error {
	v := url.Values{"id": {"eq." + id}}

	req, err := c.request(ctx, http.MethodDelete, table, v, nil)
	if err != nil {
		return err
	}
	return c.t.do(req, "delete "+table, nil)
}
