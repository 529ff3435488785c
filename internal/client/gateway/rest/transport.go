package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/farmmarket/internal/client/gateway"
)

const apiKeyHeader = "apikey"

// transport performs JSON requests against the backend base URL.
type transport struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func newTransport(baseURL, apiKey string, hc *http.Client) *transport {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &transport{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, http: hc}
}

func (t *transport) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	u := t.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set(apiKeyHeader, t.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func setBearer(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
}

// do sends req and decodes a 2xx JSON body into out (when out is non-nil and
// the body is not empty). Non-2xx answers become *gateway.RemoteError.
func (t *transport) do(req *http.Request, op string, out any) error {
	resp, err := t.http.Do(req)
	if err != nil {
		return gateway.Transport(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return gateway.Transport(op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s: %w", op, decodeError(resp.StatusCode, body))
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// errorBody covers both GoTrue and PostgREST error shapes.
type errorBody struct {
	Code             any    `json:"code"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func decodeError(status int, body []byte) *gateway.RemoteError {
	re := &gateway.RemoteError{Status: status}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		re.Message = strings.TrimSpace(string(body))
		if re.Message == "" {
			re.Message = http.StatusText(status)
		}
		return re
	}

	switch code := eb.Code.(type) {
	case string:
		re.Code = code
	}
	if eb.ErrorCode != "" {
		re.Code = eb.ErrorCode
	}
	if re.Code == "" {
		re.Code = eb.Error
	}

	for _, m := range []string{eb.Msg, eb.Message, eb.ErrorDescription, eb.Error} {
		if m != "" {
			re.Message = m
			break
		}
	}
	if re.Message == "" {
		re.Message = http.StatusText(status)
	}
	return re
}

func isRemote(err error) bool {
	var re *gateway.RemoteError
	return errors.As(err, &re)
}
