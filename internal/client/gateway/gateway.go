package gateway

import (
	"context"
	"encoding/json"
	"io"

	"github.com/dmitrijs2005/farmmarket/internal/client/models"
)

// EventKind names a session-change notification.
type EventKind string

const (
	EventSignedIn       EventKind = "SIGNED_IN"
	EventSignedOut      EventKind = "SIGNED_OUT"
	EventTokenRefreshed EventKind = "TOKEN_REFRESHED"
)

// SessionEvent is delivered to OnSessionChange handlers. Session is nil for
// EventSignedOut.
type SessionEvent struct {
	Kind    EventKind
	Session *models.Session
}

// AuthGateway is the session side of the remote service.
type AuthGateway interface {
	// GetSession returns the current session, or nil when there is none.
	GetSession(ctx context.Context) (*models.Session, error)
	// OnSessionChange registers handler. Events are delivered in order on a
	// goroutine owned by the gateway. The returned func unsubscribes.
	OnSessionChange(handler func(SessionEvent)) (unsubscribe func())
	SignInWithPassword(ctx context.Context, email, password string) (*models.User, error)
	SignUp(ctx context.Context, email, password string) (*models.User, error)
	SignOut(ctx context.Context) error
	// GetCurrentUser asks the service for the user behind the current
	// session. It returns nil, nil when there is no session.
	GetCurrentUser(ctx context.Context) (*models.User, error)
}

// Row is one record as returned by the table interface, JSON encoded.
type Row = json.RawMessage

// TableGateway is the logical table interface (not a SQL dialect).
type TableGateway interface {
	Select(ctx context.Context, q Query) ([]Row, error)
	// Insert writes row and returns the stored record shaped by ret.
	Insert(ctx context.Context, table string, row any, ret Returning) (Row, error)
	// Update patches the record with the given id and returns it shaped by ret.
	// A missing id yields an error matching common.ErrNotFound.
	Update(ctx context.Context, table, id string, patch any, ret Returning) (Row, error)
	Delete(ctx context.Context, table, id string) error
}

// BlobGateway is the storage side of the remote service.
type BlobGateway interface {
	Upload(ctx context.Context, bucket, path string, body io.Reader, contentType string, size int64) error
	PublicURL(bucket, path string) string
	Remove(ctx context.Context, bucket string, paths []string) error
}

// DecodeRows unmarshals rows into a slice of T.
func DecodeRows[T any](rows []Row) ([]T, error) {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		var v T
		if err := json.Unmarshal(r, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// DecodeRow unmarshals a single row into T.
func DecodeRow[T any](row Row) (*T, error) {
	var v T
	if err := json.Unmarshal(row, &v); err != nil {
		return nil, err
	}
	return &v, nil
}
