package gateway

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/farmmarket/internal/common"
)

// RemoteError is a structured rejection from the remote service.
type RemoteError struct {
	Status  int    // transport status (HTTP), 0 when not applicable
	Code    string // service specific code
	Message string
}

func (e *RemoteError) Error() string {
	switch {
	case e.Code != "" && e.Status != 0:
		return fmt.Sprintf("remote error %d (%s): %s", e.Status, e.Code, e.Message)
	case e.Code != "":
		return fmt.Sprintf("remote error (%s): %s", e.Code, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("remote error %d: %s", e.Status, e.Message)
	}
	return "remote error: " + e.Message
}

func (e *RemoteError) Is(target error) bool {
	if target == common.ErrRemoteRejected {
		return true
	}
	if target == common.ErrNotFound {
		return e.Status == 404 || e.Code == CodeNoRows
	}
	return false
}

// CodeNoRows is reported when a single-row operation matched nothing.
const CodeNoRows = "PGRST116"

// NoRows builds the RemoteError for an operation that matched no record.
func NoRows(table, id string) *RemoteError {
	return &RemoteError{Status: 406, Code: CodeNoRows, Message: fmt.Sprintf("no %s row with id %q", table, id)}
}

// Transport wraps err as a transport failure.
func Transport(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, common.ErrTransport, err)
}

// Message extracts the human-readable part of err: the service's message for
// a RemoteError, err.Error() otherwise, fallback when err carries no text.
func Message(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var re *RemoteError
	if errors.As(err, &re) && re.Message != "" {
		return re.Message
	}
	if s := err.Error(); s != "" {
		return s
	}
	return fallback
}
