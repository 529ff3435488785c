package services

import "github.com/dmitrijs2005/farmmarket/internal/client/gateway"

// status is the loading/error pair every store exposes. It is guarded by
// the owning store's mutex.
type status struct {
	pending int
	err     string
}

// begin clears the error and marks one more operation in flight.
func (s *status) begin() {
	s.pending++
	s.err = ""
}

func (s *status) end() {
	s.pending--
}

// record stores the readable message of err.
func (s *status) record(err error, fallback string) {
	s.err = gateway.Message(err, fallback)
}
