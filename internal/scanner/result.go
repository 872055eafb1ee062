package scanner

import (
	"errors"
	"fmt"

	"github.com/HerbHall/leasetrace/pkg/models"
)

var (
	// ErrScanAborted matches every *AbortedError.
	ErrScanAborted = errors.New("scan aborted")

	// ErrMalformedEvent is the cause of an abort when an event has no timestamp.
	ErrMalformedEvent = errors.New("event without occurredAt")

	// ErrBoundaryStalled is the cause of an abort when a full page that
	// promises more events holds nothing older than the requested boundary.
	ErrBoundaryStalled = errors.New("event page did not advance the boundary")

	// ErrInvalidQuery is returned before any page is fetched when the query
	// has no target address or no cutoff.
	ErrInvalidQuery = errors.New("invalid search query")

	// ErrNoClientID is recorded as DetailErr when the winning lease names no client.
	ErrNoClientID = errors.New("lease event has no client id")
)

// AbortedError reports a scan that could not complete. It is distinct from
// a completed scan that found nothing.
type AbortedError struct {
	PagesRead int
	Cause     error
}

func (e *AbortedError) Error() string {
	return fmt.Sprintf("scan aborted after %d page(s): %v", e.PagesRead, e.Cause)
}

func (e *AbortedError) Unwrap() error { return e.Cause }

// Is makes errors.Is(err, ErrScanAborted) true for any AbortedError.
func (e *AbortedError) Is(target error) bool { return target == ErrScanAborted }

// Result is the outcome of one completed scan: either Found with the
// closest prior lease and its client, or not found.
type Result struct {
	Found  bool                `json:"found" yaml:"found"`
	Event  models.LeaseEvent   `json:"event,omitzero" yaml:"event,omitempty"`
	Detail models.ClientDetail `json:"detail,omitzero" yaml:"detail,omitempty"`
	// DetailErr is set when the client lookup failed; Detail then falls
	// back to what the lease event itself carries.
	DetailErr error `json:"-" yaml:"-"`

	PagesRead  int `json:"pages_read" yaml:"pages_read"`
	EventsSeen int `json:"events_seen" yaml:"events_seen"`
}
