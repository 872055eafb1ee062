package testutil

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/HerbHall/leasetrace/internal/dashboard"
	"github.com/HerbHall/leasetrace/pkg/models"
)

// ErrTransient simulates a retriable failure from a fake collaborator.
var ErrTransient = errors.New("simulated transient failure")

// NewLeaseEvent returns a DHCP lease log entry with sensible defaults,
// suitable for test fixtures. Override individual fields with options.
func NewLeaseEvent(opts ...func(*dashboard.Event)) dashboard.Event {
	e := dashboard.Event{
		OccurredAt:        time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC),
		NetworkID:         "N_1",
		Type:              models.EventTypeDHCPLease,
		Description:       "DHCP lease",
		ClientID:          "k01",
		ClientDescription: "test-client",
		ClientMAC:         "00:11:22:33:44:55",
		EventData:         dashboard.EventData{IP: "10.0.0.5", VLAN: "10"},
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// WithIP sets the leased address.
func WithIP(ip string) func(*dashboard.Event) {
	return func(e *dashboard.Event) { e.EventData.IP = ip }
}

// WithOccurredAt sets the event timestamp.
func WithOccurredAt(t time.Time) func(*dashboard.Event) {
	return func(e *dashboard.Event) { e.OccurredAt = t }
}

// WithClient sets the client id and description.
func WithClient(id, description string) func(*dashboard.Event) {
	return func(e *dashboard.Event) {
		e.ClientID = id
		e.ClientDescription = description
	}
}

// WithType sets the event type.
func WithType(eventType string) func(*dashboard.Event) {
	return func(e *dashboard.Event) { e.Type = eventType }
}

// EventLog is an in-memory event log honoring the events endpoint contract:
// newest first, strictly before the requested boundary, at most PerPage
// events per call.
type EventLog struct {
	mu     sync.Mutex
	events []dashboard.Event

	// FailFirst makes the first N calls fail with Err (ErrTransient if nil).
	FailFirst int
	Err       error

	calls      int
	boundaries []time.Time
}

// NewEventLog returns an EventLog holding events.
func NewEventLog(events ...dashboard.Event) *EventLog {
	sorted := append([]dashboard.Event(nil), events...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].OccurredAt.After(sorted[j].OccurredAt)
	})
	return &EventLog{events: sorted}
}

// ListEvents implements scanner.EventSource.
func (l *EventLog) ListEvents(_ context.Context, q dashboard.EventQuery) (*dashboard.EventPage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.calls++
	l.boundaries = append(l.boundaries, q.EndingBefore)
	if l.calls <= l.FailFirst {
		if l.Err != nil {
			return nil, l.Err
		}
		return nil, ErrTransient
	}

	var matched []dashboard.Event
	for _, e := range l.events {
		if !q.EndingBefore.IsZero() && !e.OccurredAt.Before(q.EndingBefore) {
			continue
		}
		if len(q.EventTypes) > 0 && !contains(q.EventTypes, e.Type) {
			continue
		}
		matched = append(matched, e)
	}

	page := &dashboard.EventPage{Events: matched}
	if q.PerPage > 0 && len(matched) > q.PerPage {
		page.Events = matched[:q.PerPage]
		page.HasMore = true
	}
	return page, nil
}

// Calls returns how many pages were requested.
func (l *EventLog) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

// Boundaries returns the endingBefore value of every request, in order.
func (l *EventLog) Boundaries() []time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]time.Time(nil), l.boundaries...)
}

// ScriptedPages replays fixed pages in order regardless of the requested
// boundary. Calls beyond the script return an empty page.
type ScriptedPages struct {
	Pages []dashboard.EventPage
	calls int
}

// ListEvents implements scanner.EventSource.
func (s *ScriptedPages) ListEvents(_ context.Context, _ dashboard.EventQuery) (*dashboard.EventPage, error) {
	s.calls++
	if s.calls > len(s.Pages) {
		return &dashboard.EventPage{}, nil
	}
	p := s.Pages[s.calls-1]
	return &p, nil
}

// Calls returns how many pages were requested.
func (s *ScriptedPages) Calls() int { return s.calls }

// Clients is an in-memory client directory.
type Clients struct {
	Details map[string]models.ClientDetail
	Err     error

	Lookups []string
}

// GetClient implements scanner.ClientSource.
func (c *Clients) GetClient(_ context.Context, _, clientID string) (models.ClientDetail, error) {
	c.Lookups = append(c.Lookups, clientID)
	if c.Err != nil {
		return models.ClientDetail{}, c.Err
	}
	d, ok := c.Details[clientID]
	if !ok {
		return models.ClientDetail{}, errors.New("client not found")
	}
	return d, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
