// Package scanner walks a network's event log backwards from a cutoff and
// finds the lease that most recently assigned an address before it.
package scanner

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/leasetrace/internal/dashboard"
	"github.com/HerbHall/leasetrace/pkg/models"
)

const (
	// Unbounded reads pages until the event log is exhausted.
	Unbounded = -1

	// DefaultPageSize is the largest page the events endpoint serves.
	DefaultPageSize = 1000
)

// EventSource returns pages of a network event log, newest first, holding
// events strictly before the query boundary.
type EventSource interface {
	ListEvents(ctx context.Context, q dashboard.EventQuery) (*dashboard.EventPage, error)
}

// ClientSource looks up client details.
type ClientSource interface {
	GetClient(ctx context.Context, networkID, clientID string) (models.ClientDetail, error)
}

// Scanner searches event logs for lease events.
type Scanner struct {
	events      EventSource
	clients     ClientSource
	productType string
	logger      *zap.Logger
}

// New creates a Scanner. productType selects the event log of multi-product
// networks ("appliance" for DHCP served by a security appliance).
func New(events EventSource, clients ClientSource, productType string, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{
		events:      events,
		clients:     clients,
		productType: productType,
		logger:      logger,
	}
}

// Scan pages backwards through networkID's lease events starting at
// q.Cutoff and returns the latest lease of q.TargetIP at or before the
// cutoff. maxPages <= 0 reads until the log is exhausted.
//
// Every page after the first is requested with the oldest timestamp seen so
// far as its boundary, so boundaries strictly decrease across the scan.
func (s *Scanner) Scan(ctx context.Context, networkID string, q models.SearchQuery, pageSize, maxPages int) (Result, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	cutoff := q.Cutoff.UTC()
	target := q.TargetIP.Unmap()

	if !target.IsValid() || cutoff.IsZero() {
		return Result{}, fmt.Errorf("%w: ip=%q cutoff=%v", ErrInvalidQuery, q.TargetIP, q.Cutoff)
	}

	var (
		best     *models.LeaseEvent
		result   Result
		boundary = cutoff
	)

	for maxPages <= 0 || result.PagesRead < maxPages {
		page, err := s.events.ListEvents(ctx, dashboard.EventQuery{
			NetworkID:    networkID,
			ProductType:  s.productType,
			EventTypes:   []string{models.EventTypeDHCPLease},
			EndingBefore: boundary,
			PerPage:      pageSize,
		})
		if err != nil {
			return Result{}, &AbortedError{PagesRead: result.PagesRead, Cause: err}
		}
		result.PagesRead++
		result.EventsSeen += len(page.Events)

		if len(page.Events) == 0 {
			break
		}

		oldest := boundary
		for i := range page.Events {
			ev := &page.Events[i]
			if ev.OccurredAt.IsZero() {
				return Result{}, &AbortedError{PagesRead: result.PagesRead, Cause: ErrMalformedEvent}
			}
			if ev.OccurredAt.Before(oldest) {
				oldest = ev.OccurredAt
			}
			if !eligible(ev, target, cutoff) {
				continue
			}
			if best == nil || ev.OccurredAt.After(best.OccurredAt) {
				lease := ev.LeaseEvent()
				best = &lease
			}
		}

		more := len(page.Events) >= pageSize && page.HasMore
		if !oldest.Before(boundary) {
			if more {
				// Another request with the same boundary would replay this page.
				return Result{}, &AbortedError{PagesRead: result.PagesRead, Cause: ErrBoundaryStalled}
			}
			s.logger.Warn("final event page did not advance the boundary",
				zap.String("network_id", networkID),
				zap.Int("page", result.PagesRead),
				zap.Time("boundary", boundary),
			)
			break
		}
		boundary = oldest

		s.logger.Debug("event page scanned",
			zap.String("network_id", networkID),
			zap.Int("page", result.PagesRead),
			zap.Int("events", len(page.Events)),
			zap.Time("next_boundary", boundary),
			zap.Bool("candidate", best != nil),
		)

		if !more {
			break
		}
	}

	if best == nil {
		s.logger.Info("no qualifying lease event",
			zap.String("network_id", networkID),
			zap.String("ip", target.String()),
			zap.Int("pages", result.PagesRead),
		)
		return result, nil
	}

	result.Found = true
	result.Event = *best
	result.Detail, result.DetailErr = s.enrich(ctx, networkID, *best)

	s.logger.Info("lease event found",
		zap.String("network_id", networkID),
		zap.String("ip", target.String()),
		zap.String("client_id", best.ClientID),
		zap.Time("occurred_at", best.OccurredAt),
		zap.Int("pages", result.PagesRead),
	)
	return result, nil
}

// enrich fetches the winning lease's client once. On failure the detail is
// filled from the lease event and the error is returned alongside.
func (s *Scanner) enrich(ctx context.Context, networkID string, lease models.LeaseEvent) (models.ClientDetail, error) {
	fallback := models.ClientDetail{MAC: lease.ClientMAC, Description: lease.ClientDescription}
	if lease.ClientID == "" {
		return fallback, ErrNoClientID
	}

	detail, err := s.clients.GetClient(ctx, networkID, lease.ClientID)
	if err != nil {
		s.logger.Warn("client lookup failed",
			zap.String("network_id", networkID),
			zap.String("client_id", lease.ClientID),
			zap.Error(err),
		)
		return fallback, fmt.Errorf("client detail: %w", err)
	}
	if detail.MAC == "" {
		detail.MAC = lease.ClientMAC
	}
	return detail, nil
}

// eligible reports whether ev is a lease of target at or before cutoff.
func eligible(ev *dashboard.Event, target netip.Addr, cutoff time.Time) bool {
	if ev.Type != models.EventTypeDHCPLease || ev.OccurredAt.After(cutoff) {
		return false
	}
	ip, err := netip.ParseAddr(ev.EventData.IP)
	if err != nil {
		return false
	}
	return ip.Unmap() == target
}
