package correlate

import (
	"context"
	"errors"
	"net/netip"
	"time"

	"github.com/HerbHall/leasetrace/internal/resolver"
	"github.com/HerbHall/leasetrace/internal/scanner"
	"github.com/HerbHall/leasetrace/pkg/models"
)

// ErrInvalidInput is returned by a Prompter for an answer that should be
// asked again. Any other error ends the run.
var ErrInvalidInput = errors.New("invalid input")

// SearchMode picks how a network name is resolved.
type SearchMode int

const (
	// SearchBest offers the single best match for confirmation.
	SearchBest SearchMode = iota + 1
	// SearchList offers the top matches to pick a row from.
	SearchList
)

// Prompter is the operator facing side of a run. The controller owns every
// loop; a Prompter asks once per call.
type Prompter interface {
	TargetIP(ctx context.Context) (netip.Addr, error)
	Cutoff(ctx context.Context) (time.Time, error)
	// NetworkID returns a network ID typed by the operator, or "" to search
	// by name instead.
	NetworkID(ctx context.Context) (string, error)

	SearchText(ctx context.Context) (string, error)
	SearchMode(ctx context.Context) (SearchMode, error)
	ConfirmMatch(ctx context.Context, m resolver.Match) (bool, error)
	// ChooseRow returns a row of matches, or again=true to search anew.
	ChooseRow(ctx context.Context, matches []resolver.Match) (row int, again bool, err error)

	ShowFound(network models.Network, res scanner.Result)
	ConfirmBlock(ctx context.Context, lease models.LeaseEvent) (bool, error)

	// Invalid reports a rejected answer before the question is repeated.
	Invalid(err error)
}
