// Package correlate drives a lookup run end to end: collect the query,
// resolve the network, scan its event log, present the lease and decide on
// blocking the client.
package correlate

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HerbHall/leasetrace/internal/dashboard"
	"github.com/HerbHall/leasetrace/internal/resolver"
	"github.com/HerbHall/leasetrace/internal/scanner"
	"github.com/HerbHall/leasetrace/pkg/models"
)

var (
	// ErrActionFailed wraps the cause of a rejected block policy.
	ErrActionFailed = errors.New("action failed")

	// ErrPromptRequired is returned when a run needs an answer but was
	// started without a Prompter.
	ErrPromptRequired = errors.New("interactive input required")
)

// NetworkLister lists the networks of an organization.
type NetworkLister interface {
	ListNetworks(ctx context.Context, orgID string) ([]models.Network, error)
}

// EventScanner finds the closest prior lease of an address.
type EventScanner interface {
	Scan(ctx context.Context, networkID string, q models.SearchQuery, pageSize, maxPages int) (scanner.Result, error)
}

// PolicySetter applies a device policy to a client.
type PolicySetter interface {
	SetClientPolicy(ctx context.Context, networkID, clientID string, policy models.DevicePolicy) (*dashboard.PolicyResult, error)
}

// Request is the input of one run. Zero fields are collected from the
// Prompter.
type Request struct {
	TargetIP     netip.Addr
	Cutoff       time.Time
	NetworkID    string // used as-is when set
	NetworkQuery string // free text resolved against the organization's networks
	PageSize     int    // 0 uses the controller default
	MaxPages     int    // 0 uses the controller default; scanner.Unbounded reads everything
	Action       ActionMode
}

// Config holds controller defaults.
type Config struct {
	OrgID    string
	TopK     int
	PageSize int
	MaxPages int
}

// Controller runs lookups. It is not safe for concurrent use; each Run is
// one sequential flow of dashboard calls.
type Controller struct {
	cfg      Config
	networks NetworkLister
	scanner  EventScanner
	policies PolicySetter
	prompter Prompter
	logger   *zap.Logger
	now      func() time.Time
}

// New creates a Controller. prompter may be nil for fully specified,
// non-interactive requests.
func New(cfg Config, networks NetworkLister, scan EventScanner, policies PolicySetter, prompter Prompter, logger *zap.Logger) *Controller {
	if cfg.TopK <= 0 {
		cfg.TopK = resolver.DefaultTopK
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = scanner.DefaultPageSize
	}
	if cfg.MaxPages == 0 {
		cfg.MaxPages = scanner.Unbounded
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		cfg:      cfg,
		networks: networks,
		scanner:  scan,
		policies: policies,
		prompter: prompter,
		logger:   logger,
		now:      time.Now,
	}
}

// Run executes one lookup. The returned Outcome is always non-nil. The
// error is non-nil only when the run ended in KindSearchIncomplete; a
// failed block action is reported on the Outcome alone, since the lease
// it was applied to is still valid.
func (c *Controller) Run(ctx context.Context, req Request) (*Outcome, error) {
	out := &Outcome{RunID: uuid.NewString(), StartedAt: c.now().UTC()}
	log := c.logger.With(zap.String("run_id", out.RunID))

	c.enter(log, out, StateCollectingQuery)
	q, err := c.collectQuery(ctx, req)
	if err != nil {
		return c.incomplete(log, out, fmt.Errorf("collect query: %w", err))
	}
	out.Query = q

	network, err := c.collectNetwork(ctx, log, out, req)
	if err != nil {
		return c.incomplete(log, out, err)
	}
	out.Network = network

	c.enter(log, out, StateScanning)
	res, err := c.scanner.Scan(ctx, network.ID, q, pick(req.PageSize, c.cfg.PageSize), pick(req.MaxPages, c.cfg.MaxPages))
	if err != nil {
		return c.incomplete(log, out, err)
	}
	out.Result = res

	if !res.Found {
		c.enter(log, out, StateResolvedNotFound)
		out.Kind = KindNotFound
		return c.done(log, out), nil
	}

	c.enter(log, out, StateResolvedFound)
	if res.DetailErr != nil {
		log.Warn("client detail unavailable, using lease event data", zap.Error(res.DetailErr))
	}
	if c.prompter != nil {
		c.prompter.ShowFound(network, res)
	}

	c.enter(log, out, StateConfirmingAction)
	out.Action = c.decide(ctx, log, req.Action, network, res.Event)
	out.Kind = KindFound
	if out.Action.Status == ActionFailed {
		out.Kind = KindActionFailed
		out.Err = fmt.Errorf("%w: %s", ErrActionFailed, out.Action.Reason)
	}
	return c.done(log, out), nil
}

// collectQuery fills the target IP and cutoff from the request or the
// prompter, asking again after invalid answers.
func (c *Controller) collectQuery(ctx context.Context, req Request) (models.SearchQuery, error) {
	q := models.SearchQuery{TargetIP: req.TargetIP, Cutoff: req.Cutoff.UTC()}

	for !q.TargetIP.IsValid() {
		if c.prompter == nil {
			return q, fmt.Errorf("%w: target IP", ErrPromptRequired)
		}
		ip, err := c.prompter.TargetIP(ctx)
		if errors.Is(err, ErrInvalidInput) {
			c.prompter.Invalid(err)
			continue
		}
		if err != nil {
			return q, err
		}
		q.TargetIP = ip
	}

	for q.Cutoff.IsZero() {
		if c.prompter == nil {
			return q, fmt.Errorf("%w: cutoff time", ErrPromptRequired)
		}
		t, err := c.prompter.Cutoff(ctx)
		if errors.Is(err, ErrInvalidInput) {
			c.prompter.Invalid(err)
			continue
		}
		if err != nil {
			return q, err
		}
		q.Cutoff = t.UTC()
	}
	return q, nil
}

// collectNetwork returns the network named by the request, typed by the
// operator, or resolved by name.
func (c *Controller) collectNetwork(ctx context.Context, log *zap.Logger, out *Outcome, req Request) (models.Network, error) {
	if req.NetworkID != "" {
		return models.Network{ID: req.NetworkID}, nil
	}

	query := req.NetworkQuery
	if query == "" {
		if c.prompter == nil {
			return models.Network{}, fmt.Errorf("%w: network", ErrPromptRequired)
		}
		for {
			id, err := c.prompter.NetworkID(ctx)
			if errors.Is(err, ErrInvalidInput) {
				c.prompter.Invalid(err)
				continue
			}
			if err != nil {
				return models.Network{}, fmt.Errorf("collect network: %w", err)
			}
			if id != "" {
				return models.Network{ID: id}, nil
			}
			break
		}
	}

	c.enter(log, out, StateResolvingNetwork)
	return c.resolveNetwork(ctx, query)
}

// resolveNetwork loops over search, confirm and select until the operator
// accepts a network. Rejections and invalid answers start the relevant
// question again; nothing recurses.
func (c *Controller) resolveNetwork(ctx context.Context, query string) (models.Network, error) {
	candidates, err := c.networks.ListNetworks(ctx, c.cfg.OrgID)
	if err != nil {
		return models.Network{}, fmt.Errorf("resolve network: %w", err)
	}
	if len(candidates) == 0 {
		return models.Network{}, fmt.Errorf("resolve network in org %s: %w", c.cfg.OrgID, resolver.ErrEmptyCandidateSet)
	}

	// Without a prompter the best match is taken as-is.
	if c.prompter == nil {
		m, err := resolver.BestMatch(query, candidates)
		if err != nil {
			return models.Network{}, fmt.Errorf("resolve network: %w", err)
		}
		c.logger.Info("network resolved without confirmation",
			zap.String("query", query),
			zap.String("network_id", m.Network.ID),
			zap.Int("score", m.Score),
		)
		return m.Network, nil
	}

	text := query
	for {
		if text == "" {
			t, err := c.prompter.SearchText(ctx)
			if errors.Is(err, ErrInvalidInput) {
				c.prompter.Invalid(err)
				continue
			}
			if err != nil {
				return models.Network{}, fmt.Errorf("resolve network: %w", err)
			}
			text = t
			continue
		}

		mode, err := c.prompter.SearchMode(ctx)
		if errors.Is(err, ErrInvalidInput) {
			c.prompter.Invalid(err)
			continue
		}
		if err != nil {
			return models.Network{}, fmt.Errorf("resolve network: %w", err)
		}

		var (
			chosen   models.Network
			accepted bool
		)
		switch mode {
		case SearchBest:
			chosen, accepted, err = c.confirmBest(ctx, text, candidates)
		case SearchList:
			chosen, accepted, err = c.chooseFromList(ctx, text, candidates)
		default:
			c.prompter.Invalid(fmt.Errorf("%w: search mode %d", ErrInvalidInput, mode))
			continue
		}
		if err != nil {
			return models.Network{}, fmt.Errorf("resolve network: %w", err)
		}
		if accepted {
			return chosen, nil
		}
		text = ""
	}
}

// confirmBest offers the best match once. accepted=false starts a new search.
func (c *Controller) confirmBest(ctx context.Context, text string, candidates []models.Network) (models.Network, bool, error) {
	m, err := resolver.BestMatch(text, candidates)
	if err != nil {
		return models.Network{}, false, err
	}
	ok, err := c.prompter.ConfirmMatch(ctx, m)
	if errors.Is(err, ErrInvalidInput) {
		c.prompter.Invalid(err)
		return models.Network{}, false, nil
	}
	if err != nil {
		return models.Network{}, false, err
	}
	return m.Network, ok, nil
}

// chooseFromList offers the top matches until a valid row is picked or the
// operator asks to search again.
func (c *Controller) chooseFromList(ctx context.Context, text string, candidates []models.Network) (models.Network, bool, error) {
	matches, err := resolver.TopMatches(text, candidates, c.cfg.TopK)
	if err != nil {
		return models.Network{}, false, err
	}
	for {
		row, again, err := c.prompter.ChooseRow(ctx, matches)
		if errors.Is(err, ErrInvalidInput) {
			c.prompter.Invalid(err)
			continue
		}
		if err != nil {
			return models.Network{}, false, err
		}
		if again {
			return models.Network{}, false, nil
		}
		m, err := resolver.Select(matches, row)
		if errors.Is(err, resolver.ErrInvalidSelection) {
			c.prompter.Invalid(err)
			continue
		}
		if err != nil {
			return models.Network{}, false, err
		}
		return m.Network, true, nil
	}
}

// decide takes the block decision and applies it. Policy updates are never
// retried.
func (c *Controller) decide(ctx context.Context, log *zap.Logger, mode ActionMode, network models.Network, lease models.LeaseEvent) ActionOutcome {
	apply := false
	switch mode {
	case ActionBlock:
		apply = true
	case ActionSkip:
	default:
		if c.prompter == nil {
			return ActionOutcome{Status: ActionDeclined, Reason: "no prompter for confirmation"}
		}
		for {
			yes, err := c.prompter.ConfirmBlock(ctx, lease)
			if errors.Is(err, ErrInvalidInput) {
				c.prompter.Invalid(err)
				continue
			}
			if err != nil {
				log.Warn("block confirmation unanswered, not blocking", zap.Error(err))
				return ActionOutcome{Status: ActionDeclined, Reason: "no answer: " + err.Error()}
			}
			apply = yes
			break
		}
	}

	if !apply {
		log.Info("block declined", zap.String("client_id", lease.ClientID))
		return ActionOutcome{Status: ActionDeclined}
	}
	if lease.ClientID == "" {
		return ActionOutcome{Status: ActionFailed, Reason: scanner.ErrNoClientID.Error()}
	}

	if _, err := c.policies.SetClientPolicy(ctx, network.ID, lease.ClientID, models.DevicePolicyBlocked); err != nil {
		log.Error("block policy failed",
			zap.String("network_id", network.ID),
			zap.String("client_id", lease.ClientID),
			zap.Error(err),
		)
		return ActionOutcome{Status: ActionFailed, Reason: err.Error()}
	}
	log.Info("block policy applied",
		zap.String("network_id", network.ID),
		zap.String("client_id", lease.ClientID),
	)
	return ActionOutcome{Status: ActionApplied}
}

func (c *Controller) enter(log *zap.Logger, out *Outcome, s State) {
	out.States = append(out.States, s)
	log.Debug("state", zap.Stringer("state", s))
}

func (c *Controller) incomplete(log *zap.Logger, out *Outcome, err error) (*Outcome, error) {
	out.Kind = KindSearchIncomplete
	out.Err = err
	log.Error("lookup did not complete", zap.Error(err))
	return c.done(log, out), err
}

func (c *Controller) done(log *zap.Logger, out *Outcome) *Outcome {
	c.enter(log, out, StateDone)
	out.FinishedAt = c.now().UTC()
	log.Info("lookup finished",
		zap.String("kind", string(out.Kind)),
		zap.String("network_id", out.Network.ID),
		zap.Duration("elapsed", out.FinishedAt.Sub(out.StartedAt)),
	)
	return out
}

func pick(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}
