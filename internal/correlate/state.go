package correlate

import (
	"fmt"
	"time"

	"github.com/HerbHall/leasetrace/internal/scanner"
	"github.com/HerbHall/leasetrace/pkg/models"
)

// State is a step of a lookup run.
type State int

const (
	StateCollectingQuery State = iota
	StateResolvingNetwork
	StateScanning
	StateResolvedFound
	StateResolvedNotFound
	StateConfirmingAction
	StateDone
)

var stateNames = map[State]string{
	StateCollectingQuery:  "collecting_query",
	StateResolvingNetwork: "resolving_network",
	StateScanning:         "scanning",
	StateResolvedFound:    "resolved_found",
	StateResolvedNotFound: "resolved_not_found",
	StateConfirmingAction: "confirming_action",
	StateDone:             "done",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Kind classifies how a run ended.
type Kind string

const (
	// KindFound: a qualifying lease was found; any requested action was
	// applied or declined.
	KindFound Kind = "found"
	// KindNotFound: the search completed and no lease qualified.
	KindNotFound Kind = "not_found"
	// KindSearchIncomplete: the network could not be resolved or the event
	// log could not be read to the end.
	KindSearchIncomplete Kind = "search_incomplete"
	// KindActionFailed: a lease was found but the block policy was rejected.
	KindActionFailed Kind = "action_failed"
)

// ActionStatus is the result of the block decision.
type ActionStatus string

const (
	ActionNotApplicable ActionStatus = ""
	ActionApplied       ActionStatus = "applied"
	ActionDeclined      ActionStatus = "declined"
	ActionFailed        ActionStatus = "failed"
)

// ActionOutcome records what happened to the found client.
type ActionOutcome struct {
	Status ActionStatus `json:"status,omitempty" yaml:"status,omitempty"`
	Reason string       `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// ActionMode decides how the block decision is taken.
type ActionMode int

const (
	// ActionPrompt asks the prompter.
	ActionPrompt ActionMode = iota
	// ActionBlock applies the block policy without asking.
	ActionBlock
	// ActionSkip never applies a policy.
	ActionSkip
)

// Outcome is the terminal value of a run.
type Outcome struct {
	RunID      string             `json:"run_id" yaml:"run_id"`
	Kind       Kind               `json:"kind" yaml:"kind"`
	Network    models.Network     `json:"network" yaml:"network"`
	Query      models.SearchQuery `json:"query" yaml:"query"`
	Result     scanner.Result     `json:"result" yaml:"result"`
	Action     ActionOutcome      `json:"action,omitzero" yaml:"action,omitempty"`
	Err        error              `json:"-" yaml:"-"`
	States     []State            `json:"-" yaml:"-"`
	StartedAt  time.Time          `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time          `json:"finished_at" yaml:"finished_at"`
}

// Message is the one line summary of the outcome. The prefix alone tells
// the kinds apart.
func (o *Outcome) Message() string {
	switch o.Kind {
	case KindFound:
		ev := o.Result.Event
		msg := fmt.Sprintf("found: %s was leased to %s (client %s, MAC %s) at %s",
			ev.AssignedIP, describe(ev.ClientDescription), ev.ClientID, o.Result.Detail.MAC,
			ev.OccurredAt.Format(time.RFC3339))
		switch o.Action.Status {
		case ActionApplied:
			msg += "; block policy applied"
		case ActionDeclined:
			msg += "; client will not be blocked"
		}
		return msg
	case KindNotFound:
		return fmt.Sprintf("no matching event: no DHCP lease of %s at or before %s on network %s",
			o.Query.TargetIP, o.Query.Cutoff.Format(time.RFC3339), o.Network.ID)
	case KindSearchIncomplete:
		return fmt.Sprintf("search could not complete: %v", o.Err)
	case KindActionFailed:
		return fmt.Sprintf("action failed: block policy not applied to client %s: %s",
			o.Result.Event.ClientID, o.Action.Reason)
	default:
		return string(o.Kind)
	}
}

func describe(s string) string {
	if s == "" {
		return "an unnamed client"
	}
	return s
}
