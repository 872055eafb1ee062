// Package audit keeps a local trail of lookups and block actions. Lookups
// never read it back.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/HerbHall/leasetrace/internal/correlate"
	"github.com/HerbHall/leasetrace/internal/store"
)

// timeLayout sorts lexically in chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// DefaultLimit bounds List when no limit is given.
const DefaultLimit = 50

// Record is one audited run.
type Record struct {
	RunID        string    `json:"run_id" yaml:"run_id"`
	OrgID        string    `json:"org_id,omitempty" yaml:"org_id,omitempty"`
	NetworkID    string    `json:"network_id" yaml:"network_id"`
	NetworkName  string    `json:"network_name,omitempty" yaml:"network_name,omitempty"`
	TargetIP     string    `json:"target_ip" yaml:"target_ip"`
	Cutoff       time.Time `json:"cutoff" yaml:"cutoff"`
	Kind         string    `json:"kind" yaml:"kind"`
	ClientID     string    `json:"client_id,omitempty" yaml:"client_id,omitempty"`
	ClientMAC    string    `json:"client_mac,omitempty" yaml:"client_mac,omitempty"`
	LeasedAt     time.Time `json:"leased_at,omitzero" yaml:"leased_at,omitempty"`
	Action       string    `json:"action,omitempty" yaml:"action,omitempty"`
	ActionReason string    `json:"action_reason,omitempty" yaml:"action_reason,omitempty"`
	Message      string    `json:"message" yaml:"message"`
	RecordedAt   time.Time `json:"recorded_at" yaml:"recorded_at"`
}

// FromOutcome builds the record of a finished run.
func FromOutcome(orgID string, out *correlate.Outcome) Record {
	r := Record{
		RunID:        out.RunID,
		OrgID:        orgID,
		NetworkID:    out.Network.ID,
		NetworkName:  out.Network.Name,
		Cutoff:       out.Query.Cutoff,
		Kind:         string(out.Kind),
		Action:       string(out.Action.Status),
		ActionReason: out.Action.Reason,
		Message:      out.Message(),
		RecordedAt:   out.FinishedAt,
	}
	if out.Query.TargetIP.IsValid() {
		r.TargetIP = out.Query.TargetIP.String()
	}
	if out.Result.Found {
		r.ClientID = out.Result.Event.ClientID
		r.ClientMAC = out.Result.Detail.MAC
		r.LeasedAt = out.Result.Event.OccurredAt
	}
	return r
}

// Filter narrows List.
type Filter struct {
	TargetIP string
	Kind     string
	Limit    int
}

// Store persists audit records.
type Store struct {
	db *store.Store
}

// Open migrates the audit schema on db and returns a Store.
func Open(ctx context.Context, db *store.Store) (*Store, error) {
	if _, err := db.Migrate(ctx, component, migrations()); err != nil {
		return nil, fmt.Errorf("migrate audit schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Save inserts a record.
func (s *Store) Save(ctx context.Context, r Record) error {
	if r.RecordedAt.IsZero() {
		r.RecordedAt = time.Now()
	}
	_, err := s.db.DB().ExecContext(ctx, `
		INSERT INTO audit_lookups (run_id, org_id, network_id, network_name, target_ip, cutoff, kind,
			client_id, client_mac, leased_at, action, action_reason, message, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.OrgID, r.NetworkID, r.NetworkName, r.TargetIP, formatTime(r.Cutoff), r.Kind,
		r.ClientID, r.ClientMAC, formatTime(r.LeasedAt), r.Action, r.ActionReason, r.Message,
		formatTime(r.RecordedAt),
	)
	if err != nil {
		return fmt.Errorf("insert audit record %s: %w", r.RunID, err)
	}
	return nil
}

// List returns records newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]Record, error) {
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}

	query := `SELECT run_id, org_id, network_id, network_name, target_ip, cutoff, kind,
		client_id, client_mac, leased_at, action, action_reason, message, recorded_at
		FROM audit_lookups WHERE 1=1`
	var args []any
	if f.TargetIP != "" {
		query += " AND target_ip = ?"
		args = append(args, f.TargetIP)
	}
	if f.Kind != "" {
		query += " AND kind = ?"
		args = append(args, f.Kind)
	}
	query += " ORDER BY recorded_at DESC, rowid DESC LIMIT ?"
	args = append(args, f.Limit)

	rows, err := s.db.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		var (
			r                            Record
			cutoff, leasedAt, recordedAt string
		)
		if err := rows.Scan(&r.RunID, &r.OrgID, &r.NetworkID, &r.NetworkName, &r.TargetIP, &cutoff, &r.Kind,
			&r.ClientID, &r.ClientMAC, &leasedAt, &r.Action, &r.ActionReason, &r.Message, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		r.Cutoff = parseTime(cutoff)
		r.LeasedAt = parseTime(leasedAt)
		r.RecordedAt = parseTime(recordedAt)
		records = append(records, r)
	}
	return records, rows.Err()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
