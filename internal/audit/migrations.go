package audit

import (
	"context"
	"database/sql"

	"github.com/HerbHall/leasetrace/internal/store"
)

// component keys the audit schema in the shared _migrations table.
const component = "audit"

func migrations() []store.Migration {
	return []store.Migration{
		{
			Version:     1,
			Description: "create audit_lookups table",
			Up: func(ctx context.Context, tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS audit_lookups (
						run_id       TEXT PRIMARY KEY,
						org_id       TEXT NOT NULL DEFAULT '',
						network_id   TEXT NOT NULL,
						network_name TEXT NOT NULL DEFAULT '',
						target_ip    TEXT NOT NULL,
						cutoff       TEXT NOT NULL,
						kind         TEXT NOT NULL,
						client_id    TEXT NOT NULL DEFAULT '',
						client_mac   TEXT NOT NULL DEFAULT '',
						leased_at    TEXT NOT NULL DEFAULT '',
						message      TEXT NOT NULL,
						recorded_at  TEXT NOT NULL
					)`,
					`CREATE INDEX IF NOT EXISTS idx_audit_recorded_at ON audit_lookups(recorded_at)`,
					`CREATE INDEX IF NOT EXISTS idx_audit_target_ip ON audit_lookups(target_ip)`,
				}
				for _, stmt := range stmts {
					if _, err := tx.ExecContext(ctx, stmt); err != nil {
						return err
					}
				}
				return nil
			},
		},
		{
			Version:     2,
			Description: "add action columns",
			Up: func(ctx context.Context, tx *sql.Tx) error {
				stmts := []string{
					`ALTER TABLE audit_lookups ADD COLUMN action TEXT NOT NULL DEFAULT ''`,
					`ALTER TABLE audit_lookups ADD COLUMN action_reason TEXT NOT NULL DEFAULT ''`,
				}
				for _, stmt := range stmts {
					if _, err := tx.ExecContext(ctx, stmt); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}
