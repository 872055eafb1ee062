package audit

import (
	"context"
	"net/netip"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HerbHall/leasetrace/internal/correlate"
	"github.com/HerbHall/leasetrace/internal/scanner"
	"github.com/HerbHall/leasetrace/internal/store"
	"github.com/HerbHall/leasetrace/pkg/models"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	db, err := store.Open(ctx, filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s, err := Open(ctx, db)
	require.NoError(t, err)
	return s
}

func TestSaveList_NewestFirst(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)

	for i, ip := range []string{"10.0.0.5", "10.0.0.6", "10.0.0.5"} {
		require.NoError(t, s.Save(ctx, Record{
			RunID:      string(rune('a' + i)),
			NetworkID:  "N_1",
			TargetIP:   ip,
			Cutoff:     base,
			Kind:       string(correlate.KindNotFound),
			Message:    "no matching event",
			RecordedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	all, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{all[0].RunID, all[1].RunID, all[2].RunID})
	assert.True(t, base.Equal(all[2].Cutoff))
	assert.True(t, all[0].LeasedAt.IsZero())

	byIP, err := s.List(ctx, Filter{TargetIP: "10.0.0.5", Limit: 1})
	require.NoError(t, err)
	require.Len(t, byIP, 1)
	assert.Equal(t, "c", byIP[0].RunID)
}

func TestFromOutcome(t *testing.T) {
	leased := time.Date(2024, 3, 5, 11, 55, 0, 0, time.UTC)
	out := &correlate.Outcome{
		RunID:   "run-1",
		Kind:    correlate.KindFound,
		Network: models.Network{ID: "N_1", Name: "HQ"},
		Query: models.SearchQuery{
			TargetIP: netip.MustParseAddr("10.0.0.5"),
			Cutoff:   leased.Add(5 * time.Minute),
		},
		Result: scanner.Result{
			Found:  true,
			Event:  models.LeaseEvent{OccurredAt: leased, ClientID: "k01", AssignedIP: "10.0.0.5"},
			Detail: models.ClientDetail{MAC: "00:11:22:33:44:55"},
		},
		Action:     correlate.ActionOutcome{Status: correlate.ActionApplied},
		FinishedAt: leased.Add(time.Hour),
	}

	r := FromOutcome("o1", out)
	assert.Equal(t, "run-1", r.RunID)
	assert.Equal(t, "10.0.0.5", r.TargetIP)
	assert.Equal(t, "k01", r.ClientID)
	assert.Equal(t, "00:11:22:33:44:55", r.ClientMAC)
	assert.Equal(t, "applied", r.Action)
	assert.Contains(t, r.Message, "found: ")

	s := openTemp(t)
	require.NoError(t, s.Save(context.Background(), r))
	got, err := s.List(context.Background(), Filter{Kind: string(correlate.KindFound)})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, r.ClientMAC, got[0].ClientMAC)
	assert.Equal(t, r.Message, got[0].Message)
	assert.True(t, r.LeasedAt.Equal(got[0].LeasedAt))
	assert.True(t, r.RecordedAt.Equal(got[0].RecordedAt))
}

func TestOpen_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "audit.db")

	for range 2 {
		db, err := store.Open(ctx, path)
		require.NoError(t, err)
		_, err = Open(ctx, db)
		require.NoError(t, err, "migrations apply once")
		require.NoError(t, db.Close())
	}
}
