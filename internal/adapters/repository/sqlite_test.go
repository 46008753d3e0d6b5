package repository_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/libero/internal/adapters/repository"
	"github.com/okian/libero/internal/domain/recorder"
	"github.com/okian/libero/internal/domain/scoring"
	"github.com/okian/libero/internal/simulate"
)

func openStore(t *testing.T, path string) *repository.SQLiteStore {
	t.Helper()
	s, err := repository.Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func simulated(t *testing.T, seed uint64) *recorder.Ledger {
	t.Helper()
	l, err := simulate.Match(seed, scoring.Default())
	require.NoError(t, err)
	return l
}

func TestOpen_CreatesDatabaseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	openStore(t, path)
	assert.FileExists(t, path)
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	for i := 0; i < 3; i++ {
		s, err := repository.Open(context.Background(), path)
		require.NoError(t, err, "open %d", i)
		require.NoError(t, s.Close())
	}
}

func TestSaveMatch_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, "")
	l := simulated(t, 7)
	rules := scoring.Default()

	require.NoError(t, s.SaveMatch(ctx, l.Match(), rules, l.Events()...))

	m, gotRules, err := s.Match(ctx, l.Match().ID)
	require.NoError(t, err)
	assert.Equal(t, rules, gotRules)
	assert.Equal(t, l.Match().ID, m.ID)
	assert.Equal(t, l.Match().Teams, m.Teams)
	assert.True(t, l.Match().PlayedAt.Equal(m.PlayedAt))

	events, err := s.Events(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, events, l.Len())
	assert.Equal(t, l.Events(), events)

	reloaded, err := recorder.Load(m, gotRules, events)
	require.NoError(t, err)
	assert.Equal(t, l.State(), reloaded.State())
}

func TestSaveMatch_Duplicate(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, "")
	l := simulated(t, 3)

	require.NoError(t, s.SaveMatch(ctx, l.Match(), scoring.Default()))
	err := s.SaveMatch(ctx, l.Match(), scoring.Default())
	require.ErrorIs(t, err, repository.ErrMatchExists)
}

func TestSaveMatch_RollsBackOnEventConflict(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, "")
	l := simulated(t, 4)
	events := l.Events()[:3]
	events = append(events, events[0])

	err := s.SaveMatch(ctx, l.Match(), scoring.Default(), events...)
	require.ErrorIs(t, err, repository.ErrSeqConflict)

	_, _, err = s.Match(ctx, l.Match().ID)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestAppendEvent(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, "")
	l := simulated(t, 11)
	id := l.Match().ID
	require.NoError(t, s.SaveMatch(ctx, l.Match(), scoring.Default()))

	t.Run("appends in order", func(t *testing.T) {
		for _, e := range l.Events()[:10] {
			require.NoError(t, s.AppendEvent(ctx, id, e))
		}
		got, err := s.Events(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, l.Events()[:10], got)
	})

	t.Run("rejects a stored seq", func(t *testing.T) {
		err := s.AppendEvent(ctx, id, l.Events()[0])
		require.ErrorIs(t, err, repository.ErrSeqConflict)
	})

	t.Run("rejects an unknown match", func(t *testing.T) {
		err := s.AppendEvent(ctx, "missing", l.Events()[10])
		require.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestEvents_UnknownMatch(t *testing.T) {
	s := openStore(t, "")
	_, err := s.Events(context.Background(), "missing")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestMatches(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, "")

	late, err := simulate.Match(1, scoring.Default(), simulate.WithPlayedAt(time.Date(2026, 3, 2, 19, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	early, err := simulate.Match(2, scoring.Default(), simulate.WithPlayedAt(time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	require.NoError(t, s.SaveMatch(ctx, late.Match(), scoring.Default(), late.Events()...))
	require.NoError(t, s.SaveMatch(ctx, early.Match(), scoring.Default()))

	got, err := s.Matches(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, early.Match().ID, got[0].ID)
	assert.Equal(t, 0, got[0].Events)
	assert.Equal(t, late.Match().ID, got[1].ID)
	assert.Equal(t, late.Len(), got[1].Events)
	assert.Equal(t, [2]string{late.Match().Teams[0].Name, late.Match().Teams[1].Name}, got[1].Teams)
}

func TestPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")
	l := simulated(t, 21)

	s, err := repository.Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.SaveMatch(ctx, l.Match(), scoring.Default(), l.Events()...))
	require.NoError(t, s.Close())

	s = openStore(t, path)
	events, err := s.Events(ctx, l.Match().ID)
	require.NoError(t, err)
	assert.Equal(t, l.Events(), events)
}
