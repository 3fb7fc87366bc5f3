package store

import (
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/gowal"
	"github.com/vadiminshakov/ledgerpool/core/dto"
	"github.com/vadiminshakov/ledgerpool/core/walrecord"
)

func openWAL(t *testing.T, dir string) *gowal.Wal {
	t.Helper()

	w, err := gowal.NewWAL(gowal.Config{
		Dir:              dir,
		Prefix:           "wal_",
		SegmentThreshold: 1024 * 1024,
		MaxSegments:      10,
	})
	require.NoError(t, err)
	return w
}

func dispatched(id uint64) *dto.DispatchedRequest {
	return &dto.DispatchedRequest{ReqID: id, Pool: "sandbox", Type: "105", Body: []byte(`{"reqId":1}`)}
}

func TestStore_DispatchedThenSettled(t *testing.T) {
	dir := t.TempDir()
	w := openWAL(t, filepath.Join(dir, "wal"))
	defer w.Close()

	s, state, err := New(w, filepath.Join(dir, "db"))
	require.NoError(t, err)
	defer s.Close()
	assert.Zero(t, state.LastReqID)
	assert.Empty(t, state.Pending)

	require.NoError(t, s.Dispatched(dispatched(10)))
	require.NoError(t, s.Dispatched(dispatched(11)))

	pending, err := s.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 2)

	_, err = s.Outcome(10)
	require.True(t, errors.Is(err, ErrNotFound))

	settled := &dto.SettledRequest{ReqID: 10, Pool: "sandbox", Outcome: dto.OutcomeResolved, Reply: []byte(`{"op":"REPLY"}`)}
	require.NoError(t, s.Settled(settled))

	got, err := s.Outcome(10)
	require.NoError(t, err)
	assert.Equal(t, settled, got)

	pending, err = s.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, uint64(11), pending[0].ReqID)

	last, err := s.LastReqID()
	require.NoError(t, err)
	assert.Equal(t, uint64(11), last)
}

func TestStore_Recovery(t *testing.T) {
	dir := t.TempDir()
	walDir := filepath.Join(dir, "wal")

	w := openWAL(t, walDir)
	s, _, err := New(w, filepath.Join(dir, "db"))
	require.NoError(t, err)

	require.NoError(t, s.Dispatched(dispatched(20)))
	require.NoError(t, s.Dispatched(dispatched(21)))
	require.NoError(t, s.Settled(&dto.SettledRequest{ReqID: 21, Pool: "sandbox", Outcome: dto.OutcomeRejected, Reason: "denied"}))
	require.NoError(t, s.Close())
	require.NoError(t, w.Close())

	// a fresh database is rebuilt from the wal alone
	w2 := openWAL(t, walDir)
	defer w2.Close()
	s2, state, err := New(w2, filepath.Join(dir, "db2"))
	require.NoError(t, err)
	defer s2.Close()

	assert.Equal(t, uint64(21), state.LastReqID)
	require.Len(t, state.Pending, 1)
	assert.Equal(t, dispatched(20), state.Pending[0])

	got, err := s2.Outcome(21)
	require.NoError(t, err)
	assert.Equal(t, dto.OutcomeRejected, got.Outcome)
	assert.Equal(t, "denied", got.Reason)

	// journaling continues after the recovered entries
	require.NoError(t, s2.Settled(&dto.SettledRequest{ReqID: 20, Pool: "sandbox", Outcome: dto.OutcomeTimedOut}))
	pending, err := s2.Pending()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestStore_RecoverySettledBeforeDispatched(t *testing.T) {
	dir := t.TempDir()
	walDir := filepath.Join(dir, "wal")

	w := openWAL(t, walDir)
	settled, err := walrecord.EncodeSettled(&dto.SettledRequest{ReqID: 30, Pool: "sandbox"})
	require.NoError(t, err)
	disp, err := walrecord.EncodeDispatched(dispatched(30))
	require.NoError(t, err)
	require.NoError(t, w.Write(0, walrecord.KeySettled, settled))
	require.NoError(t, w.Write(1, walrecord.KeyDispatched, disp))
	require.NoError(t, w.Write(2, "garbage", nil))
	require.NoError(t, w.Close())

	w2 := openWAL(t, walDir)
	defer w2.Close()
	s, state, err := New(w2, filepath.Join(dir, "db"))
	require.NoError(t, err)
	defer s.Close()

	assert.Empty(t, state.Pending)
	assert.Equal(t, uint64(0), state.LastReqID)
	_, err = s.Outcome(30)
	require.NoError(t, err)
}

func TestStore_New(t *testing.T) {
	_, _, err := New(nil, t.TempDir())
	require.Error(t, err)

	w := openWAL(t, t.TempDir())
	defer w.Close()
	_, _, err = New(w, "")
	require.Error(t, err)
}
