package consensus

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/ledgerpool/core/ledgererr"
)

const reqID = 1491566332010860

var fourNodes = []string{"Node1", "Node2", "Node3", "Node4"}

func reply(dest string) []byte {
	return []byte(fmt.Sprintf(`{"op":"REPLY","result":{"reqId":%d,"type":"105","dest":%q,"data":null}}`, reqID, dest))
}

func reject(reason string) []byte {
	return []byte(fmt.Sprintf(`{"op":"REJECT","reqId":%d,"identifier":"Th7MpTaRZVRYnPiabds81Y","reason":%q}`, reqID, reason))
}

func newCollector(t *testing.T) *Collector {
	c, err := New(reqID, fourNodes, 2)
	require.NoError(t, err)
	return c
}

func TestCollector_ResolvesOnQuorum(t *testing.T) {
	c := newCollector(t)
	require.Equal(t, Pending, c.State())

	require.Equal(t, Collecting, c.Add("Node1", reply("dest")))
	require.Equal(t, Resolved, c.Add("Node2", reply("dest")))

	out := c.Outcome()
	require.NoError(t, out.Err)
	require.Equal(t, Resolved, out.State)
	require.Equal(t, 2, out.Agreeing)

	var dest string
	require.NoError(t, out.Reply.ResultField("dest", &dest))
	require.Equal(t, "dest", dest)

	select {
	case <-c.Done():
	default:
		t.Fatal("done is not closed after resolve")
	}
}

func TestCollector_CanonicalGrouping(t *testing.T) {
	c := newCollector(t)

	c.Add("Node1", []byte(fmt.Sprintf(`{"op":"REPLY","result":{"dest":"d","reqId":%d}}`, reqID)))
	state := c.Add("Node2", []byte(fmt.Sprintf(`{ "result" : { "reqId" : %d , "dest" : "d" }, "op" : "REPLY", "identifier":"node2" }`, reqID)))

	require.Equal(t, Resolved, state)
}

func TestCollector_DuplicateFromSameNodeIsIdempotent(t *testing.T) {
	c := newCollector(t)

	c.Add("Node1", reply("dest"))
	c.Add("Node1", reply("dest"))
	require.Equal(t, Collecting, c.Add("Node1", reply("dest")))
	require.Equal(t, 1, c.Outcome().Replies)

	require.Equal(t, Resolved, c.Add("Node3", reply("dest")))
}

func TestCollector_FirstReplyOfNodeCounts(t *testing.T) {
	c := newCollector(t)

	c.Add("Node1", reply("lie"))
	c.Add("Node1", reply("dest"))
	require.Equal(t, Collecting, c.State())

	c.Add("Node2", reply("dest"))
	require.Equal(t, Collecting, c.State())
	require.Equal(t, Resolved, c.Add("Node3", reply("dest")))
}

func TestCollector_DiscardsOtherRequests(t *testing.T) {
	c := newCollector(t)

	stale := []byte(`{"op":"REPLY","result":{"reqId":1,"dest":"dest"}}`)
	c.Add("Node1", stale)
	c.Add("Node2", stale)
	c.Add("Node3", []byte(`{"op":"REJECT","reqId":7,"reason":"x"}`))

	require.Equal(t, Pending, c.State())
}

func TestCollector_ResultWithoutReqIDIsDiscarded(t *testing.T) {
	c := newCollector(t)

	uncorrelated := []byte(`{"op":"REPLY","result":{"dest":"X"}}`)
	require.Equal(t, Pending, c.Add("Node1", uncorrelated))
	require.Equal(t, Pending, c.Add("Node2", uncorrelated))

	// the node may still answer properly
	c.Add("Node1", reply("dest"))
	require.Equal(t, Resolved, c.Add("Node2", reply("dest")))
}

func TestCollector_RejectionWithoutReqIDCounts(t *testing.T) {
	c := newCollector(t)

	c.Add("Node1", []byte(`{"op":"REQNACK","reason":"malformed"}`))
	require.Equal(t, Rejected, c.Add("Node2", []byte(`{"op":"REQNACK","reason":"malformed"}`)))

	var rejection *ledgererr.Rejection
	require.True(t, errors.As(c.Outcome().Err, &rejection))
	require.Equal(t, uint64(reqID), rejection.ReqID)
}

func TestCollector_IgnoresNoise(t *testing.T) {
	c := newCollector(t)

	c.Add("Node1", []byte("not json"))
	c.Add("Node2", []byte(`{}`))
	c.Add("Node3", []byte(fmt.Sprintf(`{"op":"REQACK","reqId":%d}`, reqID)))
	c.Add("Node9", reply("dest"))

	require.Equal(t, Pending, c.State())

	// the nodes above may still send their real reply
	c.Add("Node1", reply("dest"))
	require.Equal(t, Resolved, c.Add("Node3", reply("dest")))
}

func TestCollector_RejectionQuorum(t *testing.T) {
	c := newCollector(t)

	c.Add("Node1", reject("client request invalid: could not authenticate"))
	state := c.Add("Node2", reject("client request invalid: could not authenticate"))
	require.Equal(t, Rejected, state)

	out := c.Outcome()
	require.True(t, errors.Is(out.Err, ledgererr.ErrLedgerInvalidTransaction))

	var rejection *ledgererr.Rejection
	require.True(t, errors.As(out.Err, &rejection))
	assert.Equal(t, "REJECT", rejection.Op)
	assert.Equal(t, uint64(reqID), rejection.ReqID)
	assert.Contains(t, rejection.Reason, "could not authenticate")
}

func TestCollector_RejectionsWithDifferentReasonsDoNotAgree(t *testing.T) {
	c := newCollector(t)

	c.Add("Node1", reject("a"))
	require.Equal(t, Collecting, c.Add("Node2", reject("b")))
	require.Equal(t, Collecting, c.Add("Node3", reply("dest")))
	require.Equal(t, Resolved, c.Add("Node4", reply("dest")))
}

func TestCollector_ConflictingMinorityTimesOut(t *testing.T) {
	c := newCollector(t)

	c.Add("Node1", reply("a"))
	c.Add("Node2", reply("b"))
	require.Equal(t, Collecting, c.State())

	require.Equal(t, TimedOut, c.Expire())
	out := c.Outcome()
	require.True(t, errors.Is(out.Err, ledgererr.ErrConsensusTimeout))
	require.Equal(t, 2, out.Replies)
	require.Equal(t, 1, out.Agreeing)
}

func TestCollector_EarlyTimeoutWhenQuorumImpossible(t *testing.T) {
	c := newCollector(t)

	c.Add("Node1", reply("a"))
	c.Add("Node2", reply("b"))
	c.Add("Node3", reply("c"))
	require.Equal(t, Collecting, c.State())

	// Node4 agreeing with anyone would still resolve
	require.Equal(t, TimedOut, c.Fail("Node4", errors.New("connection refused")))
	require.True(t, errors.Is(c.Outcome().Err, ledgererr.ErrConsensusTimeout))
}

func TestCollector_AllNodesFail(t *testing.T) {
	c := newCollector(t)

	for _, n := range fourNodes[:2] {
		c.Fail(n, errors.New("unreachable"))
	}
	require.Equal(t, Pending, c.State())

	c.Fail("Node3", errors.New("unreachable"))
	require.Equal(t, TimedOut, c.State())
}

func TestCollector_FinishAfterCountedReplyKeepsGroup(t *testing.T) {
	c := newCollector(t)

	c.Add("Node1", reply("dest"))
	c.Finish("Node1")
	c.Fail("Node2", errors.New("unreachable"))
	c.Fail("Node3", errors.New("unreachable"))
	require.Equal(t, Collecting, c.State())

	require.Equal(t, Resolved, c.Add("Node4", reply("dest")))
}

func TestCollector_TerminalIsFinal(t *testing.T) {
	c := newCollector(t)
	c.Add("Node1", reply("dest"))
	c.Add("Node2", reply("dest"))
	require.Equal(t, Resolved, c.State())

	require.Equal(t, Resolved, c.Add("Node3", reject("late")))
	require.Equal(t, Resolved, c.Add("Node4", reject("late")))
	require.Equal(t, Resolved, c.Expire())
	require.Equal(t, Resolved, c.Fail("Node3", errors.New("late")))
	require.NoError(t, c.Outcome().Err)
}

func TestCollector_QuorumOfOne(t *testing.T) {
	c, err := New(reqID, []string{"Node1"}, 1)
	require.NoError(t, err)
	require.Equal(t, Resolved, c.Add("Node1", reply("dest")))
}

func TestCollector_WaitExpiresOnContext(t *testing.T) {
	c := newCollector(t)
	c.Add("Node1", reply("dest"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	out := c.Wait(ctx)
	require.Equal(t, TimedOut, out.State)
	require.True(t, errors.Is(out.Err, ledgererr.ErrConsensusTimeout))
}

func TestCollector_WaitReturnsOnSettle(t *testing.T) {
	c := newCollector(t)

	var wg sync.WaitGroup
	for _, n := range fourNodes {
		wg.Add(1)
		go func(n string) {
			defer wg.Done()
			c.Add(n, reply("dest"))
			c.Finish(n)
		}(n)
	}

	out := c.Wait(context.Background())
	wg.Wait()

	require.Equal(t, Resolved, out.State)
	require.Equal(t, 2, out.Agreeing)
}

func TestNew_Invalid(t *testing.T) {
	_, err := New(reqID, nil, 1)
	require.True(t, errors.Is(err, ledgererr.ErrInvalidStructure))

	_, err = New(reqID, fourNodes, 0)
	require.True(t, errors.Is(err, ledgererr.ErrInvalidStructure))

	_, err = New(reqID, fourNodes, 5)
	require.True(t, errors.Is(err, ledgererr.ErrInvalidStructure))
}

func TestStateMachine_Transitions(t *testing.T) {
	sm := newStateMachine()
	require.Error(t, sm.Transition(Resolved))
	require.NoError(t, sm.Transition(Collecting))
	require.NoError(t, sm.Transition(Collecting))
	require.NoError(t, sm.Transition(Rejected))

	for _, next := range []State{Pending, Collecting, Resolved, Rejected, TimedOut} {
		require.Error(t, sm.Transition(next))
	}
}
