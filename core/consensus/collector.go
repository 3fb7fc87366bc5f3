// Package consensus aggregates the replies of a pool's nodes to one request
// into a single trusted answer.
//
// A Collector groups replies by a canonical hash of what they say and settles
// once f+1 distinct nodes agree. Replies to other requests, repeats from a node
// that already answered and acknowledgements are ignored. If the deadline
// passes, or every node has answered without any group being able to reach the
// quorum, the collector times out.
package consensus

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/vadiminshakov/ledgerpool/core/dto"
	"github.com/vadiminshakov/ledgerpool/core/ledgererr"
)

// Outcome is the terminal result of a collector.
type Outcome struct {
	State State
	// Reply is the agreed reply for Resolved and Rejected.
	Reply *dto.Reply
	// Raw is the payload of the first node in the agreeing group.
	Raw []byte
	// Err is nil for Resolved, a *ledgererr.Rejection for Rejected and wraps
	// ledgererr.ErrConsensusTimeout for TimedOut.
	Err error
	// Agreeing is the number of nodes behind Reply, or the largest group on timeout.
	Agreeing int
	// Replies is the number of nodes whose reply was counted.
	Replies int
}

type group struct {
	reply *dto.Reply
	raw   []byte
	nodes map[string]struct{}
}

// Collector is the per-request reply state machine. It is safe for
// concurrent use by the goroutines delivering node replies.
type Collector struct {
	mu       sync.Mutex
	reqID    uint64
	quorum   int
	nodes    map[string]struct{}
	answered map[string]struct{}
	finished map[string]struct{}
	groups   map[string]*group
	sm       *stateMachine
	outcome  Outcome
	done     chan struct{}
}

// New creates a collector for reqID expecting replies from nodes.
func New(reqID uint64, nodes []string, quorum int) (*Collector, error) {
	if len(nodes) == 0 {
		return nil, ledgererr.Structuref("collector: no nodes")
	}
	if quorum < 1 || quorum > len(nodes) {
		return nil, ledgererr.Structuref("collector: quorum %d out of range for %d nodes", quorum, len(nodes))
	}

	set := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		set[n] = struct{}{}
	}

	return &Collector{
		reqID:    reqID,
		quorum:   quorum,
		nodes:    set,
		answered: make(map[string]struct{}, len(nodes)),
		finished: make(map[string]struct{}, len(nodes)),
		groups:   make(map[string]*group),
		sm:       newStateMachine(),
		done:     make(chan struct{}),
	}, nil
}

// ReqID returns the request the collector correlates replies with.
func (c *Collector) ReqID() uint64 {
	return c.reqID
}

// State returns the current state.
func (c *Collector) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sm.currentState
}

// Add feeds one payload received from node and returns the resulting state.
func (c *Collector) Add(node string, payload []byte) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sm.currentState.Terminal() {
		return c.sm.currentState
	}
	if _, ok := c.nodes[node]; !ok {
		log.Warnf("request %d: discarding reply from unknown node %s", c.reqID, node)
		return c.sm.currentState
	}
	if _, ok := c.answered[node]; ok {
		log.Debugf("request %d: ignoring repeated reply from %s", c.reqID, node)
		return c.sm.currentState
	}

	var reply dto.Reply
	if err := json.Unmarshal(payload, &reply); err != nil || reply.Op == "" {
		log.Warnf("request %d: discarding malformed reply from %s", c.reqID, node)
		return c.sm.currentState
	}
	if reply.IsAck() {
		return c.sm.currentState
	}
	// rejections may omit the reqId, results never may
	id, ok := reply.CorrelationID()
	switch {
	case ok && id != c.reqID:
		log.Warnf("request %d: discarding reply from %s for request %d", c.reqID, node, id)
		return c.sm.currentState
	case !ok && !reply.IsRejection():
		log.Warnf("request %d: discarding uncorrelated %s from %s", c.reqID, reply.Op, node)
		return c.sm.currentState
	}

	key, err := canonicalKey(&reply)
	if err != nil {
		log.Warnf("request %d: discarding reply from %s: %v", c.reqID, node, err)
		return c.sm.currentState
	}

	c.answered[node] = struct{}{}
	c.transition(Collecting)

	g, ok := c.groups[key]
	if !ok {
		g = &group{reply: &reply, raw: append([]byte(nil), payload...), nodes: make(map[string]struct{})}
		c.groups[key] = g
	}
	g.nodes[node] = struct{}{}

	if len(g.nodes) >= c.quorum {
		c.settle(g)
		return c.sm.currentState
	}

	c.checkExhausted()
	return c.sm.currentState
}

// Finish records that node will send nothing more. A node that never had a
// reply counted no longer counts towards a possible quorum.
func (c *Collector) Finish(node string) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sm.currentState.Terminal() {
		return c.sm.currentState
	}
	if _, ok := c.nodes[node]; !ok {
		return c.sm.currentState
	}
	c.finished[node] = struct{}{}
	c.checkExhausted()

	return c.sm.currentState
}

// Fail records that node could not be reached.
func (c *Collector) Fail(node string, err error) State {
	log.Warnf("request %d: node %s failed: %v", c.reqID, node, err)
	return c.Finish(node)
}

// Expire times the collector out unless it already settled.
func (c *Collector) Expire() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.sm.currentState.Terminal() {
		c.timeout("deadline exceeded")
	}
	return c.sm.currentState
}

// Done is closed once the collector reaches a terminal state.
func (c *Collector) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the collector settles or ctx ends; in the latter case the
// collector is expired first.
func (c *Collector) Wait(ctx context.Context) Outcome {
	select {
	case <-c.done:
	case <-ctx.Done():
		c.Expire()
	}
	return c.Outcome()
}

// Outcome returns the terminal outcome, or the zero Outcome with the current
// state while the collector is still open.
func (c *Collector) Outcome() Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.sm.currentState.Terminal() {
		return Outcome{State: c.sm.currentState, Replies: len(c.answered)}
	}
	return c.outcome
}

func (c *Collector) transition(next State) {
	if err := c.sm.Transition(next); err != nil {
		log.Errorf("request %d: %v", c.reqID, err)
	}
}

func (c *Collector) settle(g *group) {
	outcome := Outcome{
		Reply:    g.reply,
		Raw:      g.raw,
		Agreeing: len(g.nodes),
		Replies:  len(c.answered),
	}
	if g.reply.IsRejection() {
		outcome.State = Rejected
		outcome.Err = &ledgererr.Rejection{Op: g.reply.Op, Reason: g.reply.Reason, ReqID: c.reqID}
	} else {
		outcome.State = Resolved
	}

	c.transition(outcome.State)
	c.outcome = outcome
	close(c.done)
}

func (c *Collector) largestGroup() int {
	largest := 0
	for _, g := range c.groups {
		if len(g.nodes) > largest {
			largest = len(g.nodes)
		}
	}
	return largest
}

// checkExhausted times out once no group can reach the quorum with the nodes
// still outstanding.
func (c *Collector) checkExhausted() {
	outstanding := 0
	for n := range c.nodes {
		_, answered := c.answered[n]
		_, finished := c.finished[n]
		if !answered && !finished {
			outstanding++
		}
	}
	if c.largestGroup()+outstanding < c.quorum {
		c.timeout("quorum can no longer be reached")
	}
}

func (c *Collector) timeout(reason string) {
	largest := c.largestGroup()
	c.transition(TimedOut)
	c.outcome = Outcome{
		State:    TimedOut,
		Agreeing: largest,
		Replies:  len(c.answered),
		Err: errors.Wrapf(ledgererr.ErrConsensusTimeout,
			"request %d: %s (%d of %d nodes replied, largest agreeing group %d, quorum %d)",
			c.reqID, reason, len(c.answered), len(c.nodes), largest, c.quorum),
	}
	close(c.done)
}

// canonicalKey hashes what a reply says: the op with its result, or with its
// reason for rejections. Object keys are sorted and whitespace dropped, so two
// nodes agree regardless of how they serialized the same answer.
func canonicalKey(reply *dto.Reply) (string, error) {
	doc := map[string]interface{}{"op": reply.Op}
	if reply.IsRejection() {
		doc["reason"] = reply.Reason
	} else {
		var result interface{}
		if len(reply.Result) > 0 {
			dec := json.NewDecoder(bytes.NewReader(reply.Result))
			dec.UseNumber()
			if err := dec.Decode(&result); err != nil {
				return "", errors.Wrap(err, "decode result")
			}
		}
		doc["result"] = result
	}

	canonical, err := json.Marshal(doc)
	if err != nil {
		return "", errors.Wrap(err, "encode canonical reply")
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
