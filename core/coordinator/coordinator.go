// Package coordinator drives one request through a pool: it fans the request
// out to every node concurrently and waits for a quorum of them to agree.
package coordinator

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/vadiminshakov/ledgerpool/cache"
	"github.com/vadiminshakov/ledgerpool/core/consensus"
	"github.com/vadiminshakov/ledgerpool/core/coordinator/hooks"
	"github.com/vadiminshakov/ledgerpool/core/dto"
	"github.com/vadiminshakov/ledgerpool/core/ledgererr"
	"github.com/vadiminshakov/ledgerpool/core/pool"
	"github.com/vadiminshakov/ledgerpool/core/request"
)

// DefaultTimeout bounds how long a request waits for a quorum.
const DefaultTimeout = 5 * time.Second

// Journal records requests as they are dispatched and settled.
//
//go:generate mockgen -destination=../../mocks/mock_journal.go -package=mocks . Journal
type Journal interface {
	Dispatched(req *dto.DispatchedRequest) error
	Settled(res *dto.SettledRequest) error
}

type Option func(c *Coordinator)

// WithTimeout sets the consensus deadline of every request.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Coordinator) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithJournal records every request in j.
func WithJournal(j Journal) Option {
	return func(c *Coordinator) {
		c.journal = j
	}
}

// WithHooks replaces the default hook registry.
func WithHooks(r *hooks.Registry) Option {
	return func(c *Coordinator) {
		c.hooks = r
	}
}

// Coordinator submits requests to open pools and settles each one by quorum.
type Coordinator struct {
	pools    *pool.Manager
	journal  Journal
	hooks    *hooks.Registry
	inflight *cache.Cache
	timeout  time.Duration
}

// New creates a Coordinator over pools with the default hook registry and
// DefaultTimeout unless opts say otherwise.
func New(pools *pool.Manager, opts ...Option) *Coordinator {
	c := &Coordinator{
		pools:    pools,
		hooks:    hooks.NewRegistry(hooks.NewDefaultHook()),
		inflight: cache.New(),
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OpenPool opens a pool over nodes reached through transport.
func (c *Coordinator) OpenPool(name string, nodes []pool.Node, transport pool.NodeTransport) (pool.Handle, error) {
	return c.pools.Open(name, nodes, transport)
}

// ClosePool closes the pool. Requests outstanding on it fail with
// ledgererr.ErrInvalidPoolHandle.
func (c *Coordinator) ClosePool(h pool.Handle) error {
	if name, err := c.pools.Name(h); err == nil {
		if outstanding := c.inflight.Keys(name); len(outstanding) > 0 {
			log.Warnf("closing pool %s with %d requests outstanding", name, len(outstanding))
		}
	}
	return c.pools.Close(h)
}

// PoolName returns the name of an open pool.
func (c *Coordinator) PoolName(h pool.Handle) (string, error) {
	return c.pools.Name(h)
}

// Submit sends req to every node of the pool and returns the reply a quorum
// agreed on.
func (c *Coordinator) Submit(ctx context.Context, h pool.Handle, req *request.Request) (*dto.Reply, error) {
	if req == nil || req.Operation == nil {
		return nil, ledgererr.Structuref("request has no operation")
	}
	desc, err := c.pools.Resolve(h)
	if err != nil {
		return nil, err
	}

	body, err := req.Marshal()
	if err != nil {
		return nil, errors.Wrap(ledgererr.ErrInvalidStructure, err.Error())
	}

	return c.submit(ctx, desc, req, body)
}

// SendRequest submits req without signing it. Nodes reject unsigned writes,
// which surfaces as a ledger rejection.
func (c *Coordinator) SendRequest(ctx context.Context, h pool.Handle, req *request.Request) (*dto.Reply, error) {
	if req != nil && !req.Signed() {
		log.Debugf("sending unsigned request %d", req.ReqID)
	}
	return c.Submit(ctx, h, req)
}

// SubmitRaw submits a request already in wire form. The body is sent
// unchanged so an attached signature stays valid.
func (c *Coordinator) SubmitRaw(ctx context.Context, h pool.Handle, body []byte) (*dto.Reply, error) {
	desc, err := c.pools.Resolve(h)
	if err != nil {
		return nil, err
	}

	req, err := request.Parse(body)
	if err != nil {
		return nil, err
	}

	return c.submit(ctx, desc, req, body)
}

func (c *Coordinator) submit(ctx context.Context, desc *pool.Descriptor, req *request.Request, body []byte) (*dto.Reply, error) {
	if !c.inflight.Reserve(req.ReqID, desc.Name, body) {
		return nil, ledgererr.Structuref("request %d is already in flight", req.ReqID)
	}
	defer c.inflight.Delete(req.ReqID)

	dispatched := &dto.DispatchedRequest{
		ReqID: req.ReqID,
		Pool:  desc.Name,
		Type:  req.Operation.Type(),
		Body:  body,
	}
	if !c.hooks.ExecuteDispatch(dispatched) {
		return nil, ledgererr.Structuref("request %d refused by dispatch hook", req.ReqID)
	}
	if c.journal != nil {
		if err := c.journal.Dispatched(dispatched); err != nil {
			return nil, errors.Wrapf(ledgererr.ErrJournal, "journal request %d: %v", req.ReqID, err)
		}
	}

	aliases := make([]string, len(desc.Nodes))
	for i, n := range desc.Nodes {
		aliases[i] = n.Alias
	}
	collector, err := consensus.New(req.ReqID, aliases, desc.Quorum)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	stop := context.AfterFunc(desc.Context(), cancel)
	defer stop()

	logger := log.WithFields(log.Fields{
		"pool":    desc.Name,
		"session": desc.SessionID,
		"req_id":  req.ReqID,
		"type":    dispatched.Type,
	})
	logger.Debugf("broadcasting to %d nodes, quorum %d", len(desc.Nodes), desc.Quorum)

	for _, node := range desc.Nodes {
		go func(node pool.Node) {
			payload, err := desc.Transport.Exchange(ctx, node, body)
			if err != nil {
				collector.Fail(node.Alias, err)
				return
			}
			collector.Add(node.Alias, payload)
			collector.Finish(node.Alias)
		}(node)
	}

	out := collector.Wait(ctx)

	settled := &dto.SettledRequest{ReqID: req.ReqID, Pool: desc.Name, Reply: out.Raw}
	switch out.State {
	case consensus.Resolved:
		settled.Outcome = dto.OutcomeResolved
		logger.WithField("agreeing", out.Agreeing).Info("quorum reached")
	case consensus.Rejected:
		settled.Outcome = dto.OutcomeRejected
		settled.Reason = out.Reply.Reason
		logger.WithField("reason", out.Reply.Reason).Warn("request rejected")
	default:
		settled.Outcome = dto.OutcomeTimedOut
		settled.Reason = out.Err.Error()
		if desc.Context().Err() != nil {
			out.Err = errors.Wrapf(ledgererr.ErrInvalidPoolHandle, "pool %s closed while request %d was outstanding", desc.Name, req.ReqID)
			settled.Reason = out.Err.Error()
		}
		logger.WithField("replies", out.Replies).Warn(out.Err)
	}

	if c.journal != nil {
		if err := c.journal.Settled(settled); err != nil {
			logger.Errorf("failed to journal outcome: %v", err)
		}
	}
	c.hooks.ExecuteOutcome(settled)

	if out.Err != nil {
		return nil, out.Err
	}
	return out.Reply, nil
}
