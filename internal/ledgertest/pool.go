package ledgertest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/ledgerpool/core/dto"
	"github.com/vadiminshakov/ledgerpool/core/pool"
	"github.com/vadiminshakov/ledgerpool/core/wallet"
)

// Well known seeds of the genesis identities.
const (
	TrusteeSeed = "000000000000000000000000Trustee1"
	StewardSeed = "000000000000000000000000Steward1"
)

// Identity is a DID with its verkey.
type Identity struct {
	DID    string
	Verkey string
}

// IdentityFromSeed derives the identity a wallet creates from seed.
func IdentityFromSeed(seed string) Identity {
	m := wallet.NewManager()
	if err := m.Create("ledgertest", "ledgertest"); err != nil {
		panic(err)
	}
	h, err := m.Open("ledgertest")
	if err != nil {
		panic(err)
	}
	did, verkey, err := m.CreateDID(h, wallet.DIDInfo{Seed: seed})
	if err != nil {
		panic(err)
	}
	return Identity{DID: did, Verkey: verkey}
}

// Genesis returns the identities every node starts with: a trustee, a
// steward and a steward registered without a verkey.
func Genesis() []NymRecord {
	trustee := IdentityFromSeed(TrusteeSeed)
	steward := IdentityFromSeed(StewardSeed)
	return []NymRecord{
		{Dest: trustee.DID, Verkey: trustee.Verkey, Role: "0"},
		{Dest: steward.DID, Identifier: trustee.DID, Verkey: steward.Verkey, Role: "2"},
		{Dest: "FYmoFw55GeQH7SRFa37dkx1d2dZ3zUF8ckg7wmL7ofN4", Identifier: "Th7MpTaRZVRYnPiabds81Y", Role: "2"},
	}
}

// Mode is how a node behaves.
type Mode int

const (
	// Honest nodes apply requests to their ledger and reply.
	Honest Mode = iota
	// Silent nodes never reply.
	Silent
	// Failing nodes return a transport error.
	Failing
	// Lying nodes apply requests but report a forged result.
	Lying
	// Rejecting nodes reject every request.
	Rejecting
	// Stale nodes reply with another request's reqId.
	Stale
)

// Node is one simulated validator.
type Node struct {
	alias  string
	ledger *ledger

	mu    sync.RWMutex
	mode  Mode
	delay time.Duration

	handled uint64
}

func (n *Node) Alias() string {
	return n.alias
}

// SetMode switches the node's behaviour.
func (n *Node) SetMode(m Mode) {
	n.mu.Lock()
	n.mode = m
	n.mu.Unlock()
}

// SetDelay makes the node wait before replying.
func (n *Node) SetDelay(d time.Duration) {
	n.mu.Lock()
	n.delay = d
	n.mu.Unlock()
}

// Handled returns the number of requests the node received.
func (n *Node) Handled() uint64 {
	return atomic.LoadUint64(&n.handled)
}

// Handle processes one wire request according to the node's mode.
func (n *Node) Handle(ctx context.Context, body []byte) ([]byte, error) {
	atomic.AddUint64(&n.handled, 1)

	n.mu.RLock()
	mode, delay := n.mode, n.delay
	n.mu.RUnlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	switch mode {
	case Silent:
		<-ctx.Done()
		return nil, ctx.Err()
	case Failing:
		return nil, errors.Errorf("node %s is unreachable", n.alias)
	case Rejecting:
		return encode(dto.Reply{Op: dto.OpReject, Reason: fmt.Sprintf("node %s rejects everything", n.alias)}), nil
	case Stale:
		return encode(dto.Reply{Op: dto.OpReply, ReqID: 1, Result: []byte(`{"reqId":1}`)}), nil
	case Lying:
		n.ledger.process(body)
		return encode(dto.Reply{Op: dto.OpReply, Result: []byte(fmt.Sprintf(`{"forged_by":%q}`, n.alias))}), nil
	}

	return n.ledger.process(body), nil
}

// Pool is a set of simulated validators.
type Pool struct {
	nodes []*Node
	byKey map[string]*Node
}

// NewPool creates n honest nodes named Node1..Nn, each starting from genesis.
func NewPool(n int, genesis []NymRecord) *Pool {
	p := &Pool{byKey: make(map[string]*Node, n)}
	for i := 1; i <= n; i++ {
		node := &Node{alias: fmt.Sprintf("Node%d", i), ledger: newLedger(genesis)}
		p.nodes = append(p.nodes, node)
		p.byKey[node.alias] = node
	}
	return p
}

// Node returns the node with alias, or nil.
func (p *Pool) Node(alias string) *Node {
	return p.byKey[alias]
}

// Nodes returns the node descriptors to open the pool with.
func (p *Pool) Nodes() []pool.Node {
	out := make([]pool.Node, 0, len(p.nodes))
	for _, n := range p.nodes {
		out = append(out, pool.Node{Alias: n.alias, Address: n.alias + ".ledgertest:9702"})
	}
	return out
}

// Transport returns an in-process transport to the pool's nodes.
func (p *Pool) Transport() *Transport {
	return &Transport{pool: p}
}

// Transport delivers requests to simulated nodes in process.
type Transport struct {
	pool   *Pool
	closed int32
}

func (t *Transport) Exchange(ctx context.Context, node pool.Node, request []byte) ([]byte, error) {
	if atomic.LoadInt32(&t.closed) == 1 {
		return nil, errors.New("transport closed")
	}
	n := t.pool.Node(node.Alias)
	if n == nil {
		return nil, errors.Errorf("no node %s", node.Alias)
	}
	return n.Handle(ctx, request)
}

func (t *Transport) Close() error {
	atomic.StoreInt32(&t.closed, 1)
	return nil
}

// Closed reports whether Close was called.
func (t *Transport) Closed() bool {
	return atomic.LoadInt32(&t.closed) == 1
}
