// Package pool keeps the validator node sets of open pools.
//
// A pool is opened once with a resolved node list and a transport to reach the
// nodes. Its descriptor is immutable afterwards, so submissions read it without
// locking. Closing a pool cancels its context and releases the transport.
package pool

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/vadiminshakov/ledgerpool/core/ledgererr"
)

// Handle identifies an open pool.
type Handle int32

// Node is one validator of a pool.
type Node struct {
	Alias   string `yaml:"alias"`
	Verkey  string `yaml:"verkey"`
	Address string `yaml:"address"`
}

// NodeTransport sends a request to one node and returns the node's reply.
//
//go:generate mockgen -destination=../../mocks/mock_transport.go -package=mocks . NodeTransport
type NodeTransport interface {
	Exchange(ctx context.Context, node Node, request []byte) ([]byte, error)
	Close() error
}

// Descriptor is the resolved view of an open pool.
type Descriptor struct {
	Handle    Handle
	Name      string
	SessionID string
	Nodes     []Node
	// F is the number of faulty nodes tolerated: floor((n-1)/3).
	F int
	// Quorum is the number of matching replies that are trusted: F+1.
	Quorum    int
	Transport NodeTransport

	ctx context.Context
}

// Context is cancelled when the pool is closed.
func (d *Descriptor) Context() context.Context {
	return d.ctx
}

// FaultTolerance returns f and the quorum for n nodes.
func FaultTolerance(n int) (f, quorum int) {
	if n < 1 {
		return 0, 0
	}
	f = (n - 1) / 3
	return f, f + 1
}

type entry struct {
	desc   *Descriptor
	cancel context.CancelFunc
}

// Manager owns the pool handle table.
type Manager struct {
	mu    sync.RWMutex
	next  Handle
	pools map[Handle]*entry
}

// NewManager creates an empty pool manager.
func NewManager() *Manager {
	return &Manager{pools: make(map[Handle]*entry)}
}

// Open registers a pool with its node set and transport and returns its handle.
func (m *Manager) Open(name string, nodes []Node, transport NodeTransport) (Handle, error) {
	if name == "" {
		return 0, ledgererr.Structuref("pool: name is required")
	}
	if len(nodes) == 0 {
		return 0, ledgererr.Structuref("pool %s: at least one node is required", name)
	}
	if transport == nil {
		return 0, ledgererr.Structuref("pool %s: transport is required", name)
	}

	aliases := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		if n.Alias == "" {
			return 0, ledgererr.Structuref("pool %s: node alias is required", name)
		}
		if _, dup := aliases[n.Alias]; dup {
			return 0, ledgererr.Structuref("pool %s: duplicate node %s", name, n.Alias)
		}
		aliases[n.Alias] = struct{}{}
	}

	f, quorum := FaultTolerance(len(nodes))
	ctx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	defer m.mu.Unlock()

	m.next++
	desc := &Descriptor{
		Handle:    m.next,
		Name:      name,
		SessionID: uuid.NewString(),
		Nodes:     append([]Node(nil), nodes...),
		F:         f,
		Quorum:    quorum,
		Transport: transport,
		ctx:       ctx,
	}
	m.pools[desc.Handle] = &entry{desc: desc, cancel: cancel}

	log.WithFields(log.Fields{
		"pool":    name,
		"handle":  desc.Handle,
		"session": desc.SessionID,
		"nodes":   len(nodes),
		"quorum":  quorum,
	}).Info("pool opened")

	return desc.Handle, nil
}

// Resolve returns the descriptor of an open pool.
func (m *Manager) Resolve(h Handle) (*Descriptor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.pools[h]
	if !ok {
		return nil, errors.Wrapf(ledgererr.ErrInvalidPoolHandle, "handle %d", h)
	}
	return e.desc, nil
}

// Name returns the name of an open pool.
func (m *Manager) Name(h Handle) (string, error) {
	desc, err := m.Resolve(h)
	if err != nil {
		return "", err
	}
	return desc.Name, nil
}

// Close cancels everything outstanding on the pool and closes its transport.
func (m *Manager) Close(h Handle) error {
	m.mu.Lock()
	e, ok := m.pools[h]
	delete(m.pools, h)
	m.mu.Unlock()

	if !ok {
		return errors.Wrapf(ledgererr.ErrInvalidPoolHandle, "handle %d", h)
	}

	e.cancel()
	log.Infof("pool %s (handle %d) closed", e.desc.Name, h)

	return errors.Wrapf(e.desc.Transport.Close(), "close transport of pool %s", e.desc.Name)
}

// CloseAll closes every open pool.
func (m *Manager) CloseAll() error {
	m.mu.RLock()
	handles := make([]Handle, 0, len(m.pools))
	for h := range m.pools {
		handles = append(handles, h)
	}
	m.mu.RUnlock()

	var firstErr error
	for _, h := range handles {
		if err := m.Close(h); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
