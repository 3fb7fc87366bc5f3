// Package client reaches validator nodes over gRPC.
package client

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/vadiminshakov/ledgerpool/core/pool"
	"github.com/vadiminshakov/ledgerpool/io/gateway/grpc/nodeapi"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type Option func(t *NodeTransport)

// WithDialOptions adds options to every connection the transport opens.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(t *NodeTransport) {
		t.dialOpts = append(t.dialOpts, opts...)
	}
}

// NodeTransport sends requests to nodes through the ledger.Node service. One
// connection is kept per node address, opened on first use.
type NodeTransport struct {
	session  string
	dialOpts []grpc.DialOption

	mu      sync.Mutex
	closed  bool
	conns   map[string]*grpc.ClientConn
	clients map[string]nodeapi.NodeClient
}

func NewNodeTransport(opts ...Option) *NodeTransport {
	t := &NodeTransport{
		session: uuid.NewString(),
		conns:   make(map[string]*grpc.ClientConn),
		clients: make(map[string]nodeapi.NodeClient),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Session identifies the transport to the nodes it talks to.
func (t *NodeTransport) Session() string {
	return t.session
}

func (t *NodeTransport) client(addr string) (nodeapi.NodeClient, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, errors.New("transport is closed")
	}
	if cl, ok := t.clients[addr]; ok {
		return cl, nil
	}

	conn, err := createConnection(addr, t.dialOpts...)
	if err != nil {
		return nil, errors.Wrapf(err, "connect to %s", addr)
	}
	cl := nodeapi.NewNodeClient(conn)
	t.conns[addr] = conn
	t.clients[addr] = cl

	return cl, nil
}

// Exchange sends request to node and returns its reply document.
func (t *NodeTransport) Exchange(ctx context.Context, node pool.Node, request []byte) ([]byte, error) {
	if node.Address == "" {
		return nil, errors.Errorf("node %s has no address", node.Alias)
	}
	cl, err := t.client(node.Address)
	if err != nil {
		return nil, err
	}

	ctx = metadata.AppendToOutgoingContext(ctx, nodeapi.SessionHeader, t.session, nodeapi.NodeHeader, node.Alias)
	resp, err := cl.Submit(ctx, wrapperspb.Bytes(request))
	if err != nil {
		return nil, errors.Wrapf(err, "submit to node %s", node.Alias)
	}

	return resp.GetValue(), nil
}

// Close closes every connection. Exchanges after Close fail.
func (t *NodeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	var firstErr error
	for addr, conn := range t.conns {
		if err := conn.Close(); err != nil {
			log.Warnf("failed to close connection to %s: %v", addr, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	t.conns = make(map[string]*grpc.ClientConn)
	t.clients = make(map[string]nodeapi.NodeClient)

	return firstErr
}
