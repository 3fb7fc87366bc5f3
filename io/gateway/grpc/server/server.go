// Package server exposes a node handler as the ledger.Node gRPC service.
package server

import (
	"context"
	"net"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/vadiminshakov/ledgerpool/io/gateway/grpc/nodeapi"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Handler answers one wire request with a reply document.
type Handler interface {
	Handle(ctx context.Context, request []byte) ([]byte, error)
}

type Option func(server *Server) error

// WithWhitelist only admits callers from hosts.
func WithWhitelist(hosts ...string) Option {
	return func(server *Server) error {
		server.Whitelist = append(server.Whitelist, hosts...)
		return nil
	}
}

// WithMaxRequestSize limits the size of accepted requests.
func WithMaxRequestSize(size int) Option {
	return func(server *Server) error {
		if size < 0 {
			return errors.Errorf("invalid max request size %d", size)
		}
		server.maxRequestSize = size
		return nil
	}
}

// Server holds the gRPC server and the handler it serves
type Server struct {
	nodeapi.UnimplementedNodeServer
	Addr       string
	GRPCServer *grpc.Server
	Whitelist  []string

	handler        Handler
	maxRequestSize int
}

// New fabric func for Server
func New(addr string, handler Handler, opts ...Option) (*Server, error) {
	if handler == nil {
		return nil, errors.New("handler is not set")
	}

	server := &Server{Addr: addr, handler: handler}
	for _, option := range opts {
		if err := option(server); err != nil {
			return nil, err
		}
	}

	return server, nil
}

func (s *Server) Submit(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	body := req.GetValue()
	if len(body) == 0 {
		return nil, status.Error(codes.InvalidArgument, "empty request")
	}
	if s.maxRequestSize > 0 && len(body) > s.maxRequestSize {
		return nil, status.Errorf(codes.InvalidArgument, "request of %d bytes exceeds %d", len(body), s.maxRequestSize)
	}

	if md, ok := metadata.FromIncomingContext(ctx); ok {
		log.WithFields(log.Fields{
			"session": first(md.Get(nodeapi.SessionHeader)),
			"node":    first(md.Get(nodeapi.NodeHeader)),
		}).Debug("submit")
	}

	reply, err := s.handler.Handle(ctx, body)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, status.FromContextError(err).Err()
		}
		return nil, status.Error(codes.Unavailable, err.Error())
	}

	return wrapperspb.Bytes(reply), nil
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// Run starts non-blocking GRPC server on Addr
func (s *Server) Run(opts ...grpc.UnaryServerInterceptor) error {
	l, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return errors.Wrap(err, "failed to listen")
	}
	log.Infof("listening on tcp://%s", s.Addr)

	s.Serve(l, opts...)
	return nil
}

// Serve starts non-blocking GRPC server on l. The whitelist check runs
// before opts when a whitelist is set.
func (s *Server) Serve(l net.Listener, opts ...grpc.UnaryServerInterceptor) {
	if len(s.Whitelist) > 0 {
		opts = append([]grpc.UnaryServerInterceptor{WhiteListChecker}, opts...)
	}
	s.GRPCServer = grpc.NewServer(grpc.ChainUnaryInterceptor(opts...))
	nodeapi.RegisterNodeServer(s.GRPCServer, s)

	go func() {
		if err := s.GRPCServer.Serve(l); err != nil {
			log.Errorf("server on %s stopped: %v", l.Addr(), err)
		}
	}()
}

// Stop stops server
func (s *Server) Stop() {
	log.Info("stopping server")
	if s.GRPCServer != nil {
		s.GRPCServer.GracefulStop()
	}
	log.Info("server stopped")
}
