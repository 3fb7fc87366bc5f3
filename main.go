package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/vadiminshakov/gowal"
	"github.com/vadiminshakov/ledgerpool/config"
	"github.com/vadiminshakov/ledgerpool/core/coordinator"
	"github.com/vadiminshakov/ledgerpool/core/coordinator/hooks"
	"github.com/vadiminshakov/ledgerpool/core/pool"
	"github.com/vadiminshakov/ledgerpool/core/request"
	"github.com/vadiminshakov/ledgerpool/io/gateway/grpc/client"
	"github.com/vadiminshakov/ledgerpool/io/gateway/grpc/server"
	"github.com/vadiminshakov/ledgerpool/io/store"
)

func main() {
	conf, err := config.Get()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	if conf.Pool == "" {
		log.Fatal("no pool to serve, set 'pool' in the configuration")
	}

	metrics := hooks.NewMetricsHook()
	opts := []coordinator.Option{
		coordinator.WithTimeout(conf.TimeoutDuration()),
		coordinator.WithHooks(hooks.NewRegistry(
			hooks.NewDefaultHook(),
			hooks.NewValidationHook(conf.MaxRequestSize),
			hooks.NewRoleHook(conf.Roles),
			metrics,
			hooks.NewAuditHook(),
		)),
	}

	var lastReqID uint64
	if conf.JournalEnabled() {
		wal, err := gowal.NewWAL(gowal.Config{
			Dir:              conf.WalDir,
			Prefix:           "journal_",
			SegmentThreshold: 1024 * 1024,
			MaxSegments:      100,
		})
		if err != nil {
			log.Fatalf("failed to open wal: %v", err)
		}
		defer wal.Close()

		journal, state, err := store.New(wal, conf.DBPath)
		if err != nil {
			log.Fatalf("failed to open journal: %v", err)
		}
		defer journal.Close()

		for _, req := range state.Pending {
			log.WithFields(log.Fields{"req_id": req.ReqID, "pool": req.Pool, "type": req.Type}).
				Warn("request was never settled before restart")
		}
		lastReqID = state.LastReqID
		opts = append(opts, coordinator.WithJournal(journal))
	}
	builder := newBuilder(conf.Roles, lastReqID)

	c := coordinator.New(pool.NewManager(), opts...)
	h, err := c.OpenPool(conf.Pool, conf.Pools[conf.Pool], client.NewNodeTransport())
	if err != nil {
		log.Fatalf("failed to open pool %s: %v", conf.Pool, err)
	}
	defer c.ClosePool(h)

	if conf.CheckDID != "" {
		if err := checkPool(context.Background(), c, h, builder, conf.CheckDID); err != nil {
			log.Fatalf("pool %s failed the startup check: %v", conf.Pool, err)
		}
	}

	s, err := server.New(conf.Listen, server.NewPoolProxy(c, h), server.WithWhitelist(conf.Whitelist...),
		server.WithMaxRequestSize(conf.MaxRequestSize))
	if err != nil {
		log.Fatalf("failed to create gateway: %v", err)
	}
	if err := s.Run(); err != nil {
		log.Fatalf("failed to start gateway: %v", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	s.Stop()
	stats := metrics.GetStats()
	log.Infof("served %d requests: %d resolved, %d rejected, %d timed out",
		stats.Dispatched, stats.Resolved, stats.Rejected, stats.TimedOut)
}

// newBuilder creates the request builder of the binary. Its ids start above
// lastReqID so requests never reuse an id journaled before a restart.
func newBuilder(roles request.Roles, lastReqID uint64) *request.Builder {
	builder := request.NewBuilder(request.WithRoles(roles))
	builder.IDs().Floor(lastReqID)
	return builder
}

// checkPool reads did from the pool and fails unless a quorum answers.
func checkPool(ctx context.Context, c *coordinator.Coordinator, h pool.Handle, builder *request.Builder, did string) error {
	req, err := builder.BuildGetNym(did, did)
	if err != nil {
		return err
	}
	if _, err := c.Submit(ctx, h, req); err != nil {
		return err
	}
	log.Infof("pool answered request %d for %s", req.ReqID, did)
	return nil
}
