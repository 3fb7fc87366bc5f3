package server

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/ledgerpool/core/dto"
	"github.com/vadiminshakov/ledgerpool/core/ledgererr"
	"github.com/vadiminshakov/ledgerpool/core/pool"
)

// Submitter submits wire requests to a pool.
type Submitter interface {
	SubmitRaw(ctx context.Context, h pool.Handle, body []byte) (*dto.Reply, error)
}

// PoolProxy answers requests with the reply a quorum of pool h agreed on, so
// a caller can talk to the whole pool as if it were one trusted node.
type PoolProxy struct {
	submitter Submitter
	pool      pool.Handle
}

func NewPoolProxy(submitter Submitter, h pool.Handle) *PoolProxy {
	return &PoolProxy{submitter: submitter, pool: h}
}

// Handle submits request and encodes the outcome as a reply document. A
// quorum rejection is passed on as the rejection reply; local and timeout
// failures become a REQNACK.
func (p *PoolProxy) Handle(ctx context.Context, request []byte) ([]byte, error) {
	reply, err := p.submitter.SubmitRaw(ctx, p.pool, request)
	if err == nil {
		return json.Marshal(reply)
	}

	var rejection *ledgererr.Rejection
	if errors.As(err, &rejection) {
		return json.Marshal(dto.Reply{Op: rejection.Op, Reason: rejection.Reason, ReqID: rejection.ReqID})
	}
	if errors.Is(err, ledgererr.ErrInvalidPoolHandle) {
		return nil, err
	}

	return json.Marshal(dto.Reply{Op: dto.OpReqNack, Reason: err.Error()})
}
