// Package hooks provides an extensible hook system for request submission.
//
// Hooks can veto a request before it is sent to the nodes and observe how it
// settled, without modifying the coordinator.
package hooks

import (
	log "github.com/sirupsen/logrus"
	"github.com/vadiminshakov/ledgerpool/core/dto"
)

// DefaultHook provides the default logging behavior
type DefaultHook struct{}

// NewDefaultHook creates a new default hook instance
func NewDefaultHook() *DefaultHook {
	return &DefaultHook{}
}

// OnDispatch implements the Hook interface for dispatched requests
func (h *DefaultHook) OnDispatch(req *dto.DispatchedRequest) bool {
	log.Debugf("dispatching request %d (type %s) to pool %s", req.ReqID, req.Type, req.Pool)
	return true
}

// OnOutcome implements the Hook interface for settled requests
func (h *DefaultHook) OnOutcome(res *dto.SettledRequest) {
	log.Infof("request %d on pool %s %s", res.ReqID, res.Pool, res.Outcome)
}
