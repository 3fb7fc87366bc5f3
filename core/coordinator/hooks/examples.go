package hooks

import (
	"fmt"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/vadiminshakov/ledgerpool/core/dto"
	"github.com/vadiminshakov/ledgerpool/core/request"
)

// MetricsHook counts submissions and their outcomes
type MetricsHook struct {
	dispatched uint64
	resolved   uint64
	rejected   uint64
	timedOut   uint64
	startTime  time.Time
}

// NewMetricsHook creates a new metrics hook
func NewMetricsHook() *MetricsHook {
	return &MetricsHook{
		startTime: time.Now(),
	}
}

// OnDispatch increments the dispatch counter
func (m *MetricsHook) OnDispatch(req *dto.DispatchedRequest) bool {
	count := atomic.AddUint64(&m.dispatched, 1)
	log.WithFields(log.Fields{
		"req_id":           req.ReqID,
		"dispatched_count": count,
		"uptime":           time.Since(m.startTime),
	}).Debug("Metrics: dispatch")
	return true
}

// OnOutcome increments the counter of the outcome
func (m *MetricsHook) OnOutcome(res *dto.SettledRequest) {
	switch res.Outcome {
	case dto.OutcomeResolved:
		atomic.AddUint64(&m.resolved, 1)
	case dto.OutcomeRejected:
		atomic.AddUint64(&m.rejected, 1)
	case dto.OutcomeTimedOut:
		atomic.AddUint64(&m.timedOut, 1)
	}
}

// Stats is a snapshot of MetricsHook counters.
type Stats struct {
	Dispatched uint64
	Resolved   uint64
	Rejected   uint64
	TimedOut   uint64
	Uptime     time.Duration
}

// GetStats returns current statistics
func (m *MetricsHook) GetStats() Stats {
	return Stats{
		Dispatched: atomic.LoadUint64(&m.dispatched),
		Resolved:   atomic.LoadUint64(&m.resolved),
		Rejected:   atomic.LoadUint64(&m.rejected),
		TimedOut:   atomic.LoadUint64(&m.timedOut),
		Uptime:     time.Since(m.startTime),
	}
}

// ValidationHook refuses requests before they reach the network
type ValidationHook struct {
	maxRequestSize int
	allowedTypes   map[string]struct{}
}

// NewValidationHook creates a new validation hook. An empty allowedTypes
// permits every operation type.
func NewValidationHook(maxRequestSize int, allowedTypes ...string) *ValidationHook {
	v := &ValidationHook{maxRequestSize: maxRequestSize}
	if len(allowedTypes) > 0 {
		v.allowedTypes = make(map[string]struct{}, len(allowedTypes))
		for _, t := range allowedTypes {
			v.allowedTypes[t] = struct{}{}
		}
	}
	return v
}

// OnDispatch validates the request
func (v *ValidationHook) OnDispatch(req *dto.DispatchedRequest) bool {
	if v.maxRequestSize > 0 && len(req.Body) > v.maxRequestSize {
		log.Errorf("Request %d too large: %d > %d", req.ReqID, len(req.Body), v.maxRequestSize)
		return false
	}

	if v.allowedTypes != nil {
		if _, ok := v.allowedTypes[req.Type]; !ok {
			log.Errorf("Request %d: operation type %s is not allowed", req.ReqID, req.Type)
			return false
		}
	}

	log.Debugf("Validation passed for request %d", req.ReqID)
	return true
}

// OnOutcome does nothing
func (v *ValidationHook) OnOutcome(*dto.SettledRequest) {}

// RoleHook refuses NYM requests that assign a role code missing from its table
type RoleHook struct {
	roles request.Roles
}

// NewRoleHook creates a role hook over roles
func NewRoleHook(roles request.Roles) *RoleHook {
	return &RoleHook{roles: roles}
}

// OnDispatch checks the role code of NYM requests
func (r *RoleHook) OnDispatch(req *dto.DispatchedRequest) bool {
	if req.Type != request.NYM {
		return true
	}

	parsed, err := request.Parse(req.Body)
	if err != nil {
		log.Errorf("Request %d: %v", req.ReqID, err)
		return false
	}
	nym, ok := parsed.Operation.(*request.Nym)
	if !ok || nym.Role == "" {
		return true
	}
	if _, ok := r.roles.Name(nym.Role); !ok {
		log.Errorf("Request %d: role code %q is not configured", req.ReqID, nym.Role)
		return false
	}
	return true
}

// OnOutcome does nothing
func (r *RoleHook) OnOutcome(*dto.SettledRequest) {}

// AuditHook logs all submissions for audit purposes
type AuditHook struct {
	now func() time.Time
}

// NewAuditHook creates a new audit hook
func NewAuditHook() *AuditHook {
	return &AuditHook{now: time.Now}
}

// OnDispatch logs dispatched requests
func (a *AuditHook) OnDispatch(req *dto.DispatchedRequest) bool {
	auditMsg := fmt.Sprintf("[AUDIT] DISPATCH - ReqID: %d, Pool: %s, Type: %s, Body: %s, Time: %s",
		req.ReqID, req.Pool, req.Type, string(req.Body), a.now().Format(time.RFC3339))

	log.WithField("audit", true).Info(auditMsg)
	return true
}

// OnOutcome logs how requests settled
func (a *AuditHook) OnOutcome(res *dto.SettledRequest) {
	auditMsg := fmt.Sprintf("[AUDIT] %s - ReqID: %d, Pool: %s, Reason: %s, Time: %s",
		res.Outcome, res.ReqID, res.Pool, res.Reason, a.now().Format(time.RFC3339))

	log.WithField("audit", true).Info(auditMsg)
}
