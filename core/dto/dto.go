// Package dto provides the data transfer objects exchanged with validator nodes.
//
// This package defines the reply documents nodes send back for a request and
// the outcome the client resolves them into.
package dto

import (
	"encoding/json"
)

// Reply ops sent by nodes.
const (
	OpReply   = "REPLY"
	OpReqAck  = "REQACK"
	OpReqNack = "REQNACK"
	OpReject  = "REJECT"
)

// Reply is a node reply document.
type Reply struct {
	Op         string          `json:"op"`
	Result     json.RawMessage `json:"result,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	ReqID      uint64          `json:"reqId,omitempty"`
	Identifier string          `json:"identifier,omitempty"`
}

// IsRejection reports whether the reply is a REQNACK or REJECT.
func (r *Reply) IsRejection() bool {
	return r.Op == OpReqNack || r.Op == OpReject
}

// IsAck reports whether the reply only acknowledges receipt.
func (r *Reply) IsAck() bool {
	return r.Op == OpReqAck
}

// CorrelationID returns the reqId the reply refers to, looking at the top level
// first and at the result second. ok is false if the reply carries none.
func (r *Reply) CorrelationID() (id uint64, ok bool) {
	if r.ReqID != 0 {
		return r.ReqID, true
	}
	if len(r.Result) == 0 {
		return 0, false
	}

	var res struct {
		ReqID *uint64 `json:"reqId"`
	}
	if err := json.Unmarshal(r.Result, &res); err != nil || res.ReqID == nil {
		return 0, false
	}
	return *res.ReqID, true
}

// ResultField decodes one field of the result into v.
func (r *Reply) ResultField(name string, v interface{}) error {
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(r.Result, &fields); err != nil {
		return err
	}
	raw, ok := fields[name]
	if !ok {
		raw = []byte("null")
	}
	return json.Unmarshal(raw, v)
}

// OutcomeType represents how a request settled.
type OutcomeType int32

const (
	// OutcomeResolved indicates a quorum agreed on a reply.
	OutcomeResolved OutcomeType = iota
	// OutcomeRejected indicates a quorum rejected the request.
	OutcomeRejected
	// OutcomeTimedOut indicates no quorum formed.
	OutcomeTimedOut
)

func (t OutcomeType) String() string {
	switch t {
	case OutcomeResolved:
		return "resolved"
	case OutcomeRejected:
		return "rejected"
	case OutcomeTimedOut:
		return "timed_out"
	}
	return "unknown"
}

// SettledRequest is the record of one request's outcome.
type SettledRequest struct {
	ReqID   uint64      `json:"reqId"`
	Pool    string      `json:"pool"`
	Outcome OutcomeType `json:"outcome"`
	Reply   []byte      `json:"reply,omitempty"`
	Reason  string      `json:"reason,omitempty"`
}

// DispatchedRequest is a request about to be sent to a pool's nodes.
type DispatchedRequest struct {
	ReqID uint64 `json:"reqId"`
	Pool  string `json:"pool"`
	Type  string `json:"type"`
	Body  []byte `json:"body"`
}
