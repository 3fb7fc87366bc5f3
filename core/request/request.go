// Package request builds canonical ledger requests.
//
// Operations are a closed set of structs. Their field declaration order is the
// wire order, so encoding/json always emits the same bytes for the same input
// and signatures computed over those bytes stay valid.
package request

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/ledgerpool/core/ledgererr"
)

// Transaction type codes.
const (
	NODE          = "0"
	NYM           = "1"
	ATTRIB        = "100"
	SCHEMA        = "101"
	CLAIM_DEF     = "102"
	GET_ATTR      = "104"
	GET_NYM       = "105"
	GET_SCHEMA    = "107"
	GET_CLAIM_DEF = "108"
)

// Operation is one of the ledger transaction kinds.
type Operation interface {
	// Type returns the transaction type code.
	Type() string
	operation()
}

// Request is a ledger request document. Field order is part of the wire contract.
type Request struct {
	ReqID      uint64    `json:"reqId"`
	Identifier string    `json:"identifier"`
	Operation  Operation `json:"operation"`
	Signature  string    `json:"signature,omitempty"`
}

// Marshal returns the wire form of the request.
func (r *Request) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// SigningBytes returns the canonical bytes a signature is computed over:
// the wire form without the signature field.
func (r *Request) SigningBytes() ([]byte, error) {
	unsigned := *r
	unsigned.Signature = ""
	return json.Marshal(&unsigned)
}

// Signed reports whether a signature is attached.
func (r *Request) Signed() bool {
	return r.Signature != ""
}

type wireRequest struct {
	ReqID      uint64          `json:"reqId"`
	Identifier string          `json:"identifier"`
	Operation  json.RawMessage `json:"operation"`
	Signature  string          `json:"signature"`
}

// Parse decodes a wire request into its typed form.
func Parse(body []byte) (*Request, error) {
	var w wireRequest
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, errors.Wrap(ledgererr.ErrInvalidStructure, err.Error())
	}
	if w.ReqID == 0 {
		return nil, ledgererr.Structuref("request has no reqId")
	}
	if len(w.Operation) == 0 {
		return nil, ledgererr.Structuref("request has no operation")
	}

	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(w.Operation, &head); err != nil {
		return nil, errors.Wrap(ledgererr.ErrInvalidStructure, err.Error())
	}

	op, err := newOperation(head.Type)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(w.Operation, op); err != nil {
		return nil, errors.Wrapf(ledgererr.ErrInvalidStructure, "operation %s: %v", head.Type, err)
	}

	return &Request{
		ReqID:      w.ReqID,
		Identifier: w.Identifier,
		Operation:  op,
		Signature:  w.Signature,
	}, nil
}

func newOperation(typ string) (Operation, error) {
	switch typ {
	case NYM:
		return &Nym{}, nil
	case GET_NYM:
		return &GetNym{}, nil
	case ATTRIB:
		return &Attrib{}, nil
	case GET_ATTR:
		return &GetAttrib{}, nil
	case SCHEMA:
		return &Schema{}, nil
	case GET_SCHEMA:
		return &GetSchema{}, nil
	case NODE:
		return &Node{}, nil
	case CLAIM_DEF:
		return &ClaimDef{}, nil
	case GET_CLAIM_DEF:
		return &GetClaimDef{}, nil
	}
	return nil, ledgererr.Structuref("unknown operation type %q", typ)
}
