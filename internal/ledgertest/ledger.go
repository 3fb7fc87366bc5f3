// Package ledgertest simulates a pool of validator nodes for tests.
//
// Every node keeps its own copy of a small identity ledger and applies writes
// independently, the way real validators do. Honest nodes therefore agree,
// while nodes switched into a faulty mode stay silent, fail, lie or reject.
package ledgertest

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/vadiminshakov/ledgerpool/core/dto"
	"github.com/vadiminshakov/ledgerpool/core/request"
	"github.com/vadiminshakov/ledgerpool/core/wallet"
)

// NymRecord is an identity on the ledger.
type NymRecord struct {
	Dest       string
	Identifier string
	Verkey     string
	Role       string
}

type schemaRecord struct {
	data  json.RawMessage
	seqNo uint64
}

type ledger struct {
	mu        sync.Mutex
	seqNo     uint64
	nyms      map[string]NymRecord
	attribs   map[string]map[string]string
	schemas   map[string]schemaRecord
	nodes     map[string]request.NodeData
	claimDefs map[string]string
}

func newLedger(genesis []NymRecord) *ledger {
	l := &ledger{
		nyms:      make(map[string]NymRecord),
		attribs:   make(map[string]map[string]string),
		schemas:   make(map[string]schemaRecord),
		nodes:     make(map[string]request.NodeData),
		claimDefs: make(map[string]string),
	}
	for _, nym := range genesis {
		l.seqNo++
		l.nyms[nym.Dest] = nym
	}
	return l
}

type rejection struct {
	op     string
	reason string
}

func reject(format string, args ...interface{}) *rejection {
	return &rejection{op: dto.OpReject, reason: "client request invalid: " + fmt.Sprintf(format, args...)}
}

func nack(format string, args ...interface{}) *rejection {
	return &rejection{op: dto.OpReqNack, reason: fmt.Sprintf(format, args...)}
}

// process applies one wire request and returns the node's reply document.
func (l *ledger) process(body []byte) []byte {
	req, err := request.Parse(body)
	if err != nil {
		return encode(dto.Reply{Op: dto.OpReqNack, Reason: err.Error()})
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	result, rej := l.apply(req, body)
	if rej != nil {
		return encode(dto.Reply{Op: rej.op, Reason: rej.reason, ReqID: req.ReqID, Identifier: req.Identifier})
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return encode(dto.Reply{Op: dto.OpReqNack, Reason: err.Error(), ReqID: req.ReqID})
	}
	return encode(dto.Reply{Op: dto.OpReply, Result: raw})
}

func (l *ledger) apply(req *request.Request, body []byte) (interface{}, *rejection) {
	switch op := req.Operation.(type) {
	case *request.GetNym:
		return l.getNym(req, op), nil
	case *request.GetAttrib:
		return l.getAttrib(req, op), nil
	case *request.GetSchema:
		return l.getSchema(req, op), nil
	case *request.GetClaimDef:
		return l.getClaimDef(req, op), nil
	}

	signer, rej := l.authenticate(req)
	if rej != nil {
		return nil, rej
	}

	switch op := req.Operation.(type) {
	case *request.Nym:
		return l.nym(req, signer, op)
	case *request.Attrib:
		return l.attrib(req, signer, op)
	case *request.Schema:
		return l.schema(req, signer, op)
	case *request.Node:
		return l.node(req, signer, op)
	case *request.ClaimDef:
		return l.claimDef(req, signer, op)
	}
	return nil, nack("unsupported operation %s", req.Operation.Type())
}

func (l *ledger) authenticate(req *request.Request) (NymRecord, *rejection) {
	if !req.Signed() {
		return NymRecord{}, reject("MissingSignature()")
	}
	signer, ok := l.nyms[req.Identifier]
	if !ok || signer.Verkey == "" {
		return NymRecord{}, reject("CouldNotAuthenticate('Can not find verkey for %s')", req.Identifier)
	}
	msg, err := req.SigningBytes()
	if err != nil {
		return NymRecord{}, nack("%v", err)
	}
	if err := wallet.Verify(signer.Verkey, msg, req.Signature); err != nil {
		return NymRecord{}, reject("InsufficientCorrectSignatures(0, 1)")
	}
	return signer, nil
}

type writeResult struct {
	Type       string `json:"type"`
	ReqID      uint64 `json:"reqId"`
	Identifier string `json:"identifier"`
	SeqNo      uint64 `json:"seqNo"`
}

func (l *ledger) written(req *request.Request) writeResult {
	l.seqNo++
	return writeResult{Type: req.Operation.Type(), ReqID: req.ReqID, Identifier: req.Identifier, SeqNo: l.seqNo}
}

func (l *ledger) nym(req *request.Request, signer NymRecord, op *request.Nym) (interface{}, *rejection) {
	existing, exists := l.nyms[op.Dest]
	switch {
	case exists && req.Identifier != existing.Dest && req.Identifier != existing.Identifier:
		return nil, reject("UnauthorizedClientRequest('%s is neither the owner nor the creator of %s')", req.Identifier, op.Dest)
	case !exists && signer.Role != request.TRUSTEE && signer.Role != request.STEWARD && signer.Role != request.TRUST_ANCHOR:
		return nil, reject("UnauthorizedClientRequest('%s has no role to create identities')", req.Identifier)
	case (op.Role == request.TRUSTEE || op.Role == request.STEWARD) && signer.Role != request.TRUSTEE:
		return nil, reject("UnauthorizedClientRequest('only a trustee can grant role %s')", op.Role)
	}

	rec := NymRecord{Dest: op.Dest, Identifier: req.Identifier, Verkey: op.Verkey, Role: op.Role}
	if exists {
		rec.Identifier = existing.Identifier
		if op.Verkey == "" {
			rec.Verkey = existing.Verkey
		}
		if op.Role == "" {
			rec.Role = existing.Role
		}
	}
	l.nyms[op.Dest] = rec

	return struct {
		writeResult
		Dest string `json:"dest"`
	}{l.written(req), op.Dest}, nil
}

type nymData struct {
	Dest       string  `json:"dest"`
	Identifier string  `json:"identifier"`
	Role       *string `json:"role"`
	Verkey     *string `json:"verkey"`
}

type readResult struct {
	Type       string      `json:"type"`
	ReqID      uint64      `json:"reqId"`
	Identifier string      `json:"identifier"`
	Dest       string      `json:"dest,omitempty"`
	Data       interface{} `json:"data"`
}

func (l *ledger) getNym(req *request.Request, op *request.GetNym) interface{} {
	res := readResult{Type: request.GET_NYM, ReqID: req.ReqID, Identifier: req.Identifier, Dest: op.Dest}
	rec, ok := l.nyms[op.Dest]
	if !ok {
		return res
	}

	data := nymData{Dest: rec.Dest, Identifier: rec.Identifier}
	if rec.Role != "" {
		data.Role = &rec.Role
	}
	if rec.Verkey != "" {
		data.Verkey = &rec.Verkey
	}
	encoded, _ := json.Marshal(data)
	res.Data = string(encoded)
	return res
}

func (l *ledger) attrib(req *request.Request, signer NymRecord, op *request.Attrib) (interface{}, *rejection) {
	target, ok := l.nyms[op.Dest]
	if !ok {
		return nil, reject("dest %s is not on the ledger", op.Dest)
	}
	if signer.Dest != target.Dest && signer.Dest != target.Identifier {
		return nil, reject("UnauthorizedClientRequest('only the owner or creator of %s can add attributes')", op.Dest)
	}

	attrs := l.attribs[op.Dest]
	if attrs == nil {
		attrs = make(map[string]string)
		l.attribs[op.Dest] = attrs
	}
	switch {
	case op.Raw != "":
		var fields map[string]json.RawMessage
		if err := json.Unmarshal([]byte(op.Raw), &fields); err != nil || len(fields) != 1 {
			return nil, reject("raw attribute must be an object with one field")
		}
		for name := range fields {
			attrs[name] = op.Raw
		}
	case op.Hash != "":
		attrs["hash:"+op.Hash] = op.Hash
	default:
		attrs["enc:"+op.Enc] = op.Enc
	}

	return struct {
		writeResult
		Dest string `json:"dest"`
	}{l.written(req), op.Dest}, nil
}

func (l *ledger) getAttrib(req *request.Request, op *request.GetAttrib) interface{} {
	res := struct {
		readResult
		Raw string `json:"raw"`
	}{readResult{Type: request.GET_ATTR, ReqID: req.ReqID, Identifier: req.Identifier, Dest: op.Dest}, op.Raw}

	if raw, ok := l.attribs[op.Dest][op.Raw]; ok {
		res.Data = raw
	}
	return res
}

func schemaID(dest, name, version string) string {
	return strings.Join([]string{dest, name, version}, ":")
}

func (l *ledger) schema(req *request.Request, signer NymRecord, op *request.Schema) (interface{}, *rejection) {
	if signer.Role == "" || signer.Role == request.NETWORK_MONITOR {
		return nil, reject("UnauthorizedClientRequest('%s cannot publish schemas')", req.Identifier)
	}

	var key request.SchemaKey
	if err := json.Unmarshal([]byte(op.Data), &key); err != nil {
		return nil, nack("schema data: %v", err)
	}
	id := schemaID(req.Identifier, key.Name, key.Version)
	if _, ok := l.schemas[id]; ok {
		return nil, reject("schema %s already exists", id)
	}

	res := l.written(req)
	l.schemas[id] = schemaRecord{data: json.RawMessage(op.Data), seqNo: res.SeqNo}
	return res, nil
}

func (l *ledger) getSchema(req *request.Request, op *request.GetSchema) interface{} {
	res := struct {
		readResult
		SeqNo uint64 `json:"seqNo,omitempty"`
	}{readResult: readResult{Type: request.GET_SCHEMA, ReqID: req.ReqID, Identifier: req.Identifier, Dest: op.Dest}}

	if rec, ok := l.schemas[schemaID(op.Dest, op.Data.Name, op.Data.Version)]; ok {
		res.Data = rec.data
		res.SeqNo = rec.seqNo
	}
	return res
}

func (l *ledger) node(req *request.Request, signer NymRecord, op *request.Node) (interface{}, *rejection) {
	if signer.Role != request.STEWARD {
		return nil, reject("UnauthorizedClientRequest('%s is not a steward')", req.Identifier)
	}
	for dest, data := range l.nodes {
		if dest != op.Dest && data.Alias == op.Data.Alias {
			return nil, reject("node alias %s is taken", op.Data.Alias)
		}
	}
	l.nodes[op.Dest] = op.Data

	return struct {
		writeResult
		Dest string `json:"dest"`
	}{l.written(req), op.Dest}, nil
}

func claimDefID(origin string, ref int, signatureType string) string {
	return fmt.Sprintf("%s:%d:%s", origin, ref, signatureType)
}

func (l *ledger) claimDef(req *request.Request, signer NymRecord, op *request.ClaimDef) (interface{}, *rejection) {
	if signer.Role == "" || signer.Role == request.NETWORK_MONITOR {
		return nil, reject("UnauthorizedClientRequest('%s cannot publish claim definitions')", req.Identifier)
	}
	id := claimDefID(req.Identifier, op.Ref, op.SignatureType)
	if _, ok := l.claimDefs[id]; ok {
		return nil, reject("claim definition %s already exists", id)
	}
	l.claimDefs[id] = op.Data

	return struct {
		writeResult
		Ref int `json:"ref"`
	}{l.written(req), op.Ref}, nil
}

func (l *ledger) getClaimDef(req *request.Request, op *request.GetClaimDef) interface{} {
	res := struct {
		Type          string      `json:"type"`
		ReqID         uint64      `json:"reqId"`
		Identifier    string      `json:"identifier"`
		Ref           int         `json:"ref"`
		SignatureType string      `json:"signature_type"`
		Origin        string      `json:"origin"`
		Data          interface{} `json:"data"`
	}{
		Type:          request.GET_CLAIM_DEF,
		ReqID:         req.ReqID,
		Identifier:    req.Identifier,
		Ref:           op.Ref,
		SignatureType: op.SignatureType,
		Origin:        op.Origin,
	}
	if data, ok := l.claimDefs[claimDefID(op.Origin, op.Ref, op.SignatureType)]; ok {
		res.Data = json.RawMessage(data)
	}
	return res
}

func encode(r dto.Reply) []byte {
	b, _ := json.Marshal(r)
	return b
}
