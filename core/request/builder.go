package request

import (
	"bytes"
	"encoding/json"

	"github.com/vadiminshakov/ledgerpool/core/ledgererr"
)

// ServiceValidator is the only service a node may declare.
const ServiceValidator = "VALIDATOR"

var allowedServices = map[string]struct{}{
	ServiceValidator: {},
}

// Builder validates transaction parameters and produces canonical requests.
// It performs no network or cryptographic work.
type Builder struct {
	roles Roles
	ids   *IDGenerator
}

type Option func(b *Builder)

// WithRoles replaces the NYM role table.
func WithRoles(roles Roles) Option {
	return func(b *Builder) {
		b.roles = roles
	}
}

// WithIDGenerator shares a request id generator between builders.
func WithIDGenerator(ids *IDGenerator) Option {
	return func(b *Builder) {
		b.ids = ids
	}
}

// NewBuilder creates a builder with the default role table.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		roles: DefaultRoles(),
		ids:   NewIDGenerator(),
	}
	for _, opt := range opts {
		opt(b)
	}

	return b
}

// IDs returns the request id generator used by the builder.
func (b *Builder) IDs() *IDGenerator {
	return b.ids
}

func (b *Builder) newRequest(identifier string, op Operation) *Request {
	return &Request{
		ReqID:      b.ids.Next(),
		Identifier: identifier,
		Operation:  op,
	}
}

// BuildNym builds a NYM request. verkey, alias and role are optional; role is a
// role name from the builder's table.
func (b *Builder) BuildNym(identifier, dest, verkey, alias, role string) (*Request, error) {
	if err := required("nym", "identifier", identifier, "dest", dest); err != nil {
		return nil, err
	}

	op := &Nym{TxnType: NYM, Dest: dest, Verkey: verkey, Alias: alias}
	if role != "" {
		code, ok := b.roles.Code(role)
		if !ok {
			return nil, ledgererr.Structuref("nym: unknown role %q", role)
		}
		op.Role = code
	}

	return b.newRequest(identifier, op), nil
}

// BuildGetNym builds a GET_NYM request.
func (b *Builder) BuildGetNym(identifier, dest string) (*Request, error) {
	if err := required("get_nym", "identifier", identifier, "dest", dest); err != nil {
		return nil, err
	}

	return b.newRequest(identifier, &GetNym{TxnType: GET_NYM, Dest: dest}), nil
}

// BuildAttrib builds an ATTRIB request. Exactly one of hash, raw and enc must be
// set; raw must be a JSON document and is stored in compact form.
func (b *Builder) BuildAttrib(identifier, dest, hash, raw, enc string) (*Request, error) {
	if err := required("attrib", "identifier", identifier, "dest", dest); err != nil {
		return nil, err
	}

	set := 0
	for _, v := range []string{hash, raw, enc} {
		if v != "" {
			set++
		}
	}
	if set == 0 {
		return nil, ledgererr.Structuref("attrib: one of raw, hash or enc is required")
	}
	if set > 1 {
		return nil, ledgererr.Structuref("attrib: only one of raw, hash or enc may be set")
	}

	op := &Attrib{TxnType: ATTRIB, Dest: dest, Hash: hash, Enc: enc}
	if raw != "" {
		var compact bytes.Buffer
		if err := json.Compact(&compact, []byte(raw)); err != nil {
			return nil, ledgererr.Structuref("attrib: raw is not valid json: %v", err)
		}
		op.Raw = compact.String()
	}

	return b.newRequest(identifier, op), nil
}

// BuildGetAttrib builds a GET_ATTRIB request for the raw attribute name.
func (b *Builder) BuildGetAttrib(identifier, dest, raw string) (*Request, error) {
	if err := required("get_attrib", "identifier", identifier, "dest", dest, "raw", raw); err != nil {
		return nil, err
	}

	return b.newRequest(identifier, &GetAttrib{TxnType: GET_ATTR, Dest: dest, Raw: raw}), nil
}

// BuildSchema builds a SCHEMA request. data must hold name, version and a set
// of string keys; it is sent as supplied.
func (b *Builder) BuildSchema(identifier, data string) (*Request, error) {
	if err := required("schema", "identifier", identifier, "data", data); err != nil {
		return nil, err
	}

	var schema struct {
		Name    *string          `json:"name"`
		Version *string          `json:"version"`
		Keys    *json.RawMessage `json:"keys"`
	}
	if err := json.Unmarshal([]byte(data), &schema); err != nil {
		return nil, ledgererr.Structuref("schema: invalid data: %v", err)
	}
	if schema.Name == nil || schema.Version == nil || schema.Keys == nil {
		return nil, ledgererr.Structuref("schema: data requires name, version and keys")
	}

	var keys []string
	if err := json.Unmarshal(*schema.Keys, &keys); err != nil {
		return nil, ledgererr.Structuref("schema: keys must be a set of strings")
	}
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			return nil, ledgererr.Structuref("schema: duplicate key %q", k)
		}
		seen[k] = struct{}{}
	}

	return b.newRequest(identifier, &Schema{TxnType: SCHEMA, Data: data}), nil
}

// BuildGetSchema builds a GET_SCHEMA request. data must hold name and version.
func (b *Builder) BuildGetSchema(identifier, dest, data string) (*Request, error) {
	if err := required("get_schema", "identifier", identifier, "dest", dest, "data", data); err != nil {
		return nil, err
	}

	var key struct {
		Name    *string `json:"name"`
		Version *string `json:"version"`
	}
	if err := json.Unmarshal([]byte(data), &key); err != nil {
		return nil, ledgererr.Structuref("get_schema: invalid data: %v", err)
	}
	if key.Name == nil || key.Version == nil {
		return nil, ledgererr.Structuref("get_schema: data requires name and version")
	}

	op := &GetSchema{
		TxnType: GET_SCHEMA,
		Dest:    dest,
		Data:    SchemaKey{Name: *key.Name, Version: *key.Version},
	}
	return b.newRequest(identifier, op), nil
}

// BuildNode builds a NODE request. Every node data field is required and the
// only allowed service is VALIDATOR.
func (b *Builder) BuildNode(identifier, dest, data string) (*Request, error) {
	if err := required("node", "identifier", identifier, "dest", dest, "data", data); err != nil {
		return nil, err
	}

	var in struct {
		NodeIP     *string   `json:"node_ip"`
		NodePort   *int      `json:"node_port"`
		ClientIP   *string   `json:"client_ip"`
		ClientPort *int      `json:"client_port"`
		Alias      *string   `json:"alias"`
		Services   *[]string `json:"services"`
	}
	if err := json.Unmarshal([]byte(data), &in); err != nil {
		return nil, ledgererr.Structuref("node: invalid data: %v", err)
	}
	if in.NodeIP == nil || in.NodePort == nil || in.ClientIP == nil || in.ClientPort == nil ||
		in.Alias == nil || in.Services == nil {
		return nil, ledgererr.Structuref("node: data requires node_ip, node_port, client_ip, client_port, alias and services")
	}
	for _, s := range *in.Services {
		if _, ok := allowedServices[s]; !ok {
			return nil, ledgererr.Structuref("node: unsupported service %q", s)
		}
	}

	op := &Node{
		TxnType: NODE,
		Dest:    dest,
		Data: NodeData{
			NodeIP:     *in.NodeIP,
			NodePort:   *in.NodePort,
			ClientIP:   *in.ClientIP,
			ClientPort: *in.ClientPort,
			Alias:      *in.Alias,
			Services:   *in.Services,
		},
	}
	return b.newRequest(identifier, op), nil
}

// primaryKey is the CL public key shape a claim definition must carry.
type primaryKey struct {
	N     *string           `json:"n"`
	S     *string           `json:"s"`
	Rms   *string           `json:"rms"`
	R     map[string]string `json:"r"`
	Rctxt *string           `json:"rctxt"`
	Z     *string           `json:"z"`
}

// BuildClaimDef builds a CLAIM_DEF request for schema sequence number ref.
// data must be {"primary": {n, s, rms, r, rctxt, z}[, "revocation": ...]}.
func (b *Builder) BuildClaimDef(identifier string, ref int, signatureType, data string) (*Request, error) {
	if err := required("claim_def", "identifier", identifier, "signature_type", signatureType, "data", data); err != nil {
		return nil, err
	}
	if ref <= 0 {
		return nil, ledgererr.Structuref("claim_def: ref must be a schema sequence number")
	}

	var def struct {
		Primary    *primaryKey     `json:"primary"`
		Revocation json.RawMessage `json:"revocation"`
	}
	if err := json.Unmarshal([]byte(data), &def); err != nil {
		return nil, ledgererr.Structuref("claim_def: invalid data: %v", err)
	}
	p := def.Primary
	if p == nil || p.N == nil || p.S == nil || p.Rms == nil || p.R == nil || p.Rctxt == nil || p.Z == nil {
		return nil, ledgererr.Structuref("claim_def: primary key requires n, s, rms, r, rctxt and z")
	}
	if len(def.Revocation) > 0 && !bytes.Equal(def.Revocation, []byte("null")) {
		var revocation map[string]interface{}
		if err := json.Unmarshal(def.Revocation, &revocation); err != nil {
			return nil, ledgererr.Structuref("claim_def: revocation key must be an object")
		}
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, []byte(data)); err != nil {
		return nil, ledgererr.Structuref("claim_def: invalid data: %v", err)
	}

	op := &ClaimDef{Ref: ref, Data: compact.String(), TxnType: CLAIM_DEF, SignatureType: signatureType}
	return b.newRequest(identifier, op), nil
}

// BuildGetClaimDef builds a GET_CLAIM_DEF request.
func (b *Builder) BuildGetClaimDef(identifier string, ref int, signatureType, origin string) (*Request, error) {
	if err := required("get_claim_def", "identifier", identifier, "signature_type", signatureType, "origin", origin); err != nil {
		return nil, err
	}
	if ref <= 0 {
		return nil, ledgererr.Structuref("get_claim_def: ref must be a schema sequence number")
	}

	op := &GetClaimDef{TxnType: GET_CLAIM_DEF, Ref: ref, SignatureType: signatureType, Origin: origin}
	return b.newRequest(identifier, op), nil
}

// required checks name/value pairs for empty values.
func required(kind string, pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			return ledgererr.Structuref("%s: %s is required", kind, pairs[i])
		}
	}
	return nil
}
