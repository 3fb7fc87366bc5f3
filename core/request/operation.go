package request

// Nym registers or updates an identity.
type Nym struct {
	TxnType string `json:"type"`
	Dest    string `json:"dest"`
	Verkey  string `json:"verkey,omitempty"`
	Alias   string `json:"alias,omitempty"`
	Role    string `json:"role,omitempty"`
}

// GetNym reads an identity.
type GetNym struct {
	TxnType string `json:"type"`
	Dest    string `json:"dest"`
}

// Attrib attaches an attribute to an identity. Exactly one of Raw, Hash and Enc is set.
type Attrib struct {
	TxnType string `json:"type"`
	Dest    string `json:"dest"`
	Hash    string `json:"hash,omitempty"`
	Raw     string `json:"raw,omitempty"`
	Enc     string `json:"enc,omitempty"`
}

// GetAttrib reads a named raw attribute.
type GetAttrib struct {
	TxnType string `json:"type"`
	Dest    string `json:"dest"`
	Raw     string `json:"raw"`
}

// Schema publishes a schema. Data is the schema JSON document as supplied.
type Schema struct {
	TxnType string `json:"type"`
	Data    string `json:"data"`
}

// SchemaKey identifies a schema by name and version.
type SchemaKey struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// GetSchema reads a schema published by Dest.
type GetSchema struct {
	TxnType string    `json:"type"`
	Dest    string    `json:"dest"`
	Data    SchemaKey `json:"data"`
}

// NodeData describes a validator node.
type NodeData struct {
	NodeIP     string   `json:"node_ip"`
	NodePort   int      `json:"node_port"`
	ClientIP   string   `json:"client_ip"`
	ClientPort int      `json:"client_port"`
	Alias      string   `json:"alias"`
	Services   []string `json:"services"`
}

// Node registers or updates a validator node.
type Node struct {
	TxnType string   `json:"type"`
	Dest    string   `json:"dest"`
	Data    NodeData `json:"data"`
}

// ClaimDef publishes a claim definition for schema Ref.
type ClaimDef struct {
	Ref           int    `json:"ref"`
	Data          string `json:"data"`
	TxnType       string `json:"type"`
	SignatureType string `json:"signature_type"`
}

// GetClaimDef reads the claim definition Origin published for schema Ref.
type GetClaimDef struct {
	TxnType       string `json:"type"`
	Ref           int    `json:"ref"`
	SignatureType string `json:"signature_type"`
	Origin        string `json:"origin"`
}

func (o *Nym) Type() string         { return NYM }
func (o *GetNym) Type() string      { return GET_NYM }
func (o *Attrib) Type() string      { return ATTRIB }
func (o *GetAttrib) Type() string   { return GET_ATTR }
func (o *Schema) Type() string      { return SCHEMA }
func (o *GetSchema) Type() string   { return GET_SCHEMA }
func (o *Node) Type() string        { return NODE }
func (o *ClaimDef) Type() string    { return CLAIM_DEF }
func (o *GetClaimDef) Type() string { return GET_CLAIM_DEF }

func (*Nym) operation()         {}
func (*GetNym) operation()      {}
func (*Attrib) operation()      {}
func (*GetAttrib) operation()   {}
func (*Schema) operation()      {}
func (*GetSchema) operation()   {}
func (*Node) operation()        {}
func (*ClaimDef) operation()    {}
func (*GetClaimDef) operation() {}
