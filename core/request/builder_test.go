package request

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/ledgerpool/core/ledgererr"
)

const (
	testIdentifier = "Th7MpTaRZVRYnPiabds81Y"
	testDest       = "FYmoFw55GeQH7SRFa37dkx1d2dZ3zUF8ckg7wmL7ofN4"
)

func marshal(t *testing.T, req *Request) string {
	t.Helper()
	b, err := req.Marshal()
	require.NoError(t, err)
	return string(b)
}

func requireStructural(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	require.True(t, errors.Is(err, ledgererr.ErrInvalidStructure), "expected structural error, got %v", err)
}

func TestBuildNym_RequiredFieldsOnly(t *testing.T) {
	b := NewBuilder()

	req, err := b.BuildNym(testIdentifier, testDest, "", "", "")
	require.NoError(t, err)

	expected := fmt.Sprintf(`"identifier":"%s","operation":{"type":"1","dest":"%s"}`, testIdentifier, testDest)
	require.Contains(t, marshal(t, req), expected)
}

func TestBuildNym_OptionalFields(t *testing.T) {
	b := NewBuilder()

	req, err := b.BuildNym(testIdentifier, testDest, "Anfh2rjAcxkE249DcdsaQl", "some_alias", "STEWARD")
	require.NoError(t, err)

	expected := fmt.Sprintf(`"identifier":"%s","operation":{"type":"1","dest":"%s","verkey":"Anfh2rjAcxkE249DcdsaQl","alias":"some_alias","role":"2"}`,
		testIdentifier, testDest)
	require.Contains(t, marshal(t, req), expected)
}

func TestBuildNym_WrongRole(t *testing.T) {
	_, err := NewBuilder().BuildNym(testIdentifier, testDest, "", "", "WRONG_ROLE")
	requireStructural(t, err)
}

func TestBuildNym_ConfiguredRoles(t *testing.T) {
	b := NewBuilder(WithRoles(Roles{"AUDITOR": "42"}))

	req, err := b.BuildNym(testIdentifier, testDest, "", "", "AUDITOR")
	require.NoError(t, err)
	require.Contains(t, marshal(t, req), `"role":"42"`)

	_, err = b.BuildNym(testIdentifier, testDest, "", "", "STEWARD")
	requireStructural(t, err)
}

func TestBuildNym_MissingDest(t *testing.T) {
	_, err := NewBuilder().BuildNym(testIdentifier, "", "", "", "")
	requireStructural(t, err)
}

func TestBuildGetNym(t *testing.T) {
	req, err := NewBuilder().BuildGetNym(testIdentifier, testDest)
	require.NoError(t, err)

	expected := fmt.Sprintf(`"identifier":"%s","operation":{"type":"105","dest":"%s"}`, testIdentifier, testDest)
	require.Contains(t, marshal(t, req), expected)
}

func TestBuildAttrib_RawData(t *testing.T) {
	raw := `{"endpoint":{"ha":"127.0.0.1:5555"}}`

	req, err := NewBuilder().BuildAttrib(testIdentifier, testIdentifier, "", raw, "")
	require.NoError(t, err)

	expected := fmt.Sprintf(`"identifier":"%s","operation":{"type":"100","dest":"%s","raw":"{\"endpoint\":{\"ha\":\"127.0.0.1:5555\"}}"}`,
		testIdentifier, testIdentifier)
	require.Contains(t, marshal(t, req), expected)
}

func TestBuildAttrib_RawIsCompacted(t *testing.T) {
	raw := "{ \"endpoint\" : { \"ha\" : \"127.0.0.1:5555\" } }"

	req, err := NewBuilder().BuildAttrib(testIdentifier, testIdentifier, "", raw, "")
	require.NoError(t, err)
	require.Equal(t, `{"endpoint":{"ha":"127.0.0.1:5555"}}`, req.Operation.(*Attrib).Raw)
}

func TestBuildAttrib_MissedAttribute(t *testing.T) {
	_, err := NewBuilder().BuildAttrib(testIdentifier, testIdentifier, "", "", "")
	requireStructural(t, err)
}

func TestBuildAttrib_ExactlyOne(t *testing.T) {
	b := NewBuilder()

	req, err := b.BuildAttrib(testIdentifier, testIdentifier, "83d907821df1c87db829e96569a11f6fc2e7880acba5e43d07ab786959e13bd3", "", "")
	require.NoError(t, err)
	require.Contains(t, marshal(t, req), `"hash":"83d907821df1c87db829e96569a11f6fc2e7880acba5e43d07ab786959e13bd3"`)

	req, err = b.BuildAttrib(testIdentifier, testIdentifier, "", "", "encrypted")
	require.NoError(t, err)
	require.Contains(t, marshal(t, req), `"enc":"encrypted"`)

	_, err = b.BuildAttrib(testIdentifier, testIdentifier, "hash", `{"a":1}`, "")
	requireStructural(t, err)
}

func TestBuildAttrib_RawNotJSON(t *testing.T) {
	_, err := NewBuilder().BuildAttrib(testIdentifier, testIdentifier, "", "not json", "")
	requireStructural(t, err)
}

func TestBuildGetAttrib(t *testing.T) {
	req, err := NewBuilder().BuildGetAttrib(testIdentifier, testIdentifier, "endpoint")
	require.NoError(t, err)

	expected := fmt.Sprintf(`"identifier":"%s","operation":{"type":"104","dest":"%s","raw":"endpoint"}`, testIdentifier, testIdentifier)
	require.Contains(t, marshal(t, req), expected)
}

func TestBuildSchema_CorrectData(t *testing.T) {
	data := `{"name":"name", "version":"1.0", "keys":["name","male"]}`

	req, err := NewBuilder().BuildSchema("some_identifier", data)
	require.NoError(t, err)

	expected := `"operation":{"type":"101","data":"{\"name\":\"name\", \"version\":\"1.0\", \"keys\":[\"name\",\"male\"]}"}`
	require.Contains(t, marshal(t, req), expected)
}

func TestBuildSchema_InvalidData(t *testing.T) {
	b := NewBuilder()
	for name, data := range map[string]string{
		"missed version and keys": `{"name":"name"}`,
		"keys not a set":          `{"name":"name", "keys":"name"}`,
		"keys not strings":        `{"name":"name", "version":"1.0", "keys":[1, 2]}`,
		"duplicate keys":          `{"name":"name", "version":"1.0", "keys":["a", "a"]}`,
		"missed keys":             `{"name":"name", "version":"1.0"}`,
		"not json":                `name`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := b.BuildSchema("some_identifier", data)
			requireStructural(t, err)
		})
	}
}

func TestBuildGetSchema(t *testing.T) {
	req, err := NewBuilder().BuildGetSchema("some_identifier", "some_identifier", `{"name":"name","version":"1.0"}`)
	require.NoError(t, err)

	expected := `"identifier":"some_identifier","operation":{"type":"107","dest":"some_identifier","data":{"name":"name","version":"1.0"}}`
	require.Contains(t, marshal(t, req), expected)
}

func TestBuildGetSchema_InvalidData(t *testing.T) {
	_, err := NewBuilder().BuildGetSchema("some_identifier", "some_identifier", `{"name":"name"}`)
	requireStructural(t, err)
}

func TestBuildNode_CorrectData(t *testing.T) {
	data := `{"node_ip":"ip", "node_port": 1, "client_ip": "ip", "client_port": 1, "alias":"some", "services": ["VALIDATOR"]}`

	req, err := NewBuilder().BuildNode("some_identifier", "some_dest", data)
	require.NoError(t, err)

	expected := `"identifier":"some_identifier","operation":{"type":"0","dest":"some_dest","data":{"node_ip":"ip","node_port":1,"client_ip":"ip","client_port":1,"alias":"some","services":["VALIDATOR"]}}`
	require.Contains(t, marshal(t, req), expected)
}

func TestBuildNode_MissedField(t *testing.T) {
	data := `{"node_ip":"ip", "node_port": 1, "client_ip": "ip", "client_port": 1}`

	_, err := NewBuilder().BuildNode("some_identifier", "some_dest", data)
	requireStructural(t, err)
}

func TestBuildNode_WrongService(t *testing.T) {
	data := `{"node_ip":"ip", "node_port": 1, "client_ip": "ip", "client_port": 1, "alias":"some", "services": ["SERVICE"]}`

	_, err := NewBuilder().BuildNode("some_identifier", "some_dest", data)
	requireStructural(t, err)
}

func TestBuildNode_PortNotNumber(t *testing.T) {
	data := `{"node_ip":"ip", "node_port": "1", "client_ip": "ip", "client_port": 1, "alias":"some", "services": ["VALIDATOR"]}`

	_, err := NewBuilder().BuildNode("some_identifier", "some_dest", data)
	requireStructural(t, err)
}

func TestBuildClaimDef_CorrectData(t *testing.T) {
	data := `{"primary":{"n":"1","s":"2","rms":"3","r":{"name":"1"},"rctxt":"1","z":"1"}}`

	req, err := NewBuilder().BuildClaimDef("some_identifier", 1, "CL", data)
	require.NoError(t, err)

	expected := `"identifier":"some_identifier","operation":{"ref":1,"data":"{\"primary\":{\"n\":\"1\",\"s\":\"2\",\"rms\":\"3\",\"r\":{\"name\":\"1\"},\"rctxt\":\"1\",\"z\":\"1\"}}","type":"102","signature_type":"CL"`
	require.Contains(t, marshal(t, req), expected)
}

func TestBuildClaimDef_InvalidData(t *testing.T) {
	b := NewBuilder()

	_, err := b.BuildClaimDef("some_identifier", 1, "CL", `{"primary":{"n":"1","s":"2","rms":"3","r":{"name":"1"}}}`)
	requireStructural(t, err)

	_, err = b.BuildClaimDef("some_identifier", 1, "CL", `{"primary":{"n":"1","s":"2","rms":"3","r":{"name":"1"},"rctxt":"1","z":"1"},"revocation":"x"}`)
	requireStructural(t, err)

	_, err = b.BuildClaimDef("some_identifier", 0, "CL", `{"primary":{"n":"1","s":"2","rms":"3","r":{"name":"1"},"rctxt":"1","z":"1"}}`)
	requireStructural(t, err)
}

func TestBuildGetClaimDef(t *testing.T) {
	req, err := NewBuilder().BuildGetClaimDef("some_identifier", 1, "signature_type", "some_origin")
	require.NoError(t, err)

	expected := `"identifier":"some_identifier","operation":{"type":"108","ref":1,"signature_type":"signature_type","origin":"some_origin"}`
	require.Contains(t, marshal(t, req), expected)
}

func TestBuild_SameInputDiffersOnlyInReqID(t *testing.T) {
	b := NewBuilder()

	first, err := b.BuildNym(testIdentifier, testDest, "verkey", "alias", "STEWARD")
	require.NoError(t, err)
	second, err := b.BuildNym(testIdentifier, testDest, "verkey", "alias", "STEWARD")
	require.NoError(t, err)

	require.NotEqual(t, first.ReqID, second.ReqID)

	second.ReqID = first.ReqID
	require.Equal(t, marshal(t, first), marshal(t, second))
}

func TestRequest_WireOrder(t *testing.T) {
	b := NewBuilder()
	req, err := b.BuildGetNym(testIdentifier, testDest)
	require.NoError(t, err)
	req.Signature = "sig"

	wire := marshal(t, req)
	require.True(t, strings.HasPrefix(wire, fmt.Sprintf(`{"reqId":%d,"identifier":`, req.ReqID)))
	require.True(t, strings.HasSuffix(wire, `,"signature":"sig"}`))
}

func TestRequest_SigningBytesExcludeSignature(t *testing.T) {
	req, err := NewBuilder().BuildGetNym(testIdentifier, testDest)
	require.NoError(t, err)

	unsigned, err := req.SigningBytes()
	require.NoError(t, err)

	req.Signature = "sig"
	signed, err := req.SigningBytes()
	require.NoError(t, err)

	require.Equal(t, unsigned, signed)
	require.NotContains(t, string(signed), "signature")
	require.Equal(t, "sig", req.Signature)
}

func TestParse_RoundTrip(t *testing.T) {
	b := NewBuilder()
	nym, err := b.BuildNym(testIdentifier, testDest, "verkey", "", "TRUSTEE")
	require.NoError(t, err)
	node, err := b.BuildNode(testIdentifier, testDest, `{"node_ip":"10.0.0.100","node_port":9710,"client_ip":"10.0.0.100","client_port":9709,"alias":"Node5","services":["VALIDATOR"]}`)
	require.NoError(t, err)
	claimDef, err := b.BuildClaimDef(testIdentifier, 7, "CL", `{"primary":{"n":"1","s":"2","rms":"3","r":{"name":"1"},"rctxt":"1","z":"1"}}`)
	require.NoError(t, err)

	for _, req := range []*Request{nym, node, claimDef} {
		req.Signature = "sig"
		wire := marshal(t, req)

		parsed, err := Parse([]byte(wire))
		require.NoError(t, err)
		require.Equal(t, req.Operation.Type(), parsed.Operation.Type())
		require.Equal(t, wire, marshal(t, parsed))
	}
}

func TestParse_Literal(t *testing.T) {
	body := `{"reqId":1491566332010860,"identifier":"Th7MpTaRZVRYnPiabds81Y","operation":{"type":"105","dest":"FYmoFw55GeQH7SRFa37dkx1d2dZ3zUF8ckg7wmL7ofN4"},"signature":"4o86XfkiJ4e2r3J6Ufoi17UU3W5Zi9sshV6FjBjkVw4sgEQFQov9dxqDEtLbAJAWffCWd5KfAk164QVo7mYwKkiV"}`

	req, err := Parse([]byte(body))
	require.NoError(t, err)
	require.Equal(t, uint64(1491566332010860), req.ReqID)
	require.Equal(t, GET_NYM, req.Operation.Type())
	require.Equal(t, testDest, req.Operation.(*GetNym).Dest)
	require.True(t, req.Signed())
}

func TestParse_Invalid(t *testing.T) {
	for name, body := range map[string]string{
		"not json":       `nope`,
		"no reqId":       `{"identifier":"a","operation":{"type":"105","dest":"b"}}`,
		"no operation":   `{"reqId":1,"identifier":"a"}`,
		"unknown type":   `{"reqId":1,"identifier":"a","operation":{"type":"999"}}`,
		"wrong op shape": `{"reqId":1,"identifier":"a","operation":{"type":"0","data":"x"}}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(body))
			requireStructural(t, err)
		})
	}
}

func TestIDGenerator_Monotonic(t *testing.T) {
	fixed := time.UnixMicro(1000)
	g := &IDGenerator{now: func() time.Time { return fixed }}

	require.Equal(t, uint64(1000), g.Next())
	require.Equal(t, uint64(1001), g.Next())

	g.Floor(5000)
	require.Equal(t, uint64(5001), g.Next())

	g.Floor(10)
	require.Equal(t, uint64(5002), g.Next())
}

func TestIDGenerator_Concurrent(t *testing.T) {
	g := NewIDGenerator()
	ids := make(chan uint64, 100)

	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 10; j++ {
				ids <- g.Next()
			}
		}()
	}

	seen := make(map[uint64]struct{})
	for i := 0; i < 100; i++ {
		id := <-ids
		_, dup := seen[id]
		require.False(t, dup)
		seen[id] = struct{}{}
	}
}

func TestRoles_Name(t *testing.T) {
	name, ok := DefaultRoles().Name(STEWARD)
	require.True(t, ok)
	require.Equal(t, "STEWARD", name)

	_, ok = DefaultRoles().Name("999")
	require.False(t, ok)
}

func TestSchemaDataIsVerbatim(t *testing.T) {
	data := `{"name":"gvt2",  "version":"2.0", "keys": ["name", "male"]}`
	req, err := NewBuilder().BuildSchema(testIdentifier, data)
	require.NoError(t, err)

	var op map[string]string
	wire := marshal(t, req)
	var doc struct {
		Operation json.RawMessage `json:"operation"`
	}
	require.NoError(t, json.Unmarshal([]byte(wire), &doc))
	require.NoError(t, json.Unmarshal(doc.Operation, &op))
	require.Equal(t, data, op["data"])
}
