// Package walrecord encodes the request journal entries written to the WAL.
package walrecord

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/ledgerpool/core/dto"
)

const (
	// system keys for journal entries
	KeyDispatched = "__req:dispatched"
	KeySettled    = "__req:settled"
)

// EncodeDispatched serializes a dispatched request.
// Format: [ReqID(8 bytes)] [Pool] [Type] [Body], each variable field
// prefixed with its length (4 bytes).
func EncodeDispatched(req *dto.DispatchedRequest) ([]byte, error) {
	if req == nil {
		return nil, errors.New("nil dispatched request")
	}

	buf := make([]byte, 8, 8+12+len(req.Pool)+len(req.Type)+len(req.Body))
	binary.BigEndian.PutUint64(buf, req.ReqID)
	buf = appendField(buf, []byte(req.Pool))
	buf = appendField(buf, []byte(req.Type))
	buf = appendField(buf, req.Body)

	return buf, nil
}

// DecodeDispatched deserializes bytes produced by EncodeDispatched.
func DecodeDispatched(data []byte) (*dto.DispatchedRequest, error) {
	r := reader{data: data}
	req := &dto.DispatchedRequest{ReqID: r.uint64()}
	req.Pool = string(r.field())
	req.Type = string(r.field())
	req.Body = r.field()
	if r.err != nil {
		return nil, errors.Wrap(r.err, "decode dispatched record")
	}

	return req, nil
}

// EncodeSettled serializes a settled request.
// Format: [ReqID(8 bytes)] [Outcome(4 bytes)] [Pool] [Reply] [Reason], each
// variable field prefixed with its length (4 bytes).
func EncodeSettled(res *dto.SettledRequest) ([]byte, error) {
	if res == nil {
		return nil, errors.New("nil settled request")
	}

	buf := make([]byte, 12, 12+12+len(res.Pool)+len(res.Reply)+len(res.Reason))
	binary.BigEndian.PutUint64(buf[0:8], res.ReqID)
	binary.BigEndian.PutUint32(buf[8:12], uint32(res.Outcome))
	buf = appendField(buf, []byte(res.Pool))
	buf = appendField(buf, res.Reply)
	buf = appendField(buf, []byte(res.Reason))

	return buf, nil
}

// DecodeSettled deserializes bytes produced by EncodeSettled.
func DecodeSettled(data []byte) (*dto.SettledRequest, error) {
	r := reader{data: data}
	res := &dto.SettledRequest{ReqID: r.uint64()}
	res.Outcome = dto.OutcomeType(r.uint32())
	res.Pool = string(r.field())
	res.Reply = r.field()
	res.Reason = string(r.field())
	if r.err != nil {
		return nil, errors.Wrap(r.err, "decode settled record")
	}

	return res, nil
}

func appendField(buf, field []byte) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(field)))
	return append(buf, field...)
}

// reader consumes fixed and length-prefixed fields, remembering the first error.
type reader struct {
	data []byte
	err  error
}

func (r *reader) next(n int) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.data) < n {
		r.err = errors.Errorf("data too short: need %d bytes, have %d", n, len(r.data))
		return nil
	}
	b := r.data[:n]
	r.data = r.data[n:]
	return b
}

func (r *reader) uint64() uint64 {
	b := r.next(8)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func (r *reader) uint32() uint32 {
	b := r.next(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (r *reader) field() []byte {
	n := r.uint32()
	b := r.next(int(n))
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
