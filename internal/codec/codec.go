// Package codec converts sync requests and responses to and from bytes.
//
// Two encodings are supported: canonical JSON and MessagePack. Both decode
// through ir.ParseRequest, so the accepted request schema is identical.
package codec

import (
	"fmt"
	"mime"
	"strings"

	"github.com/roach88/tablesync/internal/ir"
)

// Content types.
const (
	ContentTypeJSON    = "application/json"
	ContentTypeMsgpack = "application/msgpack"
)

// Codec encodes one wire format.
type Codec interface {
	ContentType() string

	DecodeRequest(data []byte) (ir.Request, error)
	EncodeResponse(resp *ir.Response) ([]byte, error)

	EncodeRequest(req ir.Request) ([]byte, error)
	DecodeResponse(data []byte) (*ir.Response, error)
}

// valueCodec adapts a Value-level encoding to Codec.
type valueCodec struct {
	contentType string
	decode      func([]byte) (ir.Value, error)
	encode      func(ir.Value) ([]byte, error)
}

func (c valueCodec) ContentType() string { return c.contentType }

func (c valueCodec) DecodeRequest(data []byte) (ir.Request, error) {
	v, err := c.decode(data)
	if err != nil {
		return ir.Request{}, fmt.Errorf("%w: %v", ir.ErrMalformedRequest, err)
	}
	return ir.ParseRequest(v)
}

func (c valueCodec) EncodeResponse(resp *ir.Response) ([]byte, error) {
	return c.encode(resp.ToValue())
}

func (c valueCodec) EncodeRequest(req ir.Request) ([]byte, error) {
	return c.encode(req.ToValue())
}

func (c valueCodec) DecodeResponse(data []byte) (*ir.Response, error) {
	v, err := c.decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	resp, err := ir.ParseResponse(v)
	if err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &resp, nil
}

// JSON is the canonical JSON codec.
var JSON Codec = valueCodec{
	contentType: ContentTypeJSON,
	decode:      ir.UnmarshalValue,
	encode: func(v ir.Value) ([]byte, error) {
		return ir.MarshalCanonical(v)
	},
}

// Msgpack is the MessagePack codec.
var Msgpack Codec = valueCodec{
	contentType: ContentTypeMsgpack,
	decode:      unmarshalMsgpack,
	encode:      marshalMsgpack,
}

// ForContentType picks a codec for a Content-Type or Accept value. An empty
// value selects JSON.
func ForContentType(header string) (Codec, bool) {
	if strings.TrimSpace(header) == "" {
		return JSON, true
	}
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return nil, false
	}
	switch mediaType {
	case ContentTypeJSON, "text/json":
		return JSON, true
	case ContentTypeMsgpack, "application/x-msgpack", "application/vnd.msgpack":
		return Msgpack, true
	default:
		return nil, false
	}
}

// ByName returns the codec for "json" or "msgpack".
func ByName(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "", "json":
		return JSON, nil
	case "msgpack":
		return Msgpack, nil
	default:
		return nil, fmt.Errorf("unknown codec %q (want json or msgpack)", name)
	}
}
