package codec

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/roach88/tablesync/internal/ir"
)

func unmarshalMsgpack(data []byte) (ir.Value, error) {
	r := bytes.NewReader(data)
	dec := msgpack.NewDecoder(r)

	raw, err := dec.DecodeInterface()
	if err != nil {
		return nil, fmt.Errorf("msgpack: %w", err)
	}
	if r.Len() > 0 {
		return nil, fmt.Errorf("msgpack: %d trailing bytes", r.Len())
	}
	return ir.FromNative(raw)
}

func marshalMsgpack(v ir.Value) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	enc.UseCompactInts(true)

	if err := enc.Encode(ir.ToNative(v)); err != nil {
		return nil, fmt.Errorf("msgpack: %w", err)
	}
	return buf.Bytes(), nil
}
