package codec

import "encoding/json"

// JSONCodec stores values as JSON. json.RawMessage fields are kept verbatim,
// so cached JSON-RPC results round-trip byte for byte.
type JSONCodec[V any] struct{}

func (JSONCodec[V]) Encode(v V) ([]byte, error) { return json.Marshal(v) }
func (JSONCodec[V]) Decode(b []byte) (V, error) {
	var v V
	err := json.Unmarshal(b, &v)
	return v, err
}
