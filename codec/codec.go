// Package codec encodes cached values to bytes and back.
package codec

import "fmt"

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// Names accepted by ByName.
const (
	NameJSON    = "json"
	NameCBOR    = "cbor"
	NameMsgpack = "msgpack"
)

// ByName returns the codec registered under name; "" selects JSON.
// maxDecode > 0 wraps it in a LimitCodec.
func ByName[V any](name string, maxDecode int) (Codec[V], error) {
	var c Codec[V]
	switch name {
	case "", NameJSON:
		c = JSONCodec[V]{}
	case NameCBOR:
		cb, err := NewCBOR[V](true)
		if err != nil {
			return nil, err
		}
		c = cb
	case NameMsgpack:
		c = Msgpack[V]{}
	default:
		return nil, fmt.Errorf("codec: unknown codec %q", name)
	}
	if maxDecode > 0 {
		c = LimitCodec[V]{Inner: c, MaxDecode: maxDecode}
	}
	return c, nil
}
