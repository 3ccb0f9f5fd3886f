package jsonrpc

import (
	"encoding/json"
	"time"

	vjsonrpc "github.com/viant/jsonrpc"

	"github.com/unkn0wn-root/outcall"
)

// MaxResponseBytesCap is the largest byte budget a request may ask for.
const MaxResponseBytesCap int64 = 2_000_000

// Request is one logical JSON-RPC call. It is immutable: With* methods return copies.
type Request struct {
	method           string
	params           json.RawMessage
	id               ID
	idempotent       bool
	maxResponseBytes int64
	timeout          time.Duration
}

type RequestOption func(*Request)

// Idempotent declares the call safe to re-issue. Nothing else marks a request idempotent.
func Idempotent() RequestOption { return func(r *Request) { r.idempotent = true } }

// WithID pins the id instead of drawing one from the process-wide generator.
func WithID(id ID) RequestOption { return func(r *Request) { r.id = id } }

// WithMaxResponseBytes sets the response byte budget, capped at MaxResponseBytesCap.
func WithMaxResponseBytes(n int64) RequestOption {
	return func(r *Request) { r.maxResponseBytes = capBudget(n) }
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) RequestOption { return func(r *Request) { r.timeout = d } }

// NewRequest encodes params once and assigns an id. Params that cannot be
// represented as JSON yield an *outcall.EncodingError.
func NewRequest(method string, params any, opts ...RequestOption) (*Request, error) {
	if method == "" {
		return nil, &outcall.EncodingError{Reason: "empty method"}
	}
	raw, err := encodeParams(params)
	if err != nil {
		return nil, err
	}
	r := &Request{method: method, params: raw}
	for _, opt := range opts {
		opt(r)
	}
	if r.id.IsZero() {
		r.id = defaultIDs.Next()
	}
	return r, nil
}

// MustRequest is like NewRequest but panics on error. Handy in tests.
func MustRequest(method string, params any, opts ...RequestOption) *Request {
	r, err := NewRequest(method, params, opts...)
	if err != nil {
		panic(err)
	}
	return r
}

func encodeParams(params any) (json.RawMessage, error) {
	if raw, ok := params.(json.RawMessage); ok {
		if !json.Valid(raw) {
			return nil, &outcall.EncodingError{Reason: "params are not valid JSON"}
		}
		return raw, nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, &outcall.EncodingError{Reason: "params not representable", Err: err}
	}
	return raw, nil
}

func (r *Request) Method() string          { return r.method }
func (r *Request) Params() json.RawMessage { return r.params }
func (r *Request) ID() ID                  { return r.id }
func (r *Request) RequestID() string       { return r.id.String() }
func (r *Request) IsIdempotent() bool      { return r.idempotent }
func (r *Request) MaxResponseBytes() int64 { return r.maxResponseBytes }
func (r *Request) Timeout() time.Duration  { return r.timeout }

// WithID returns a copy carrying id.
func (r *Request) WithID(id ID) *Request {
	cp := *r
	cp.id = id
	return &cp
}

// WithMaxResponseBytes returns a copy with a new byte budget.
func (r *Request) WithMaxResponseBytes(n int64) *Request {
	cp := *r
	cp.maxResponseBytes = capBudget(n)
	return &cp
}

func capBudget(n int64) int64 {
	if n > MaxResponseBytesCap {
		return MaxResponseBytesCap
	}
	return n
}

type requestEnvelope struct {
	Jsonrpc string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      ID              `json:"id"`
}

// EncodeRequest renders the wire object {"jsonrpc","method","params","id"}.
func EncodeRequest(r *Request) ([]byte, error) {
	if r.id.IsZero() {
		return nil, &outcall.EncodingError{Reason: "request has no id"}
	}
	b, err := json.Marshal(requestEnvelope{
		Jsonrpc: vjsonrpc.Version,
		Method:  r.method,
		Params:  r.params,
		ID:      r.id,
	})
	if err != nil {
		return nil, &outcall.EncodingError{Reason: "request not representable", Err: err}
	}
	return b, nil
}

// DecodeRequest parses a request payload. Servers and test doubles use it;
// the idempotency flag is not part of the wire format and is left unset.
func DecodeRequest(b []byte) (*Request, error) {
	var env struct {
		Jsonrpc string          `json:"jsonrpc"`
		Method  string          `json:"method"`
		Params  json.RawMessage `json:"params"`
		ID      *ID             `json:"id"`
	}
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, &outcall.DecodingError{Reason: "invalid request JSON", Body: string(truncate(b, 512)), Err: err}
	}
	if env.Jsonrpc != vjsonrpc.Version {
		return nil, &outcall.DecodingError{Reason: "unsupported jsonrpc version " + env.Jsonrpc}
	}
	if env.Method == "" {
		return nil, &outcall.DecodingError{Reason: "missing method"}
	}
	if env.ID == nil {
		return nil, &outcall.DecodingError{Reason: "missing id"}
	}
	return &Request{method: env.Method, params: env.Params, id: *env.ID}, nil
}
