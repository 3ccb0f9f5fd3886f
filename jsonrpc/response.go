package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	vjsonrpc "github.com/viant/jsonrpc"

	"github.com/unkn0wn-root/outcall"
)

// Response answers one Request. Exactly one of Result and Error is set.
type Response struct {
	ID     ID
	Result json.RawMessage
	Error  *vjsonrpc.Error

	size int // bytes of the payload it was decoded from
}

// NewResult builds a success response for id.
func NewResult(id ID, result any) (*Response, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, &outcall.EncodingError{Reason: "result not representable", Err: err}
	}
	return &Response{ID: id, Result: raw}, nil
}

// NewRawResult wraps an already encoded result, e.g. one served from a cache.
// Its Size is the length of result.
func NewRawResult(id ID, result json.RawMessage) *Response {
	return &Response{ID: id, Result: result, size: len(result)}
}

// NewErrorResponse builds an error response for id.
func NewErrorResponse(id ID, e *vjsonrpc.Error) *Response {
	return &Response{ID: id, Error: e}
}

// Size is the number of payload bytes the response was decoded from, the
// result length for NewRawResult and 0 for other locally built responses.
func (r *Response) Size() int { return r.size }

// AsError converts an error response into an *outcall.ApplicationError; nil otherwise.
func (r *Response) AsError() error {
	if r == nil || r.Error == nil {
		return nil
	}
	return &outcall.ApplicationError{
		ID:      r.ID.String(),
		Code:    int64(r.Error.Code),
		Message: r.Error.Message,
		Data:    json.RawMessage(r.Error.Data),
	}
}

type responseEnvelope struct {
	Jsonrpc string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *vjsonrpc.Error `json:"error,omitempty"`
	ID      ID              `json:"id"`
}

// EncodeResponse renders {"jsonrpc","result","id"} or {"jsonrpc","error","id"}.
func EncodeResponse(r *Response) ([]byte, error) {
	if err := validate(len(r.Result) > 0, r.Error != nil); err != nil {
		return nil, &outcall.EncodingError{Reason: err.Error()}
	}
	b, err := json.Marshal(responseEnvelope{
		Jsonrpc: vjsonrpc.Version,
		Result:  r.Result,
		Error:   r.Error,
		ID:      r.ID,
	})
	if err != nil {
		return nil, &outcall.EncodingError{Reason: "response not representable", Err: err}
	}
	return b, nil
}

var (
	errBothSet    = errors.New("both result and error are set")
	errNeitherSet = errors.New("neither result nor error is set")
)

func validate(hasResult, hasError bool) error {
	switch {
	case hasResult && hasError:
		return errBothSet
	case !hasResult && !hasError:
		return errNeitherSet
	}
	return nil
}

// decodedEnvelope keeps members raw so that presence and type can be checked
// before anything is interpreted.
type decodedEnvelope struct {
	Jsonrpc *string         `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   json.RawMessage `json:"error"`
}

type errorObject struct {
	Code    *int64          `json:"code"`
	Message *string         `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// DecodeResponse parses payload and verifies it answers expected.
//
// Errors:
//   - *outcall.DecodingError: malformed JSON, wrong version tag, missing or
//     malformed id, both or neither of result/error, malformed error object;
//   - *outcall.IdentifierMismatchError: well-formed id that is not expected.
//
// An error response is returned as a *Response with Error set.
func DecodeResponse(payload []byte, expected ID) (*Response, error) {
	return decodeResponse(payload, expected, 0)
}

func decodeResponse(payload []byte, expected ID, status int) (*Response, error) {
	fail := func(reason string, err error) error {
		return &outcall.DecodingError{
			Reason:     reason,
			StatusCode: status,
			Body:       string(truncate(payload, 512)),
			Err:        err,
		}
	}

	var env decodedEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fail("invalid JSON-RPC response", err)
	}
	if env.Jsonrpc == nil {
		return nil, fail("missing jsonrpc version", nil)
	}
	if *env.Jsonrpc != vjsonrpc.Version {
		return nil, fail(fmt.Sprintf("unsupported jsonrpc version %q", *env.Jsonrpc), nil)
	}
	if len(env.ID) == 0 {
		return nil, fail("missing id", nil)
	}
	var id ID
	if err := json.Unmarshal(env.ID, &id); err != nil {
		return nil, fail("malformed id", err)
	}
	if err := validate(len(env.Result) > 0, len(env.Error) > 0); err != nil {
		return nil, fail(err.Error(), nil)
	}
	if id != expected {
		return nil, &outcall.IdentifierMismatchError{Expected: expected.String(), Got: id.String()}
	}

	resp := &Response{ID: id, size: len(payload)}
	if len(env.Result) > 0 {
		resp.Result = env.Result
		return resp, nil
	}

	var obj errorObject
	if err := json.Unmarshal(env.Error, &obj); err != nil {
		return nil, fail("malformed error object", err)
	}
	if obj.Code == nil || obj.Message == nil {
		return nil, fail("error object needs code and message", nil)
	}
	// viant's Error is decoded from the same bytes so its field types stay its own.
	var e vjsonrpc.Error
	if err := json.Unmarshal(env.Error, &e); err != nil {
		return nil, fail("malformed error object", err)
	}
	resp.Error = &e
	return resp, nil
}

// ResultAs decodes the result of resp into T. Error responses yield their
// *outcall.ApplicationError.
func ResultAs[T any](resp *Response) (T, error) {
	var out T
	if err := resp.AsError(); err != nil {
		return out, err
	}
	if err := json.Unmarshal(resp.Result, &out); err != nil {
		return out, &outcall.DecodingError{Reason: fmt.Sprintf("result is not a %T", out), Err: err}
	}
	return out, nil
}

// ResultKey is a canonical string for equality-based consensus: the compacted
// result, or "error:<code>:<message>" for error responses.
func ResultKey(resp *Response) string {
	if resp == nil {
		return ""
	}
	if resp.Error != nil {
		return fmt.Sprintf("error:%d:%s", int64(resp.Error.Code), resp.Error.Message)
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, resp.Result); err != nil {
		return string(resp.Result)
	}
	return buf.String()
}
