package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	vjsonrpc "github.com/viant/jsonrpc"

	"github.com/unkn0wn-root/outcall"
	"github.com/unkn0wn-root/outcall/codec"
	"github.com/unkn0wn-root/outcall/internal/keys"
	"github.com/unkn0wn-root/outcall/jsonrpc"
	"github.com/unkn0wn-root/outcall/provider/memory"
)

type recHooks struct {
	mu        sync.Mutex
	hits      int
	misses    int
	selfHeals []string
	provErrs  []string
}

func (h *recHooks) Lookup(_ string, hit bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if hit {
		h.hits++
	} else {
		h.misses++
	}
}

func (h *recHooks) SelfHeal(_, reason string) {
	h.mu.Lock()
	h.selfHeals = append(h.selfHeals, reason)
	h.mu.Unlock()
}

func (h *recHooks) ProviderSetRejected(string) {}

func (h *recHooks) ProviderError(op, _ string, _ error) {
	h.mu.Lock()
	h.provErrs = append(h.provErrs, op)
	h.mu.Unlock()
}

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

// upstream counts calls and answers with a result derived from the method.
func upstream(calls *atomic.Int32) outcall.Service[*jsonrpc.Request, *jsonrpc.Response] {
	return outcall.ServiceFunc[*jsonrpc.Request, *jsonrpc.Response](func(_ context.Context, req *jsonrpc.Request) (*jsonrpc.Response, error) {
		calls.Add(1)
		if req.Method() == "eth_fail" {
			return nil, &outcall.ApplicationError{Code: -32000, Message: "reverted"}
		}
		return jsonrpc.NewResult(req.ID(), fmt.Sprintf("%s:%d", req.Method(), calls.Load()))
	})
}

func newTestCache(t *testing.T, clk *clock, hooks Hooks, c codec.Codec[Entry]) (*Cache, *memory.Memory) {
	t.Helper()
	p := memory.New(memory.Config{MaxEntries: 100, Now: clk.Now})
	cc, err := New(Options{
		Namespace: "test",
		Provider:  p,
		Codec:     c,
		TTL:       10 * time.Second,
		Hooks:     hooks,
		Now:       clk.Now,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return cc, p
}

func TestIdempotentHitUsesCurrentID(t *testing.T) {
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	h := &recHooks{}
	c, _ := newTestCache(t, clk, h, nil)
	var calls atomic.Int32
	svc := c.Middleware()(upstream(&calls))

	first := jsonrpc.MustRequest("eth_chainId", nil, jsonrpc.Idempotent())
	r1, err := svc.Call(context.Background(), first)
	if err != nil {
		t.Fatalf("first: %v", err)
	}

	second := jsonrpc.MustRequest("eth_chainId", nil, jsonrpc.Idempotent())
	r2, err := svc.Call(context.Background(), second)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("upstream calls=%d want 1", calls.Load())
	}
	if r2.ID != second.ID() {
		t.Fatalf("hit answered id %s, want %s", r2.ID, second.ID())
	}
	if string(r2.Result) != string(r1.Result) {
		t.Fatalf("result %s vs %s", r2.Result, r1.Result)
	}
	if r2.Size() != len(r2.Result) {
		t.Fatalf("hit size=%d want %d", r2.Size(), len(r2.Result))
	}
	if h.hits != 1 || h.misses != 1 {
		t.Fatalf("hits=%d misses=%d", h.hits, h.misses)
	}
}

func TestNonIdempotentAndErrorsAreNeverCached(t *testing.T) {
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	c, p := newTestCache(t, clk, nil, nil)
	var calls atomic.Int32
	svc := c.Middleware()(upstream(&calls))

	for i := 0; i < 2; i++ {
		_, _ = svc.Call(context.Background(), jsonrpc.MustRequest("eth_sendRawTransaction", []string{"0x01"}))
		_, err := svc.Call(context.Background(), jsonrpc.MustRequest("eth_fail", nil, jsonrpc.Idempotent()))
		var appErr *outcall.ApplicationError
		if !errors.As(err, &appErr) {
			t.Fatalf("got %v", err)
		}
	}
	if calls.Load() != 4 {
		t.Fatalf("upstream calls=%d want 4", calls.Load())
	}
	if p.Len() != 0 {
		t.Fatalf("store holds %d entries", p.Len())
	}

	errResp := jsonrpc.NewErrorResponse(1, vjsonrpc.NewError(-1, "x", nil))
	if err := c.Set(context.Background(), jsonrpc.MustRequest("m", nil, jsonrpc.Idempotent()), errResp); err != nil || p.Len() != 0 {
		t.Fatalf("error response stored: %v len=%d", err, p.Len())
	}
}

func TestEntryOlderThanTTLIsSelfHealed(t *testing.T) {
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	h := &recHooks{}
	c, p := newTestCache(t, clk, h, nil)
	req := jsonrpc.MustRequest("eth_blockNumber", nil, jsonrpc.Idempotent())
	resp, _ := jsonrpc.NewResult(req.ID(), "0x10")
	if err := c.Set(context.Background(), req, resp); err != nil {
		t.Fatalf("Set: %v", err)
	}
	// keep the entry in the store past the cache TTL, as bigcache or a
	// misconfigured redis would
	k := keys.Call("test", req.Method(), req.Params())
	raw, _, _ := p.Get(context.Background(), k)
	_, _ = p.Set(context.Background(), k, raw, 1, 0)

	clk.t = clk.t.Add(11 * time.Second)
	if _, ok := c.Get(context.Background(), req); ok {
		t.Fatal("expired entry served")
	}
	if len(h.selfHeals) != 1 || h.selfHeals[0] != "expired" {
		t.Fatalf("selfHeals=%v", h.selfHeals)
	}
	if p.Len() != 0 {
		t.Fatal("expired entry not deleted")
	}
}

func TestCorruptAndForeignEntriesAreDeleted(t *testing.T) {
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	h := &recHooks{}
	c, p := newTestCache(t, clk, h, nil)
	req := jsonrpc.MustRequest("eth_getBalance", []string{"0xabc", "latest"}, jsonrpc.Idempotent())
	k := keys.Call("test", req.Method(), req.Params())

	_, _ = p.Set(context.Background(), k, []byte("not framed"), 1, 0)
	if _, ok := c.Get(context.Background(), req); ok {
		t.Fatal("corrupt entry served")
	}
	if _, ok, _ := p.Get(context.Background(), k); ok {
		t.Fatal("corrupt entry not deleted")
	}

	// entry written for different params under the same key
	other := jsonrpc.MustRequest("eth_getBalance", []string{"0xdef", "latest"}, jsonrpc.Idempotent())
	resp, _ := jsonrpc.NewResult(other.ID(), "0x1")
	if err := c.Set(context.Background(), other, resp); err != nil {
		t.Fatalf("Set: %v", err)
	}
	raw, _, _ := p.Get(context.Background(), keys.Call("test", other.Method(), other.Params()))
	_, _ = p.Set(context.Background(), k, raw, 1, 0)
	if _, ok := c.Get(context.Background(), req); ok {
		t.Fatal("entry for other params served")
	}
	want := []string{"corrupt", "key_mismatch"}
	if fmt.Sprint(h.selfHeals) != fmt.Sprint(want) {
		t.Fatalf("selfHeals=%v want %v", h.selfHeals, want)
	}
}

func TestCodecsRoundTripResultsVerbatim(t *testing.T) {
	for name, cd := range map[string]codec.Codec[Entry]{
		"json":    codec.JSONCodec[Entry]{},
		"cbor":    codec.MustCBOR[Entry](true),
		"msgpack": codec.Msgpack[Entry]{},
	} {
		t.Run(name, func(t *testing.T) {
			clk := &clock{t: time.Unix(1_700_000_000, 0)}
			c, _ := newTestCache(t, clk, nil, cd)
			req := jsonrpc.MustRequest("eth_getBlockByNumber", []any{"0x1", false}, jsonrpc.Idempotent())
			resp := &jsonrpc.Response{ID: req.ID(), Result: []byte(`{"number":"0x1","hash":"0xab"}`)}
			if err := c.Set(context.Background(), req, resp); err != nil {
				t.Fatalf("Set: %v", err)
			}
			got, ok := c.Get(context.Background(), req)
			if !ok {
				t.Fatal("miss")
			}
			if string(got.Result) != string(resp.Result) {
				t.Fatalf("result %s", got.Result)
			}
		})
	}
}

func TestMethodAllowlistAndDisabled(t *testing.T) {
	p := memory.New(memory.Config{})
	c, err := New(Options{Namespace: "ns", Provider: p, Methods: []string{"eth_chainId"}})
	if err != nil {
		t.Fatal(err)
	}
	if !c.Cacheable(jsonrpc.MustRequest("eth_chainId", nil, jsonrpc.Idempotent())) {
		t.Fatal("allowed method not cacheable")
	}
	if c.Cacheable(jsonrpc.MustRequest("eth_blockNumber", nil, jsonrpc.Idempotent())) {
		t.Fatal("method outside allowlist cacheable")
	}

	off, _ := New(Options{Namespace: "ns", Provider: p, Disabled: true})
	if off.Cacheable(jsonrpc.MustRequest("eth_chainId", nil, jsonrpc.Idempotent())) {
		t.Fatal("disabled cache is cacheable")
	}
}

type failingProvider struct{ *memory.Memory }

func (failingProvider) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("connection refused")
}

func (failingProvider) Set(context.Context, string, []byte, int64, time.Duration) (bool, error) {
	return false, errors.New("connection refused")
}

func TestProviderOutageDoesNotFailCalls(t *testing.T) {
	h := &recHooks{}
	c, err := New(Options{Namespace: "ns", Provider: failingProvider{memory.New(memory.Config{})}, Hooks: h})
	if err != nil {
		t.Fatal(err)
	}
	var calls atomic.Int32
	svc := c.Middleware()(upstream(&calls))
	if _, err := svc.Call(context.Background(), jsonrpc.MustRequest("eth_chainId", nil, jsonrpc.Idempotent())); err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if fmt.Sprint(h.provErrs) != "[get set]" {
		t.Fatalf("provErrs=%v", h.provErrs)
	}
}

func TestNewValidatesOptions(t *testing.T) {
	if _, err := New(Options{Namespace: "ns"}); err == nil {
		t.Fatal("expected error without provider")
	}
	if _, err := New(Options{Provider: memory.New(memory.Config{})}); err == nil {
		t.Fatal("expected error without namespace")
	}
}
