package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

func unreachable() *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestNewRequiresClient(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, ErrNilClient) {
		t.Fatalf("err=%v", err)
	}
}

func TestServerErrorsSurface(t *testing.T) {
	rdb := unreachable()
	defer rdb.Close()
	p, err := New(Config{Client: rdb})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if _, ok, err := p.Get(ctx, "k"); ok || err == nil {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if ok, err := p.Set(ctx, "k", []byte("v"), 1, time.Second); ok || err == nil {
		t.Fatalf("Set: ok=%v err=%v", ok, err)
	}
}

func TestCloseLeavesSharedClientOpen(t *testing.T) {
	rdb := unreachable()
	defer rdb.Close()
	p, _ := New(Config{Client: rdb})
	if err := p.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	// a closed client would report ErrClosed instead of a dial error
	if err := rdb.Ping(context.Background()).Err(); errors.Is(err, goredis.ErrClosed) {
		t.Fatal("shared client closed")
	}

	owned, _ := New(Config{Client: unreachable(), Owned: true})
	if err := owned.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := owned.Close(context.Background()); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestDialRejectsBadURL(t *testing.T) {
	if _, err := Dial(context.Background(), "not-a-url"); err == nil {
		t.Fatal("expected error")
	}
}
