package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rpcServer answers every JSON-RPC call with result.
func rpcServer(t *testing.T, result string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req struct {
			ID json.RawMessage `json:"id"`
		}
		_ = json.Unmarshal(body, &req)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"jsonrpc":"2.0","result":%s,"id":%s}`, result, req.ID)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeConfig(t *testing.T, urls ...string) string {
	t.Helper()
	doc := "log: {level: error}\nproviders:\n"
	for i, u := range urls {
		doc += fmt.Sprintf("  - {name: p%d, url: %q}\n", i, u)
	}
	path := filepath.Join(t.TempDir(), "outcall.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	return path
}

func TestRunReportsAgreement(t *testing.T) {
	a, b, c := rpcServer(t, `"0x1b4"`), rpcServer(t, `"0x1b4"`), rpcServer(t, `"0x1b5"`)
	cfg := writeConfig(t, a.URL, b.URL, c.URL)

	var out bytes.Buffer
	err := Run([]string{"--config", cfg, "--method", "eth_gasPrice", "--idempotent", "--threshold", "2"}, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), `result: "0x1b4"`)
	assert.Contains(t, out.String(), `p2`)

	out.Reset()
	err = Run([]string{"-c", cfg, "-m", "eth_gasPrice"}, &out)
	assert.Error(t, err)
	assert.NotContains(t, out.String(), "result:")
}

func TestRunSingleProvider(t *testing.T) {
	a := rpcServer(t, `"0x1"`)
	cfg := writeConfig(t, a.URL)

	var out bytes.Buffer
	err := Run([]string{"-c", cfg, "-m", "eth_chainId", "--provider", "p0"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "result: \"0x1\"\n", out.String())
}

func TestRunRejectsBadInput(t *testing.T) {
	cfg := writeConfig(t, "http://127.0.0.1:1")
	assert.Error(t, Run([]string{"-m", "eth_chainId"}, io.Discard))
	assert.Error(t, Run([]string{"-c", cfg, "-m", "eth_chainId", "-p", "{not json"}, io.Discard))
}
