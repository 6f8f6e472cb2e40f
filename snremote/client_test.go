package snremote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tycho-sim/simcore/felt"
)

func TestGetStorageAtParsesFelt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Method != "starknet_getStorageAt" {
			t.Fatalf("unexpected method %q", req.Method)
		}
		resp := rpcResponse{ID: req.ID, JSONRpc: "2.0", Result: json.RawMessage(`"0x2a"`)}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	val, err := c.GetStorageAt(context.Background(), felt.FromUint64(1), felt.FromUint64(2), "latest")
	if err != nil {
		t.Fatal(err)
	}
	if !val.Eq(felt.FromUint64(42)) {
		t.Fatalf("got %s, want 42", val.Hex())
	}
}

func TestGetClassHashAtSurfacesRPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		resp := rpcResponse{ID: req.ID, JSONRpc: "2.0", Err: &rpcErrResponse{Code: 20, Message: "contract not found"}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.GetClassHashAt(context.Background(), felt.FromUint64(1), "latest")
	if err == nil {
		t.Fatal("expected an error")
	}
}
