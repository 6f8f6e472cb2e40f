// Package snremote implements the Starknet remote state reader (the
// Starknet half of component A): a JSON-RPC client over the reads a
// Starknet simulation needs on a cache miss. It is deliberately built the
// same unabstracted way as the EVM remote.Client — one struct, one method
// per call — rather than sharing a generic client between the two chains.
package snremote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/tycho-sim/simcore/felt"
	"github.com/tycho-sim/simcore/simerr"
)

// Client talks to a single Starknet JSON-RPC endpoint.
type Client struct {
	Endpoint   string
	HTTPClient *http.Client
}

func NewClient(endpoint string) *Client {
	return &Client{Endpoint: endpoint, HTTPClient: http.DefaultClient}
}

func (c *Client) GetStorageAt(ctx context.Context, contractAddress, key felt.Felt, blockTag string) (felt.Felt, error) {
	var result string
	err := c.call(ctx, "starknet_getStorageAt", []interface{}{contractAddress.Hex(), key.Hex(), blockTag}, &result)
	if err != nil {
		return felt.Felt{}, err
	}
	v, err := felt.FromBigEndianHex(result)
	if err != nil {
		return felt.Felt{}, simerr.NewStorageError(err.Error())
	}
	return v, nil
}

func (c *Client) GetClassHashAt(ctx context.Context, contractAddress felt.Felt, blockTag string) (felt.Felt, error) {
	var result string
	err := c.call(ctx, "starknet_getClassHashAt", []interface{}{blockTag, contractAddress.Hex()}, &result)
	if err != nil {
		return felt.Felt{}, err
	}
	v, err := felt.FromBigEndianHex(result)
	if err != nil {
		return felt.Felt{}, simerr.NewStorageError(err.Error())
	}
	return v, nil
}

func (c *Client) GetNonce(ctx context.Context, contractAddress felt.Felt, blockTag string) (felt.Felt, error) {
	var result string
	err := c.call(ctx, "starknet_getNonce", []interface{}{blockTag, contractAddress.Hex()}, &result)
	if err != nil {
		return felt.Felt{}, err
	}
	v, err := felt.FromBigEndianHex(result)
	if err != nil {
		return felt.Felt{}, simerr.NewStorageError(err.Error())
	}
	return v, nil
}

// GetClass fetches a contract class definition by class hash. The raw
// JSON payload is returned as-is; parsing it into a compiled casm/sierra
// representation is outside the remote reader's job.
func (c *Client) GetClass(ctx context.Context, classHash felt.Felt, blockTag string) (json.RawMessage, error) {
	var result json.RawMessage
	if err := c.call(ctx, "starknet_getClass", []interface{}{blockTag, classHash.Hex()}, &result); err != nil {
		return nil, err
	}
	return result, nil
}

type rpcRequest struct {
	ID      int           `json:"id"`
	JSONRpc string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	ID      int             `json:"id"`
	JSONRpc string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Err     *rpcErrResponse `json:"error,omitempty"`
}

type rpcErrResponse struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
}

func (e *rpcErrResponse) Error() string {
	return fmt.Sprintf(`{"code": %d, "message": %q}`, e.Code, e.Message)
}

func (c *Client) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	payload := rpcRequest{ID: 1, JSONRpc: "2.0", Method: method, Params: params}
	data, err := json.Marshal(&payload)
	if err != nil {
		return simerr.NewStorageError(fmt.Sprintf("encoding %s request: %v", method, err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(data))
	if err != nil {
		return simerr.NewStorageError(fmt.Sprintf("building %s request: %v", method, err))
	}
	req.Header.Set("Content-Type", "application/json")

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return simerr.NewStorageError(fmt.Sprintf("%s: %v", method, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return simerr.NewStorageError(fmt.Sprintf("%s: reading response: %v", method, err))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return simerr.NewStorageError(fmt.Sprintf("%s: decoding response: %v", method, err))
	}
	if rpcResp.Err != nil {
		return simerr.NewStorageError(fmt.Sprintf("%s: %s", method, rpcResp.Err.Error()))
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return simerr.NewStorageError(fmt.Sprintf("%s: unexpected result shape: %v", method, err))
	}
	return nil
}
