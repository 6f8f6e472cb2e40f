// Package remote implements the EVM remote state reader (component A):
// a thin JSON-RPC client over the four read calls a simulation needs to
// fill a cache miss (eth_getBalance, eth_getTransactionCount, eth_getCode,
// eth_getStorageAt). It deliberately stays as unabstracted as the
// teacher's own RPC client — one struct, one method per call — rather
// than growing a generic JSON-RPC abstraction this core does not need.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"github.com/tycho-sim/simcore/simerr"
)

// Client talks to a single EVM JSON-RPC endpoint.
type Client struct {
	Endpoint   string
	HTTPClient *http.Client
}

// NewClient builds a Client against endpoint using a default http.Client.
func NewClient(endpoint string) *Client {
	return &Client{Endpoint: endpoint, HTTPClient: http.DefaultClient}
}

// BlockTag renders a block pin as the string eth_* calls expect: "latest"
// for a nil or non-positive number, otherwise its hex encoding.
func BlockTag(blockNumber *int64) string {
	if blockNumber == nil || *blockNumber <= 0 {
		return "latest"
	}
	return hexutil.EncodeUint64(uint64(*blockNumber))
}

func (c *Client) GetBalance(ctx context.Context, address common.Address, blockTag string) (*uint256.Int, error) {
	var result string
	if err := c.call(ctx, "eth_getBalance", []interface{}{address.Hex(), blockTag}, &result); err != nil {
		return nil, err
	}
	v, err := uint256.FromHex(result)
	if err != nil {
		return nil, simerr.NewStorageError(fmt.Sprintf("invalid balance %q: %v", result, err))
	}
	return v, nil
}

func (c *Client) GetNonce(ctx context.Context, address common.Address, blockTag string) (uint64, error) {
	var result string
	if err := c.call(ctx, "eth_getTransactionCount", []interface{}{address.Hex(), blockTag}, &result); err != nil {
		return 0, err
	}
	n, err := hexutil.DecodeUint64(result)
	if err != nil {
		return 0, simerr.NewStorageError(fmt.Sprintf("invalid nonce %q: %v", result, err))
	}
	return n, nil
}

func (c *Client) GetCode(ctx context.Context, address common.Address, blockTag string) ([]byte, error) {
	var result string
	if err := c.call(ctx, "eth_getCode", []interface{}{address.Hex(), blockTag}, &result); err != nil {
		return nil, err
	}
	if result == "" || result == "0x" {
		return nil, nil
	}
	code, err := hexutil.Decode(result)
	if err != nil {
		return nil, simerr.NewStorageError(fmt.Sprintf("invalid code %q: %v", result, err))
	}
	return code, nil
}

func (c *Client) GetStorageAt(ctx context.Context, address common.Address, slot common.Hash, blockTag string) (common.Hash, error) {
	var result string
	if err := c.call(ctx, "eth_getStorageAt", []interface{}{address.Hex(), slot.Hex(), blockTag}, &result); err != nil {
		return common.Hash{}, err
	}
	return common.HexToHash(result), nil
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

// call performs one JSON-RPC request and decodes its result field into out.
// A transport failure, an undecodable response or an RPC-level error
// response all become a simerr.StorageError.
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
