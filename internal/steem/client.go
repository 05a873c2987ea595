package steem

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is a condenser_api JSON-RPC client. It is the only component that
// talks to the chain node; everything above it works on decoded types.
type Client struct {
	apiURL     string
	httpClient *http.Client
}

// NewClient creates a new Steem API client
func NewClient(apiURL string) *Client {
	return &Client{
		apiURL: apiURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type jsonRPCRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int           `json:"id"`
}

type jsonRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *jsonRPCError   `json:"error,omitempty"`
	ID      int             `json:"id"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// call makes a JSON-RPC call to the Steem API. All failures are wrapped in
// a FetchError so callers can treat them uniformly as transient.
func (c *Client) call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	req := jsonRPCRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      1,
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, &FetchError{Method: method, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, &FetchError{Method: method, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &FetchError{Method: method, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Method: method, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{Method: method, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var jsonResp jsonRPCResponse
	if err := json.Unmarshal(body, &jsonResp); err != nil {
		return nil, &FetchError{Method: method, Err: fmt.Errorf("failed to unmarshal response: %w", err)}
	}

	if jsonResp.Error != nil {
		return nil, &FetchError{
			Method: method,
			Err:    fmt.Errorf("JSON-RPC error: %s (code: %d)", jsonResp.Error.Message, jsonResp.Error.Code),
		}
	}

	return jsonResp.Result, nil
}

// GetBlock retrieves a block by block number. It returns ErrBlockNotAvailable
// when the chain has not produced the block yet (the node answers null).
func (c *Client) GetBlock(ctx context.Context, blockNum int64) (*Block, error) {
	result, err := c.call(ctx, "condenser_api.get_block", []interface{}{blockNum})
	if err != nil {
		return nil, err
	}

	if len(result) == 0 || string(result) == "null" {
		return nil, ErrBlockNotAvailable
	}

	var block Block
	if err := json.Unmarshal(result, &block); err != nil {
		return nil, &FetchError{Method: "get_block", Err: fmt.Errorf("failed to unmarshal block: %w", err)}
	}

	return &block, nil
}

// GetDynamicGlobalProperties retrieves the network totals snapshot.
func (c *Client) GetDynamicGlobalProperties(ctx context.Context) (*DynamicGlobalProperties, error) {
	result, err := c.call(ctx, "condenser_api.get_dynamic_global_properties", []interface{}{})
	if err != nil {
		return nil, err
	}

	var props DynamicGlobalProperties
	if err := json.Unmarshal(result, &props); err != nil {
		return nil, &FetchError{Method: "get_dynamic_global_properties", Err: fmt.Errorf("failed to unmarshal properties: %w", err)}
	}

	return &props, nil
}

// GetAccount retrieves the raw chain account data for a single account.
// A missing account yields ErrAccountNotFound.
func (c *Client) GetAccount(ctx context.Context, name string) (map[string]interface{}, error) {
	result, err := c.call(ctx, "condenser_api.get_accounts", []interface{}{[]string{name}})
	if err != nil {
		return nil, err
	}

	var accounts []map[string]interface{}
	if err := json.Unmarshal(result, &accounts); err != nil {
		return nil, &FetchError{Method: "get_accounts", Err: fmt.Errorf("failed to unmarshal accounts: %w", err)}
	}
	if len(accounts) == 0 || accounts[0] == nil {
		return nil, ErrAccountNotFound
	}

	return accounts[0], nil
}

// GetAccountHistory retrieves account history entries ending at index start.
// Pass start = -1 for the most recent entry. The node returns limit+1
// entries in ascending index order.
func (c *Client) GetAccountHistory(ctx context.Context, account string, start int64, limit int) ([]AccountHistoryItem, error) {
	result, err := c.call(ctx, "condenser_api.get_account_history", []interface{}{account, start, limit})
	if err != nil {
		return nil, err
	}

	var items []AccountHistoryItem
	if err := json.Unmarshal(result, &items); err != nil {
		return nil, &FetchError{Method: "get_account_history", Err: fmt.Errorf("failed to unmarshal history: %w", err)}
	}

	return items, nil
}

// GetVestingDelegations retrieves active outgoing delegations for delegator,
// starting from the delegatee name start ("" for the beginning).
func (c *Client) GetVestingDelegations(ctx context.Context, delegator, start string, limit int) ([]VestingDelegation, error) {
	result, err := c.call(ctx, "condenser_api.get_vesting_delegations", []interface{}{delegator, start, limit})
	if err != nil {
		return nil, err
	}

	var delegations []VestingDelegation
	if err := json.Unmarshal(result, &delegations); err != nil {
		return nil, &FetchError{Method: "get_vesting_delegations", Err: fmt.Errorf("failed to unmarshal delegations: %w", err)}
	}

	return delegations, nil
}

// GetExpiringVestingDelegations retrieves delegation returns for delegator
// with an expiration at or after the given timestamp.
func (c *Client) GetExpiringVestingDelegations(ctx context.Context, delegator, after string, limit int) ([]ExpiringVestingDelegation, error) {
	result, err := c.call(ctx, "condenser_api.get_expiring_vesting_delegations", []interface{}{delegator, after, limit})
	if err != nil {
		return nil, err
	}

	var delegations []ExpiringVestingDelegation
	if err := json.Unmarshal(result, &delegations); err != nil {
		return nil, &FetchError{Method: "get_expiring_vesting_delegations", Err: fmt.Errorf("failed to unmarshal expiring delegations: %w", err)}
	}

	return delegations, nil
}

// GetDiscussionsByBlog retrieves recent blog posts for an account.
func (c *Client) GetDiscussionsByBlog(ctx context.Context, account string, limit int) ([]Discussion, error) {
	query := map[string]interface{}{"tag": account, "limit": limit}
	result, err := c.call(ctx, "condenser_api.get_discussions_by_blog", []interface{}{query})
	if err != nil {
		return nil, err
	}

	var discussions []Discussion
	if err := json.Unmarshal(result, &discussions); err != nil {
		return nil, &FetchError{Method: "get_discussions_by_blog", Err: fmt.Errorf("failed to unmarshal discussions: %w", err)}
	}

	return discussions, nil
}

// GetDiscussionsByComments retrieves recent comments authored by an account.
func (c *Client) GetDiscussionsByComments(ctx context.Context, account string, limit int) ([]Discussion, error) {
	query := map[string]interface{}{"start_author": account, "limit": limit}
	result, err := c.call(ctx, "condenser_api.get_discussions_by_comments", []interface{}{query})
	if err != nil {
		return nil, err
	}

	var discussions []Discussion
	if err := json.Unmarshal(result, &discussions); err != nil {
		return nil, &FetchError{Method: "get_discussions_by_comments", Err: fmt.Errorf("failed to unmarshal discussions: %w", err)}
	}

	return discussions, nil
}
