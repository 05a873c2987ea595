package steem

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Block represents a Steem block
type Block struct {
	Previous              string        `json:"previous"`
	Timestamp             string        `json:"timestamp"`
	Witness               string        `json:"witness"`
	TransactionMerkleRoot string        `json:"transaction_merkle_root"`
	WitnessSignature      string        `json:"witness_signature"`
	Transactions          []Transaction `json:"transactions"`
	BlockID               string        `json:"block_id"`
	SigningKey            string        `json:"signing_key"`
	TransactionIds        []string      `json:"transaction_ids"`
}

// Transaction represents a Steem transaction
type Transaction struct {
	RefBlockNum    int64         `json:"ref_block_num"`
	RefBlockPrefix int64         `json:"ref_block_prefix"`
	Expiration     string        `json:"expiration"`
	Operations     []interface{} `json:"operations"`
	Signatures     []string      `json:"signatures"`
	TransactionID  string        `json:"transaction_id"`
	BlockNum       int64         `json:"block_num"`
	TransactionNum int           `json:"transaction_num"`
}

// DynamicGlobalProperties is the subset of condenser_api
// get_dynamic_global_properties the watcher consumes.
type DynamicGlobalProperties struct {
	HeadBlockNumber          int64  `json:"head_block_number"`
	LastIrreversibleBlockNum int64  `json:"last_irreversible_block_num"`
	Time                     string `json:"time"`
	TotalVestingFundSteem    string `json:"total_vesting_fund_steem"`
	TotalVestingShares       string `json:"total_vesting_shares"`
}

// VestingDelegation is an active outgoing vesting delegation.
type VestingDelegation struct {
	ID                int64  `json:"id"`
	Delegator         string `json:"delegator"`
	Delegatee         string `json:"delegatee"`
	VestingShares     string `json:"vesting_shares"`
	MinDelegationTime string `json:"min_delegation_time"`
}

// ExpiringVestingDelegation is a delegation return waiting to mature.
type ExpiringVestingDelegation struct {
	ID            int64  `json:"id"`
	Delegator     string `json:"delegator"`
	VestingShares string `json:"vesting_shares"`
	Expiration    string `json:"expiration"`
}

// Rshares decodes condenser rshares fields, which show up both as JSON
// numbers and as quoted strings depending on the node version.
type Rshares float64

func (r *Rshares) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*r = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid rshares value %q: %w", s, err)
	}
	*r = Rshares(v)
	return nil
}

// Discussion is a content item (post or comment) from the discussion APIs.
type Discussion struct {
	Author      string  `json:"author"`
	Permlink    string  `json:"permlink"`
	CashoutTime string  `json:"cashout_time"`
	NetRshares  Rshares `json:"net_rshares"`
}

// AccountHistoryItem is one entry from condenser_api.get_account_history.
// On the wire each entry is a two-element array: [index, {trx_id, block,
// op_in_trx, timestamp, op: [type, data]}].
type AccountHistoryItem struct {
	Index     int64
	TrxID     string
	BlockNum  int64
	OpInTrx   int
	Timestamp string
	OpType    string
	OpData    map[string]interface{}
}

func (h *AccountHistoryItem) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("account history entry has %d elements, want 2", len(pair))
	}
	if err := json.Unmarshal(pair[0], &h.Index); err != nil {
		return fmt.Errorf("invalid history index: %w", err)
	}

	var body struct {
		TrxID     string            `json:"trx_id"`
		Block     int64             `json:"block"`
		OpInTrx   int               `json:"op_in_trx"`
		Timestamp string            `json:"timestamp"`
		Op        []json.RawMessage `json:"op"`
	}
	if err := json.Unmarshal(pair[1], &body); err != nil {
		return fmt.Errorf("invalid history entry: %w", err)
	}
	h.TrxID = body.TrxID
	h.BlockNum = body.Block
	h.OpInTrx = body.OpInTrx
	h.Timestamp = body.Timestamp

	if len(body.Op) != 2 {
		return fmt.Errorf("history operation has %d elements, want 2", len(body.Op))
	}
	if err := json.Unmarshal(body.Op[0], &h.OpType); err != nil {
		return fmt.Errorf("invalid operation type: %w", err)
	}
	if err := json.Unmarshal(body.Op[1], &h.OpData); err != nil {
		return fmt.Errorf("invalid operation payload: %w", err)
	}
	return nil
}
