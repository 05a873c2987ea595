package models

import "time"

// AccountOperation is the persisted, account-scoped projection of a Steem
// blockchain operation. Sequence is a per-account counter assigned by the
// store at insertion time; for a given account the sequences form a dense
// ascending run starting at 0. The tuple (block_num, trx_id, op_in_trx,
// account) identifies an operation globally and drives idempotent insertion.
type AccountOperation struct {
	Account   string                 `bson:"account" json:"account"`
	Sequence  int64                  `bson:"sequence" json:"sequence"`
	BlockNum  int64                  `bson:"block_num" json:"block_num"`
	TrxID     string                 `bson:"trx_id" json:"trx_id"`
	OpInTrx   int                    `bson:"op_in_trx" json:"op_in_trx"`
	OpType    string                 `bson:"op_type" json:"op_type"`
	OpData    map[string]interface{} `bson:"op_data" json:"op_data"`
	Timestamp time.Time              `bson:"timestamp" json:"timestamp"`
	CreatedAt time.Time              `bson:"created_at" json:"created_at"`
}

// SyncState is the listener cursor: the single source of truth for where
// ingestion resumes after a restart. LastBlock is advanced only after every
// operation of that block has been persisted.
type SyncState struct {
	LastBlock             int64     `bson:"last_block" json:"last_block"`
	LastIrreversibleBlock int64     `bson:"last_irreversible_block" json:"last_irreversible_block"`
	UpdatedAt             time.Time `bson:"updated_at" json:"updated_at"`
}

// CurationCheckpoint records the running reward totals for an account plus
// the opaque checkpoint marker supplied by the caller of the last successful
// computation. Checkpoint ordering across calls is caller-enforced; the
// calculator merges unconditionally.
type CurationCheckpoint struct {
	Account            string    `bson:"account" json:"account"`
	LastCheckpoint     string    `bson:"last_checkpoint" json:"last_checkpoint"`
	AccumulatedSP      float64   `bson:"accumulated_sp" json:"accumulated_sp"`
	AccumulatedRshares float64   `bson:"accumulated_rshares" json:"accumulated_rshares"`
	UpdatedAt          time.Time `bson:"updated_at" json:"updated_at"`
}

// OperationPage is a paginated slice of an account's operation history.
type OperationPage struct {
	Operations []AccountOperation `json:"operations"`
	Total      int64              `json:"total"`
	Page       int                `json:"page"`
	PageSize   int                `json:"page_size"`
	TotalPages int                `json:"total_pages"`
	HasMore    bool               `json:"has_more"`
}
