package sync

import (
	"time"

	"github.com/ety001/steem-account-watcher/internal/models"
	"github.com/ety001/steem-account-watcher/internal/steem"
)

// blockTimeLayout is the timestamp format condenser_api uses in blocks.
const blockTimeLayout = "2006-01-02T15:04:05"

// BlockProcessor extracts tracked-account operations from raw blocks and
// normalizes them into AccountOperation records. One chain operation can
// produce several records when it names several tracked accounts (e.g. a
// transfer between two watched accounts); the dedup key includes the
// account, so the fanout stays idempotent.
type BlockProcessor struct {
	accounts map[string]bool
	trackAll bool
}

// NewBlockProcessor creates a processor tracking the given accounts. With
// trackAll set, every acting account is ingested and the accounts list is
// ignored.
func NewBlockProcessor(accounts []string, trackAll bool) *BlockProcessor {
	accountMap := make(map[string]bool, len(accounts))
	for _, account := range accounts {
		accountMap[account] = true
	}
	return &BlockProcessor{
		accounts: accountMap,
		trackAll: trackAll,
	}
}

// Extract returns the AccountOperation records for every tracked account
// acting in the block, in chain order: transaction order within the block,
// then operation order within the transaction.
func (bp *BlockProcessor) Extract(block *steem.Block, blockNum int64) []*models.AccountOperation {
	blockTime, err := time.Parse(blockTimeLayout, block.Timestamp)
	if err != nil {
		blockTime, err = time.Parse(time.RFC3339, block.Timestamp)
		if err != nil {
			blockTime = time.Now().UTC()
		}
	}

	var operations []*models.AccountOperation

	for txIdx, tx := range block.Transactions {
		trxID := tx.TransactionID
		if trxID == "" && txIdx < len(block.TransactionIds) {
			trxID = block.TransactionIds[txIdx]
		}

		for opIdx, rawOp := range tx.Operations {
			// Operations are in format: [type, data]
			opArray, ok := rawOp.([]interface{})
			if !ok || len(opArray) < 2 {
				continue
			}

			opType, ok := opArray[0].(string)
			if !ok {
				continue
			}

			opData, ok := opArray[1].(map[string]interface{})
			if !ok {
				continue
			}

			for _, account := range bp.matchAccounts(opData) {
				operations = append(operations, &models.AccountOperation{
					Account:   account,
					BlockNum:  blockNum,
					TrxID:     trxID,
					OpInTrx:   opIdx,
					OpType:    opType,
					OpData:    opData,
					Timestamp: blockTime,
				})
			}
		}
	}

	return operations
}

// matchAccounts returns the tracked accounts acting in an operation.
func (bp *BlockProcessor) matchAccounts(opData map[string]interface{}) []string {
	var matched []string
	seen := make(map[string]bool)

	for _, candidate := range extractActors(opData) {
		if candidate == "" || seen[candidate] {
			continue
		}
		if !bp.trackAll && !bp.accounts[candidate] {
			continue
		}
		seen[candidate] = true
		matched = append(matched, candidate)
	}

	return matched
}

// actorFields are the operation payload fields that name an acting account,
// in precedence order.
var actorFields = []string{
	"account", "from", "to", "owner", "author", "voter",
	"delegator", "delegatee", "creator", "new_account_name",
}

func extractActors(opData map[string]interface{}) []string {
	var actors []string
	for _, field := range actorFields {
		if account, ok := opData[field].(string); ok && account != "" {
			actors = append(actors, account)
		}
	}
	return actors
}
