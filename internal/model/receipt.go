package model

import (
	"encoding/json"

	"github.com/cogniseal/cogniseal-ledger/internal/chain"
)

const (
	ReceiptStatusFailed  uint8 = 0
	ReceiptStatusSuccess uint8 = 1
)

// Log is an event emitted by a transaction. Topics[0] identifies the event;
// indexed arguments follow as 32-byte words. Non-indexed arguments are
// carried as a JSON object in Data.
type Log struct {
	Address     chain.Address   `json:"address"`
	Topics      []chain.Hash    `json:"topics"`
	Data        json.RawMessage `json:"data"`
	BlockNumber uint64          `json:"block_number"`
	Timestamp   int64           `json:"block_timestamp"`
	TxHash      chain.Hash      `json:"transaction_hash"`
	LogIndex    uint32          `json:"log_index"`
}

// Receipt is the outcome of a mined transaction.
type Receipt struct {
	TxHash      chain.Hash    `json:"transaction_hash"`
	BlockNumber uint64        `json:"block_number"`
	Timestamp   int64         `json:"block_timestamp"`
	From        chain.Address `json:"from"`
	To          chain.Address `json:"to"`
	Method      string        `json:"method"`
	Status      uint8         `json:"status"`
	Logs        []Log         `json:"logs"`
}

// LogFilter selects logs. A nil topic matches anything in that position.
// ToBlock zero means the chain head.
type LogFilter struct {
	Topics    [4]*chain.Hash
	FromBlock uint64
	ToBlock   uint64
	Limit     int
}

// Matches reports whether l satisfies the topic and block constraints.
func (f LogFilter) Matches(l Log) bool {
	if l.BlockNumber < f.FromBlock || (f.ToBlock != 0 && l.BlockNumber > f.ToBlock) {
		return false
	}
	for i, want := range f.Topics {
		if want == nil {
			continue
		}
		if i >= len(l.Topics) || l.Topics[i] != *want {
			return false
		}
	}
	return true
}
