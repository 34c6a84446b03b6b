package query

import (
	"time"

	"github.com/google/uuid"
)

// BalanceResponse is a user's settlement balance for API queries.
// AsOfSequence is the projection watermark at read time; live balances
// come from the engine, this is the eventually consistent read model.
type BalanceResponse struct {
	UserID       uuid.UUID `json:"user_id"`
	Asset        string    `json:"asset"`
	Balance      int64     `json:"balance"`
	AsOfSequence int64     `json:"as_of_sequence"`
}

// MarketResponse is a market's public state for API queries.
type MarketResponse struct {
	MarketID     int64  `json:"market_id"`
	Pool         int64  `json:"pool"`
	Liquidity    int64  `json:"liquidity"`
	YesSupply    int64  `json:"yes_supply"`
	NoSupply     int64  `json:"no_supply"`
	Status       string `json:"status"`
	Outcome      string `json:"outcome"`
	MaxTrade     int64  `json:"max_trade"`
	AsOfSequence int64  `json:"as_of_sequence"`
}

// TradeResponse is one settled purchase from the trade feed.
type TradeResponse struct {
	Sequence  int64     `json:"sequence"`
	MarketID  int64     `json:"market_id"`
	AccountID uuid.UUID `json:"account_id"`
	Side      string    `json:"side"`
	Amount    int64     `json:"amount"`
	Cost      int64     `json:"cost"`
	FeeTotal  int64     `json:"fee_total"`
	Total     int64     `json:"total"`
	Timestamp time.Time `json:"timestamp"`
}

// JournalHistoryEntry is a journal entry for API queries.
type JournalHistoryEntry struct {
	JournalID     string `json:"journal_id"`
	BatchID       string `json:"batch_id"`
	EventRef      string `json:"event_ref"`
	Sequence      int64  `json:"sequence"`
	DebitAccount  string `json:"debit_account"`
	CreditAccount string `json:"credit_account"`
	AssetID       uint16 `json:"asset_id"`
	Amount        int64  `json:"amount"`
	JournalType   int32  `json:"journal_type"`
	Timestamp     int64  `json:"timestamp"`
}

// IntegrityReport is the result of an integrity verification check.
type IntegrityReport struct {
	IsHealthy        bool              `json:"is_healthy"`
	HashChainBreaks  []int64           `json:"hash_chain_breaks,omitempty"`
	UnbalancedAssets []UnbalancedAsset `json:"unbalanced_assets,omitempty"`
}

// UnbalancedAsset is an asset whose global balance sum is non-zero.
type UnbalancedAsset struct {
	AssetID   uint16 `json:"asset_id"`
	Imbalance int64  `json:"imbalance"`
}
