package database

import (
	"database/sql"
	"time"
)

// StatusActivated marks a voucher this process redeemed.
const StatusActivated = "activated"

// Redemption is a ledger entry for a successfully redeemed voucher.
// CheckCode is unique: the first account to record a code wins.
type Redemption struct {
	ID          int64           `db:"id"`
	CheckCode   string          `db:"check_code"`
	BotKind     string          `db:"bot_kind"`
	Amount      sql.NullFloat64 `db:"amount"`
	Currency    string          `db:"currency"`
	ActivatedBy string          `db:"activated_by"`
	SourceChat  string          `db:"source_chat"`
	MessageID   int64           `db:"message_id"`
	ActivatedAt time.Time       `db:"activated_at"`
	Status      string          `db:"status"`
}

// AccountStats is the running total for one account and bot kind.
type AccountStats struct {
	ID          int64     `db:"id"`
	AccountID   string    `db:"account_id"`
	BotKind     string    `db:"bot_kind"`
	ChecksCount int64     `db:"checks_count"`
	TotalAmount float64   `db:"total_amount"`
	Currency    string    `db:"currency"`
	LastUpdated time.Time `db:"last_updated"`
}

// KindAggregate summarises all accounts for one bot kind.
type KindAggregate struct {
	BotKind        string  `db:"bot_kind"`
	TotalCount     int64   `db:"total_count"`
	TotalAmount    float64 `db:"total_amount"`
	UniqueAccounts int64   `db:"unique_accounts"`
}
