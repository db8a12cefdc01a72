package ledger

import (
	"time"

	"gorm.io/datatypes"
)

// Transaction is an append-only record of a completed purchase.
type Transaction struct {
	ID         int64          `gorm:"primaryKey" json:"id" db:"id"`
	BuyerID    int64          `gorm:"index;not null" json:"buyer" db:"buyer_id"`
	CreditID   int64          `gorm:"index;not null" json:"credit" db:"credit_id"`
	Amount     int64          `gorm:"not null" json:"amount" db:"amount"`
	TotalPrice float64        `gorm:"not null" json:"total_price" db:"total_price"`
	Timestamp  time.Time      `gorm:"index;not null" json:"timestamp" db:"timestamp"`
	TxnHash    string         `gorm:"size:66" json:"txn_hash" db:"txn_hash"`
	Receipt    datatypes.JSON `json:"receipt,omitempty" db:"receipt"`
}

func (Transaction) TableName() string {
	return "transactions"
}
