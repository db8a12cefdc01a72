package credits

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"carbon-market/marketplace/marketplace-backend/pkg/workflows"
)

// ReqStatus is the audit state of a credit.
type ReqStatus int

// ReqStatusPending is the status every credit is created with.
const ReqStatusPending ReqStatus = 1

// Credit is a unit of carbon offset owned by the NGO that created it.
type Credit struct {
	ID        int64         `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name      string        `gorm:"not null" json:"name"`
	Amount    int64         `gorm:"not null" json:"amount"`
	Price     float64       `gorm:"not null" json:"price"`
	CreatorID int64         `gorm:"index;not null" json:"creator"`
	DocuURL   string        `gorm:"not null" json:"secure_url"`
	Auditors  pq.Int64Array `gorm:"type:bigint[]" json:"auditors"`
	ReqStatus ReqStatus     `gorm:"not null;default:1" json:"req_status"`
	IsActive  bool          `gorm:"not null" json:"is_active"`
	IsExpired bool          `gorm:"not null" json:"is_expired"`
	CreatedAt time.Time     `json:"created_at"`
}

// LifecycleState maps the stored flags onto the credit lifecycle.
func (c *Credit) LifecycleState() string {
	if c.IsExpired {
		return workflows.CreditExpired
	}
	return workflows.CreditActive
}

// Request is the audit ticket created together with its Credit.
type Request struct {
	ID        uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	CreditID  int64         `gorm:"uniqueIndex;not null" json:"credit_id"`
	CreatorID int64         `gorm:"index;not null" json:"creator_id"`
	Auditors  pq.Int64Array `gorm:"type:bigint[]" json:"auditors"`
	CreatedAt time.Time     `json:"created_at"`
}

// PurchasedCredit links a sold credit to its buyer.
type PurchasedCredit struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	CreditID    int64     `gorm:"index;not null" json:"credit_id"`
	BuyerID     int64     `gorm:"index;not null" json:"buyer_id"`
	Amount      int64     `gorm:"not null" json:"amount"`
	IsExpired   bool      `gorm:"not null" json:"is_expired"`
	PurchasedAt time.Time `json:"purchased_at"`
}

// Capacity is the read-only answer to "are there enough auditors for this amount".
type Capacity struct {
	Amount     int64 `json:"-"`
	Available  int   `json:"available_auditors"`
	Required   int   `json:"required_auditors"`
	Sufficient bool  `json:"-"`
}

// CreateCreditInput is the body of POST /api/NGO/credits. Every field is required.
type CreateCreditInput struct {
	CreditID  *int64   `json:"creditId"`
	Name      *string  `json:"name"`
	Amount    *int64   `json:"amount"`
	Price     *float64 `json:"price"`
	SecureURL *string  `json:"secure_url"`

	// decodeErr carries the bind failure of the request body, if any.
	decodeErr string
}
