package agreement

import (
	"time"

	"gorm.io/datatypes"
)

// Record is the downstream system's row for one agreement.
type Record struct {
	ID                string          `gorm:"type:varchar(64);primaryKey" json:"id"`
	ProductCode       string          `gorm:"column:product_code;not null;index" json:"product_code"`
	CustomerReference string          `gorm:"column:customer_reference;not null;index" json:"customer_reference"`
	Coverages         datatypes.JSON  `gorm:"column:coverages" json:"coverages"`
	StartDate         *datatypes.Date `gorm:"column:start_date" json:"start_date,omitempty"`

	// DRAFT|PRICED|ACTIVE|SENT|CANCELLED
	Status    string `gorm:"column:status;not null;index" json:"status"`
	Enriched  bool   `gorm:"column:enriched;not null;default:false" json:"enriched"`
	RiskScore int    `gorm:"column:risk_score;not null;default:0" json:"risk_score"`
	Premium   int64  `gorm:"column:premium;not null;default:0" json:"premium"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Record) TableName() string { return "agreement" }

// Transition is one status change of a Record, appended in the same
// transaction as the change itself.
type Transition struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	AgreementID string    `gorm:"type:varchar(64);not null;index" json:"agreement_id"`
	FromStatus  string    `gorm:"column:from_status" json:"from_status"`
	ToStatus    string    `gorm:"column:to_status;not null" json:"to_status"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
}

func (Transition) TableName() string { return "agreement_transition" }
