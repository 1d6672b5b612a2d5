package entity

import "time"

// 发票类型
const (
	InvoiceKindDepositDesign     = "deposit_design"
	InvoiceKindDepositProduction = "deposit_production"
	InvoiceKindFinal             = "final"
)

// Invoice 发票 —— 由支付侧信道写入，payment→warranty 的前置条件只读查询它
type Invoice struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	RequestID string    `json:"request_id" gorm:"size:36;not null;index"`
	Kind      string    `json:"kind" gorm:"size:24;not null"`
	Amount    float64   `json:"amount" gorm:"type:decimal(12,2);not null;default:0"`
	IssuedAt  time.Time `json:"issued_at" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
}

func (Invoice) TableName() string {
	return "invoices"
}
