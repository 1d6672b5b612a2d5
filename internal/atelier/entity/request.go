package entity

import (
	"time"
)

// RequestStatus 定制请求状态
const (
	RequestStatusPending           = "pending"
	RequestStatusAssigned          = "assigned"
	RequestStatusQuote             = "quote"
	RequestStatusAccepted          = "accepted"
	RequestStatusDepositDesign     = "deposit_design"
	RequestStatusDesign            = "design"
	RequestStatusDesignCompleted   = "design_completed"
	RequestStatusDepositProduction = "deposit_production"
	RequestStatusProduction        = "production"
	RequestStatusPayment           = "payment"
	RequestStatusWarranty          = "warranty"
	RequestStatusCompleted         = "completed"
	RequestStatusCancelled         = "cancelled"
)

// FeedbackSource 报价反馈来源
const (
	FeedbackSourceManager  = "manager"
	FeedbackSourceCustomer = "customer"
)

// CustomRequest 定制请求实体 —— 客户的定制首饰订单，贯穿整个生命周期状态机
type CustomRequest struct {
	ID              string     `json:"id" gorm:"primaryKey;size:36"`
	CustomerID      string     `json:"customer_id" gorm:"size:36;not null;index"`
	Description     string     `json:"description" gorm:"type:text;not null"`
	JewelryID       *string    `json:"jewelry_id" gorm:"size:36"`
	Status          string     `json:"status" gorm:"size:24;not null;default:pending"`
	QuoteContent    string     `json:"quote_content" gorm:"type:text"`
	QuoteAmount     float64    `json:"quote_amount" gorm:"type:decimal(12,2);default:0"`
	ProductionCost  float64    `json:"production_cost" gorm:"type:decimal(12,2);default:0"`
	ProductionStart *time.Time `json:"production_start" gorm:"type:date"`
	ProductionEnd   *time.Time `json:"production_end" gorm:"type:date"`
	WarrantyStart   *time.Time `json:"warranty_start" gorm:"type:date"`
	WarrantyEnd     *time.Time `json:"warranty_end" gorm:"type:date"`
	WarrantyYears   int        `json:"warranty_years" gorm:"default:0"`
	WarrantyContent string     `json:"warranty_content" gorm:"type:text"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	// 关联
	Jewelry     *Jewelry         `json:"jewelry,omitempty" gorm:"foreignKey:JewelryID"`
	History     []StatusHistory  `json:"history,omitempty" gorm:"foreignKey:RequestID"`
	Assignments []RoleAssignment `json:"assignments,omitempty" gorm:"foreignKey:RequestID"`
	Feedback    []QuoteFeedback  `json:"feedback,omitempty" gorm:"foreignKey:RequestID"`
}

func (CustomRequest) TableName() string {
	return "custom_requests"
}

// StatusHistory 状态历史 —— 只增不改的审计记录，每次被接受的状态流转追加一条
type StatusHistory struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	RequestID string    `json:"request_id" gorm:"size:36;not null;index"`
	Status    string    `json:"status" gorm:"size:24;not null"`
	CreatedAt time.Time `json:"created_at"`
}

func (StatusHistory) TableName() string {
	return "status_histories"
}

// QuoteFeedback 报价驳回反馈 —— 每轮驳回追加一条，按来源区分经理/客户
type QuoteFeedback struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	RequestID string    `json:"request_id" gorm:"size:36;not null;index"`
	Source    string    `json:"source" gorm:"size:16;not null"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at"`
}

func (QuoteFeedback) TableName() string {
	return "quote_feedbacks"
}
