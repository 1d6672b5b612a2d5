package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bitfantasy/lumi-atelier/internal/atelier/entity"
	"github.com/bitfantasy/lumi-atelier/internal/atelier/repository"
	"github.com/google/uuid"
)

// InvoiceService 发票协作方 —— 支付网关侧信道事件落库，
// 状态机只通过它做"该请求是否已有发票"的只读判断
type InvoiceService struct {
	repo *repository.InvoiceRepository
}

// NewInvoiceService 创建发票服务
func NewInvoiceService(repos *repository.Repositories) *InvoiceService {
	return &InvoiceService{repo: repos.Invoice}
}

func validInvoiceKind(kind string) bool {
	switch kind {
	case entity.InvoiceKindDepositDesign, entity.InvoiceKindDepositProduction, entity.InvoiceKindFinal:
		return true
	}
	return false
}

// Record 记录一笔已确认的支付
func (s *InvoiceService) Record(ctx context.Context, requestID, kind string, amount float64) (*entity.Invoice, error) {
	if !validInvoiceKind(kind) {
		return nil, fmt.Errorf("%w: 未知发票类型 %q", ErrValidation, kind)
	}
	if amount < 0 {
		return nil, fmt.Errorf("%w: 发票金额不能为负", ErrValidation)
	}
	inv := &entity.Invoice{
		ID:        uuid.New().String(),
		RequestID: requestID,
		Kind:      kind,
		Amount:    amount,
		IssuedAt:  time.Now(),
		CreatedAt: time.Now(),
	}
	if err := s.repo.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("记录发票失败: %w", err)
	}
	return inv, nil
}

// Exists 请求是否已有某类型发票
func (s *InvoiceService) Exists(ctx context.Context, requestID, kind string) (bool, error) {
	return s.repo.ExistsByKind(ctx, requestID, kind)
}

// LatestFinal 最新的尾款发票（保修起始日取它的开票日期）
func (s *InvoiceService) LatestFinal(ctx context.Context, requestID string) (*entity.Invoice, error) {
	return s.repo.FindLatestByKind(ctx, requestID, entity.InvoiceKindFinal)
}

// ListByRequest 请求的全部发票
func (s *InvoiceService) ListByRequest(ctx context.Context, requestID string) ([]entity.Invoice, error) {
	return s.repo.ListByRequest(ctx, requestID)
}
