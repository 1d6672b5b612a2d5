package repository

import (
	"context"

	"github.com/bitfantasy/lumi-atelier/internal/atelier/entity"
	"gorm.io/gorm"
)

// InvoiceRepository 发票仓库
type InvoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

func (r *InvoiceRepository) Create(ctx context.Context, inv *entity.Invoice) error {
	return r.db.WithContext(ctx).Create(inv).Error
}

// ExistsByKind 请求是否已有某类型发票
func (r *InvoiceRepository) ExistsByKind(ctx context.Context, requestID, kind string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Invoice{}).
		Where("request_id = ? AND kind = ?", requestID, kind).
		Count(&count).Error
	return count > 0, err
}

// FindLatestByKind 查找请求最新的某类型发票
func (r *InvoiceRepository) FindLatestByKind(ctx context.Context, requestID, kind string) (*entity.Invoice, error) {
	var inv entity.Invoice
	err := r.db.WithContext(ctx).
		Where("request_id = ? AND kind = ?", requestID, kind).
		Order("issued_at DESC").
		First(&inv).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &inv, nil
}

// ListByRequest 查询请求的全部发票
func (r *InvoiceRepository) ListByRequest(ctx context.Context, requestID string) ([]entity.Invoice, error) {
	var list []entity.Invoice
	err := r.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("issued_at ASC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}
