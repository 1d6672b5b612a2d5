package repository

import (
	"context"

	"github.com/bitfantasy/lumi-atelier/internal/atelier/entity"
	"gorm.io/gorm"
)

// RequestRepository 定制请求仓库
type RequestRepository struct {
	db *gorm.DB
}

func NewRequestRepository(db *gorm.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create 创建请求
func (r *RequestRepository) Create(ctx context.Context, req *entity.CustomRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

// FindByID 按ID查找请求
func (r *RequestRepository) FindByID(ctx context.Context, id string) (*entity.CustomRequest, error) {
	var req entity.CustomRequest
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&req).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &req, nil
}

// FindDetail 按ID查找请求，带历史/指派/反馈
func (r *RequestRepository) FindDetail(ctx context.Context, id string) (*entity.CustomRequest, error) {
	var req entity.CustomRequest
	err := r.db.WithContext(ctx).
		Preload("History", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		Preload("Assignments").
		Preload("Feedback", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		Preload("Jewelry").
		Where("id = ?", id).
		First(&req).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &req, nil
}

// RequestListParams 列表过滤参数
type RequestListParams struct {
	CustomerID string
	Status     string
	Limit      int
}

// List 查询请求列表
func (r *RequestRepository) List(ctx context.Context, params RequestListParams) ([]entity.CustomRequest, error) {
	q := r.db.WithContext(ctx).Model(&entity.CustomRequest{})
	if params.CustomerID != "" {
		q = q.Where("customer_id = ?", params.CustomerID)
	}
	if params.Status != "" {
		q = q.Where("status = ?", params.Status)
	}
	if params.Limit > 0 {
		q = q.Limit(params.Limit)
	}
	var reqs []entity.CustomRequest
	if err := q.Order("created_at DESC").Find(&reqs).Error; err != nil {
		return nil, err
	}
	return reqs, nil
}

// ListHistory 查询状态历史（按追加顺序）
func (r *RequestRepository) ListHistory(ctx context.Context, requestID string) ([]entity.StatusHistory, error) {
	var entries []entity.StatusHistory
	err := r.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("created_at ASC, id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// ListFeedback 查询某来源的报价反馈（按追加顺序）
func (r *RequestRepository) ListFeedback(ctx context.Context, requestID, source string) ([]entity.QuoteFeedback, error) {
	var entries []entity.QuoteFeedback
	q := r.db.WithContext(ctx).Where("request_id = ?", requestID)
	if source != "" {
		q = q.Where("source = ?", source)
	}
	if err := q.Order("created_at ASC, id ASC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
