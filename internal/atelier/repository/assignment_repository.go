package repository

import (
	"context"

	"github.com/bitfantasy/lumi-atelier/internal/atelier/entity"
	"gorm.io/gorm"
)

// AssignmentRepository 角色指派仓库
type AssignmentRepository struct {
	db *gorm.DB
}

func NewAssignmentRepository(db *gorm.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// Create 创建指派，(request_id, role) 唯一索引兜底并发
func (r *AssignmentRepository) Create(ctx context.Context, a *entity.RoleAssignment) error {
	return r.db.WithContext(ctx).Create(a).Error
}

// FindByRequestRole 查找请求上某角色槽位的指派
func (r *AssignmentRepository) FindByRequestRole(ctx context.Context, requestID, role string) (*entity.RoleAssignment, error) {
	var a entity.RoleAssignment
	err := r.db.WithContext(ctx).
		Where("request_id = ? AND role = ?", requestID, role).
		First(&a).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &a, nil
}

// FindByRequestStaff 查找某员工在请求上的指派
func (r *AssignmentRepository) FindByRequestStaff(ctx context.Context, requestID, staffID string) (*entity.RoleAssignment, error) {
	var a entity.RoleAssignment
	err := r.db.WithContext(ctx).
		Where("request_id = ? AND staff_id = ?", requestID, staffID).
		First(&a).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &a, nil
}

// ListByRequest 查询请求上的全部指派
func (r *AssignmentRepository) ListByRequest(ctx context.Context, requestID string) ([]entity.RoleAssignment, error) {
	var list []entity.RoleAssignment
	if err := r.db.WithContext(ctx).Where("request_id = ?", requestID).Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// Delete 删除指派
func (r *AssignmentRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&entity.RoleAssignment{}, "id = ?", id).Error
}

// CountDistinctRoles 统计请求上已占用的角色槽位数量
func (r *AssignmentRepository) CountDistinctRoles(ctx context.Context, requestID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.RoleAssignment{}).
		Where("request_id = ?", requestID).
		Distinct("role").
		Count(&count).Error
	return count, err
}
