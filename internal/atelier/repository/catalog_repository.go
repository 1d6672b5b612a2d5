package repository

import (
	"context"

	"github.com/bitfantasy/lumi-atelier/internal/atelier/entity"
	"gorm.io/gorm"
)

// GemstoneRepository 宝石仓库
type GemstoneRepository struct {
	db *gorm.DB
}

func NewGemstoneRepository(db *gorm.DB) *GemstoneRepository {
	return &GemstoneRepository{db: db}
}

func (r *GemstoneRepository) Create(ctx context.Context, g *entity.Gemstone) error {
	return r.db.WithContext(ctx).Create(g).Error
}

func (r *GemstoneRepository) FindByID(ctx context.Context, id string) (*entity.Gemstone, error) {
	var g entity.Gemstone
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&g).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &g, nil
}

// FindByIDs 批量查找，调用方自行核对缺失
func (r *GemstoneRepository) FindByIDs(ctx context.Context, ids []string) ([]entity.Gemstone, error) {
	var list []entity.Gemstone
	if len(ids) == 0 {
		return list, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// ListByJewelry 查询当前绑定到某首饰的宝石
func (r *GemstoneRepository) ListByJewelry(ctx context.Context, jewelryID string) ([]entity.Gemstone, error) {
	var list []entity.Gemstone
	err := r.db.WithContext(ctx).
		Where("jewelry_id = ?", jewelryID).
		Order("kind ASC, created_at ASC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

// GemstoneListParams 宝石列表过滤
type GemstoneListParams struct {
	OnlyAvailable bool
	Limit         int
}

func (r *GemstoneRepository) List(ctx context.Context, params GemstoneListParams) ([]entity.Gemstone, error) {
	q := r.db.WithContext(ctx).Model(&entity.Gemstone{})
	if params.OnlyAvailable {
		q = q.Where("available = ?", true)
	}
	if params.Limit > 0 {
		q = q.Limit(params.Limit)
	}
	var list []entity.Gemstone
	if err := q.Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// MaterialRepository 材质仓库
type MaterialRepository struct {
	db *gorm.DB
}

func NewMaterialRepository(db *gorm.DB) *MaterialRepository {
	return &MaterialRepository{db: db}
}

func (r *MaterialRepository) Create(ctx context.Context, m *entity.Material) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *MaterialRepository) FindByID(ctx context.Context, id string) (*entity.Material, error) {
	var m entity.Material
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &m, nil
}

func (r *MaterialRepository) List(ctx context.Context) ([]entity.Material, error) {
	var list []entity.Material
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// JewelryRepository 首饰仓库
type JewelryRepository struct {
	db *gorm.DB
}

func NewJewelryRepository(db *gorm.DB) *JewelryRepository {
	return &JewelryRepository{db: db}
}

func (r *JewelryRepository) Create(ctx context.Context, j *entity.Jewelry) error {
	return r.db.WithContext(ctx).Create(j).Error
}

func (r *JewelryRepository) Update(ctx context.Context, j *entity.Jewelry) error {
	return r.db.WithContext(ctx).Save(j).Error
}

func (r *JewelryRepository) FindByID(ctx context.Context, id string) (*entity.Jewelry, error) {
	var j entity.Jewelry
	err := r.db.WithContext(ctx).
		Preload("Material").
		Where("id = ?", id).
		First(&j).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &j, nil
}
