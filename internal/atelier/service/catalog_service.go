package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bitfantasy/lumi-atelier/internal/atelier/entity"
	"github.com/bitfantasy/lumi-atelier/internal/atelier/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CatalogService 品目适配层 —— 首饰/宝石/材质记录的读写入口。
// 宝石的 available 标志不在这里改，归分配台账独占。
type CatalogService struct {
	jewelryRepo  *repository.JewelryRepository
	gemstoneRepo *repository.GemstoneRepository
	materialRepo *repository.MaterialRepository
}

// NewCatalogService 创建品目服务
func NewCatalogService(repos *repository.Repositories) *CatalogService {
	return &CatalogService{
		jewelryRepo:  repos.Jewelry,
		gemstoneRepo: repos.Gemstone,
		materialRepo: repos.Material,
	}
}

// withTx 返回一份绑定到调用方事务的副本
func (s *CatalogService) withTx(tx *gorm.DB) *CatalogService {
	return &CatalogService{
		jewelryRepo:  repository.NewJewelryRepository(tx),
		gemstoneRepo: repository.NewGemstoneRepository(tx),
		materialRepo: repository.NewMaterialRepository(tx),
	}
}

// SaveJewelryInput 保存首饰的载荷，宝石归属单独走台账绑定
type SaveJewelryInput struct {
	ID             string  `json:"id"`
	Name           string  `json:"name" binding:"required"`
	MaterialID     string  `json:"material_id" binding:"required"`
	MaterialWeight float64 `json:"material_weight"`
}

// SaveJewelry 创建或更新首饰属性。带 ID 且已存在则更新，
// 带 ID 但不存在则按该 ID 创建（调用方可提前定好 ID）。
func (s *CatalogService) SaveJewelry(ctx context.Context, input *SaveJewelryInput) (*entity.Jewelry, error) {
	if input.MaterialWeight < 0 {
		return nil, fmt.Errorf("%w: 材质克重不能为负", ErrValidation)
	}
	if _, err := s.materialRepo.FindByID(ctx, input.MaterialID); err != nil {
		if err == repository.ErrNotFound {
			return nil, fmt.Errorf("%w: 材质 %s 不存在", ErrValidation, input.MaterialID)
		}
		return nil, err
	}

	if input.ID != "" {
		j, err := s.jewelryRepo.FindByID(ctx, input.ID)
		switch {
		case err == nil:
			j.Name = input.Name
			j.MaterialID = input.MaterialID
			j.MaterialWeight = input.MaterialWeight
			if err := s.jewelryRepo.Update(ctx, j); err != nil {
				return nil, fmt.Errorf("更新首饰失败: %w", err)
			}
			return j, nil
		case err != repository.ErrNotFound:
			return nil, err
		}
	}

	j := &entity.Jewelry{
		ID:             input.ID,
		Name:           input.Name,
		MaterialID:     input.MaterialID,
		MaterialWeight: input.MaterialWeight,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	if j.ID == "" {
		j.ID = uuid.New().String()
	}
	if err := s.jewelryRepo.Create(ctx, j); err != nil {
		return nil, fmt.Errorf("创建首饰失败: %w", err)
	}
	return j, nil
}

// JewelryDetail 首饰组合视图：属性 + 当前绑定的宝石 + 材质
type JewelryDetail struct {
	Jewelry  *entity.Jewelry   `json:"jewelry"`
	Mains    []entity.Gemstone `json:"main_gemstones"`
	Subs     []entity.Gemstone `json:"sub_gemstones"`
	Material *entity.Material  `json:"material"`
}

// GetJewelry 读取首饰及其绑定明细
func (s *CatalogService) GetJewelry(ctx context.Context, id string) (*JewelryDetail, error) {
	j, err := s.jewelryRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	bound, err := s.gemstoneRepo.ListByJewelry(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := &JewelryDetail{Jewelry: j, Material: j.Material}
	for _, g := range bound {
		if g.Kind == entity.GemstoneKindSub {
			detail.Subs = append(detail.Subs, g)
		} else {
			detail.Mains = append(detail.Mains, g)
		}
	}
	return detail, nil
}

// UpdateJewelryPrice 写回派生价格（只在报价流程内调用）
func (s *CatalogService) UpdateJewelryPrice(ctx context.Context, id string, price float64) error {
	j, err := s.jewelryRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	j.Price = price
	return s.jewelryRepo.Update(ctx, j)
}

// MarkFinalized 设计定稿标记
func (s *CatalogService) MarkFinalized(ctx context.Context, id string) error {
	j, err := s.jewelryRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	j.Finalized = true
	return s.jewelryRepo.Update(ctx, j)
}

// CreateGemstoneInput 创建宝石载荷
type CreateGemstoneInput struct {
	Name  string  `json:"name" binding:"required"`
	Price float64 `json:"price"`
}

// CreateGemstone 录入宝石
func (s *CatalogService) CreateGemstone(ctx context.Context, input *CreateGemstoneInput) (*entity.Gemstone, error) {
	if input.Price < 0 {
		return nil, fmt.Errorf("%w: 宝石价格不能为负", ErrValidation)
	}
	g := &entity.Gemstone{
		ID:        uuid.New().String(),
		Name:      input.Name,
		Price:     input.Price,
		Available: true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := s.gemstoneRepo.Create(ctx, g); err != nil {
		return nil, fmt.Errorf("创建宝石失败: %w", err)
	}
	return g, nil
}

// ListGemstones 宝石列表
func (s *CatalogService) ListGemstones(ctx context.Context, onlyAvailable bool) ([]entity.Gemstone, error) {
	return s.gemstoneRepo.List(ctx, repository.GemstoneListParams{OnlyAvailable: onlyAvailable})
}

// GetGemstone 读取宝石
func (s *CatalogService) GetGemstone(ctx context.Context, id string) (*entity.Gemstone, error) {
	return s.gemstoneRepo.FindByID(ctx, id)
}

// CreateMaterialInput 创建材质载荷
type CreateMaterialInput struct {
	Name      string  `json:"name" binding:"required"`
	SellPrice float64 `json:"sell_price"`
}

// CreateMaterial 录入材质
func (s *CatalogService) CreateMaterial(ctx context.Context, input *CreateMaterialInput) (*entity.Material, error) {
	if input.SellPrice < 0 {
		return nil, fmt.Errorf("%w: 材质单价不能为负", ErrValidation)
	}
	m := &entity.Material{
		ID:        uuid.New().String(),
		Name:      input.Name,
		SellPrice: input.SellPrice,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := s.materialRepo.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("创建材质失败: %w", err)
	}
	return m, nil
}

// ListMaterials 材质列表
func (s *CatalogService) ListMaterials(ctx context.Context) ([]entity.Material, error) {
	return s.materialRepo.List(ctx)
}

// GetMaterial 读取材质
func (s *CatalogService) GetMaterial(ctx context.Context, id string) (*entity.Material, error) {
	return s.materialRepo.FindByID(ctx, id)
}
