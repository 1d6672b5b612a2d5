package handler

import (
	"github.com/bitfantasy/lumi-atelier/internal/atelier/service"
	"github.com/gin-gonic/gin"
)

// CatalogHandler 宝石、材质、首饰目录处理器
type CatalogHandler struct {
	svc *service.CatalogService
}

func NewCatalogHandler(svc *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{svc: svc}
}

// CreateGemstone 录入宝石
// POST /api/v1/gemstones
func (h *CatalogHandler) CreateGemstone(c *gin.Context) {
	var input service.CreateGemstoneInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	g, err := h.svc.CreateGemstone(c.Request.Context(), &input)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, g)
}

// ListGemstones 宝石列表，available=true 只看可用库存
// GET /api/v1/gemstones
func (h *CatalogHandler) ListGemstones(c *gin.Context) {
	onlyAvailable := c.Query("available") == "true"
	items, err := h.svc.ListGemstones(c.Request.Context(), onlyAvailable)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{"items": items})
}

// GetGemstone 宝石详情
// GET /api/v1/gemstones/:id
func (h *CatalogHandler) GetGemstone(c *gin.Context) {
	g, err := h.svc.GetGemstone(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, g)
}

// CreateMaterial 录入材质
// POST /api/v1/materials
func (h *CatalogHandler) CreateMaterial(c *gin.Context) {
	var input service.CreateMaterialInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	m, err := h.svc.CreateMaterial(c.Request.Context(), &input)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, m)
}

// ListMaterials 材质列表
// GET /api/v1/materials
func (h *CatalogHandler) ListMaterials(c *gin.Context) {
	items, err := h.svc.ListMaterials(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{"items": items})
}

// GetMaterial 材质详情
// GET /api/v1/materials/:id
func (h *CatalogHandler) GetMaterial(c *gin.Context) {
	m, err := h.svc.GetMaterial(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, m)
}

// GetJewelry 首饰详情（含绑定宝石与材质）
// GET /api/v1/jewelries/:id
func (h *CatalogHandler) GetJewelry(c *gin.Context) {
	detail, err := h.svc.GetJewelry(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, detail)
}
