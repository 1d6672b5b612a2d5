package handler

import (
	"net/http"

	"github.com/bitfantasy/lumi-atelier/internal/atelier/entity"
	"github.com/bitfantasy/lumi-atelier/internal/middleware"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes 注册全部路由，主程序与测试共用
func RegisterRoutes(r *gin.Engine, h *Handlers, jwtSecret string) {
	// 健康检查
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	authorized := v1.Group("")
	authorized.Use(middleware.JWTAuth(jwtSecret))
	{
		// 定制请求全流程
		requests := authorized.Group("/requests")
		{
			requests.POST("", h.Request.Create)
			requests.GET("", h.Request.List)
			requests.GET("/export", middleware.RequireRole(entity.RoleManager), h.Request.Export)
			requests.GET("/:id", h.Request.Get)
			requests.GET("/:id/history", h.Request.History)
			requests.GET("/:id/feedback", h.Request.Feedback)
			requests.GET("/:id/invoices", h.Request.Invoices)

			requests.POST("/:id/assignments", h.Request.AssignStaff)
			requests.DELETE("/:id/assignments/:staffId", h.Request.RemoveStaff)
			requests.POST("/:id/finish-assignment", h.Request.FinishAssignment)

			requests.POST("/:id/quote", h.Request.SubmitQuote)
			requests.POST("/:id/quote/accept", h.Request.AcceptQuote)
			requests.POST("/:id/quote/reject", h.Request.RejectQuote)

			requests.POST("/:id/deposit", h.Request.ConfirmDeposit)
			requests.POST("/:id/payment", h.Request.RecordFinalPayment)

			requests.POST("/:id/design/start", h.Request.StartDesign)
			requests.POST("/:id/design/submit", h.Request.SubmitDesign)
			requests.POST("/:id/production", h.Request.SubmitProduction)
			requests.POST("/:id/production/complete", h.Request.CompleteProduction)

			requests.POST("/:id/warranty", h.Request.SubmitWarranty)
			requests.POST("/:id/complete", h.Request.Complete)
			requests.POST("/:id/cancel", h.Request.Cancel)
		}

		// 目录：宝石 / 材质 / 首饰
		gemstones := authorized.Group("/gemstones")
		{
			gemstones.POST("", middleware.RequireRole(entity.RoleManager), h.Catalog.CreateGemstone)
			gemstones.GET("", h.Catalog.ListGemstones)
			gemstones.GET("/:id", h.Catalog.GetGemstone)
		}

		materials := authorized.Group("/materials")
		{
			materials.POST("", middleware.RequireRole(entity.RoleManager), h.Catalog.CreateMaterial)
			materials.GET("", h.Catalog.ListMaterials)
			materials.GET("/:id", h.Catalog.GetMaterial)
		}

		authorized.GET("/jewelries/:id", h.Catalog.GetJewelry)
	}
}
