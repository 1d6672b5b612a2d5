package handler

import (
	"fmt"
	"net/url"
	"time"

	"github.com/bitfantasy/lumi-atelier/internal/atelier/repository"
	"github.com/bitfantasy/lumi-atelier/internal/atelier/service"
	"github.com/gin-gonic/gin"
)

// RequestHandler 定制请求处理器，覆盖从提交到完成的全流程操作
type RequestHandler struct {
	svc   *service.Services
	repos *repository.Repositories
}

func NewRequestHandler(svc *service.Services, repos *repository.Repositories) *RequestHandler {
	return &RequestHandler{svc: svc, repos: repos}
}

// Create 客户提交定制请求
// POST /api/v1/requests
func (h *RequestHandler) Create(c *gin.Context) {
	var req struct {
		Description string `json:"description" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	r, err := h.svc.Workflow.SubmitRequest(c.Request.Context(), GetActor(c), req.Description)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, r)
}

// List 请求列表，客户只能看到自己的请求
// GET /api/v1/requests?status=xxx
func (h *RequestHandler) List(c *gin.Context) {
	items, err := h.svc.Workflow.ListRequests(c.Request.Context(), GetActor(c), c.Query("status"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{"items": items})
}

// Get 请求详情（含历史、指派与反馈）
// GET /api/v1/requests/:id
func (h *RequestHandler) Get(c *gin.Context) {
	r, err := h.svc.Workflow.GetRequest(c.Request.Context(), GetActor(c), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, r)
}

// History 状态流转历史
// GET /api/v1/requests/:id/history
func (h *RequestHandler) History(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.svc.Workflow.GetRequest(c.Request.Context(), GetActor(c), id); err != nil {
		RespondError(c, err)
		return
	}
	items, err := h.repos.Request.ListHistory(c.Request.Context(), id)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{"items": items})
}

// Feedback 报价反馈记录
// GET /api/v1/requests/:id/feedback
func (h *RequestHandler) Feedback(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.svc.Workflow.GetRequest(c.Request.Context(), GetActor(c), id); err != nil {
		RespondError(c, err)
		return
	}
	items, err := h.repos.Request.ListFeedback(c.Request.Context(), id, c.Query("source"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{"items": items})
}

// Invoices 请求的收款记录
// GET /api/v1/requests/:id/invoices
func (h *RequestHandler) Invoices(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.svc.Workflow.GetRequest(c.Request.Context(), GetActor(c), id); err != nil {
		RespondError(c, err)
		return
	}
	items, err := h.svc.Invoice.ListByRequest(c.Request.Context(), id)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{"items": items})
}

// AssignStaff 管理员指派员工到角色槽位
// POST /api/v1/requests/:id/assignments
func (h *RequestHandler) AssignStaff(c *gin.Context) {
	var req struct {
		StaffID string `json:"staff_id" binding:"required"`
		Role    string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	a, err := h.svc.Workflow.AssignStaff(c.Request.Context(), GetActor(c), c.Param("id"), req.StaffID, req.Role)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, a)
}

// RemoveStaff 管理员撤销指派
// DELETE /api/v1/requests/:id/assignments/:staffId
func (h *RequestHandler) RemoveStaff(c *gin.Context) {
	err := h.svc.Workflow.RemoveStaff(c.Request.Context(), GetActor(c), c.Param("id"), c.Param("staffId"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, nil)
}

// FinishAssignment 三个槽位齐备后流转到 assigned
// POST /api/v1/requests/:id/finish-assignment
func (h *RequestHandler) FinishAssignment(c *gin.Context) {
	r, err := h.svc.Workflow.FinishAssignment(c.Request.Context(), GetActor(c), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, r)
}

// SubmitQuote 销售提交报价
// POST /api/v1/requests/:id/quote
func (h *RequestHandler) SubmitQuote(c *gin.Context) {
	var input service.SubmitQuoteInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	r, err := h.svc.Workflow.SubmitQuote(c.Request.Context(), GetActor(c), c.Param("id"), &input)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, r)
}

// AcceptQuote 客户或管理员通过报价
// POST /api/v1/requests/:id/quote/accept
func (h *RequestHandler) AcceptQuote(c *gin.Context) {
	r, err := h.svc.Workflow.AcceptQuote(c.Request.Context(), GetActor(c), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, r)
}

// RejectQuote 驳回报价并附反馈，回到 pending
// POST /api/v1/requests/:id/quote/reject
func (h *RequestHandler) RejectQuote(c *gin.Context) {
	var req struct {
		Feedback string `json:"feedback" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	r, err := h.svc.Workflow.RejectQuote(c.Request.Context(), GetActor(c), c.Param("id"), req.Feedback)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, r)
}

// ConfirmDeposit 确认定金到账并流转到对应押金态
// POST /api/v1/requests/:id/deposit
func (h *RequestHandler) ConfirmDeposit(c *gin.Context) {
	var req struct {
		Kind   string  `json:"kind" binding:"required"`
		Amount float64 `json:"amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	r, err := h.svc.Workflow.ConfirmDeposit(c.Request.Context(), GetActor(c), c.Param("id"), req.Kind, req.Amount)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, r)
}

// RecordFinalPayment 记录尾款
// POST /api/v1/requests/:id/payment
func (h *RequestHandler) RecordFinalPayment(c *gin.Context) {
	var req struct {
		Amount float64 `json:"amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	inv, err := h.svc.Workflow.RecordFinalPayment(c.Request.Context(), GetActor(c), c.Param("id"), req.Amount)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, inv)
}

// StartDesign 设计师开工
// POST /api/v1/requests/:id/design/start
func (h *RequestHandler) StartDesign(c *gin.Context) {
	r, err := h.svc.Workflow.StartDesign(c.Request.Context(), GetActor(c), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, r)
}

// SubmitDesign 设计完成，首饰定稿
// POST /api/v1/requests/:id/design/submit
func (h *RequestHandler) SubmitDesign(c *gin.Context) {
	r, err := h.svc.Workflow.SubmitDesign(c.Request.Context(), GetActor(c), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, r)
}

// SubmitProduction 排产并进入 production
// POST /api/v1/requests/:id/production
func (h *RequestHandler) SubmitProduction(c *gin.Context) {
	var req struct {
		StartDate string `json:"start_date" binding:"required"`
		EndDate   string `json:"end_date" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	start, err := time.ParseInLocation("2006-01-02", req.StartDate, time.Local)
	if err != nil {
		BadRequest(c, "开工日期格式错误，应为 YYYY-MM-DD")
		return
	}
	end, err := time.ParseInLocation("2006-01-02", req.EndDate, time.Local)
	if err != nil {
		BadRequest(c, "完工日期格式错误，应为 YYYY-MM-DD")
		return
	}

	r, err := h.svc.Workflow.SubmitProduction(c.Request.Context(), GetActor(c), c.Param("id"), start, end)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, r)
}

// CompleteProduction 制作完成，进入尾款
// POST /api/v1/requests/:id/production/complete
func (h *RequestHandler) CompleteProduction(c *gin.Context) {
	r, err := h.svc.Workflow.CompleteProduction(c.Request.Context(), GetActor(c), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, r)
}

// SubmitWarranty 登记保修
// POST /api/v1/requests/:id/warranty
func (h *RequestHandler) SubmitWarranty(c *gin.Context) {
	var req struct {
		Years   int    `json:"years" binding:"required"`
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	r, err := h.svc.Workflow.SubmitWarranty(c.Request.Context(), GetActor(c), c.Param("id"), req.Years, req.Content)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, r)
}

// Complete 交付并归档
// POST /api/v1/requests/:id/complete
func (h *RequestHandler) Complete(c *gin.Context) {
	r, err := h.svc.Workflow.Complete(c.Request.Context(), GetActor(c), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, r)
}

// Cancel 管理员取消请求并释放宝石
// POST /api/v1/requests/:id/cancel
func (h *RequestHandler) Cancel(c *gin.Context) {
	r, err := h.svc.Workflow.Cancel(c.Request.Context(), GetActor(c), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, r)
}

// Export 导出请求台账 xlsx
// GET /api/v1/requests/export
func (h *RequestHandler) Export(c *gin.Context) {
	f, filename, err := h.svc.Report.ExportRequests(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, url.PathEscape(filename)))
	if err := f.Write(c.Writer); err != nil {
		InternalError(c, "导出失败: "+err.Error())
	}
}
