package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bitfantasy/lumi-atelier/internal/atelier/entity"
	"github.com/bitfantasy/lumi-atelier/internal/atelier/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// WorkflowService 工作流引擎 —— 每个公开操作包装一次状态机流转及其副作用。
// 同一请求上的并发操作用请求级互斥串行化，变更在事务内全量提交或全量放弃；
// 每次被接受的流转恰好追加一条状态历史。
type WorkflowService struct {
	db     *gorm.DB
	logger *zap.Logger

	requestRepo *repository.RequestRepository
	ledger      *LedgerService
	catalog     *CatalogService
	invoices    *InvoiceService

	requestLocks sync.Map // request_id → *sync.Mutex
}

// NewWorkflowService 创建工作流引擎
func NewWorkflowService(db *gorm.DB, logger *zap.Logger, repos *repository.Repositories, ledger *LedgerService, catalog *CatalogService, invoices *InvoiceService) *WorkflowService {
	return &WorkflowService{
		db:          db,
		logger:      logger,
		requestRepo: repos.Request,
		ledger:      ledger,
		catalog:     catalog,
		invoices:    invoices,
	}
}

func (s *WorkflowService) lockRequest(id string) func() {
	v, _ := s.requestLocks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// applyTransition 事务内执行一次流转：改状态 + 追加一条历史
func (s *WorkflowService) applyTransition(ctx context.Context, tx *gorm.DB, req *entity.CustomRequest, to string, actor Actor) error {
	from := req.Status
	if !CanTransition(from, to, actor) {
		return transitionError(from, to)
	}
	req.Status = to
	req.UpdatedAt = time.Now()
	if err := tx.WithContext(ctx).Save(req).Error; err != nil {
		return fmt.Errorf("更新请求状态失败: %w", err)
	}
	entry := &entity.StatusHistory{
		ID:        uuid.New().String(),
		RequestID: req.ID,
		Status:    to,
		CreatedAt: time.Now(),
	}
	if err := tx.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("追加状态历史失败: %w", err)
	}
	s.logger.Info("request transition",
		zap.String("request_id", req.ID),
		zap.String("from", from),
		zap.String("to", to),
		zap.String("actor", actor.ID),
	)
	return nil
}

// requireStaff 校验调用方持有角色声明且确实被指派到该请求的对应槽位
func (s *WorkflowService) requireStaff(ctx context.Context, req *entity.CustomRequest, actor Actor, role string) error {
	if !actor.Has(role) {
		return fmt.Errorf("%w: 需要 %s 角色", ErrInvalidTransition, role)
	}
	if actor.Has(entity.RoleAdmin) || actor.Has(entity.RoleManager) {
		return nil
	}
	assigned, err := s.ledger.StaffRole(ctx, req.ID, actor.ID)
	if err != nil {
		return err
	}
	if assigned != role {
		return fmt.Errorf("%w: 员工 %s 占用的是 %s 槽位", ErrNotAssigned, actor.ID, assigned)
	}
	return nil
}

// requireCustomer 校验调用方是该请求的客户本人
func (s *WorkflowService) requireCustomer(req *entity.CustomRequest, actor Actor) error {
	if actor.Has(entity.RoleAdmin) {
		return nil
	}
	if !actor.Has(entity.RoleCustomer) || actor.ID != req.CustomerID {
		return fmt.Errorf("%w: 仅该请求的客户可执行此操作", ErrInvalidTransition)
	}
	return nil
}

// SubmitRequest 客户提交定制请求，初始状态 pending
func (s *WorkflowService) SubmitRequest(ctx context.Context, actor Actor, description string) (*entity.CustomRequest, error) {
	if !actor.Has(entity.RoleCustomer) {
		return nil, fmt.Errorf("%w: 仅客户可提交定制请求", ErrInvalidTransition)
	}
	if description == "" {
		return nil, fmt.Errorf("%w: 描述不能为空", ErrValidation)
	}

	req := &entity.CustomRequest{
		ID:          uuid.New().String(),
		CustomerID:  actor.ID,
		Description: description,
		Status:      entity.RequestStatusPending,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(req).Error; err != nil {
			return fmt.Errorf("创建请求失败: %w", err)
		}
		entry := &entity.StatusHistory{
			ID:        uuid.New().String(),
			RequestID: req.ID,
			Status:    entity.RequestStatusPending,
			CreatedAt: time.Now(),
		}
		return tx.Create(entry).Error
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("request submitted",
		zap.String("request_id", req.ID),
		zap.String("customer_id", actor.ID),
	)
	return req, nil
}

// AssignStaff 经理指派员工占用角色槽位
func (s *WorkflowService) AssignStaff(ctx context.Context, actor Actor, requestID, staffID, role string) (*entity.RoleAssignment, error) {
	if !actor.Has(entity.RoleManager) {
		return nil, fmt.Errorf("%w: 仅经理可调整指派", ErrInvalidTransition)
	}
	unlock := s.lockRequest(requestID)
	defer unlock()
	return s.ledger.AssignStaff(ctx, requestID, staffID, role)
}

// RemoveStaff 经理移除员工指派
func (s *WorkflowService) RemoveStaff(ctx context.Context, actor Actor, requestID, staffID string) error {
	if !actor.Has(entity.RoleManager) {
		return fmt.Errorf("%w: 仅经理可调整指派", ErrInvalidTransition)
	}
	unlock := s.lockRequest(requestID)
	defer unlock()
	return s.ledger.RemoveStaff(ctx, requestID, staffID)
}

// FinishAssignment 三个角色槽位齐备后，pending → assigned
func (s *WorkflowService) FinishAssignment(ctx context.Context, actor Actor, requestID string) (*entity.CustomRequest, error) {
	unlock := s.lockRequest(requestID)
	defer unlock()

	req, err := s.requestRepo.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	filled, err := s.ledger.RolesFilled(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !filled {
		return nil, fmt.Errorf("%w: sale/design/production 槽位未全部指派", ErrIncompleteAssignment)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.applyTransition(ctx, tx, req, entity.RequestStatusAssigned, actor)
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// SubmitQuoteInput 报价载荷
type SubmitQuoteInput struct {
	Jewelry         SaveJewelryInput `json:"jewelry"`
	MainGemstoneIDs []string         `json:"main_gemstone_ids"`
	SubGemstoneIDs  []string         `json:"sub_gemstone_ids"`
	ProductionCost  float64          `json:"production_cost"`
}

// SubmitQuote 销售提交报价：保存首饰 → 差量绑定宝石 → 重算价格 → 流转到 quote。
// 首饰、绑定、价格与状态在同一事务内提交，任一步失败则整个报价不发生。
func (s *WorkflowService) SubmitQuote(ctx context.Context, actor Actor, requestID string, input *SubmitQuoteInput) (*entity.CustomRequest, error) {
	if input.ProductionCost < 0 {
		return nil, fmt.Errorf("%w: 工费不能为负", ErrValidation)
	}
	wanted, err := gemstoneKinds(input.MainGemstoneIDs, input.SubGemstoneIDs)
	if err != nil {
		return nil, err
	}

	unlock := s.lockRequest(requestID)
	defer unlock()

	req, err := s.requestRepo.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	// 先做角色、流转与宝石存在性校验，再碰任何持久化
	if err := s.requireStaff(ctx, req, actor, entity.RoleSale); err != nil {
		return nil, err
	}
	if !CanTransition(req.Status, entity.RequestStatusQuote, actor) {
		return nil, transitionError(req.Status, entity.RequestStatusQuote)
	}
	if err := s.ledger.verifyGemstonesExist(ctx, wanted); err != nil {
		return nil, err
	}

	// 重新报价时沿用已绑定的首饰；新首饰先定好 ID 再拿绑定锁
	if req.JewelryID != nil && input.Jewelry.ID == "" {
		input.Jewelry.ID = *req.JewelryID
	}
	if input.Jewelry.ID == "" {
		input.Jewelry.ID = uuid.New().String()
	}
	unlockJewelry, err := s.ledger.lockJewelry(ctx, input.Jewelry.ID)
	if err != nil {
		return nil, err
	}
	defer unlockJewelry()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		catalog := s.catalog.withTx(tx)
		jewelry, err := catalog.SaveJewelry(ctx, &input.Jewelry)
		if err != nil {
			return err
		}
		if err := s.ledger.bindGemstones(tx, jewelry.ID, wanted); err != nil {
			return err
		}

		// 绑定成功后按当前品目价格重算
		detail, err := catalog.GetJewelry(ctx, jewelry.ID)
		if err != nil {
			return err
		}
		all := append(append([]entity.Gemstone{}, detail.Mains...), detail.Subs...)
		price := JewelryPrice(all, detail.Material, detail.Jewelry.MaterialWeight)
		if err := catalog.UpdateJewelryPrice(ctx, jewelry.ID, price); err != nil {
			return err
		}
		detail.Jewelry.Price = price

		req.JewelryID = &jewelry.ID
		req.QuoteAmount = QuoteAmount(input.ProductionCost, price)
		req.QuoteContent = QuoteContent(detail.Jewelry, detail.Mains, detail.Subs, detail.Material, input.ProductionCost)
		req.ProductionCost = input.ProductionCost
		return s.applyTransition(ctx, tx, req, entity.RequestStatusQuote, actor)
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// AcceptQuote 客户接受报价
func (s *WorkflowService) AcceptQuote(ctx context.Context, actor Actor, requestID string) (*entity.CustomRequest, error) {
	unlock := s.lockRequest(requestID)
	defer unlock()

	req, err := s.requestRepo.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := s.requireCustomer(req, actor); err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.applyTransition(ctx, tx, req, entity.RequestStatusAccepted, actor)
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// RejectQuote 经理或客户驳回报价，按来源追加一条反馈并回到 pending。
// 报价期间绑定的宝石保留，等待下一轮报价差量调整。
func (s *WorkflowService) RejectQuote(ctx context.Context, actor Actor, requestID, feedback string) (*entity.CustomRequest, error) {
	if feedback == "" {
		return nil, fmt.Errorf("%w: 驳回必须附带反馈", ErrValidation)
	}

	unlock := s.lockRequest(requestID)
	defer unlock()

	req, err := s.requestRepo.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	var source string
	switch {
	case actor.Has(entity.RoleManager):
		source = entity.FeedbackSourceManager
	case actor.Has(entity.RoleCustomer) && actor.ID == req.CustomerID:
		source = entity.FeedbackSourceCustomer
	default:
		return nil, fmt.Errorf("%w: 仅经理或该请求的客户可驳回报价", ErrInvalidTransition)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.applyTransition(ctx, tx, req, entity.RequestStatusPending, actor); err != nil {
			return err
		}
		fb := &entity.QuoteFeedback{
			ID:        uuid.New().String(),
			RequestID: req.ID,
			Source:    source,
			Content:   feedback,
			CreatedAt: time.Now(),
		}
		return tx.Create(fb).Error
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// ConfirmDeposit 支付侧信道确认定金：记录发票并进入对应的 deposit 状态
func (s *WorkflowService) ConfirmDeposit(ctx context.Context, actor Actor, requestID, kind string, amount float64) (*entity.CustomRequest, error) {
	var target string
	switch kind {
	case entity.InvoiceKindDepositDesign:
		target = entity.RequestStatusDepositDesign
	case entity.InvoiceKindDepositProduction:
		target = entity.RequestStatusDepositProduction
	default:
		return nil, fmt.Errorf("%w: 未知定金类型 %q", ErrValidation, kind)
	}

	unlock := s.lockRequest(requestID)
	defer unlock()

	req, err := s.requestRepo.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	// 定金只能由该请求的客户确认，经理可代录
	if !actor.Has(entity.RoleManager) {
		if err := s.requireCustomer(req, actor); err != nil {
			return nil, err
		}
	}
	if !CanTransition(req.Status, target, actor) {
		return nil, transitionError(req.Status, target)
	}
	if _, err := s.invoices.Record(ctx, requestID, kind, amount); err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.applyTransition(ctx, tx, req, target, actor)
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// RecordFinalPayment 支付侧信道记录尾款发票（payment → warranty 的前置条件）
func (s *WorkflowService) RecordFinalPayment(ctx context.Context, actor Actor, requestID string, amount float64) (*entity.Invoice, error) {
	unlock := s.lockRequest(requestID)
	defer unlock()

	req, err := s.requestRepo.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	// 尾款只能由该请求的客户支付，经理可代录
	if !actor.Has(entity.RoleManager) {
		if err := s.requireCustomer(req, actor); err != nil {
			return nil, err
		}
	}
	if req.Status != entity.RequestStatusPayment {
		return nil, fmt.Errorf("%w: 请求状态[%s]不在付款阶段", ErrInvalidTransition, req.Status)
	}
	exists, err := s.invoices.Exists(ctx, requestID, entity.InvoiceKindFinal)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: 尾款发票已存在", ErrValidation)
	}
	return s.invoices.Record(ctx, requestID, entity.InvoiceKindFinal, amount)
}

// StartDesign 设计师开工，accepted/deposit_design → design
func (s *WorkflowService) StartDesign(ctx context.Context, actor Actor, requestID string) (*entity.CustomRequest, error) {
	unlock := s.lockRequest(requestID)
	defer unlock()

	req, err := s.requestRepo.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := s.requireStaff(ctx, req, actor, entity.RoleDesign); err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.applyTransition(ctx, tx, req, entity.RequestStatusDesign, actor)
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// SubmitDesign 设计定稿，design → design_completed，同时标记首饰定稿
func (s *WorkflowService) SubmitDesign(ctx context.Context, actor Actor, requestID string) (*entity.CustomRequest, error) {
	unlock := s.lockRequest(requestID)
	defer unlock()

	req, err := s.requestRepo.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := s.requireStaff(ctx, req, actor, entity.RoleDesign); err != nil {
		return nil, err
	}
	if req.JewelryID == nil {
		return nil, fmt.Errorf("%w: 请求尚未绑定首饰", ErrValidation)
	}
	if !CanTransition(req.Status, entity.RequestStatusDesignCompleted, actor) {
		return nil, transitionError(req.Status, entity.RequestStatusDesignCompleted)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.catalog.withTx(tx).MarkFinalized(ctx, *req.JewelryID); err != nil {
			return err
		}
		return s.applyTransition(ctx, tx, req, entity.RequestStatusDesignCompleted, actor)
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// SubmitProduction 生产排期，start 不得早于今天，end 不得早于 start
func (s *WorkflowService) SubmitProduction(ctx context.Context, actor Actor, requestID string, start, end time.Time) (*entity.CustomRequest, error) {
	// 按 start 所在时区的日历日比较，避免跨时区的午夜边界误判
	loc := start.Location()
	now := time.Now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	startDay := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	if startDay.Before(today) {
		return nil, fmt.Errorf("%w: 开工日期不能早于今天", ErrValidation)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: 完工日期不能早于开工日期", ErrValidation)
	}

	unlock := s.lockRequest(requestID)
	defer unlock()

	req, err := s.requestRepo.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := s.requireStaff(ctx, req, actor, entity.RoleProduction); err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		req.ProductionStart = &start
		req.ProductionEnd = &end
		return s.applyTransition(ctx, tx, req, entity.RequestStatusProduction, actor)
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// CompleteProduction 生产完成，production → payment
func (s *WorkflowService) CompleteProduction(ctx context.Context, actor Actor, requestID string) (*entity.CustomRequest, error) {
	unlock := s.lockRequest(requestID)
	defer unlock()

	req, err := s.requestRepo.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := s.requireStaff(ctx, req, actor, entity.RoleProduction); err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.applyTransition(ctx, tx, req, entity.RequestStatusPayment, actor)
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// SubmitWarranty 录入保修条款，payment → warranty。
// 前置条件：该请求已有尾款发票；保修起始日取发票开票日。
// 销售路径年限限 1–3，经理路径只要求为正。
func (s *WorkflowService) SubmitWarranty(ctx context.Context, actor Actor, requestID string, years int, content string) (*entity.CustomRequest, error) {
	if years <= 0 {
		return nil, fmt.Errorf("%w: 保修年限必须为正", ErrValidation)
	}

	unlock := s.lockRequest(requestID)
	defer unlock()

	req, err := s.requestRepo.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if actor.Has(entity.RoleManager) {
		// 经理路径不设上限
	} else {
		if err := s.requireStaff(ctx, req, actor, entity.RoleSale); err != nil {
			return nil, err
		}
		if years > 3 {
			return nil, fmt.Errorf("%w: 保修年限须在 1–3 年之间", ErrValidation)
		}
	}

	inv, err := s.invoices.LatestFinal(ctx, requestID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, fmt.Errorf("%w: 请求尚无尾款发票", ErrInvalidTransition)
		}
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		start := inv.IssuedAt
		end := start.AddDate(years, 0, 0)
		req.WarrantyStart = &start
		req.WarrantyEnd = &end
		req.WarrantyYears = years
		req.WarrantyContent = content
		return s.applyTransition(ctx, tx, req, entity.RequestStatusWarranty, actor)
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// Complete 收尾，warranty → completed
func (s *WorkflowService) Complete(ctx context.Context, actor Actor, requestID string) (*entity.CustomRequest, error) {
	unlock := s.lockRequest(requestID)
	defer unlock()

	req, err := s.requestRepo.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.applyTransition(ctx, tx, req, entity.RequestStatusCompleted, actor)
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// Cancel 经理取消请求（任意非终态），释放首饰绑定的宝石
func (s *WorkflowService) Cancel(ctx context.Context, actor Actor, requestID string) (*entity.CustomRequest, error) {
	unlock := s.lockRequest(requestID)
	defer unlock()

	req, err := s.requestRepo.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.applyTransition(ctx, tx, req, entity.RequestStatusCancelled, actor)
	})
	if err != nil {
		return nil, err
	}

	if req.JewelryID != nil {
		if err := s.ledger.ReleaseJewelry(ctx, *req.JewelryID); err != nil {
			s.logger.Warn("release gemstones on cancel failed",
				zap.String("request_id", requestID),
				zap.Error(err),
			)
		}
	}
	return req, nil
}

// GetRequest 读取请求详情，客户只能看自己的
func (s *WorkflowService) GetRequest(ctx context.Context, actor Actor, requestID string) (*entity.CustomRequest, error) {
	req, err := s.requestRepo.FindDetail(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if s.customerOnly(actor) && req.CustomerID != actor.ID {
		return nil, repository.ErrNotFound
	}
	return req, nil
}

// ListRequests 请求列表，客户只能看自己的
func (s *WorkflowService) ListRequests(ctx context.Context, actor Actor, status string) ([]entity.CustomRequest, error) {
	params := repository.RequestListParams{Status: status}
	if s.customerOnly(actor) {
		params.CustomerID = actor.ID
	}
	return s.requestRepo.List(ctx, params)
}

func (s *WorkflowService) customerOnly(actor Actor) bool {
	return !actor.HasAny(entity.RoleManager, entity.RoleSale, entity.RoleDesign, entity.RoleProduction)
}
