package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bitfantasy/lumi-atelier/internal/atelier/entity"
)

var (
	testCustomer   = Actor{ID: "cust-1", Roles: []string{entity.RoleCustomer}}
	testManager    = Actor{ID: "mgr-1", Roles: []string{entity.RoleManager}}
	testSale       = Actor{ID: "staff-sale", Roles: []string{entity.RoleSale}}
	testDesign     = Actor{ID: "staff-design", Roles: []string{entity.RoleDesign}}
	testProduction = Actor{ID: "staff-prod", Roles: []string{entity.RoleProduction}}
)

// submitAndAssign 客户提交请求，经理补齐三个槽位并完成指派
func submitAndAssign(t *testing.T, svc *Services) *entity.CustomRequest {
	t.Helper()
	ctx := context.Background()

	req, err := svc.Workflow.SubmitRequest(ctx, testCustomer, "一枚刻字的定制戒指")
	if err != nil {
		t.Fatalf("SubmitRequest failed: %v", err)
	}
	for _, pair := range []struct{ staff, role string }{
		{testSale.ID, entity.RoleSale},
		{testDesign.ID, entity.RoleDesign},
		{testProduction.ID, entity.RoleProduction},
	} {
		if _, err := svc.Workflow.AssignStaff(ctx, testManager, req.ID, pair.staff, pair.role); err != nil {
			t.Fatalf("AssignStaff(%s) failed: %v", pair.role, err)
		}
	}
	req, err = svc.Workflow.FinishAssignment(ctx, testManager, req.ID)
	if err != nil {
		t.Fatalf("FinishAssignment failed: %v", err)
	}
	return req
}

func quoteInput(materialID string, mainIDs, subIDs []string, cost float64) *SubmitQuoteInput {
	return &SubmitQuoteInput{
		Jewelry: SaveJewelryInput{
			Name:           "定制戒指",
			MaterialID:     materialID,
			MaterialWeight: 2,
		},
		MainGemstoneIDs: mainIDs,
		SubGemstoneIDs:  subIDs,
		ProductionCost:  cost,
	}
}

func TestFullLifecycle(t *testing.T) {
	svc, db := newTestServices(t)
	ctx := context.Background()

	material := seedMaterial(t, db, "18K金", 10)
	g1 := seedGemstone(t, db, "钻石", 100)

	req := submitAndAssign(t, svc)
	if req.Status != entity.RequestStatusAssigned {
		t.Fatalf("status = %s, want assigned", req.Status)
	}

	// 报价：宝石 100 + 材质 10 × 2g + 工费 50 = 170
	req, err := svc.Workflow.SubmitQuote(ctx, testSale, req.ID, quoteInput(material.ID, []string{g1.ID}, nil, 50))
	if err != nil {
		t.Fatalf("SubmitQuote failed: %v", err)
	}
	if req.Status != entity.RequestStatusQuote {
		t.Fatalf("status = %s, want quote", req.Status)
	}
	if req.QuoteAmount != 170 {
		t.Errorf("QuoteAmount = %.2f, want 170.00", req.QuoteAmount)
	}
	if req.QuoteContent == "" {
		t.Error("QuoteContent should be derived, got empty")
	}

	if req, err = svc.Workflow.AcceptQuote(ctx, testCustomer, req.ID); err != nil {
		t.Fatalf("AcceptQuote failed: %v", err)
	}

	if req, err = svc.Workflow.ConfirmDeposit(ctx, testCustomer, req.ID, entity.InvoiceKindDepositDesign, 50); err != nil {
		t.Fatalf("ConfirmDeposit(design) failed: %v", err)
	}
	if req.Status != entity.RequestStatusDepositDesign {
		t.Fatalf("status = %s, want deposit_design", req.Status)
	}

	if req, err = svc.Workflow.StartDesign(ctx, testDesign, req.ID); err != nil {
		t.Fatalf("StartDesign failed: %v", err)
	}
	if req, err = svc.Workflow.SubmitDesign(ctx, testDesign, req.ID); err != nil {
		t.Fatalf("SubmitDesign failed: %v", err)
	}

	// 设计定稿后首饰锁定
	detail, err := svc.Catalog.GetJewelry(ctx, *req.JewelryID)
	if err != nil {
		t.Fatalf("GetJewelry failed: %v", err)
	}
	if !detail.Jewelry.Finalized {
		t.Error("jewelry should be finalized after design submit")
	}

	if req, err = svc.Workflow.ConfirmDeposit(ctx, testCustomer, req.ID, entity.InvoiceKindDepositProduction, 60); err != nil {
		t.Fatalf("ConfirmDeposit(production) failed: %v", err)
	}

	start := time.Now().Add(24 * time.Hour)
	end := start.Add(7 * 24 * time.Hour)
	if req, err = svc.Workflow.SubmitProduction(ctx, testProduction, req.ID, start, end); err != nil {
		t.Fatalf("SubmitProduction failed: %v", err)
	}
	if req, err = svc.Workflow.CompleteProduction(ctx, testProduction, req.ID); err != nil {
		t.Fatalf("CompleteProduction failed: %v", err)
	}
	if req.Status != entity.RequestStatusPayment {
		t.Fatalf("status = %s, want payment", req.Status)
	}

	if _, err = svc.Workflow.RecordFinalPayment(ctx, testManager, req.ID, 60); err != nil {
		t.Fatalf("RecordFinalPayment failed: %v", err)
	}
	if req, err = svc.Workflow.SubmitWarranty(ctx, testSale, req.ID, 2, "两年免费保养"); err != nil {
		t.Fatalf("SubmitWarranty failed: %v", err)
	}
	if req.WarrantyStart == nil || req.WarrantyEnd == nil {
		t.Fatal("warranty window should be set")
	}
	if got := req.WarrantyEnd.Sub(*req.WarrantyStart); got < 729*24*time.Hour || got > 732*24*time.Hour {
		t.Errorf("warranty window = %v, want ~2 years", got)
	}

	if req, err = svc.Workflow.Complete(ctx, testManager, req.ID); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if req.Status != entity.RequestStatusCompleted {
		t.Fatalf("status = %s, want completed", req.Status)
	}

	// 终态之后一切操作被拒
	if _, err := svc.Workflow.Cancel(ctx, testManager, req.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Cancel after complete err = %v, want ErrInvalidTransition", err)
	}

	// 状态历史与走过的每一步一一对应
	var history []entity.StatusHistory
	if err := db.Where("request_id = ?", req.ID).Order("created_at ASC").Find(&history).Error; err != nil {
		t.Fatalf("load history: %v", err)
	}
	wantStatuses := []string{
		entity.RequestStatusPending,
		entity.RequestStatusAssigned,
		entity.RequestStatusQuote,
		entity.RequestStatusAccepted,
		entity.RequestStatusDepositDesign,
		entity.RequestStatusDesign,
		entity.RequestStatusDesignCompleted,
		entity.RequestStatusDepositProduction,
		entity.RequestStatusProduction,
		entity.RequestStatusPayment,
		entity.RequestStatusWarranty,
		entity.RequestStatusCompleted,
	}
	if len(history) != len(wantStatuses) {
		t.Fatalf("history length = %d, want %d", len(history), len(wantStatuses))
	}
	for i, h := range history {
		if h.Status != wantStatuses[i] {
			t.Errorf("history[%d] = %s, want %s", i, h.Status, wantStatuses[i])
		}
	}
}

func TestFinishAssignmentRequiresAllSlots(t *testing.T) {
	svc, _ := newTestServices(t)
	ctx := context.Background()

	req, err := svc.Workflow.SubmitRequest(ctx, testCustomer, "项链")
	if err != nil {
		t.Fatalf("SubmitRequest failed: %v", err)
	}
	if _, err := svc.Workflow.AssignStaff(ctx, testManager, req.ID, testSale.ID, entity.RoleSale); err != nil {
		t.Fatalf("AssignStaff failed: %v", err)
	}
	if _, err := svc.Workflow.AssignStaff(ctx, testManager, req.ID, testDesign.ID, entity.RoleDesign); err != nil {
		t.Fatalf("AssignStaff failed: %v", err)
	}

	_, err = svc.Workflow.FinishAssignment(ctx, testManager, req.ID)
	if !errors.Is(err, ErrIncompleteAssignment) {
		t.Errorf("FinishAssignment with 2 slots err = %v, want ErrIncompleteAssignment", err)
	}
}

func TestSubmitQuoteRequiresAssignedSale(t *testing.T) {
	svc, db := newTestServices(t)
	ctx := context.Background()
	material := seedMaterial(t, db, "足银", 5)

	req := submitAndAssign(t, svc)

	stranger := Actor{ID: "sale-other", Roles: []string{entity.RoleSale}}
	_, err := svc.Workflow.SubmitQuote(ctx, stranger, req.ID, quoteInput(material.ID, nil, nil, 10))
	if !errors.Is(err, ErrNotAssigned) {
		t.Errorf("SubmitQuote by unassigned sale err = %v, want ErrNotAssigned", err)
	}
}

func TestRejectQuoteKeepsBindingAndRecordsFeedback(t *testing.T) {
	svc, db := newTestServices(t)
	ctx := context.Background()

	material := seedMaterial(t, db, "18K金", 10)
	g1 := seedGemstone(t, db, "钻石", 100)
	g2 := seedGemstone(t, db, "蓝宝石", 60)

	req := submitAndAssign(t, svc)
	req, err := svc.Workflow.SubmitQuote(ctx, testSale, req.ID, quoteInput(material.ID, []string{g1.ID}, nil, 50))
	if err != nil {
		t.Fatalf("SubmitQuote failed: %v", err)
	}
	jewelryID := *req.JewelryID

	// 空反馈被拒
	if _, err := svc.Workflow.RejectQuote(ctx, testCustomer, req.ID, ""); !errors.Is(err, ErrValidation) {
		t.Errorf("RejectQuote without feedback err = %v, want ErrValidation", err)
	}

	// 客户驳回：回到 pending，绑定保留
	if req, err = svc.Workflow.RejectQuote(ctx, testCustomer, req.ID, "希望换成蓝宝石"); err != nil {
		t.Fatalf("RejectQuote failed: %v", err)
	}
	if req.Status != entity.RequestStatusPending {
		t.Fatalf("status = %s, want pending", req.Status)
	}
	assertGemstone(t, db, g1.ID, false, jewelryID, entity.GemstoneKindMain)

	// 第二轮报价差量换石，再由经理驳回
	if req, err = svc.Workflow.SubmitQuote(ctx, testSale, req.ID, quoteInput(material.ID, []string{g2.ID}, nil, 50)); err != nil {
		t.Fatalf("second SubmitQuote failed: %v", err)
	}
	if *req.JewelryID != jewelryID {
		t.Errorf("re-quote should reuse jewelry %s, got %s", jewelryID, *req.JewelryID)
	}
	assertGemstone(t, db, g1.ID, true, "", "")
	assertGemstone(t, db, g2.ID, false, jewelryID, entity.GemstoneKindMain)

	// 换石后报价随台账重算：60 + 10 × 2g + 50 = 130
	if req.QuoteAmount != 130 {
		t.Errorf("QuoteAmount after rebinding = %.2f, want 130.00", req.QuoteAmount)
	}

	if _, err = svc.Workflow.RejectQuote(ctx, testManager, req.ID, "成本超预算"); err != nil {
		t.Fatalf("manager RejectQuote failed: %v", err)
	}

	var feedback []entity.QuoteFeedback
	if err := db.Where("request_id = ?", req.ID).Order("created_at ASC").Find(&feedback).Error; err != nil {
		t.Fatalf("load feedback: %v", err)
	}
	if len(feedback) != 2 {
		t.Fatalf("feedback rows = %d, want 2", len(feedback))
	}
	if feedback[0].Source != entity.FeedbackSourceCustomer || feedback[1].Source != entity.FeedbackSourceManager {
		t.Errorf("feedback sources = %s, %s", feedback[0].Source, feedback[1].Source)
	}
}

func TestSubmitProductionDateValidation(t *testing.T) {
	svc, _ := newTestServices(t)
	ctx := context.Background()

	yesterday := time.Now().Add(-48 * time.Hour)
	tomorrow := time.Now().Add(24 * time.Hour)

	if _, err := svc.Workflow.SubmitProduction(ctx, testProduction, "req-x", yesterday, tomorrow); !errors.Is(err, ErrValidation) {
		t.Errorf("past start err = %v, want ErrValidation", err)
	}
	if _, err := svc.Workflow.SubmitProduction(ctx, testProduction, "req-x", tomorrow, yesterday); !errors.Is(err, ErrValidation) {
		t.Errorf("end before start err = %v, want ErrValidation", err)
	}

	// 领先 UTC 的时区里"今天零点"是合法开工日，不能被 UTC 截断误拒
	ahead := time.FixedZone("UTC+12", 12*3600)
	nowAhead := time.Now().In(ahead)
	todayAhead := time.Date(nowAhead.Year(), nowAhead.Month(), nowAhead.Day(), 0, 0, 0, 0, ahead)
	if _, err := svc.Workflow.SubmitProduction(ctx, testProduction, "req-x", todayAhead, todayAhead); errors.Is(err, ErrValidation) {
		t.Errorf("today at midnight in UTC+12 rejected: %v", err)
	}
}

func TestDepositAndPaymentRequireOwningCustomer(t *testing.T) {
	svc, db := newTestServices(t)
	ctx := context.Background()

	stranger := Actor{ID: "cust-2", Roles: []string{entity.RoleCustomer}}

	req := seedRequest(t, db, testCustomer.ID, entity.RequestStatusAccepted)
	if _, err := svc.Workflow.ConfirmDeposit(ctx, stranger, req.ID, entity.InvoiceKindDepositDesign, 50); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("ConfirmDeposit by another customer err = %v, want ErrInvalidTransition", err)
	}
	var reloaded entity.CustomRequest
	if err := db.Where("id = ?", req.ID).First(&reloaded).Error; err != nil {
		t.Fatalf("reload request: %v", err)
	}
	if reloaded.Status != entity.RequestStatusAccepted {
		t.Fatalf("status = %s, want accepted unchanged", reloaded.Status)
	}
	if _, err := svc.Workflow.ConfirmDeposit(ctx, testCustomer, req.ID, entity.InvoiceKindDepositDesign, 50); err != nil {
		t.Fatalf("owner ConfirmDeposit failed: %v", err)
	}

	payReq := seedRequest(t, db, testCustomer.ID, entity.RequestStatusPayment)
	if _, err := svc.Workflow.RecordFinalPayment(ctx, stranger, payReq.ID, 100); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("RecordFinalPayment by another customer err = %v, want ErrInvalidTransition", err)
	}
	if _, err := svc.Workflow.RecordFinalPayment(ctx, testCustomer, payReq.ID, 100); err != nil {
		t.Fatalf("owner RecordFinalPayment failed: %v", err)
	}
	// 尾款只记一次
	if _, err := svc.Workflow.RecordFinalPayment(ctx, testManager, payReq.ID, 100); !errors.Is(err, ErrValidation) {
		t.Errorf("duplicate RecordFinalPayment err = %v, want ErrValidation", err)
	}
}

func TestSubmitQuoteLeavesNothingOnBindFailure(t *testing.T) {
	svc, db := newTestServices(t)
	ctx := context.Background()

	material := seedMaterial(t, db, "18K金", 10)
	taken := seedGemstone(t, db, "钻石", 100)
	if err := db.Model(&entity.Gemstone{}).Where("id = ?", taken.ID).
		Updates(map[string]interface{}{
			"available":  false,
			"jewelry_id": "jw-other",
			"kind":       entity.GemstoneKindMain,
		}).Error; err != nil {
		t.Fatalf("seed taken gemstone: %v", err)
	}

	req := submitAndAssign(t, svc)

	// 未知宝石在任何落库之前被拦下
	if _, err := svc.Workflow.SubmitQuote(ctx, testSale, req.ID, quoteInput(material.ID, []string{"no-such"}, nil, 50)); !errors.Is(err, ErrValidation) {
		t.Fatalf("unknown gemstone err = %v, want ErrValidation", err)
	}
	// 已占用宝石导致整个事务回滚，首饰不落库
	if _, err := svc.Workflow.SubmitQuote(ctx, testSale, req.ID, quoteInput(material.ID, []string{taken.ID}, nil, 50)); !errors.Is(err, ErrGemstoneUnavailable) {
		t.Fatalf("taken gemstone err = %v, want ErrGemstoneUnavailable", err)
	}

	var jewelryCount int64
	if err := db.Model(&entity.Jewelry{}).Count(&jewelryCount).Error; err != nil {
		t.Fatalf("count jewelries: %v", err)
	}
	if jewelryCount != 0 {
		t.Errorf("jewelry rows = %d, want 0 after failed quotes", jewelryCount)
	}
	after, err := svc.Workflow.GetRequest(ctx, testManager, req.ID)
	if err != nil {
		t.Fatalf("GetRequest failed: %v", err)
	}
	if after.Status != entity.RequestStatusAssigned || after.JewelryID != nil {
		t.Errorf("request = (%s, %v), want assigned with no jewelry", after.Status, after.JewelryID)
	}
}

func TestSubmitWarrantyGuards(t *testing.T) {
	svc, db := newTestServices(t)
	ctx := context.Background()

	req := seedRequest(t, db, testCustomer.ID, entity.RequestStatusPayment)
	if err := db.Create(&entity.RoleAssignment{
		ID: "as-1", RequestID: req.ID, StaffID: testSale.ID, Role: entity.RoleSale, CreatedAt: time.Now(),
	}).Error; err != nil {
		t.Fatalf("seed assignment: %v", err)
	}

	if _, err := svc.Workflow.SubmitWarranty(ctx, testSale, req.ID, 0, ""); !errors.Is(err, ErrValidation) {
		t.Errorf("zero years err = %v, want ErrValidation", err)
	}
	if _, err := svc.Workflow.SubmitWarranty(ctx, testSale, req.ID, 4, ""); !errors.Is(err, ErrValidation) {
		t.Errorf("sale with 4 years err = %v, want ErrValidation", err)
	}

	// 无尾款发票时不可进入保修
	if _, err := svc.Workflow.SubmitWarranty(ctx, testSale, req.ID, 2, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("warranty without final invoice err = %v, want ErrInvalidTransition", err)
	}

	if _, err := svc.Workflow.RecordFinalPayment(ctx, testManager, req.ID, 100); err != nil {
		t.Fatalf("RecordFinalPayment failed: %v", err)
	}

	// 经理路径年限不设上限
	r, err := svc.Workflow.SubmitWarranty(ctx, testManager, req.ID, 10, "终身保养")
	if err != nil {
		t.Fatalf("manager SubmitWarranty failed: %v", err)
	}
	if r.WarrantyYears != 10 {
		t.Errorf("WarrantyYears = %d, want 10", r.WarrantyYears)
	}
}

func TestCancelReleasesGemstones(t *testing.T) {
	svc, db := newTestServices(t)
	ctx := context.Background()

	material := seedMaterial(t, db, "18K金", 10)
	g1 := seedGemstone(t, db, "钻石", 100)

	req := submitAndAssign(t, svc)
	req, err := svc.Workflow.SubmitQuote(ctx, testSale, req.ID, quoteInput(material.ID, []string{g1.ID}, nil, 50))
	if err != nil {
		t.Fatalf("SubmitQuote failed: %v", err)
	}

	// 客户不能取消
	if _, err := svc.Workflow.Cancel(ctx, testCustomer, req.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("customer Cancel err = %v, want ErrInvalidTransition", err)
	}

	req, err = svc.Workflow.Cancel(ctx, testManager, req.ID)
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if req.Status != entity.RequestStatusCancelled {
		t.Fatalf("status = %s, want cancelled", req.Status)
	}
	assertGemstone(t, db, g1.ID, true, "", "")
}

func TestListRequestsCustomerScope(t *testing.T) {
	svc, _ := newTestServices(t)
	ctx := context.Background()

	other := Actor{ID: "cust-2", Roles: []string{entity.RoleCustomer}}
	if _, err := svc.Workflow.SubmitRequest(ctx, testCustomer, "戒指"); err != nil {
		t.Fatalf("SubmitRequest failed: %v", err)
	}
	if _, err := svc.Workflow.SubmitRequest(ctx, other, "项链"); err != nil {
		t.Fatalf("SubmitRequest failed: %v", err)
	}

	mine, err := svc.Workflow.ListRequests(ctx, testCustomer, "")
	if err != nil {
		t.Fatalf("ListRequests failed: %v", err)
	}
	if len(mine) != 1 || mine[0].CustomerID != testCustomer.ID {
		t.Errorf("customer list = %d items, want only own request", len(mine))
	}

	all, err := svc.Workflow.ListRequests(ctx, testManager, "")
	if err != nil {
		t.Fatalf("ListRequests failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("manager list = %d items, want 2", len(all))
	}

	// 客户看不到别人的请求详情
	if _, err := svc.Workflow.GetRequest(ctx, testCustomer, mineOther(all, testCustomer.ID)); err == nil {
		t.Error("customer should not read another customer's request")
	}
}

func mineOther(all []entity.CustomRequest, notCustomer string) string {
	for _, r := range all {
		if r.CustomerID != notCustomer {
			return r.ID
		}
	}
	return ""
}
