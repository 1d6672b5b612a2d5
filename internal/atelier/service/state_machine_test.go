package service

import (
	"testing"

	"github.com/bitfantasy/lumi-atelier/internal/atelier/entity"
)

func TestCanTransitionTable(t *testing.T) {
	manager := Actor{ID: "m1", Roles: []string{entity.RoleManager}}
	sale := Actor{ID: "s1", Roles: []string{entity.RoleSale}}
	design := Actor{ID: "d1", Roles: []string{entity.RoleDesign}}
	production := Actor{ID: "p1", Roles: []string{entity.RoleProduction}}
	customer := Actor{ID: "c1", Roles: []string{entity.RoleCustomer}}

	cases := []struct {
		name  string
		from  string
		to    string
		actor Actor
		want  bool
	}{
		{"管理员完成指派", entity.RequestStatusPending, entity.RequestStatusAssigned, manager, true},
		{"销售直接报价", entity.RequestStatusPending, entity.RequestStatusQuote, sale, true},
		{"指派后销售报价", entity.RequestStatusAssigned, entity.RequestStatusQuote, sale, true},
		{"客户通过报价", entity.RequestStatusQuote, entity.RequestStatusAccepted, customer, true},
		{"客户驳回报价", entity.RequestStatusQuote, entity.RequestStatusPending, customer, true},
		{"管理员驳回报价", entity.RequestStatusQuote, entity.RequestStatusPending, manager, true},
		{"设计师跳过定金开工", entity.RequestStatusAccepted, entity.RequestStatusDesign, design, true},
		{"定金后设计开工", entity.RequestStatusDepositDesign, entity.RequestStatusDesign, design, true},
		{"设计完成", entity.RequestStatusDesign, entity.RequestStatusDesignCompleted, design, true},
		{"制作开工", entity.RequestStatusDesignCompleted, entity.RequestStatusProduction, production, true},
		{"制作完成进尾款", entity.RequestStatusProduction, entity.RequestStatusPayment, production, true},
		{"销售登记保修", entity.RequestStatusPayment, entity.RequestStatusWarranty, sale, true},
		{"管理员归档", entity.RequestStatusWarranty, entity.RequestStatusCompleted, manager, true},

		{"销售不能通过报价", entity.RequestStatusQuote, entity.RequestStatusAccepted, sale, false},
		{"客户不能指派", entity.RequestStatusPending, entity.RequestStatusAssigned, customer, false},
		{"设计师不能排产", entity.RequestStatusDesignCompleted, entity.RequestStatusProduction, design, false},
		{"不存在的流转", entity.RequestStatusPending, entity.RequestStatusPayment, manager, false},
		{"倒流被拒", entity.RequestStatusProduction, entity.RequestStatusDesign, design, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanTransition(tc.from, tc.to, tc.actor); got != tc.want {
				t.Errorf("CanTransition(%s → %s, roles=%v) = %v, want %v",
					tc.from, tc.to, tc.actor.Roles, got, tc.want)
			}
		})
	}
}

func TestCanTransitionCancel(t *testing.T) {
	manager := Actor{ID: "m1", Roles: []string{entity.RoleManager}}
	customer := Actor{ID: "c1", Roles: []string{entity.RoleCustomer}}

	// 任意非终态都可由 manager 取消
	for _, from := range []string{
		entity.RequestStatusPending,
		entity.RequestStatusQuote,
		entity.RequestStatusDesign,
		entity.RequestStatusProduction,
		entity.RequestStatusWarranty,
	} {
		if !CanTransition(from, entity.RequestStatusCancelled, manager) {
			t.Errorf("manager should be able to cancel from %s", from)
		}
		if CanTransition(from, entity.RequestStatusCancelled, customer) {
			t.Errorf("customer must not cancel from %s", from)
		}
	}
}

func TestTerminalStatesHaveNoOutgoing(t *testing.T) {
	admin := Actor{ID: "a1", Roles: []string{entity.RoleAdmin}}

	for _, from := range []string{entity.RequestStatusCompleted, entity.RequestStatusCancelled} {
		if !IsTerminal(from) {
			t.Errorf("%s should be terminal", from)
		}
		for _, to := range []string{
			entity.RequestStatusPending,
			entity.RequestStatusQuote,
			entity.RequestStatusCancelled,
		} {
			if CanTransition(from, to, admin) {
				t.Errorf("terminal state %s must not transition to %s", from, to)
			}
		}
	}
}

func TestAdminOverride(t *testing.T) {
	admin := Actor{ID: "a1", Roles: []string{entity.RoleAdmin}}

	// 平台管理员视同持有全部角色
	if !CanTransition(entity.RequestStatusQuote, entity.RequestStatusAccepted, admin) {
		t.Error("admin should pass customer-only transition")
	}
	if !CanTransition(entity.RequestStatusDesign, entity.RequestStatusDesignCompleted, admin) {
		t.Error("admin should pass design-only transition")
	}
	if !admin.Has(entity.RoleManager) {
		t.Error("admin Has(manager) should be true")
	}
}
