package service

import (
	"fmt"

	"github.com/bitfantasy/lumi-atelier/internal/atelier/entity"
)

// Actor 经过认证的调用方身份，角色来自服务端签发的声明
type Actor struct {
	ID    string
	Roles []string
}

// Has 判断调用方是否持有某角色，平台管理员视同持有全部角色
func (a Actor) Has(role string) bool {
	for _, r := range a.Roles {
		if r == role || r == entity.RoleAdmin {
			return true
		}
	}
	return false
}

// HasAny 判断调用方是否持有任一角色
func (a Actor) HasAny(roles ...string) bool {
	for _, r := range roles {
		if a.Has(r) {
			return true
		}
	}
	return false
}

type transitionKey struct {
	From string
	To   string
}

// transitionTable 状态机流转表 —— 策略集中在这一处，(from, to) → 允许的角色。
// cancelled 不在表内：任意非终态都可由 manager 取消。
var transitionTable = map[transitionKey][]string{
	{entity.RequestStatusPending, entity.RequestStatusAssigned}:  {entity.RoleManager},
	{entity.RequestStatusPending, entity.RequestStatusQuote}:     {entity.RoleSale},
	{entity.RequestStatusAssigned, entity.RequestStatusQuote}:    {entity.RoleSale},
	{entity.RequestStatusQuote, entity.RequestStatusAccepted}:    {entity.RoleCustomer},
	{entity.RequestStatusQuote, entity.RequestStatusPending}:     {entity.RoleManager, entity.RoleCustomer},
	{entity.RequestStatusAccepted, entity.RequestStatusDepositDesign}:           {entity.RoleCustomer, entity.RoleManager},
	{entity.RequestStatusAccepted, entity.RequestStatusDesign}:                  {entity.RoleDesign},
	{entity.RequestStatusDepositDesign, entity.RequestStatusDesign}:             {entity.RoleDesign},
	{entity.RequestStatusDesign, entity.RequestStatusDesignCompleted}:           {entity.RoleDesign},
	{entity.RequestStatusDesignCompleted, entity.RequestStatusDepositProduction}: {entity.RoleCustomer, entity.RoleManager},
	{entity.RequestStatusDesignCompleted, entity.RequestStatusProduction}:        {entity.RoleProduction},
	{entity.RequestStatusDepositProduction, entity.RequestStatusProduction}:      {entity.RoleProduction},
	{entity.RequestStatusProduction, entity.RequestStatusPayment}:  {entity.RoleProduction},
	{entity.RequestStatusPayment, entity.RequestStatusWarranty}:    {entity.RoleSale, entity.RoleManager},
	{entity.RequestStatusWarranty, entity.RequestStatusCompleted}:  {entity.RoleManager, entity.RoleSale},
}

// IsTerminal 终态不再流出任何流转
func IsTerminal(status string) bool {
	return status == entity.RequestStatusCompleted || status == entity.RequestStatusCancelled
}

// CanTransition 校验 (from → to) 是否存在且调用方角色被允许
func CanTransition(from, to string, actor Actor) bool {
	if IsTerminal(from) {
		return false
	}
	if to == entity.RequestStatusCancelled {
		return actor.Has(entity.RoleManager)
	}
	roles, ok := transitionTable[transitionKey{From: from, To: to}]
	if !ok {
		return false
	}
	return actor.HasAny(roles...)
}

// transitionError 生成统一的拒绝错误，不落任何变更
func transitionError(from, to string) error {
	return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, from, to)
}
