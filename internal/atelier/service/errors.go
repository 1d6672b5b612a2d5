package service

import "errors"

// 引擎对外暴露的错误分类 —— 全部是正常的业务失败，拒绝发生在任何持久化变更之前
var (
	// ErrInvalidTransition 源状态不对或角色无权执行该流转
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrIncompleteAssignment 三个员工角色槽位未全部指派
	ErrIncompleteAssignment = errors.New("incomplete assignment")
	// ErrRoleAlreadyFilled 角色槽位已被占用
	ErrRoleAlreadyFilled = errors.New("role already filled")
	// ErrNotAssigned 员工未被指派到该请求
	ErrNotAssigned = errors.New("not assigned")
	// ErrGemstoneUnavailable 宝石已被其他首饰绑定
	ErrGemstoneUnavailable = errors.New("gemstone unavailable")
	// ErrValidation 载荷校验失败（日期/金额等）
	ErrValidation = errors.New("validation failed")
)
