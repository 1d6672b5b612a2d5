package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bitfantasy/lumi-atelier/internal/atelier/entity"
	"github.com/bitfantasy/lumi-atelier/internal/atelier/repository"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const bindLockTTL = 5 * time.Second

// luaReleaseBindLockIfMatch 仅当锁值匹配时才删除，避免误删其他绑定请求的锁
const luaReleaseBindLockIfMatch = `
local lockKey = KEYS[1]
local token = ARGV[1]
if redis.call('GET', lockKey) == token then
  return redis.call('DEL', lockKey)
end
return 0
`

// LedgerService 分配台账 —— 角色槽位与宝石绑定的唯一权威。
// 员工槽位靠 (request_id, role) 唯一索引兜底；宝石绑定靠事务内的
// 条件更新（available = true 才能锁定）保证并发下只有一个赢家，
// 配置了 redis 时再加一层跨进程的首饰级占位锁。
type LedgerService struct {
	db     *gorm.DB
	rdb    *redis.Client
	logger *zap.Logger

	assignmentRepo *repository.AssignmentRepository
	requestRepo    *repository.RequestRepository
	gemstoneRepo   *repository.GemstoneRepository

	jewelryLocks sync.Map // jewelry_id → *sync.Mutex
}

// NewLedgerService 创建分配台账
func NewLedgerService(db *gorm.DB, rdb *redis.Client, logger *zap.Logger, repos *repository.Repositories) *LedgerService {
	return &LedgerService{
		db:             db,
		rdb:            rdb,
		logger:         logger,
		assignmentRepo: repos.Assignment,
		requestRepo:    repos.Request,
		gemstoneRepo:   repos.Gemstone,
	}
}

// AssignStaff 指派员工占用请求上的角色槽位，仅 pending 状态允许
func (s *LedgerService) AssignStaff(ctx context.Context, requestID, staffID, role string) (*entity.RoleAssignment, error) {
	if !entity.IsStaffRole(role) {
		return nil, fmt.Errorf("%w: 未知角色 %q", ErrValidation, role)
	}
	if staffID == "" {
		return nil, fmt.Errorf("%w: staff_id 不能为空", ErrValidation)
	}

	req, err := s.requestRepo.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != entity.RequestStatusPending {
		return nil, fmt.Errorf("%w: 请求状态[%s]不允许调整指派", ErrInvalidTransition, req.Status)
	}

	if _, err := s.assignmentRepo.FindByRequestRole(ctx, requestID, role); err == nil {
		return nil, fmt.Errorf("%w: 角色 %s 已有指派", ErrRoleAlreadyFilled, role)
	} else if err != repository.ErrNotFound {
		return nil, err
	}

	a := &entity.RoleAssignment{
		ID:        uuid.New().String(),
		RequestID: requestID,
		StaffID:   staffID,
		Role:      role,
		CreatedAt: time.Now(),
	}
	if err := s.assignmentRepo.Create(ctx, a); err != nil {
		// 唯一索引兜底并发指派
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: 角色 %s 已有指派", ErrRoleAlreadyFilled, role)
		}
		return nil, fmt.Errorf("创建指派失败: %w", err)
	}

	s.logger.Info("staff assigned",
		zap.String("request_id", requestID),
		zap.String("staff_id", staffID),
		zap.String("role", role),
	)
	return a, nil
}

// RemoveStaff 移除员工指派，仅 pending 状态允许
func (s *LedgerService) RemoveStaff(ctx context.Context, requestID, staffID string) error {
	req, err := s.requestRepo.FindByID(ctx, requestID)
	if err != nil {
		return err
	}
	if req.Status != entity.RequestStatusPending {
		return fmt.Errorf("%w: 请求状态[%s]不允许调整指派", ErrInvalidTransition, req.Status)
	}

	a, err := s.assignmentRepo.FindByRequestStaff(ctx, requestID, staffID)
	if err != nil {
		if err == repository.ErrNotFound {
			return fmt.Errorf("%w: 员工 %s 未指派到该请求", ErrNotAssigned, staffID)
		}
		return err
	}
	if err := s.assignmentRepo.Delete(ctx, a.ID); err != nil {
		return fmt.Errorf("移除指派失败: %w", err)
	}

	s.logger.Info("staff removed",
		zap.String("request_id", requestID),
		zap.String("staff_id", staffID),
		zap.String("role", a.Role),
	)
	return nil
}

// RolesFilled 三个员工角色槽位是否全部占用（finishAssignment 前置条件）
func (s *LedgerService) RolesFilled(ctx context.Context, requestID string) (bool, error) {
	count, err := s.assignmentRepo.CountDistinctRoles(ctx, requestID)
	if err != nil {
		return false, err
	}
	return count == int64(len(entity.StaffRoles)), nil
}

// StaffRole 返回员工在请求上占用的角色，未指派返回 ErrNotAssigned
func (s *LedgerService) StaffRole(ctx context.Context, requestID, staffID string) (string, error) {
	a, err := s.assignmentRepo.FindByRequestStaff(ctx, requestID, staffID)
	if err != nil {
		if err == repository.ErrNotFound {
			return "", fmt.Errorf("%w: 员工 %s 未指派到该请求", ErrNotAssigned, staffID)
		}
		return "", err
	}
	return a.Role, nil
}

// gemstoneKinds 合并主/辅石列表为 id → kind，重复出现即拒绝
func gemstoneKinds(mainIDs, subIDs []string) (map[string]string, error) {
	wanted := map[string]string{}
	for _, id := range mainIDs {
		if _, dup := wanted[id]; dup {
			return nil, fmt.Errorf("%w: 宝石 %s 重复出现", ErrValidation, id)
		}
		wanted[id] = entity.GemstoneKindMain
	}
	for _, id := range subIDs {
		if _, dup := wanted[id]; dup {
			return nil, fmt.Errorf("%w: 宝石 %s 重复出现", ErrValidation, id)
		}
		wanted[id] = entity.GemstoneKindSub
	}
	return wanted, nil
}

// verifyGemstonesExist 校验待绑定宝石全部存在（占用与否由事务内条件更新裁决）
func (s *LedgerService) verifyGemstonesExist(ctx context.Context, wanted map[string]string) error {
	if len(wanted) == 0 {
		return nil
	}
	ids := make([]string, 0, len(wanted))
	for id := range wanted {
		ids = append(ids, id)
	}
	found, err := s.gemstoneRepo.FindByIDs(ctx, ids)
	if err != nil {
		return err
	}
	if len(found) == len(ids) {
		return nil
	}
	known := map[string]bool{}
	for _, g := range found {
		known[g.ID] = true
	}
	for _, id := range ids {
		if !known[id] {
			return fmt.Errorf("%w: 未知宝石 %s", ErrValidation, id)
		}
	}
	return nil
}

// BindGemstones 以集合差量方式更新首饰的宝石绑定：
// toLock = 新集合 − 旧集合，toRelease = 旧集合 − 新集合。
// 任一 toLock 宝石已被占用则整体失败，不产生部分锁定。
func (s *LedgerService) BindGemstones(ctx context.Context, jewelryID string, mainIDs, subIDs []string) error {
	wanted, err := gemstoneKinds(mainIDs, subIDs)
	if err != nil {
		return err
	}
	if err := s.verifyGemstonesExist(ctx, wanted); err != nil {
		return err
	}

	unlock, err := s.lockJewelry(ctx, jewelryID)
	if err != nil {
		return err
	}
	defer unlock()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.bindGemstones(tx, jewelryID, wanted)
	})
}

// bindGemstones 在调用方事务内执行差量绑定，调用方需已持有首饰绑定锁
func (s *LedgerService) bindGemstones(tx *gorm.DB, jewelryID string, wanted map[string]string) error {
	// 旧绑定
	var bound []entity.Gemstone
	if err := tx.Where("jewelry_id = ?", jewelryID).Find(&bound).Error; err != nil {
		return fmt.Errorf("查询当前绑定失败: %w", err)
	}
	previous := map[string]string{}
	for _, g := range bound {
		previous[g.ID] = g.Kind
	}

	var toLock, toRelease []string
	for id := range wanted {
		if _, ok := previous[id]; !ok {
			toLock = append(toLock, id)
		}
	}
	for id := range previous {
		if _, ok := wanted[id]; !ok {
			toRelease = append(toRelease, id)
		}
	}

	// 逐颗条件更新：只有 available = true 的宝石能被锁定。
	// 并发竞争同一颗宝石时，后提交的事务 RowsAffected 为 0，整体回滚。
	for _, id := range toLock {
		res := tx.Model(&entity.Gemstone{}).
			Where("id = ? AND available = ?", id, true).
			Updates(map[string]interface{}{
				"available":  false,
				"jewelry_id": jewelryID,
				"kind":       wanted[id],
			})
		if res.Error != nil {
			return fmt.Errorf("锁定宝石失败: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			s.logger.Warn("gemstone bind conflict",
				zap.String("jewelry_id", jewelryID),
				zap.String("gemstone_id", id),
			)
			return fmt.Errorf("%w: 宝石 %s 已被占用", ErrGemstoneUnavailable, id)
		}
	}

	// 留在集合里但主/辅位置变化的
	for id, kind := range wanted {
		if prevKind, ok := previous[id]; ok && prevKind != kind {
			if err := tx.Model(&entity.Gemstone{}).
				Where("id = ? AND jewelry_id = ?", id, jewelryID).
				Update("kind", kind).Error; err != nil {
				return fmt.Errorf("更新宝石位置失败: %w", err)
			}
		}
	}

	// 释放被移出集合的
	if len(toRelease) > 0 {
		if err := tx.Model(&entity.Gemstone{}).
			Where("id IN ? AND jewelry_id = ?", toRelease, jewelryID).
			Updates(map[string]interface{}{
				"available":  true,
				"jewelry_id": nil,
				"kind":       "",
			}).Error; err != nil {
			return fmt.Errorf("释放宝石失败: %w", err)
		}
	}

	return nil
}

// ReleaseJewelry 释放首饰当前绑定的全部宝石（取消请求时使用）
func (s *LedgerService) ReleaseJewelry(ctx context.Context, jewelryID string) error {
	unlock, err := s.lockJewelry(ctx, jewelryID)
	if err != nil {
		return err
	}
	defer unlock()

	return s.db.WithContext(ctx).
		Model(&entity.Gemstone{}).
		Where("jewelry_id = ?", jewelryID).
		Updates(map[string]interface{}{
			"available":  true,
			"jewelry_id": nil,
			"kind":       "",
		}).Error
}

// lockJewelry 获取首饰级绑定锁：进程内互斥 + 可选的 redis 跨进程占位锁
func (s *LedgerService) lockJewelry(ctx context.Context, jewelryID string) (func(), error) {
	v, _ := s.jewelryLocks.LoadOrStore(jewelryID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()

	if s.rdb == nil {
		return mu.Unlock, nil
	}

	lockKey := "atelier:bind_lock:" + jewelryID
	token := uuid.New().String()
	ok, err := s.rdb.SetNX(ctx, lockKey, token, bindLockTTL).Result()
	if err != nil {
		mu.Unlock()
		return nil, fmt.Errorf("获取绑定锁失败: %w", err)
	}
	if !ok {
		mu.Unlock()
		return nil, fmt.Errorf("%w: 首饰 %s 正在被其他请求绑定", ErrGemstoneUnavailable, jewelryID)
	}

	return func() {
		if _, err := s.rdb.Eval(context.Background(), luaReleaseBindLockIfMatch, []string{lockKey}, token).Int(); err != nil {
			s.logger.Warn("release bind lock failed", zap.String("jewelry_id", jewelryID), zap.Error(err))
		}
		mu.Unlock()
	}, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint") || strings.Contains(msg, "unique")
}
