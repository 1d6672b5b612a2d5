package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/bitfantasy/lumi-atelier/internal/atelier/entity"
	"github.com/bitfantasy/lumi-atelier/internal/atelier/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestServices 建一套跑在内存 sqlite 上的完整服务。
// 单连接串行化事务，避免 sqlite 的 database locked。
func newTestServices(t *testing.T) (*Services, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:svc_test_%s?mode=memory&cache=shared", uuid.New().String()[:8])
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get database instance: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&entity.CustomRequest{},
		&entity.StatusHistory{},
		&entity.QuoteFeedback{},
		&entity.RoleAssignment{},
		&entity.Gemstone{},
		&entity.Material{},
		&entity.Jewelry{},
		&entity.Invoice{},
	); err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	repos := repository.NewRepositories(db)
	return NewServices(db, nil, zap.NewNop(), repos), db
}

func seedRequest(t *testing.T, db *gorm.DB, customerID, status string) *entity.CustomRequest {
	t.Helper()
	r := &entity.CustomRequest{
		ID:          uuid.New().String(),
		CustomerID:  customerID,
		Description: "一枚刻字的定制戒指",
		Status:      status,
		CreatedAt:   time.Now(),
	}
	if err := db.Create(r).Error; err != nil {
		t.Fatalf("Failed to seed request: %v", err)
	}
	return r
}

func seedGemstone(t *testing.T, db *gorm.DB, name string, price float64) *entity.Gemstone {
	t.Helper()
	g := &entity.Gemstone{
		ID:        uuid.New().String(),
		Name:      name,
		Price:     price,
		Available: true,
		CreatedAt: time.Now(),
	}
	if err := db.Create(g).Error; err != nil {
		t.Fatalf("Failed to seed gemstone: %v", err)
	}
	return g
}

func seedMaterial(t *testing.T, db *gorm.DB, name string, sellPrice float64) *entity.Material {
	t.Helper()
	m := &entity.Material{
		ID:        uuid.New().String(),
		Name:      name,
		SellPrice: sellPrice,
		CreatedAt: time.Now(),
	}
	if err := db.Create(m).Error; err != nil {
		t.Fatalf("Failed to seed material: %v", err)
	}
	return m
}
