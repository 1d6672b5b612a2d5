package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bitfantasy/lumi-atelier/internal/atelier/entity"
	"github.com/bitfantasy/lumi-atelier/internal/atelier/handler"
	"github.com/bitfantasy/lumi-atelier/internal/atelier/repository"
	"github.com/bitfantasy/lumi-atelier/internal/atelier/service"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const JWTSecret = "lumi-atelier-jwt-secret-key-2024"

// SetupTestDB creates an isolated in-memory sqlite database.
// 单连接避免并发测试时 sqlite 的 database locked 问题。
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:atelier_test_%s?mode=memory&cache=shared", uuid.New().String()[:8])
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

	t.Cleanup(func() {
		sqlDB.Close()
	})

	return db
}

// SetupServices wires repositories and services on a test database.
// Redis 不参与测试，绑定只依赖进程内锁与事务条件更新。
func SetupServices(t *testing.T, db *gorm.DB) (*service.Services, *repository.Repositories) {
	t.Helper()
	repos := repository.NewRepositories(db)
	svc := service.NewServices(db, nil, zap.NewNop(), repos)
	return svc, repos
}

// SetupRouter creates a gin test router with all routes registered
func SetupRouter(svc *service.Services, repos *repository.Repositories) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	handlers := handler.NewHandlers(svc, repos)
	handler.RegisterRoutes(r, handlers, JWTSecret)
	return r
}

// GenerateTestToken creates a valid JWT token for testing
func GenerateTestToken(userID, name string, roles []string) string {
	if roles == nil {
		roles = []string{}
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   userID,
		"uid":   userID,
		"name":  name,
		"email": name + "@test.com",
		"roles": roles,
		"iss":   "lumi-atelier",
		"iat":   now.Unix(),
		"exp":   now.Add(24 * time.Hour).Unix(),
		"jti":   fmt.Sprintf("test-jti-%d", now.UnixNano()),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(JWTSecret))
	return tokenString
}

// ManagerToken returns a token for a manager test user
func ManagerToken(userID string) string {
	return GenerateTestToken(userID, "Test Manager", []string{entity.RoleManager})
}

// CustomerToken returns a token for a customer test user
func CustomerToken(userID string) string {
	return GenerateTestToken(userID, "Test Customer", []string{entity.RoleCustomer})
}

// StaffToken returns a token for a staff test user with the given role
func StaffToken(userID, role string) string {
	return GenerateTestToken(userID, "Test Staff", []string{role})
}

// DoRequest executes an HTTP request against the test router
func DoRequest(r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse parses the JSON response body into a map
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// SeedMaterial creates a material for tests
func SeedMaterial(t *testing.T, db *gorm.DB, name string, sellPrice float64) *entity.Material {
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

// SeedGemstone creates an available gemstone for tests
func SeedGemstone(t *testing.T, db *gorm.DB, name string, price float64) *entity.Gemstone {
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
