package service

import (
	"github.com/bitfantasy/lumi-atelier/internal/atelier/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services 服务集合
type Services struct {
	Catalog  *CatalogService
	Ledger   *LedgerService
	Invoice  *InvoiceService
	Workflow *WorkflowService
	Report   *ReportService
}

// NewServices 创建服务集合。rdb 可为 nil，此时宝石绑定只依赖
// 进程内互斥与事务内条件更新。
func NewServices(db *gorm.DB, rdb *redis.Client, logger *zap.Logger, repos *repository.Repositories) *Services {
	catalog := NewCatalogService(repos)
	ledger := NewLedgerService(db, rdb, logger, repos)
	invoices := NewInvoiceService(repos)

	return &Services{
		Catalog:  catalog,
		Ledger:   ledger,
		Invoice:  invoices,
		Workflow: NewWorkflowService(db, logger, repos, ledger, catalog, invoices),
		Report:   NewReportService(repos),
	}
}
