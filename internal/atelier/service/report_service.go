package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bitfantasy/lumi-atelier/internal/atelier/repository"
	"github.com/xuri/excelize/v2"
)

// ReportService 后台报表导出
type ReportService struct {
	requestRepo    *repository.RequestRepository
	assignmentRepo *repository.AssignmentRepository
}

// NewReportService 创建报表服务
func NewReportService(repos *repository.Repositories) *ReportService {
	return &ReportService{
		requestRepo:    repos.Request,
		assignmentRepo: repos.Assignment,
	}
}

// ExportRequests 导出请求清单为 xlsx
func (s *ReportService) ExportRequests(ctx context.Context) (*excelize.File, string, error) {
	reqs, err := s.requestRepo.List(ctx, repository.RequestListParams{})
	if err != nil {
		return nil, "", fmt.Errorf("查询请求列表失败: %w", err)
	}

	f := excelize.NewFile()
	sheet := "Requests"
	f.SetSheetName("Sheet1", sheet)

	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	headers := []string{"请求ID", "客户ID", "状态", "报价金额", "工费", "指派人数", "创建时间"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, boldStyle)
	}

	for row, req := range reqs {
		assignments, err := s.assignmentRepo.ListByRequest(ctx, req.ID)
		if err != nil {
			return nil, "", err
		}
		values := []interface{}{
			req.ID,
			req.CustomerID,
			req.Status,
			req.QuoteAmount,
			req.ProductionCost,
			len(assignments),
			req.CreatedAt.Format("2006-01-02 15:04"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	filename := fmt.Sprintf("requests_%s.xlsx", time.Now().Format("20060102_150405"))
	return f, filename, nil
}
