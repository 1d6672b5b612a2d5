package repository

import (
	"errors"

	"gorm.io/gorm"
)

// 错误定义
var (
	ErrNotFound = errors.New("record not found")
)

// Repositories 仓库集合
type Repositories struct {
	Request    *RequestRepository
	Assignment *AssignmentRepository
	Gemstone   *GemstoneRepository
	Material   *MaterialRepository
	Jewelry    *JewelryRepository
	Invoice    *InvoiceRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Request:    NewRequestRepository(db),
		Assignment: NewAssignmentRepository(db),
		Gemstone:   NewGemstoneRepository(db),
		Material:   NewMaterialRepository(db),
		Jewelry:    NewJewelryRepository(db),
		Invoice:    NewInvoiceRepository(db),
	}
}

func translateNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
