package entity

import "time"

// 宝石绑定位置
const (
	GemstoneKindMain = "main"
	GemstoneKindSub  = "sub"
)

// Gemstone 宝石 —— available 标志由分配台账独占管理，绑定时指向唯一的首饰
type Gemstone struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	Name      string    `json:"name" gorm:"size:128;not null"`
	Price     float64   `json:"price" gorm:"type:decimal(12,2);not null;default:0"`
	Available bool      `json:"available" gorm:"not null;default:true"`
	JewelryID *string   `json:"jewelry_id" gorm:"size:36;index"`
	Kind      string    `json:"kind" gorm:"size:8"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Gemstone) TableName() string {
	return "gemstones"
}

// Material 材质 —— 按克重计价
type Material struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	Name      string    `json:"name" gorm:"size:128;not null"`
	SellPrice float64   `json:"sell_price" gorm:"type:decimal(12,2);not null;default:0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Material) TableName() string {
	return "materials"
}

// Jewelry 首饰 —— price 为派生值，对调用方只读；宝石归属关系看 Gemstone.JewelryID
type Jewelry struct {
	ID             string    `json:"id" gorm:"primaryKey;size:36"`
	Name           string    `json:"name" gorm:"size:128;not null"`
	MaterialID     string    `json:"material_id" gorm:"size:36;not null"`
	MaterialWeight float64   `json:"material_weight" gorm:"type:decimal(10,2);not null;default:0"`
	Price          float64   `json:"price" gorm:"type:decimal(12,2);not null;default:0"`
	Finalized      bool      `json:"finalized" gorm:"not null;default:false"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// 关联
	Material *Material `json:"material,omitempty" gorm:"foreignKey:MaterialID"`
}

func (Jewelry) TableName() string {
	return "jewelries"
}
