package entity

import "time"

// 角色常量 —— staff 三角色占用请求上的唯一槽位，manager/customer 由身份声明而来
const (
	RoleManager    = "manager"
	RoleSale       = "sale"
	RoleDesign     = "design"
	RoleProduction = "production"
	RoleCustomer   = "customer"

	// RoleAdmin 平台管理员，拥有全部角色权限
	RoleAdmin = "atelier_admin"
)

// StaffRoles 可被指派到请求上的角色槽位
var StaffRoles = []string{RoleSale, RoleDesign, RoleProduction}

// IsStaffRole 判断是否为可指派的员工角色
func IsStaffRole(role string) bool {
	for _, r := range StaffRoles {
		if r == role {
			return true
		}
	}
	return false
}

// RoleAssignment 角色指派 —— 每个 (request, role) 槽位最多一条记录
type RoleAssignment struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	RequestID string    `json:"request_id" gorm:"size:36;not null;uniqueIndex:idx_assignment_request_role"`
	StaffID   string    `json:"staff_id" gorm:"size:36;not null;index"`
	Role      string    `json:"role" gorm:"size:16;not null;uniqueIndex:idx_assignment_request_role"`
	CreatedAt time.Time `json:"created_at"`
}

func (RoleAssignment) TableName() string {
	return "role_assignments"
}
