package model

import (
	base "phonehub/pkg/model"
)

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// User 用户模型
type User struct {
	base.BaseModel
	Name     string `gorm:"type:varchar(100);not null" json:"name"`
	Email    string `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"` // 密码不返回给前端
	Role     string `gorm:"type:varchar(16);not null;default:'USER'" json:"role"`

	// 仅管理端列表/详情查询时填充
	OrderCount *int64 `gorm:"->;-:migration" json:"orderCount,omitempty"`
}

// IsAdmin 是否管理员
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// ValidRole 角色枚举校验
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAdmin
}
