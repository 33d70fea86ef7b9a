package Models

import "gorm.io/gorm"

// Permission levels: 1 field user, 2 auditor, 3 director, 4 admin/system.
const (
	PermissionFieldUser = 1
	PermissionAuditor   = 2
	PermissionDirector  = 3
	PermissionAdmin     = 4
)

type User struct {
	gorm.Model
	Name       string `json:"name"`
	Email      string `json:"email" gorm:"unique"`
	Password   []byte `json:"-"`
	Permission int    `json:"permission"`
	CompanyID  uint   `json:"company_id" gorm:"index"`
}
