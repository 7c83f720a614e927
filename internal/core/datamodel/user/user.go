package user

import "time"

type User struct {
	ID                 string     `gorm:"primaryKey;type:varchar(36)"`
	Email              string     `gorm:"column:email;uniqueIndex;not null"`
	FirstName          string     `gorm:"column:first_name"`
	LastName           string     `gorm:"column:last_name"`
	PasswordHash       string     `gorm:"column:password_hash;not null"`
	OrganizationID     string     `gorm:"column:organization_id"`
	RoleIDs            []string   `gorm:"column:role_ids;serializer:json"`
	RefreshTokenHash   string     `gorm:"column:refresh_token_hash;index"`
	RefreshTokenExpiry *time.Time `gorm:"column:refresh_token_expiry"`
	IsActive           bool       `gorm:"column:is_active;default:true"`
	CreatedAt          time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}
