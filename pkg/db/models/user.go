package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a ticket buyer. OpenID is the provider-side identity used when
// requesting a prepay handle for this user.
type User struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	TenantID  uuid.UUID `gorm:"column:tenant_id;type:uuid;not null;index"`
	Nickname  string    `gorm:"column:nickname"`
	Phone     string    `gorm:"column:phone"`
	OpenID    string    `gorm:"column:open_id"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
