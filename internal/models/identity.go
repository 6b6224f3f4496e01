package models

import (
	"time"

	"github.com/mutamba/erp-backend/internal/access"
)

// Identity is an account held by the identity provider. UID is issued at
// creation and never changes.
type Identity struct {
	UID          string    `gorm:"column:uid;primaryKey;size:36" json:"uid"`
	Email        string    `gorm:"not null;size:255;uniqueIndex" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	DisplayName  string    `gorm:"size:255" json:"displayName"`
	Disabled     bool      `gorm:"default:false" json:"disabled"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Identity) TableName() string { return "identities" }

func (i *Identity) ToIdentity() *access.Identity {
	return &access.Identity{UID: i.UID, Email: i.Email, DisplayName: i.DisplayName}
}
