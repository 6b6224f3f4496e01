package models

import "time"

// DirectoryEntry is a row of the usuarios collection. Role is kept as the raw
// stored string; it is decoded into access.Role by the directory store.
type DirectoryEntry struct {
	UID         string    `gorm:"column:uid;primaryKey;size:36" json:"uid"`
	Nome        string    `gorm:"column:nome;size:255" json:"nome"`
	Email       string    `gorm:"column:email;size:255;index" json:"email"`
	Role        string    `gorm:"column:role;size:20;default:'user'" json:"role"`
	DataCriacao time.Time `gorm:"column:data_criacao" json:"dataCriacao"`
	UpdatedAt   time.Time `json:"-"`
}

func (DirectoryEntry) TableName() string { return "usuarios" }
