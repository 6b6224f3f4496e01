package produtos

import (
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var skuPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9-]{1,31}$`)

type Produto struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	SKU       string         `gorm:"column:sku;size:32;not null;uniqueIndex" json:"sku"`
	Nome      string         `gorm:"size:255;not null;index" json:"nome"`
	Descricao string         `gorm:"type:text" json:"descricao"`
	Preco     float64        `gorm:"default:0" json:"preco"`
	Estoque   int            `gorm:"default:0" json:"estoque"`
	Ativo     bool           `gorm:"default:true" json:"ativo"`
	CriadoPor string         `gorm:"size:36;index" json:"criado_por"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Produto) TableName() string { return "produtos" }

// --- DTOs ---

type CreateRequest struct {
	SKU       string  `json:"sku"`
	Nome      string  `json:"nome"`
	Descricao string  `json:"descricao"`
	Preco     float64 `json:"preco"`
	Estoque   int     `json:"estoque"`
}

func (r CreateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.SKU, validation.Required, validation.Match(skuPattern)),
		validation.Field(&r.Nome, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.Preco, validation.Min(0.0)),
		validation.Field(&r.Estoque, validation.Min(0)),
	)
}

type UpdateRequest struct {
	Nome      *string  `json:"nome"`
	Descricao *string  `json:"descricao"`
	Preco     *float64 `json:"preco"`
	Estoque   *int     `json:"estoque"`
	Ativo     *bool    `json:"ativo"`
}

func (r UpdateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Nome, validation.NilOrNotEmpty, validation.Length(1, 255)),
		validation.Field(&r.Preco, validation.Min(0.0)),
		validation.Field(&r.Estoque, validation.Min(0)),
	)
}

type ListResponse struct {
	Items  []Produto `json:"items"`
	Total  int64     `json:"total"`
	Limit  int       `json:"limit"`
	Offset int       `json:"offset"`
}
