package materiasprimas

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var Unidades = []interface{}{"kg", "g", "l", "ml", "m", "un"}

type MateriaPrima struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Nome          string         `gorm:"size:255;not null;index" json:"nome"`
	Unidade       string         `gorm:"size:10;not null" json:"unidade"`
	Quantidade    float64        `gorm:"default:0" json:"quantidade"`
	EstoqueMinimo float64        `gorm:"default:0" json:"estoque_minimo"`
	CustoUnitario float64        `gorm:"default:0" json:"custo_unitario"`
	Fornecedor    string         `gorm:"size:255" json:"fornecedor"`
	CriadoPor     string         `gorm:"size:36;index" json:"criado_por"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

func (MateriaPrima) TableName() string { return "materias_primas" }

// AbaixoDoMinimo reports whether stock has fallen under the reorder level.
func (m MateriaPrima) AbaixoDoMinimo() bool {
	return m.EstoqueMinimo > 0 && m.Quantidade < m.EstoqueMinimo
}

// --- DTOs ---

type CreateRequest struct {
	Nome          string  `json:"nome"`
	Unidade       string  `json:"unidade"`
	Quantidade    float64 `json:"quantidade"`
	EstoqueMinimo float64 `json:"estoque_minimo"`
	CustoUnitario float64 `json:"custo_unitario"`
	Fornecedor    string  `json:"fornecedor"`
}

func (r CreateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Nome, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.Unidade, validation.Required, validation.In(Unidades...)),
		validation.Field(&r.Quantidade, validation.Min(0.0)),
		validation.Field(&r.EstoqueMinimo, validation.Min(0.0)),
		validation.Field(&r.CustoUnitario, validation.Min(0.0)),
		validation.Field(&r.Fornecedor, validation.Length(0, 255)),
	)
}

type UpdateRequest struct {
	Nome          *string  `json:"nome"`
	Unidade       *string  `json:"unidade"`
	Quantidade    *float64 `json:"quantidade"`
	EstoqueMinimo *float64 `json:"estoque_minimo"`
	CustoUnitario *float64 `json:"custo_unitario"`
	Fornecedor    *string  `json:"fornecedor"`
}

func (r UpdateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Nome, validation.NilOrNotEmpty, validation.Length(1, 255)),
		validation.Field(&r.Unidade, validation.NilOrNotEmpty, validation.In(Unidades...)),
		validation.Field(&r.Quantidade, validation.Min(0.0)),
		validation.Field(&r.EstoqueMinimo, validation.Min(0.0)),
		validation.Field(&r.CustoUnitario, validation.Min(0.0)),
	)
}

type ListResponse struct {
	Items  []MateriaPrima `json:"items"`
	Total  int64          `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}
