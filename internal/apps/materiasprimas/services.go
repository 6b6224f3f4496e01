package materiasprimas

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mutamba/erp-backend/internal/apps"
)

var ErrNotFound = errors.New("matéria-prima não encontrada")

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) Create(ctx context.Context, uid string, req CreateRequest) (*MateriaPrima, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	item := MateriaPrima{
		ID:            uuid.New(),
		Nome:          strings.TrimSpace(req.Nome),
		Unidade:       req.Unidade,
		Quantidade:    req.Quantidade,
		EstoqueMinimo: req.EstoqueMinimo,
		CustoUnitario: req.CustoUnitario,
		Fornecedor:    strings.TrimSpace(req.Fornecedor),
		CriadoPor:     uid,
	}
	if err := s.db.WithContext(ctx).Create(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// List filters by name substring and, with lowStock, by items under their
// reorder level.
func (s *Service) List(ctx context.Context, query string, lowStock bool, limit, offset int) (*ListResponse, error) {
	q := s.db.WithContext(ctx).Model(&MateriaPrima{})
	if query = strings.TrimSpace(query); query != "" {
		q = q.Where("nome ILIKE ?", apps.ContainsPattern(query))
	}
	if lowStock {
		q = q.Where("estoque_minimo > 0 AND quantidade < estoque_minimo")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, err
	}

	items := []MateriaPrima{}
	if err := q.Order("nome ASC").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}

	return &ListResponse{Items: items, Total: total, Limit: limit, Offset: offset}, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*MateriaPrima, error) {
	var item MateriaPrima
	if err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (*MateriaPrima, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.Nome != nil {
		updates["nome"] = strings.TrimSpace(*req.Nome)
	}
	if req.Unidade != nil {
		updates["unidade"] = *req.Unidade
	}
	if req.Quantidade != nil {
		updates["quantidade"] = *req.Quantidade
	}
	if req.EstoqueMinimo != nil {
		updates["estoque_minimo"] = *req.EstoqueMinimo
	}
	if req.CustoUnitario != nil {
		updates["custo_unitario"] = *req.CustoUnitario
	}
	if req.Fornecedor != nil {
		updates["fornecedor"] = strings.TrimSpace(*req.Fornecedor)
	}
	if len(updates) == 0 {
		return item, nil
	}

	if err := s.db.WithContext(ctx).Model(item).Updates(updates).Error; err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Delete(&MateriaPrima{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
