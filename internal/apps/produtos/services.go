package produtos

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mutamba/erp-backend/internal/apps"
)

var (
	ErrNotFound = errors.New("produto não encontrado")
	ErrSKUTaken = errors.New("sku já cadastrado")
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) Create(ctx context.Context, uid string, req CreateRequest) (*Produto, error) {
	req.SKU = strings.ToUpper(strings.TrimSpace(req.SKU))
	if err := req.Validate(); err != nil {
		return nil, err
	}

	item := Produto{
		ID:        uuid.New(),
		SKU:       req.SKU,
		Nome:      strings.TrimSpace(req.Nome),
		Descricao: req.Descricao,
		Preco:     req.Preco,
		Estoque:   req.Estoque,
		Ativo:     true,
		CriadoPor: uid,
	}
	if err := s.db.WithContext(ctx).Create(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrSKUTaken
		}
		return nil, err
	}
	return &item, nil
}

// List matches query against name or SKU. Inactive products are left out
// unless includeInactive is set.
func (s *Service) List(ctx context.Context, query string, includeInactive bool, limit, offset int) (*ListResponse, error) {
	q := s.db.WithContext(ctx).Model(&Produto{})
	if query = strings.TrimSpace(query); query != "" {
		like := apps.ContainsPattern(query)
		q = q.Where("nome ILIKE ? OR sku ILIKE ?", like, like)
	}
	if !includeInactive {
		q = q.Where("ativo = ?", true)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, err
	}

	items := []Produto{}
	if err := q.Order("nome ASC").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}

	return &ListResponse{Items: items, Total: total, Limit: limit, Offset: offset}, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Produto, error) {
	var item Produto
	if err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (*Produto, error) {
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
	if req.Descricao != nil {
		updates["descricao"] = *req.Descricao
	}
	if req.Preco != nil {
		updates["preco"] = *req.Preco
	}
	if req.Estoque != nil {
		updates["estoque"] = *req.Estoque
	}
	if req.Ativo != nil {
		updates["ativo"] = *req.Ativo
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
	res := s.db.WithContext(ctx).Delete(&Produto{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
