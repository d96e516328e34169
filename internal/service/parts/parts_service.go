// Package parts 提供配件目录与配件预留服务
package parts

import (
	"context"
	"errors"

	"gorm.io/gorm"

	apperrors "github.com/quickmech/quickmech-backend/internal/common/errors"
	"github.com/quickmech/quickmech-backend/internal/common/utils"
	"github.com/quickmech/quickmech-backend/internal/models"
	"github.com/quickmech/quickmech-backend/internal/repository"
)

// PartsService 配件目录服务
type PartsService struct {
	partRepo *repository.PartRepository
}

// NewPartsService 创建配件目录服务
func NewPartsService(partRepo *repository.PartRepository) *PartsService {
	return &PartsService{partRepo: partRepo}
}

// CreatePartRequest 创建配件请求
type CreatePartRequest struct {
	Name        string  `json:"name" binding:"required,max=120"`
	Description string  `json:"description" binding:"max=500"`
	Category    string  `json:"category" binding:"required,max=50"`
	Make        string  `json:"make"`
	Model       string  `json:"model"`
	Price       float64 `json:"price" binding:"required,gt=0"`
	Stock       int     `json:"stock" binding:"gte=0"`
}

// Create 配件店上架配件
func (s *PartsService) Create(ctx context.Context, autopartsID int64, req *CreatePartRequest) (*models.Part, error) {
	part := &models.Part{
		AutopartsID: autopartsID,
		Name:        req.Name,
		Category:    req.Category,
		Price:       utils.RoundMoney(req.Price),
		Stock:       req.Stock,
		IsActive:    true,
	}
	if req.Description != "" {
		part.Description = &req.Description
	}
	if req.Make != "" {
		part.Make = &req.Make
	}
	if req.Model != "" {
		part.Model = &req.Model
	}

	if err := s.partRepo.Create(ctx, part); err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	return part, nil
}

// UpdatePartRequest 更新配件请求
type UpdatePartRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Category    *string  `json:"category"`
	Price       *float64 `json:"price"`
	Stock       *int     `json:"stock"`
	IsActive    *bool    `json:"is_active"`
}

// Update 配件店更新配件
func (s *PartsService) Update(ctx context.Context, autopartsID, partID int64, req *UpdatePartRequest) (*models.Part, error) {
	part, err := s.getShopPart(ctx, autopartsID, partID)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if req.Name != nil {
		fields["name"] = *req.Name
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.Category != nil {
		fields["category"] = *req.Category
	}
	if req.Price != nil {
		if *req.Price <= 0 {
			return nil, apperrors.ErrInvalidParams
		}
		fields["price"] = utils.RoundMoney(*req.Price)
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			return nil, apperrors.ErrInvalidParams
		}
		fields["stock"] = *req.Stock
	}
	if req.IsActive != nil {
		fields["is_active"] = *req.IsActive
	}
	if len(fields) == 0 {
		return part, nil
	}

	if err := s.partRepo.UpdateFields(ctx, partID, fields); err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	return s.partRepo.GetByID(ctx, partID)
}

// Delete 配件店下架删除配件
func (s *PartsService) Delete(ctx context.Context, autopartsID, partID int64) error {
	if err := s.partRepo.Delete(ctx, autopartsID, partID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrPartNotFound
		}
		return apperrors.ErrDatabaseError.WithError(err)
	}
	return nil
}

// GetByID 获取配件详情
func (s *PartsService) GetByID(ctx context.Context, partID int64) (*models.Part, error) {
	part, err := s.partRepo.GetByID(ctx, partID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrPartNotFound
		}
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	return part, nil
}

// ListByShop 配件店商品列表
func (s *PartsService) ListByShop(ctx context.Context, autopartsID int64, page *utils.Pagination) ([]*models.Part, int64, error) {
	return s.partRepo.ListByShop(ctx, autopartsID, page.GetOffset(), page.GetLimit())
}

// SearchRequest 配件搜索请求
type SearchRequest struct {
	Category string `form:"category"`
	Make     string `form:"make"`
	Model    string `form:"model"`
	Keyword  string `form:"keyword"`
}

// Search 按类别/车型/关键字搜索在售配件
func (s *PartsService) Search(ctx context.Context, req *SearchRequest, page *utils.Pagination) ([]*models.Part, int64, error) {
	return s.partRepo.Search(ctx, req.Category, req.Make, req.Model, req.Keyword, page.GetOffset(), page.GetLimit())
}

// serviceCategories 服务名到配件类别的建议映射
var serviceCategories = map[string][]string{
	"troca de oleo":   {"oleo", "filtro"},
	"freios":          {"pastilha", "disco", "fluido"},
	"bateria":         {"bateria"},
	"suspensao":       {"amortecedor", "mola"},
	"embreagem":       {"embreagem"},
	"correia dentada": {"correia"},
	"velas":           {"vela", "bobina"},
	"pneus":           {"pneu"},
}

// Suggestions 按服务类型推荐在售配件
func (s *PartsService) Suggestions(ctx context.Context, service string, limit int) ([]*models.Part, error) {
	categories, ok := serviceCategories[service]
	if !ok {
		return []*models.Part{}, nil
	}
	if limit <= 0 {
		limit = 10
	}
	parts, err := s.partRepo.ListByCategories(ctx, categories, limit)
	if err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	return parts, nil
}

// getShopPart 获取配件并校验归属
func (s *PartsService) getShopPart(ctx context.Context, autopartsID, partID int64) (*models.Part, error) {
	part, err := s.partRepo.GetByID(ctx, partID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrPartNotFound
		}
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	if part.AutopartsID != autopartsID {
		return nil, apperrors.ErrPermissionDenied
	}
	return part, nil
}
