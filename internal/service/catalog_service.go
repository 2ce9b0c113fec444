package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"maritime-marketplace/internal/models"
	"maritime-marketplace/internal/store"
	"maritime-marketplace/internal/util"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CatalogService serves product listings
type CatalogService struct {
	products ProductRepository
	lookups  singleflight.Group // collapses concurrent lookups of one product
	logger   *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(products ProductRepository) *CatalogService {
	return &CatalogService{
		products: products,
		logger:   util.Component("catalog"),
	}
}

// ProductQuery is a product listing request
type ProductQuery struct {
	Type   models.ProductType
	Search string
	Page   int
	Limit  int
}

// ProductPage is one page of products plus the total match count
type ProductPage struct {
	Products []models.Product `json:"products"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	Limit    int              `json:"limit"`
}

// ListProducts returns products filtered by type and free-text search
func (s *CatalogService) ListProducts(ctx context.Context, q ProductQuery) (*ProductPage, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.ListProducts")
	defer span.End()

	if q.Type != "" && !q.Type.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidProductType, q.Type)
	}

	offset, limit := util.Paginate(q.Page, q.Limit)
	products, total, err := s.products.ListProducts(ctx, store.ProductFilter{
		Type:   q.Type,
		Search: q.Search,
		Offset: offset,
		Limit:  limit,
	})
	if err != nil {
		s.logger.Error("Failed to load products", zap.Error(err))
		return nil, fmt.Errorf("failed to load products: %w", err)
	}

	return &ProductPage{
		Products: products,
		Total:    total,
		Page:     offset/limit + 1,
		Limit:    limit,
	}, nil
}

// GetProduct returns a copy of one product
func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	v, err, _ := s.lookups.Do(strconv.FormatInt(id, 10), func() (interface{}, error) {
		return s.products.GetProductByID(ctx, id)
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrProductNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	product := *v.(*models.Product)
	return &product, nil
}

// EnsureAvailable checks that every product id is still in the catalog
func (s *CatalogService) EnsureAvailable(ctx context.Context, ids []int64) error {
	products, err := s.products.GetProductsByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to load products: %w", err)
	}

	found := make(map[int64]bool, len(products))
	for _, p := range products {
		found[p.ID] = true
	}
	for _, id := range ids {
		if !found[id] {
			return fmt.Errorf("%w: %d", ErrProductNotFound, id)
		}
	}
	return nil
}
